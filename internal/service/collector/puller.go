package collector

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"LoadCast/internal/domain/models"
	drepo "LoadCast/internal/domain/repository"
	xhttp "LoadCast/pkg/http"
)

// Puller implements a SampleStream over the collector-agent HTTP pull
// endpoint, for agents behind proxies that cannot hold a WebSocket open.
// Each poll fetches samples newer than the last seen timestamp.
type Puller struct {
	authToken    string
	baseURL      string
	selectors    []string
	pollInterval time.Duration
	client       *xhttp.Client

	mu        sync.Mutex
	connected bool
	since     int64 // ms, high-water mark across polls
	stopCh    chan struct{}
}

// NewPuller creates a pull-mode collector SampleStream.
func NewPuller(authToken, baseURL string, selectors []string, pollInterval time.Duration) drepo.SampleStream {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &Puller{
		authToken:    authToken,
		baseURL:      strings.TrimRight(baseURL, "/"),
		selectors:    selectors,
		pollInterval: pollInterval,
		client:       xhttp.NewClient(xhttp.WithTimeout(30 * time.Second)),
	}
}

// Connect verifies the endpoint is reachable.
func (p *Puller) Connect(ctx context.Context) error {
	if err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     p.baseURL + "/healthz",
		Headers: p.headers(),
	}, nil); err != nil {
		return fmt.Errorf("collector pull connect: %w", err)
	}
	p.mu.Lock()
	p.connected = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()
	log.Printf("collector: pull endpoint reachable")
	return nil
}

// Subscribe is a no-op in pull mode; selectors travel with every poll.
func (p *Puller) Subscribe(ctx context.Context) error { return nil }

// Read polls the endpoint on a fixed cadence and emits observations.
func (p *Puller) Read(ctx context.Context) (<-chan *models.Observation, <-chan error) {
	obsCh := make(chan *models.Observation, 500)
	errCh := make(chan error, 1)

	go func() {
		defer close(obsCh)
		defer close(errCh)
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopped():
				return
			case <-ticker.C:
				if err := p.poll(ctx, obsCh); err != nil {
					select {
					case errCh <- err:
					default:
					}
				}
			}
		}
	}()

	return obsCh, errCh
}

func (p *Puller) poll(ctx context.Context, obsCh chan<- *models.Observation) error {
	p.mu.Lock()
	since := p.since
	p.mu.Unlock()

	var resp struct {
		Data []agentSample `json:"data"`
	}
	if err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     p.baseURL + "/samples",
		Headers: p.headers(),
		QueryParams: map[string][]string{
			"selector": p.selectors,
			"since":    {fmt.Sprintf("%d", since)},
		},
	}, &resp); err != nil {
		return fmt.Errorf("collector poll: %w", err)
	}

	var maxTS int64
	for _, s := range resp.Data {
		if s.TS > maxTS {
			maxTS = s.TS
		}
		o := &models.Observation{
			Key:       models.Key{Entity: s.Entity, Metric: s.Metric},
			Timestamp: time.UnixMilli(s.TS).UTC(),
			Value:     s.Value,
		}
		select {
		case obsCh <- o:
		default:
			// drop on backpressure, same policy as the stream client
		}
	}
	if maxTS > 0 {
		p.mu.Lock()
		if maxTS > p.since {
			p.since = maxTS
		}
		p.mu.Unlock()
	}
	return nil
}

// Reconnect re-checks reachability.
func (p *Puller) Reconnect(ctx context.Context) error {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return p.Connect(ctx)
}

// Close stops the polling loop.
func (p *Puller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh != nil {
		select {
		case <-p.stopCh:
		default:
			close(p.stopCh)
		}
	}
	p.connected = false
	return nil
}

// IsConnected reports whether the last connect check succeeded.
func (p *Puller) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *Puller) headers() map[string]string {
	if p.authToken == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + p.authToken}
}

func (p *Puller) stopped() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.stopCh
}
