package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, o *models.Observation) error
}

// IngestPipeline sits between the collector stream and the ingest
// backend. It validates, throttles per key, and buffers when downstream
// is unavailable.
type IngestPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Observation
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[models.Key]time.Time // per-key last accepted time
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max observations per second per key.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIngestPipeline creates a new pipeline.
func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   60,   // default throttle per key
		bufSize:  1000, // default buffer
		bufCh:    make(chan *models.Observation, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[models.Key]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.Observation, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered observations.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case o := <-p.bufCh:
				if o == nil {
					continue
				}
				if err := p.proc.Process(ctx, o); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- o:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards one observation downstream,
// buffering on errors.
func (p *IngestPipeline) Process(ctx context.Context, o *models.Observation) error {
	start := time.Now()
	if err := validateObservation(o); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(o.Key, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, o); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- o:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

func validateObservation(o *models.Observation) error {
	if o == nil {
		return fmt.Errorf("observation nil")
	}
	if o.Key.Entity == "" || o.Key.Metric == "" {
		return fmt.Errorf("key empty")
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return fmt.Errorf("non-finite value")
	}
	if o.Value < 0 {
		return fmt.Errorf("negative load value")
	}
	return nil
}

func (p *IngestPipeline) allow(key models.Key, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[key]
	if last.IsZero() {
		p.lastSeen[key] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[key] = now
	return true
}
