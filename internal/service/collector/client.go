package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"LoadCast/internal/domain/models"
	drepo "LoadCast/internal/domain/repository"
)

// Client implements a SampleStream backed by the collector-agent
// WebSocket endpoint.
type Client struct {
	authToken      string
	websocketURL   string
	subscriptions  []string // entity:metric selectors, "*" for all
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new collector SampleStream.
func New(authToken, websocketURL string, subscriptions []string, reconnectDelay, pingInterval time.Duration) drepo.SampleStream {
	return &Client{
		authToken:      authToken,
		websocketURL:   websocketURL,
		subscriptions:  subscriptions,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.authToken != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.authToken)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("collector connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("collector: connected")
	return nil
}

// Subscribe subscribes to the configured entity:metric selectors.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("collector not connected")
	}
	for _, sel := range c.subscriptions {
		msg := map[string]string{"type": "subscribe", "selector": sel}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", sel, err)
		}
		log.Printf("collector: subscribed %s", sel)
	}
	return nil
}

type agentSample struct {
	Entity string  `json:"entity"`
	Metric string  `json:"metric"`
	TS     int64   `json:"ts"` // ms
	Value  float64 `json:"value"`
}

type agentMessage struct {
	Type string        `json:"type"`
	Data []agentSample `json:"data"`
}

// Read streams observations and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.Observation, <-chan error) {
	samples := make(chan *models.Observation, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(samples)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("collector conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("collector read: %w", err)
					return
				}
				var m agentMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-sample frames
					continue
				}
				if m.Type != "samples" {
					continue
				}
				for _, d := range m.Data {
					obs := &models.Observation{
						Key:       models.Key{Entity: d.Entity, Metric: d.Metric},
						Timestamp: time.UnixMilli(d.TS).UTC(),
						Value:     d.Value,
					}
					select {
					case samples <- obs:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return samples, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
