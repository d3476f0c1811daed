package usecase

import (
	"context"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	mid "LoadCast/internal/middleware"
)

// SampleCollector drains the collector-agent stream and hands
// observations to the ingest path.
type SampleCollector struct {
	stream  domrepo.SampleStream
	proc    *SampleProcessor
	metrics domrepo.Metrics
	pipe    *mid.IngestPipeline
}

func NewSampleCollector(stream domrepo.SampleStream, proc *SampleProcessor, metrics domrepo.Metrics, pipe *mid.IngestPipeline) *SampleCollector {
	return &SampleCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected reports whether the agent stream is up.
func (c *SampleCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SampleCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	obsCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, obsCh, errCh)
	return nil
}

func (c *SampleCollector) consume(ctx context.Context, obsCh <-chan *models.Observation, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case o := <-obsCh:
			if o == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, o)
			} else {
				_ = c.proc.Process(ctx, o)
			}
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *SampleCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
