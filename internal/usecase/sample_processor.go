package usecase

import (
	"context"
	"fmt"
	"time"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
)

// SampleWriter is the direct-storage path for ingested observations.
type SampleWriter interface {
	InsertSamples(ctx context.Context, obs []*models.Observation) error
}

// SamplePublisher pushes observations onto the ingest topic.
type SamplePublisher interface {
	PublishSamples(ctx context.Context, obs []*models.Observation) error
}

// SampleProcessor routes collected observations to the configured
// backend: through Kafka for the decoupled pipeline, or straight into
// storage when no broker is deployed.
type SampleProcessor struct {
	pub     SamplePublisher
	writer  SampleWriter
	metrics domrepo.Metrics
	backend string
	batchSz int
	batchTO time.Duration
}

func NewSampleProcessor(
	pub SamplePublisher,
	writer SampleWriter,
	metrics domrepo.Metrics,
	backend string,
	batchSz int,
	batchTO time.Duration,
) *SampleProcessor {
	if batchSz <= 0 {
		batchSz = 500
	}
	if batchTO <= 0 {
		batchTO = time.Second
	}
	return &SampleProcessor{
		pub:     pub,
		writer:  writer,
		metrics: metrics,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
	}
}

// Process routes a single observation.
func (p *SampleProcessor) Process(ctx context.Context, o *models.Observation) error {
	if o == nil {
		return fmt.Errorf("observation is nil")
	}
	return p.ProcessBatch(ctx, []*models.Observation{o})
}

// ProcessBatch routes a batch of observations.
func (p *SampleProcessor) ProcessBatch(ctx context.Context, obs []*models.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.PublishSamples(ctx, obs)
	case "clickhouse":
		err = p.writer.InsertSamples(ctx, obs)
	default:
		err = fmt.Errorf("unknown ingest backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("ingest")
		return fmt.Errorf("process samples: %w", err)
	}
	return nil
}

// StartBatching spawns a background loop that accumulates observations
// from in and flushes them on size or time, whichever first.
func (p *SampleProcessor) StartBatching(ctx context.Context, in <-chan *models.Observation) {
	go func() {
		batch := make([]*models.Observation, 0, p.batchSz)
		timer := time.NewTimer(p.batchTO)
		defer timer.Stop()

		flush := func() {
			if len(batch) == 0 {
				return
			}
			if err := p.ProcessBatch(ctx, batch); err == nil {
				batch = batch[:0]
			} else {
				// keep the batch, retry on the next tick
				p.metrics.RecordError("ingest_flush")
			}
		}

		for {
			select {
			case <-ctx.Done():
				flush()
				return
			case o, ok := <-in:
				if !ok {
					flush()
					return
				}
				if o == nil {
					continue
				}
				batch = append(batch, o)
				if len(batch) >= p.batchSz {
					flush()
					if !timer.Stop() {
						<-timer.C
					}
					timer.Reset(p.batchTO)
				}
			case <-timer.C:
				flush()
				timer.Reset(p.batchTO)
			}
		}
	}()
}
