package middleware

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/models"
)

type stubProc struct {
	mu   sync.Mutex
	err  error
	seen []*models.Observation
}

func (s *stubProc) Process(_ context.Context, o *models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.seen = append(s.seen, o)
	return nil
}

func (s *stubProc) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

type stubMetrics struct{}

func (stubMetrics) RecordTraining(string, string, string, float64) {}
func (stubMetrics) RecordForecast(string, string, int)             {}
func (stubMetrics) RecordAnomaly(string, string)                   {}
func (stubMetrics) RecordError(string)                             {}
func (stubMetrics) RecordModelStoreOp(string, string)              {}

func obs(entity string, v float64) *models.Observation {
	return &models.Observation{
		Key:       models.Key{Entity: entity, Metric: "cpu"},
		Timestamp: time.Now(),
		Value:     v,
	}
}

func TestPipelineForwardsValidObservation(t *testing.T) {
	proc := &stubProc{}
	p := NewIngestPipeline(proc, stubMetrics{})

	require.NoError(t, p.Process(context.Background(), obs("web-1", 42.5)))
	assert.Equal(t, 1, proc.count())
}

func TestPipelineRejectsInvalidObservations(t *testing.T) {
	proc := &stubProc{}
	p := NewIngestPipeline(proc, stubMetrics{})
	ctx := context.Background()

	assert.Error(t, p.Process(ctx, nil))
	assert.Error(t, p.Process(ctx, &models.Observation{Timestamp: time.Now(), Value: 1}))
	assert.Error(t, p.Process(ctx, &models.Observation{
		Key:   models.Key{Entity: "web-1", Metric: "cpu"},
		Value: 1,
	}))
	assert.Error(t, p.Process(ctx, obs("web-1", math.NaN())))
	assert.Error(t, p.Process(ctx, obs("web-1", math.Inf(1))))
	assert.Error(t, p.Process(ctx, obs("web-1", -5)))
	assert.Equal(t, 0, proc.count())
}

func TestPipelineThrottlesPerKey(t *testing.T) {
	proc := &stubProc{}
	p := NewIngestPipeline(proc, stubMetrics{}, WithMaxRPS(1))
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, obs("web-1", 1)))
	// immediate second sample for the same key is dropped without error
	require.NoError(t, p.Process(ctx, obs("web-1", 2)))
	assert.Equal(t, 1, proc.count())

	// a different key is not throttled
	require.NoError(t, p.Process(ctx, obs("web-2", 3)))
	assert.Equal(t, 2, proc.count())
}

func TestPipelineBuffersOnDownstreamFailure(t *testing.T) {
	proc := &stubProc{err: errors.New("down")}
	p := NewIngestPipeline(proc, stubMetrics{}, WithBufferSize(10))
	ctx := context.Background()

	err := p.Process(ctx, obs("web-1", 1))
	require.Error(t, err)

	// downstream recovers; the background flusher delivers the buffered sample
	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()

	p.Start(ctx)
	defer p.Stop()

	assert.Eventually(t, func() bool { return proc.count() == 1 }, 2*time.Second, 20*time.Millisecond)
}
