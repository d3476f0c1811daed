package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/models"
)

type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (s *memBlobStore) Save(ctx context.Context, key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.blobs[key] = append([]byte{}, blob...)
	return nil
}

func (s *memBlobStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	blob, ok := s.blobs[key]
	return blob, ok, nil
}

func (s *memBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.blobs, key)
	return nil
}

func (s *memBlobStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *memBlobStore) Close() error { return nil }

func testModel(entity string, windowEnd time.Time) *models.TrainedModel {
	return &models.TrainedModel{
		Key:             models.Key{Entity: entity, Metric: "cpu"},
		Hyperparameters: models.DefaultHyperparameters(),
		TrainedAt:       windowEnd.Add(time.Minute),
		WindowStart:     windowEnd.Add(-24 * time.Hour),
		WindowEnd:       windowEnd,
		Quality:         models.QualityMetrics{MAPE: 3.2, MAE: 1.1, RMSE: 1.9},
		DataPoints:      96,
		Blob:            []byte(`{"coef":[1.5,0.25],"sigma":2.0}`),
	}
}

func TestModelStoreRoundTrip(t *testing.T) {
	store, err := NewCompressedModelStore(newMemBlobStore(), 8)
	require.NoError(t, err)

	windowEnd := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	model := testModel("web-01", windowEnd)

	saved, err := store.Save(context.Background(), model)
	require.NoError(t, err)
	assert.True(t, saved)

	loaded, ok, err := store.Load(context.Background(), model.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.Key, loaded.Key)
	assert.Equal(t, model.Blob, loaded.Blob)
	assert.Equal(t, model.Quality, loaded.Quality)
	assert.True(t, model.WindowEnd.Equal(loaded.WindowEnd))
}

func TestModelStoreMiss(t *testing.T) {
	store, err := NewCompressedModelStore(newMemBlobStore(), 8)
	require.NoError(t, err)

	_, ok, err := store.Load(context.Background(), models.Key{Entity: "ghost", Metric: "cpu"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestModelStoreVersionGuard(t *testing.T) {
	store, err := NewCompressedModelStore(newMemBlobStore(), 8)
	require.NoError(t, err)

	newer := testModel("web-01", time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC))
	older := testModel("web-01", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	saved, err := store.Save(context.Background(), newer)
	require.NoError(t, err)
	require.True(t, saved)

	// a stale run's result must not overwrite the newer window
	saved, err = store.Save(context.Background(), older)
	require.NoError(t, err)
	assert.False(t, saved)

	loaded, ok, err := store.Load(context.Background(), newer.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, newer.WindowEnd.Equal(loaded.WindowEnd))

	// an equal window is a legitimate re-save
	saved, err = store.Save(context.Background(), testModel("web-01", newer.WindowEnd))
	require.NoError(t, err)
	assert.True(t, saved)
}

func TestModelStoreMapsStorageFailure(t *testing.T) {
	blobs := newMemBlobStore()
	store, err := NewCompressedModelStore(blobs, 8)
	require.NoError(t, err)

	blobs.err = errors.New("disk gone")

	_, err = store.Save(context.Background(), testModel("web-01", time.Now().UTC()))
	assert.True(t, models.IsStorageUnavailable(err))

	_, _, err = store.Load(context.Background(), models.Key{Entity: "web-01", Metric: "cpu"})
	assert.True(t, models.IsStorageUnavailable(err))
}

func TestModelStoreDelete(t *testing.T) {
	store, err := NewCompressedModelStore(newMemBlobStore(), 8)
	require.NoError(t, err)

	model := testModel("web-01", time.Now().UTC())
	_, err = store.Save(context.Background(), model)
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), model.Key))

	_, ok, err := store.Load(context.Background(), model.Key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestModelStorePruneOlderThan(t *testing.T) {
	store, err := NewCompressedModelStore(newMemBlobStore(), 8)
	require.NoError(t, err)

	cutoff := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	old := testModel("web-old", cutoff.Add(-48*time.Hour))
	fresh := testModel("web-new", cutoff.Add(48*time.Hour))

	_, err = store.Save(context.Background(), old)
	require.NoError(t, err)
	_, err = store.Save(context.Background(), fresh)
	require.NoError(t, err)

	pruned, err := store.PruneOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	_, ok, err := store.Load(context.Background(), old.Key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Load(context.Background(), fresh.Key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBadgerBlobStoreRoundTrip(t *testing.T) {
	store, err := NewBadgerBlobStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "web-01|cpu", []byte("blob-a")))
	require.NoError(t, store.Save(ctx, "web-02|mem", []byte("blob-b")))

	blob, ok, err := store.Load(ctx, "web-01|cpu")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("blob-a"), blob)

	_, ok, err = store.Load(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"web-01|cpu", "web-02|mem"}, keys)

	require.NoError(t, store.Delete(ctx, "web-01|cpu"))
	_, ok, err = store.Load(ctx, "web-01|cpu")
	require.NoError(t, err)
	assert.False(t, ok)
}
