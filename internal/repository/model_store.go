package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	applogger "LoadCast/pkg/logger"
)

const defaultModelCacheSize = 256

// CompressedModelStore implements ModelStore on any BlobStore. Models
// travel as zstd-compressed JSON; decoded models sit in a bounded LRU so
// repeated forecasts for hot keys skip the decompress path.
//
// Writes per key are linearized and version-guarded: a model trained on
// an older data window never overwrites a newer one.
type CompressedModelStore struct {
	blobs   domrepo.BlobStore
	cache   *lru.Cache[string, *models.TrainedModel]
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	l       *applogger.Logger

	mu sync.Mutex // linearizes Save/Delete/Prune
}

func NewCompressedModelStore(blobs domrepo.BlobStore, cacheSize int) (*CompressedModelStore, error) {
	if cacheSize <= 0 {
		cacheSize = defaultModelCacheSize
	}
	cache, err := lru.New[string, *models.TrainedModel](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("model cache: %w", err)
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &CompressedModelStore{
		blobs:   blobs,
		cache:   cache,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

var _ domrepo.ModelStore = (*CompressedModelStore)(nil)

// SetLogger injects a structured logger.
func (s *CompressedModelStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CompressedModelStore) Save(ctx context.Context, model *models.TrainedModel) (bool, error) {
	if model == nil {
		return false, fmt.Errorf("nil model")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	storageKey := model.Key.String()
	existing, ok, err := s.load(ctx, storageKey)
	if err != nil {
		return false, err
	}
	if ok && model.WindowEnd.Before(existing.WindowEnd) {
		if s.l != nil {
			s.l.Info("model save rejected by version guard",
				applogger.String("key", storageKey),
				applogger.String("incoming_window_end", model.WindowEnd.Format(time.RFC3339)),
				applogger.String("stored_window_end", existing.WindowEnd.Format(time.RFC3339)),
			)
		}
		return false, nil
	}

	raw, err := json.Marshal(model)
	if err != nil {
		return false, fmt.Errorf("marshal model %s: %w", storageKey, err)
	}
	compressed := s.encoder.EncodeAll(raw, nil)
	if err := s.blobs.Save(ctx, storageKey, compressed); err != nil {
		return false, &models.StorageUnavailableError{Op: "save", Err: err}
	}
	s.cache.Add(storageKey, model)
	return true, nil
}

func (s *CompressedModelStore) Load(ctx context.Context, key models.Key) (*models.TrainedModel, bool, error) {
	storageKey := key.String()
	if model, ok := s.cache.Get(storageKey); ok {
		return model, true, nil
	}
	model, ok, err := s.load(ctx, storageKey)
	if err != nil || !ok {
		return nil, false, err
	}
	s.cache.Add(storageKey, model)
	return model, true, nil
}

func (s *CompressedModelStore) load(ctx context.Context, storageKey string) (*models.TrainedModel, bool, error) {
	compressed, ok, err := s.blobs.Load(ctx, storageKey)
	if err != nil {
		return nil, false, &models.StorageUnavailableError{Op: "load", Err: err}
	}
	if !ok {
		return nil, false, nil
	}
	raw, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompress model %s: %w", storageKey, err)
	}
	var model models.TrainedModel
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, false, fmt.Errorf("unmarshal model %s: %w", storageKey, err)
	}
	return &model, true, nil
}

func (s *CompressedModelStore) Delete(ctx context.Context, key models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	storageKey := key.String()
	s.cache.Remove(storageKey)
	if err := s.blobs.Delete(ctx, storageKey); err != nil {
		return &models.StorageUnavailableError{Op: "delete", Err: err}
	}
	return nil
}

// PruneOlderThan removes models trained before cutoff. Housekeeping for
// keys that stopped reporting; runs off the hot path.
func (s *CompressedModelStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.blobs.Keys(ctx)
	if err != nil {
		return 0, &models.StorageUnavailableError{Op: "prune", Err: err}
	}
	pruned := 0
	for _, storageKey := range keys {
		model, ok, err := s.load(ctx, storageKey)
		if err != nil || !ok {
			continue
		}
		if model.TrainedAt.Before(cutoff) {
			s.cache.Remove(storageKey)
			if err := s.blobs.Delete(ctx, storageKey); err != nil {
				return pruned, &models.StorageUnavailableError{Op: "prune", Err: err}
			}
			pruned++
		}
	}
	if s.l != nil && pruned > 0 {
		s.l.Info("pruned stale models", applogger.Int("count", pruned))
	}
	return pruned, nil
}
