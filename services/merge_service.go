package services

import (
	"context"

	"github.com/go-kit/log/level"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/repository"
	"github.com/keywatch/go-keywatch-client/types"
)

// MergeService reconciles a fetched batch against the local key store.
// Inserts are idempotent (first-seen timestamp preserved), deletions of
// unknown keys are silently skipped, and any storage failure abandons the
// merge so the watermark is never advanced past a partial batch.
type MergeService struct {
	keys *repository.KeyStore
}

func NewMergeService(keys *repository.KeyStore) *MergeService {
	return &MergeService{keys: keys}
}

// Keys exposes the underlying store for the detection stage
func (ms *MergeService) Keys() *repository.KeyStore {
	return ms.keys
}

// Merge applies one batch to the local store
func (ms *MergeService) Merge(ctx context.Context, batch *types.KeyBatch) (*types.MergeStats, error) {
	stats := &types.MergeStats{}

	// a full list replaces the local set; the flag comes from the adapter,
	// it is never inferred from the payload contents
	if batch.List == types.ListTypeFull {
		if err := ms.keys.Clear(ctx); err != nil {
			return nil, err
		}
	}

	for _, key := range batch.Keys {
		added, err := ms.keys.InsertIfAbsent(ctx, key)
		if err != nil {
			return nil, err
		}
		if added {
			stats.Added++
		}
	}

	for _, key := range batch.DeletedKeys {
		removed, err := ms.keys.Remove(ctx, key)
		if err != nil {
			return nil, err
		}
		if removed {
			stats.Removed++
		}
	}

	level.Debug(global.Logger).Log("message", "merge applied", "list", batch.List, "added", stats.Added, "removed", stats.Removed)
	return stats, nil
}
