package repository

import (
	"context"
	"errors"
	"time"

	"github.com/keywatch/go-keywatch-client/types"
)

// KeyStore keeps the locally held diagnosis keys. Document IDs are derived
// from the key material, so a given key appears in the store at most once.
type KeyStore struct {
	repo Repository
	now  func() time.Time
}

func NewKeyStore(repo Repository) *KeyStore {
	return &KeyStore{repo: repo, now: time.Now}
}

// InsertIfAbsent stores a key on first sight and reports whether it was
// added. An existing record keeps its original ReceivedAt.
func (ks *KeyStore) InsertIfAbsent(ctx context.Context, key types.TemporaryExposureKey) (bool, error) {
	record := types.RemoteKeyRecord{
		Key:        key,
		ReceivedAt: ks.now().UTC(),
	}
	err := ks.repo.Save(ctx, key.ID(), &record)
	if errors.Is(err, types.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the record matching the key material; absence is not an error
func (ks *KeyStore) Remove(ctx context.Context, key types.TemporaryExposureKey) (bool, error) {
	err := ks.repo.Delete(ctx, key.ID())
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes every key record. Used when a full-list response replaces
// the local set.
func (ks *KeyStore) Clear(ctx context.Context) error {
	docs, err := ks.repo.GetAll(ctx, 0, 0)
	if err != nil {
		return err
	}
	for id := range docs {
		if dErr := ks.repo.Delete(ctx, id); dErr != nil && !errors.Is(dErr, types.ErrNotFound) {
			return dErr
		}
	}
	return nil
}

// All returns every locally held key
func (ks *KeyStore) All(ctx context.Context) ([]types.TemporaryExposureKey, error) {
	records, err := ks.Records(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]types.TemporaryExposureKey, 0, len(records))
	for _, record := range records {
		keys = append(keys, record.Key)
	}
	return keys, nil
}

// Records returns every key record with its provenance
func (ks *KeyStore) Records(ctx context.Context) ([]types.RemoteKeyRecord, error) {
	docs, err := ks.repo.GetAll(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	records := make([]types.RemoteKeyRecord, 0, len(docs))
	for _, raw := range docs {
		var record types.RemoteKeyRecord
		if mErr := MapToObject(raw, &record); mErr != nil {
			return nil, mErr
		}
		records = append(records, record)
	}
	return records, nil
}
