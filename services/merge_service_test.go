package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/keywatch/go-keywatch-client/repository"
	"github.com/keywatch/go-keywatch-client/types"
	"github.com/stretchr/testify/assert"
)

func key(material string) types.TemporaryExposureKey {
	return types.TemporaryExposureKey{
		KeyData:            []byte(material),
		RollingStartNumber: 2650032,
		TransmissionRisk:   types.TransmissionRisk(2),
	}
}

func storedKeys(t *testing.T, store *repository.KeyStore) map[string]bool {
	t.Helper()
	keys, err := store.All(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]bool)
	for _, k := range keys {
		out[string(k.KeyData)] = true
	}
	return out
}

func TestMergeIncremental(t *testing.T) {
	store := repository.NewKeyStore(repository.NewMemoryRepository("test"))
	ms := NewMergeService(store)
	ctx := context.Background()

	_, err := store.InsertIfAbsent(ctx, key("0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}

	batch := &types.KeyBatch{
		Status: "OK",
		Date:   time.Now(),
		List:   types.ListTypePartial,
		Keys: []types.TemporaryExposureKey{
			key("aaaaaaaaaaaaaaaa"),
			key("bbbbbbbbbbbbbbbb"),
		},
		DeletedKeys: []types.TemporaryExposureKey{key("0123456789abcdef")},
	}
	stats, err := ms.Merge(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 1, stats.Removed)

	held := storedKeys(t, store)
	assert.Len(t, held, 2)
	assert.True(t, held["aaaaaaaaaaaaaaaa"])
	assert.True(t, held["bbbbbbbbbbbbbbbb"])
	assert.False(t, held["0123456789abcdef"])
}

func TestMergeIsIdempotent(t *testing.T) {
	store := repository.NewKeyStore(repository.NewMemoryRepository("test"))
	ms := NewMergeService(store)
	ctx := context.Background()

	batch := &types.KeyBatch{
		Status: "OK",
		Date:   time.Now(),
		List:   types.ListTypePartial,
		Keys:   []types.TemporaryExposureKey{key("aaaaaaaaaaaaaaaa")},
	}
	stats, err := ms.Merge(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, stats.Added)

	// replaying the same batch changes nothing
	stats, err = ms.Merge(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 0, stats.Added)
	assert.Len(t, storedKeys(t, store), 1)
}

func TestMergeDeleteOfUnknownKeyIsNoop(t *testing.T) {
	store := repository.NewKeyStore(repository.NewMemoryRepository("test"))
	ms := NewMergeService(store)

	batch := &types.KeyBatch{
		Status:      "OK",
		Date:        time.Now(),
		List:        types.ListTypePartial,
		DeletedKeys: []types.TemporaryExposureKey{key("cccccccccccccccc")},
	}
	stats, err := ms.Merge(context.Background(), batch)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 0, stats.Removed)
}

func TestMergeFullListReplacesLocalSet(t *testing.T) {
	store := repository.NewKeyStore(repository.NewMemoryRepository("test"))
	ms := NewMergeService(store)
	ctx := context.Background()

	for _, m := range []string{"aaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbb", "cccccccccccccccc"} {
		if _, err := store.InsertIfAbsent(ctx, key(m)); err != nil {
			t.Fatal(err)
		}
	}

	batch := &types.KeyBatch{
		Status: "OK",
		Date:   time.Now(),
		List:   types.ListTypeFull,
		Keys: []types.TemporaryExposureKey{
			key("bbbbbbbbbbbbbbbb"),
			key("dddddddddddddddd"),
		},
	}
	stats, err := ms.Merge(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 2, stats.Added)

	held := storedKeys(t, store)
	assert.Len(t, held, 2)
	assert.True(t, held["bbbbbbbbbbbbbbbb"])
	assert.True(t, held["dddddddddddddddd"])
	assert.False(t, held["aaaaaaaaaaaaaaaa"])
}

// flakyRepository fails every write after the first allowedWrites
type flakyRepository struct {
	repository.Repository
	allowedWrites int
	writes        int
}

func (f *flakyRepository) Save(ctx context.Context, id string, doc interface{}) error {
	f.writes++
	if f.writes > f.allowedWrites {
		return types.ErrStorage
	}
	return f.Repository.Save(ctx, id, doc)
}

func (f *flakyRepository) GetAll(ctx context.Context, limit int, skip int) (map[string]json.RawMessage, error) {
	return f.Repository.GetAll(ctx, limit, skip)
}

func TestMergeAbortsOnStorageFailure(t *testing.T) {
	flaky := &flakyRepository{Repository: repository.NewMemoryRepository("test"), allowedWrites: 1}
	store := repository.NewKeyStore(flaky)
	ms := NewMergeService(store)

	batch := &types.KeyBatch{
		Status: "OK",
		Date:   time.Now(),
		List:   types.ListTypePartial,
		Keys: []types.TemporaryExposureKey{
			key("aaaaaaaaaaaaaaaa"),
			key("bbbbbbbbbbbbbbbb"),
			key("cccccccccccccccc"),
		},
	}
	_, err := ms.Merge(context.Background(), batch)
	assert.ErrorIs(t, err, types.ErrStorage)

	// the second insert failed; nothing past it was attempted
	assert.Equal(t, 2, flaky.writes)
}
