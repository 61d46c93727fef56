package repository

import (
	"context"
	"testing"

	"github.com/keywatch/go-keywatch-client/types"
	"github.com/stretchr/testify/assert"
)

type testDoc struct {
	Name string `json:"name"`
}

func TestMemorySaveAndGet(t *testing.T) {
	repo := NewMemoryRepository("test")
	ctx := context.Background()

	if err := repo.Save(ctx, "a", &testDoc{Name: "first"}); err != nil {
		t.Fatal(err)
	}
	raw, err := repo.GetByID(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	var doc testDoc
	if err := MapToObject(raw, &doc); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "first", doc.Name)
}

func TestMemorySaveConflict(t *testing.T) {
	repo := NewMemoryRepository("test")
	ctx := context.Background()

	if err := repo.Save(ctx, "a", &testDoc{Name: "first"}); err != nil {
		t.Fatal(err)
	}
	err := repo.Save(ctx, "a", &testDoc{Name: "second"})
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestMemoryUpdateAndDelete(t *testing.T) {
	repo := NewMemoryRepository("test")
	ctx := context.Background()

	assert.ErrorIs(t, repo.Update(ctx, "a", &testDoc{}), types.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "a"), types.ErrNotFound)

	if err := repo.Save(ctx, "a", &testDoc{Name: "first"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Update(ctx, "a", &testDoc{Name: "updated"}); err != nil {
		t.Fatal(err)
	}
	raw, err := repo.GetByID(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	var doc testDoc
	if err := MapToObject(raw, &doc); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "updated", doc.Name)

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	_, err = repo.GetByID(ctx, "a")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMemoryGetAllPaging(t *testing.T) {
	repo := NewMemoryRepository("test")
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := repo.Save(ctx, id, &testDoc{Name: id}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.GetAll(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, all, 4)

	page, err := repo.GetAll(ctx, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, page, 2)
	assert.Contains(t, page, "b")
	assert.Contains(t, page, "c")
}
