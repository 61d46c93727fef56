package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/keywatch/go-keywatch-client/types"
)

// MemoryRepository is an in-memory implementation of the Repository
// interface, used in tests and in single-process deployments that have no
// CouchDB nearby.
type MemoryRepository struct {
	dbName string
	docs   map[string]json.RawMessage
	mu     sync.RWMutex
}

func NewMemoryRepository(dbName string) Repository {
	return &MemoryRepository{
		dbName: dbName,
		docs:   make(map[string]json.RawMessage),
	}
}

func (m *MemoryRepository) GetDBName() string {
	return m.dbName
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return doc, nil
}

func (m *MemoryRepository) GetAll(ctx context.Context, limit int, skip int) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]json.RawMessage)
	for i, id := range ids {
		if i < skip {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out[id] = m.docs[id]
	}
	return out, nil
}

func (m *MemoryRepository) Save(ctx context.Context, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", err.Error(), types.ErrStorage)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[id]; exists {
		return types.ErrConflict
	}
	m.docs[id] = body
	return nil
}

func (m *MemoryRepository) Update(ctx context.Context, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", err.Error(), types.ErrStorage)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[id]; !exists {
		return types.ErrNotFound
	}
	m.docs[id] = body
	return nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[id]; !exists {
		return types.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}
