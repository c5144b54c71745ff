package recordstore

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory, in insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	records []decision.Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(seed ...decision.Record) *MemoryStore {
	return &MemoryStore{records: append([]decision.Record(nil), seed...)}
}

func (m *MemoryStore) Create(ctx context.Context, f decision.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r := f.Apply(decision.Record{ID: uuid.NewString()})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return r.ID, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]decision.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]decision.Record(nil), m.records...), nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, f decision.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i] = f.Apply(m.records[i])
			return nil
		}
	}
	return decision.ErrNotFound
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return decision.ErrNotFound
}

func (m *MemoryStore) Link(string) string { return "" }
