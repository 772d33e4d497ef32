package deid

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps mapping sets in process memory. Used in
// development and tests; everything is lost on restart.
type MemoryRepository struct {
	mu   sync.RWMutex
	sets map[uuid.UUID][]MappingEntry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sets: make(map[uuid.UUID][]MappingEntry)}
}

func (r *MemoryRepository) Put(_ context.Context, id uuid.UUID, entries []MappingEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sets[id]; ok {
		return ErrDuplicateID
	}
	cp := make([]MappingEntry, len(entries))
	copy(cp, entries)
	r.sets[id] = cp
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) ([]MappingEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries, ok := r.sets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]MappingEntry, len(entries))
	copy(cp, entries)
	return cp, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sets[id]; !ok {
		return ErrNotFound
	}
	delete(r.sets, id)
	return nil
}
