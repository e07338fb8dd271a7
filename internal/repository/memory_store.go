package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"Gavel/internal/auctionerrors"
	domrepo "Gavel/internal/domain/repository"
)

// MemoryStore is a concurrency-safe in-memory implementation of the
// transactional Store boundary. Transactions stage writes and apply them
// atomically under a single writer lock.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]domrepo.Entity
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]domrepo.Entity)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (domrepo.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.m[id]
	if !ok {
		return nil, fmt.Errorf("store get %s: %w", id, auctionerrors.ErrNotFound)
	}
	return e, nil
}

func (s *MemoryStore) Put(ctx context.Context, e domrepo.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[e.EntityID()] = e
	return nil
}

// memoryTx stages writes against a snapshot of the store.
type memoryTx struct {
	store   *MemoryStore
	staged  map[string]domrepo.Entity
	deleted map[string]bool
}

func (t *memoryTx) Get(id string) (domrepo.Entity, error) {
	if t.deleted[id] {
		return nil, fmt.Errorf("tx get %s: %w", id, auctionerrors.ErrNotFound)
	}
	if e, ok := t.staged[id]; ok {
		return e, nil
	}
	e, ok := t.store.m[id]
	if !ok {
		return nil, fmt.Errorf("tx get %s: %w", id, auctionerrors.ErrNotFound)
	}
	return e, nil
}

func (t *memoryTx) Put(e domrepo.Entity) error {
	id := e.EntityID()
	delete(t.deleted, id)
	t.staged[id] = e
	return nil
}

func (t *memoryTx) Delete(id string) error {
	delete(t.staged, id)
	t.deleted[id] = true
	return nil
}

func (t *memoryTx) List(prefix string) ([]domrepo.Entity, error) {
	out := make([]domrepo.Entity, 0)
	for id, e := range t.store.m {
		if t.deleted[id] {
			continue
		}
		if _, staged := t.staged[id]; staged {
			continue
		}
		if strings.HasPrefix(id, prefix) {
			out = append(out, e)
		}
	}
	for id, e := range t.staged {
		if strings.HasPrefix(id, prefix) {
			out = append(out, e)
		}
	}
	return out, nil
}

// RunInTransaction executes fn atomically. Staged writes are applied only
// when fn returns nil; any error discards them. Transactions serialize on
// the store's writer lock, so ErrConcurrentModification never arises here.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx domrepo.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:   s,
		staged:  make(map[string]domrepo.Entity),
		deleted: make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for id := range tx.deleted {
		delete(s.m, id)
	}
	for id, e := range tx.staged {
		s.m[id] = e
	}
	return nil
}

var _ domrepo.Store = (*MemoryStore)(nil)
