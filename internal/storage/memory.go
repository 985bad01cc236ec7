package storage

import (
	"context"
	"sync"
	"time"

	"carteira/internal/core"
)

// MemoryRepository is an in-memory purchase store with the same contract as
// the SQLite repository, used for tests and the "memory" backend.
type MemoryRepository struct {
	mu      sync.Mutex
	nextID  int64
	order   []int64 // newest first
	items   map[int64]core.Purchase
	pending map[int64]bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:  1,
		items:   make(map[int64]core.Purchase),
		pending: make(map[int64]bool),
	}
}

func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) CreatePurchase(_ context.Context, p core.Purchase) (core.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.ID = r.nextID
	r.nextID++
	p.InstallmentsPaid = 0
	r.items[p.ID] = p
	r.order = append([]int64{p.ID}, r.order...)
	r.pending[p.ID] = true
	return p, nil
}

func (r *MemoryRepository) GetPurchase(_ context.Context, id int64) (core.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return core.Purchase{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) ListPurchases(_ context.Context) ([]core.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]core.Purchase, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out, nil
}

func (r *MemoryRepository) UpdateProgress(_ context.Context, id int64, fromPaid, toPaid int, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if p.InstallmentsPaid != fromPaid {
		return ErrStaleSnapshot
	}
	p.InstallmentsPaid = toPaid
	r.items[id] = p
	r.pending[id] = true
	return nil
}

func (r *MemoryRepository) SoftDeletePurchase(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	delete(r.pending, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryRepository) GetPendingSync(_ context.Context, limit int) ([]PendingSyncPurchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []PendingSyncPurchase
	for id, pending := range r.pending {
		if !pending || len(out) >= limit {
			continue
		}
		out = append(out, PendingSyncPurchase{ID: id, Version: 1, CreatedAt: time.Now()})
	}
	return out, nil
}

func (r *MemoryRepository) MarkSynced(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[id] = false
	return nil
}

func (r *MemoryRepository) MarkSyncError(_ context.Context, id int64) error {
	return nil
}
