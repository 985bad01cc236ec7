// Package memory is an in-memory ledger used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"carteira/internal/core"
	ports "carteira/internal/ledger"
)

type Store struct {
	mu   sync.Mutex
	rows map[int64]core.Purchase
}

var (
	_ ports.PurchaseUpserter = (*Store)(nil)
	_ ports.PurchaseDeleter  = (*Store)(nil)
)

func New() *Store {
	return &Store{rows: make(map[int64]core.Purchase)}
}

func (s *Store) UpsertPurchase(_ context.Context, p core.Purchase) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[p.ID] = p
	return fmt.Sprintf("mem:%d", p.ID), nil
}

func (s *Store) DeletePurchase(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// Get returns the mirrored snapshot for assertions in tests.
func (s *Store) Get(id int64) (core.Purchase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	return p, ok
}

// Len returns the number of mirrored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
