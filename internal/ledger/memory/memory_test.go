package memory

import (
	"context"
	"testing"

	"carteira/internal/core"
)

func TestUpsertAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := core.Purchase{
		ID:                1,
		PersonName:        "Carlos Silva",
		ItemName:          "Fone",
		Principal:         core.Money{Cents: 5000},
		InstallmentsTotal: 2,
	}

	ref, err := s.UpsertPurchase(ctx, p)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if ref == "" {
		t.Error("expected a row reference")
	}

	// Upsert with new progress replaces the row, it does not duplicate.
	p.InstallmentsPaid = 1
	if _, err := s.UpsertPurchase(ctx, p); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	got, ok := s.Get(1)
	if !ok || got.InstallmentsPaid != 1 {
		t.Fatalf("Get = %+v, ok=%v", got, ok)
	}

	if err := s.DeletePurchase(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("row not deleted")
	}

	// Deleting a missing row is a no-op.
	if err := s.DeletePurchase(ctx, 42); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}
