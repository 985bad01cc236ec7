package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"carteira/internal/core"
)

// purchaseStore is the surface shared by the sqlite and memory repositories.
type purchaseStore interface {
	CreatePurchase(ctx context.Context, p core.Purchase) (core.Purchase, error)
	GetPurchase(ctx context.Context, id int64) (core.Purchase, error)
	ListPurchases(ctx context.Context) ([]core.Purchase, error)
	UpdateProgress(ctx context.Context, id int64, fromPaid, toPaid int, isPaid bool) error
	SoftDeletePurchase(ctx context.Context, id int64) error
	GetPendingSync(ctx context.Context, limit int) ([]PendingSyncPurchase, error)
	MarkSynced(ctx context.Context, id int64) error
	Close() error
}

func samplePurchase() core.Purchase {
	return core.Purchase{
		PersonName:        "Carlos Silva",
		ItemName:          "iPhone 14 Pro",
		Principal:         core.Money{Cents: 45000},
		InstallmentsTotal: 10,
		PurchaseDate:      core.NewDate(2023, 10, 12),
		StartPaymentDate:  core.NewDate(2023, 11, 1),
	}
}

func withStores(t *testing.T, fn func(t *testing.T, store purchaseStore)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("open sqlite repository: %v", err)
		}
		defer repo.Close()
		fn(t, repo)
	})

	t.Run("memory", func(t *testing.T) {
		repo := NewMemoryRepository()
		defer repo.Close()
		fn(t, repo)
	})
}

func TestCreateAndGetPurchase(t *testing.T) {
	withStores(t, func(t *testing.T, store purchaseStore) {
		ctx := context.Background()

		created, err := store.CreatePurchase(ctx, samplePurchase())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if created.ID == 0 {
			t.Fatal("expected assigned ID")
		}
		if created.InstallmentsPaid != 0 {
			t.Fatalf("new purchase starts with %d paid", created.InstallmentsPaid)
		}

		got, err := store.GetPurchase(ctx, created.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.PersonName != "Carlos Silva" || got.ItemName != "iPhone 14 Pro" {
			t.Errorf("round trip mismatch: %+v", got)
		}
		if got.Principal.Cents != 45000 || got.InstallmentsTotal != 10 {
			t.Errorf("amounts mismatch: %+v", got)
		}
		if got.StartPaymentDate.Period() != (core.Period{Year: 2023, Month: 11}) {
			t.Errorf("start period = %v", got.StartPaymentDate.Period())
		}

		if _, err := store.GetPurchase(ctx, created.ID+999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("missing purchase: got %v, want ErrNotFound", err)
		}
	})
}

func TestListPurchasesNewestFirst(t *testing.T) {
	withStores(t, func(t *testing.T, store purchaseStore) {
		ctx := context.Background()

		first, _ := store.CreatePurchase(ctx, samplePurchase())
		p := samplePurchase()
		p.PersonName = "Mariana Costa"
		second, err := store.CreatePurchase(ctx, p)
		if err != nil {
			t.Fatalf("create second: %v", err)
		}

		list, err := store.ListPurchases(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("len = %d, want 2", len(list))
		}
		if list[0].ID != second.ID || list[1].ID != first.ID {
			t.Errorf("order = %d, %d; want newest first", list[0].ID, list[1].ID)
		}
	})
}

func TestUpdateProgressCompareAndSet(t *testing.T) {
	withStores(t, func(t *testing.T, store purchaseStore) {
		ctx := context.Background()

		created, _ := store.CreatePurchase(ctx, samplePurchase())

		if err := store.UpdateProgress(ctx, created.ID, 0, 1, false); err != nil {
			t.Fatalf("first update: %v", err)
		}

		// A second writer holding the same stale snapshot must be rejected.
		err := store.UpdateProgress(ctx, created.ID, 0, 1, false)
		if !errors.Is(err, ErrStaleSnapshot) {
			t.Fatalf("stale update: got %v, want ErrStaleSnapshot", err)
		}

		got, _ := store.GetPurchase(ctx, created.ID)
		if got.InstallmentsPaid != 1 {
			t.Fatalf("InstallmentsPaid = %d, want 1 (no lost or doubled increment)", got.InstallmentsPaid)
		}

		if err := store.UpdateProgress(ctx, created.ID+999, 0, 1, false); !errors.Is(err, ErrNotFound) {
			t.Fatalf("missing purchase: got %v, want ErrNotFound", err)
		}
	})
}

func TestSoftDeletePurchase(t *testing.T) {
	withStores(t, func(t *testing.T, store purchaseStore) {
		ctx := context.Background()

		created, _ := store.CreatePurchase(ctx, samplePurchase())
		if err := store.SoftDeletePurchase(ctx, created.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}

		if _, err := store.GetPurchase(ctx, created.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("deleted purchase still visible: %v", err)
		}
		list, _ := store.ListPurchases(ctx)
		if len(list) != 0 {
			t.Fatalf("deleted purchase still listed: %d items", len(list))
		}

		if err := store.SoftDeletePurchase(ctx, created.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("double delete: got %v, want ErrNotFound", err)
		}
	})
}

func TestPendingSyncLifecycle(t *testing.T) {
	withStores(t, func(t *testing.T, store purchaseStore) {
		ctx := context.Background()

		created, _ := store.CreatePurchase(ctx, samplePurchase())

		pending, err := store.GetPendingSync(ctx, 10)
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if len(pending) != 1 || pending[0].ID != created.ID {
			t.Fatalf("pending = %+v, want the new purchase", pending)
		}

		if err := store.MarkSynced(ctx, created.ID); err != nil {
			t.Fatalf("mark synced: %v", err)
		}
		pending, _ = store.GetPendingSync(ctx, 10)
		if len(pending) != 0 {
			t.Fatalf("still pending after sync: %+v", pending)
		}

		// A payment makes the ledger copy stale again.
		if err := store.UpdateProgress(ctx, created.ID, 0, 1, false); err != nil {
			t.Fatalf("update: %v", err)
		}
		pending, _ = store.GetPendingSync(ctx, 10)
		if len(pending) != 1 {
			t.Fatalf("payment did not re-queue sync: %+v", pending)
		}
	})
}
