// Package worker mirrors purchase rows from SQLite to the ledger backup.
// AMQP messages drive the normal path; a periodic catch-up sweep covers
// messages lost while the worker was down.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/storage"
)

// SyncStore is the storage surface the worker needs.
type SyncStore interface {
	GetPurchase(ctx context.Context, id int64) (core.Purchase, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSyncPurchase, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker handles synchronization of purchases from SQLite to the ledger.
type SyncWorker struct {
	store     SyncStore
	upserter  ledger.PurchaseUpserter
	deleter   ledger.PurchaseDeleter
	batchSize int
}

func NewSyncWorker(store SyncStore, upserter ledger.PurchaseUpserter, deleter ledger.PurchaseDeleter, batchSize int) *SyncWorker {
	return &SyncWorker{
		store:     store,
		upserter:  upserter,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single purchase sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.PurchaseSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"purchase_id", msg.ID,
		"version", msg.Version)

	purchase, err := w.store.GetPurchase(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted before the sync ran; the delete message will clean the
		// ledger row.
		slog.WarnContext(ctx, "Purchase gone before sync", "purchase_id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get purchase from storage: %w", err)
	}

	return w.syncToLedger(ctx, purchase)
}

// HandleDeleteMessage processes a single purchase delete message from AMQP.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.PurchaseDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "purchase_id", msg.ID)

	if w.deleter == nil {
		slog.WarnContext(ctx, "No ledger deleter configured, skipping row removal",
			"purchase_id", msg.ID)
		return nil
	}

	if err := w.deleter.DeletePurchase(ctx, msg.ID); err != nil {
		return fmt.Errorf("delete ledger row: %w", err)
	}

	slog.InfoContext(ctx, "Ledger row removed",
		"purchase_id", msg.ID,
		"person", msg.PersonName,
		"item", msg.ItemName)
	return nil
}

// ProcessPendingPurchases mirrors any purchases whose ledger copy is out of
// date. This is the backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingPurchases(ctx context.Context) error {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck drains pending purchases at worker startup with a larger
// batch, recovering from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.store.GetPendingSync(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending purchases for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending purchases found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending purchases on startup, processing...",
		"count", len(pending))
	return w.syncBatch(ctx, pending)
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) error {
	pending, err := w.store.GetPendingSync(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending purchases: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending purchases", "count", len(pending))
	return w.syncBatch(ctx, pending)
}

func (w *SyncWorker) syncBatch(ctx context.Context, pending []storage.PendingSyncPurchase) error {
	for _, item := range pending {
		purchase, err := w.store.GetPurchase(ctx, item.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get purchase", "purchase_id", item.ID, "error", err)
			if err := w.store.MarkSyncError(ctx, item.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "purchase_id", item.ID, "error", err)
			}
			continue
		}

		if err := w.syncToLedger(ctx, purchase); err != nil {
			slog.ErrorContext(ctx, "Failed to sync purchase", "purchase_id", item.ID, "error", err)
			continue
		}
	}
	return nil
}

func (w *SyncWorker) syncToLedger(ctx context.Context, p core.Purchase) error {
	if w.upserter == nil {
		slog.WarnContext(ctx, "No ledger upserter configured, skipping sync",
			"purchase_id", p.ID)
		return nil
	}

	ref, err := w.upserter.UpsertPurchase(ctx, p)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, p.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "purchase_id", p.ID, "error", markErr)
		}
		return fmt.Errorf("upsert ledger row: %w", err)
	}

	if err := w.store.MarkSynced(ctx, p.ID); err != nil {
		return fmt.Errorf("mark purchase synced: %w", err)
	}

	slog.InfoContext(ctx, "Purchase synced to ledger",
		"purchase_id", p.ID,
		"ledger_ref", ref,
		"installments_paid", p.InstallmentsPaid)
	return nil
}
