// Package services orchestrates purchase operations across the local store
// and the AMQP sync queue. Every mutation is a command/result pair: the
// caller gets the new Purchase snapshot (or a typed error) back, so the host
// re-renders from the return value instead of re-querying by side effect.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/storage"
)

// casRetries bounds how often a payment retries after losing a
// compare-and-set race before giving up.
const casRetries = 3

// PurchaseStore is the persistence surface the service needs. Both the
// SQLite and the in-memory repository satisfy it.
type PurchaseStore interface {
	CreatePurchase(ctx context.Context, p core.Purchase) (core.Purchase, error)
	GetPurchase(ctx context.Context, id int64) (core.Purchase, error)
	ListPurchases(ctx context.Context) ([]core.Purchase, error)
	UpdateProgress(ctx context.Context, id int64, fromPaid, toPaid int, isPaid bool) error
	SoftDeletePurchase(ctx context.Context, id int64) error
	Close() error
}

// EventPublisher queues ledger sync events. Nil-safe: the service skips
// publishing when no publisher is configured.
type EventPublisher interface {
	PublishPurchaseSync(ctx context.Context, id, version int64) error
	PublishPurchaseDelete(ctx context.Context, msg *amqp.PurchaseDeleteMessage) error
	Close() error
}

// PurchaseService orchestrates purchase operations across storage and AMQP.
type PurchaseService struct {
	store     PurchaseStore
	publisher EventPublisher
}

func NewPurchaseService(store PurchaseStore, publisher EventPublisher) *PurchaseService {
	return &PurchaseService{
		store:     store,
		publisher: publisher,
	}
}

// Register validates and persists a new purchase and queues its first ledger
// sync. The returned snapshot carries the assigned ID.
func (s *PurchaseService) Register(ctx context.Context, p core.Purchase) (core.Purchase, error) {
	p.InstallmentsPaid = 0
	if err := p.Validate(); err != nil {
		return core.Purchase{}, err
	}

	created, err := s.store.CreatePurchase(ctx, p)
	if err != nil {
		return core.Purchase{}, fmt.Errorf("save purchase: %w", err)
	}

	// Publish async sync message (non-blocking, version 1 for new purchase)
	if err := s.publishSync(ctx, created.ID, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"purchase_id", created.ID, "error", err)
		// Don't fail the request - purchase is saved locally
	}

	return created, nil
}

// Get returns one purchase snapshot.
func (s *PurchaseService) Get(ctx context.Context, id int64) (core.Purchase, error) {
	return s.store.GetPurchase(ctx, id)
}

// ListAll returns every live purchase, newest first.
func (s *PurchaseService) ListAll(ctx context.Context) ([]core.Purchase, error) {
	return s.store.ListPurchases(ctx)
}

// MarkInstallmentPaid settles the next unpaid installment of a purchase and
// returns the updated snapshot. Concurrent payments against the same
// purchase serialize through the store's compare-and-set: a lost race is
// retried from a fresh snapshot, so increments are never lost or doubled.
// Returns core.ErrAlreadySettled when the purchase is already paid off.
func (s *PurchaseService) MarkInstallmentPaid(ctx context.Context, id int64) (core.Purchase, error) {
	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		p, err := s.store.GetPurchase(ctx, id)
		if err != nil {
			return core.Purchase{}, fmt.Errorf("load purchase: %w", err)
		}

		updated, err := core.MarkNextInstallmentPaid(p)
		if err != nil {
			// Already settled: surface the typed error, state unchanged.
			return p, err
		}

		err = s.store.UpdateProgress(ctx, id, p.InstallmentsPaid, updated.InstallmentsPaid, updated.IsPaid())
		if err == nil {
			if pubErr := s.publishSync(ctx, id, int64(updated.InstallmentsPaid)); pubErr != nil {
				slog.ErrorContext(ctx, "Failed to publish sync message",
					"purchase_id", id, "error", pubErr)
			}
			return updated, nil
		}
		if !errors.Is(err, storage.ErrStaleSnapshot) {
			return core.Purchase{}, fmt.Errorf("update progress: %w", err)
		}

		lastErr = err
		slog.WarnContext(ctx, "Payment raced with a concurrent update, retrying",
			"purchase_id", id, "attempt", attempt+1)
	}
	return core.Purchase{}, fmt.Errorf("mark installment paid: %w", lastErr)
}

// Delete removes a purchase and queues removal of its ledger row.
func (s *PurchaseService) Delete(ctx context.Context, id int64) error {
	// Load first: the delete message must carry row-identifying data.
	p, err := s.store.GetPurchase(ctx, id)
	if err != nil {
		return fmt.Errorf("load purchase: %w", err)
	}

	if err := s.store.SoftDeletePurchase(ctx, id); err != nil {
		return fmt.Errorf("soft delete purchase: %w", err)
	}

	msg := amqp.NewPurchaseDeleteMessage(p.ID, p.PersonName, p.ItemName, p.Principal.Cents)
	if err := s.publishDelete(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"purchase_id", id, "error", err)
		// Don't fail the request - purchase is deleted locally
	}

	return nil
}

// SummaryForPeriod reconciles all purchases against one reporting period:
// the wallet list and the "Total a Receber" figure come from the same
// summary.
func (s *PurchaseService) SummaryForPeriod(ctx context.Context, period core.Period) (core.PeriodSummary, error) {
	if err := period.Validate(); err != nil {
		return core.PeriodSummary{}, err
	}

	purchases, err := s.store.ListPurchases(ctx)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("list purchases: %w", err)
	}

	return core.Summarize(purchases, period), nil
}

// Schedule returns a purchase with its full installment expansion.
func (s *PurchaseService) Schedule(ctx context.Context, id int64) (core.Purchase, []core.InstallmentDescriptor, error) {
	p, err := s.store.GetPurchase(ctx, id)
	if err != nil {
		return core.Purchase{}, nil, err
	}
	return p, core.FullSchedule(p), nil
}

func (s *PurchaseService) publishSync(ctx context.Context, id, version int64) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP publisher not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishPurchaseSync(ctx, id, version)
}

func (s *PurchaseService) publishDelete(ctx context.Context, msg *amqp.PurchaseDeleteMessage) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP publisher not available, skipping delete message")
		return nil
	}
	return s.publisher.PublishPurchaseDelete(ctx, msg)
}

// Close closes both storage and AMQP connections
func (s *PurchaseService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close purchase service: %v", errs)
	}

	return nil
}
