// Package ledger defines the ports for the receivables ledger backup — an
// external spreadsheet mirroring the purchase table for the user's own
// bookkeeping. The engine never reads it back; it is a write-only sink.
package ledger

import (
	"context"

	"carteira/internal/core"
)

type (
	// PurchaseUpserter writes or refreshes one purchase row, keyed by
	// purchase ID.
	PurchaseUpserter interface {
		UpsertPurchase(ctx context.Context, p core.Purchase) (rowRef string, err error)
	}

	// PurchaseDeleter removes a purchase row by ID.
	PurchaseDeleter interface {
		DeletePurchase(ctx context.Context, id int64) error
	}
)
