// Package storage persists Purchase records in SQLite. The engine in
// internal/core only ever sees value snapshots; this package is the
// source/sink of those snapshots and owns the optimistic-concurrency
// guard on payment progress.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"carteira/internal/core"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound = errors.New("purchase not found")

	// ErrStaleSnapshot means the installments_paid compare-and-set matched no
	// row: another writer advanced the purchase since this snapshot was read.
	ErrStaleSnapshot = errors.New("purchase snapshot is stale")
)

const dateLayout = "2006-01-02"

// PendingSyncPurchase identifies a purchase whose ledger copy is out of date.
type PendingSyncPurchase struct {
	ID        int64
	Version   int64
	CreatedAt time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreatePurchase inserts a new purchase and returns the stored snapshot with
// its assigned ID. New purchases always start with zero installments paid.
func (r *SQLiteRepository) CreatePurchase(ctx context.Context, p core.Purchase) (core.Purchase, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO purchases (person_name, item_name, principal_cents, installments_total,
			installments_paid, purchase_date, start_payment_date, is_paid)
		VALUES (?, ?, ?, ?, 0, ?, ?, 0)`,
		p.PersonName, p.ItemName, p.Principal.Cents, p.InstallmentsTotal,
		p.PurchaseDate.Format(dateLayout), p.StartPaymentDate.Format(dateLayout),
	)
	if err != nil {
		return core.Purchase{}, fmt.Errorf("insert purchase: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Purchase{}, fmt.Errorf("last insert id: %w", err)
	}

	p.ID = id
	p.InstallmentsPaid = 0

	slog.InfoContext(ctx, "Purchase saved to SQLite",
		"purchase_id", p.ID,
		"person", p.PersonName,
		"item", p.ItemName,
		"principal_cents", p.Principal.Cents,
		"installments_total", p.InstallmentsTotal)

	return p, nil
}

// GetPurchase returns a single purchase snapshot by ID.
func (r *SQLiteRepository) GetPurchase(ctx context.Context, id int64) (core.Purchase, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, person_name, item_name, principal_cents, installments_total,
			installments_paid, purchase_date, start_payment_date
		FROM purchases
		WHERE id = ? AND deleted_at IS NULL`, id)

	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Purchase{}, ErrNotFound
	}
	if err != nil {
		return core.Purchase{}, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}

// ListPurchases returns all live purchases, most recently created first —
// the order the wallet view presents them in.
func (r *SQLiteRepository) ListPurchases(ctx context.Context) ([]core.Purchase, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, person_name, item_name, principal_cents, installments_total,
			installments_paid, purchase_date, start_payment_date
		FROM purchases
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []core.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}
	return purchases, nil
}

// UpdateProgress advances installments_paid from fromPaid to toPaid with a
// compare-and-set on the previous value, so two concurrent payments from the
// same snapshot can never both land. Returns ErrStaleSnapshot when the
// snapshot no longer matches, ErrNotFound when the purchase is gone.
func (r *SQLiteRepository) UpdateProgress(ctx context.Context, id int64, fromPaid, toPaid int, isPaid bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE purchases
		SET installments_paid = ?, is_paid = ?, version = version + 1,
			sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND installments_paid = ? AND deleted_at IS NULL`,
		toPaid, boolToInt(isPaid), id, fromPaid)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a stale snapshot from a missing purchase.
		if _, err := r.GetPurchase(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStaleSnapshot
	}

	slog.InfoContext(ctx, "Payment progress updated",
		"purchase_id", id,
		"installments_paid", toPaid,
		"is_paid", isPaid)

	return nil
}

// SoftDeletePurchase marks a purchase deleted without losing its row, so the
// ledger backup can still reconcile the removal.
func (r *SQLiteRepository) SoftDeletePurchase(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE purchases
		SET deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete purchase: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Purchase soft deleted", "purchase_id", id)
	return nil
}

// GetPendingSync returns purchases whose ledger copy is out of date.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSyncPurchase, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, created_at
		FROM purchases
		WHERE sync_status = 'pending' AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync purchases: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncPurchase
	for rows.Next() {
		var p PendingSyncPurchase
		if err := rows.Scan(&p.ID, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending sync purchase: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending sync purchases: %w", err)
	}
	return pending, nil
}

// MarkSynced marks a purchase as successfully mirrored to the ledger.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE purchases SET sync_status = 'synced' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark purchase synced: %w", err)
	}
	slog.InfoContext(ctx, "Purchase marked as synced", "purchase_id", id)
	return nil
}

// MarkSyncError marks a purchase as having failed ledger sync.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE purchases SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark purchase sync error: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row rowScanner) (core.Purchase, error) {
	var (
		p                       core.Purchase
		purchaseDate, startDate string
	)
	err := row.Scan(&p.ID, &p.PersonName, &p.ItemName, &p.Principal.Cents,
		&p.InstallmentsTotal, &p.InstallmentsPaid, &purchaseDate, &startDate)
	if err != nil {
		return core.Purchase{}, err
	}

	p.PurchaseDate, err = parseDate(purchaseDate)
	if err != nil {
		return core.Purchase{}, fmt.Errorf("parse purchase date: %w", err)
	}
	p.StartPaymentDate, err = parseDate(startDate)
	if err != nil {
		return core.Purchase{}, fmt.Errorf("parse start payment date: %w", err)
	}
	return p, nil
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, err
	}
	return core.Date{Time: t}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
