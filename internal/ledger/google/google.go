// Package google mirrors purchase rows to a Google Sheets spreadsheet using
// Service Account credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"carteira/internal/core"
	ports "carteira/internal/ledger"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var (
	_ ports.PurchaseUpserter = (*Client)(nil)
	_ ports.PurchaseDeleter  = (*Client)(nil)
)

// NewFromEnv creates a ledger client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Optional: LEDGER_SHEET_NAME (default
// "Receivables"). Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("LEDGER_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Receivables"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ledgerRow is the column layout of one purchase row:
// ID, Person, Item, Principal, Installments (k/N), Purchase date, First payment, Status.
func ledgerRow(p core.Purchase) []any {
	status := "pending"
	if p.IsPaid() {
		status = "paid"
	}
	return []any{
		strconv.FormatInt(p.ID, 10),
		p.PersonName,
		p.ItemName,
		p.Principal.Reais(),
		fmt.Sprintf("%d/%d", p.InstallmentsPaid, p.InstallmentsTotal),
		p.PurchaseDate.Format("2006-01-02"),
		p.StartPaymentDate.Format("2006-01-02"),
		status,
	}
}

// UpsertPurchase writes the purchase's current snapshot to its ledger row,
// appending a new row when the ID is not present yet.
func (c *Client) UpsertPurchase(ctx context.Context, p core.Purchase) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rowNum, err := c.findRowByID(ctx, p.ID)
	if err != nil {
		return "", err
	}

	vr := &gsheet.ValueRange{Values: [][]any{ledgerRow(p)}}

	if rowNum == 0 {
		// Not present yet: append below the existing rows.
		appendRange := fmt.Sprintf("%s!A:H", c.sheetName)
		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, appendRange, vr).
			ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("append ledger row in sheet %s: %w", c.sheetName, err)
		}
		ref := appendRange
		if resp.Updates != nil {
			ref = resp.Updates.UpdatedRange
		}
		slog.InfoContext(ctx, "Ledger row appended", "purchase_id", p.ID, "ledger_ref", ref)
		return ref, nil
	}

	updateRange := fmt.Sprintf("%s!A%d:H%d", c.sheetName, rowNum, rowNum)
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, updateRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update ledger row %d in sheet %s: %w", rowNum, c.sheetName, err)
	}

	slog.InfoContext(ctx, "Ledger row updated", "purchase_id", p.ID, "ledger_ref", updateRange)
	return updateRange, nil
}

// DeletePurchase removes the purchase's ledger row. A purchase that never
// made it into the ledger deletes cleanly as a no-op.
func (c *Client) DeletePurchase(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rowNum, err := c.findRowByID(ctx, id)
	if err != nil {
		return err
	}
	if rowNum == 0 {
		slog.WarnContext(ctx, "Ledger row not found for delete", "purchase_id", id)
		return nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowNum - 1), // zero-based, end exclusive
					EndIndex:   int64(rowNum),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete ledger row %d in sheet %s: %w", rowNum, c.sheetName, err)
	}

	slog.InfoContext(ctx, "Ledger row deleted", "purchase_id", id, "row", rowNum)
	return nil
}

// findRowByID scans the ID column and returns the 1-based row number of the
// purchase, or 0 when not present.
func (c *Client) findRowByID(ctx context.Context, id int64) (int, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read ID column of sheet %s: %w", c.sheetName, err)
	}

	want := strconv.FormatInt(id, 10)
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if cell, ok := row[0].(string); ok && strings.TrimSpace(cell) == want {
			return i + 1, nil
		}
	}
	return 0, nil
}

// sheetID resolves the numeric sheet ID needed by row-deletion requests.
func (c *Client) sheetID(ctx context.Context) (int64, error) {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet metadata: %w", err)
	}
	for _, sheet := range meta.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == c.sheetName {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}
