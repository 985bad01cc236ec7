// Package http serves the JSON API consumed by the mobile wallet client.
//
// This file holds request parsing helpers: period query parameters, purchase
// path segments and the create-purchase payload.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"carteira/internal/core"
)

const dateLayout = "2006-01-02"

// maxBodyBytes caps create-request bodies. Payloads are tiny; anything
// larger is abuse.
const maxBodyBytes = 64 << 10

var (
	errBadPeriodParam = errors.New("year and month must be integers")
	errBadPurchaseID  = errors.New("purchase id must be a positive integer")
)

// parsePeriodQuery reads year/month query parameters, defaulting to the
// current month. The returned period is validated.
func parsePeriodQuery(query url.Values) (core.Period, error) {
	now := time.Now()
	period := core.Period{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, errBadPeriodParam
		}
		period.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, errBadPeriodParam
		}
		period.Month = m
	}

	if err := period.Validate(); err != nil {
		return core.Period{}, err
	}
	return period, nil
}

// parsePurchasePath splits the path after /api/purchases/ into an ID and an
// optional action segment ("schedule" or "pay").
func parsePurchasePath(path string) (id int64, action string, err error) {
	rest := strings.Trim(strings.TrimPrefix(path, "/api/purchases/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		return 0, "", errBadPurchaseID
	}

	id, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", errBadPurchaseID
	}

	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action, nil
}

// createPurchaseRequest is the POST /api/purchases payload. The amount is a
// decimal string ("1200.00" or "1200,00"); dates are YYYY-MM-DD.
type createPurchaseRequest struct {
	PersonName        string `json:"person_name"`
	ItemName          string `json:"item_name"`
	Amount            string `json:"amount"`
	InstallmentsTotal int    `json:"installments_total"`
	PurchaseDate      string `json:"purchase_date"`
	StartPaymentDate  string `json:"start_payment_date"`
}

// decodeCreateRequest parses and sanitizes the create payload into a core
// Purchase. Parse failures surface as client errors; domain validation runs
// later in the service.
func decodeCreateRequest(r *http.Request) (core.Purchase, error) {
	var req createPurchaseRequest
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return core.Purchase{}, fmt.Errorf("decode request body: %w", err)
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Purchase{}, err
	}

	start, err := parseDate(req.StartPaymentDate)
	if err != nil {
		return core.Purchase{}, fmt.Errorf("start_payment_date: %w", err)
	}

	// Purchase date is informational; default to today when omitted.
	now := time.Now()
	purchased := core.NewDate(now.Year(), int(now.Month()), now.Day())
	if strings.TrimSpace(req.PurchaseDate) != "" {
		purchased, err = parseDate(req.PurchaseDate)
		if err != nil {
			return core.Purchase{}, fmt.Errorf("purchase_date: %w", err)
		}
	}

	return core.Purchase{
		PersonName:        sanitizeInput(req.PersonName),
		ItemName:          sanitizeInput(req.ItemName),
		Principal:         core.Money{Cents: cents},
		InstallmentsTotal: req.InstallmentsTotal,
		PurchaseDate:      purchased,
		StartPaymentDate:  start,
	}, nil
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return core.Date{}, core.ErrZeroDate
	}
	return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

// sanitizeInput trims whitespace and strips control characters from
// user-supplied text.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
