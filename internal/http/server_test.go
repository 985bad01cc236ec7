package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "carteira/internal/log"
	"carteira/internal/services"
	"carteira/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc := services.NewPurchaseService(storage.NewMemoryRepository(), nil)
	s := NewServer(":0", svc, applog.New(applog.DefaultConfig()))
	t.Cleanup(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
	})
	return s
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func createBody(person string, amount string, installments int, start string) string {
	return fmt.Sprintf(`{
		"person_name": %q,
		"item_name": "iPhone 14 Pro",
		"amount": %q,
		"installments_total": %d,
		"purchase_date": "2024-12-12",
		"start_payment_date": %q
	}`, person, amount, installments, start)
}

func mustCreate(t *testing.T, s *Server, body string) purchaseView {
	t.Helper()
	rec := do(s, http.MethodPost, "/api/purchases", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body.String())
	}
	var view purchaseView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return view
}

func TestCreatePurchase(t *testing.T) {
	s := newTestServer(t)

	view := mustCreate(t, s, createBody("Carlos Silva", "1200.00", 12, "2025-01-15"))
	if view.ID == 0 {
		t.Error("expected assigned ID")
	}
	if view.PrincipalCents != 120000 || view.Principal != "1200.00" {
		t.Errorf("principal = %d / %s", view.PrincipalCents, view.Principal)
	}
	if view.Progress != "0/12" || view.IsPaid {
		t.Errorf("fresh purchase: progress %s, is_paid %v", view.Progress, view.IsPaid)
	}
	if view.StartPaymentDate != "2025-01-15" {
		t.Errorf("start date = %s", view.StartPaymentDate)
	}

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"person_name": `, http.StatusBadRequest},
		{"unknown field", `{"nome": "x"}`, http.StatusBadRequest},
		{"bad amount", createBody("Carlos", "abc", 12, "2025-01-15"), http.StatusUnprocessableEntity},
		{"zero installments", createBody("Carlos", "100.00", 0, "2025-01-15"), http.StatusUnprocessableEntity},
		{"missing start date", createBody("Carlos", "100.00", 12, ""), http.StatusUnprocessableEntity},
		{"empty person", createBody("", "100.00", 12, "2025-01-15"), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/api/purchases", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestGetAndListAll(t *testing.T) {
	s := newTestServer(t)

	first := mustCreate(t, s, createBody("Carlos Silva", "1200.00", 12, "2025-01-15"))
	second := mustCreate(t, s, createBody("João Pedro", "89.90", 1, "2025-03-01"))

	rec := do(s, http.MethodGet, fmt.Sprintf("/api/purchases/%d", first.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}

	rec = do(s, http.MethodGet, "/api/purchases/all", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list all: status %d", rec.Code)
	}
	var all []purchaseView
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	// Newest first.
	if all[0].ID != second.ID || all[1].ID != first.ID {
		t.Errorf("order = [%d, %d]", all[0].ID, all[1].ID)
	}

	if rec := do(s, http.MethodGet, "/api/purchases/9999", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing purchase: status %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/api/purchases/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", rec.Code)
	}
}

func TestPeriodListAndSummary(t *testing.T) {
	s := newTestServer(t)

	// 100.00/month starting 2025-01, pending in March.
	mustCreate(t, s, createBody("Carlos Silva", "1200.00", 12, "2025-01-15"))
	// Single 89.90 installment due March, paid below.
	paid := mustCreate(t, s, createBody("João Pedro", "89.90", 1, "2025-03-01"))
	// Starts after March, inactive.
	mustCreate(t, s, createBody("Ana Costa", "500.00", 5, "2025-06-01"))

	rec := do(s, http.MethodPost, fmt.Sprintf("/api/purchases/%d/pay", paid.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pay: status %d", rec.Code)
	}

	rec = do(s, http.MethodGet, "/api/summary?year=2025&month=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: status %d", rec.Code)
	}
	var summary summaryView
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.ActiveCount != 2 {
		t.Fatalf("active_count = %d, want 2", summary.ActiveCount)
	}
	if summary.TotalPendingCents != 10000 {
		t.Errorf("total_pending_cents = %d, want 10000", summary.TotalPendingCents)
	}
	if summary.TotalSettledCents != 8990 {
		t.Errorf("total_settled_cents = %d, want 8990", summary.TotalSettledCents)
	}

	rec = do(s, http.MethodGet, "/api/purchases?year=2025&month=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("period list: status %d", rec.Code)
	}
	var items []periodItemView
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	// Newest first: the settled single-installment purchase leads.
	if items[0].Installment.Label != "1/1" || !items[0].Settled {
		t.Errorf("settled item = %+v", items[0])
	}
	if items[1].Installment.Label != "3/12" || items[1].Settled {
		t.Errorf("pending item = %+v", items[1])
	}

	if rec := do(s, http.MethodGet, "/api/summary?year=2025&month=13", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid month: status %d", rec.Code)
	}
}

func TestPayUntilSettled(t *testing.T) {
	s := newTestServer(t)

	created := mustCreate(t, s, createBody("Carlos Silva", "300.00", 3, "2025-01-15"))
	payPath := fmt.Sprintf("/api/purchases/%d/pay", created.ID)

	for i := 1; i <= 3; i++ {
		rec := do(s, http.MethodPost, payPath, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("payment %d: status %d", i, rec.Code)
		}
		var view purchaseView
		if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if view.InstallmentsPaid != i {
			t.Fatalf("payment %d: installments_paid = %d", i, view.InstallmentsPaid)
		}
	}

	// Paying a settled purchase conflicts; the body carries the current
	// state so the client can resync.
	rec := do(s, http.MethodPost, payPath, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("overpay: status %d", rec.Code)
	}
	var conflict struct {
		Error    string       `json:"error"`
		Purchase purchaseView `json:"purchase"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &conflict); err != nil {
		t.Fatalf("decode conflict: %v", err)
	}
	if conflict.Error == "" {
		t.Error("conflict body missing error")
	}
	if !conflict.Purchase.IsPaid || conflict.Purchase.Progress != "3/3" {
		t.Errorf("conflict purchase = %+v", conflict.Purchase)
	}
	if rec := do(s, http.MethodPost, "/api/purchases/9999/pay", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing purchase: status %d", rec.Code)
	}
}

func TestDeletePurchase(t *testing.T) {
	s := newTestServer(t)

	created := mustCreate(t, s, createBody("Carlos Silva", "1200.00", 12, "2025-01-15"))
	path := fmt.Sprintf("/api/purchases/%d", created.ID)

	if rec := do(s, http.MethodDelete, path, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", rec.Code)
	}
	if rec := do(s, http.MethodDelete, path, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("double delete: status %d", rec.Code)
	}
}

func TestSchedule(t *testing.T) {
	s := newTestServer(t)

	created := mustCreate(t, s, createBody("Carlos Silva", "1200.00", 12, "2025-01-15"))
	rec := do(s, http.MethodGet, fmt.Sprintf("/api/purchases/%d/schedule", created.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("schedule: status %d", rec.Code)
	}

	var view scheduleView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Installments) != 12 {
		t.Fatalf("installments = %d, want 12", len(view.Installments))
	}
	first := view.Installments[0]
	if first.Year != 2025 || first.Month != 1 || first.Label != "1/12" {
		t.Errorf("first installment = %+v", first)
	}

	var sum int64
	for _, inst := range view.Installments {
		sum += inst.AmountCents
	}
	if sum != 120000 {
		t.Errorf("schedule sums to %d, want 120000", sum)
	}
}

func TestSummaryCacheInvalidation(t *testing.T) {
	s := newTestServer(t)

	created := mustCreate(t, s, createBody("Carlos Silva", "1200.00", 12, "2025-01-15"))

	readPending := func() int64 {
		rec := do(s, http.MethodGet, "/api/summary?year=2025&month=1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("summary: status %d", rec.Code)
		}
		var v summaryView
		if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return v.TotalPendingCents
	}

	if got := readPending(); got != 10000 {
		t.Fatalf("pending = %d, want 10000", got)
	}

	// A payment must be visible immediately, not after the cache TTL.
	rec := do(s, http.MethodPost, fmt.Sprintf("/api/purchases/%d/pay", created.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pay: status %d", rec.Code)
	}
	if got := readPending(); got != 0 {
		t.Fatalf("pending after payment = %d, want 0", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	created := mustCreate(t, s, createBody("Carlos Silva", "1200.00", 12, "2025-01-15"))

	cases := []struct {
		method, path string
	}{
		{http.MethodPut, "/api/purchases"},
		{http.MethodPost, "/api/purchases/all"},
		{http.MethodPost, fmt.Sprintf("/api/purchases/%d/schedule", created.ID)},
		{http.MethodDelete, "/api/summary"},
	}
	for i, tc := range cases {
		rec := do(s, tc.method, tc.path, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("case %d: %s %s = %d, want 405", i, tc.method, tc.path, rec.Code)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	if rec := do(s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}

	mustCreate(t, s, createBody("Carlos Silva", "1200.00", 12, "2025-01-15"))

	rec := do(s, http.MethodGet, "/metricsz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metricsz: status %d", rec.Code)
	}
	var counters map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &counters); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if counters["requests_total"] == 0 {
		t.Error("requests_total not incremented")
	}
}
