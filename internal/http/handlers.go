package http

import (
	"errors"
	"net/http"
	"strings"

	"carteira/internal/core"
	applog "carteira/internal/log"
)

// handlePurchases serves the /api/purchases collection: POST registers a
// purchase, GET lists the wallet items for one period.
func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreatePurchase(w, r)
	case http.MethodGet:
		s.handleListForPeriod(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := decodeCreateRequest(r)
	if err != nil {
		if isValidationError(err) {
			writeDomainError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.api.Register(ctx, p)
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Purchase rejected",
			applog.FieldPersonName, p.PersonName, "error", err)
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries()
	applog.FromContext(ctx).InfoContext(ctx, "Purchase registered",
		applog.FieldPurchaseID, created.ID,
		applog.FieldPersonName, created.PersonName,
		applog.FieldPrincipalCents, created.Principal.Cents,
		applog.FieldInstallments, created.InstallmentsTotal)
	writeJSON(w, http.StatusCreated, newPurchaseView(created))
}

// handleListForPeriod returns the items active in a period, one installment
// per purchase. Totals live on /api/summary.
func (s *Server) handleListForPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriodQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.cachedSummary(r.Context(), period)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPeriodItemViews(summary.Items))
}

// handlePurchaseSubtree routes /api/purchases/all and the per-purchase
// paths: /{id}, /{id}/schedule, /{id}/pay.
func (s *Server) handlePurchaseSubtree(w http.ResponseWriter, r *http.Request) {
	if strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/purchases/"), "/") == "all" {
		s.handleListAll(w, r)
		return
	}

	id, action, err := parsePurchasePath(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch action {
	case "":
		s.handlePurchaseByID(w, r, id)
	case "schedule":
		s.handleSchedule(w, r, id)
	case "pay":
		s.handlePay(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	purchases, err := s.api.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]purchaseView, 0, len(purchases))
	for _, p := range purchases {
		views = append(views, newPurchaseView(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePurchaseByID(w http.ResponseWriter, r *http.Request, id int64) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		p, err := s.api.Get(ctx, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newPurchaseView(p))

	case http.MethodDelete:
		if err := s.api.Delete(ctx, id); err != nil {
			writeDomainError(w, err)
			return
		}
		s.invalidateSummaries()
		applog.FromContext(ctx).InfoContext(ctx, "Purchase deleted",
			applog.FieldPurchaseID, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	p, installments, err := s.api.Schedule(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view := scheduleView{
		Purchase:     newPurchaseView(p),
		Installments: make([]installmentView, 0, len(installments)),
	}
	for _, inst := range installments {
		view.Installments = append(view.Installments, newInstallmentView(inst, p.InstallmentsTotal))
	}
	writeJSON(w, http.StatusOK, view)
}

// handlePay settles the next unpaid installment. A fully settled purchase
// answers 409 without changing state; the conflict body carries the current
// snapshot.
func (s *Server) handlePay(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()
	updated, err := s.api.MarkInstallmentPaid(ctx, id)
	if errors.Is(err, core.ErrAlreadySettled) {
		writeJSON(w, http.StatusConflict, conflictResponse{
			Error:    err.Error(),
			Purchase: newPurchaseView(updated),
		})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries()
	applog.FromContext(ctx).InfoContext(ctx, "Installment paid",
		applog.FieldPurchaseID, id,
		applog.FieldInstallmentsPaid, updated.InstallmentsPaid)
	writeJSON(w, http.StatusOK, newPurchaseView(updated))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	period, err := parsePeriodQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.cachedSummary(r.Context(), period)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSummaryView(summary))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.snapshot())
}
