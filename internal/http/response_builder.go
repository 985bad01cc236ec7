// This file holds the JSON view models and response writers. Views carry
// amounts twice: raw cents for arithmetic on the client and a formatted
// decimal string for display.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"carteira/internal/core"
	"carteira/internal/storage"
)

type purchaseView struct {
	ID                int64  `json:"id"`
	PersonName        string `json:"person_name"`
	ItemName          string `json:"item_name"`
	PrincipalCents    int64  `json:"principal_cents"`
	Principal         string `json:"principal"`
	InstallmentsTotal int    `json:"installments_total"`
	InstallmentsPaid  int    `json:"installments_paid"`
	Progress          string `json:"progress"`
	IsPaid            bool   `json:"is_paid"`
	PurchaseDate      string `json:"purchase_date"`
	StartPaymentDate  string `json:"start_payment_date"`
}

type installmentView struct {
	Number      int    `json:"number"`
	Label       string `json:"label"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Paid        bool   `json:"paid"`
}

type periodItemView struct {
	Purchase    purchaseView    `json:"purchase"`
	Installment installmentView `json:"installment"`
	Settled     bool            `json:"settled"`
}

type summaryView struct {
	Year              int              `json:"year"`
	Month             int              `json:"month"`
	TotalPendingCents int64            `json:"total_pending_cents"`
	TotalPending      string           `json:"total_pending"`
	TotalSettledCents int64            `json:"total_settled_cents"`
	TotalSettled      string           `json:"total_settled"`
	ActiveCount       int              `json:"active_count"`
	Items             []periodItemView `json:"items"`
}

type scheduleView struct {
	Purchase     purchaseView      `json:"purchase"`
	Installments []installmentView `json:"installments"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// conflictResponse pairs a 409 error with the current purchase state so the
// client can resync without a follow-up GET.
type conflictResponse struct {
	Error    string       `json:"error"`
	Purchase purchaseView `json:"purchase"`
}

func newPurchaseView(p core.Purchase) purchaseView {
	return purchaseView{
		ID:                p.ID,
		PersonName:        p.PersonName,
		ItemName:          p.ItemName,
		PrincipalCents:    p.Principal.Cents,
		Principal:         p.Principal.String(),
		InstallmentsTotal: p.InstallmentsTotal,
		InstallmentsPaid:  p.InstallmentsPaid,
		Progress:          fmt.Sprintf("%d/%d", p.InstallmentsPaid, p.InstallmentsTotal),
		IsPaid:            p.IsPaid(),
		PurchaseDate:      p.PurchaseDate.Format(dateLayout),
		StartPaymentDate:  p.StartPaymentDate.Format(dateLayout),
	}
}

func newInstallmentView(inst core.InstallmentDescriptor, total int) installmentView {
	return installmentView{
		Number:      inst.Number,
		Label:       inst.Label(total),
		Year:        inst.Due.Year,
		Month:       inst.Due.Month,
		AmountCents: inst.Amount.Cents,
		Amount:      inst.Amount.String(),
		Paid:        inst.Paid,
	}
}

func newPeriodItemViews(items []core.PeriodItem) []periodItemView {
	views := make([]periodItemView, 0, len(items))
	for _, item := range items {
		views = append(views, periodItemView{
			Purchase:    newPurchaseView(item.Purchase),
			Installment: newInstallmentView(item.Installment, item.Purchase.InstallmentsTotal),
			Settled:     item.Settled,
		})
	}
	return views
}

func newSummaryView(s core.PeriodSummary) summaryView {
	return summaryView{
		Year:              s.Period.Year,
		Month:             s.Period.Month,
		TotalPendingCents: s.TotalPending.Cents,
		TotalPending:      s.TotalPending.String(),
		TotalSettledCents: s.TotalSettled.Cents,
		TotalSettled:      s.TotalSettled.String(),
		ActiveCount:       s.ActiveCount,
		Items:             newPeriodItemViews(s.Items),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps service errors onto HTTP statuses: missing rows are
// 404, an already settled purchase is a 409 conflict, validation failures
// are 422, everything else 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "purchase not found")
	case errors.Is(err, core.ErrAlreadySettled):
		writeError(w, http.StatusConflict, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrZeroDate,
		core.ErrInvalidMonth,
		core.ErrInvalidAmount,
		core.ErrInvalidInstallments,
		core.ErrEmptyPersonName,
		core.ErrEmptyItemName,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
