package core

type (
	// PeriodItem pairs a purchase with its installment active in the
	// summarized period.
	PeriodItem struct {
		Purchase    Purchase
		Installment InstallmentDescriptor
		Settled     bool
	}

	// PeriodSummary is the reconciliation of a set of purchases for one
	// reporting period: the month's receivable ("Total a Receber") split by
	// settled state.
	PeriodSummary struct {
		Period       Period
		TotalPending Money
		TotalSettled Money
		ActiveCount  int
		Items        []PeriodItem
	}
)

// Summarize selects, for each purchase, the installment active in the given
// period, drops purchases with none, and totals the rest by settled state.
// Input order is preserved in Items; the aggregator imposes no ordering of
// its own. Empty input yields zero totals and no items.
func Summarize(purchases []Purchase, period Period) PeriodSummary {
	summary := PeriodSummary{Period: period}
	for _, p := range purchases {
		inst, ok := InstallmentForPeriod(p, period)
		if !ok {
			continue
		}
		settled := IsSettledFor(p, period)
		if settled {
			summary.TotalSettled = summary.TotalSettled.Add(inst.Amount)
		} else {
			summary.TotalPending = summary.TotalPending.Add(inst.Amount)
		}
		summary.ActiveCount++
		summary.Items = append(summary.Items, PeriodItem{
			Purchase:    p,
			Installment: inst,
			Settled:     settled,
		})
	}
	return summary
}
