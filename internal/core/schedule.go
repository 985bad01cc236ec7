package core

import "fmt"

// InstallmentDescriptor is one monthly fraction of a purchase's principal.
// Descriptors are derived on demand from a Purchase snapshot and never
// persisted.
type InstallmentDescriptor struct {
	PurchaseID int64
	Number     int // 1-based
	Due        Period
	Amount     Money
	Paid       bool
}

// Label formats the installment position as shown on wallet cards, e.g. "3/10".
func (d InstallmentDescriptor) Label(total int) string {
	return fmt.Sprintf("%d/%d", d.Number, total)
}

// InstallmentAmount returns the amount of installment number (1-based).
// The principal is split equally in integer cents; the division remainder is
// absorbed by the final installment so the schedule sums exactly to the
// principal.
func InstallmentAmount(p Purchase, number int) Money {
	base := p.Principal.Cents / int64(p.InstallmentsTotal)
	if number == p.InstallmentsTotal {
		return Money{Cents: base + p.Principal.Cents%int64(p.InstallmentsTotal)}
	}
	return Money{Cents: base}
}

// InstallmentForPeriod returns the installment of p due in the given period,
// or ok=false when the purchase has no active installment that month (the
// schedule has not started yet, or was already exhausted before the period).
func InstallmentForPeriod(p Purchase, period Period) (InstallmentDescriptor, bool) {
	number := MonthsBetween(p.StartPeriod(), period) + 1
	if number < 1 || number > p.InstallmentsTotal {
		return InstallmentDescriptor{}, false
	}
	return InstallmentDescriptor{
		PurchaseID: p.ID,
		Number:     number,
		Due:        period,
		Amount:     InstallmentAmount(p, number),
		Paid:       number <= p.InstallmentsPaid,
	}, true
}

// FullSchedule expands p into its complete ordered installment list. The
// result is a pure function of the snapshot: calling it again after a
// mutation reflects the new state.
func FullSchedule(p Purchase) []InstallmentDescriptor {
	schedule := make([]InstallmentDescriptor, p.InstallmentsTotal)
	for i := range schedule {
		number := i + 1
		schedule[i] = InstallmentDescriptor{
			PurchaseID: p.ID,
			Number:     number,
			Due:        p.StartPaymentDate.AddMonths(i).Period(),
			Amount:     InstallmentAmount(p, number),
			Paid:       number <= p.InstallmentsPaid,
		}
	}
	return schedule
}
