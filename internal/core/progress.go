package core

// MarkNextInstallmentPaid records payment of the earliest unpaid installment
// and returns the updated snapshot. Payments always settle strictly left to
// right; there is no way to pay installment N directly, and no unpay.
//
// Returns ErrAlreadySettled with the snapshot unchanged when every
// installment is already paid, so callers never double count.
func MarkNextInstallmentPaid(p Purchase) (Purchase, error) {
	if p.InstallmentsPaid >= p.InstallmentsTotal {
		return p, ErrAlreadySettled
	}
	p.InstallmentsPaid++
	return p, nil
}

// IsSettledFor reports whether the purchase counts as settled for the given
// period: either the installment active that month is paid, or the whole
// purchase is paid off. A fully paid purchase is settled for every period,
// including months past the end of its schedule.
func IsSettledFor(p Purchase, period Period) bool {
	if p.IsPaid() {
		return true
	}
	inst, ok := InstallmentForPeriod(p, period)
	return ok && inst.Paid
}
