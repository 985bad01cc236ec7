package core

import (
	"errors"
	"strings"
)

// Purchase is a third-party debt record: money owed to the user for an item
// bought on someone's behalf, repaid in monthly installments starting at
// StartPaymentDate's month. It is a value object; the engine never mutates a
// snapshot in place, it returns updated copies.
type Purchase struct {
	ID                int64
	PersonName        string
	ItemName          string
	Principal         Money
	InstallmentsTotal int
	InstallmentsPaid  int
	PurchaseDate      Date // informational only
	StartPaymentDate  Date
}

var (
	ErrZeroDate            = errors.New("date cannot be zero")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidInstallments = errors.New("installments total must be at least 1")
	ErrEmptyPersonName     = errors.New("empty person name")
	ErrEmptyItemName       = errors.New("empty item name")
	ErrAlreadySettled      = errors.New("purchase already fully settled")
)

// IsPaid reports whether every installment has been settled. It is derived
// from InstallmentsPaid so the two can never drift apart.
func (p Purchase) IsPaid() bool {
	return p.InstallmentsPaid == p.InstallmentsTotal
}

// StartPeriod returns the due month of the first installment.
func (p Purchase) StartPeriod() Period {
	return p.StartPaymentDate.Period()
}

func (p Purchase) Validate() error {
	if len(strings.TrimSpace(p.PersonName)) == 0 {
		return ErrEmptyPersonName
	}
	if len(p.PersonName) > 100 {
		return errors.New("person name too long (max 100 characters)")
	}
	if len(strings.TrimSpace(p.ItemName)) == 0 {
		return ErrEmptyItemName
	}
	if len(p.ItemName) > 200 {
		return errors.New("item name too long (max 200 characters)")
	}
	if err := p.Principal.Validate(); err != nil {
		return err
	}
	if p.InstallmentsTotal < 1 {
		return ErrInvalidInstallments
	}
	if p.InstallmentsPaid < 0 || p.InstallmentsPaid > p.InstallmentsTotal {
		return errors.New("installments paid out of range")
	}
	if err := p.PurchaseDate.Validate(); err != nil {
		return errors.New("invalid purchase date: " + err.Error())
	}
	if err := p.StartPaymentDate.Validate(); err != nil {
		return errors.New("invalid start payment date: " + err.Error())
	}
	return nil
}
