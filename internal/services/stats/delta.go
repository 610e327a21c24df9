package stats

import (
	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/models"
)

// Delta is the net effect of one invoice mutation on the snapshot. The unpaid
// counter moves by Invoices - Paid.
type Delta struct {
	Invoices int64
	Paid     int64
	Value    currency.Amount
}

func (d Delta) Unpaid() int64 { return d.Invoices - d.Paid }

func (d Delta) IsZero() bool {
	return d.Invoices == 0 && d.Paid == 0 && d.Value.IsZero()
}

// Created is the delta for inserting inv.
func Created(inv *models.Invoice) Delta {
	return Delta{Invoices: 1, Paid: paidCount(inv.Paid), Value: inv.Total}
}

// Removed is the delta for deleting inv in its last stored state.
func Removed(inv *models.Invoice) Delta {
	return Delta{Invoices: -1, Paid: -paidCount(inv.Paid), Value: inv.Total.Neg()}
}

// Changed is the delta for rewriting before as after.
func Changed(before, after *models.Invoice) Delta {
	return Delta{
		Paid:  paidCount(after.Paid) - paidCount(before.Paid),
		Value: after.Total.Sub(before.Total),
	}
}

func paidCount(paid bool) int64 {
	if paid {
		return 1
	}
	return 0
}
