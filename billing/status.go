package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"vetops-backend/models"
)

// sumTolerance is the maximum allowed drift between an installment plan and
// the invoice total. Amounts are decimals, so a well-formed plan is exact;
// the tolerance only forgives caller-supplied plans rounded per installment.
var sumTolerance = decimal.New(1, -2) // 0.01

// DeriveStatus computes the invoice status from its installments. Installments
// are the single source of truth: there is no independently settable paid
// flag. An invoice without installments is OPEN by definition.
func DeriveStatus(installments []models.InvoiceInstallment) string {
	if len(installments) == 0 {
		return models.InvoiceOpen
	}
	paid := 0
	for _, inst := range installments {
		if inst.PaidAt != nil {
			paid++
		}
	}
	switch {
	case paid == 0:
		return models.InvoiceOpen
	case paid < len(installments):
		return models.InvoicePartiallyPaid
	default:
		return models.InvoicePaid
	}
}

// ValidatePlan checks a caller-supplied installment plan against the invoice
// total: at least one installment, positive count ordering, non-negative
// amounts, and sum within 0.01 of the total.
func ValidatePlan(total decimal.Decimal, installments []models.InvoiceInstallment) error {
	if len(installments) == 0 {
		return invalid("installments", "at least one installment is required")
	}
	sum := decimal.Zero
	for i, inst := range installments {
		if inst.Amount.IsNegative() {
			return invalid(fmt.Sprintf("installments[%d].amount", i), "amount must not be negative")
		}
		sum = sum.Add(inst.Amount)
	}
	if sum.Sub(total).Abs().GreaterThan(sumTolerance) {
		return invalid("installments", fmt.Sprintf(
			"installment amounts sum to %s but the invoice total is %s", sum.StringFixed(2), total.StringFixed(2)))
	}
	return nil
}

// coversPaid reports whether next preserves every paid installment of prev:
// each paid amount in prev must appear as a paid amount in next (multiset
// comparison). Paid money can be added, never rewritten or removed.
func coversPaid(prev, next []models.InvoiceInstallment) bool {
	remaining := map[string]int{}
	for _, inst := range next {
		if inst.PaidAt != nil {
			remaining[inst.Amount.StringFixed(2)]++
		}
	}
	for _, inst := range prev {
		if inst.PaidAt == nil {
			continue
		}
		key := inst.Amount.StringFixed(2)
		if remaining[key] == 0 {
			return false
		}
		remaining[key]--
	}
	return true
}

// ensureMutable rejects item/schedule mutations on a paid invoice.
func ensureMutable(inv *models.Invoice) error {
	if inv.Status == models.InvoicePaid {
		return conflict(CodeInvoiceLocked, fmt.Sprintf("invoice %d", inv.ID), "a paid invoice is read-only")
	}
	return nil
}
