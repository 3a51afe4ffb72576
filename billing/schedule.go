package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"vetops-backend/models"
)

// ScheduleTerms is the shape of a payment condition the scheduler needs:
// how many installments and how many days apart.
type ScheduleTerms struct {
	Installments int
	DayOffset    int
}

// DefaultTerms is applied to freshly created invoices: a single installment.
var DefaultTerms = ScheduleTerms{Installments: 1, DayOffset: 0}

// TermsOf extracts scheduler terms from a payment condition.
func TermsOf(cond *models.PaymentCondition) ScheduleTerms {
	if cond == nil {
		return DefaultTerms
	}
	return ScheduleTerms{Installments: cond.Installments, DayOffset: cond.DayOffset}
}

// BuildSchedule splits total into terms.Installments installments anchored at
// anchor, each due DayOffset days after the previous one. The first N-1
// amounts are round(total/N, 2); the last absorbs the rounding remainder so
// the amounts sum to total exactly. A zero total still yields N zero-amount
// installments.
func BuildSchedule(total decimal.Decimal, terms ScheduleTerms, anchor time.Time) ([]models.InvoiceInstallment, error) {
	if terms.Installments < 1 {
		return nil, invalid("installments", "installment count must be at least 1")
	}
	if terms.DayOffset < 0 {
		return nil, invalid("day_offset", "day offset must not be negative")
	}
	if total.IsNegative() {
		return nil, invalid("total", "total must not be negative")
	}

	n := terms.Installments
	per := total.Div(decimal.NewFromInt(int64(n))).Round(2)

	out := make([]models.InvoiceInstallment, 0, n)
	rest := total
	for i := 0; i < n; i++ {
		amount := per
		if i == n-1 {
			amount = rest // remainder absorber
		}
		out = append(out, models.InvoiceInstallment{
			Number:  i + 1,
			Amount:  amount,
			DueDate: anchor.AddDate(0, 0, terms.DayOffset*i),
		})
		rest = rest.Sub(amount)
	}
	return out, nil
}

// RebuildSchedule recomputes an invoice's installment plan after its total or
// terms changed, without regressing payment state: installments that already
// carry a paid-at stamp are kept as they are, and only the outstanding
// remainder (total minus paid amounts) is rescheduled over the remaining
// count. On a fully unpaid invoice this degenerates to BuildSchedule.
func RebuildSchedule(existing []models.InvoiceInstallment, total decimal.Decimal, terms ScheduleTerms, anchor time.Time) ([]models.InvoiceInstallment, error) {
	var kept []models.InvoiceInstallment
	paid := decimal.Zero
	for _, inst := range existing {
		if inst.PaidAt != nil {
			kept = append(kept, inst)
			paid = paid.Add(inst.Amount)
		}
	}
	if len(kept) == 0 {
		return BuildSchedule(total, terms, anchor)
	}

	remainder := total.Sub(paid)
	if remainder.IsNegative() {
		return nil, invalid("total", "paid installments exceed the new total")
	}
	count := terms.Installments - len(kept)
	if count < 1 {
		count = 1
	}
	tail, err := BuildSchedule(remainder, ScheduleTerms{Installments: count, DayOffset: terms.DayOffset}, anchor)
	if err != nil {
		return nil, err
	}
	out := make([]models.InvoiceInstallment, 0, len(kept)+len(tail))
	for i, inst := range kept {
		inst.Number = i + 1
		out = append(out, inst)
	}
	for i := range tail {
		tail[i].Number = len(kept) + i + 1
		out = append(out, tail[i])
	}
	return out, nil
}
