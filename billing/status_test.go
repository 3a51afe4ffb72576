package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetops-backend/models"
)

func installmentsPaid(n, paid int) []models.InvoiceInstallment {
	now := time.Now()
	out := make([]models.InvoiceInstallment, n)
	for i := range out {
		out[i] = models.InvoiceInstallment{Number: i + 1, Amount: dec("10.00")}
		if i < paid {
			out[i].PaidAt = &now
		}
	}
	return out
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name string
		n    int
		paid int
		want string
	}{
		{"no installments", 0, 0, models.InvoiceOpen},
		{"none of three paid", 3, 0, models.InvoiceOpen},
		{"one of three paid", 3, 1, models.InvoicePartiallyPaid},
		{"two of three paid", 3, 2, models.InvoicePartiallyPaid},
		{"all three paid", 3, 3, models.InvoicePaid},
		{"single paid installment", 1, 1, models.InvoicePaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveStatus(installmentsPaid(tc.n, tc.paid)))
		})
	}
}

func TestValidatePlan(t *testing.T) {
	t.Run("exact sum passes", func(t *testing.T) {
		plan := []models.InvoiceInstallment{
			{Amount: dec("33.33")}, {Amount: dec("33.33")}, {Amount: dec("33.34")},
		}
		assert.NoError(t, ValidatePlan(dec("100.00"), plan))
	})

	t.Run("drift within one cent passes", func(t *testing.T) {
		plan := []models.InvoiceInstallment{{Amount: dec("49.99")}, {Amount: dec("50.00")}}
		assert.NoError(t, ValidatePlan(dec("100.00"), plan))
	})

	t.Run("drift beyond one cent fails", func(t *testing.T) {
		plan := []models.InvoiceInstallment{{Amount: dec("49.99")}, {Amount: dec("49.99")}}
		var verr *ValidationError
		require.ErrorAs(t, ValidatePlan(dec("100.00"), plan), &verr)
	})

	t.Run("empty plan fails", func(t *testing.T) {
		var verr *ValidationError
		require.ErrorAs(t, ValidatePlan(dec("100.00"), nil), &verr)
	})

	t.Run("negative amount fails", func(t *testing.T) {
		plan := []models.InvoiceInstallment{{Amount: dec("110.00")}, {Amount: dec("-10.00")}}
		var verr *ValidationError
		require.ErrorAs(t, ValidatePlan(dec("100.00"), plan), &verr)
	})
}

func TestCoversPaid(t *testing.T) {
	now := time.Now()
	paid := func(amount string) models.InvoiceInstallment {
		return models.InvoiceInstallment{Amount: dec(amount), PaidAt: &now}
	}
	open := func(amount string) models.InvoiceInstallment {
		return models.InvoiceInstallment{Amount: dec(amount)}
	}

	t.Run("unpaid plans are freely replaceable", func(t *testing.T) {
		prev := []models.InvoiceInstallment{open("50.00"), open("50.00")}
		next := []models.InvoiceInstallment{open("100.00")}
		assert.True(t, coversPaid(prev, next))
	})

	t.Run("kept paid installments pass", func(t *testing.T) {
		prev := []models.InvoiceInstallment{paid("30.00"), open("70.00")}
		next := []models.InvoiceInstallment{paid("30.00"), open("35.00"), open("35.00")}
		assert.True(t, coversPaid(prev, next))
	})

	t.Run("stamping more installments passes", func(t *testing.T) {
		prev := []models.InvoiceInstallment{paid("30.00"), open("70.00")}
		next := []models.InvoiceInstallment{paid("30.00"), paid("70.00")}
		assert.True(t, coversPaid(prev, next))
	})

	t.Run("dropping a paid stamp fails", func(t *testing.T) {
		prev := []models.InvoiceInstallment{paid("30.00"), open("70.00")}
		next := []models.InvoiceInstallment{open("30.00"), open("70.00")}
		assert.False(t, coversPaid(prev, next))
	})

	t.Run("rewriting a paid amount fails even at equal count", func(t *testing.T) {
		prev := []models.InvoiceInstallment{paid("30.00"), open("70.00")}
		next := []models.InvoiceInstallment{paid("10.00"), open("90.00")}
		assert.False(t, coversPaid(prev, next))
	})

	t.Run("duplicate paid amounts are counted, not deduplicated", func(t *testing.T) {
		prev := []models.InvoiceInstallment{paid("25.00"), paid("25.00"), open("50.00")}
		next := []models.InvoiceInstallment{paid("25.00"), open("75.00")}
		assert.False(t, coversPaid(prev, next))
	})
}

func TestEnsureMutable(t *testing.T) {
	t.Run("open and partially paid invoices are mutable", func(t *testing.T) {
		assert.NoError(t, ensureMutable(&models.Invoice{Status: models.InvoiceOpen}))
		assert.NoError(t, ensureMutable(&models.Invoice{Status: models.InvoicePartiallyPaid}))
	})

	t.Run("paid invoice is locked", func(t *testing.T) {
		err := ensureMutable(&models.Invoice{ID: 7, Status: models.InvoicePaid})
		var serr *StateConflictError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, CodeInvoiceLocked, serr.Code)
	})
}
