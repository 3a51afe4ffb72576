package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetops-backend/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func planSum(plan []models.InvoiceInstallment) decimal.Decimal {
	sum := decimal.Zero
	for _, inst := range plan {
		sum = sum.Add(inst.Amount)
	}
	return sum
}

func TestBuildSchedule(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("three installments with 30 day offset", func(t *testing.T) {
		plan, err := BuildSchedule(dec("100.00"), ScheduleTerms{Installments: 3, DayOffset: 30}, anchor)
		require.NoError(t, err)
		require.Len(t, plan, 3)

		assert.True(t, plan[0].Amount.Equal(dec("33.33")), "got %s", plan[0].Amount)
		assert.True(t, plan[1].Amount.Equal(dec("33.33")), "got %s", plan[1].Amount)
		assert.True(t, plan[2].Amount.Equal(dec("33.34")), "got %s", plan[2].Amount)

		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), plan[0].DueDate)
		assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), plan[1].DueDate)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), plan[2].DueDate)

		assert.True(t, planSum(plan).Equal(dec("100.00")))
	})

	t.Run("single installment equals total at anchor", func(t *testing.T) {
		plan, err := BuildSchedule(dec("59.90"), ScheduleTerms{Installments: 1, DayOffset: 15}, anchor)
		require.NoError(t, err)
		require.Len(t, plan, 1)
		assert.True(t, plan[0].Amount.Equal(dec("59.90")))
		assert.Equal(t, anchor, plan[0].DueDate)
	})

	t.Run("zero total still yields the full schedule", func(t *testing.T) {
		plan, err := BuildSchedule(decimal.Zero, ScheduleTerms{Installments: 4, DayOffset: 7}, anchor)
		require.NoError(t, err)
		require.Len(t, plan, 4)
		for _, inst := range plan {
			assert.True(t, inst.Amount.IsZero())
		}
	})

	t.Run("sum invariant over a grid of totals and counts", func(t *testing.T) {
		totals := []string{"0.01", "0.10", "1.00", "9.99", "10.01", "99.97", "123.45", "1000.00", "33333.33"}
		for _, ts := range totals {
			for n := 1; n <= 12; n++ {
				plan, err := BuildSchedule(dec(ts), ScheduleTerms{Installments: n, DayOffset: n}, anchor)
				require.NoError(t, err)
				require.Len(t, plan, n)
				assert.True(t, planSum(plan).Equal(dec(ts)),
					"total %s over %d installments drifted to %s", ts, n, planSum(plan))
			}
		}
	})

	t.Run("rejects bad terms", func(t *testing.T) {
		_, err := BuildSchedule(dec("10.00"), ScheduleTerms{Installments: 0, DayOffset: 0}, anchor)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)

		_, err = BuildSchedule(dec("10.00"), ScheduleTerms{Installments: 2, DayOffset: -1}, anchor)
		require.ErrorAs(t, err, &verr)

		_, err = BuildSchedule(dec("-0.01"), ScheduleTerms{Installments: 1, DayOffset: 0}, anchor)
		require.ErrorAs(t, err, &verr)
	})
}

func TestRebuildSchedule(t *testing.T) {
	anchor := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	paidAt := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	t.Run("fully unpaid plan is rebuilt from scratch", func(t *testing.T) {
		existing, err := BuildSchedule(dec("90.00"), ScheduleTerms{Installments: 3, DayOffset: 10}, anchor)
		require.NoError(t, err)

		plan, err := RebuildSchedule(existing, dec("120.00"), ScheduleTerms{Installments: 2, DayOffset: 10}, anchor)
		require.NoError(t, err)
		require.Len(t, plan, 2)
		assert.True(t, planSum(plan).Equal(dec("120.00")))
	})

	t.Run("paid installments are kept and only the remainder is rescheduled", func(t *testing.T) {
		existing, err := BuildSchedule(dec("90.00"), ScheduleTerms{Installments: 3, DayOffset: 10}, anchor)
		require.NoError(t, err)
		existing[0].PaidAt = &paidAt // 30.00 settled

		plan, err := RebuildSchedule(existing, dec("130.00"), ScheduleTerms{Installments: 3, DayOffset: 10}, anchor)
		require.NoError(t, err)
		require.Len(t, plan, 3)

		assert.NotNil(t, plan[0].PaidAt)
		assert.True(t, plan[0].Amount.Equal(dec("30.00")))
		assert.Nil(t, plan[1].PaidAt)
		assert.Nil(t, plan[2].PaidAt)
		assert.True(t, planSum(plan).Equal(dec("130.00")))
		for i, inst := range plan {
			assert.Equal(t, i+1, inst.Number)
		}
	})

	t.Run("rejects a total below the already paid amount", func(t *testing.T) {
		existing, err := BuildSchedule(dec("90.00"), ScheduleTerms{Installments: 3, DayOffset: 10}, anchor)
		require.NoError(t, err)
		for i := range existing {
			existing[i].PaidAt = &paidAt
		}

		_, err = RebuildSchedule(existing, dec("50.00"), ScheduleTerms{Installments: 3, DayOffset: 10}, anchor)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})
}
