package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetops-backend/models"
)

func testAttendance() *models.Attendance {
	return &models.Attendance{
		Id:        42,
		AnimalID:  5,
		Animal:    models.Animal{Id: 5, OwnerID: 3},
		BasePrice: dec("80.00"),
		ServiceLines: []models.AttendanceService{
			{Id: 10, AttendanceID: 42, ServiceID: 1, Quantity: 1, UnitPrice: dec("120.00"),
				Service: models.CatalogService{Id: 1, Name: "Vacinação"}},
		},
		ProductLines: []models.AttendanceProduct{
			{Id: 20, AttendanceID: 42, ProductID: "prod-1", Quantity: 2, UnitPrice: dec("25.00"),
				Product: models.Product{Id: "prod-1", Name: "Vermífugo", Sellable: true}},
		},
	}
}

func TestReconcileItems(t *testing.T) {
	t.Run("initial synchronization produces fee, service and product items", func(t *testing.T) {
		att := testAttendance()
		items, changed, err := ReconcileItems(nil, att)
		require.NoError(t, err)
		assert.True(t, changed)
		require.Len(t, items, 3)

		kinds := map[string]models.InvoiceItem{}
		for _, it := range items {
			kinds[it.SourceKind] = it
		}
		assert.True(t, kinds[models.ItemSourceFee].Total.Equal(dec("80.00")))
		assert.True(t, kinds[models.ItemSourceService].Total.Equal(dec("120.00")))
		assert.True(t, kinds[models.ItemSourceProduct].Total.Equal(dec("50.00")))
		require.NotNil(t, kinds[models.ItemSourceProduct].ProductID)
		assert.Equal(t, "prod-1", *kinds[models.ItemSourceProduct].ProductID)

		assert.True(t, InvoiceTotal(items).Equal(dec("250.00")))
	})

	t.Run("idempotent on an unchanged attendance", func(t *testing.T) {
		att := testAttendance()
		first, _, err := ReconcileItems(nil, att)
		require.NoError(t, err)

		second, changed, err := ReconcileItems(first, att)
		require.NoError(t, err)
		assert.False(t, changed)
		require.Len(t, second, len(first))
		assert.True(t, InvoiceTotal(second).Equal(InvoiceTotal(first)))

		third, changed, err := ReconcileItems(second, att)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.True(t, InvoiceTotal(third).Equal(InvoiceTotal(first)))
	})

	t.Run("source edits update the matching item in place", func(t *testing.T) {
		att := testAttendance()
		items, _, err := ReconcileItems(nil, att)
		require.NoError(t, err)

		att.ProductLines[0].Quantity = 3
		updated, changed, err := ReconcileItems(items, att)
		require.NoError(t, err)
		assert.True(t, changed)
		require.Len(t, updated, 3)
		assert.True(t, InvoiceTotal(updated).Equal(dec("275.00")))
	})

	t.Run("deleted source lines drop their items, manual items survive", func(t *testing.T) {
		att := testAttendance()
		items, _, err := ReconcileItems(nil, att)
		require.NoError(t, err)

		manual := models.InvoiceItem{
			ID: 99, SourceKind: models.ItemSourceManual,
			Description: "Coleira", Quantity: 2, UnitPrice: dec("10.00"), Total: dec("20.00"),
		}
		items = append(items, manual)

		att.ServiceLines = nil
		updated, changed, err := ReconcileItems(items, att)
		require.NoError(t, err)
		assert.True(t, changed)
		require.Len(t, updated, 3) // fee + product + manual

		var hasManual bool
		for _, it := range updated {
			assert.NotEqual(t, models.ItemSourceService, it.SourceKind)
			if it.ID == 99 {
				hasManual = true
			}
		}
		assert.True(t, hasManual)
		assert.True(t, InvoiceTotal(updated).Equal(dec("150.00")))
	})

	t.Run("manual plus sourced item totals", func(t *testing.T) {
		sourced := models.InvoiceItem{
			SourceKind: models.ItemSourceService, Quantity: 1,
			UnitPrice: dec("50.00"), Total: dec("50.00"),
		}
		manual := models.InvoiceItem{
			SourceKind: models.ItemSourceManual, Quantity: 2,
			UnitPrice: dec("10.00"), Total: dec("20.00"),
		}
		assert.True(t, InvoiceTotal([]models.InvoiceItem{sourced, manual}).Equal(dec("70.00")))
		assert.True(t, InvoiceTotal([]models.InvoiceItem{sourced}).Equal(dec("50.00")))
	})

	t.Run("attendance without a billable owner is rejected", func(t *testing.T) {
		att := testAttendance()
		att.Animal.OwnerID = 0
		_, _, err := ReconcileItems(nil, att)
		var serr *StateConflictError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, CodeInvalidAttendanceState, serr.Code)
	})
}
