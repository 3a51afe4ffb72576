package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetops-backend/models"
)

func productItem(id uint, productID string, qty int) models.InvoiceItem {
	return models.InvoiceItem{
		ID:         id,
		SourceKind: models.ItemSourceProduct,
		ProductID:  &productID,
		Quantity:   qty,
		UnitPrice:  dec("10.00"),
		Total:      dec("10.00").Mul(decimal.NewFromInt(int64(qty))),
	}
}

// applyPlan simulates committing a pass: feed movement rows into the adjusted
// set the way the persisted ledger would on the next pass.
func applyPlan(plan StockPlan, adjusted map[uint]bool) {
	for _, mv := range plan.Movements {
		adjusted[mv.InvoiceItemID] = true
	}
}

func TestPlanStockAdjustments(t *testing.T) {
	t.Run("each item is decremented exactly once across repeated passes", func(t *testing.T) {
		products := map[string]*models.Product{
			"p1": {Id: "p1", Name: "Vermífugo", StockQuantity: 10, Sellable: true},
		}
		items := []models.InvoiceItem{productItem(1, "p1", 3)}
		adjusted := map[uint]bool{}

		first := PlanStockAdjustments(7, items, adjusted, products, false)
		require.Len(t, first.Movements, 1)
		assert.Empty(t, first.Warnings)
		assert.Equal(t, 3, first.Movements[0].Quantity)
		assert.Equal(t, uint(7), first.Movements[0].InvoiceID)
		assert.Equal(t, 7, products["p1"].StockQuantity)

		applyPlan(first, adjusted)
		for pass := 0; pass < 3; pass++ {
			again := PlanStockAdjustments(7, items, adjusted, products, false)
			assert.Empty(t, again.Movements)
			assert.Empty(t, again.Warnings)
		}
		assert.Equal(t, 7, products["p1"].StockQuantity)
	})

	t.Run("insufficient stock warns without a ledger row and retries after restock", func(t *testing.T) {
		products := map[string]*models.Product{
			"p1": {Id: "p1", Name: "Ração", StockQuantity: 2, Sellable: true},
		}
		items := []models.InvoiceItem{productItem(1, "p1", 5)}
		adjusted := map[uint]bool{}

		plan := PlanStockAdjustments(7, items, adjusted, products, false)
		assert.Empty(t, plan.Movements)
		require.Len(t, plan.Warnings, 1)
		assert.Equal(t, 5, plan.Warnings[0].Requested)
		assert.Equal(t, 2, plan.Warnings[0].Available)
		assert.Contains(t, plan.Warnings[0].Message(), "Ração")
		assert.Equal(t, 2, products["p1"].StockQuantity)

		// Restock: the same item is still unadjusted and now succeeds.
		products["p1"].StockQuantity = 5
		retry := PlanStockAdjustments(7, items, adjusted, products, false)
		require.Len(t, retry.Movements, 1)
		assert.Empty(t, retry.Warnings)
		assert.Equal(t, 0, products["p1"].StockQuantity)
	})

	t.Run("items in one pass see each other's decrements", func(t *testing.T) {
		products := map[string]*models.Product{
			"p1": {Id: "p1", Name: "Soro", StockQuantity: 4, Sellable: true},
		}
		items := []models.InvoiceItem{
			productItem(1, "p1", 3),
			productItem(2, "p1", 3),
		}

		plan := PlanStockAdjustments(7, items, map[uint]bool{}, products, false)
		require.Len(t, plan.Movements, 1)
		assert.Equal(t, uint(1), plan.Movements[0].InvoiceItemID)
		require.Len(t, plan.Warnings, 1)
		assert.Equal(t, uint(2), plan.Warnings[0].InvoiceItemID)
		assert.Equal(t, 1, plan.Warnings[0].Available)
	})

	t.Run("settled invoices get zero-quantity markers and never move stock", func(t *testing.T) {
		products := map[string]*models.Product{
			"p1": {Id: "p1", Name: "Vacina", StockQuantity: 10, Sellable: true},
		}
		items := []models.InvoiceItem{productItem(1, "p1", 4)}

		plan := PlanStockAdjustments(7, items, map[uint]bool{}, products, true)
		require.Len(t, plan.Movements, 1)
		assert.Equal(t, 0, plan.Movements[0].Quantity)
		assert.Empty(t, plan.Warnings)
		assert.Equal(t, 10, products["p1"].StockQuantity)
	})

	t.Run("non-sellable and unresolvable products are skipped", func(t *testing.T) {
		products := map[string]*models.Product{
			"p1": {Id: "p1", Name: "Equipamento", StockQuantity: 10, Sellable: false},
		}
		items := []models.InvoiceItem{
			productItem(1, "p1", 1),
			productItem(2, "ghost", 1),
			{ID: 3, SourceKind: models.ItemSourceManual, Quantity: 1}, // no product
		}

		plan := PlanStockAdjustments(7, items, map[uint]bool{}, products, false)
		assert.Empty(t, plan.Movements)
		assert.Empty(t, plan.Warnings)
	})
}
