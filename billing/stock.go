package billing

import "vetops-backend/models"

// StockPlan is the outcome of one reconciliation pass over an invoice's
// items: ledger rows to append (each applying its Quantity as a stock
// decrement) and warnings for items that could not be covered.
type StockPlan struct {
	Movements []models.StockMovement
	Warnings  []StockWarning
}

// PlanStockAdjustments decides, purely, which per-item stock deltas a
// reconciliation pass may apply. adjusted holds the invoice item ids already
// present in the stock_movements ledger; they are never touched again, so the
// net delta per item is 0 or exactly -quantity no matter how many passes run.
//
// An item short on stock produces a warning and no ledger row, leaving it
// eligible for the next pass. When settled is true (the invoice was already
// fully paid before this pass), every unadjusted item gets a zero-quantity
// ledger row instead: historical, settled invoices must not move stock.
func PlanStockAdjustments(invoiceID uint, items []models.InvoiceItem, adjusted map[uint]bool, products map[string]*models.Product, settled bool) StockPlan {
	var plan StockPlan
	for _, it := range items {
		if it.ProductID == nil || adjusted[it.ID] {
			continue
		}
		product, ok := products[*it.ProductID]
		if !ok || !product.Sellable {
			continue
		}

		if settled {
			plan.Movements = append(plan.Movements, models.StockMovement{
				InvoiceItemID: it.ID,
				InvoiceID:     invoiceID,
				ProductID:     product.Id,
				Quantity:      0,
			})
			continue
		}

		if it.Quantity > product.StockQuantity {
			plan.Warnings = append(plan.Warnings, StockWarning{
				InvoiceItemID: it.ID,
				ProductID:     product.Id,
				ProductName:   product.Name,
				Requested:     it.Quantity,
				Available:     product.StockQuantity,
			})
			continue
		}

		plan.Movements = append(plan.Movements, models.StockMovement{
			InvoiceItemID: it.ID,
			InvoiceID:     invoiceID,
			ProductID:     product.Id,
			Quantity:      it.Quantity,
		})
		// Later items in the same pass see the reduced balance.
		product.StockQuantity -= it.Quantity
	}
	return plan
}
