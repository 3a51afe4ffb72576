package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"vetops-backend/models"
)

// sourceLine is one billable line derived from an attendance: the base fee,
// a rendered catalog service, or a consumed product.
type sourceLine struct {
	kind        string
	lineID      uint // 0 for the attendance fee
	description string
	productID   *string
	quantity    int
	unitPrice   decimal.Decimal
}

func (l sourceLine) total() decimal.Decimal {
	return l.unitPrice.Mul(decimal.NewFromInt(int64(l.quantity))).Round(2)
}

type itemKey struct {
	attendanceID uint
	kind         string
	lineID       uint
}

func keyOf(it *models.InvoiceItem) (itemKey, bool) {
	if !it.Sourced() || it.AttendanceID == nil {
		return itemKey{}, false
	}
	var lineID uint
	if it.SourceLineID != nil {
		lineID = *it.SourceLineID
	}
	return itemKey{attendanceID: *it.AttendanceID, kind: it.SourceKind, lineID: lineID}, true
}

// attendanceLines flattens an attendance into its billable source lines.
func attendanceLines(att *models.Attendance) []sourceLine {
	var lines []sourceLine
	if att.BasePrice.IsPositive() {
		lines = append(lines, sourceLine{
			kind:        models.ItemSourceFee,
			description: "Atendimento",
			quantity:    1,
			unitPrice:   att.BasePrice,
		})
	}
	for _, sl := range att.ServiceLines {
		desc := sl.Description
		if desc == "" {
			desc = sl.Service.Name
		}
		lines = append(lines, sourceLine{
			kind:        models.ItemSourceService,
			lineID:      sl.Id,
			description: desc,
			quantity:    sl.Quantity,
			unitPrice:   sl.UnitPrice,
		})
	}
	for _, pl := range att.ProductLines {
		desc := pl.Description
		if desc == "" {
			desc = pl.Product.Name
		}
		productID := pl.ProductID
		lines = append(lines, sourceLine{
			kind:        models.ItemSourceProduct,
			lineID:      pl.Id,
			description: desc,
			productID:   &productID,
			quantity:    pl.Quantity,
			unitPrice:   pl.UnitPrice,
		})
	}
	return lines
}

// ReconcileItems computes the authoritative invoice item set for one
// attendance: sourced items are upserted keyed by (attendance id, source
// line), items whose source line disappeared are dropped, manual items and
// items sourced from other attendances pass through untouched. The returned
// flag reports whether anything differs from the existing set.
func ReconcileItems(existing []models.InvoiceItem, att *models.Attendance) ([]models.InvoiceItem, bool, error) {
	if att.Animal.OwnerID == 0 {
		return nil, false, conflict(CodeInvalidAttendanceState,
			fmt.Sprintf("attendance %d", att.Id), "attendance has no billable owner")
	}

	current := make(map[itemKey]*models.InvoiceItem, len(existing))
	var out []models.InvoiceItem
	changed := false

	// Pass-through portion first, preserving order: manual items and items
	// owned by other attendances.
	for i := range existing {
		it := existing[i]
		key, sourced := keyOf(&it)
		if sourced && key.attendanceID == att.Id {
			current[key] = &existing[i]
			continue
		}
		out = append(out, it)
	}

	seen := make(map[itemKey]bool, len(current))
	for _, line := range attendanceLines(att) {
		key := itemKey{attendanceID: att.Id, kind: line.kind, lineID: line.lineID}
		seen[key] = true

		if prev, ok := current[key]; ok {
			next := *prev
			if next.Quantity != line.quantity ||
				!next.UnitPrice.Equal(line.unitPrice) ||
				next.Description != line.description {
				next.Quantity = line.quantity
				next.UnitPrice = line.unitPrice
				next.Description = line.description
				next.Total = line.total()
				changed = true
			}
			out = append(out, next)
			continue
		}

		attID := att.Id
		lineID := line.lineID
		item := models.InvoiceItem{
			SourceKind:   line.kind,
			AttendanceID: &attID,
			Description:  line.description,
			ProductID:    line.productID,
			Quantity:     line.quantity,
			UnitPrice:    line.unitPrice,
			Total:        line.total(),
		}
		if line.kind != models.ItemSourceFee {
			item.SourceLineID = &lineID
		}
		out = append(out, item)
		changed = true
	}

	// Anything left in current lost its source line on the attendance.
	for key := range current {
		if !seen[key] {
			changed = true
		}
	}

	return out, changed, nil
}

// InvoiceTotal sums the current line items. The invoice total is never set
// any other way.
func InvoiceTotal(items []models.InvoiceItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Total)
	}
	return sum.Round(2)
}
