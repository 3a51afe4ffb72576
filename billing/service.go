package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vetops-backend/models"
)

// DefaultDueDays is how far out a freshly created invoice is due.
const DefaultDueDays = 7

// Service executes the billing operations against one tenant schema. Every
// operation applies its invoice mutation as a single transaction with the
// invoice row locked, so reconciliation passes for one invoice are
// serialized. Stock deltas run as a separate follow-up transaction after the
// invoice write commits; their failures surface as warnings, never as a
// rollback of the financial record.
type Service struct {
	db     *gorm.DB
	schema string
}

func NewService(db *gorm.DB, schema string) *Service {
	return &Service{db: db, schema: schema}
}

// tenantTx runs fn in a transaction pinned to the tenant schema.
// SET LOCAL reverts when the transaction ends, so pooled connections stay clean.
func (s *Service) tenantTx(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`SET LOCAL search_path = "` + s.schema + `", public`).Error; err != nil {
			return fmt.Errorf("pin tenant schema: %w", err)
		}
		return fn(tx)
	})
}

// lockInvoice loads the invoice row FOR UPDATE plus its items and
// installments. The row lock is what serializes concurrent reconciliation
// passes per invoice id.
func lockInvoice(tx *gorm.DB, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("invoice_id", fmt.Sprintf("invoice %d not found", id))
		}
		return nil, err
	}
	if err := tx.Where("invoice_id = ?", id).Order("id").Find(&inv.Items).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("invoice_id = ?", id).Order("number").Find(&inv.Installments).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func loadAttendance(tx *gorm.DB, id uint) (*models.Attendance, error) {
	var att models.Attendance
	err := tx.
		Preload("Animal").
		Preload("Appointment").
		Preload("ServiceLines").
		Preload("ServiceLines.Service").
		Preload("ProductLines").
		Preload("ProductLines.Product").
		First(&att, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalid("attendance_id", fmt.Sprintf("attendance %d not found", id))
	}
	return &att, err
}

// InvoiceForAttendance resolves the invoice an attendance is billed on, via
// the provenance columns of its sourced items. Zero means not invoiced yet.
func InvoiceForAttendance(tx *gorm.DB, attendanceID uint) (uint, error) {
	var ids []uint
	err := tx.Model(&models.InvoiceItem{}).
		Where("attendance_id = ?", attendanceID).
		Limit(1).
		Pluck("invoice_id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	return ids[0], nil
}

// replaceItems persists the reconciled item set: upserts every kept row,
// deletes the rest, and releases stock held by deleted rows.
func replaceItems(tx *gorm.DB, inv *models.Invoice, items []models.InvoiceItem) error {
	keep := make([]uint, 0, len(items))
	for i := range items {
		items[i].InvoiceID = inv.ID
		if err := tx.Save(&items[i]).Error; err != nil {
			return err
		}
		keep = append(keep, items[i].ID)
	}

	var stale []models.InvoiceItem
	q := tx.Where("invoice_id = ?", inv.ID)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	if err := q.Find(&stale).Error; err != nil {
		return err
	}
	for _, it := range stale {
		if err := releaseItemStock(tx, it.ID); err != nil {
			return err
		}
		if err := tx.Delete(&models.InvoiceItem{}, "id = ?", it.ID).Error; err != nil {
			return err
		}
	}

	inv.Items = items
	inv.Total = InvoiceTotal(items)
	return nil
}

// releaseItemStock undoes the ledger entry of a removed item: the applied
// quantity goes back on the shelf and the ledger row is dropped.
func releaseItemStock(tx *gorm.DB, itemID uint) error {
	var mv models.StockMovement
	err := tx.First(&mv, "invoice_item_id = ?", itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if mv.Quantity > 0 {
		err = tx.Model(&models.Product{}).
			Where("id = ?", mv.ProductID).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", mv.Quantity)).Error
		if err != nil {
			return err
		}
	}
	return tx.Delete(&models.StockMovement{}, "id = ?", mv.ID).Error
}

// replaceInstallments swaps the invoice's schedule for the given plan.
func replaceInstallments(tx *gorm.DB, inv *models.Invoice, plan []models.InvoiceInstallment) error {
	if err := tx.Delete(&models.InvoiceInstallment{}, "invoice_id = ?", inv.ID).Error; err != nil {
		return err
	}
	for i := range plan {
		plan[i].ID = 0
		plan[i].InvoiceID = inv.ID
		plan[i].Number = i + 1
		if err := tx.Create(&plan[i]).Error; err != nil {
			return err
		}
	}
	inv.Installments = plan
	return nil
}

func appendRevision(tx *gorm.DB, inv *models.Invoice, kind string) error {
	var maxNo int
	err := tx.Model(&models.InvoiceRevision{}).
		Where("invoice_id = ?", inv.ID).
		Select("COALESCE(MAX(revision_no), 0)").
		Scan(&maxNo).Error
	if err != nil {
		return err
	}
	blob, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	return tx.Create(&models.InvoiceRevision{
		InvoiceID:  inv.ID,
		RevisionNo: maxNo + 1,
		Kind:       kind,
		Snapshot:   blob,
	}).Error
}

func saveInvoice(tx *gorm.DB, inv *models.Invoice) error {
	inv.Status = DeriveStatus(inv.Installments)
	return tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).Updates(map[string]any{
		"total":                inv.Total,
		"due_date":             inv.DueDate,
		"payment_method":       inv.PaymentMethod,
		"payment_condition_id": inv.PaymentConditionID,
		"status":               inv.Status,
		"blocked":              inv.Blocked,
	}).Error
}

// CreateInvoiceForAttendance bills a concluded attendance: synchronized
// items, total = sum(items), a single installment due in DefaultDueDays.
func (s *Service) CreateInvoiceForAttendance(attendanceID uint) (*models.Invoice, []StockWarning, error) {
	var inv *models.Invoice
	err := s.tenantTx(func(tx *gorm.DB) error {
		att, err := loadAttendance(tx, attendanceID)
		if err != nil {
			return err
		}
		if att.Appointment != nil && att.Appointment.Status != models.AppointmentConcluded {
			return conflict(CodeAttendanceNotBillable,
				fmt.Sprintf("attendance %d", att.Id), MsgAttendanceNotBillable)
		}
		if existing, err := InvoiceForAttendance(tx, attendanceID); err != nil {
			return err
		} else if existing != 0 {
			return invalid("attendance_id", fmt.Sprintf("attendance %d is already billed on invoice %d", attendanceID, existing))
		}

		items, _, err := ReconcileItems(nil, att)
		if err != nil {
			return err
		}
		total := InvoiceTotal(items)
		due := time.Now().AddDate(0, 0, DefaultDueDays)
		plan, err := BuildSchedule(total, DefaultTerms, due)
		if err != nil {
			return err
		}

		inv = &models.Invoice{
			OwnerID:      att.Animal.OwnerID,
			Items:        items,
			Total:        total,
			DueDate:      due,
			Installments: plan,
			Status:       models.InvoiceOpen,
		}
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		return appendRevision(tx, inv, "create")
	})
	if err != nil {
		return nil, nil, err
	}

	warnings, err := s.ApplyStockFollowUp(inv.ID, false)
	return inv, warnings, err
}

// InstallmentInput is one caller-supplied installment of a payment plan.
type InstallmentInput struct {
	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"due_date"`
	PaidAt  *time.Time      `json:"paid_at"`
}

// AdjustInput carries the adjustable invoice fields. Nil pointers leave the
// field alone; a non-empty Installments slice replaces the whole plan.
type AdjustInput struct {
	DueDate            *time.Time         `json:"due_date"`
	PaymentMethod      *string            `json:"payment_method"`
	PaymentConditionID *uint              `json:"payment_condition_id"`
	Installments       []InstallmentInput `json:"installments"`
}

func planFromInput(in []InstallmentInput) []models.InvoiceInstallment {
	plan := make([]models.InvoiceInstallment, 0, len(in))
	for i, inst := range in {
		plan = append(plan, models.InvoiceInstallment{
			Number:  i + 1,
			Amount:  inst.Amount,
			DueDate: inst.DueDate,
			PaidAt:  inst.PaidAt,
		})
	}
	return plan
}

func loadCondition(tx *gorm.DB, id uint) (*models.PaymentCondition, error) {
	var cond models.PaymentCondition
	err := tx.First(&cond, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalid("payment_condition_id", fmt.Sprintf("payment condition %d not found", id))
	}
	return &cond, err
}

// AdjustInvoice changes due date, payment method, payment condition and/or
// the installment plan of an unpaid invoice. An explicit plan must sum to the
// invoice total and preserve already-paid installments; without one the
// schedule is rebuilt from the (possibly new) payment condition whenever it
// or the anchor date changed. A plan whose stamps settle the invoice triggers
// the same stock follow-up as markAsPaid.
func (s *Service) AdjustInvoice(invoiceID uint, in AdjustInput) (*models.Invoice, []StockWarning, error) {
	var inv *models.Invoice
	err := s.tenantTx(func(tx *gorm.DB) error {
		var err error
		inv, err = lockInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		if err := ensureMutable(inv); err != nil {
			return err
		}

		var cond *models.PaymentCondition
		reschedule := false
		if in.PaymentConditionID != nil {
			if cond, err = loadCondition(tx, *in.PaymentConditionID); err != nil {
				return err
			}
			if inv.PaymentConditionID == nil || *inv.PaymentConditionID != cond.Id {
				reschedule = true
			}
			inv.PaymentConditionID = &cond.Id
		} else if inv.PaymentConditionID != nil {
			if cond, err = loadCondition(tx, *inv.PaymentConditionID); err != nil {
				return err
			}
		}
		if in.DueDate != nil && !in.DueDate.Equal(inv.DueDate) {
			inv.DueDate = *in.DueDate
			reschedule = true
		}
		if in.PaymentMethod != nil {
			inv.PaymentMethod = *in.PaymentMethod
		}

		if len(in.Installments) > 0 {
			plan := planFromInput(in.Installments)
			if err := ValidatePlan(inv.Total, plan); err != nil {
				return err
			}
			if !coversPaid(inv.Installments, plan) {
				return invalid("installments", "an adjustment cannot alter already-paid installments")
			}
			if err := replaceInstallments(tx, inv, plan); err != nil {
				return err
			}
		} else if reschedule {
			plan, err := RebuildSchedule(inv.Installments, inv.Total, TermsOf(cond), inv.DueDate)
			if err != nil {
				return err
			}
			if err := replaceInstallments(tx, inv, plan); err != nil {
				return err
			}
		}

		if err := saveInvoice(tx, inv); err != nil {
			return err
		}
		inv.PaymentCondition = cond
		return appendRevision(tx, inv, "adjust")
	})
	if err != nil {
		return nil, nil, err
	}

	// A fully stamped plan settles the invoice; confirm stock the same way
	// markAsPaid does, so previously skipped items get their last pass while
	// the decrement is still allowed.
	if inv.Status == models.InvoicePaid {
		warnings, err := s.ApplyStockFollowUp(inv.ID, false)
		return inv, warnings, err
	}
	return inv, nil, nil
}

// MarkInvoiceAsPaid settles an invoice: the caller supplies the full
// installment plan, every installment stamped paid, summing to the total.
// Stock for billed products is confirmed as a follow-up after the commit.
func (s *Service) MarkInvoiceAsPaid(invoiceID uint, in AdjustInput) (*models.Invoice, []StockWarning, error) {
	var inv *models.Invoice
	err := s.tenantTx(func(tx *gorm.DB) error {
		var err error
		inv, err = lockInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		if err := ensureMutable(inv); err != nil {
			return err
		}

		if len(in.Installments) == 0 {
			return invalid("installments", "marking as paid requires at least one installment")
		}
		plan := planFromInput(in.Installments)
		for i := range plan {
			if plan[i].PaidAt == nil {
				return invalid(fmt.Sprintf("installments[%d].paid_at", i), "every installment must carry a paid-at timestamp")
			}
		}
		if err := ValidatePlan(inv.Total, plan); err != nil {
			return err
		}
		if !coversPaid(inv.Installments, plan) {
			return invalid("installments", "the plan must keep already-paid installments intact")
		}

		if in.PaymentMethod != nil {
			inv.PaymentMethod = *in.PaymentMethod
		}
		if in.PaymentConditionID != nil {
			cond, err := loadCondition(tx, *in.PaymentConditionID)
			if err != nil {
				return err
			}
			inv.PaymentConditionID = &cond.Id
			inv.PaymentCondition = cond
		}
		if err := replaceInstallments(tx, inv, plan); err != nil {
			return err
		}
		if err := saveInvoice(tx, inv); err != nil {
			return err
		}
		return appendRevision(tx, inv, "markAsPaid")
	})
	if err != nil {
		return nil, nil, err
	}

	warnings, err := s.ApplyStockFollowUp(inv.ID, false)
	return inv, warnings, err
}

// ManualItemInput describes an ad hoc invoice line (point-of-sale product
// sale or free-form charge).
type ManualItemInput struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ProductID   *string         `json:"product_id"`
}

// AddManualItem appends a manual line to an unpaid invoice and recomputes
// total, schedule and status. A product-backed item is rejected outright when
// stock cannot cover it.
func (s *Service) AddManualItem(invoiceID uint, in ManualItemInput) (*models.Invoice, []StockWarning, error) {
	var inv *models.Invoice
	err := s.tenantTx(func(tx *gorm.DB) error {
		var err error
		inv, err = lockInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		if err := ensureMutable(inv); err != nil {
			return err
		}
		if in.Description == "" {
			return invalid("description", "description is required")
		}
		if in.Quantity <= 0 {
			return invalid("quantity", "quantity must be positive")
		}
		if in.UnitPrice.IsNegative() {
			return invalid("unit_price", "unit price must not be negative")
		}

		if in.ProductID != nil {
			var product models.Product
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&product, "id = ?", *in.ProductID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalid("product_id", "product not found")
			}
			if err != nil {
				return err
			}
			if !product.Sellable {
				return invalid("product_id", fmt.Sprintf("product %q is not sellable", product.Name))
			}
			if in.Quantity > product.StockQuantity {
				return &InsufficientStockError{StockWarning{
					ProductID:   product.Id,
					ProductName: product.Name,
					Requested:   in.Quantity,
					Available:   product.StockQuantity,
				}}
			}
		}

		item := models.InvoiceItem{
			InvoiceID:   inv.ID,
			SourceKind:  models.ItemSourceManual,
			ProductID:   in.ProductID,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Total:       in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2),
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		inv.Items = append(inv.Items, item)
		inv.Total = InvoiceTotal(inv.Items)

		return s.afterTotalChange(tx, inv, "item")
	})
	if err != nil {
		return nil, nil, err
	}

	warnings, err := s.ApplyStockFollowUp(inv.ID, false)
	return inv, warnings, err
}

// RemoveManualItem deletes a manual line from an unpaid invoice, releasing
// any stock it held. Attendance-sourced lines are not removable by hand.
func (s *Service) RemoveManualItem(invoiceID, itemID uint) (*models.Invoice, error) {
	var inv *models.Invoice
	err := s.tenantTx(func(tx *gorm.DB) error {
		var err error
		inv, err = lockInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		if err := ensureMutable(inv); err != nil {
			return err
		}

		idx := -1
		for i := range inv.Items {
			if inv.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return invalid("item_id", fmt.Sprintf("item %d not found on invoice %d", itemID, invoiceID))
		}
		if inv.Items[idx].Sourced() {
			return conflict(CodeItemNotRemovable,
				fmt.Sprintf("item %d", itemID), "attendance-sourced items are synchronized, not removed by hand")
		}

		if err := releaseItemStock(tx, itemID); err != nil {
			return err
		}
		if err := tx.Delete(&models.InvoiceItem{}, "id = ?", itemID).Error; err != nil {
			return err
		}
		inv.Items = append(inv.Items[:idx], inv.Items[idx+1:]...)
		inv.Total = InvoiceTotal(inv.Items)

		return s.afterTotalChange(tx, inv, "item")
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// afterTotalChange rebuilds the schedule over the new total (keeping paid
// installments), recomputes status and snapshots a revision.
func (s *Service) afterTotalChange(tx *gorm.DB, inv *models.Invoice, kind string) error {
	var cond *models.PaymentCondition
	if inv.PaymentConditionID != nil {
		var err error
		if cond, err = loadCondition(tx, *inv.PaymentConditionID); err != nil {
			return err
		}
	}
	plan, err := RebuildSchedule(inv.Installments, inv.Total, TermsOf(cond), inv.DueDate)
	if err != nil {
		return err
	}
	if err := replaceInstallments(tx, inv, plan); err != nil {
		return err
	}
	if err := saveInvoice(tx, inv); err != nil {
		return err
	}
	return appendRevision(tx, inv, kind)
}

// ResyncAttendance reconciles the invoice linked to an attendance inside an
// existing transaction (the caller has just mutated the attendance in it).
// Returns nil when the attendance is not invoiced yet. Fails with
// InvoiceLocked when the invoice is already paid.
func (s *Service) ResyncAttendance(tx *gorm.DB, attendanceID uint) (*models.Invoice, error) {
	invoiceID, err := InvoiceForAttendance(tx, attendanceID)
	if err != nil {
		return nil, err
	}
	if invoiceID == 0 {
		return nil, nil
	}

	inv, err := lockInvoice(tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := ensureMutable(inv); err != nil {
		return nil, err
	}

	att, err := loadAttendance(tx, attendanceID)
	if err != nil {
		return nil, err
	}
	items, changed, err := ReconcileItems(inv.Items, att)
	if err != nil {
		return nil, err
	}
	if !changed {
		return inv, nil
	}

	oldTotal := inv.Total
	if err := replaceItems(tx, inv, items); err != nil {
		return nil, err
	}
	if !inv.Total.Equal(oldTotal) {
		return inv, s.afterTotalChange(tx, inv, "resync")
	}
	if err := saveInvoice(tx, inv); err != nil {
		return nil, err
	}
	return inv, appendRevision(tx, inv, "resync")
}

// ApplyStockFollowUp is the stock reconciliation guard's write side. It runs
// in its own short transaction after the invoice write committed: items
// without a ledger row get one, stock is decremented atomically, shortfalls
// become warnings and stay retryable. settled marks invoices that were
// already paid before this pass; their items are recorded with a zero delta.
func (s *Service) ApplyStockFollowUp(invoiceID uint, settled bool) ([]StockWarning, error) {
	var warnings []StockWarning
	err := s.tenantTx(func(tx *gorm.DB) error {
		var items []models.InvoiceItem
		if err := tx.Where("invoice_id = ?", invoiceID).Order("id").Find(&items).Error; err != nil {
			return err
		}

		var ledger []models.StockMovement
		if err := tx.Where("invoice_id = ?", invoiceID).Find(&ledger).Error; err != nil {
			return err
		}
		adjusted := make(map[uint]bool, len(ledger))
		for _, mv := range ledger {
			adjusted[mv.InvoiceItemID] = true
		}

		productIDs := make([]string, 0, len(items))
		for _, it := range items {
			if it.ProductID != nil && !adjusted[it.ID] {
				productIDs = append(productIDs, *it.ProductID)
			}
		}
		products := make(map[string]*models.Product, len(productIDs))
		if len(productIDs) > 0 {
			var rows []models.Product
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id IN ?", productIDs).Find(&rows).Error
			if err != nil {
				return err
			}
			for i := range rows {
				products[rows[i].Id] = &rows[i]
			}
		}

		plan := PlanStockAdjustments(invoiceID, items, adjusted, products, settled)
		warnings = plan.Warnings

		for i := range plan.Movements {
			mv := plan.Movements[i]
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&mv)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 || mv.Quantity == 0 {
				// Lost the race to another pass, or a settled marker.
				continue
			}
			err := tx.Model(&models.Product{}).
				Where("id = ?", mv.ProductID).
				UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", mv.Quantity)).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, w := range warnings {
		log.Warn().
			Uint("invoice_id", invoiceID).
			Str("product_id", w.ProductID).
			Int("requested", w.Requested).
			Int("available", w.Available).
			Msg("stock reconciliation skipped an item")
	}
	return warnings, nil
}

// RetryStockReconciliation re-runs the stock pass over an invoice, picking up
// items skipped earlier for insufficient stock. When the invoice has settled
// in the meantime its remaining items are recorded with a zero delta: paid
// historical invoices never move stock retroactively.
func (s *Service) RetryStockReconciliation(invoiceID uint) ([]StockWarning, error) {
	settled := false
	err := s.tenantTx(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.First(&inv, "id = ?", invoiceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalid("invoice_id", fmt.Sprintf("invoice %d not found", invoiceID))
			}
			return err
		}
		settled = inv.Status == models.InvoicePaid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ApplyStockFollowUp(invoiceID, settled)
}

// SetBlocked toggles the administrative hold flag. Blocked is orthogonal to
// the derived payment status.
func (s *Service) SetBlocked(invoiceID uint, blocked bool) (*models.Invoice, error) {
	var inv *models.Invoice
	err := s.tenantTx(func(tx *gorm.DB) error {
		var err error
		inv, err = lockInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		inv.Blocked = blocked
		return tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).
			UpdateColumn("blocked", blocked).Error
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}
