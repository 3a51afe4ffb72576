package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Invoice statuses. OPEN/PARTIALLY_PAID/PAID are derived from installment
// paid-at stamps and never set directly; Blocked is an orthogonal flag.
const (
	InvoiceOpen          = "OPEN"
	InvoicePartiallyPaid = "PARTIALLY_PAID"
	InvoicePaid          = "PAID"
)

// InvoiceItem source kinds. Sourced kinds carry the attendance id plus the id
// of the attendance line they mirror; manual items carry neither.
const (
	ItemSourceFee     = "attendance_fee"
	ItemSourceService = "service"
	ItemSourceProduct = "product"
	ItemSourceManual  = "manual"
)

// Invoice is the billing record for one owner. Total is derived from the
// current line items and is never independently edited.
type Invoice struct {
	ID      uint  `json:"id" gorm:"primaryKey"`
	OwnerID uint  `json:"-" gorm:"not null;index"`
	Owner   Owner `json:"owner" gorm:"foreignKey:OwnerID;references:Id"`

	Items []InvoiceItem   `json:"items" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Total decimal.Decimal `json:"total" gorm:"type:numeric(12,2)"`

	DueDate            time.Time         `json:"due_date"`
	PaymentMethod      string            `json:"payment_method"`
	PaymentConditionID *uint             `json:"payment_condition_id"`
	PaymentCondition   *PaymentCondition `json:"payment_condition_details,omitempty" gorm:"foreignKey:PaymentConditionID;references:Id"`

	Installments []InvoiceInstallment `json:"installments" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`

	Status  string `json:"status" gorm:"type:varchar(20);default:OPEN"`
	Blocked bool   `json:"blocked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvoiceItem is one invoice line. Sourced items (fee/service/product kinds)
// are synchronized from their attendance line and cannot be removed by hand;
// manual items are removable while the invoice is unpaid.
type InvoiceItem struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	InvoiceID uint `json:"-" gorm:"index"`

	SourceKind   string `json:"source_kind" gorm:"type:varchar(20);not null"`
	AttendanceID *uint  `json:"attendance_id" gorm:"index"`
	SourceLineID *uint  `json:"source_line_id"`

	ProductID *string  `json:"product_id" gorm:"index"`
	Product   *Product `json:"-" gorm:"foreignKey:ProductID;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`

	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2)"`
	Total       decimal.Decimal `json:"total" gorm:"type:numeric(12,2)"`
}

// Sourced reports whether the item mirrors an attendance line.
func (it *InvoiceItem) Sourced() bool {
	return it.SourceKind != ItemSourceManual
}

// InvoiceInstallment is one scheduled partial payment. The sum of an
// invoice's installment amounts always equals the invoice total.
type InvoiceInstallment struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	InvoiceID uint            `json:"-" gorm:"index:idx_installments_invoice_number,unique,priority:1"`
	Number    int             `json:"number" gorm:"not null;index:idx_installments_invoice_number,unique,priority:2"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(12,2)"`
	DueDate   time.Time       `json:"due_date"`
	PaidAt    *time.Time      `json:"paid_at"`
}

// StockMovement is the applied-delta ledger behind the stock reconciliation
// guard: at most one row per invoice item (unique index), recording the stock
// delta that was actually applied for it. Quantity 0 marks an item of an
// already-settled invoice that must never move stock.
type StockMovement struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	InvoiceItemID uint      `json:"invoice_item_id" gorm:"uniqueIndex"`
	InvoiceID     uint      `json:"invoice_id" gorm:"index"`
	ProductID     string    `json:"product_id" gorm:"index"`
	Quantity      int       `json:"quantity"` // units deducted from stock
	CreatedAt     time.Time `json:"created_at"`
}

// InvoiceRevision is an immutable snapshot appended on every invoice
// mutation, versioned per invoice.
type InvoiceRevision struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	InvoiceID  uint           `json:"invoice_id" gorm:"index:idx_invoice_revisions_invoice_id_revision_no,unique,priority:1"`
	RevisionNo int            `json:"revision_no" gorm:"not null;index:idx_invoice_revisions_invoice_id_revision_no,unique,priority:2"`
	Kind       string         `json:"kind" gorm:"type:varchar(20)"` // "create" | "resync" | "adjust" | "markAsPaid" | "item"
	Snapshot   datatypes.JSON `json:"snapshot" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at"`
}
