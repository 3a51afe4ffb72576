package billing

import "fmt"

// Conflict codes returned inside StateConflictError.
const (
	CodeInvoiceLocked          = "InvoiceLocked"
	CodeAttendanceNotBillable  = "AttendanceNotBillable"
	CodeItemNotRemovable       = "ItemNotRemovable"
	CodeInvalidAttendanceState = "InvalidAttendanceState"
)

// MsgAttendanceNotBillable is the user-facing rejection for invoicing a
// non-concluded appointment.
const MsgAttendanceNotBillable = "Apenas agendamentos concluídos podem ser faturados."

// ValidationError flags malformed or inconsistent caller input. No mutation
// has been applied when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StateConflictError flags an operation that is illegal in the entity's
// current state (paid invoice mutation, non-concluded appointment, ...).
type StateConflictError struct {
	Code   string
	Entity string
	Reason string
}

func (e *StateConflictError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Entity, e.Reason)
}

func conflict(code, entity, reason string) *StateConflictError {
	return &StateConflictError{Code: code, Entity: entity, Reason: reason}
}

// StockWarning names one product whose stock could not cover a billed
// quantity. After a committed invoice write it is surfaced as a non-blocking
// warning; the affected item stays unadjusted and is retried on the next pass.
type StockWarning struct {
	InvoiceItemID uint   `json:"invoice_item_id"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	Requested     int    `json:"requested"`
	Available     int    `json:"available"`
}

func (w StockWarning) Message() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		w.ProductName, w.Requested, w.Available)
}

// InsufficientStockError is the blocking variant of StockWarning, raised when
// a manual item with a product reference is added beyond current stock.
type InsufficientStockError struct {
	StockWarning
}

func (e *InsufficientStockError) Error() string {
	return e.Message()
}
