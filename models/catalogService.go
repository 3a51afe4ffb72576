package models

import "github.com/shopspring/decimal"

// CatalogService is a billable clinical service definition (consultation,
// vaccination, surgery, ...).
type CatalogService struct {
	Id          uint            `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"not null"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2)"`
	Active      bool            `json:"-"`
}
