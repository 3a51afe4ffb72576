package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a stocked item (medication, food, supplies). StockQuantity is
// only mutated through atomic increments/decrements recorded in the
// stock_movements ledger.
type Product struct {
	Id            string          `json:"id" gorm:"primaryKey"`
	Name          string          `json:"name" gorm:"not null"`
	Description   string          `json:"description"`
	UnitPrice     decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2)"`
	StockQuantity int             `json:"stock_quantity"`
	MinStock      int             `json:"min_stock"`
	Sellable      bool            `json:"sellable"`
	Active        bool            `json:"-"`
}

func (product *Product) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	product.Id = uuid.NewString()
	return
}
