package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Attendance is one rendered clinical service event for one animal. Its
// service and product lines are the source of truth for the linked invoice's
// sourced line items; editing them triggers invoice resynchronization.
type Attendance struct {
	Id            uint            `json:"id" gorm:"primaryKey"`
	AnimalID      uint            `json:"animal_id" gorm:"not null;index"`
	Animal        Animal          `json:"animal" gorm:"foreignKey:AnimalID;references:Id"`
	AppointmentID *uint           `json:"appointment_id" gorm:"index"`
	Appointment   *Appointment    `json:"appointment,omitempty" gorm:"foreignKey:AppointmentID;references:Id"`
	BasePrice     decimal.Decimal `json:"base_price" gorm:"type:numeric(12,2)"`

	ServiceLines []AttendanceService `json:"service_lines" gorm:"foreignKey:AttendanceID;constraint:OnDelete:CASCADE"`
	ProductLines []AttendanceProduct `json:"product_lines" gorm:"foreignKey:AttendanceID;constraint:OnDelete:CASCADE"`

	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AttendanceService struct {
	Id           uint            `json:"id" gorm:"primaryKey"`
	AttendanceID uint            `json:"-" gorm:"index"`
	ServiceID    uint            `json:"service_id" gorm:"not null;index"`
	Service      CatalogService  `json:"-" gorm:"foreignKey:ServiceID;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Description  string          `json:"description"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2)"`
	LineTotal    decimal.Decimal `json:"line_total" gorm:"type:numeric(12,2)"`
}

type AttendanceProduct struct {
	Id           uint            `json:"id" gorm:"primaryKey"`
	AttendanceID uint            `json:"-" gorm:"index"`
	ProductID    string          `json:"product_id" gorm:"not null;index"`
	Product      Product         `json:"-" gorm:"foreignKey:ProductID;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Description  string          `json:"description"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2)"`
	LineTotal    decimal.Decimal `json:"line_total" gorm:"type:numeric(12,2)"`
}
