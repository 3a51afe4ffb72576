package models

// PaymentCondition is a named installment template: how many installments and
// how many days apart. Referenced by invoices; deletable only while unused.
type PaymentCondition struct {
	Id           uint   `json:"id" gorm:"primaryKey"`
	Name         string `json:"name" gorm:"not null;unique"`
	Installments int    `json:"installments" gorm:"not null"`
	DayOffset    int    `json:"day_offset" gorm:"not null"`
	Notes        string `json:"notes"`
}
