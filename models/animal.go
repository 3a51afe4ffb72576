package models

import "time"

type Animal struct {
	Id        uint       `json:"id" gorm:"primaryKey"`
	OwnerID   uint       `json:"owner_id" gorm:"not null;index"`
	Owner     Owner      `json:"owner" gorm:"foreignKey:OwnerID;references:Id"`
	Name      string     `json:"name" gorm:"not null"`
	Species   string     `json:"species" gorm:"not null"`
	Breed     string     `json:"breed"`
	Sex       string     `json:"sex"`
	BirthDate *time.Time `json:"birth_date"`
	Microchip string     `json:"microchip"`
	Notes     string     `json:"notes"`
	CreatedAt time.Time  `json:"created_at"`
}
