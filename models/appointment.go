package models

import "time"

const (
	AppointmentScheduled = "scheduled"
	AppointmentConcluded = "concluded"
	AppointmentCanceled  = "canceled"
)

type Appointment struct {
	Id          uint      `json:"id" gorm:"primaryKey"`
	AnimalID    uint      `json:"animal_id" gorm:"not null;index"`
	Animal      Animal    `json:"animal" gorm:"foreignKey:AnimalID;references:Id"`
	ScheduledAt time.Time `json:"scheduled_at" gorm:"not null"`
	Status      string    `json:"status" gorm:"type:varchar(20);default:scheduled"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}
