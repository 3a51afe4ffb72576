package controllers

import (
	"errors"
	"strings"
	"time"

	"vetops-backend/billing"
	"vetops-backend/database"
	"vetops-backend/middlewares"
	"vetops-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AppointmentCreateDTO struct {
	AnimalID    uint      `json:"animal_id" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Reason      string    `json:"reason" validate:"omitempty"`
}

// POST /api/appointment
func CreateAppointment(c *fiber.Ctx) error {
	var in AppointmentCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var animal models.Animal
	if err := db.First(&animal, "id = ?", in.AnimalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "animal not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}

	appt := models.Appointment{
		AnimalID:    in.AnimalID,
		ScheduledAt: in.ScheduledAt,
		Status:      models.AppointmentScheduled,
		Reason:      strings.TrimSpace(in.Reason),
	}
	if err := db.Create(&appt).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not create appointment")
	}
	return c.Status(fiber.StatusCreated).JSON(appt)
}

// GET /api/appointments
func GetAppointments(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	q := db.Model(&models.Appointment{}).Preload("Animal").Order("scheduled_at")
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}

	var appts []models.Appointment
	if err := q.Find(&appts).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{"appointments": appts})
}

// PATCH /api/appointments/:id/complete
// Concluding the appointment makes its attendance billable. When the
// attendance is already invoiced, the invoice is resynchronized so its items
// and total stay current.
func CompleteAppointment(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing appointment id in path")
	}

	schema, _ := c.Locals("schema").(string)
	if schema == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "tenant schema missing")
	}
	svc := billing.NewService(database.DB, schema)

	var appt models.Appointment
	var inv *models.Invoice
	err := database.RunTenantTx(schema, func(tx *gorm.DB) error {
		if err := tx.First(&appt, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "appointment not found")
			}
			return err
		}
		if appt.Status == models.AppointmentCanceled {
			return fiber.NewError(fiber.StatusConflict, "a canceled appointment cannot be concluded")
		}

		appt.Status = models.AppointmentConcluded
		if err := tx.Model(&models.Appointment{}).Where("id = ?", appt.Id).
			UpdateColumn("status", models.AppointmentConcluded).Error; err != nil {
			return err
		}

		var att models.Attendance
		err := tx.First(&att, "appointment_id = ?", appt.Id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // nothing rendered yet, nothing to bill
		}
		if err != nil {
			return err
		}

		inv, err = svc.ResyncAttendance(tx, att.Id)
		return err
	})
	if err != nil {
		return err
	}

	var warnings []billing.StockWarning
	if inv != nil {
		if warnings, err = svc.ApplyStockFollowUp(inv.ID, false); err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{
		"appointment":    appt,
		"stock_warnings": warningMessages(warnings),
	})
}
