package controllers

import (
	"errors"
	"strings"

	"vetops-backend/database"
	"vetops-backend/middlewares"
	"vetops-backend/models"
	"vetops-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type PaymentConditionCreateDTO struct {
	Name         string `json:"name" validate:"required,min=1"`
	Installments int    `json:"installments" validate:"required,gte=1"`
	DayOffset    int    `json:"day_offset" validate:"gte=0"`
	Notes        string `json:"notes" validate:"omitempty"`
}

type PaymentConditionUpdateDTO struct {
	Name         *string `json:"name" validate:"omitempty,min=1"`
	Installments *int    `json:"installments" validate:"omitempty,gte=1"`
	DayOffset    *int    `json:"day_offset" validate:"omitempty,gte=0"`
	Notes        *string `json:"notes" validate:"omitempty"`
}

// POST /api/payment-condition
func CreatePaymentCondition(c *fiber.Ctx) error {
	var in PaymentConditionCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	cond := models.PaymentCondition{
		Name:         in.Name,
		Installments: in.Installments,
		DayOffset:    in.DayOffset,
		Notes:        in.Notes,
	}
	if err := db.Create(&cond).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not create payment condition")
	}
	return c.Status(fiber.StatusCreated).JSON(cond)
}

// GET /api/payment-conditions
func GetPaymentConditions(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}
	var conds []models.PaymentCondition
	if err := db.Order("id").Find(&conds).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{"payment_conditions": conds})
}

// PUT /api/payment-condition/:id
func UpdatePaymentCondition(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing payment condition id in path")
	}

	var in PaymentConditionUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var existing models.PaymentCondition
	if err := db.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "payment condition not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}

	updates := utils.UpdatesFromPtrDTO(&in, nil)
	if len(updates) > 0 {
		if err := db.Model(&models.PaymentCondition{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not update payment condition")
		}
	}

	var out models.PaymentCondition
	if err := db.First(&out, "id = ?", id).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to reload payment condition")
	}
	return c.JSON(out)
}

// DELETE /api/payment-condition/:id
// A condition referenced by any invoice is not deletable.
func DeletePaymentCondition(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing payment condition id in path")
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var existing models.PaymentCondition
	if err := db.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "payment condition not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}

	var inUse int64
	if err := db.Model(&models.Invoice{}).Where("payment_condition_id = ?", id).Count(&inUse).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	if inUse > 0 {
		return fiber.NewError(fiber.StatusConflict, "payment condition is referenced by invoices")
	}

	if err := db.Delete(&models.PaymentCondition{}, "id = ?", id).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not delete payment condition")
	}
	return c.JSON(fiber.Map{"message": "deleted"})
}
