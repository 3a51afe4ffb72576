package controllers

import (
	"errors"
	"strings"

	"vetops-backend/billing"
	"vetops-backend/database"
	"vetops-backend/middlewares"
	"vetops-backend/models"
	"vetops-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AttendanceServiceDTO struct {
	ServiceID   uint             `json:"service_id" validate:"required"`
	Description string           `json:"description" validate:"omitempty"`
	Quantity    int              `json:"quantity" validate:"required,gte=1"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

type AttendanceProductDTO struct {
	ProductID   string           `json:"product_id" validate:"required"`
	Description string           `json:"description" validate:"omitempty"`
	Quantity    int              `json:"quantity" validate:"required,gte=1"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

type AttendanceCreateDTO struct {
	AnimalID      uint                   `json:"animal_id" validate:"required"`
	AppointmentID *uint                  `json:"appointment_id"`
	BasePrice     decimal.Decimal        `json:"base_price"`
	Notes         string                 `json:"notes" validate:"omitempty"`
	ServiceLines  []AttendanceServiceDTO `json:"service_lines" validate:"omitempty,dive"`
	ProductLines  []AttendanceProductDTO `json:"product_lines" validate:"omitempty,dive"`
}

type AttendanceUpdateDTO struct {
	BasePrice    *decimal.Decimal       `json:"base_price"`
	Notes        *string                `json:"notes" validate:"omitempty"`
	ServiceLines []AttendanceServiceDTO `json:"service_lines" validate:"omitempty,dive"`
	ProductLines []AttendanceProductDTO `json:"product_lines" validate:"omitempty,dive"`
}

func buildServiceLines(tx *gorm.DB, in []AttendanceServiceDTO) ([]models.AttendanceService, error) {
	out := make([]models.AttendanceService, 0, len(in))
	for _, dto := range in {
		var svc models.CatalogService
		if err := tx.First(&svc, "id = ?", dto.ServiceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fiber.NewError(fiber.StatusBadRequest, "unknown catalog service")
			}
			return nil, err
		}
		unit := svc.Price
		if dto.UnitPrice != nil {
			unit = *dto.UnitPrice
		}
		if unit.IsNegative() {
			return nil, fiber.NewError(fiber.StatusBadRequest, "unit price must not be negative")
		}
		out = append(out, models.AttendanceService{
			ServiceID:   dto.ServiceID,
			Description: strings.TrimSpace(dto.Description),
			Quantity:    dto.Quantity,
			UnitPrice:   utils.Money(unit),
			LineTotal:   utils.LineTotal(dto.Quantity, unit),
		})
	}
	return out, nil
}

func buildProductLines(tx *gorm.DB, in []AttendanceProductDTO) ([]models.AttendanceProduct, error) {
	out := make([]models.AttendanceProduct, 0, len(in))
	for _, dto := range in {
		var product models.Product
		if err := tx.First(&product, "id = ?", dto.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fiber.NewError(fiber.StatusBadRequest, "unknown product")
			}
			return nil, err
		}
		unit := product.UnitPrice
		if dto.UnitPrice != nil {
			unit = *dto.UnitPrice
		}
		if unit.IsNegative() {
			return nil, fiber.NewError(fiber.StatusBadRequest, "unit price must not be negative")
		}
		out = append(out, models.AttendanceProduct{
			ProductID:   dto.ProductID,
			Description: strings.TrimSpace(dto.Description),
			Quantity:    dto.Quantity,
			UnitPrice:   utils.Money(unit),
			LineTotal:   utils.LineTotal(dto.Quantity, unit),
		})
	}
	return out, nil
}

// POST /api/attendance
func CreateAttendance(c *fiber.Ctx) error {
	var in AttendanceCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	if in.BasePrice.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "base price must not be negative")
	}

	schema, _ := c.Locals("schema").(string)
	if schema == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "tenant schema missing")
	}

	var att models.Attendance
	err := database.RunTenantTx(schema, func(tx *gorm.DB) error {
		var animal models.Animal
		if err := tx.First(&animal, "id = ?", in.AnimalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusBadRequest, "animal not found")
			}
			return err
		}

		services, err := buildServiceLines(tx, in.ServiceLines)
		if err != nil {
			return err
		}
		products, err := buildProductLines(tx, in.ProductLines)
		if err != nil {
			return err
		}

		att = models.Attendance{
			AnimalID:      in.AnimalID,
			AppointmentID: in.AppointmentID,
			BasePrice:     utils.Money(in.BasePrice),
			Notes:         strings.TrimSpace(in.Notes),
			ServiceLines:  services,
			ProductLines:  products,
		}
		return tx.Create(&att).Error
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(att)
}

// GET /api/attendance/:id
func GetAttendance(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	schema, _ := c.Locals("schema").(string)
	if schema == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "tenant schema missing")
	}

	var att models.Attendance
	err := database.RunTenantTx(schema, func(tx *gorm.DB) error {
		return tx.
			Preload("Animal").
			Preload("Animal.Owner").
			Preload("Appointment").
			Preload("ServiceLines").
			Preload("ProductLines").
			First(&att, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "attendance not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(att)
}

// PUT /api/attendance/:id
// Editing an invoiced attendance triggers invoice resynchronization in the
// same transaction; the stock follow-up runs after it commits.
func UpdateAttendance(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing attendance id in path")
	}

	var in AttendanceUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	if in.BasePrice != nil && in.BasePrice.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "base price must not be negative")
	}

	schema, _ := c.Locals("schema").(string)
	if schema == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "tenant schema missing")
	}
	svc := billing.NewService(database.DB, schema)

	var att models.Attendance
	var inv *models.Invoice
	err := database.RunTenantTx(schema, func(tx *gorm.DB) error {
		if err := tx.First(&att, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "attendance not found")
			}
			return err
		}

		if in.BasePrice != nil {
			att.BasePrice = utils.Money(*in.BasePrice)
		}
		if in.Notes != nil {
			att.Notes = strings.TrimSpace(*in.Notes)
		}
		if err := tx.Model(&models.Attendance{}).Where("id = ?", att.Id).Updates(map[string]any{
			"base_price": att.BasePrice,
			"notes":      att.Notes,
		}).Error; err != nil {
			return err
		}

		// Replace line sets when provided.
		if in.ServiceLines != nil {
			services, err := buildServiceLines(tx, in.ServiceLines)
			if err != nil {
				return err
			}
			if err := tx.Delete(&models.AttendanceService{}, "attendance_id = ?", att.Id).Error; err != nil {
				return err
			}
			for i := range services {
				services[i].AttendanceID = att.Id
				if err := tx.Create(&services[i]).Error; err != nil {
					return err
				}
			}
		}
		if in.ProductLines != nil {
			products, err := buildProductLines(tx, in.ProductLines)
			if err != nil {
				return err
			}
			if err := tx.Delete(&models.AttendanceProduct{}, "attendance_id = ?", att.Id).Error; err != nil {
				return err
			}
			for i := range products {
				products[i].AttendanceID = att.Id
				if err := tx.Create(&products[i]).Error; err != nil {
					return err
				}
			}
		}

		var err error
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

	err = database.RunTenantTx(schema, func(tx *gorm.DB) error {
		return tx.
			Preload("Animal").
			Preload("ServiceLines").
			Preload("ProductLines").
			First(&att, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"attendance":     att,
		"stock_warnings": warningMessages(warnings),
	})
}

func warningMessages(warnings []billing.StockWarning) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Message())
	}
	return out
}
