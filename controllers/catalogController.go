package controllers

import (
	"errors"
	"strings"

	"vetops-backend/database"
	"vetops-backend/middlewares"
	"vetops-backend/models"
	"vetops-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ServiceCreateDTO struct {
	Name        string          `json:"name" validate:"required,min=1"`
	Description string          `json:"description" validate:"omitempty"`
	Price       decimal.Decimal `json:"price"`
}

type ServiceUpdateDTO struct {
	Name        *string          `json:"name" validate:"omitempty,min=1"`
	Description *string          `json:"description" validate:"omitempty"`
	Price       *decimal.Decimal `json:"price"`
}

// POST /api/service
func CreateService(c *fiber.Ctx) error {
	var in ServiceCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)
	if in.Price.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "price must not be negative")
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	service := models.CatalogService{
		Name:        in.Name,
		Description: in.Description,
		Price:       utils.Money(in.Price),
		Active:      true,
	}
	if err := db.Create(&service).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not create service")
	}
	return c.Status(fiber.StatusCreated).JSON(service)
}

// GET /api/services
func GetServices(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}
	var services []models.CatalogService
	if err := db.Order("name").Find(&services).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{"services": services})
}

// PUT /api/service/:id
func UpdateService(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing service id in path")
	}

	var in ServiceUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)
	if in.Price != nil && in.Price.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "price must not be negative")
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var existing models.CatalogService
	if err := db.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "service not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}

	updates := utils.UpdatesFromPtrDTO(&in, nil)
	if len(updates) > 0 {
		if err := db.Model(&models.CatalogService{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not update service")
		}
	}

	var out models.CatalogService
	if err := db.First(&out, "id = ?", id).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to reload service")
	}
	return c.JSON(out)
}
