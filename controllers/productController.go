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

type ProductInput struct {
	Name          string          `json:"name" validate:"required,min=1"`
	Description   string          `json:"description" validate:"omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	MinStock      int             `json:"min_stock" validate:"gte=0"`
	Sellable      bool            `json:"sellable"`
}

type ProductUpdateDTO struct {
	Name        *string          `json:"name" validate:"omitempty,min=1"`
	Description *string          `json:"description" validate:"omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	MinStock    *int             `json:"min_stock" validate:"omitempty,gte=0"`
	Sellable    *bool            `json:"sellable"`
}

// POST /api/product (batch create)
func CreateProducts(c *fiber.Ctx) error {
	var inputs []ProductInput
	if err := c.BodyParser(&inputs); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var created []models.Product
	for i := range inputs {
		if err := middlewares.ValidateStruct(&inputs[i]); err != nil {
			return err
		}
		utils.NormalizeDTO(&inputs[i])
		if inputs[i].UnitPrice.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "unit price must not be negative")
		}

		product := models.Product{
			Name:          inputs[i].Name,
			Description:   inputs[i].Description,
			UnitPrice:     utils.Money(inputs[i].UnitPrice),
			StockQuantity: inputs[i].StockQuantity,
			MinStock:      inputs[i].MinStock,
			Sellable:      inputs[i].Sellable,
			Active:        true,
		}
		if err := db.Create(&product).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not create product")
		}
		created = append(created, product)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// GET /api/products
func GetProducts(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}
	var products []models.Product
	if err := db.Order("name").Find(&products).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{"products": products})
}

// GET /api/products/low-stock
func GetLowStockProducts(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}
	var products []models.Product
	err = db.Where("stock_quantity <= min_stock").Order("name").Find(&products).Error
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{"products": products})
}

// PUT /api/products/:id
func UpdateProduct(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing product id in path")
	}

	var in ProductUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "unit price must not be negative")
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var existing models.Product
	if err := db.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}

	updates := utils.UpdatesFromPtrDTO(&in, nil)
	if len(updates) > 0 {
		if err := db.Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not update product")
		}
	}

	var out models.Product
	if err := db.First(&out, "id = ?", id).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to reload product")
	}
	return c.JSON(out)
}
