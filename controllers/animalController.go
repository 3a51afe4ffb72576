package controllers

import (
	"errors"
	"strings"
	"time"

	"vetops-backend/database"
	"vetops-backend/middlewares"
	"vetops-backend/models"
	"vetops-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AnimalCreateDTO struct {
	OwnerID   uint       `json:"owner_id" validate:"required"`
	Name      string     `json:"name" validate:"required,min=1"`
	Species   string     `json:"species" validate:"required,min=1"`
	Breed     string     `json:"breed" validate:"omitempty"`
	Sex       string     `json:"sex" validate:"omitempty,oneof=male female unknown"`
	BirthDate *time.Time `json:"birth_date" validate:"omitempty"`
	Microchip string     `json:"microchip" validate:"omitempty"`
	Notes     string     `json:"notes" validate:"omitempty"`
}

type AnimalUpdateDTO struct {
	Name      *string `json:"name" validate:"omitempty,min=1"`
	Species   *string `json:"species" validate:"omitempty,min=1"`
	Breed     *string `json:"breed" validate:"omitempty"`
	Sex       *string `json:"sex" validate:"omitempty,oneof=male female unknown"`
	Microchip *string `json:"microchip" validate:"omitempty"`
	Notes     *string `json:"notes" validate:"omitempty"`
}

// POST /api/animal
func CreateAnimal(c *fiber.Ctx) error {
	var in AnimalCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var owner models.Owner
	if err := db.First(&owner, "id = ?", in.OwnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "owner not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}

	animal := models.Animal{
		OwnerID:   in.OwnerID,
		Name:      in.Name,
		Species:   in.Species,
		Breed:     in.Breed,
		Sex:       in.Sex,
		BirthDate: in.BirthDate,
		Microchip: in.Microchip,
		Notes:     in.Notes,
	}
	if err := db.Create(&animal).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not create animal")
	}
	return c.Status(fiber.StatusCreated).JSON(animal)
}

// GET /api/animals?owner_id=N
func GetAnimals(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	q := db.Model(&models.Animal{}).Preload("Owner").Order("id")
	if owner := strings.TrimSpace(c.Query("owner_id")); owner != "" {
		q = q.Where("owner_id = ?", owner)
	}

	var animals []models.Animal
	if err := q.Find(&animals).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{"animals": animals})
}

// PUT /api/animal/:id
func UpdateAnimal(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing animal id in path")
	}

	var in AnimalUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var existing models.Animal
	if err := db.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "animal not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}

	updates := utils.UpdatesFromPtrDTO(&in, nil)
	if len(updates) > 0 {
		if err := db.Model(&models.Animal{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not update animal")
		}
	}

	var out models.Animal
	if err := db.Preload("Owner").First(&out, "id = ?", id).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to reload animal")
	}
	return c.JSON(out)
}
