package controllers

import (
	"errors"
	"strconv"
	"strings"

	"vetops-backend/billing"
	"vetops-backend/database"
	"vetops-backend/models"
	"vetops-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func billingService(c *fiber.Ctx) (*billing.Service, error) {
	schema, _ := c.Locals("schema").(string)
	if schema == "" {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "tenant schema missing")
	}
	return billing.NewService(database.DB, schema), nil
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	raw := strings.TrimSpace(c.Params(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name+" in path")
	}
	return uint(id), nil
}

type InvoiceCreateDTO struct {
	AppointmentID *uint `json:"appointment_id"`
	AttendanceID  *uint `json:"attendance_id"`
}

// POST /api/invoices
// Bills an attendance, addressed either directly or through its appointment
// (walk-in attendances have no appointment).
func CreateInvoice(c *fiber.Ctx) error {
	var in InvoiceCreateDTO
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if in.AppointmentID == nil && in.AttendanceID == nil {
		return fiber.NewError(fiber.StatusBadRequest, "appointment_id or attendance_id is required")
	}

	svc, err := billingService(c)
	if err != nil {
		return err
	}
	schema, _ := c.Locals("schema").(string)

	attendanceID := uint(0)
	if in.AttendanceID != nil {
		attendanceID = *in.AttendanceID
	} else {
		err := database.RunTenantTx(schema, func(tx *gorm.DB) error {
			var att models.Attendance
			if err := tx.First(&att, "appointment_id = ?", *in.AppointmentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fiber.NewError(fiber.StatusNotFound, "no attendance recorded for this appointment")
				}
				return err
			}
			attendanceID = att.Id
			return nil
		})
		if err != nil {
			return err
		}
	}

	inv, warnings, err := svc.CreateInvoiceForAttendance(attendanceID)
	if err != nil {
		return err
	}

	out, err := loadInvoice(schema, inv.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"invoice":        out,
		"stock_warnings": warningMessages(warnings),
	})
}

func loadInvoice(schema string, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := database.RunTenantTx(schema, func(tx *gorm.DB) error {
		return tx.
			Preload("Owner").
			Preload("Items").
			Preload("Installments", func(db *gorm.DB) *gorm.DB { return db.Order("number") }).
			Preload("PaymentCondition").
			First(&inv, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "invoice not found")
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GET /api/invoices
func GetInvoices(c *fiber.Ctx) error {
	schema, _ := c.Locals("schema").(string)
	if schema == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "tenant schema missing")
	}

	limit := utils.ParseIntDefault(c.Query("limit"), 50)
	offset := utils.ParseIntDefault(c.Query("offset"), 0)

	var invoices []models.Invoice
	err := database.RunTenantTx(schema, func(tx *gorm.DB) error {
		q := tx.Model(&models.Invoice{}).
			Preload("Owner").
			Preload("Items").
			Preload("Installments", func(db *gorm.DB) *gorm.DB { return db.Order("number") }).
			Preload("PaymentCondition").
			Order("id DESC").
			Limit(limit).Offset(offset)
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			q = q.Where("status = ?", status)
		}
		if owner := strings.TrimSpace(c.Query("owner_id")); owner != "" {
			q = q.Where("owner_id = ?", owner)
		}
		return q.Find(&invoices).Error
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"invoices": invoices})
}

// GET /api/invoice/:id
func GetInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	schema, _ := c.Locals("schema").(string)
	if schema == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "tenant schema missing")
	}
	inv, err := loadInvoice(schema, id)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// GET /api/invoice-statuses
func GetInvoiceStatuses(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"statuses": []string{models.InvoiceOpen, models.InvoicePartiallyPaid, models.InvoicePaid},
	})
}

// PATCH /api/invoices/:id/adjust
func AdjustInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in billing.AdjustInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	svc, err := billingService(c)
	if err != nil {
		return err
	}
	_, warnings, err := svc.AdjustInvoice(id, in)
	if err != nil {
		return err
	}

	schema, _ := c.Locals("schema").(string)
	out, err := loadInvoice(schema, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"invoice":        out,
		"stock_warnings": warningMessages(warnings),
	})
}

// POST /api/invoices/:id/markAsPaid
func MarkInvoiceAsPaid(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in billing.AdjustInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	svc, err := billingService(c)
	if err != nil {
		return err
	}
	_, warnings, err := svc.MarkInvoiceAsPaid(id, in)
	if err != nil {
		return err
	}

	schema, _ := c.Locals("schema").(string)
	out, err := loadInvoice(schema, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"invoice":        out,
		"stock_warnings": warningMessages(warnings),
	})
}

// POST /api/invoices/:id/items
func AddInvoiceItem(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in billing.ManualItemInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	svc, err := billingService(c)
	if err != nil {
		return err
	}
	_, warnings, err := svc.AddManualItem(id, in)
	if err != nil {
		return err
	}

	schema, _ := c.Locals("schema").(string)
	out, err := loadInvoice(schema, id)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"invoice":        out,
		"stock_warnings": warningMessages(warnings),
	})
}

// DELETE /api/invoices/:id/items/:itemId
func RemoveInvoiceItem(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	itemID, err := paramID(c, "itemId")
	if err != nil {
		return err
	}

	svc, err := billingService(c)
	if err != nil {
		return err
	}
	if _, err := svc.RemoveManualItem(id, itemID); err != nil {
		return err
	}

	schema, _ := c.Locals("schema").(string)
	out, err := loadInvoice(schema, id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// GET /api/invoices/:id/revisions
func GetInvoiceRevisions(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	schema, _ := c.Locals("schema").(string)
	if schema == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "tenant schema missing")
	}

	var revisions []models.InvoiceRevision
	err = database.RunTenantTx(schema, func(tx *gorm.DB) error {
		return tx.Where("invoice_id = ?", id).Order("revision_no").Find(&revisions).Error
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"revisions": revisions})
}

// POST /api/invoices/:id/stock/reconcile
// Retries stock adjustments skipped earlier for insufficient stock.
func ReconcileInvoiceStock(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	svc, err := billingService(c)
	if err != nil {
		return err
	}
	warnings, err := svc.RetryStockReconciliation(id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"stock_warnings": warningMessages(warnings)})
}

// PATCH /api/invoices/:id/block and /unblock
func BlockInvoice(c *fiber.Ctx) error {
	return setInvoiceBlocked(c, true)
}

func UnblockInvoice(c *fiber.Ctx) error {
	return setInvoiceBlocked(c, false)
}

func setInvoiceBlocked(c *fiber.Ctx, blocked bool) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	svc, err := billingService(c)
	if err != nil {
		return err
	}
	inv, err := svc.SetBlocked(id, blocked)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}
