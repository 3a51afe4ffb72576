package billing

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vetops-backend/database"
	"vetops-backend/models"
)

// newTestService connects to the database named by TEST_DATABASE_DSN and
// provisions a throwaway tenant schema. Skipped when the variable is unset;
// the engine's transaction shape (SET LOCAL search_path, FOR UPDATE) only
// exists on Postgres.
func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := fmt.Sprintf("billing_test_%d", time.Now().UnixNano())
	require.NoError(t, db.Exec("CREATE SCHEMA "+schema).Error)
	t.Cleanup(func() { db.Exec("DROP SCHEMA " + schema + " CASCADE") })

	database.DB = db
	require.NoError(t, database.MigrateTenantSchema(schema))
	return NewService(db, schema)
}

// seedBilledAttendance creates an owner, animal, product (with the given
// stock) and a walk-in attendance consuming 2 units at 25.00.
func seedBilledAttendance(t *testing.T, s *Service, stock int) (attID uint, productID string) {
	t.Helper()
	require.NoError(t, s.tenantTx(func(tx *gorm.DB) error {
		owner := models.Owner{
			FirstName: "Ana", LastName: "Souza",
			Email: "ana@example.com", PhoneNumber: "11999990000", Active: true,
		}
		if err := tx.Create(&owner).Error; err != nil {
			return err
		}
		animal := models.Animal{OwnerID: owner.Id, Name: "Rex", Species: "dog"}
		if err := tx.Create(&animal).Error; err != nil {
			return err
		}
		product := models.Product{
			Name: "Vermífugo", UnitPrice: dec("25.00"),
			StockQuantity: stock, Sellable: true, Active: true,
		}
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		att := models.Attendance{
			AnimalID: animal.Id,
			ProductLines: []models.AttendanceProduct{{
				ProductID: product.Id, Quantity: 2,
				UnitPrice: dec("25.00"), LineTotal: dec("50.00"),
			}},
		}
		if err := tx.Create(&att).Error; err != nil {
			return err
		}
		attID, productID = att.Id, product.Id
		return nil
	}))
	return attID, productID
}

func restock(t *testing.T, s *Service, productID string, quantity int) {
	t.Helper()
	require.NoError(t, s.tenantTx(func(tx *gorm.DB) error {
		return tx.Model(&models.Product{}).Where("id = ?", productID).
			UpdateColumn("stock_quantity", quantity).Error
	}))
}

func TestAdjustInvoiceSettlementConfirmsStock(t *testing.T) {
	s := newTestService(t)
	attID, productID := seedBilledAttendance(t, s, 0)

	inv, warnings, err := s.CreateInvoiceForAttendance(attID)
	require.NoError(t, err)
	require.Len(t, warnings, 1) // nothing on the shelf yet

	restock(t, s, productID, 5)

	// Settling through an adjustment with a fully stamped plan must run the
	// same stock confirmation as markAsPaid.
	now := time.Now()
	adjusted, warnings, err := s.AdjustInvoice(inv.ID, AdjustInput{
		Installments: []InstallmentInput{{Amount: dec("50.00"), DueDate: now, PaidAt: &now}},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, models.InvoicePaid, adjusted.Status)

	require.NoError(t, s.tenantTx(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			return err
		}
		assert.Equal(t, 3, product.StockQuantity)

		var movements []models.StockMovement
		if err := tx.Where("invoice_id = ?", inv.ID).Find(&movements).Error; err != nil {
			return err
		}
		require.Len(t, movements, 1)
		assert.Equal(t, 2, movements[0].Quantity)
		return nil
	}))
}

func TestPaidInvoiceRejectsMutations(t *testing.T) {
	s := newTestService(t)
	attID, _ := seedBilledAttendance(t, s, 10)

	inv, _, err := s.CreateInvoiceForAttendance(attID)
	require.NoError(t, err)
	require.Len(t, inv.Items, 1)

	now := time.Now()
	_, _, err = s.MarkInvoiceAsPaid(inv.ID, AdjustInput{
		Installments: []InstallmentInput{{Amount: dec("50.00"), DueDate: now, PaidAt: &now}},
	})
	require.NoError(t, err)

	var serr *StateConflictError
	_, _, err = s.AddManualItem(inv.ID, ManualItemInput{
		Description: "Coleira", Quantity: 1, UnitPrice: dec("10.00"),
	})
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeInvoiceLocked, serr.Code)

	due := now.AddDate(0, 0, 30)
	_, _, err = s.AdjustInvoice(inv.ID, AdjustInput{DueDate: &due})
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeInvoiceLocked, serr.Code)

	_, err = s.RemoveManualItem(inv.ID, inv.Items[0].ID)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeInvoiceLocked, serr.Code)

	// The record came through untouched.
	require.NoError(t, s.tenantTx(func(tx *gorm.DB) error {
		reloaded, err := lockInvoice(tx, inv.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, models.InvoicePaid, reloaded.Status)
		assert.Len(t, reloaded.Items, 1)
		assert.True(t, reloaded.Total.Equal(dec("50.00")))
		return nil
	}))
}

func TestRetryStockReconciliationOnSettledInvoice(t *testing.T) {
	s := newTestService(t)
	attID, productID := seedBilledAttendance(t, s, 0)

	inv, warnings, err := s.CreateInvoiceForAttendance(attID)
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	now := time.Now()
	_, warnings, err = s.MarkInvoiceAsPaid(inv.ID, AdjustInput{
		Installments: []InstallmentInput{{Amount: dec("50.00"), DueDate: now, PaidAt: &now}},
	})
	require.NoError(t, err)
	require.Len(t, warnings, 1) // still short at settlement

	// Restocking after settlement changes nothing: the invoice is historical
	// and its items are marked with a zero delta.
	restock(t, s, productID, 5)
	warnings, err = s.RetryStockReconciliation(inv.ID)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.NoError(t, s.tenantTx(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			return err
		}
		assert.Equal(t, 5, product.StockQuantity)

		var mv models.StockMovement
		if err := tx.First(&mv, "invoice_id = ?", inv.ID).Error; err != nil {
			return err
		}
		assert.Equal(t, 0, mv.Quantity)
		return nil
	}))
}
