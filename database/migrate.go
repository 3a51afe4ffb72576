package database

import (
	"fmt"

	"gorm.io/gorm"

	"vetops-backend/models"
)

// MigrateTenantSchema applies (idempotent) schema migrations for a single tenant schema.
// It pins search_path to the tenant and performs:
// - AutoMigrate (tables/columns)
// - Money column types (NUMERIC(12,2))
// - Indexes (installments, revisions, invoice_items, stock ledger)
// - Basic CHECK constraints (non-negative money/quantities/stock)
// - Idempotency keys table + unique index
func MigrateTenantSchema(schema string) error {
	if schema == "" {
		return fmt.Errorf("schema name is empty")
	}

	return DB.Transaction(func(tx *gorm.DB) error {
		// Pin the tenant schema for this transaction
		if err := tx.Exec(`SET search_path = "` + schema + `", public`).Error; err != nil {
			return fmt.Errorf("set search_path failed: %w", err)
		}

		// --- AutoMigrate tables/columns/index tags (non-destructive) ---
		if err := tx.AutoMigrate(
			&models.Owner{},
			&models.Animal{},
			&models.Product{},
			&models.CatalogService{},
			&models.Appointment{},
			&models.Attendance{},
			&models.AttendanceService{},
			&models.AttendanceProduct{},
			&models.PaymentCondition{},
			&models.Invoice{},
			&models.InvoiceItem{},
			&models.InvoiceInstallment{},
			&models.StockMovement{},
			&models.InvoiceRevision{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("tenant automigrate failed: %w", err)
		}

		// --- Enforce money columns as NUMERIC(12,2) (idempotent ALTERs) ---
		alters := []string{
			`ALTER TABLE products             ALTER COLUMN unit_price TYPE numeric(12,2)`,
			`ALTER TABLE catalog_services     ALTER COLUMN price      TYPE numeric(12,2)`,
			`ALTER TABLE attendances          ALTER COLUMN base_price TYPE numeric(12,2)`,
			`ALTER TABLE attendance_services  ALTER COLUMN unit_price TYPE numeric(12,2)`,
			`ALTER TABLE attendance_services  ALTER COLUMN line_total TYPE numeric(12,2)`,
			`ALTER TABLE attendance_products  ALTER COLUMN unit_price TYPE numeric(12,2)`,
			`ALTER TABLE attendance_products  ALTER COLUMN line_total TYPE numeric(12,2)`,
			`ALTER TABLE invoices             ALTER COLUMN total      TYPE numeric(12,2)`,
			`ALTER TABLE invoice_items        ALTER COLUMN unit_price TYPE numeric(12,2)`,
			`ALTER TABLE invoice_items        ALTER COLUMN total      TYPE numeric(12,2)`,
			`ALTER TABLE invoice_installments ALTER COLUMN amount     TYPE numeric(12,2)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Composite / helpful indexes (idempotent) ---
		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_installments_invoice_number ON invoice_installments (invoice_id, number)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoice_revisions_invoice_id_revision_no ON invoice_revisions (invoice_id, revision_no)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_movements_invoice_item ON stock_movements (invoice_item_id)`,
			`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items (invoice_id)`,
			`CREATE INDEX IF NOT EXISTS idx_invoice_items_attendance ON invoice_items (attendance_id)`,
			`CREATE INDEX IF NOT EXISTS idx_invoices_owner ON invoices (owner_id)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Basic CHECK constraints (idempotent) ---
		checks := []string{
			// Non-negative product price and stock
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'products'::regclass
					  AND conname  = 'chk_products_unit_price_nonneg'
				) THEN
					ALTER TABLE products
					ADD CONSTRAINT chk_products_unit_price_nonneg
					CHECK (unit_price >= 0);
				END IF;
			END $$;`,
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'products'::regclass
					  AND conname  = 'chk_products_stock_nonneg'
				) THEN
					ALTER TABLE products
					ADD CONSTRAINT chk_products_stock_nonneg
					CHECK (stock_quantity >= 0);
				END IF;
			END $$;`,
			// Installment amounts >= 0
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'invoice_installments'::regclass
					  AND conname  = 'chk_installments_amount_nonneg'
				) THEN
					ALTER TABLE invoice_installments
					ADD CONSTRAINT chk_installments_amount_nonneg
					CHECK (amount >= 0);
				END IF;
			END $$;`,
			// Invoice items: positive quantity
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'invoice_items'::regclass
					  AND conname  = 'chk_invoice_items_quantity_pos'
				) THEN
					ALTER TABLE invoice_items
					ADD CONSTRAINT chk_invoice_items_quantity_pos
					CHECK (quantity > 0);
				END IF;
			END $$;`,
			// Payment conditions: at least one installment, non-negative spacing
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'payment_conditions'::regclass
					  AND conname  = 'chk_payment_conditions_terms'
				) THEN
					ALTER TABLE payment_conditions
					ADD CONSTRAINT chk_payment_conditions_terms
					CHECK (installments >= 1 AND day_offset >= 0);
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
