package database

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vetops-backend/models"
)

var DB *gorm.DB

func Connect() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, relying on environment")
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "db"
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"), port)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
}

// AutoMigrate migrates the public (cross-tenant) tables. Tenant tables are
// handled by MigrateTenantSchema.
func AutoMigrate() {
	if err := DB.AutoMigrate(&models.ContactPerson{}, &models.Clinic{}, &models.User{}); err != nil {
		log.Fatal().Err(err).Msg("public schema migration failed")
	}
}

// RunTenantTx runs fn inside a transaction pinned to the tenant schema.
// SET LOCAL reverts when the transaction ends, keeping pooled connections clean.
func RunTenantTx(schema string, fn func(tx *gorm.DB) error) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`SET LOCAL search_path = "` + schema + `", public`).Error; err != nil {
			return fmt.Errorf("pin tenant schema: %w", err)
		}
		return fn(tx)
	})
}
