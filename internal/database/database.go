package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sumarokov-vp/estate-sync/internal/models"
)

// Database wraps the gorm connection and owns every persistence concern:
// properties, owners, images, reference data, the webhook dedup ledger and
// key-value settings.
type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on", dbPath)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Database{db: db}, nil
}

// RunMigrations creates or updates the schema for all entities.
func (d *Database) RunMigrations() error {
	return d.db.AutoMigrate(
		&models.Owner{},
		&models.Property{},
		&models.PropertyImage{},
		&models.WebhookEvent{},
		&models.City{},
		&models.District{},
		&models.Street{},
		&models.Setting{},
		&models.Activity{},
	)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB exposes the underlying connection for callers that need it.
func (d *Database) GetDB() *gorm.DB {
	return d.db
}
