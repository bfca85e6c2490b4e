package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates the tables of the reference backend.
func Migrate(db *gorm.DB) error {
	models := []interface{}{
		&CollectionRow{},
		&FeatureRow{},
		&GeoRecord{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
