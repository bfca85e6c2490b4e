package models

import (
	"gorm.io/datatypes"
)

// CollectionRow is a collection served by the reference backend.
type CollectionRow struct {
	ID     string         `gorm:"primaryKey;type:varchar(255)"`
	Title  string         `gorm:"type:varchar(255)"`
	CRS    string         `gorm:"type:varchar(255)"`
	Schema datatypes.JSON `gorm:"type:jsonb"` // JSON Schema of the replace profile
}

// FeatureRow is one stored feature. Geom is WKB in the collection CRS.
type FeatureRow struct {
	Collection string         `gorm:"primaryKey;type:varchar(255)"`
	ID         string         `gorm:"primaryKey;type:varchar(64)"`
	Geom       []byte         `gorm:"type:bytea"`
	Properties datatypes.JSON `gorm:"type:jsonb"`
	Version    int64
	UpdatedAt  string `gorm:"type:varchar(255)"`
}
