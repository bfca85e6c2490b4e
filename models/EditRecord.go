package models

import "gorm.io/datatypes"

// GeoRecord is the change log written for every create, replace and
// delete handled by the reference backend.
type GeoRecord struct {
	ID         int64  `gorm:"primary_key"`
	Collection string `gorm:"type:varchar(255);index"`
	FeatureID  string `gorm:"type:varchar(64);index"`
	Type       string `gorm:"type:varchar(255)"` // create / replace / delete
	Date       string `gorm:"type:varchar(255)"`
	RequestID  string `gorm:"type:varchar(64)"`
	OldGeojson datatypes.JSON `gorm:"type:jsonb"`
	NewGeojson datatypes.JSON `gorm:"type:jsonb"`
}

const (
	RecordCreate  = "create"
	RecordReplace = "replace"
	RecordDelete  = "delete"
)

// ChangeEvent is pushed to change feed subscribers after every write.
type ChangeEvent struct {
	Type       string `json:"type"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Version    int64  `json:"version,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
}
