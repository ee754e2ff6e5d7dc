package models

import (
	"time"

	"gorm.io/datatypes"
)

// StateBlob is one persisted collection snapshot, keyed by logical name
// (activeReports, draftReports, pendingNotifications, readNotifications).
// Writes are whole-collection overwrites; the in-memory services are the
// source of truth and serialize their own writers.
type StateBlob struct {
	Key       string         `gorm:"size:64;primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null" json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}
