package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// WebhookResponse is the raw audit record of every accepted webhook call.
// It is written before any business-logic interpretation so a callback
// that fails mid-reconciliation is never lost; an unprocessed row is the
// recovery anchor for manual reconciliation.
type WebhookResponse struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Payload   json.RawMessage `gorm:"type:jsonb" json:"payload"`
	RemoteIP  string          `gorm:"type:varchar(45)" json:"remote_ip"`
	Processed bool            `gorm:"default:false" json:"processed"`
}
