package models

import (
	"time"

	"gorm.io/gorm"
)

// Fee is the recurring subscription amount charged to one group.
// Interval is in days and is never below 30.
type Fee struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Amount   float64 `gorm:"type:decimal(20,2)" json:"amount"`
	GroupID  uint    `gorm:"index" json:"group_id"`
	Interval int     `gorm:"default:30" json:"interval"`
	Active   bool    `gorm:"default:false" json:"active"`

	Group Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}
