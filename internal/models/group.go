package models

import (
	"time"

	"gorm.io/gorm"
)

// Group assigns users to a fee tier. A user's first group decides which
// subscription fee applies during order generation.
type Group struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name string `gorm:"type:varchar(150);uniqueIndex" json:"name"`

	Users []User `gorm:"many2many:user_groups;" json:"users,omitempty"`
	Fees  []Fee  `gorm:"foreignKey:GroupID" json:"fees,omitempty"`
}
