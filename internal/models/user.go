package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account that can upload listings and carries the OTP
// verification state for phone-based login.
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UUID         string `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	Username     string `gorm:"type:varchar(150);uniqueIndex" json:"username"`
	Email        string `gorm:"type:varchar(255);index" json:"email"`
	FirstName    string `gorm:"type:varchar(100)" json:"first_name"`
	LastName     string `gorm:"type:varchar(100)" json:"last_name"`
	Phone        string `gorm:"type:varchar(20);index" json:"phone"`
	PasswordHash string `gorm:"type:varchar(255)" json:"-"`
	Location     string `gorm:"type:varchar(255)" json:"location"`

	Verified bool `gorm:"default:false" json:"verified"`
	IsActive bool `gorm:"default:true" json:"is_active"`

	// OTP state, mutated by the OTP engine only.
	OTPCode   *string    `gorm:"type:varchar(6)" json:"-"`
	OTPExpiry *time.Time `json:"-"`
	MaxOTPTry int        `gorm:"default:3" json:"-"`
	OTPMaxOut *time.Time `json:"-"`
	ResetOTP  bool       `gorm:"default:false" json:"-"`

	// Relationships
	Groups []Group         `gorm:"many2many:user_groups;" json:"groups,omitempty"`
	Orders []CustomerOrder `gorm:"foreignKey:UserID" json:"orders,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == "" {
		u.UUID = uuid.New().String()
	}
	return nil
}

// FullName is used for gateway buyer fields and log lines.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
