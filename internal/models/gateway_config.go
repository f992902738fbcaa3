package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	CurrencyTZS = "TZS"
	CurrencyUSD = "USD"

	PaymentMethodsAll        = "ALL"
	PaymentMethodsMobileOnly = "MOBILEONLY"
)

// GatewayConfig holds the Selcom credentials, endpoint paths and callback
// URLs. Exactly one record is expected to be active at a time; the
// singleton accessor in the order service enforces that at startup.
type GatewayConfig struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	VendorTill     string `gorm:"type:varchar(50)" json:"vendor_till"`
	Remark         string `gorm:"type:varchar(100);default:'Payment For mobile application'" json:"remark"`
	Country        string `gorm:"type:varchar(50);default:'TZ'" json:"country"`
	City           string `gorm:"type:varchar(50);default:'Dar es salaam'" json:"city"`
	StateOrRegion  string `gorm:"type:varchar(50);default:'DA'" json:"state_or_region"`
	Currency       string `gorm:"type:varchar(15)" json:"currency"`
	PaymentMethods string `gorm:"type:varchar(15)" json:"payment_methods"`
	NoOfItems      int    `gorm:"default:1" json:"no_of_items"`

	APIKey    string `gorm:"type:varchar(150)" json:"-"`
	SecretKey string `gorm:"type:varchar(150)" json:"-"`

	BaseURL     string `gorm:"type:varchar(255)" json:"base_url"`
	OrderPath   string `gorm:"type:varchar(100)" json:"order_path"`
	WebhookURL  string `gorm:"type:varchar(255)" json:"webhook_url"`
	RedirectURL string `gorm:"type:varchar(255)" json:"redirect_url"`
	CancelURL   string `gorm:"type:varchar(255)" json:"cancel_url"`

	Active bool `gorm:"default:false" json:"active"`
}
