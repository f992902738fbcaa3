package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentStatus is the settlement status reported by the gateway webhook.
type PaymentStatus string

const (
	PaymentStatusCompleted    PaymentStatus = "COMPLETED"
	PaymentStatusCancelled    PaymentStatus = "CANCELLED"
	PaymentStatusPending      PaymentStatus = "PENDING"
	PaymentStatusUserCanceled PaymentStatus = "USERCANCELED"
)

const (
	ResultSuccess = "SUCCESS"
	ResultFail    = "FAIL"
)

// CustomerOrderPayment is an immutable settlement record. Several rows may
// reference the same order: webhook deliveries are not deduplicated by
// transaction id. Order mutation happens in the reconciliation step of the
// payment service, not in a persistence hook.
type CustomerOrderPayment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UUID            string        `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	CustomerOrderID uint          `gorm:"index" json:"customer_order_id"`
	Result          string        `gorm:"type:varchar(20)" json:"result"`
	ResultCode      string        `gorm:"type:varchar(20)" json:"resultcode"`
	TransID         string        `gorm:"type:varchar(50);column:transid" json:"transid"`
	Reference       string        `gorm:"type:varchar(50)" json:"reference"`
	Channel         string        `gorm:"type:varchar(50)" json:"channel"`
	Amount          float64       `gorm:"type:decimal(10,2)" json:"amount"`
	Phone           string        `gorm:"type:varchar(20)" json:"phone"`
	PaymentStatus   PaymentStatus `gorm:"type:varchar(20)" json:"payment_status"`
	OrderID         string        `gorm:"type:varchar(100)" json:"order_id"`

	Order CustomerOrder `gorm:"foreignKey:CustomerOrderID" json:"order,omitempty"`
}

func (p *CustomerOrderPayment) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.New().String()
	}
	return nil
}
