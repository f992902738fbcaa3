package models

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomerOrder is the recurring billing obligation for one user. It is
// created once when the user lands in a fee-bearing group, mutated by the
// gateway adapter after initiation and by webhook reconciliation after
// settlement, and never deleted.
type CustomerOrder struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UUID    string `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	OrderID string `gorm:"type:varchar(60);uniqueIndex" json:"order_id"`

	UserID          uint  `gorm:"index" json:"user_id"`
	FeeID           uint  `json:"fee_id"`
	GatewayConfigID *uint `json:"gateway_config_id"`

	IsPaid          bool      `gorm:"default:false" json:"is_paid"`
	IsGenerated     bool      `gorm:"default:false" json:"is_generated"`
	LastPaymentDate time.Time `gorm:"type:date" json:"last_payment_date"`
	NextPaymentDate time.Time `gorm:"type:date" json:"next_payment_date"`

	// Snapshot of the last gateway response for this order.
	Reference         string `gorm:"type:varchar(60)" json:"reference"`
	ResultCode        string `gorm:"type:varchar(60)" json:"resultcode"`
	Result            string `gorm:"type:varchar(60)" json:"result"`
	Message           string `gorm:"type:text" json:"message"`
	GatewayBuyerUUID  string `gorm:"type:varchar(60)" json:"gateway_buyer_uuid"`
	PaymentToken      string `gorm:"type:varchar(60)" json:"payment_token"`
	QR                string `gorm:"type:text" json:"qr"`
	PaymentGatewayURL string `gorm:"type:text" json:"payment_gateway_url"`

	User     User                   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Fee      Fee                    `gorm:"foreignKey:FeeID" json:"fee,omitempty"`
	Payments []CustomerOrderPayment `gorm:"foreignKey:CustomerOrderID" json:"payments,omitempty"`
}

// OrderSequence is a single-row counter backing the order id generator.
type OrderSequence struct {
	ID         uint   `gorm:"primarykey"`
	LastNumber uint64 `gorm:"default:0"`
}

// BeforeSave recomputes the next payment date from the last one and
// assigns a generated order id when the order has none yet.
func (o *CustomerOrder) BeforeSave(tx *gorm.DB) error {
	if !o.LastPaymentDate.IsZero() {
		o.NextPaymentDate = o.LastPaymentDate.AddDate(0, 0, 30)
	}
	if o.UUID == "" {
		o.UUID = uuid.New().String()
	}
	if o.OrderID == "" {
		orderID, err := NextOrderID(tx)
		if err != nil {
			return err
		}
		o.OrderID = orderID
	}
	return nil
}

// NextOrderID produces an id of the form MHP-XXX-YYY-ZZZZZZZ where the
// tail is the zero-padded date plus a database-backed sequence number.
func NextOrderID(tx *gorm.DB) (string, error) {
	// Called from the BeforeSave hook, so the sequence queries need a
	// fresh session: reusing the in-flight statement would target the
	// customer_orders table.
	db := tx.Session(&gorm.Session{NewDB: true, Initialized: true})

	var seq OrderSequence
	if err := db.FirstOrCreate(&seq, OrderSequence{ID: 1}).Error; err != nil {
		return "", fmt.Errorf("failed to load order sequence: %w", err)
	}
	seq.LastNumber++
	if err := db.Save(&seq).Error; err != nil {
		return "", fmt.Errorf("failed to advance order sequence: %w", err)
	}

	datePart := time.Now().Format("060102")
	combined := fmt.Sprintf("%s%d", datePart, seq.LastNumber)
	padded := fmt.Sprintf("%015s", combined)
	padded = padded[len(padded)-15:]

	rand1 := rand.Intn(900) + 100
	rand2 := rand.Intn(899) + 101
	return fmt.Sprintf("MHP-%d-%d-%s", rand1, rand2, padded[8:]), nil
}
