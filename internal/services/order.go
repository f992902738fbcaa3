package services

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"mhp_backend_echo/internal/models"
)

var (
	// ErrNoActiveConfig means no gateway configuration is marked active.
	ErrNoActiveConfig = errors.New("no active gateway configuration")
	// ErrMultipleActiveConfigs means more than one configuration is
	// marked active, which is an operator mistake.
	ErrMultipleActiveConfigs = errors.New("multiple active gateway configurations")
)

// OrderService creates customer orders from a user's group fee and the
// single active gateway configuration.
type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// ActiveGatewayConfig returns the single active gateway configuration,
// distinguishing none-configured from multiple-active instead of silently
// taking the first row.
func (s *OrderService) ActiveGatewayConfig() (*models.GatewayConfig, error) {
	var configs []models.GatewayConfig
	if err := s.db.Where("active = ?", true).Find(&configs).Error; err != nil {
		return nil, err
	}
	switch len(configs) {
	case 0:
		return nil, ErrNoActiveConfig
	case 1:
		return &configs[0], nil
	default:
		return nil, ErrMultipleActiveConfigs
	}
}

// ValidateConfig is the startup check for the gateway configuration
// invariant.
func (s *OrderService) ValidateConfig() error {
	_, err := s.ActiveGatewayConfig()
	return err
}

// GroupFee returns the active fee for a group, or nil when the group has
// none. When more than one is active the first match wins.
func (s *OrderService) GroupFee(groupID uint) *models.Fee {
	var fee models.Fee
	err := s.db.Where("group_id = ? AND active = ?", groupID, true).First(&fee).Error
	if err != nil {
		return nil
	}
	return &fee
}

// GenerateOrder creates the billing obligation for a user based on their
// first group's fee and the active gateway configuration. When either is
// missing the generation is skipped: it logs and returns nil with no
// partial order created. Nothing here prevents a second order for the
// same user; callers ensure idempotency with a users-without-orders
// query.
func (s *OrderService) GenerateOrder(user *models.User) (*models.CustomerOrder, error) {
	if len(user.Groups) == 0 {
		if err := s.db.Model(user).Association("Groups").Find(&user.Groups); err != nil {
			return nil, err
		}
	}
	if len(user.Groups) == 0 {
		log.Printf("User %s has no group, skipping order generation", user.Username)
		return nil, nil
	}

	fee := s.GroupFee(user.Groups[0].ID)
	if fee == nil {
		log.Printf("No fee found for group %s, skipping order for %s", user.Groups[0].Name, user.Username)
		return nil, nil
	}

	cfg, err := s.ActiveGatewayConfig()
	if err != nil {
		log.Printf("Gateway configuration lookup failed: %v, skipping order for %s", err, user.Username)
		return nil, nil
	}

	order := models.CustomerOrder{
		UserID:          user.ID,
		FeeID:           fee.ID,
		GatewayConfigID: &cfg.ID,
		LastPaymentDate: time.Now().Truncate(24 * time.Hour),
	}
	if err := s.db.Create(&order).Error; err != nil {
		return nil, err
	}

	log.Printf("Customer order %s created for %s", order.OrderID, user.Username)
	return &order, nil
}

// HandleGroupAssigned is the explicit domain-event hook invoked whenever
// a user's group set changes. It runs the same generation action as the
// recurring scheduler.
func (s *OrderService) HandleGroupAssigned(user *models.User) {
	if _, err := s.GenerateOrder(user); err != nil {
		log.Printf("Order generation on group assignment failed for %s: %v", user.Username, err)
	}
}

// UsersWithoutOrders selects the users the order-generation cron still
// has to process.
func (s *OrderService) UsersWithoutOrders() ([]models.User, error) {
	var users []models.User
	err := s.db.Preload("Groups").
		Where("is_active = ?", true).
		Where("NOT EXISTS (SELECT 1 FROM customer_orders WHERE customer_orders.user_id = users.id AND customer_orders.deleted_at IS NULL)").
		Find(&users).Error
	return users, err
}
