package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"mhp_backend_echo/internal/models"
)

var (
	// ErrOrderNotFound means a webhook referenced an unknown order id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrNoUnpaidOrders means a payment-URL request found nothing to do.
	ErrNoUnpaidOrders = errors.New("no unpaid orders")
)

// WebhookPayload is the gateway's asynchronous payment-result callback.
type WebhookPayload struct {
	Result        string `json:"result" validate:"required"`
	ResultCode    string `json:"resultcode"`
	OrderID       string `json:"order_id" validate:"required"`
	TransID       string `json:"transid" validate:"required"`
	Reference     string `json:"reference" validate:"required"`
	Channel       string `json:"channel" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	Phone         string `json:"phone" validate:"required"`
	PaymentStatus string `json:"payment_status"`
}

// AmountValue parses the string-formatted amount and rejects anything
// that is not a positive number.
func (p *WebhookPayload) AmountValue() (float64, error) {
	amount, err := strconv.ParseFloat(p.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount format")
	}
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

// Status normalizes the payment status, defaulting to PENDING.
func (p *WebhookPayload) Status() models.PaymentStatus {
	status := strings.ToUpper(strings.TrimSpace(p.PaymentStatus))
	if status == "" {
		return models.PaymentStatusPending
	}
	return models.PaymentStatus(status)
}

// PaymentSummary tallies one payment-URL fan-out run.
type PaymentSummary struct {
	Message      string `json:"msg"`
	TotalOrders  int    `json:"total_order"`
	Generated    int    `json:"generated_order"`
	NonGenerated int    `json:"non_generated_order"`
}

// PaymentService ingests webhooks and fans out payment-URL requests.
// With strictPaid set, only a COMPLETED settlement with a SUCCESS result
// marks an order paid; the default keeps the legacy behavior of marking
// paid on every recorded settlement.
type PaymentService struct {
	db         *gorm.DB
	orders     *OrderService
	strictPaid bool
	now        func() time.Time
}

func NewPaymentService(db *gorm.DB, orders *OrderService, strictPaid bool) *PaymentService {
	return &PaymentService{db: db, orders: orders, strictPaid: strictPaid, now: time.Now}
}

// RecordWebhook persists the raw payload before any interpretation.
func (s *PaymentService) RecordWebhook(raw json.RawMessage, remoteIP string) (*models.WebhookResponse, error) {
	record := models.WebhookResponse{
		Payload:  raw,
		RemoteIP: remoteIP,
	}
	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("Failed to create webhook response record: %v", err)
		return nil, err
	}
	log.Println("Created webhook response record")
	return &record, nil
}

// ProcessWebhook reconciles one validated webhook callback against its
// order. The raw payload is persisted first, unconditionally; the order
// lookup, payment row and processed-flag flip then run in one
// transaction. A failure inside the transaction reverts those writes but
// keeps the audit record, unprocessed.
func (s *PaymentService) ProcessWebhook(raw json.RawMessage, payload *WebhookPayload, remoteIP string) error {
	amount, err := payload.AmountValue()
	if err != nil {
		return err
	}

	record, err := s.RecordWebhook(raw, remoteIP)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var order models.CustomerOrder
		if err := tx.Where("order_id = ?", payload.OrderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("Order not found: %s", payload.OrderID)
				return ErrOrderNotFound
			}
			return err
		}

		payment := models.CustomerOrderPayment{
			CustomerOrderID: order.ID,
			Result:          payload.Result,
			ResultCode:      payload.ResultCode,
			TransID:         payload.TransID,
			Reference:       payload.Reference,
			Channel:         payload.Channel,
			Amount:          amount,
			Phone:           payload.Phone,
			PaymentStatus:   payload.Status(),
			OrderID:         payload.OrderID,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		if err := s.reconcileOrder(tx, &order, &payment); err != nil {
			return err
		}

		record.Processed = true
		if err := tx.Save(record).Error; err != nil {
			return err
		}

		log.Printf("Payment processed | Order: %s | Amount: %s | Status: %s",
			order.OrderID, payload.Amount, payment.PaymentStatus)
		return nil
	})
}

// reconcileOrder applies a settlement to its order. This is the explicit
// step that used to hide in a persistence hook: every recorded settlement
// marks the order paid (unless strict mode is on), and a COMPLETED
// settlement with a SUCCESS result additionally pushes the next payment
// date thirty days out from the settlement time.
func (s *PaymentService) reconcileOrder(tx *gorm.DB, order *models.CustomerOrder, payment *models.CustomerOrderPayment) error {
	completed := payment.PaymentStatus == models.PaymentStatusCompleted && payment.Result == models.ResultSuccess

	if !s.strictPaid {
		order.IsPaid = true
	}
	if completed {
		order.IsPaid = true
		order.LastPaymentDate = s.now().Truncate(24 * time.Hour)
	}
	return tx.Save(order).Error
}

// UnpaidUngeneratedOrders returns the orders still waiting for a payment
// URL, with the associations the gateway adapter needs.
func (s *PaymentService) UnpaidUngeneratedOrders(userID uint) ([]models.CustomerOrder, error) {
	query := s.db.Preload("User").Preload("Fee").
		Where("is_paid = ? AND is_generated = ?", false, false)
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}
	var orders []models.CustomerOrder
	err := query.Find(&orders).Error
	return orders, err
}

// RequestPaymentURLs runs the gateway adapter over the given orders and
// tallies the outcome. A failed initiation stores the raw response on the
// order's message field but leaves it ungenerated so the next cron run
// retries it; transport errors are logged and also count as failures.
func (s *PaymentService) RequestPaymentURLs(executor PaymentExecutor, orders []models.CustomerOrder) PaymentSummary {
	summary := PaymentSummary{Message: "success", TotalOrders: len(orders)}
	log.Printf("Requesting payment urls for %d orders", len(orders))

	for i := range orders {
		order := &orders[i]
		result, err := executor.ExecutePayment(order)
		if err != nil {
			summary.NonGenerated++
			log.Printf("Payment initiation error for order %s: %v", order.OrderID, err)
			continue
		}
		if !result.OK {
			summary.NonGenerated++
			raw, _ := json.Marshal(result)
			order.Message = string(raw)
			if err := s.db.Save(order).Error; err != nil {
				log.Printf("Failed to store failure response on order %s: %v", order.OrderID, err)
			}
			continue
		}
		summary.Generated++
	}

	return summary
}

// RequestUserPaymentURLs requests payment URLs for one user's unpaid,
// ungenerated orders. Configuration errors propagate so the caller can
// surface a server error; no pending orders is its own sentinel.
func (s *PaymentService) RequestUserPaymentURLs(user *models.User) (*PaymentSummary, error) {
	log.Printf("Start generating payment url request for %s", user.FullName())

	orders, err := s.UnpaidUngeneratedOrders(user.ID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		log.Printf("No unpaid orders found for %s", user.FullName())
		return nil, ErrNoUnpaidOrders
	}

	cfg, err := s.orders.ActiveGatewayConfig()
	if err != nil {
		log.Printf("Gateway configuration lookup failed: %v", err)
		return nil, err
	}

	summary := s.RequestPaymentURLs(NewSelcomClient(s.db, cfg), orders)
	return &summary, nil
}
