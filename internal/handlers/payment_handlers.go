package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"mhp_backend_echo/internal/middleware"
	"mhp_backend_echo/internal/models"
	"mhp_backend_echo/internal/services"
)

// PaymentHandler exposes the billing endpoints: the gateway webhook,
// the customer-facing order views and the on-demand payment URL request.
type PaymentHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
}

func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments}
}

// OrderResponse is the customer view of a billing order.
type OrderResponse struct {
	OrderID           string  `json:"order_id"`
	LastPaymentDate   string  `json:"last_payment_date"`
	NextPaymentDate   string  `json:"next_payment_date"`
	Created           string  `json:"created"`
	Amount            float64 `json:"amount"`
	Interval          int     `json:"interval"`
	IsPaid            bool    `json:"is_paid"`
	IsGenerated       bool    `json:"is_generated"`
	PaymentGatewayURL string  `json:"payment_gateway_url"`
	Reference         string  `json:"reference"`
	Result            string  `json:"result"`
}

func toOrderResponse(order *models.CustomerOrder) OrderResponse {
	resp := OrderResponse{
		OrderID:           order.OrderID,
		LastPaymentDate:   order.LastPaymentDate.Format("2006-01-02"),
		NextPaymentDate:   order.NextPaymentDate.Format("2006-01-02"),
		Created:           order.CreatedAt.Format(time.RFC3339),
		IsPaid:            order.IsPaid,
		IsGenerated:       order.IsGenerated,
		PaymentGatewayURL: order.PaymentGatewayURL,
		Reference:         order.Reference,
		Result:            order.Result,
	}
	if order.Fee.ID != 0 {
		resp.Amount = order.Fee.Amount
		resp.Interval = order.Fee.Interval
	}
	return resp
}

// Webhook receives payment notifications from the gateway. The raw body
// is always stored for audit before any processing decision is made.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return Respond(c, http.StatusBadRequest, "Failed to read request body")
	}

	// A payload that fails validation is rejected outright; the audit
	// record is only written for accepted payloads, inside processing.
	var payload services.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid webhook payload")
	}
	if err := c.Validate(&payload); err != nil {
		return err
	}
	if _, err := payload.AmountValue(); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid amount in webhook payload")
	}

	if err := h.payments.ProcessWebhook(body, &payload, c.RealIP()); err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			return Respond(c, http.StatusNotFound, "Order not found for the given order id")
		}
		c.Logger().Errorf("webhook processing failed: %v", err)
		return Respond(c, http.StatusInternalServerError, "Failed to process payment")
	}
	return Respond(c, http.StatusOK, "Payment Processed successfully")
}

// MyOrders lists the authenticated customer's billing orders.
func (h *PaymentHandler) MyOrders(c echo.Context) error {
	user := middleware.UserFromContext(c)

	var orders []models.CustomerOrder
	if err := h.db.Preload("Fee").
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to fetch orders")
	}
	if len(orders) == 0 {
		return Respond(c, http.StatusNotFound, "No orders found")
	}

	resp := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	return RespondData(c, http.StatusOK, "Orders fetched successfully", len(resp), resp)
}

// PaymentHistory lists the authenticated customer's recorded payments,
// optionally filtered by order id.
func (h *PaymentHandler) PaymentHistory(c echo.Context) error {
	user := middleware.UserFromContext(c)

	query := h.db.Joins("JOIN customer_orders ON customer_orders.id = customer_order_payments.customer_order_id").
		Where("customer_orders.user_id = ?", user.ID).
		Order("customer_order_payments.created_at DESC")
	if orderID := c.QueryParam("order_id"); orderID != "" {
		query = query.Where("customer_order_payments.order_id = ?", orderID)
	}

	var payments []models.CustomerOrderPayment
	if err := query.Find(&payments).Error; err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to fetch payment history")
	}
	return RespondData(c, http.StatusOK, "Payment history fetched successfully", len(payments), payments)
}

// RequestPaymentURL generates gateway checkout URLs for every unpaid,
// ungenerated order of the authenticated customer.
func (h *PaymentHandler) RequestPaymentURL(c echo.Context) error {
	user := middleware.UserFromContext(c)

	summary, err := h.payments.RequestUserPaymentURLs(user)
	if err != nil {
		if errors.Is(err, services.ErrNoUnpaidOrders) {
			return Respond(c, http.StatusBadRequest, "No unpaid orders pending payment URL generation")
		}
		c.Logger().Errorf("payment url request failed: %v", err)
		return Respond(c, http.StatusInternalServerError, "Failed to request payment URLs")
	}
	return c.JSON(http.StatusOK, summary)
}

// PaymentRedirect is the landing page the gateway sends the customer
// back to after checkout.
func (h *PaymentHandler) PaymentRedirect(c echo.Context) error {
	uuid := c.Param("uuid")

	var order models.CustomerOrder
	status := c.QueryParam("redirect_status")
	found := h.db.Where("uuid = ?", uuid).First(&order).Error == nil

	return c.Render(http.StatusOK, "redirect.html", map[string]interface{}{
		"Found":   found,
		"OrderID": order.OrderID,
		"IsPaid":  order.IsPaid,
		"Status":  status,
	})
}
