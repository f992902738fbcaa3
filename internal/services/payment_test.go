package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mhp_backend_echo/internal/models"
)

func newPaymentFixture(t *testing.T, strictPaid bool) (*PaymentService, *models.CustomerOrder) {
	t.Helper()
	db := newTestDB(t)
	orderSvc := NewOrderService(db)
	createGatewayConfig(t, db, "https://gateway.example.com")

	user := createBillableUser(t, db, "payer")
	order, err := orderSvc.GenerateOrder(user)
	require.NoError(t, err)
	require.NotNil(t, order)

	return NewPaymentService(db, orderSvc, strictPaid), order
}

func completedPayload(orderID string) *WebhookPayload {
	return &WebhookPayload{
		Result:        "SUCCESS",
		ResultCode:    "000",
		OrderID:       orderID,
		TransID:       "TX123456",
		Reference:     "REF123456",
		Channel:       "MPESA-TZ",
		Amount:        "10000.00",
		Phone:         "255712345678",
		PaymentStatus: "COMPLETED",
	}
}

func TestProcessWebhookCompletedSettlement(t *testing.T) {
	svc, order := newPaymentFixture(t, false)
	payload := completedPayload(order.OrderID)
	raw, _ := json.Marshal(payload)

	settled := time.Date(2026, 4, 10, 15, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return settled }

	require.NoError(t, svc.ProcessWebhook(raw, payload, "10.0.0.1"))

	var updated models.CustomerOrder
	require.NoError(t, svc.db.First(&updated, order.ID).Error)
	assert.True(t, updated.IsPaid)
	settledDay := settled.Truncate(24 * time.Hour)
	assert.True(t, updated.LastPaymentDate.Equal(settledDay))
	assert.True(t, updated.NextPaymentDate.Equal(settledDay.AddDate(0, 0, 30)))

	var payment models.CustomerOrderPayment
	require.NoError(t, svc.db.Where("customer_order_id = ?", order.ID).First(&payment).Error)
	assert.Equal(t, models.PaymentStatusCompleted, payment.PaymentStatus)
	assert.Equal(t, 10000.0, payment.Amount)

	var record models.WebhookResponse
	require.NoError(t, svc.db.First(&record).Error)
	assert.True(t, record.Processed)
	assert.Equal(t, "10.0.0.1", record.RemoteIP)
}

func TestProcessWebhookUnknownOrder(t *testing.T) {
	svc, _ := newPaymentFixture(t, false)
	payload := completedPayload("MHP-000-000-0000000")
	raw, _ := json.Marshal(payload)

	err := svc.ProcessWebhook(raw, payload, "10.0.0.1")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	// The audit record survives the rolled-back transaction, unprocessed.
	var record models.WebhookResponse
	require.NoError(t, svc.db.First(&record).Error)
	assert.False(t, record.Processed)

	var count int64
	svc.db.Model(&models.CustomerOrderPayment{}).Count(&count)
	assert.Zero(t, count)
}

func TestProcessWebhookRejectsBadAmount(t *testing.T) {
	svc, order := newPaymentFixture(t, false)

	payload := completedPayload(order.OrderID)
	payload.Amount = "not-a-number"
	raw, _ := json.Marshal(payload)
	assert.Error(t, svc.ProcessWebhook(raw, payload, "10.0.0.1"))

	payload.Amount = "-5"
	assert.Error(t, svc.ProcessWebhook(raw, payload, "10.0.0.1"))
}

func TestProcessWebhookDuplicateDelivery(t *testing.T) {
	svc, order := newPaymentFixture(t, false)
	payload := completedPayload(order.OrderID)
	raw, _ := json.Marshal(payload)

	require.NoError(t, svc.ProcessWebhook(raw, payload, "10.0.0.1"))
	// A replayed delivery with the same transaction id is recorded again.
	require.NoError(t, svc.ProcessWebhook(raw, payload, "10.0.0.1"))

	var count int64
	svc.db.Model(&models.CustomerOrderPayment{}).
		Where("transid = ?", payload.TransID).
		Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestReconcileLegacyMarksPaidOnAnySettlement(t *testing.T) {
	svc, order := newPaymentFixture(t, false)
	payload := completedPayload(order.OrderID)
	payload.Result = "FAIL"
	payload.PaymentStatus = "CANCELLED"
	raw, _ := json.Marshal(payload)

	require.NoError(t, svc.ProcessWebhook(raw, payload, "10.0.0.1"))

	var updated models.CustomerOrder
	require.NoError(t, svc.db.First(&updated, order.ID).Error)
	assert.True(t, updated.IsPaid)
	// A non-completed settlement never advances the billing window.
	assert.True(t, updated.NextPaymentDate.Equal(order.NextPaymentDate))
}

func TestReconcileStrictRequiresCompletedSuccess(t *testing.T) {
	svc, order := newPaymentFixture(t, true)
	payload := completedPayload(order.OrderID)
	payload.Result = "FAIL"
	payload.PaymentStatus = "CANCELLED"
	raw, _ := json.Marshal(payload)

	require.NoError(t, svc.ProcessWebhook(raw, payload, "10.0.0.1"))

	var updated models.CustomerOrder
	require.NoError(t, svc.db.First(&updated, order.ID).Error)
	assert.False(t, updated.IsPaid)

	payload = completedPayload(order.OrderID)
	raw, _ = json.Marshal(payload)
	require.NoError(t, svc.ProcessWebhook(raw, payload, "10.0.0.1"))

	require.NoError(t, svc.db.First(&updated, order.ID).Error)
	assert.True(t, updated.IsPaid)
}

func TestWebhookPayloadStatus(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected models.PaymentStatus
	}{
		{"empty defaults to pending", "", models.PaymentStatusPending},
		{"lowercase is normalized", "completed", models.PaymentStatusCompleted},
		{"whitespace is trimmed", " CANCELLED ", models.PaymentStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := WebhookPayload{PaymentStatus: tt.input}
			if got := p.Status(); got != tt.expected {
				t.Errorf("Status() = %q; want %q", got, tt.expected)
			}
		})
	}
}

func TestUnpaidUngeneratedOrders(t *testing.T) {
	svc, order := newPaymentFixture(t, false)

	orders, err := svc.UnpaidUngeneratedOrders(0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
	assert.NotZero(t, orders[0].User.ID)
	assert.NotZero(t, orders[0].Fee.ID)

	require.NoError(t, svc.db.Model(order).Update("is_generated", true).Error)
	orders, err = svc.UnpaidUngeneratedOrders(0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestRequestUserPaymentURLsWithoutOrders(t *testing.T) {
	db := newTestDB(t)
	orderSvc := NewOrderService(db)
	svc := NewPaymentService(db, orderSvc, false)

	user := createTestUser(t, db, "idle")
	_, err := svc.RequestUserPaymentURLs(user)
	assert.ErrorIs(t, err, ErrNoUnpaidOrders)
}
