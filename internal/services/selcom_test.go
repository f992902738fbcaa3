package services

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mhp_backend_echo/internal/models"
)

func selcomFixture(t *testing.T, handler http.HandlerFunc) (*SelcomClient, *models.CustomerOrder, func()) {
	t.Helper()
	db := newTestDB(t)
	server := httptest.NewServer(handler)

	cfg := createGatewayConfig(t, db, server.URL)
	user := createBillableUser(t, db, "buyer")
	order, err := NewOrderService(db).GenerateOrder(user)
	require.NoError(t, err)
	require.NotNil(t, order)
	require.NoError(t, db.Preload("Fee").First(order, order.ID).Error)
	order.User = *user

	return NewSelcomClient(db, cfg), order, server.Close
}

func TestExecutePaymentSuccess(t *testing.T) {
	checkoutURL := "https://checkout.example.com/pay/abc123"

	var gotHeaders http.Header
	var gotBody map[string]string
	client, order, cleanup := selcomFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result":     "SUCCESS",
			"resultcode": "000",
			"message":    "Order created",
			"reference":  "REF987",
			"data": []map[string]string{{
				"payment_gateway_url": base64.StdEncoding.EncodeToString([]byte(checkoutURL)),
				"gateway_buyer_uuid":  "buyer-uuid-1",
				"payment_token":       "token-1",
				"qr":                  "qr-data",
			}},
		})
	})
	defer cleanup()

	result, err := client.ExecutePayment(order)
	require.NoError(t, err)
	require.True(t, result.OK)
	assert.Equal(t, checkoutURL, result.URL)
	assert.Equal(t, order.OrderID, result.OrderID)

	// Request carries the signed-header scheme.
	assert.Contains(t, gotHeaders.Get("Authorization"), "SELCOM ")
	assert.Equal(t, "HS256", gotHeaders.Get("Digest-Method"))
	assert.NotEmpty(t, gotHeaders.Get("Digest"))
	assert.NotEmpty(t, gotHeaders.Get("Timestamp"))
	assert.NotEmpty(t, gotHeaders.Get("Signed-Fields"))

	assert.Equal(t, "VENDOR123", gotBody["vendor"])
	assert.Equal(t, order.OrderID, gotBody["order_id"])
	assert.Equal(t, "10000.00", gotBody["amount"])

	var updated models.CustomerOrder
	require.NoError(t, client.db.First(&updated, order.ID).Error)
	assert.True(t, updated.IsGenerated)
	assert.Equal(t, checkoutURL, updated.PaymentGatewayURL)
	assert.Equal(t, "REF987", updated.Reference)
	assert.Equal(t, "buyer-uuid-1", updated.GatewayBuyerUUID)
	assert.Equal(t, "token-1", updated.PaymentToken)
}

func TestExecutePaymentFailResult(t *testing.T) {
	client, order, cleanup := selcomFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result":     "FAIL",
			"resultcode": "999",
			"message":    "Invalid vendor",
		})
	})
	defer cleanup()

	result, err := client.ExecutePayment(order)
	require.NoError(t, err)
	require.False(t, result.OK)
	assert.Equal(t, "Invalid vendor", result.Message)
	assert.Equal(t, "999", result.ResultCode)

	// A failed initiation never mutates the order.
	var updated models.CustomerOrder
	require.NoError(t, client.db.First(&updated, order.ID).Error)
	assert.False(t, updated.IsGenerated)
	assert.Empty(t, updated.PaymentGatewayURL)
}

func TestExecutePaymentTransportError(t *testing.T) {
	client, order, cleanup := selcomFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	// Closing the server up front forces a connection error.
	cleanup()

	result, err := client.ExecutePayment(order)
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestRequestPaymentURLsTallies(t *testing.T) {
	db := newTestDB(t)

	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount == 1 {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"result": "FAIL", "resultcode": "999", "message": "declined",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": "SUCCESS", "resultcode": "000", "message": "ok", "reference": "REF1",
			"data": []map[string]string{{
				"payment_gateway_url": base64.StdEncoding.EncodeToString([]byte("https://checkout.example.com/x")),
			}},
		})
	}))
	defer server.Close()

	cfg := createGatewayConfig(t, db, server.URL)
	orderSvc := NewOrderService(db)
	paymentSvc := NewPaymentService(db, orderSvc, false)

	for _, name := range []string{"first", "second"} {
		user := createBillableUser(t, db, name)
		_, err := orderSvc.GenerateOrder(user)
		require.NoError(t, err)
	}

	orders, err := paymentSvc.UnpaidUngeneratedOrders(0)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	summary := paymentSvc.RequestPaymentURLs(NewSelcomClient(db, cfg), orders)
	assert.Equal(t, 2, summary.TotalOrders)
	assert.Equal(t, 1, summary.Generated)
	assert.Equal(t, 1, summary.NonGenerated)

	// The failed order keeps the raw result on its message field and
	// stays ungenerated so the next run retries it.
	remaining, err := paymentSvc.UnpaidUngeneratedOrders(0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Contains(t, remaining[0].Message, "declined")
}
