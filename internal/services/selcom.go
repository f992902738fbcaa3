package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"mhp_backend_echo/internal/models"
)

// PaymentExecutor initiates a gateway payment for one order. Implemented
// by SelcomClient; the payment service and billing tasks depend on the
// interface.
type PaymentExecutor interface {
	ExecutePayment(order *models.CustomerOrder) (*PaymentInitResult, error)
}

// PaymentInitResult is the normalized outcome of a payment initiation.
// OK carries the decoded checkout URL; a failed initiation carries the
// provider's message and code and leaves the order untouched.
type PaymentInitResult struct {
	OK         bool   `json:"ok"`
	OrderID    string `json:"order"`
	Message    string `json:"msg"`
	Result     string `json:"result"`
	ResultCode string `json:"result_code"`
	URL        string `json:"url,omitempty"`
}

type selcomOrderData struct {
	PaymentGatewayURL string `json:"payment_gateway_url"`
	GatewayBuyerUUID  string `json:"gateway_buyer_uuid"`
	PaymentToken      string `json:"payment_token"`
	QR                string `json:"qr"`
}

type selcomResponse struct {
	Result     string            `json:"result"`
	ResultCode string            `json:"resultcode"`
	Message    string            `json:"message"`
	Reference  string            `json:"reference"`
	Data       []selcomOrderData `json:"data"`
}

// SelcomClient talks to the Selcom checkout API using one active gateway
// configuration. Requests are signed with the HMAC-SHA256 header scheme
// the API requires.
type SelcomClient struct {
	db     *gorm.DB
	cfg    *models.GatewayConfig
	client *http.Client
	now    func() time.Time
}

func NewSelcomClient(db *gorm.DB, cfg *models.GatewayConfig) *SelcomClient {
	return &SelcomClient{
		db:     db,
		cfg:    cfg,
		client: &http.Client{},
		now:    time.Now,
	}
}

type field struct {
	Key   string
	Value string
}

// signedHeaders builds the Authorization, Digest, Timestamp and
// Signed-Fields headers over the payload fields in order.
func (c *SelcomClient) signedHeaders(fields []field) map[string]string {
	timestamp := c.now().Format(time.RFC3339)

	var data bytes.Buffer
	var names bytes.Buffer
	data.WriteString("timestamp=" + timestamp)
	for i, f := range fields {
		data.WriteString(fmt.Sprintf("&%s=%s", f.Key, f.Value))
		if i > 0 {
			names.WriteString(",")
		}
		names.WriteString(f.Key)
	}

	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write(data.Bytes())
	digest := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "SELCOM " + base64.StdEncoding.EncodeToString([]byte(c.cfg.APIKey)),
		"Digest-Method": "HS256",
		"Digest":        digest,
		"Timestamp":     timestamp,
		"Signed-Fields": names.String(),
	}
}

func (c *SelcomClient) post(path string, fields []field) (*selcomResponse, error) {
	body := make(map[string]string, len(fields))
	for _, f := range fields {
		body[f.Key] = f.Value
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order payload: %w", err)
	}

	req, err := http.NewRequest("POST", c.cfg.BaseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.signedHeaders(fields) {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed selcomResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("unexpected gateway response %q: %w", string(raw), err)
	}
	return &parsed, nil
}

// ExecutePayment creates a checkout order at the gateway for the given
// customer order. On SUCCESS the order is updated in place (reference,
// decoded payment URL, buyer uuid, token, is_generated). On a FAIL result
// the order is not mutated and the failure is returned as a normal
// result. Transport errors are logged and propagated; the billing cron
// retries them on its next run.
func (c *SelcomClient) ExecutePayment(order *models.CustomerOrder) (*PaymentInitResult, error) {
	log.Printf("Starting payment initiation for order %s", order.OrderID)

	cancelURL := fmt.Sprintf("%s/%s/?redirect_status=cancel", c.cfg.RedirectURL, order.UUID)
	redirectURL := fmt.Sprintf("%s/%s/?redirect_status=success", c.cfg.RedirectURL, order.UUID)

	fields := []field{
		{"vendor", c.cfg.VendorTill},
		{"order_id", order.OrderID},
		{"buyer_email", order.User.Email},
		{"buyer_name", order.User.FullName()},
		{"buyer_phone", order.User.Phone},
		{"amount", fmt.Sprintf("%.2f", order.Fee.Amount)},
		{"currency", c.cfg.Currency},
		{"buyer_remarks", c.cfg.Remark},
		{"merchant_remarks", "None"},
		{"no_of_items", fmt.Sprintf("%d", c.cfg.NoOfItems)},
		{"payment_methods", c.cfg.PaymentMethods},
		{"billing.firstname", order.User.FirstName},
		{"billing.lastname", order.User.LastName},
		{"billing.address_1", order.User.Phone},
		{"billing.address_2", c.cfg.Country},
		{"billing.city", c.cfg.City},
		{"billing.state_or_region", c.cfg.StateOrRegion},
		{"billing.country", c.cfg.Country},
		{"billing.phone", order.User.Phone},
		{"billing.postcode_or_pobox", order.User.Phone},
		{"webhook", base64.StdEncoding.EncodeToString([]byte(c.cfg.WebhookURL))},
		{"cancel_url", base64.StdEncoding.EncodeToString([]byte(cancelURL))},
		{"redirect_url", base64.StdEncoding.EncodeToString([]byte(redirectURL))},
	}

	resp, err := c.post(c.cfg.OrderPath, fields)
	if err != nil {
		log.Printf("Gateway request failed for order %s: %v", order.OrderID, err)
		return nil, err
	}

	if resp.Result == models.ResultFail {
		log.Printf("Payment initiation failed for order %s: %s (%s)", order.OrderID, resp.Message, resp.ResultCode)
		return &PaymentInitResult{
			OK:         false,
			OrderID:    order.OrderID,
			Message:    resp.Message,
			Result:     resp.Result,
			ResultCode: resp.ResultCode,
		}, nil
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("gateway response for order %s has no data block", order.OrderID)
	}

	decoded, err := base64.StdEncoding.DecodeString(resp.Data[0].PaymentGatewayURL)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payment url for order %s: %w", order.OrderID, err)
	}
	paymentURL := string(decoded)

	if err := c.updateOrder(order, resp, paymentURL); err != nil {
		return nil, err
	}

	log.Printf("Payment initiation succeeded for order %s", order.OrderID)
	return &PaymentInitResult{
		OK:         true,
		OrderID:    order.OrderID,
		Message:    resp.Message,
		Result:     resp.Result,
		ResultCode: resp.ResultCode,
		URL:        paymentURL,
	}, nil
}

func (c *SelcomClient) updateOrder(order *models.CustomerOrder, resp *selcomResponse, url string) error {
	order.Reference = resp.Reference
	order.ResultCode = resp.ResultCode
	order.Result = resp.Result
	order.Message = resp.Message
	order.PaymentGatewayURL = url
	order.GatewayBuyerUUID = resp.Data[0].GatewayBuyerUUID
	order.PaymentToken = resp.Data[0].PaymentToken
	order.QR = resp.Data[0].QR
	order.IsGenerated = true

	if err := c.db.Save(order).Error; err != nil {
		log.Printf("Failed to update order %s after initiation: %v", order.OrderID, err)
		return err
	}
	return nil
}
