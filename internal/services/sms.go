package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
)

// SMSSender dispatches a text message to a phone number. The OTP engine
// depends on this interface so tests can capture sends.
type SMSSender interface {
	Send(phone, message string) error
}

// SMSService talks to the NextSMS messaging gateway.
type SMSService struct {
	baseURL  string
	username string
	password string
	senderID string
	client   *http.Client
}

func NewSMSService() *SMSService {
	url := os.Getenv("NEXTSMS_BASE_URL")
	if url == "" {
		url = "https://messaging-service.co.tz"
	}
	senderID := os.Getenv("SMS_SENDER_ID")
	if senderID == "" {
		senderID = "MHP HOMES"
	}
	return &SMSService{
		baseURL:  url,
		username: os.Getenv("NEXTSMS_USERNAME"),
		password: os.Getenv("NEXTSMS_PASSWORD"),
		senderID: senderID,
		client:   &http.Client{},
	}
}

func (s *SMSService) makeRequest(method, endpoint string, payload interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, fmt.Sprintf("%s%s", s.baseURL, endpoint), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.username, s.password)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Send dispatches one text message. The recipient is normalized to the
// gateway's prefix-less format first.
func (s *SMSService) Send(phone, message string) error {
	return s.makeRequest("POST", "/api/sms/v1/text/single", map[string]string{
		"from": s.senderID,
		"to":   NormalizePhone(phone),
		"text": message,
	})
}

// NormalizePhone converts a phone number to the 255XXXXXXXXX form the SMS
// gateway expects: the leading plus goes, and a local leading zero is
// replaced with the country code.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "0") {
		phone = "255" + strings.TrimPrefix(phone, "0")
	}
	return phone
}

var phonePattern = regexp.MustCompile(`^\+255\d{9}$`)

// ValidPhone reports whether the value is a Tanzanian number in the
// +255XXXXXXXXX format accepted at registration.
func ValidPhone(value string) bool {
	return phonePattern.MatchString(value)
}
