package services

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mhp_backend_echo/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// A connection pool would hand out independent in-memory databases.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// fakeSMS records sends instead of hitting the gateway.
type fakeSMS struct {
	sent []string
	fail bool
}

func (f *fakeSMS) Send(phone, message string) error {
	if f.fail {
		return errSMSDown
	}
	f.sent = append(f.sent, message)
	return nil
}

var errSMSDown = &smsDownError{}

type smsDownError struct{}

func (e *smsDownError) Error() string { return "sms gateway down" }

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := models.User{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: "Test",
		LastName:  "User",
		Phone:     "+255712345678",
		IsActive:  true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return &user
}

func createBillableUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := createTestUser(t, db, username)

	var group models.Group
	if err := db.Where("name = ?", "customer").FirstOrCreate(&group, models.Group{Name: "customer"}).Error; err != nil {
		t.Fatalf("failed to create group: %v", err)
	}
	if err := db.Model(user).Association("Groups").Append(&group); err != nil {
		t.Fatalf("failed to assign group: %v", err)
	}

	var fee models.Fee
	if err := db.Where("group_id = ?", group.ID).First(&fee).Error; err != nil {
		fee = models.Fee{Amount: 10000, GroupID: group.ID, Interval: 30, Active: true}
		if err := db.Create(&fee).Error; err != nil {
			t.Fatalf("failed to create fee: %v", err)
		}
	}

	user.Groups = []models.Group{group}
	return user
}

func createGatewayConfig(t *testing.T, db *gorm.DB, baseURL string) *models.GatewayConfig {
	t.Helper()
	cfg := models.GatewayConfig{
		VendorTill:     "VENDOR123",
		Remark:         "Payment For mobile application",
		Country:        "TZ",
		City:           "Dar es salaam",
		StateOrRegion:  "DA",
		Currency:       models.CurrencyTZS,
		PaymentMethods: models.PaymentMethodsAll,
		NoOfItems:      1,
		APIKey:         "test-api-key",
		SecretKey:      "test-secret",
		BaseURL:        baseURL,
		OrderPath:      "/checkout/create-order-minimal",
		WebhookURL:     "https://api.example.com/v1/payment/webhook",
		RedirectURL:    "https://api.example.com/payment/redirect",
		CancelURL:      "https://api.example.com/payment/redirect",
		Active:         true,
	}
	if err := db.Create(&cfg).Error; err != nil {
		t.Fatalf("failed to create gateway config: %v", err)
	}
	return &cfg
}
