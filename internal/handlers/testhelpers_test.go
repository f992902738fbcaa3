package handlers

import (
	"testing"

	"github.com/labstack/echo/v4"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mhp_backend_echo/internal/services"
)

const testJWTSecret = "test-secret"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := services.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if err := services.SeedGroups(db); err != nil {
		t.Fatalf("failed to seed groups: %v", err)
	}
	return db
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

// fakeSMS records messages instead of dispatching them.
type fakeSMS struct {
	sent []string
}

func (f *fakeSMS) Send(phone, message string) error {
	f.sent = append(f.sent, message)
	return nil
}
