package services

import (
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mhp_backend_echo/internal/models"
)

// InitDB initializes the database connection with connection pooling
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connection established")
	return db, nil
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Fee{},
		&models.GatewayConfig{},
		&models.OrderSequence{},
		&models.CustomerOrder{},
		&models.CustomerOrderPayment{},
		&models.WebhookResponse{},
		&models.Property{},
		&models.PropertyFacility{},
		&models.PropertyImage{},
		&models.PropertyReview{},
		&models.ScheduledTask{},
		&models.ScheduledTaskHistory{},
	)
}

// DefaultGroupName is the group new registrations land in.
const DefaultGroupName = "customer"

// SeedGroups makes sure the built-in groups exist.
func SeedGroups(db *gorm.DB) error {
	groups := []models.Group{
		{Name: DefaultGroupName},
		{Name: "agent"},
		{Name: "admin"},
	}

	for _, group := range groups {
		var existing models.Group
		if err := db.Where("name = ?", group.Name).First(&existing).Error; err != nil {
			if err := db.Create(&group).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
