package main

import (
	"html/template"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"mhp_backend_echo/internal/handlers"
	appMiddleware "mhp_backend_echo/internal/middleware"
	"mhp_backend_echo/internal/services"
)

// TemplateRenderer is a minimal html/template renderer for Echo. The only
// page served by the API is the gateway redirect landing page.
type TemplateRenderer struct {
	templates *template.Template
}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{
		templates: template.Must(template.ParseGlob("web/templates/*.html")),
	}
}

// Render renders a template document
func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	if err := services.SeedGroups(db); err != nil {
		log.Fatalf("Failed to seed groups: %v", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// Redis is optional; the cache degrades to pass-through when absent.
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	} else {
		log.Println("Warning: REDIS_URL not set, caching disabled")
	}

	smsService := services.NewSMSService()
	otpService := services.NewOTPService(db, smsService)
	orderService := services.NewOrderService(db)
	paymentService := services.NewPaymentService(db, orderService,
		os.Getenv("STRICT_PAID_STATUS") == "true")

	// Surface gateway misconfiguration at startup rather than at first
	// payment attempt. The server still starts so the rest of the API works.
	if err := orderService.ValidateConfig(); err != nil {
		log.Printf("Warning: payment gateway config check failed: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = appMiddleware.JSONErrorHandler
	e.Validator = handlers.NewValidator()
	e.Renderer = NewTemplateRenderer()

	authHandler := handlers.NewAuthHandler(db, otpService, orderService, cache, jwtSecret)
	paymentHandler := handlers.NewPaymentHandler(db, paymentService)
	propertyHandler := handlers.NewPropertyHandler(db, cache)

	v1 := e.Group("/v1")

	// Auth routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/otp/verify", authHandler.VerifyOTP)
	auth.POST("/otp/request", authHandler.RequestOTP)
	auth.POST("/reset/request", authHandler.RequestResetOTP)
	auth.POST("/reset/password", authHandler.ResetPassword)

	// Payment routes
	payment := v1.Group("/payment")
	payment.POST("/webhook", paymentHandler.Webhook)

	// Public property routes
	v1.GET("/properties", propertyHandler.List)
	v1.GET("/properties/:id", propertyHandler.Get)
	v1.GET("/properties/:id/reviews", propertyHandler.ListReviews)

	// Protected routes
	protected := v1.Group("")
	protected.Use(appMiddleware.RequireAuth(db, jwtSecret))
	protected.POST("/auth/change-password", authHandler.ChangePassword)
	protected.GET("/payment/my-order", paymentHandler.MyOrders)
	protected.GET("/payment/history", paymentHandler.PaymentHistory)
	protected.GET("/payment/request-payment-url", paymentHandler.RequestPaymentURL)
	protected.POST("/properties", propertyHandler.Create)
	protected.PUT("/properties/:id", propertyHandler.Update)
	protected.DELETE("/properties/:id", propertyHandler.Delete)
	protected.GET("/properties/mine", propertyHandler.MyProperties)
	protected.POST("/properties/:id/reviews", propertyHandler.CreateReview)

	// Gateway redirect landing page, outside the versioned API
	e.GET("/payment/redirect/:uuid", paymentHandler.PaymentRedirect)

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
