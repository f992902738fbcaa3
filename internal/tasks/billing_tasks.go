package tasks

import (
	"context"
	"log"

	"gorm.io/gorm"

	"mhp_backend_echo/internal/models"
	"mhp_backend_echo/internal/services"
)

// GenerateOrdersTaskDef creates customer orders for users that have none
// yet. It is the first half of the recurring billing cycle.
type GenerateOrdersTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *GenerateOrdersTaskDef) TaskID() string {
	return "generate_customer_orders"
}

// HandleExecution selects all users without an order and runs the order
// generator over them.
func (t *GenerateOrdersTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	orderSvc := services.NewOrderService(db)

	users, err := orderSvc.UsersWithoutOrders()
	if err != nil {
		return nil, err
	}
	log.Printf("[Task: %s] %d users without orders", t.TaskID(), len(users))

	created := 0
	skipped := 0
	for i := range users {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		order, err := orderSvc.GenerateOrder(&users[i])
		if err != nil {
			return nil, err
		}
		if order == nil {
			skipped++
			continue
		}
		created++
	}

	return map[string]interface{}{
		"status":  "success",
		"total":   len(users),
		"created": created,
		"skipped": skipped,
	}, nil
}

// GenerateOrdersTask is the singleton instance of GenerateOrdersTaskDef
var GenerateOrdersTask = &GenerateOrdersTaskDef{}

// RequestPaymentURLsTaskDef asks the gateway for checkout URLs for every
// order that has none yet. Orders whose initiation fails keep
// is_generated false, so the next run of this task is the retry path.
type RequestPaymentURLsTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *RequestPaymentURLsTaskDef) TaskID() string {
	return "request_payment_urls"
}

// HandleExecution fans the gateway adapter out over all unpaid,
// ungenerated orders and reports the tallies.
func (t *RequestPaymentURLsTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	orderSvc := services.NewOrderService(db)
	paymentSvc := services.NewPaymentService(db, orderSvc, false)

	orders, err := paymentSvc.UnpaidUngeneratedOrders(0)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		log.Printf("[Task: %s] no orders waiting for a payment url", t.TaskID())
		return map[string]interface{}{"status": "success", "total_order": 0}, nil
	}

	cfg, err := orderSvc.ActiveGatewayConfig()
	if err != nil {
		return nil, err
	}

	summary := paymentSvc.RequestPaymentURLs(services.NewSelcomClient(db, cfg), orders)
	log.Printf("[Task: %s] total=%d generated=%d failed=%d",
		t.TaskID(), summary.TotalOrders, summary.Generated, summary.NonGenerated)

	return map[string]interface{}{
		"status":              "success",
		"total_order":         summary.TotalOrders,
		"generated_order":     summary.Generated,
		"non_generated_order": summary.NonGenerated,
	}, nil
}

// RequestPaymentURLsTask is the singleton instance of RequestPaymentURLsTaskDef
var RequestPaymentURLsTask = &RequestPaymentURLsTaskDef{}
