package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"mhp_backend_echo/internal/models"
	"mhp_backend_echo/internal/services"
	"mhp_backend_echo/internal/tasks"
)

const defaultInterval = 5 * time.Minute

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	tasks.DefineTasks()

	if err := ensureBillingTasks(db); err != nil {
		log.Fatalf("Failed to seed billing tasks: %v", err)
	}

	interval := defaultInterval
	if v := os.Getenv("WORKER_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			interval = parsed
		} else {
			log.Printf("Invalid WORKER_INTERVAL %q, using default %s", v, defaultInterval)
		}
	}

	log.Printf("Worker started, ticking every %s", interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run once at startup, then on every tick.
	processScheduledTasks(ctx, db)

	for {
		select {
		case <-ticker.C:
			processScheduledTasks(ctx, db)
		case <-ctx.Done():
			return
		}
	}
}

// ensureBillingTasks seeds the two recurring billing procedures if they
// are not already scheduled. Both run daily; the order-generation task
// must come first within a tick, which the due-time ordering guarantees.
func ensureBillingTasks(db *gorm.DB) error {
	daily := "FREQ=DAILY"

	seed := []struct {
		name string
		due  time.Time
	}{
		{tasks.GenerateOrdersTask.TaskID(), time.Now()},
		{tasks.RequestPaymentURLsTask.TaskID(), time.Now().Add(time.Minute)},
	}

	for _, s := range seed {
		var count int64
		if err := db.Model(&models.ScheduledTask{}).
			Where("task_name = ? AND status IN ?", s.name,
				[]models.ScheduledTaskStatus{models.ScheduledTaskStatusActive}).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		task, err := tasks.BuildScheduledTask(s.name, nil, s.due, &daily, models.ScheduledTaskTypeRecurring, 3)
		if err != nil {
			return err
		}
		if err := db.Create(task).Error; err != nil {
			return err
		}
		log.Printf("Seeded recurring task %s", s.name)
	}
	return nil
}

func processScheduledTasks(ctx context.Context, db *gorm.DB) {
	log.Println("Checking for pending tasks...")

	var pendingTasks []models.ScheduledTask
	now := time.Now()
	if err := db.Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).
		Order("due ASC").
		Find(&pendingTasks).Error; err != nil {
		log.Printf("Error fetching pending tasks: %v", err)
		return
	}

	if len(pendingTasks) == 0 {
		log.Println("No pending tasks found.")
		return
	}

	log.Printf("Found %d pending tasks.", len(pendingTasks))

	for _, task := range pendingTasks {
		if ctx.Err() != nil {
			return
		}
		executeTask(ctx, db, task)
	}
}

// executeTask runs one task, retrying up to MaxAttempt times within this
// tick, and records a history row per attempt.
func executeTask(ctx context.Context, db *gorm.DB, task models.ScheduledTask) {
	log.Printf("Processing task: %s (ID: %d)", task.TaskName, task.ID)

	handler, found := tasks.GetHandler(task.TaskName)
	if !found {
		log.Printf("Task handler not found for: %s. Marking as failure.", task.TaskName)

		now := time.Now()
		db.Model(&task).Updates(map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})
		db.Create(&models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          "handler_not_found",
			AttemptNumber:   1,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		})
		return
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		startTime time.Time
		succeeded bool
	)
	for attempt := 1; attempt <= maxAttempt; attempt++ {
		if ctx.Err() != nil {
			return
		}

		startTime = time.Now()
		result, err := handler(ctx, db, task)
		runtimeMs := int(time.Since(startTime).Milliseconds())

		status := "success"
		resultData := result
		if err != nil {
			status = "failure"
			resultData = map[string]interface{}{"error": err.Error()}
			log.Printf("Task %s attempt %d/%d failed: %v", task.TaskName, attempt, maxAttempt, err)
		} else {
			succeeded = true
			log.Printf("Task %s completed successfully.", task.TaskName)
		}

		db.Create(&models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           startTime,
			Runtime:         runtimeMs,
			Status:          status,
			AttemptNumber:   attempt,
			Arguments:       task.Arguments,
			Result:          resultData,
		})

		if succeeded {
			break
		}
	}

	taskUpdates := map[string]interface{}{
		"last_run": &startTime,
	}

	if !succeeded {
		taskUpdates["status"] = models.ScheduledTaskStatusFailure
	} else {
		switch task.TaskType {
		case models.ScheduledTaskTypeOneTime:
			taskUpdates["status"] = models.ScheduledTaskStatusDone
		case models.ScheduledTaskTypeRecurring:
			nextDue := task.NextDue()
			// A stale recurrence must not make the task run every tick.
			if nextDue.After(task.Due) {
				taskUpdates["status"] = models.ScheduledTaskStatusActive
				taskUpdates["due"] = nextDue
			} else {
				taskUpdates["status"] = models.ScheduledTaskStatusDone
			}
		}
	}

	db.Model(&task).Updates(taskUpdates)
}
