package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taskherd/taskherd/internal/config"
	"github.com/taskherd/taskherd/internal/notify"
	"github.com/taskherd/taskherd/internal/platform/postgres"
	"github.com/taskherd/taskherd/internal/platform/telegram"
	"github.com/taskherd/taskherd/internal/report"
	"github.com/taskherd/taskherd/internal/schedule"
	"github.com/taskherd/taskherd/internal/scheduler"
	"github.com/taskherd/taskherd/internal/service"
	"github.com/taskherd/taskherd/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Calendar rules
	window *schedule.Window

	// Stores (using interfaces for proper abstraction)
	taskStore     store.TaskStore
	assigneeStore store.AssigneeStore
	outboxStore   store.OutboxStore

	// Delivery pipeline
	sender     *notify.Sender
	dispatcher *notify.Dispatcher

	// Service interfaces
	taskService      service.TaskService
	directoryService service.DirectoryService
	reporter         *report.Reporter

	// Background jobs
	scheduler       *scheduler.Scheduler
	cancelScheduler context.CancelFunc
	schedulerDone   sync.WaitGroup
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule timezone %q: %w", cfg.Schedule.Timezone, err)
	}
	app.window = schedule.NewWindow(loc,
		cfg.Schedule.WorkStartHour,
		cfg.Schedule.WorkEndHour,
		cfg.Schedule.GraceMinutes)

	// Initialize stores
	app.taskStore = postgres.NewPostgresTaskStore(db)
	app.assigneeStore = postgres.NewPostgresAssigneeStore(db)
	app.outboxStore = postgres.NewPostgresOutboxStore(db)

	// Delivery pipeline: transport, retrying sender, window-aware dispatcher
	transport := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIBaseURL,
		logger.With("component", "telegram"))
	app.sender = notify.NewSender(transport, notify.DefaultSenderConfig(),
		logger.With("component", "sender"))
	app.dispatcher = notify.NewDispatcher(app.sender, app.outboxStore, app.window,
		logger.With("component", "dispatcher"))

	// Initialize services
	app.taskService = service.NewTaskService(
		db,
		app.taskStore,
		app.assigneeStore,
		app.dispatcher,
		app.window,
		logger,
	)
	app.directoryService = service.NewDirectoryService(app.assigneeStore, logger)
	app.reporter = report.NewReporter(app.taskStore, app.sender, app.window,
		logger.With("component", "reporter"))

	// Background scheduler
	app.scheduler = scheduler.New(
		app.taskStore,
		app.assigneeStore,
		app.outboxStore,
		app.dispatcher,
		app.window,
		scheduler.Config{
			ReminderHour: cfg.Schedule.ReminderHour,
			DigestHour:   cfg.Schedule.DigestHour,
		},
		logger.With("component", "scheduler"),
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the background scheduler and the HTTP server, handling
// lifecycle and cleanup. It returns an error if the server fails to start
// or encounters problems.
func (app *application) Run(ctx context.Context) error {
	schedulerCtx, cancel := context.WithCancel(ctx)
	app.cancelScheduler = cancel

	app.schedulerDone.Add(1)
	go func() {
		defer app.schedulerDone.Done()
		// Run only returns on context cancellation.
		_ = app.scheduler.Run(schedulerCtx)
	}()

	router := app.setupRouter()

	err := app.startHTTPServer(ctx, router)
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	// Stop the scheduler and wait for any in-flight tick
	if app.cancelScheduler != nil {
		app.cancelScheduler()
		app.schedulerDone.Wait()
	}

	// Close database connection
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
