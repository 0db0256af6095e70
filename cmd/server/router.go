package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taskherd/taskherd/internal/api"
	apiMiddleware "github.com/taskherd/taskherd/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
// It accepts the application dependencies to create handlers and register routes.
// Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	// Create API handlers using the application's services
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	assigneeHandler := api.NewAssigneeHandler(app.directoryService, app.logger)
	reportHandler := api.NewReportHandler(app.reporter, app.config.Report.AdminRecipients, app.logger)

	// Register routes
	r.Route("/api", func(r chi.Router) {
		// Task lifecycle endpoints
		r.Post("/tasks", taskHandler.CreateTask)
		r.Get("/tasks", taskHandler.ListTasks)
		r.Delete("/tasks/open", taskHandler.WipeOpenLike)
		r.Get("/tasks/{id}", taskHandler.GetTask)
		r.Post("/tasks/{id}/approve", taskHandler.ApproveTask)
		r.Post("/tasks/{id}/start", taskHandler.StartTask)
		r.Post("/tasks/{id}/complete", taskHandler.CompleteTask)
		r.Post("/tasks/{id}/cancel", taskHandler.CancelTask)
		r.Post("/tasks/{id}/reassign", taskHandler.ReassignTask)
		r.Post("/tasks/{id}/deadline", taskHandler.SetDeadline)
		r.Post("/tasks/{id}/priority", taskHandler.SetPriority)
		r.Post("/tasks/{id}/text", taskHandler.SetText)

		// Assignee directory endpoints
		r.Post("/assignees", assigneeHandler.UpsertAssignee)
		r.Get("/assignees", assigneeHandler.ListAssignees)

		// Admin report endpoint
		r.Post("/reports/admin", reportHandler.SendAdminReport)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
