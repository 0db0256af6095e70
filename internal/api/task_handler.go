// Package api provides HTTP handlers for the API.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/taskherd/taskherd/internal/api/shared"
	"github.com/taskherd/taskherd/internal/domain"
	"github.com/taskherd/taskherd/internal/platform/logger"
	"github.com/taskherd/taskherd/internal/service"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /tasks requests.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), service.CreateTaskInput{
		Description: req.Description,
		Assignee:    req.Assignee,
		Handle:      req.Handle,
		Deadline:    domain.Date(req.Deadline),
		Priority:    domain.TaskPriority(req.Priority),
		Status:      domain.TaskStatus(req.Status),
		Source:      req.Source,
		SourceRef:   req.SourceRef,
		Link:        req.Link,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task created",
		slog.Int64("task_id", task.ID),
		slog.String("status", string(task.Status)))
	shared.RespondWithJSON(w, r, http.StatusCreated, task)
}

// ListTasks handles GET /tasks requests. An optional status query parameter
// filters by lifecycle state; without it, open and in_progress tasks are
// returned.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	statuses := []domain.TaskStatus{domain.TaskStatusOpen, domain.TaskStatusInProgress}
	if raw := r.URL.Query()["status"]; len(raw) > 0 {
		statuses = statuses[:0]
		for _, s := range raw {
			statuses = append(statuses, domain.TaskStatus(s))
		}
	}

	tasks, err := h.taskService.ListTasks(r.Context(), statuses...)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasks)
}

// GetTask handles GET /tasks/{id} requests, returning the task together
// with its reassignment and deadline-change history.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathTaskID(w, r)
	if !ok {
		return
	}

	history, err := h.taskService.GetTask(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, history)
}

// ApproveTask handles POST /tasks/{id}/approve requests. Approval notifies
// the assignee first and only opens the task once delivery is confirmed.
func (h *TaskHandler) ApproveTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	id, ok := h.pathTaskID(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Approve(r.Context(), id); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task approved", slog.Int64("task_id", id))
	h.respondWithTask(w, r, id)
}

// StartTask handles POST /tasks/{id}/start requests.
func (h *TaskHandler) StartTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathTaskID(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Start(r.Context(), id); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.respondWithTask(w, r, id)
}

// CompleteTask handles POST /tasks/{id}/complete requests.
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathTaskID(w, r)
	if !ok {
		return
	}

	// The body is optional; an empty body means no proof attached.
	var req CompleteTaskRequest
	_ = shared.DecodeJSON(r, &req)

	if err := h.taskService.Complete(r.Context(), id, req.ProofAttached); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.respondWithTask(w, r, id)
}

// CancelTask handles POST /tasks/{id}/cancel requests.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathTaskID(w, r)
	if !ok {
		return
	}

	var req CancelTaskRequest
	_ = shared.DecodeJSON(r, &req)

	if err := h.taskService.Cancel(r.Context(), id, req.Reason); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.respondWithTask(w, r, id)
}

// ReassignTask handles POST /tasks/{id}/reassign requests.
func (h *TaskHandler) ReassignTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	id, ok := h.pathTaskID(w, r)
	if !ok {
		return
	}

	var req ReassignTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	if err := h.taskService.Reassign(r.Context(), id, req.Assignee, req.Handle, req.Actor); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task reassigned",
		slog.Int64("task_id", id),
		slog.String("new_assignee", req.Assignee))
	h.respondWithTask(w, r, id)
}

// SetDeadline handles POST /tasks/{id}/deadline requests.
func (h *TaskHandler) SetDeadline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathTaskID(w, r)
	if !ok {
		return
	}

	var req SetDeadlineRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	err := h.taskService.SetDeadline(r.Context(), id, domain.Date(req.Deadline), req.Postponed, req.Actor)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.respondWithTask(w, r, id)
}

// SetPriority handles POST /tasks/{id}/priority requests.
func (h *TaskHandler) SetPriority(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathTaskID(w, r)
	if !ok {
		return
	}

	var req SetPriorityRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	if err := h.taskService.SetPriority(r.Context(), id, domain.TaskPriority(req.Priority)); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.respondWithTask(w, r, id)
}

// SetText handles POST /tasks/{id}/text requests.
func (h *TaskHandler) SetText(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathTaskID(w, r)
	if !ok {
		return
	}

	var req SetTextRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	if err := h.taskService.SetText(r.Context(), id, req.Description); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.respondWithTask(w, r, id)
}

// WipeOpenLike handles DELETE /tasks/open requests, the bulk reset of all
// proposed/open/in_progress tasks and their audit trail.
func (h *TaskHandler) WipeOpenLike(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	removed, err := h.taskService.WipeOpenLike(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Warn("open-like tasks wiped", slog.Int64("removed", removed))
	shared.RespondWithJSON(w, r, http.StatusOK, WipeResponse{Removed: removed})
}

// pathTaskID extracts and parses the {id} path parameter. On failure it
// writes the error response and returns false.
func (h *TaskHandler) pathTaskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task id")
		return 0, false
	}
	return id, true
}

// respondWithTask reloads the task and returns its current state, so every
// mutating endpoint answers with the task as persisted.
func (h *TaskHandler) respondWithTask(w http.ResponseWriter, r *http.Request, id int64) {
	history, err := h.taskService.GetTask(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, history.Task)
}
