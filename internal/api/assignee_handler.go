package api

import (
	"log/slog"
	"net/http"

	"github.com/taskherd/taskherd/internal/api/shared"
	"github.com/taskherd/taskherd/internal/domain"
	"github.com/taskherd/taskherd/internal/platform/logger"
	"github.com/taskherd/taskherd/internal/service"
)

// AssigneeHandler handles assignee directory HTTP requests
type AssigneeHandler struct {
	directory service.DirectoryService
	logger    *slog.Logger
}

// NewAssigneeHandler creates a new AssigneeHandler
func NewAssigneeHandler(directory service.DirectoryService, logger *slog.Logger) *AssigneeHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AssigneeHandler")
	}

	return &AssigneeHandler{
		directory: directory,
		logger:    logger.With(slog.String("component", "assignee_handler")),
	}
}

// UpsertAssignee handles POST /assignees requests. The directory is
// upsert-only: an existing entry for the same handle is merged, never
// duplicated.
func (h *AssigneeHandler) UpsertAssignee(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req UpsertAssigneeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	if err := h.directory.Upsert(r.Context(), req.Name, req.Handle, req.Nickname, req.Position); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("assignee upserted", slog.String("name", req.Name))
	w.WriteHeader(http.StatusNoContent)
}

// ListAssignees handles GET /assignees requests.
func (h *AssigneeHandler) ListAssignees(w http.ResponseWriter, r *http.Request) {
	entries, err := h.directory.List(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if entries == nil {
		entries = []*domain.Assignee{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, entries)
}
