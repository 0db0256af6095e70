package api

import (
	"log/slog"
	"net/http"

	"github.com/taskherd/taskherd/internal/api/shared"
	"github.com/taskherd/taskherd/internal/platform/logger"
	"github.com/taskherd/taskherd/internal/report"
)

// ReportHandler handles admin report HTTP requests
type ReportHandler struct {
	reporter   *report.Reporter
	recipients []string
	logger     *slog.Logger
}

// NewReportHandler creates a new ReportHandler. recipients are the
// configured admin handles the report fans out to.
func NewReportHandler(reporter *report.Reporter, recipients []string, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReportHandler")
	}

	return &ReportHandler{
		reporter:   reporter,
		recipients: recipients,
		logger:     logger.With(slog.String("component", "report_handler")),
	}
}

// SendAdminReport handles POST /reports/admin requests: it builds the
// current summary and delivers it to the configured admin recipients
// immediately, regardless of the business window.
func (h *ReportHandler) SendAdminReport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if len(h.recipients) == 0 {
		shared.RespondWithError(w, r, http.StatusConflict, "No admin recipients configured")
		return
	}

	if err := h.reporter.Send(r.Context(), h.recipients); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("admin report triggered", slog.Int("recipients", len(h.recipients)))
	shared.RespondWithJSON(w, r, http.StatusOK, ReportResponse{Recipients: len(h.recipients)})
}
