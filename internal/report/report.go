// Package report builds the coordinator-facing summary of the task herd:
// workload counts, the overdue list, recent audit activity, and a CSV
// export of everything currently open.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/taskherd/taskherd/internal/domain"
	"github.com/taskherd/taskherd/internal/notify"
	"github.com/taskherd/taskherd/internal/platform/logger"
	"github.com/taskherd/taskherd/internal/schedule"
	"github.com/taskherd/taskherd/internal/store"
)

// recipientDelay paces the admin fan-out. Admin recipients are few, so the
// pause is longer than the bulk digest pacing and errs on the safe side.
const recipientDelay = 1250 * time.Millisecond

// lookback is how far back the summary's "recent activity" sections reach.
const lookback = 7 * 24 * time.Hour

// Reporter assembles and delivers admin reports. Reports always go out
// immediately, bypassing the outbox: a coordinator asking for a report
// wants it now, business window or not.
type Reporter struct {
	tasks  store.TaskStore
	sender *notify.Sender
	window *schedule.Window
	logger *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewReporter creates a Reporter.
func NewReporter(tasks store.TaskStore, sender *notify.Sender, window *schedule.Window, log *slog.Logger) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{
		tasks:  tasks,
		sender: sender,
		window: window,
		logger: log,
		now:    time.Now,
	}
}

// Summary holds the assembled report: the human-readable text and the CSV
// attachment of open tasks.
type Summary struct {
	Text     string
	CSV      []byte
	Filename string
}

// Build assembles the current summary.
func (r *Reporter) Build(ctx context.Context) (*Summary, error) {
	now := r.now()
	since := now.Add(-lookback)
	today := domain.Date(r.window.Today(now))

	openCount, err := r.tasks.CountOpenLike(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count open tasks: %w", err)
	}

	closedCount, err := r.tasks.CountClosedBetween(ctx, since, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count recently closed tasks: %w", err)
	}

	overdue, err := r.tasks.ListOverdue(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue tasks: %w", err)
	}

	reassignments, err := r.tasks.ReassignmentsBetween(ctx, since, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent reassignments: %w", err)
	}

	deadlineChanges, err := r.tasks.DeadlineChangesBetween(ctx, since, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent deadline changes: %w", err)
	}

	openTasks, err := r.tasks.ListByStatus(ctx, domain.TaskStatusOpen, domain.TaskStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to list open tasks for export: %w", err)
	}

	csvData, err := exportCSV(openTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to build csv export: %w", err)
	}

	return &Summary{
		Text:     summaryText(now, openCount, closedCount, overdue, reassignments, deadlineChanges),
		CSV:      csvData,
		Filename: fmt.Sprintf("open-tasks-%s.csv", today),
	}, nil
}

// Send builds the summary and fans it out to every admin recipient: the
// text first, then the CSV as an attachment. Per-recipient failures are
// logged and skipped so one unreachable admin does not starve the rest.
func (r *Reporter) Send(ctx context.Context, recipients []string) error {
	log := logger.FromContext(ctx)

	if len(recipients) == 0 {
		log.Warn("admin report requested but no recipients configured")
		return nil
	}

	summary, err := r.Build(ctx)
	if err != nil {
		return err
	}

	for i, recipient := range recipients {
		if i > 0 {
			if err := sleepCtx(ctx, recipientDelay); err != nil {
				return err
			}
		}

		if err := r.sender.Send(ctx, recipient, summary.Text, nil); err != nil {
			log.Error("admin report send failed",
				"recipient", recipient,
				"error", err)
			continue
		}
		if len(summary.CSV) > 0 {
			if err := r.sender.SendDocument(ctx, recipient, summary.Filename, summary.CSV, "Open tasks export"); err != nil {
				log.Error("admin report attachment failed",
					"recipient", recipient,
					"error", err)
			}
		}
	}

	log.Info("admin report sent", "recipients", len(recipients))
	return nil
}

// summaryText renders the report body.
func summaryText(
	now time.Time,
	openCount, closedCount int,
	overdue []*domain.Task,
	reassignments []*domain.ReassignmentEvent,
	deadlineChanges []*domain.DeadlineChangeEvent,
) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 <b>Task report</b> — %s\n\n", now.Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "In work: %d\n", openCount)
	fmt.Fprintf(&b, "Closed in the last 7 days: %d\n", closedCount)

	b.WriteString("\n")
	if len(overdue) == 0 {
		b.WriteString("✅ Nothing overdue.\n")
	} else {
		fmt.Fprintf(&b, "⚠️ Overdue (%d):\n", len(overdue))
		for _, task := range overdue {
			who := task.Assignee
			if who == "" {
				who = "unassigned"
			}
			fmt.Fprintf(&b, "• #%d %s — %s, due %s\n",
				task.ID, task.Description, who, formatDate(task.Deadline))
		}
	}

	if len(reassignments) > 0 {
		fmt.Fprintf(&b, "\n🔁 Reassignments in the last 7 days (%d):\n", len(reassignments))
		for _, ev := range reassignments {
			fmt.Fprintf(&b, "• #%d: %s → %s\n",
				ev.TaskID, orDash(ev.OldAssignee), orDash(ev.NewAssignee))
		}
	}

	if len(deadlineChanges) > 0 {
		fmt.Fprintf(&b, "\n📅 Deadline changes in the last 7 days (%d):\n", len(deadlineChanges))
		for _, ev := range deadlineChanges {
			marker := ""
			if ev.Postponed {
				marker = " (postponed)"
			}
			fmt.Fprintf(&b, "• #%d: %s → %s%s\n",
				ev.TaskID, formatDate(ev.OldDeadline), formatDate(ev.NewDeadline), marker)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// csvHeader is the column order of the open-tasks export.
var csvHeader = []string{
	"id", "description", "assignee", "handle", "deadline",
	"priority", "status", "postponed", "created_at",
}

// exportCSV renders the open task list as UTF-8 CSV.
func exportCSV(tasks []*domain.Task) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, task := range tasks {
		record := []string{
			strconv.FormatInt(task.ID, 10),
			task.Description,
			task.Assignee,
			task.Handle,
			string(task.Deadline),
			string(task.Priority),
			string(task.Status),
			strconv.FormatBool(task.Postponed),
			task.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatDate(d domain.Date) string {
	t := d.Time(time.UTC)
	if t.IsZero() {
		return "—"
	}
	return t.Format("02.01.2006")
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
