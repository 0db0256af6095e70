// Package scheduler runs the hourly background loop that drains the outbox
// and emits deadline reminders, follow-ups and the end-of-day digest. Ticks
// never overlap: the loop sleeps, runs one tick to completion, then sleeps
// again.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskherd/taskherd/internal/domain"
	"github.com/taskherd/taskherd/internal/notify"
	"github.com/taskherd/taskherd/internal/platform/logger"
	"github.com/taskherd/taskherd/internal/schedule"
	"github.com/taskherd/taskherd/internal/store"
)

// Config holds the scheduler's timing knobs.
type Config struct {
	// ReminderHour is the local hour (on business days) when overdue and
	// deadline-proximity reminders go out.
	ReminderHour int

	// DigestHour is the local hour (on business days) when each assignee
	// receives the digest of their open tasks.
	DigestHour int

	// OutboxBatch caps how many deferred entries one tick will deliver.
	OutboxBatch int

	// FollowUpAfter is how long after the initial notification the
	// "still in progress?" follow-up fires.
	FollowUpAfter time.Duration
}

// DefaultConfig returns the standard schedule: reminders at 10:00, digest
// at 18:00, follow-up three days after assignment.
func DefaultConfig() Config {
	return Config{
		ReminderHour:  10,
		DigestHour:    18,
		OutboxBatch:   100,
		FollowUpAfter: 72 * time.Hour,
	}
}

// minSleep is the floor on the pause between ticks, so a wake-up just shy
// of the hour boundary cannot spin.
const minSleep = 30 * time.Second

// Scheduler owns the background notification jobs. Rule sends go through
// the dispatcher so a rule firing on an out-of-window tick lands in the
// outbox; only the outbox drain itself sends directly.
type Scheduler struct {
	tasks     store.TaskStore
	assignees store.AssigneeStore
	outbox    store.OutboxStore
	dispatch  *notify.Dispatcher
	window    *schedule.Window
	config    Config
	logger    *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// New creates a Scheduler. Zero config fields fall back to DefaultConfig
// values.
func New(
	tasks store.TaskStore,
	assignees store.AssigneeStore,
	outbox store.OutboxStore,
	dispatch *notify.Dispatcher,
	window *schedule.Window,
	config Config,
	log *slog.Logger,
) *Scheduler {
	def := DefaultConfig()
	if config.ReminderHour <= 0 {
		config.ReminderHour = def.ReminderHour
	}
	if config.DigestHour <= 0 {
		config.DigestHour = def.DigestHour
	}
	if config.OutboxBatch <= 0 {
		config.OutboxBatch = def.OutboxBatch
	}
	if config.FollowUpAfter <= 0 {
		config.FollowUpAfter = def.FollowUpAfter
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		tasks:     tasks,
		assignees: assignees,
		outbox:    outbox,
		dispatch:  dispatch,
		window:    window,
		config:    config,
		logger:    log,
		now:       time.Now,
	}
}

// sender is the underlying direct-send path, used for draining the outbox
// and for fan-out pacing.
func (s *Scheduler) sender() *notify.Sender {
	return s.dispatch.Sender()
}

// Run executes the hourly loop until ctx is cancelled. Each iteration
// sleeps to the next hour boundary, then runs one tick with the wall clock
// truncated to the hour, so a late wake-up still evaluates the hour it
// belongs to.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"reminder_hour", s.config.ReminderHour,
		"digest_hour", s.config.DigestHour)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		d := s.untilNextTick(s.now())
		timer.Reset(d)

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-timer.C:
		}

		s.Tick(ctx, s.truncateToHour(s.now()))
	}
}

// untilNextTick returns how long to sleep to reach the next hour boundary,
// never less than minSleep.
func (s *Scheduler) untilNextTick(t time.Time) time.Duration {
	local := t.In(s.window.Location())
	into := time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
	d := time.Hour - into
	if d < minSleep {
		d = minSleep
	}
	return d
}

// truncateToHour zeroes minutes and seconds in the window's local zone.
func (s *Scheduler) truncateToHour(t time.Time) time.Time {
	local := t.In(s.window.Location())
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), 0, 0, 0, s.window.Location())
}

// Tick runs one scheduler pass for the given instant. Failures of
// individual sends are logged and skipped; a tick never aborts halfway
// because one recipient is unreachable.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	tickID := uuid.New().String()
	log := s.logger.With("tick_id", tickID, "tick_at", now)
	ctx = logger.WithLogger(ctx, log)

	log.Debug("tick started")

	inWindow := s.window.InWindow(now)
	if inWindow {
		s.drainOutbox(ctx, now)
	}

	// The follow-up alignment window is one tick wide, so it must be
	// evaluated on every tick. A hit outside the business window defers
	// through the outbox instead of being lost.
	s.sendFollowUps(ctx, now)

	if inWindow {
		local := now.In(s.window.Location())
		if local.Hour() == s.config.ReminderHour {
			s.sendOverdueReminders(ctx, now)
			s.sendDeadlineReminders(ctx, now)
		}
		if local.Hour() == s.config.DigestHour {
			s.sendDigests(ctx, now)
		}
	}

	log.Debug("tick finished")
}

// drainOutbox delivers due deferred notifications. Entries that fail on a
// transient error stay pending and are retried next tick; unreachable
// recipients are marked sent so a dead chat cannot poison the queue.
func (s *Scheduler) drainOutbox(ctx context.Context, now time.Time) {
	log := logger.FromContext(ctx)

	entries, err := s.outbox.PopDue(ctx, now.UTC(), s.config.OutboxBatch)
	if err != nil {
		log.Error("failed to read due outbox entries", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	log.Info("draining outbox", "due", len(entries))

	sent := 0
	for _, entry := range entries {
		err := s.sender().Send(ctx, entry.Recipient, entry.Text, entry.Payload)
		switch {
		case err == nil:
			// delivered
		case notify.IsUnreachable(err):
			log.Warn("dropping outbox entry for unreachable recipient",
				"outbox_id", entry.ID,
				"recipient", entry.Recipient)
		default:
			log.Error("outbox delivery failed, will retry next tick",
				"outbox_id", entry.ID,
				"recipient", entry.Recipient,
				"error", err)
			continue
		}

		if err := s.outbox.MarkSent(ctx, entry.ID); err != nil {
			log.Error("failed to mark outbox entry sent",
				"outbox_id", entry.ID,
				"error", err)
			continue
		}
		sent++
		if err := s.sender().Pace(ctx, sent); err != nil {
			return
		}
	}
}

// sendFollowUps notifies assignees whose task went out FollowUpAfter ago
// and is still open. The window is one tick wide and half-open on the older
// edge, so each task matches exactly one hourly tick.
func (s *Scheduler) sendFollowUps(ctx context.Context, now time.Time) {
	log := logger.FromContext(ctx)

	to := now.Add(-s.config.FollowUpAfter)
	from := to.Add(-time.Hour).Add(time.Second)

	tasks, err := s.tasks.ListInitialSentBetween(ctx, from, to)
	if err != nil {
		log.Error("failed to list follow-up candidates", "error", err)
		return
	}

	for _, task := range tasks {
		if task.Handle == "" {
			continue
		}
		text := followUpText(task)
		if err := s.dispatch.SendOrEnqueueAt(ctx, now, task.Handle, text, reminderActions(task.ID)); err != nil {
			log.Error("follow-up send failed",
				"task_id", task.ID,
				"recipient", task.Handle,
				"error", err)
			continue
		}
		log.Info("follow-up dispatched", "task_id", task.ID, "recipient", task.Handle)
	}
}

// sendOverdueReminders sends one reminder per overdue open task, carrying
// the done/postpone actions so the assignee can resolve it in place.
func (s *Scheduler) sendOverdueReminders(ctx context.Context, now time.Time) {
	log := logger.FromContext(ctx)

	today := domain.Date(s.window.Today(now))
	tasks, err := s.tasks.ListOverdue(ctx, today)
	if err != nil {
		log.Error("failed to list overdue tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	log.Info("sending overdue reminders", "tasks", len(tasks))

	sent := 0
	for _, task := range tasks {
		if task.Handle == "" {
			continue
		}
		text := overdueText(task)
		if err := s.dispatch.SendOrEnqueueAt(ctx, now, task.Handle, text, reminderActions(task.ID)); err != nil {
			log.Error("overdue reminder send failed",
				"task_id", task.ID,
				"recipient", task.Handle,
				"error", err)
			continue
		}
		sent++
		if err := s.sender().Pace(ctx, sent); err != nil {
			return
		}
	}
}

// sendDeadlineReminders sends per-task reminders for deadlines due today
// and tomorrow.
func (s *Scheduler) sendDeadlineReminders(ctx context.Context, now time.Time) {
	log := logger.FromContext(ctx)

	tasks, err := s.tasks.ListByStatus(ctx, domain.TaskStatusOpen, domain.TaskStatusInProgress)
	if err != nil {
		log.Error("failed to list open tasks for deadline reminders", "error", err)
		return
	}

	local := now.In(s.window.Location())
	today := domain.Date(s.window.Today(now))
	tomorrow := domain.DateOf(local.AddDate(0, 0, 1))

	sent := 0
	for _, task := range tasks {
		if task.Handle == "" || task.Deadline.IsZero() {
			continue
		}

		var text string
		switch task.Deadline {
		case today:
			text = dueTodayText(task)
		case tomorrow:
			text = dueTomorrowText(task)
		default:
			continue
		}

		if err := s.dispatch.SendOrEnqueueAt(ctx, now, task.Handle, text, reminderActions(task.ID)); err != nil {
			log.Error("deadline reminder send failed",
				"task_id", task.ID,
				"recipient", task.Handle,
				"error", err)
			continue
		}
		sent++
		if err := s.sender().Pace(ctx, sent); err != nil {
			return
		}
	}
}

// sendDigests sends every assignee with a known handle the evening digest
// of their open tasks. Assignees with nothing open are skipped.
func (s *Scheduler) sendDigests(ctx context.Context, now time.Time) {
	log := logger.FromContext(ctx)

	entries, err := s.assignees.ListAll(ctx)
	if err != nil {
		log.Error("failed to list assignees for digest", "error", err)
		return
	}

	sent := 0
	for _, entry := range entries {
		if entry.Handle == "" {
			continue
		}

		names, err := s.assignees.NamesForHandle(ctx, entry.Handle)
		if err != nil {
			log.Error("failed to resolve names for digest",
				"handle", entry.Handle,
				"error", err)
			continue
		}

		tasks, err := s.tasks.ListOpenLikeForHandle(ctx, entry.Handle, names)
		if err != nil {
			log.Error("failed to list open tasks for digest",
				"handle", entry.Handle,
				"error", err)
			continue
		}
		if len(tasks) == 0 {
			continue
		}

		text := digestText(tasks)
		if err := s.dispatch.SendOrEnqueueAt(ctx, now, entry.Handle, text, nil); err != nil {
			log.Error("digest send failed",
				"recipient", entry.Handle,
				"error", err)
			continue
		}
		sent++
		if err := s.sender().Pace(ctx, sent); err != nil {
			return
		}
	}

	if sent > 0 {
		log.Info("digests sent", "recipients", sent)
	}
}
