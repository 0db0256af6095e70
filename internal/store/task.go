package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskherd/taskherd/internal/domain"
)

// TaskStore defines the interface for task persistence, including the two
// append-only audit relations that reference tasks by id.
// Version: 1.0
type TaskStore interface {
	// Create persists a new task and returns its generated id.
	// Returns validation errors if the task data is invalid.
	Create(ctx context.Context, task *domain.Task) (int64, error)

	// GetByID retrieves a task by its unique id.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// Update persists all mutable fields of the task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// ListByStatus returns all tasks in any of the given statuses,
	// ordered by id.
	ListByStatus(ctx context.Context, statuses ...domain.TaskStatus) ([]*domain.Task, error)

	// ListOpenLikeForHandle returns the open/in_progress tasks for a
	// recipient handle, ordered by creation time. Tasks without a handle
	// are matched through the assignee names registered for that handle.
	ListOpenLikeForHandle(ctx context.Context, handle string, names []string) ([]*domain.Task, error)

	// ListOverdue returns the open/in_progress tasks whose deadline is set
	// and strictly earlier than today, ordered by deadline then assignee.
	ListOverdue(ctx context.Context, today domain.Date) ([]*domain.Task, error)

	// ListProposed returns the most recently created proposed tasks,
	// capped at limit.
	ListProposed(ctx context.Context, limit int) ([]*domain.Task, error)

	// ListInitialSentBetween returns the open/in_progress tasks whose
	// initial notification was sent within [from, to].
	ListInitialSentBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error)

	// CountOpenLike returns the number of open/in_progress tasks.
	CountOpenLike(ctx context.Context) (int, error)

	// CountClosedBetween returns the number of tasks completed within
	// [from, to], judged by their last update.
	CountClosedBetween(ctx context.Context, from, to time.Time) (int, error)

	// AppendReassignment appends one immutable reassignment audit event.
	// IMPORTANT: this MUST run in the same transaction as the task update
	// that applies the new assignee pair; use WithTx under
	// store.RunInTransaction.
	AppendReassignment(ctx context.Context, event *domain.ReassignmentEvent) error

	// AppendDeadlineChange appends one immutable deadline-change audit event.
	// Same transaction discipline as AppendReassignment.
	AppendDeadlineChange(ctx context.Context, event *domain.DeadlineChangeEvent) error

	// ReassignmentsForTask returns a task's reassignment history in order.
	ReassignmentsForTask(ctx context.Context, taskID int64) ([]*domain.ReassignmentEvent, error)

	// DeadlineChangesForTask returns a task's deadline-change history in order.
	DeadlineChangesForTask(ctx context.Context, taskID int64) ([]*domain.DeadlineChangeEvent, error)

	// ReassignmentsBetween returns all reassignment events within [from, to].
	ReassignmentsBetween(ctx context.Context, from, to time.Time) ([]*domain.ReassignmentEvent, error)

	// DeadlineChangesBetween returns all deadline-change events within [from, to].
	DeadlineChangesBetween(ctx context.Context, from, to time.Time) ([]*domain.DeadlineChangeEvent, error)

	// WipeOpenLike deletes all proposed/open/in_progress tasks together
	// with their audit trail and returns how many tasks were removed.
	// This is the only physical deletion path.
	WipeOpenLike(ctx context.Context) (int64, error)

	// WithTx returns a TaskStore bound to the given transaction.
	// The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
