package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusProposed   TaskStatus = "proposed"
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskPriority represents the urgency class of a task.
type TaskPriority string

// Possible task priority values
const (
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
)

// Task-specific validation errors
var (
	// ErrTaskDescriptionEmpty is returned when a task's description is empty.
	ErrTaskDescriptionEmpty = errors.New("task description cannot be empty")

	// ErrInvalidTaskStatus is returned when a task status is not one of the
	// known lifecycle states.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidTaskPriority is returned when a task priority is neither
	// normal nor high.
	ErrInvalidTaskPriority = errors.New("invalid task priority")

	// ErrPriorityLocked is returned when a postponement is attempted on a
	// high priority task. The deadline of a high priority task is fixed once
	// set and can only change through a non-postponing edit.
	ErrPriorityLocked = errors.New("high priority task deadline cannot be postponed")
)

// InvalidTransitionError is returned when a status change does not follow
// the task lifecycle graph.
type InvalidTransitionError struct {
	From TaskStatus
	To   TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid task status transition: %s -> %s", e.From, e.To)
}

// ValidationError is returned when a lifecycle operation requires fields
// that are missing on the task (e.g. approval without a deadline).
// The operation leaves the task unchanged.
type ValidationError struct {
	Op      string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s requires %s", e.Op, strings.Join(e.Missing, ", "))
}

// Task represents a unit of work assigned to a person, with an optional
// calendar deadline and a nag-until-closed notification lifecycle.
// Assignee is the display name; Handle is the opaque transport-level
// address of the assignee and may be empty until approval.
type Task struct {
	ID            int64        `json:"id"`
	Description   string       `json:"description"`
	Assignee      string       `json:"assignee"`
	Handle        string       `json:"handle"`
	Deadline      Date         `json:"deadline,omitempty"`
	Priority      TaskPriority `json:"priority"`
	Status        TaskStatus   `json:"status"`
	Source        string       `json:"source"`
	SourceRef     string       `json:"source_ref,omitempty"`
	Link          string       `json:"link,omitempty"`
	CancelReason  string       `json:"cancel_reason,omitempty"`
	Postponed     bool         `json:"postponed"`
	PostponedAt   time.Time    `json:"postponed_at"`
	InitialSentAt time.Time    `json:"initial_sent_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewTask creates a new Task with the given description, assignee and
// deadline. Trusted manual entry may start the task directly in open or
// in_progress; everything else starts proposed. Returns an error if
// validation fails.
func NewTask(description, assignee, handle string, deadline Date, priority TaskPriority, status TaskStatus, source string) (*Task, error) {
	if priority == "" {
		priority = PriorityNormal
	}
	if status == "" {
		status = TaskStatusProposed
	}
	now := time.Now().UTC()
	task := &Task{
		Description: strings.TrimSpace(description),
		Assignee:    strings.TrimSpace(assignee),
		Handle:      strings.TrimSpace(handle),
		Deadline:    deadline,
		Priority:    priority,
		Status:      status,
		Source:      source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The initial-send timestamp is only stamped at creation when the task
	// skips approval entirely.
	if status == TaskStatusOpen || status == TaskStatusInProgress {
		task.InitialSentAt = now
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.Description == "" {
		return ErrTaskDescriptionEmpty
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if !isValidTaskPriority(t.Priority) {
		return ErrInvalidTaskPriority
	}

	if t.Deadline != "" {
		if _, err := ParseDate(string(t.Deadline)); err != nil {
			return err
		}
	}

	return nil
}

// IsTerminal reports whether the task has reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusDone || t.Status == TaskStatusCancelled
}

// IsOpenLike reports whether the task is active work (open or in_progress).
func (t *Task) IsOpenLike() bool {
	return t.Status == TaskStatusOpen || t.Status == TaskStatusInProgress
}

// CanTransitionTo reports whether moving from the task's current status to
// next follows the lifecycle graph:
//
//	proposed    -> open, cancelled
//	open        -> in_progress, done, cancelled
//	in_progress -> done, cancelled
//	done        -> (terminal)
//	cancelled   -> (terminal)
//
// Completing directly from open is allowed: assignees routinely close work
// without ever pressing "in progress".
func (t *Task) CanTransitionTo(next TaskStatus) bool {
	switch t.Status {
	case TaskStatusProposed:
		return next == TaskStatusOpen || next == TaskStatusCancelled
	case TaskStatusOpen:
		return next == TaskStatusInProgress || next == TaskStatusDone || next == TaskStatusCancelled
	case TaskStatusInProgress:
		return next == TaskStatusDone || next == TaskStatusCancelled
	default:
		return false
	}
}

// Transition moves the task to the next status, enforcing the lifecycle
// graph, and updates the UpdatedAt timestamp.
// Returns an InvalidTransitionError if the move is not allowed.
func (t *Task) Transition(next TaskStatus) error {
	if !isValidTaskStatus(next) {
		return ErrInvalidTaskStatus
	}
	if !t.CanTransitionTo(next) {
		return &InvalidTransitionError{From: t.Status, To: next}
	}

	t.Status = next
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel moves the task to cancelled from any non-terminal state and
// records the reason. An empty reason is allowed.
func (t *Task) Cancel(reason string) error {
	if t.IsTerminal() {
		return &InvalidTransitionError{From: t.Status, To: TaskStatusCancelled}
	}

	t.Status = TaskStatusCancelled
	t.CancelReason = reason
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// SetAssignee updates the current assignee pair and the UpdatedAt timestamp.
// The audit trail for reassignments lives in the store, not on the entity.
func (t *Task) SetAssignee(name, handle string) {
	t.Assignee = strings.TrimSpace(name)
	t.Handle = strings.TrimSpace(handle)
	t.UpdatedAt = time.Now().UTC()
}

// SetDeadline updates the deadline. A postponing change is rejected with
// ErrPriorityLocked on high priority tasks and otherwise marks the task
// postponed with a timestamp; whether a DeadlineChangeEvent is appended is
// the store's concern.
func (t *Task) SetDeadline(deadline Date, postponed bool) error {
	if deadline != "" {
		if _, err := ParseDate(string(deadline)); err != nil {
			return err
		}
	}

	if postponed {
		if t.Priority == PriorityHigh {
			return ErrPriorityLocked
		}
		now := time.Now().UTC()
		t.Postponed = true
		t.PostponedAt = now
		t.Deadline = deadline
		t.UpdatedAt = now
		return nil
	}

	t.Deadline = deadline
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkInitialSent records the confirmed delivery of the initial
// notification. Called once, when approval succeeds.
func (t *Task) MarkInitialSent(at time.Time) {
	t.InitialSentAt = at.UTC()
	t.UpdatedAt = time.Now().UTC()
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusProposed, TaskStatusOpen, TaskStatusInProgress,
		TaskStatusDone, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// isValidTaskPriority checks if the given priority is a valid TaskPriority.
func isValidTaskPriority(priority TaskPriority) bool {
	return priority == PriorityNormal || priority == PriorityHigh
}
