// Package service orchestrates task lifecycle operations across the stores
// and the delivery sender: validation, state transitions, audit-event
// pairing, and the notifications each transition owes.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskherd/taskherd/internal/domain"
	"github.com/taskherd/taskherd/internal/notify"
	"github.com/taskherd/taskherd/internal/schedule"
	"github.com/taskherd/taskherd/internal/store"
)

// CreateTaskInput is the normalized task-creation input. Text extraction,
// date parsing and assignee detection happen upstream; by the time input
// reaches here it is already structured.
type CreateTaskInput struct {
	Description string
	Assignee    string
	Handle      string
	Deadline    domain.Date
	Priority    domain.TaskPriority
	Status      domain.TaskStatus
	Source      string
	SourceRef   string
	Link        string
}

// TaskHistory bundles a task snapshot with its audit trail for rendering.
type TaskHistory struct {
	Task            *domain.Task
	Reassignments   []*domain.ReassignmentEvent
	DeadlineChanges []*domain.DeadlineChangeEvent
}

// TaskService defines the task lifecycle operations exposed to the API and
// interactive surfaces.
// Version: 1.0
type TaskService interface {
	// CreateTask persists a new task from normalized input and registers
	// the assignee in the directory when a name is present.
	CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error)

	// GetTask returns a task snapshot with its audit trail.
	GetTask(ctx context.Context, id int64) (*TaskHistory, error)

	// ListTasks returns tasks in the given statuses (all open-like plus
	// proposed when none are given).
	ListTasks(ctx context.Context, statuses ...domain.TaskStatus) ([]*domain.Task, error)

	// Approve validates the task, delivers the initial notification, and
	// only then moves proposed -> open and stamps the send time. A missing
	// assignee, handle or deadline fails with *domain.ValidationError; an
	// undeliverable recipient aborts with the transport error. Either way
	// the task stays proposed.
	Approve(ctx context.Context, id int64) error

	// Start moves open -> in_progress.
	Start(ctx context.Context, id int64) error

	// Complete moves open/in_progress -> done. Proof of completion is
	// delivered out of band; only the fact of it is accepted here.
	Complete(ctx context.Context, id int64, proofAttached bool) error

	// Cancel moves any non-terminal status -> cancelled with a reason
	// (empty allowed).
	Cancel(ctx context.Context, id int64, reason string) error

	// Reassign appends exactly one reassignment audit event and applies
	// the new assignee pair atomically, then notifies both the old and the
	// new recipient. Allowed in any non-terminal state; status untouched.
	Reassign(ctx context.Context, id int64, newName, newHandle, actor string) error

	// SetDeadline updates the deadline. A postponing change is rejected on
	// high priority tasks (domain.ErrPriorityLocked) and on past dates
	// (domain.ErrPastDate), and otherwise appends one deadline-change
	// audit event atomically with the update. A non-postponing set is a
	// plain update without an audit event.
	SetDeadline(ctx context.Context, id int64, deadline domain.Date, postponed bool, actor string) error

	// SetPriority updates the priority, no side effects.
	SetPriority(ctx context.Context, id int64, priority domain.TaskPriority) error

	// SetText updates the description, no side effects.
	SetText(ctx context.Context, id int64, text string) error

	// WipeOpenLike deletes all non-terminal tasks and their audit trail.
	WipeOpenLike(ctx context.Context) (int64, error)
}

// taskService is the production TaskService implementation.
type taskService struct {
	db        *sql.DB
	tasks     store.TaskStore
	assignees store.AssigneeStore
	dispatch  *notify.Dispatcher
	window    *schedule.Window
	logger    *slog.Logger
}

// NewTaskService creates a TaskService.
func NewTaskService(
	db *sql.DB,
	tasks store.TaskStore,
	assignees store.AssigneeStore,
	dispatch *notify.Dispatcher,
	window *schedule.Window,
	log *slog.Logger,
) TaskService {
	if log == nil {
		log = slog.Default()
	}
	return &taskService{
		db:        db,
		tasks:     tasks,
		assignees: assignees,
		dispatch:  dispatch,
		window:    window,
		logger:    log,
	}
}

func (s *taskService) CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error) {
	task, err := domain.NewTask(
		input.Description,
		input.Assignee,
		input.Handle,
		input.Deadline,
		input.Priority,
		input.Status,
		input.Source,
	)
	if err != nil {
		return nil, err
	}
	task.SourceRef = input.SourceRef
	task.Link = input.Link

	if _, err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// Keep the directory current; merge-only, so repeated creations are
	// harmless.
	if task.Assignee != "" {
		entry, err := domain.NewAssignee(task.Assignee, task.Handle, "", "")
		if err == nil {
			if upsertErr := s.assignees.Upsert(ctx, entry); upsertErr != nil {
				s.logger.Warn("failed to upsert assignee from task creation",
					"task_id", task.ID,
					"assignee", task.Assignee,
					"error", upsertErr)
			}
		}
	}

	s.logger.Info("task created",
		"task_id", task.ID,
		"status", task.Status,
		"assignee", task.Assignee,
		"source", task.Source)
	return task, nil
}

func (s *taskService) GetTask(ctx context.Context, id int64) (*TaskHistory, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	reassignments, err := s.tasks.ReassignmentsForTask(ctx, id)
	if err != nil {
		return nil, err
	}
	deadlineChanges, err := s.tasks.DeadlineChangesForTask(ctx, id)
	if err != nil {
		return nil, err
	}

	return &TaskHistory{
		Task:            task,
		Reassignments:   reassignments,
		DeadlineChanges: deadlineChanges,
	}, nil
}

func (s *taskService) ListTasks(ctx context.Context, statuses ...domain.TaskStatus) ([]*domain.Task, error) {
	if len(statuses) == 0 {
		statuses = []domain.TaskStatus{
			domain.TaskStatusProposed,
			domain.TaskStatusOpen,
			domain.TaskStatusInProgress,
		}
	}
	return s.tasks.ListByStatus(ctx, statuses...)
}

func (s *taskService) Approve(ctx context.Context, id int64) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var missing []string
	if task.Assignee == "" {
		missing = append(missing, "assignee")
	}
	if task.Handle == "" {
		missing = append(missing, "recipient handle")
	}
	if task.Deadline.IsZero() {
		missing = append(missing, "deadline")
	}
	if len(missing) > 0 {
		return &domain.ValidationError{Op: "approve", Missing: missing}
	}

	if !task.CanTransitionTo(domain.TaskStatusOpen) {
		return &domain.InvalidTransitionError{From: task.Status, To: domain.TaskStatusOpen}
	}

	// The initial notification is sent directly, not deferred: approval
	// requires a confirmed delivery before the task opens.
	text := initialText(task)
	if err := s.dispatch.Sender().Send(ctx, task.Handle, text, taskActions(task.ID)); err != nil {
		if errors.Is(err, notify.ErrUnreachable) {
			s.logger.Warn("approval aborted, recipient unreachable",
				"task_id", task.ID,
				"handle", task.Handle)
		} else {
			s.logger.Error("approval aborted, initial notification failed",
				"task_id", task.ID,
				"error", err)
		}
		return fmt.Errorf("initial notification failed: %w", err)
	}

	if err := task.Transition(domain.TaskStatusOpen); err != nil {
		return err
	}
	task.MarkInitialSent(time.Now().UTC())

	if err := s.tasks.Update(ctx, task); err != nil {
		return fmt.Errorf("failed to open task after delivery: %w", err)
	}

	s.logger.Info("task approved and opened", "task_id", task.ID)
	return nil
}

func (s *taskService) Start(ctx context.Context, id int64) error {
	return s.transition(ctx, id, domain.TaskStatusInProgress)
}

func (s *taskService) Complete(ctx context.Context, id int64, proofAttached bool) error {
	if err := s.transition(ctx, id, domain.TaskStatusDone); err != nil {
		return err
	}
	s.logger.Info("task completed",
		"task_id", id,
		"proof_attached", proofAttached)
	return nil
}

func (s *taskService) Cancel(ctx context.Context, id int64, reason string) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := task.Cancel(reason); err != nil {
		return err
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}
	s.logger.Info("task cancelled", "task_id", id, "reason", reason)
	return nil
}

func (s *taskService) Reassign(ctx context.Context, id int64, newName, newHandle, actor string) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task.IsTerminal() {
		return &domain.InvalidTransitionError{From: task.Status, To: task.Status}
	}

	event := &domain.ReassignmentEvent{
		TaskID:      task.ID,
		OldAssignee: task.Assignee,
		OldHandle:   task.Handle,
		NewAssignee: newName,
		NewHandle:   newHandle,
		Actor:       actor,
		At:          time.Now().UTC(),
	}
	oldHandle := task.Handle
	task.SetAssignee(newName, newHandle)

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.tasks.WithTx(tx)
		if err := txTasks.AppendReassignment(ctx, event); err != nil {
			return err
		}
		return txTasks.Update(ctx, task)
	})
	if err != nil {
		return fmt.Errorf("failed to reassign task: %w", err)
	}

	if newName != "" {
		entry, entryErr := domain.NewAssignee(newName, newHandle, "", "")
		if entryErr == nil {
			if upsertErr := s.assignees.Upsert(ctx, entry); upsertErr != nil {
				s.logger.Warn("failed to upsert assignee from reassignment",
					"task_id", task.ID,
					"error", upsertErr)
			}
		}
	}

	// Notifications follow the business window; a failure here does not
	// undo the reassignment.
	if newHandle != "" {
		if sendErr := s.dispatch.SendOrEnqueue(ctx, newHandle,
			assignmentNotice(task, actor), taskActions(task.ID)); sendErr != nil {
			s.logger.Warn("failed to notify new assignee",
				"task_id", task.ID,
				"error", sendErr)
		}
	}
	if oldHandle != "" && oldHandle != newHandle {
		if sendErr := s.dispatch.SendOrEnqueue(ctx, oldHandle,
			reassignedAwayNotice(task), nil); sendErr != nil {
			s.logger.Warn("failed to notify previous assignee",
				"task_id", task.ID,
				"error", sendErr)
		}
	}

	s.logger.Info("task reassigned",
		"task_id", task.ID,
		"new_assignee", newName,
		"actor", actor)
	return nil
}

func (s *taskService) SetDeadline(ctx context.Context, id int64, deadline domain.Date, postponed bool, actor string) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if postponed {
		// Postponement goes through deadline normalization: the new date
		// must be a real calendar date no earlier than today.
		if _, parseErr := domain.ParseDate(string(deadline)); parseErr != nil {
			return parseErr
		}
		if deadline.Before(domain.Date(s.window.Today(time.Now()))) {
			return domain.ErrPastDate
		}
	}

	event := &domain.DeadlineChangeEvent{
		TaskID:      task.ID,
		OldDeadline: task.Deadline,
		NewDeadline: deadline,
		Actor:       actor,
		Postponed:   postponed,
		At:          time.Now().UTC(),
	}

	if err := task.SetDeadline(deadline, postponed); err != nil {
		return err
	}

	if !postponed {
		if err := s.tasks.Update(ctx, task); err != nil {
			return fmt.Errorf("failed to set deadline: %w", err)
		}
		return nil
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.tasks.WithTx(tx)
		if err := txTasks.AppendDeadlineChange(ctx, event); err != nil {
			return err
		}
		return txTasks.Update(ctx, task)
	})
	if err != nil {
		return fmt.Errorf("failed to postpone deadline: %w", err)
	}

	s.logger.Info("task deadline postponed",
		"task_id", task.ID,
		"old_deadline", event.OldDeadline,
		"new_deadline", event.NewDeadline,
		"actor", actor)
	return nil
}

func (s *taskService) SetPriority(ctx context.Context, id int64, priority domain.TaskPriority) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	task.Priority = priority
	task.UpdatedAt = time.Now().UTC()
	if err := task.Validate(); err != nil {
		return err
	}
	return s.tasks.Update(ctx, task)
}

func (s *taskService) SetText(ctx context.Context, id int64, text string) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	task.Description = text
	task.UpdatedAt = time.Now().UTC()
	if err := task.Validate(); err != nil {
		return err
	}
	return s.tasks.Update(ctx, task)
}

func (s *taskService) WipeOpenLike(ctx context.Context) (int64, error) {
	var wiped int64
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		n, err := s.tasks.WithTx(tx).WipeOpenLike(ctx)
		if err != nil {
			return err
		}
		wiped = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return wiped, nil
}

// transition loads, moves and persists a single status change.
func (s *taskService) transition(ctx context.Context, id int64, next domain.TaskStatus) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := task.Transition(next); err != nil {
		return err
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return nil
}
