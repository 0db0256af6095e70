package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskherd/taskherd/internal/domain"
	"github.com/taskherd/taskherd/internal/platform/logger"
	"github.com/taskherd/taskherd/internal/store"
)

// taskColumns is the canonical select list for task rows, matching scanTask.
const taskColumns = `id, description, assignee, handle, deadline, priority, status,
	source, source_ref, link, cancel_reason, postponed, postponed_at,
	initial_sent_at, created_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// WithTx returns a TaskStore bound to the given transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx}
}

// Create persists a task to the database and returns its generated id.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) (int64, error) {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (description, assignee, handle, deadline, priority, status,
			source, source_ref, link, cancel_reason, postponed, postponed_at,
			initial_sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		task.Description,
		task.Assignee,
		task.Handle,
		nullDate(task.Deadline),
		task.Priority,
		task.Status,
		task.Source,
		task.SourceRef,
		task.Link,
		task.CancelReason,
		task.Postponed,
		nullTime(task.PostponedAt),
		nullTime(task.InitialSentAt),
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&id)
	if err != nil {
		log.Error("failed to insert task",
			"assignee", task.Assignee,
			"status", task.Status,
			"error", err)
		return 0, MapError(err)
	}

	task.ID = id
	return id, nil
}

// GetByID retrieves a task by id.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return task, nil
}

// Update persists all mutable fields of the task.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET description = $1, assignee = $2, handle = $3, deadline = $4,
			priority = $5, status = $6, cancel_reason = $7, postponed = $8,
			postponed_at = $9, initial_sent_at = $10, link = $11, updated_at = $12
		WHERE id = $13
	`

	result, err := s.db.ExecContext(ctx, query,
		task.Description,
		task.Assignee,
		task.Handle,
		nullDate(task.Deadline),
		task.Priority,
		task.Status,
		task.CancelReason,
		task.Postponed,
		nullTime(task.PostponedAt),
		nullTime(task.InitialSentAt),
		task.Link,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			"task_id", task.ID,
			"error", err)
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// ListByStatus returns all tasks in any of the given statuses, ordered by id.
func (s *PostgresTaskStore) ListByStatus(ctx context.Context, statuses ...domain.TaskStatus) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = ANY($1) ORDER BY id`

	return s.queryTasks(ctx, query, statusStrings(statuses))
}

// ListOpenLikeForHandle returns the open/in_progress tasks for a recipient
// handle, also matching handle-less tasks entered under any of the given
// display names.
func (s *PostgresTaskStore) ListOpenLikeForHandle(ctx context.Context, handle string, names []string) ([]*domain.Task, error) {
	if names == nil {
		names = []string{}
	}

	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status IN ('open', 'in_progress')
		  AND (handle = $1 OR (handle = '' AND assignee = ANY($2)))
		ORDER BY created_at
	`

	return s.queryTasks(ctx, query, handle, names)
}

// ListOverdue returns the open/in_progress tasks whose deadline is strictly
// before today.
func (s *PostgresTaskStore) ListOverdue(ctx context.Context, today domain.Date) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status IN ('open', 'in_progress')
		  AND deadline IS NOT NULL
		  AND deadline < $1
		ORDER BY deadline, assignee, id
	`

	return s.queryTasks(ctx, query, string(today))
}

// ListProposed returns the most recently created proposed tasks, capped at limit.
func (s *PostgresTaskStore) ListProposed(ctx context.Context, limit int) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = 'proposed'
		ORDER BY created_at DESC
		LIMIT $1
	`

	return s.queryTasks(ctx, query, limit)
}

// ListInitialSentBetween returns the open/in_progress tasks whose initial
// notification went out within [from, to].
func (s *PostgresTaskStore) ListInitialSentBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE initial_sent_at BETWEEN $1 AND $2
		  AND status IN ('open', 'in_progress')
		ORDER BY assignee, created_at
	`

	return s.queryTasks(ctx, query, from.UTC(), to.UTC())
}

// CountOpenLike returns the number of open/in_progress tasks.
func (s *PostgresTaskStore) CountOpenLike(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE status IN ('open', 'in_progress')`,
	).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// CountClosedBetween returns the number of tasks completed within [from, to].
func (s *PostgresTaskStore) CountClosedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE status = 'done' AND updated_at BETWEEN $1 AND $2`,
		from.UTC(), to.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// AppendReassignment appends one immutable reassignment audit event.
func (s *PostgresTaskStore) AppendReassignment(ctx context.Context, event *domain.ReassignmentEvent) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO task_reassignments
			(task_id, old_assignee, old_handle, new_assignee, new_handle, actor, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.TaskID,
		event.OldAssignee,
		event.OldHandle,
		event.NewAssignee,
		event.NewHandle,
		event.Actor,
		event.At.UTC(),
	)
	if err != nil {
		log.Error("failed to append reassignment event",
			"task_id", event.TaskID,
			"error", err)
		return MapError(err)
	}
	return nil
}

// AppendDeadlineChange appends one immutable deadline-change audit event.
func (s *PostgresTaskStore) AppendDeadlineChange(ctx context.Context, event *domain.DeadlineChangeEvent) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO deadline_changes
			(task_id, old_deadline, new_deadline, actor, postponed, at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.TaskID,
		nullDate(event.OldDeadline),
		nullDate(event.NewDeadline),
		event.Actor,
		event.Postponed,
		event.At.UTC(),
	)
	if err != nil {
		log.Error("failed to append deadline change event",
			"task_id", event.TaskID,
			"error", err)
		return MapError(err)
	}
	return nil
}

// ReassignmentsForTask returns a task's reassignment history in order.
func (s *PostgresTaskStore) ReassignmentsForTask(ctx context.Context, taskID int64) ([]*domain.ReassignmentEvent, error) {
	query := `
		SELECT id, task_id, old_assignee, old_handle, new_assignee, new_handle, actor, at
		FROM task_reassignments
		WHERE task_id = $1
		ORDER BY at, id
	`
	return s.queryReassignments(ctx, query, taskID)
}

// ReassignmentsBetween returns all reassignment events within [from, to].
func (s *PostgresTaskStore) ReassignmentsBetween(ctx context.Context, from, to time.Time) ([]*domain.ReassignmentEvent, error) {
	query := `
		SELECT id, task_id, old_assignee, old_handle, new_assignee, new_handle, actor, at
		FROM task_reassignments
		WHERE at BETWEEN $1 AND $2
		ORDER BY at, id
	`
	return s.queryReassignments(ctx, query, from.UTC(), to.UTC())
}

// DeadlineChangesForTask returns a task's deadline-change history in order.
func (s *PostgresTaskStore) DeadlineChangesForTask(ctx context.Context, taskID int64) ([]*domain.DeadlineChangeEvent, error) {
	query := `
		SELECT id, task_id, old_deadline, new_deadline, actor, postponed, at
		FROM deadline_changes
		WHERE task_id = $1
		ORDER BY at, id
	`
	return s.queryDeadlineChanges(ctx, query, taskID)
}

// DeadlineChangesBetween returns all deadline-change events within [from, to].
func (s *PostgresTaskStore) DeadlineChangesBetween(ctx context.Context, from, to time.Time) ([]*domain.DeadlineChangeEvent, error) {
	query := `
		SELECT id, task_id, old_deadline, new_deadline, actor, postponed, at
		FROM deadline_changes
		WHERE at BETWEEN $1 AND $2
		ORDER BY at, id
	`
	return s.queryDeadlineChanges(ctx, query, from.UTC(), to.UTC())
}

// WipeOpenLike deletes all proposed/open/in_progress tasks with their audit
// trail and returns the number of tasks removed. Callers should run it via
// store.RunInTransaction so the audit and task deletions land together.
func (s *PostgresTaskStore) WipeOpenLike(ctx context.Context) (int64, error) {
	log := logger.FromContext(ctx)

	const openLike = `('proposed', 'open', 'in_progress')`

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM deadline_changes WHERE task_id IN (SELECT id FROM tasks WHERE status IN `+openLike+`)`)
	if err != nil {
		return 0, MapError(err)
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM task_reassignments WHERE task_id IN (SELECT id FROM tasks WHERE status IN `+openLike+`)`)
	if err != nil {
		return 0, MapError(err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE status IN `+openLike)
	if err != nil {
		return 0, MapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	log.Info("wiped open-like tasks", "count", n)
	return n, nil
}

// queryTasks runs a task select and scans all rows.
func (s *PostgresTaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", "error", err)
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return tasks, nil
}

func (s *PostgresTaskStore) queryReassignments(ctx context.Context, query string, args ...any) ([]*domain.ReassignmentEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var events []*domain.ReassignmentEvent
	for rows.Next() {
		var e domain.ReassignmentEvent
		if err := rows.Scan(&e.ID, &e.TaskID, &e.OldAssignee, &e.OldHandle,
			&e.NewAssignee, &e.NewHandle, &e.Actor, &e.At); err != nil {
			return nil, MapError(err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return events, nil
}

func (s *PostgresTaskStore) queryDeadlineChanges(ctx context.Context, query string, args ...any) ([]*domain.DeadlineChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var events []*domain.DeadlineChangeEvent
	for rows.Next() {
		var e domain.DeadlineChangeEvent
		var oldDeadline, newDeadline sql.NullTime
		if err := rows.Scan(&e.ID, &e.TaskID, &oldDeadline, &newDeadline,
			&e.Actor, &e.Postponed, &e.At); err != nil {
			return nil, MapError(err)
		}
		e.OldDeadline = dateOfNull(oldDeadline)
		e.NewDeadline = dateOfNull(newDeadline)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return events, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask scans one task row in taskColumns order.
func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var deadline, postponedAt, initialSentAt sql.NullTime

	err := row.Scan(
		&t.ID,
		&t.Description,
		&t.Assignee,
		&t.Handle,
		&deadline,
		&t.Priority,
		&t.Status,
		&t.Source,
		&t.SourceRef,
		&t.Link,
		&t.CancelReason,
		&t.Postponed,
		&postponedAt,
		&initialSentAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Deadline = dateOfNull(deadline)
	if postponedAt.Valid {
		t.PostponedAt = postponedAt.Time.UTC()
	}
	if initialSentAt.Valid {
		t.InitialSentAt = initialSentAt.Time.UTC()
	}

	return &t, nil
}

// nullDate converts a domain date to a nullable DATE parameter.
func nullDate(d domain.Date) any {
	if d.IsZero() {
		return nil
	}
	return string(d)
}

// nullTime converts a zero time to NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// dateOfNull converts a scanned nullable DATE back to a domain date.
func dateOfNull(t sql.NullTime) domain.Date {
	if !t.Valid {
		return ""
	}
	return domain.Date(t.Time.Format(domain.DateLayout))
}

// statusStrings converts statuses to a []string for ANY($1) parameters.
func statusStrings(statuses []domain.TaskStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
