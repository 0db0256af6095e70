package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskherd/taskherd/internal/domain"
	"github.com/taskherd/taskherd/internal/notify"
	"github.com/taskherd/taskherd/internal/schedule"
	"github.com/taskherd/taskherd/internal/store"
)

type sentMessage struct {
	Recipient string
	Text      string
	Payload   json.RawMessage
}

type fakeTransport struct {
	sent   []sentMessage
	script []error
}

func (f *fakeTransport) SendMessage(ctx context.Context, recipient, text string, payload json.RawMessage) error {
	if len(f.script) > 0 {
		err := f.script[0]
		f.script = f.script[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, sentMessage{Recipient: recipient, Text: text, Payload: payload})
	return nil
}

func (f *fakeTransport) SendDocument(ctx context.Context, recipient, filename string, content []byte, caption string) error {
	return nil
}

// memTaskStore keeps tasks and audit events in memory and counts updates.
type memTaskStore struct {
	tasks           map[int64]*domain.Task
	updates         int
	reassignments   []*domain.ReassignmentEvent
	deadlineChanges []*domain.DeadlineChangeEvent
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[int64]*domain.Task)}
}

func (m *memTaskStore) Create(ctx context.Context, task *domain.Task) (int64, error) {
	task.ID = int64(len(m.tasks) + 1)
	m.tasks[task.ID] = task
	return task.ID, nil
}

func (m *memTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return task, nil
}

func (m *memTaskStore) Update(ctx context.Context, task *domain.Task) error {
	if _, ok := m.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	m.tasks[task.ID] = task
	m.updates++
	return nil
}

func (m *memTaskStore) ListByStatus(ctx context.Context, statuses ...domain.TaskStatus) ([]*domain.Task, error) {
	return nil, nil
}
func (m *memTaskStore) ListOpenLikeForHandle(ctx context.Context, handle string, names []string) ([]*domain.Task, error) {
	return nil, nil
}
func (m *memTaskStore) ListOverdue(ctx context.Context, today domain.Date) ([]*domain.Task, error) {
	return nil, nil
}
func (m *memTaskStore) ListProposed(ctx context.Context, limit int) ([]*domain.Task, error) {
	return nil, nil
}
func (m *memTaskStore) ListInitialSentBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	return nil, nil
}
func (m *memTaskStore) CountOpenLike(ctx context.Context) (int, error) { return 0, nil }
func (m *memTaskStore) CountClosedBetween(ctx context.Context, from, to time.Time) (int, error) {
	return 0, nil
}

func (m *memTaskStore) AppendReassignment(ctx context.Context, event *domain.ReassignmentEvent) error {
	event.ID = int64(len(m.reassignments) + 1)
	m.reassignments = append(m.reassignments, event)
	return nil
}

func (m *memTaskStore) AppendDeadlineChange(ctx context.Context, event *domain.DeadlineChangeEvent) error {
	event.ID = int64(len(m.deadlineChanges) + 1)
	m.deadlineChanges = append(m.deadlineChanges, event)
	return nil
}

func (m *memTaskStore) ReassignmentsForTask(ctx context.Context, taskID int64) ([]*domain.ReassignmentEvent, error) {
	return m.reassignments, nil
}
func (m *memTaskStore) DeadlineChangesForTask(ctx context.Context, taskID int64) ([]*domain.DeadlineChangeEvent, error) {
	return m.deadlineChanges, nil
}
func (m *memTaskStore) ReassignmentsBetween(ctx context.Context, from, to time.Time) ([]*domain.ReassignmentEvent, error) {
	return nil, nil
}
func (m *memTaskStore) DeadlineChangesBetween(ctx context.Context, from, to time.Time) ([]*domain.DeadlineChangeEvent, error) {
	return nil, nil
}
func (m *memTaskStore) WipeOpenLike(ctx context.Context) (int64, error) {
	var wiped int64
	for id, task := range m.tasks {
		if task.Status == domain.TaskStatusProposed || task.IsOpenLike() {
			delete(m.tasks, id)
			wiped++
		}
	}
	return wiped, nil
}
func (m *memTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return m }

// memAssigneeStore records directory upserts.
type memAssigneeStore struct {
	upserts []*domain.Assignee
}

func (m *memAssigneeStore) Upsert(ctx context.Context, assignee *domain.Assignee) error {
	m.upserts = append(m.upserts, assignee)
	return nil
}
func (m *memAssigneeStore) GetByHandle(ctx context.Context, handle string) (*domain.Assignee, error) {
	return nil, store.ErrAssigneeNotFound
}
func (m *memAssigneeStore) ExistsByHandle(ctx context.Context, handle string) (bool, error) {
	return false, nil
}
func (m *memAssigneeStore) NamesForHandle(ctx context.Context, handle string) ([]string, error) {
	return nil, nil
}
func (m *memAssigneeStore) ListAll(ctx context.Context) ([]*domain.Assignee, error) {
	return nil, nil
}
func (m *memAssigneeStore) WithTx(tx *sql.Tx) store.AssigneeStore { return m }

// memOutbox records deferred notifications.
type memOutbox struct {
	entries []*domain.OutboxEntry
}

func (m *memOutbox) Enqueue(ctx context.Context, entry *domain.OutboxEntry) (int64, error) {
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return entry.ID, nil
}
func (m *memOutbox) PopDue(ctx context.Context, nowUTC time.Time, limit int) ([]*domain.OutboxEntry, error) {
	return nil, nil
}
func (m *memOutbox) MarkSent(ctx context.Context, id int64) error    { return nil }
func (m *memOutbox) CountPending(ctx context.Context) (int, error)   { return len(m.entries), nil }
func (m *memOutbox) WithTx(tx *sql.Tx) store.OutboxStore             { return m }

type serviceFixture struct {
	service   TaskService
	tasks     *memTaskStore
	assignees *memAssigneeStore
	outbox    *memOutbox
	transport *fakeTransport
	mock      sqlmock.Sqlmock
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tasks := newMemTaskStore()
	assignees := &memAssigneeStore{}
	outbox := &memOutbox{}
	transport := &fakeTransport{}
	sender := notify.NewSender(transport, notify.SenderConfig{MaxAttempts: 1}, nil)
	window := schedule.NewWindow(time.UTC, 0, 0, -1)
	dispatch := notify.NewDispatcher(sender, outbox, window, nil)

	svc := NewTaskService(db, tasks, assignees, dispatch, window, nil)
	return &serviceFixture{
		service:   svc,
		tasks:     tasks,
		assignees: assignees,
		outbox:    outbox,
		transport: transport,
		mock:      mock,
	}
}

// notifications counts messages regardless of whether the business window
// routed them directly or through the outbox.
func (f *serviceFixture) notifications() int {
	return len(f.transport.sent) + len(f.outbox.entries)
}

func proposedTask(f *serviceFixture, deadline domain.Date) *domain.Task {
	task := &domain.Task{
		ID:          1,
		Description: "prepare the launch checklist",
		Assignee:    "Ann Lee",
		Handle:      "chat-1",
		Deadline:    deadline,
		Priority:    domain.PriorityNormal,
		Status:      domain.TaskStatusProposed,
	}
	f.tasks.tasks[1] = task
	return task
}

func TestApproveRequiresAssigneeHandleAndDeadline(t *testing.T) {
	f := newServiceFixture(t)
	task := proposedTask(f, "")
	task.Handle = ""

	err := f.service.Approve(context.Background(), 1)

	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "approve", validation.Op)
	assert.ElementsMatch(t, []string{"recipient handle", "deadline"}, validation.Missing)

	// The task is untouched and nothing was sent
	assert.Equal(t, domain.TaskStatusProposed, task.Status)
	assert.Zero(t, f.tasks.updates)
	assert.Zero(t, f.notifications())
}

func TestApproveAbortsWhenRecipientUnreachable(t *testing.T) {
	f := newServiceFixture(t)
	task := proposedTask(f, "2026-09-15")
	f.transport.script = []error{notify.ErrUnreachable}

	err := f.service.Approve(context.Background(), 1)
	require.ErrorIs(t, err, notify.ErrUnreachable)

	assert.Equal(t, domain.TaskStatusProposed, task.Status)
	assert.True(t, task.InitialSentAt.IsZero())
	assert.Zero(t, f.tasks.updates)
}

func TestApproveSendsThenOpens(t *testing.T) {
	f := newServiceFixture(t)
	task := proposedTask(f, "2026-09-15")

	err := f.service.Approve(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusOpen, task.Status)
	assert.False(t, task.InitialSentAt.IsZero())
	assert.Equal(t, 1, f.tasks.updates)

	require.Len(t, f.transport.sent, 1)
	msg := f.transport.sent[0]
	assert.Equal(t, "chat-1", msg.Recipient)
	assert.Contains(t, msg.Text, "prepare the launch checklist")
	assert.Contains(t, msg.Text, "2026-09-15")
	assert.NotNil(t, msg.Payload, "initial notification carries task actions")
}

func TestApproveRefusedOutsideProposed(t *testing.T) {
	f := newServiceFixture(t)
	task := proposedTask(f, "2026-09-15")
	task.Status = domain.TaskStatusOpen

	err := f.service.Approve(context.Background(), 1)

	var transition *domain.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Zero(t, f.notifications())
}

func TestStartAndComplete(t *testing.T) {
	f := newServiceFixture(t)
	task := proposedTask(f, "2026-09-15")
	task.Status = domain.TaskStatusOpen

	require.NoError(t, f.service.Start(context.Background(), 1))
	assert.Equal(t, domain.TaskStatusInProgress, task.Status)

	require.NoError(t, f.service.Complete(context.Background(), 1, true))
	assert.Equal(t, domain.TaskStatusDone, task.Status)
}

func TestCancelRecordsReason(t *testing.T) {
	f := newServiceFixture(t)
	task := proposedTask(f, "")

	require.NoError(t, f.service.Cancel(context.Background(), 1, "duplicate"))
	assert.Equal(t, domain.TaskStatusCancelled, task.Status)
	assert.Equal(t, "duplicate", task.CancelReason)
}

func TestReassignAppendsOneEventAndUpdatesPair(t *testing.T) {
	f := newServiceFixture(t)
	task := proposedTask(f, "2026-09-15")
	task.Status = domain.TaskStatusOpen

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	err := f.service.Reassign(context.Background(), 1, "Bob Stone", "chat-2", "coordinator")
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	// Exactly one immutable audit event with the old and new pair
	require.Len(t, f.tasks.reassignments, 1)
	event := f.tasks.reassignments[0]
	assert.Equal(t, "Ann Lee", event.OldAssignee)
	assert.Equal(t, "chat-1", event.OldHandle)
	assert.Equal(t, "Bob Stone", event.NewAssignee)
	assert.Equal(t, "chat-2", event.NewHandle)
	assert.Equal(t, "coordinator", event.Actor)

	assert.Equal(t, "Bob Stone", task.Assignee)
	assert.Equal(t, "chat-2", task.Handle)

	// Directory learns the new pair
	require.Len(t, f.assignees.upserts, 1)
	assert.Equal(t, "Bob Stone", f.assignees.upserts[0].Name)

	// Both sides are notified, directly or via the outbox
	assert.Equal(t, 2, f.notifications())
}

func TestReassignTerminalTaskRefused(t *testing.T) {
	f := newServiceFixture(t)
	task := proposedTask(f, "")
	task.Status = domain.TaskStatusDone

	err := f.service.Reassign(context.Background(), 1, "Bob", "chat-2", "")
	var transition *domain.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Empty(t, f.tasks.reassignments)
}

func TestPostponeHighPriorityRefused(t *testing.T) {
	f := newServiceFixture(t)
	task := proposedTask(f, "2026-09-15")
	task.Status = domain.TaskStatusOpen
	task.Priority = domain.PriorityHigh

	err := f.service.SetDeadline(context.Background(), 1, "2030-01-01", true, "ann")
	require.ErrorIs(t, err, domain.ErrPriorityLocked)

	// No audit event, no state change
	assert.Empty(t, f.tasks.deadlineChanges)
	assert.Equal(t, domain.Date("2026-09-15"), task.Deadline)
	assert.False(t, task.Postponed)
}

func TestPostponeRejectsPastDates(t *testing.T) {
	f := newServiceFixture(t)
	proposedTask(f, "2026-09-15")

	err := f.service.SetDeadline(context.Background(), 1, "2020-01-01", true, "ann")
	require.ErrorIs(t, err, domain.ErrPastDate)
	assert.Empty(t, f.tasks.deadlineChanges)
}

func TestPostponeAppendsAuditEvent(t *testing.T) {
	f := newServiceFixture(t)
	task := proposedTask(f, "2026-09-15")
	task.Status = domain.TaskStatusOpen

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	err := f.service.SetDeadline(context.Background(), 1, "2030-01-01", true, "ann")
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	require.Len(t, f.tasks.deadlineChanges, 1)
	event := f.tasks.deadlineChanges[0]
	assert.Equal(t, domain.Date("2026-09-15"), event.OldDeadline)
	assert.Equal(t, domain.Date("2030-01-01"), event.NewDeadline)
	assert.True(t, event.Postponed)

	assert.True(t, task.Postponed)
	assert.False(t, task.PostponedAt.IsZero())
	assert.Equal(t, domain.Date("2030-01-01"), task.Deadline)
}

func TestPlainDeadlineEditSkipsAudit(t *testing.T) {
	f := newServiceFixture(t)
	task := proposedTask(f, "2026-09-15")

	err := f.service.SetDeadline(context.Background(), 1, "2026-10-01", false, "")
	require.NoError(t, err)

	assert.Empty(t, f.tasks.deadlineChanges)
	assert.Equal(t, domain.Date("2026-10-01"), task.Deadline)
	assert.False(t, task.Postponed)
}

func TestCreateTaskDefaultsAndDirectory(t *testing.T) {
	f := newServiceFixture(t)

	task, err := f.service.CreateTask(context.Background(), CreateTaskInput{
		Description: "triage inbox",
		Assignee:    "Ann Lee",
		Handle:      "chat-1",
		Source:      "manual",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusProposed, task.Status)
	assert.Equal(t, domain.PriorityNormal, task.Priority)
	require.Len(t, f.assignees.upserts, 1)
	assert.Equal(t, "Ann Lee", f.assignees.upserts[0].Name)
}

func TestWipeOpenLike(t *testing.T) {
	f := newServiceFixture(t)
	proposedTask(f, "")
	done := &domain.Task{ID: 2, Description: "kept", Status: domain.TaskStatusDone,
		Priority: domain.PriorityNormal}
	f.tasks.tasks[2] = done

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	wiped, err := f.service.WipeOpenLike(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), wiped)
	require.NoError(t, f.mock.ExpectationsWereMet())

	_, err = f.tasks.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	_, err = f.tasks.GetByID(context.Background(), 2)
	assert.NoError(t, err)
}
