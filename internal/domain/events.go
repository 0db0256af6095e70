package domain

import "time"

// ReassignmentEvent is an immutable audit record of a task changing hands.
// It references the task by id and captures the assignee pair as it was
// before the change. Exactly one event is appended per reassignment.
type ReassignmentEvent struct {
	ID          int64     `json:"id"`
	TaskID      int64     `json:"task_id"`
	OldAssignee string    `json:"old_assignee"`
	OldHandle   string    `json:"old_handle"`
	NewAssignee string    `json:"new_assignee"`
	NewHandle   string    `json:"new_handle"`
	Actor       string    `json:"actor"`
	At          time.Time `json:"at"`
}

// DeadlineChangeEvent is an immutable audit record of a deadline moving.
// Only postponements append one; an initial deadline edit does not.
type DeadlineChangeEvent struct {
	ID          int64     `json:"id"`
	TaskID      int64     `json:"task_id"`
	OldDeadline Date      `json:"old_deadline"`
	NewDeadline Date      `json:"new_deadline"`
	Actor       string    `json:"actor"`
	Postponed   bool      `json:"postponed"`
	At          time.Time `json:"at"`
}
