package api

// Common request/response structures

// CreateTaskRequest defines the payload for the task creation endpoint.
// Status may start the task directly in open or in_progress for trusted
// manual entry; when omitted the task starts proposed.
type CreateTaskRequest struct {
	Description string `json:"description" validate:"required"`
	Assignee    string `json:"assignee"`
	Handle      string `json:"handle"`
	Deadline    string `json:"deadline"    validate:"omitempty,datetime=2006-01-02"`
	Priority    string `json:"priority"    validate:"omitempty,oneof=normal high"`
	Status      string `json:"status"      validate:"omitempty,oneof=proposed open in_progress"`
	Source      string `json:"source"`
	SourceRef   string `json:"source_ref"`
	Link        string `json:"link"        validate:"omitempty,url"`
}

// UpsertAssigneeRequest defines the payload for the directory upsert endpoint.
type UpsertAssigneeRequest struct {
	Name     string `json:"name" validate:"required"`
	Handle   string `json:"handle"`
	Nickname string `json:"nickname"`
	Position string `json:"position"`
}

// CompleteTaskRequest defines the optional payload for task completion.
type CompleteTaskRequest struct {
	ProofAttached bool `json:"proof_attached"`
}

// CancelTaskRequest defines the payload for task cancellation.
type CancelTaskRequest struct {
	Reason string `json:"reason"`
}

// ReassignTaskRequest defines the payload for handing a task to someone else.
type ReassignTaskRequest struct {
	Assignee string `json:"assignee" validate:"required"`
	Handle   string `json:"handle"`
	Actor    string `json:"actor"`
}

// SetDeadlineRequest defines the payload for deadline edits. Postponed marks
// the change as a postponement, which is audited and refused for high
// priority tasks.
type SetDeadlineRequest struct {
	Deadline  string `json:"deadline" validate:"required,datetime=2006-01-02"`
	Postponed bool   `json:"postponed"`
	Actor     string `json:"actor"`
}

// SetPriorityRequest defines the payload for priority changes.
type SetPriorityRequest struct {
	Priority string `json:"priority" validate:"required,oneof=normal high"`
}

// SetTextRequest defines the payload for description edits.
type SetTextRequest struct {
	Description string `json:"description" validate:"required"`
}

// WipeResponse reports how many open-like tasks a wipe removed.
type WipeResponse struct {
	Removed int64 `json:"removed"`
}

// ReportResponse acknowledges a triggered admin report.
type ReportResponse struct {
	Recipients int `json:"recipients"`
}
