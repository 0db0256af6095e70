package domain

import (
	"errors"
	"strings"
	"time"
)

// Assignee-specific validation errors
var (
	// ErrAssigneeNameEmpty is returned when an assignee's display name is empty.
	ErrAssigneeNameEmpty = errors.New("assignee name cannot be empty")
)

// Assignee maps a person's display name to the opaque recipient handle the
// transport delivers to, plus an optional nickname and position. Entries are
// upsert-only: a known nickname or position is never overwritten with an
// empty value, and nothing is ever deleted.
type Assignee struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Handle    string    `json:"handle"`
	Nickname  string    `json:"nickname,omitempty"`
	Position  string    `json:"position,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAssignee creates a new Assignee with trimmed fields.
// Returns an error if the display name is empty.
func NewAssignee(name, handle, nickname, position string) (*Assignee, error) {
	now := time.Now().UTC()
	a := &Assignee{
		Name:      strings.TrimSpace(name),
		Handle:    strings.TrimSpace(handle),
		Nickname:  strings.TrimSpace(nickname),
		Position:  strings.TrimSpace(position),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

// Validate checks if the Assignee has valid data.
func (a *Assignee) Validate() error {
	if a.Name == "" {
		return ErrAssigneeNameEmpty
	}
	return nil
}
