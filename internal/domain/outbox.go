package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Outbox-specific validation errors
var (
	// ErrOutboxRecipientEmpty is returned when an outbox entry has no recipient.
	ErrOutboxRecipientEmpty = errors.New("outbox recipient cannot be empty")

	// ErrOutboxTextEmpty is returned when an outbox entry has no message text.
	ErrOutboxTextEmpty = errors.New("outbox text cannot be empty")
)

// OutboxEntry is a notification deferred until the next business window.
// Payload carries an optional structured action block (e.g. inline reply
// actions) opaque to the queue. SentAt is nil while the entry is pending;
// delivery is at-least-once: the scheduler marks an entry sent immediately
// after a confirmed send, so a crash between the two can duplicate one
// message.
type OutboxEntry struct {
	ID        int64           `json:"id"`
	Recipient string          `json:"recipient"`
	Text      string          `json:"text"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	NotBefore time.Time       `json:"not_before"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// NewOutboxEntry creates a pending outbox entry for the given recipient,
// deliverable no earlier than notBefore (UTC).
// Returns an error if validation fails.
func NewOutboxEntry(recipient, text string, payload json.RawMessage, notBefore time.Time) (*OutboxEntry, error) {
	entry := &OutboxEntry{
		Recipient: recipient,
		Text:      text,
		Payload:   payload,
		NotBefore: notBefore.UTC(),
		CreatedAt: time.Now().UTC(),
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}

// Validate checks if the OutboxEntry has valid data.
func (e *OutboxEntry) Validate() error {
	if e.Recipient == "" {
		return ErrOutboxRecipientEmpty
	}
	if e.Text == "" {
		return ErrOutboxTextEmpty
	}
	return nil
}

// Pending reports whether the entry has not been delivered yet.
func (e *OutboxEntry) Pending() bool {
	return e.SentAt == nil
}
