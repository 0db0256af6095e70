package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskherd/taskherd/internal/domain"
)

// OutboxStore defines the interface for the deferred-notification queue.
// Version: 1.0
type OutboxStore interface {
	// Enqueue inserts a pending entry. No deduplication is performed.
	Enqueue(ctx context.Context, entry *domain.OutboxEntry) (int64, error)

	// PopDue returns pending entries (sent_at is null) whose not_before is
	// at or before nowUTC, in insertion order, capped at limit. Entries are
	// not locked or mutated; the caller marks them sent after delivery.
	PopDue(ctx context.Context, nowUTC time.Time, limit int) ([]*domain.OutboxEntry, error)

	// MarkSent stamps an entry as delivered. Idempotent: an already-sent
	// entry keeps its original sent_at. Once marked, the entry is never
	// returned by PopDue again.
	MarkSent(ctx context.Context, id int64) error

	// CountPending returns the number of undelivered entries.
	CountPending(ctx context.Context) (int, error)

	// WithTx returns an OutboxStore bound to the given transaction.
	WithTx(tx *sql.Tx) OutboxStore
}
