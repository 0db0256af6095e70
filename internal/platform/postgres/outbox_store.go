package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskherd/taskherd/internal/domain"
	"github.com/taskherd/taskherd/internal/platform/logger"
	"github.com/taskherd/taskherd/internal/store"
)

// PostgresOutboxStore implements the store.OutboxStore interface using
// PostgreSQL.
type PostgresOutboxStore struct {
	db store.DBTX
}

// NewPostgresOutboxStore creates a new PostgresOutboxStore.
func NewPostgresOutboxStore(db store.DBTX) *PostgresOutboxStore {
	return &PostgresOutboxStore{
		db: db,
	}
}

// WithTx returns an OutboxStore bound to the given transaction.
func (s *PostgresOutboxStore) WithTx(tx *sql.Tx) store.OutboxStore {
	return &PostgresOutboxStore{db: tx}
}

// Enqueue inserts a pending entry and returns its generated id.
func (s *PostgresOutboxStore) Enqueue(ctx context.Context, entry *domain.OutboxEntry) (int64, error) {
	log := logger.FromContext(ctx)

	if err := entry.Validate(); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO outbox (recipient, text, payload, not_before, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var payload any
	if len(entry.Payload) > 0 {
		payload = []byte(entry.Payload)
	}

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		entry.Recipient,
		entry.Text,
		payload,
		entry.NotBefore.UTC(),
		entry.CreatedAt,
	).Scan(&id)
	if err != nil {
		log.Error("failed to enqueue outbox entry",
			"recipient", entry.Recipient,
			"error", err)
		return 0, MapError(err)
	}

	entry.ID = id
	log.Debug("outbox entry enqueued",
		"outbox_id", id,
		"recipient", entry.Recipient,
		"not_before", entry.NotBefore)
	return id, nil
}

// PopDue returns pending entries deliverable at or before nowUTC, in
// insertion order, capped at limit.
func (s *PostgresOutboxStore) PopDue(ctx context.Context, nowUTC time.Time, limit int) ([]*domain.OutboxEntry, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, recipient, text, payload, not_before, created_at, sent_at
		FROM outbox
		WHERE sent_at IS NULL AND not_before <= $1
		ORDER BY id
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, nowUTC.UTC(), limit)
	if err != nil {
		log.Error("failed to query due outbox entries", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.OutboxEntry
	for rows.Next() {
		var e domain.OutboxEntry
		var payload []byte
		var sentAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.Recipient, &e.Text, &payload,
			&e.NotBefore, &e.CreatedAt, &sentAt); err != nil {
			return nil, MapError(err)
		}
		if len(payload) > 0 {
			e.Payload = payload
		}
		if sentAt.Valid {
			t := sentAt.Time.UTC()
			e.SentAt = &t
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return entries, nil
}

// MarkSent stamps an entry as delivered. Idempotent: a second call leaves
// the original sent_at in place.
func (s *PostgresOutboxStore) MarkSent(ctx context.Context, id int64) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET sent_at = $1 WHERE id = $2 AND sent_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to mark outbox entry sent",
			"outbox_id", id,
			"error", err)
		return MapError(err)
	}

	// Zero rows affected means either an unknown id or an entry already
	// marked; both are fine for an idempotent flag set, but an unknown id
	// is worth distinguishing.
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rowsAffected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM outbox WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return MapError(err)
		}
		if !exists {
			return store.ErrOutboxEntryNotFound
		}
	}

	return nil
}

// CountPending returns the number of undelivered entries.
func (s *PostgresOutboxStore) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE sent_at IS NULL`,
	).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}
