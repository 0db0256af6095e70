package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskherd/taskherd/internal/domain"
	"github.com/taskherd/taskherd/internal/platform/logger"
	"github.com/taskherd/taskherd/internal/store"
)

// PostgresAssigneeStore implements the store.AssigneeStore interface using
// PostgreSQL.
type PostgresAssigneeStore struct {
	db store.DBTX
}

// NewPostgresAssigneeStore creates a new PostgresAssigneeStore.
func NewPostgresAssigneeStore(db store.DBTX) *PostgresAssigneeStore {
	return &PostgresAssigneeStore{
		db: db,
	}
}

// WithTx returns an AssigneeStore bound to the given transaction.
func (s *PostgresAssigneeStore) WithTx(tx *sql.Tx) store.AssigneeStore {
	return &PostgresAssigneeStore{db: tx}
}

// Upsert inserts or merges a directory entry. With a handle present the
// entry is keyed by the handle's partial unique index: the name is replaced
// and nickname/position are only overwritten by non-empty values. Without a
// handle the entry is keyed by name. An empty name is a no-op.
func (s *PostgresAssigneeStore) Upsert(ctx context.Context, assignee *domain.Assignee) error {
	log := logger.FromContext(ctx)

	if assignee.Name == "" {
		return nil
	}

	now := time.Now().UTC()

	if assignee.Handle != "" {
		query := `
			INSERT INTO assignees (name, handle, nickname, position, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (handle) WHERE handle <> '' DO UPDATE SET
				name = excluded.name,
				nickname = CASE WHEN excluded.nickname <> '' THEN excluded.nickname
					ELSE assignees.nickname END,
				position = CASE WHEN excluded.position <> '' THEN excluded.position
					ELSE assignees.position END,
				updated_at = excluded.updated_at
		`
		_, err := s.db.ExecContext(ctx, query,
			assignee.Name, assignee.Handle, assignee.Nickname, assignee.Position, now)
		if err != nil {
			log.Error("failed to upsert assignee by handle",
				"handle", assignee.Handle,
				"error", err)
			return MapError(err)
		}
		return nil
	}

	// No handle: merge into the entry with this name, creating a
	// handle-less placeholder only when the name is unknown.
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM assignees WHERE name = $1 LIMIT 1`, assignee.Name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO assignees (name, handle, nickname, position, created_at, updated_at)
			 VALUES ($1, '', $2, $3, $4, $4)`,
			assignee.Name, assignee.Nickname, assignee.Position, now)
		if err != nil {
			log.Error("failed to insert placeholder assignee",
				"name", assignee.Name,
				"error", err)
			return MapError(err)
		}
		return nil
	}
	if err != nil {
		return MapError(err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE assignees
		 SET nickname = CASE WHEN $1 <> '' THEN $1 ELSE nickname END,
			 position = CASE WHEN $2 <> '' THEN $2 ELSE position END,
			 updated_at = $3
		 WHERE id = $4`,
		assignee.Nickname, assignee.Position, now, id)
	if err != nil {
		log.Error("failed to merge assignee by name",
			"name", assignee.Name,
			"error", err)
		return MapError(err)
	}
	return nil
}

// GetByHandle retrieves a directory entry by recipient handle.
func (s *PostgresAssigneeStore) GetByHandle(ctx context.Context, handle string) (*domain.Assignee, error) {
	query := `
		SELECT id, name, handle, nickname, position, created_at, updated_at
		FROM assignees
		WHERE handle = $1
		LIMIT 1
	`

	var a domain.Assignee
	err := s.db.QueryRowContext(ctx, query, handle).Scan(
		&a.ID, &a.Name, &a.Handle, &a.Nickname, &a.Position, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrAssigneeNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return &a, nil
}

// ExistsByHandle reports whether any entry has the given handle.
func (s *PostgresAssigneeStore) ExistsByHandle(ctx context.Context, handle string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM assignees WHERE handle = $1)`, handle,
	).Scan(&exists)
	if err != nil {
		return false, MapError(err)
	}
	return exists, nil
}

// NamesForHandle returns the distinct display names registered for a handle.
func (s *PostgresAssigneeStore) NamesForHandle(ctx context.Context, handle string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT name FROM assignees WHERE handle = $1 AND name <> ''`, handle)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, MapError(err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return names, nil
}

// ListAll returns all directory entries ordered by name.
func (s *PostgresAssigneeStore) ListAll(ctx context.Context) ([]*domain.Assignee, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, handle, nickname, position, created_at, updated_at
		 FROM assignees ORDER BY name`)
	if err != nil {
		log.Error("failed to list assignees", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var assignees []*domain.Assignee
	for rows.Next() {
		var a domain.Assignee
		if err := rows.Scan(&a.ID, &a.Name, &a.Handle, &a.Nickname,
			&a.Position, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, MapError(err)
		}
		assignees = append(assignees, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return assignees, nil
}
