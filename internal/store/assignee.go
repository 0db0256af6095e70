package store

import (
	"context"
	"database/sql"

	"github.com/taskherd/taskherd/internal/domain"
)

// AssigneeStore defines the interface for the assignee directory.
// The directory is upsert-only; there is no delete operation.
// Version: 1.0
type AssigneeStore interface {
	// Upsert inserts or merges a directory entry. When the handle is
	// present the entry is keyed by handle: the name is replaced, while
	// nickname and position keep their stored values unless the new value
	// is non-empty. Without a handle the entry is keyed by name and a
	// handle-less placeholder is created only if none exists.
	// An empty name is a no-op.
	Upsert(ctx context.Context, assignee *domain.Assignee) error

	// GetByHandle retrieves a directory entry by recipient handle.
	// Returns ErrAssigneeNotFound if no entry has that handle.
	GetByHandle(ctx context.Context, handle string) (*domain.Assignee, error)

	// ExistsByHandle reports whether any entry has the given handle.
	ExistsByHandle(ctx context.Context, handle string) (bool, error)

	// NamesForHandle returns the distinct display names registered for a
	// handle. Used to also pick up handle-less tasks entered by name.
	NamesForHandle(ctx context.Context, handle string) ([]string, error)

	// ListAll returns all directory entries ordered by name.
	ListAll(ctx context.Context) ([]*domain.Assignee, error)

	// WithTx returns an AssigneeStore bound to the given transaction.
	WithTx(tx *sql.Tx) AssigneeStore
}
