package service

import (
	"context"
	"log/slog"

	"github.com/taskherd/taskherd/internal/domain"
	"github.com/taskherd/taskherd/internal/store"
)

// DirectoryService exposes the assignee directory: upsert-only mapping of
// display names to recipient handles and nicknames.
// Version: 1.0
type DirectoryService interface {
	// Upsert inserts or merges a directory entry; an empty name is a no-op.
	Upsert(ctx context.Context, name, handle, nickname, position string) error

	// List returns all directory entries ordered by name.
	List(ctx context.Context) ([]*domain.Assignee, error)

	// Exists reports whether a recipient handle is known.
	Exists(ctx context.Context, handle string) (bool, error)
}

type directoryService struct {
	assignees store.AssigneeStore
	logger    *slog.Logger
}

// NewDirectoryService creates a DirectoryService.
func NewDirectoryService(assignees store.AssigneeStore, log *slog.Logger) DirectoryService {
	if log == nil {
		log = slog.Default()
	}
	return &directoryService{
		assignees: assignees,
		logger:    log,
	}
}

func (s *directoryService) Upsert(ctx context.Context, name, handle, nickname, position string) error {
	entry, err := domain.NewAssignee(name, handle, nickname, position)
	if err != nil {
		// Empty names are dropped silently, matching the directory's
		// no-errors contract.
		s.logger.Debug("skipping directory upsert", "error", err)
		return nil
	}
	return s.assignees.Upsert(ctx, entry)
}

func (s *directoryService) List(ctx context.Context) ([]*domain.Assignee, error) {
	return s.assignees.ListAll(ctx)
}

func (s *directoryService) Exists(ctx context.Context, handle string) (bool, error) {
	return s.assignees.ExistsByHandle(ctx, handle)
}
