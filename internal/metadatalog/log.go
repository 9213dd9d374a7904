// Package metadatalog defines the append-only, soft-deleting record store
// that is the source of truth for which memories are currently active.
package metadatalog

import (
	"context"

	"github.com/mnemolab/mnemo/internal/model"
)

// Log records every memory ever created. Rows are soft-deleted, never
// removed, so per-user statistics cover the full history.
// Implementations live under internal/metadatalog/<driver>/.
type Log interface {
	// Append inserts a new row with is_deleted=false and stamps creation
	// time. It fails with model.ErrDuplicateID if the ID already exists.
	Append(ctx context.Context, m *model.Memory) (*model.Memory, error)

	// SoftDelete marks the row deleted and bumps updated_at. Deleting an
	// already-deleted or nonexistent ID is a no-op.
	SoftDelete(ctx context.Context, id string) error

	// GetByID returns the full row, deleted or not, or model.ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.Memory, error)

	// ActiveIDs returns the IDs of non-deleted rows for a user,
	// most-recently-created first.
	ActiveIDs(ctx context.Context, userID string) ([]string, error)

	// ListForUser returns non-deleted rows for a user, most-recently-created
	// first. limit <= 0 means no limit.
	ListForUser(ctx context.Context, userID string, limit int) ([]*model.Memory, error)

	// StatsForUser aggregates over all rows for the user, active and deleted.
	StatsForUser(ctx context.Context, userID string) (*model.MemoryStats, error)
}
