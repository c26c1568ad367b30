package repository

import (
	"context"

	"github.com/prime-sieve/pkg/model"
)

// RunRepository defines the interface for run history operations.
type RunRepository interface {
	// Save inserts a run. Saving a run ID twice is an error.
	Save(ctx context.Context, run *RunRecord) error

	// GetByRunID retrieves a run by its ID.
	GetByRunID(ctx context.Context, runID string) (*RunRecord, error)

	// List returns runs, newest first.
	List(ctx context.Context, opts ListOptions) ([]*RunRecord, error)

	// SetArtifactURL records where the run's result file was uploaded.
	SetArtifactURL(ctx context.Context, runID, url string) error
}

// ListOptions filters List.
type ListOptions struct {
	Backend model.BackendType // empty matches every backend
	Limit   int               // <= 0 uses DefaultListLimit
}

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 20

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}
