package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/prime-sieve/pkg/errors"
)

// GormRunRepository implements RunRepository using GORM.
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository.
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// Migrate creates or updates the sieve_runs table.
func (r *GormRunRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&RunRecord{}); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to migrate sieve_runs", err)
	}
	return nil
}

// Save inserts a run.
func (r *GormRunRepository) Save(ctx context.Context, run *RunRecord) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save run "+run.RunID, err)
	}
	return nil
}

// GetByRunID retrieves a run by its ID.
func (r *GormRunRepository) GetByRunID(ctx context.Context, runID string) (*RunRecord, error) {
	var run RunRecord

	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "run not found: %s", runID)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get run", err)
	}

	return &run, nil
}

// List returns runs, newest first.
func (r *GormRunRepository) List(ctx context.Context, opts ListOptions) ([]*RunRecord, error) {
	var runs []*RunRecord

	query := r.db.WithContext(ctx).Order("id DESC").Limit(opts.limit())
	if opts.Backend != "" {
		query = query.Where("backend = ?", opts.Backend)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list runs", err)
	}

	return runs, nil
}

// SetArtifactURL records where the run's result file was uploaded.
func (r *GormRunRepository) SetArtifactURL(ctx context.Context, runID, url string) error {
	result := r.db.WithContext(ctx).
		Model(&RunRecord{}).
		Where("run_id = ?", runID).
		Update("artifact_url", url)

	if result.Error != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to update artifact url", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "run not found: %s", runID)
	}

	return nil
}
