package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
)

// Placeholder styles of the supported SQL dialects.
const (
	PlaceholderQuestion = "?" // mysql, sqlite
	PlaceholderDollar   = "$" // postgres
)

const runColumns = `run_id, backend, sieve_limit, prime_count, requested_workers, workers, collectors,
	found, last_prime, primes, mark_ns, collect_ns, elapsed_ns,
	COALESCE(artifact_url, ''), created_at`

// SQLRunRepository implements RunRepository on a plain *sql.DB for callers
// that do not go through GORM.
type SQLRunRepository struct {
	db          *sql.DB
	placeholder string
}

// NewSQLRunRepository creates a repository for the given database type.
func NewSQLRunRepository(db *sql.DB, dbType string) *SQLRunRepository {
	ph := PlaceholderQuestion
	switch DBType(dbType) {
	case DBTypePostgres, DBType("postgresql"):
		ph = PlaceholderDollar
	}
	return &SQLRunRepository{db: db, placeholder: ph}
}

// bind rewrites ? placeholders for the configured dialect.
func (r *SQLRunRepository) bind(query string) string {
	if r.placeholder == PlaceholderQuestion {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Save inserts a run.
func (r *SQLRunRepository) Save(ctx context.Context, run *RunRecord) error {
	query := r.bind(`
		INSERT INTO sieve_runs (run_id, backend, sieve_limit, prime_count, requested_workers, workers, collectors,
			found, last_prime, primes, mark_ns, collect_ns, elapsed_ns, artifact_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		run.RunID, string(run.Backend), run.Limit, run.Count, run.Requested, run.Workers, run.Collectors,
		run.Found, run.LastPrime, run.Primes, run.MarkNs, run.CollectNs, run.ElapsedNs,
		run.ArtifactURL, run.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save run "+run.RunID, err)
	}
	return nil
}

// GetByRunID retrieves a run by its ID.
func (r *SQLRunRepository) GetByRunID(ctx context.Context, runID string) (*RunRecord, error) {
	query := r.bind(`SELECT id, ` + runColumns + ` FROM sieve_runs WHERE run_id = ?`)

	run, err := scanRun(r.db.QueryRowContext(ctx, query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "run not found: %s", runID)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get run", err)
	}
	return run, nil
}

// List returns runs, newest first.
func (r *SQLRunRepository) List(ctx context.Context, opts ListOptions) ([]*RunRecord, error) {
	query := `SELECT id, ` + runColumns + ` FROM sieve_runs`
	var args []interface{}
	if opts.Backend != "" {
		query += ` WHERE backend = ?`
		args = append(args, string(opts.Backend))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, opts.limit())

	rows, err := r.db.QueryContext(ctx, r.bind(query), args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list runs", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to scan run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list runs", err)
	}
	return runs, nil
}

// SetArtifactURL records where the run's result file was uploaded.
func (r *SQLRunRepository) SetArtifactURL(ctx context.Context, runID, url string) error {
	query := r.bind(`UPDATE sieve_runs SET artifact_url = ? WHERE run_id = ?`)

	result, err := r.db.ExecContext(ctx, query, url, runID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to update artifact url", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to update artifact url", err)
	}
	if affected == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "run not found: %s", runID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	run := &RunRecord{}
	var backend string
	err := row.Scan(
		&run.ID, &run.RunID, &backend, &run.Limit, &run.Count, &run.Requested, &run.Workers, &run.Collectors,
		&run.Found, &run.LastPrime, &run.Primes, &run.MarkNs, &run.CollectNs, &run.ElapsedNs,
		&run.ArtifactURL, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Backend = model.BackendType(backend)
	return run, nil
}
