// Package runner selects a sieve backend, runs it and stamps the result with
// a run id.
package runner

import (
	"github.com/prime-sieve/internal/sieve"
	"github.com/prime-sieve/internal/sieve/distributed"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/utils"
)

// Factory creates backends by type.
type Factory struct {
	logger      utils.Logger
	distributed distributed.Config
}

// NewFactory creates a backend factory.
func NewFactory(logger utils.Logger, dist distributed.Config) *Factory {
	return &Factory{
		logger:      utils.OrNull(logger),
		distributed: dist,
	}
}

// CreateBackend creates the backend for t.
func (f *Factory) CreateBackend(t model.BackendType) (sieve.Backend, error) {
	log := f.logger.WithField("backend", t)
	switch t {
	case model.BackendThreads:
		return sieve.NewThreadsBackend(sieve.WithLogger(log)), nil
	case model.BackendLocks:
		return sieve.NewLocksBackend(sieve.WithLogger(log)), nil
	case model.BackendDataParallel:
		return sieve.NewDataParallelBackend(sieve.WithLogger(log)), nil
	case model.BackendDistributed:
		return distributed.NewBackend(f.distributed, log), nil
	default:
		return nil, apperrors.Newf(apperrors.CodeConfigError, "unsupported backend %q", t)
	}
}
