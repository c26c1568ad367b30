// Package service wires a run to its optional sinks: the result file, the
// run history database and artifact storage.
package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/prime-sieve/internal/repository"
	"github.com/prime-sieve/internal/runner"
	"github.com/prime-sieve/internal/sieve/distributed"
	"github.com/prime-sieve/internal/storage"
	"github.com/prime-sieve/pkg/compression"
	"github.com/prime-sieve/pkg/config"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/utils"
	"github.com/prime-sieve/pkg/writer"
)

// ArtifactName is the object name of a run's uploaded result.
const ArtifactName = "primes.json"

// Service is the main application service.
type Service struct {
	config  *config.Config
	logger  utils.Logger
	runner  *runner.Runner
	repos   *repository.Repositories
	runs    repository.RunRepository
	storage storage.Storage
}

// Option configures a Service.
type Option func(*Service)

// WithRunRepository injects the run history repository.
func WithRunRepository(runs repository.RunRepository) Option {
	return func(s *Service) {
		s.runs = runs
	}
}

// WithStorage injects the artifact storage.
func WithStorage(st storage.Storage) Option {
	return func(s *Service) {
		s.storage = st
	}
}

// WithRunner replaces the runner built from the configuration.
func WithRunner(r *runner.Runner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// New creates a new Service instance.
func New(cfg *config.Config, logger utils.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	s := &Service{config: cfg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	if s.runner == nil {
		dist, err := DistributedConfig(cfg)
		if err != nil {
			return nil, err
		}
		s.runner = runner.New(runner.NewFactory(logger, dist), logger)
	}
	return s, nil
}

// Initialize connects the database and storage when they are enabled and
// not injected.
func (s *Service) Initialize(ctx context.Context) error {
	if s.config.Database.Enabled && s.runs == nil {
		s.logger.Info("Connecting to database (%s)...", s.config.Database.Type)
		repos, err := repository.Open(ctx, &s.config.Database)
		if err != nil {
			return err
		}
		s.repos = repos
		s.runs = repos.Run
	}

	if s.config.Storage.Enabled && s.storage == nil {
		s.logger.Info("Initializing storage (%s)...", s.config.Storage.Type)
		st, err := storage.NewStorage(&s.config.Storage)
		if err != nil {
			return err
		}
		s.storage = st
	}

	return s.config.EnsureOutputDir()
}

// Params returns the run parameters from the configuration.
func (s *Service) Params() model.Params {
	return Params(s.config)
}

// Params returns the run parameters of cfg.
func Params(cfg *config.Config) model.Params {
	return model.Params{
		Limit:      cfg.Sieve.Limit,
		Count:      cfg.Sieve.Count,
		Workers:    cfg.Sieve.Workers,
		Collectors: cfg.Sieve.Collectors,
	}
}

// DistributedConfig converts cfg into the distributed backend configuration.
func DistributedConfig(cfg *config.Config) (distributed.Config, error) {
	transport, err := distributed.ParseTransport(cfg.Distributed.Transport)
	if err != nil {
		return distributed.Config{}, apperrors.Wrap(apperrors.CodeConfigError, "invalid distributed.transport", err)
	}
	return distributed.Config{
		Ranks:             cfg.Sieve.Ranks,
		Transport:         transport,
		Addr:              cfg.Distributed.Addr,
		CollectiveTimeout: cfg.Distributed.CollectiveTimeout,
	}, nil
}

// Report is a finished run and where it was recorded.
type Report struct {
	Result      *model.Result
	File        string // local result file, empty when output.dir is unset
	ArtifactURL string // uploaded artifact, empty when storage is disabled
}

// Execute runs backend on params and records the result. A failure in any
// enabled sink fails the whole execution.
func (s *Service) Execute(ctx context.Context, backend model.BackendType, params model.Params) (*Report, error) {
	result, err := s.runner.Run(ctx, backend, params)
	if err != nil {
		return nil, err
	}
	return s.Record(ctx, result)
}

// Compare runs every backend in backends and records each result.
func (s *Service) Compare(ctx context.Context, backends []model.BackendType, params model.Params) (*runner.Comparison, []*Report, error) {
	cmp, err := s.runner.Compare(ctx, backends, params)
	if err != nil {
		return nil, nil, err
	}
	reports := make([]*Report, 0, len(cmp.Results))
	for _, result := range cmp.Results {
		report, err := s.Record(ctx, result)
		if err != nil {
			return nil, nil, err
		}
		reports = append(reports, report)
	}
	return cmp, reports, nil
}

// Record writes, persists and uploads a finished result.
func (s *Service) Record(ctx context.Context, result *model.Result) (*Report, error) {
	report := &Report{Result: result}
	log := s.logger.WithField("run_id", result.RunID)

	if s.config.Output.Dir != "" {
		file, err := s.writeFile(result)
		if err != nil {
			return nil, err
		}
		report.File = file
		log.Debug("wrote %s", file)
	}

	if s.runs != nil {
		rec, err := repository.NewRunRecord(result)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to encode run", err)
		}
		if err := s.runs.Save(ctx, rec); err != nil {
			return nil, err
		}
		log.Debug("saved run")
	}

	if s.storage != nil {
		url, err := s.upload(ctx, result)
		if err != nil {
			return nil, err
		}
		report.ArtifactURL = url
		if s.runs != nil {
			if err := s.runs.SetArtifactURL(ctx, result.RunID, url); err != nil {
				return nil, err
			}
		}
		log.Info("uploaded %s", url)
	}

	return report, nil
}

func (s *Service) writeFile(result *model.Result) (string, error) {
	dir := s.config.GetRunDir(result.RunID)
	typ, err := compression.ParseType(s.config.Output.Compression)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeConfigError, "invalid output.compression", err)
	}
	path := filepath.Join(dir, ArtifactName+typ.Ext())

	if typ == compression.TypeNone {
		err = writer.NewPrettyJSONWriter[*model.Result]().WriteToFile(result, path)
	} else {
		var c compression.Compressor
		if c, err = compression.New(typ); err != nil {
			return "", err
		}
		defer compression.Close(c)
		err = writer.NewCompressedWriter[*model.Result](c).WriteToFile(result, path)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func (s *Service) upload(ctx context.Context, result *model.Result) (string, error) {
	var buf bytes.Buffer
	if err := writer.NewJSONWriter[*model.Result]().Write(result, &buf); err != nil {
		return "", apperrors.Wrap(apperrors.CodeUploadError, "failed to encode result", err)
	}
	key := storage.RunKey(result.RunID, ArtifactName)
	if err := s.storage.Upload(ctx, key, &buf); err != nil {
		return "", err
	}
	return s.storage.GetURL(key), nil
}

// History lists recorded runs, newest first.
func (s *Service) History(ctx context.Context, opts repository.ListOptions) ([]*repository.RunRecord, error) {
	if s.runs == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "run history requires database.enabled")
	}
	return s.runs.List(ctx, opts)
}

// Show returns a recorded run.
func (s *Service) Show(ctx context.Context, runID string) (*model.Result, error) {
	if s.runs == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "run history requires database.enabled")
	}
	rec, err := s.runs.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	result, err := rec.ToModel()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, fmt.Sprintf("failed to decode run %s", runID), err)
	}
	return result, nil
}

// HealthCheck performs a health check on the service.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.repos != nil {
		if err := s.repos.HealthCheck(ctx); err != nil {
			return apperrors.Wrap(apperrors.CodeDatabaseError, "database health check failed", err)
		}
	}
	return nil
}

// Close releases the database connection.
func (s *Service) Close() error {
	if s.repos != nil {
		return s.repos.Close()
	}
	return nil
}
