package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/prime-sieve/internal/repository"
	"github.com/prime-sieve/internal/runner"
	"github.com/prime-sieve/internal/sieve/distributed"
	"github.com/prime-sieve/internal/storage"
	"github.com/prime-sieve/pkg/config"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/utils"
	"github.com/prime-sieve/pkg/writer"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader("yaml", []byte(`
sieve:
  limit: 100
  count: 10
distributed:
  addr: 127.0.0.1:0
`))
	require.NoError(t, err)
	return cfg
}

func testRunner(t *testing.T) *runner.Runner {
	t.Helper()
	n := 0
	return runner.New(
		runner.NewFactory(nil, distributed.DefaultConfig()),
		&utils.NullLogger{},
		runner.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("run-%d", n)
		}),
	)
}

func testRuns(t *testing.T) *repository.GormRunRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	runs := repository.NewGormRunRepository(db)
	require.NoError(t, runs.Migrate(context.Background()))
	return runs
}

func TestService_New(t *testing.T) {
	t.Run("WithLogger", func(t *testing.T) {
		svc, err := New(testConfig(t), utils.NewDefaultLogger(utils.LevelInfo, nil))
		require.NoError(t, err)
		require.NotNil(t, svc)
	})

	t.Run("WithoutLogger", func(t *testing.T) {
		svc, err := New(testConfig(t), nil)
		require.NoError(t, err)
		require.NotNil(t, svc)
	})

	t.Run("BadTransport", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Distributed.Transport = "carrier-pigeon"
		_, err := New(cfg, nil)
		assert.True(t, apperrors.IsConfigError(err))
	})
}

func TestParamsAndDistributedConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sieve.Workers = 3
	cfg.Distributed.Transport = "grpc"
	cfg.Distributed.CollectiveTimeout = 5 * time.Second

	assert.Equal(t, model.Params{Limit: 100, Count: 10, Workers: 3, Collectors: 1}, Params(cfg))

	dist, err := DistributedConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, distributed.Config{
		Ranks:             4,
		Transport:         distributed.TransportGRPC,
		Addr:              "127.0.0.1:0",
		CollectiveTimeout: 5 * time.Second,
	}, dist)
}

func TestService_ExecuteWithoutSinks(t *testing.T) {
	svc, err := New(testConfig(t), &utils.NullLogger{}, WithRunner(testRunner(t)))
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))

	report, err := svc.Execute(context.Background(), model.BackendThreads, svc.Params())
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}, report.Result.Primes)
	assert.Empty(t, report.File)
	assert.Empty(t, report.ArtifactURL)

	_, err = svc.History(context.Background(), repository.ListOptions{})
	assert.True(t, apperrors.IsConfigError(err))
	_, err = svc.Show(context.Background(), "run-1")
	assert.True(t, apperrors.IsConfigError(err))
}

func TestService_ExecuteRecordsEverywhere(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")

	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	runs := testRuns(t)

	svc, err := New(cfg, &utils.NullLogger{},
		WithRunner(testRunner(t)),
		WithRunRepository(runs),
		WithStorage(st),
	)
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))

	ctx := context.Background()
	report, err := svc.Execute(ctx, model.BackendLocks, svc.Params())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.Output.Dir, "run-1", ArtifactName), report.File)
	_, err = os.Stat(report.File)
	require.NoError(t, err)

	assert.Equal(t, st.GetURL(storage.RunKey("run-1", ArtifactName)), report.ArtifactURL)
	ok, err := st.Exists(ctx, storage.RunKey("run-1", ArtifactName))
	require.NoError(t, err)
	assert.True(t, ok)

	history, err := svc.History(ctx, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, report.ArtifactURL, history[0].ArtifactURL)

	shown, err := svc.Show(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, report.Result.Primes, shown.Primes)
	assert.Equal(t, model.BackendLocks, shown.Backend)
}

func TestService_CompressedOutput(t *testing.T) {
	for _, tc := range []struct{ compression, ext string }{
		{"gzip", ".gz"},
		{"zstd", ".zst"},
	} {
		t.Run(tc.compression, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Output.Dir = t.TempDir()
			cfg.Output.Compression = tc.compression

			svc, err := New(cfg, &utils.NullLogger{}, WithRunner(testRunner(t)))
			require.NoError(t, err)

			report, err := svc.Execute(context.Background(), model.BackendDataParallel, svc.Params())
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(cfg.Output.Dir, "run-1", ArtifactName+tc.ext), report.File)

			decoded, err := writer.ReadFile[*model.Result](report.File)
			require.NoError(t, err)
			assert.Equal(t, report.Result.Primes, decoded.Primes)
		})
	}
}

func TestService_Compare(t *testing.T) {
	runs := testRuns(t)
	svc, err := New(testConfig(t), &utils.NullLogger{},
		WithRunner(testRunner(t)),
		WithRunRepository(runs),
	)
	require.NoError(t, err)

	cmp, reports, err := svc.Compare(context.Background(), nil, svc.Params())
	require.NoError(t, err)
	assert.True(t, cmp.Equal())
	assert.Len(t, reports, len(model.AllBackends()))

	history, err := svc.History(context.Background(), repository.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, history, len(model.AllBackends()))
}

func TestService_ExecuteInvalidParams(t *testing.T) {
	runs := testRuns(t)
	svc, err := New(testConfig(t), &utils.NullLogger{},
		WithRunner(testRunner(t)),
		WithRunRepository(runs),
	)
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), model.BackendThreads, model.Params{Limit: 1, Count: 1})
	assert.True(t, apperrors.IsConfigError(err))

	history, err := svc.History(context.Background(), repository.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, history, "failed runs are not recorded")
}

// failingRuns rejects every save.
type failingRuns struct {
	repository.RunRepository
}

func (failingRuns) Save(context.Context, *repository.RunRecord) error {
	return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save run", errors.New("disk full"))
}

func TestService_PersistFailureIsFatal(t *testing.T) {
	svc, err := New(testConfig(t), &utils.NullLogger{},
		WithRunner(testRunner(t)),
		WithRunRepository(failingRuns{}),
	)
	require.NoError(t, err)

	report, err := svc.Execute(context.Background(), model.BackendThreads, svc.Params())
	assert.Nil(t, report)
	assert.True(t, apperrors.IsDatabaseError(err))
}

func TestService_InitializeOpensConfiguredSinks(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Enabled = true
	cfg.Database.Type = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "sieve.db")
	cfg.Storage.Enabled = true
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = t.TempDir()

	svc, err := New(cfg, &utils.NullLogger{}, WithRunner(testRunner(t)))
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))
	defer svc.Close()

	require.NoError(t, svc.HealthCheck(context.Background()))

	report, err := svc.Execute(context.Background(), model.BackendThreads, svc.Params())
	require.NoError(t, err)
	assert.NotEmpty(t, report.ArtifactURL)

	history, err := svc.History(context.Background(), repository.ListOptions{Backend: model.BackendThreads})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "run-1", history[0].RunID)
}

func TestService_CloseWithoutDatabase(t *testing.T) {
	svc, err := New(testConfig(t), nil)
	require.NoError(t, err)
	assert.NoError(t, svc.Close())
	assert.NoError(t, svc.HealthCheck(context.Background()))
}
