package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/prime-sieve/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "sieve.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))
	return configFile
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 1_000_000, cfg.Sieve.Limit)
	assert.Equal(t, 1000, cfg.Sieve.Count)
	assert.Equal(t, 0, cfg.Sieve.Workers)
	assert.Equal(t, "threads", cfg.Sieve.Backend)
	assert.Equal(t, 1, cfg.Sieve.Collectors)
	assert.Equal(t, 4, cfg.Sieve.Ranks)
	assert.Equal(t, "local", cfg.Distributed.Transport)
	assert.Equal(t, 30*time.Second, cfg.Distributed.CollectiveTimeout)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "gorm", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Output.PerLine)
	assert.Equal(t, "none", cfg.Output.Compression)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "prime-sieve", cfg.Telemetry.ServiceName)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_CustomValues(t *testing.T) {
	content := `
sieve:
  limit: 5000
  count: 20
  workers: 6
  backend: distributed
  ranks: 3
distributed:
  transport: grpc
  addr: 0.0.0.0:9000
  collective_timeout: 5s
database:
  enabled: true
  type: postgres
  host: db.example.com
  port: 5432
  database: sieve
storage:
  enabled: true
  type: local
  local_path: /tmp/storage
output:
  dir: /tmp/out
  format: json
  compression: zstd
telemetry:
  enabled: true
  endpoint: http://collector:4317
  attributes:
    team: lab
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Sieve.Limit)
	assert.Equal(t, 20, cfg.Sieve.Count)
	assert.Equal(t, 6, cfg.Sieve.Workers)
	assert.Equal(t, "distributed", cfg.Sieve.Backend)
	assert.Equal(t, "grpc", cfg.Distributed.Transport)
	assert.Equal(t, 5*time.Second, cfg.Distributed.CollectiveTimeout)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, "/tmp/storage", cfg.Storage.LocalPath)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "zstd", cfg.Output.Compression)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "http://collector:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, "lab", cfg.Telemetry.Attributes["team"])
	assert.Equal(t, filepath.Join("/tmp/out", "abc"), cfg.GetRunDir("abc"))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SIEVE_SIEVE_LIMIT", "777")
	t.Setenv("SIEVE_SIEVE_BACKEND", "locks")

	cfg, err := Load(writeConfig(t, "sieve:\n  limit: 100\n"))
	require.NoError(t, err)
	assert.Equal(t, 777, cfg.Sieve.Limit)
	assert.Equal(t, "locks", cfg.Sieve.Backend)
}

func TestLoadWithViper_FlagOverride(t *testing.T) {
	v := viper.New()
	v.Set("sieve.count", 42)

	cfg, err := LoadWithViper(v, writeConfig(t, "sieve:\n  count: 7\n"))
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Sieve.Count)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Sieve.Count)
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "sieve: [unclosed\n"))
	assert.True(t, apperrors.IsConfigError(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
		message string
	}{
		{"limit too small", "sieve:\n  limit: 1\n", apperrors.CodeConfigError, "sieve.limit"},
		{"limit above max", "sieve:\n  limit: 5000\n  max_limit: 1000\n", apperrors.CodeResourceExhausted, "max_limit"},
		{"zero count", "sieve:\n  count: 0\n", apperrors.CodeConfigError, "sieve.count"},
		{"negative workers", "sieve:\n  workers: -2\n", apperrors.CodeConfigError, "sieve.workers"},
		{"zero collectors", "sieve:\n  collectors: 0\n", apperrors.CodeConfigError, "sieve.collectors"},
		{"zero ranks", "sieve:\n  ranks: 0\n", apperrors.CodeConfigError, "sieve.ranks"},
		{"bad transport", "distributed:\n  transport: smoke\n", apperrors.CodeConfigError, "transport"},
		{"bad database", "database:\n  enabled: true\n  type: oracle\n", apperrors.CodeConfigError, "unsupported database type"},
		{"bad database driver", "database:\n  enabled: true\n  driver: odbc\n", apperrors.CodeConfigError, "database.driver"},
		{"missing host", "database:\n  enabled: true\n  type: mysql\n  host: \"\"\n", apperrors.CodeConfigError, "host is required"},
		{"bad output format", "output:\n  format: xml\n", apperrors.CodeConfigError, "output.format"},
		{"bad compression", "output:\n  compression: rar\n", apperrors.CodeConfigError, "output.compression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromReader("yaml", []byte(tt.content))
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetErrorCode(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidate_DisabledDatabaseIgnored(t *testing.T) {
	_, err := LoadFromReader("yaml", []byte("database:\n  type: oracle\n"))
	assert.NoError(t, err)
}

func TestEnsureOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	cfg := &Config{Output: OutputConfig{Dir: dir}}

	require.NoError(t, cfg.EnsureOutputDir())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, (&Config{}).EnsureOutputDir())
}
