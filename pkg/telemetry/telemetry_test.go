package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ApplyEnv(t *testing.T) {
	t.Run("KeepsConfiguredValues", func(t *testing.T) {
		cfg := Config{Enabled: true, ServiceName: "sieve-a", Protocol: "grpc"}
		cfg.ApplyEnv()
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "sieve-a", cfg.ServiceName)
		assert.Equal(t, "grpc", cfg.Protocol)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "TRUE")
		t.Setenv("OTEL_SERVICE_NAME", "sieve-b")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
		t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf")
		t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Bearer a=b, X-Team = sieve")
		t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment=ci")

		cfg := Config{
			ServiceName: "sieve-a",
			Attributes:  map[string]string{"sieve.cluster": "lab"},
		}
		cfg.ApplyEnv()

		assert.True(t, cfg.Enabled)
		assert.Equal(t, "sieve-b", cfg.ServiceName)
		assert.Equal(t, "http://collector:4318", cfg.Endpoint)
		assert.Equal(t, "http/protobuf", cfg.Protocol)
		assert.Equal(t, map[string]string{"Authorization": "Bearer a=b", "X-Team": "sieve"}, cfg.Headers)
		assert.Equal(t, map[string]string{"sieve.cluster": "lab", "deployment.environment": "ci"}, cfg.Attributes)
	})

	t.Run("EnvDisables", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "false")
		cfg := Config{Enabled: true}
		cfg.ApplyEnv()
		assert.False(t, cfg.Enabled)
	})
}

func TestMergePairs(t *testing.T) {
	assert.Nil(t, mergePairs(nil, ""))
	assert.Nil(t, mergePairs(nil, "novalue,=x"))
	assert.Equal(t, map[string]string{"k": ""}, mergePairs(nil, "k="))
}

func TestSplitEndpoint(t *testing.T) {
	host, plain := splitEndpoint("http://localhost:4317")
	assert.Equal(t, "localhost:4317", host)
	assert.True(t, plain)

	host, plain = splitEndpoint("https://otel.example.com")
	assert.Equal(t, "otel.example.com", host)
	assert.False(t, plain)

	host, plain = splitEndpoint("collector:4317")
	assert.Equal(t, "collector:4317", host)
	assert.False(t, plain)
}

func TestNewSampler(t *testing.T) {
	for _, name := range []string{"", "always_on", "always_off", "traceidratio", "parentbased_always_on", "parentbased_always_off", "parentbased_traceidratio"} {
		s, err := newSampler(name, "0.25")
		require.NoError(t, err, name)
		assert.NotNil(t, s)
	}

	_, err := newSampler("sometimes", "")
	assert.Error(t, err)
	_, err = newSampler("traceidratio", "half")
	assert.Error(t, err)
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 1},
		{"0.5", 0.5},
		{"0", 0},
		{"-0.5", 0},
		{"1.5", 1},
	}
	for _, tt := range tests {
		got, err := parseRatio(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource(context.Background(), &Config{
		ServiceVersion: "1.2.3",
		Attributes:     map[string]string{"sieve.cluster": "lab"},
	})
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, DefaultServiceName, attrs["service.name"])
	assert.Equal(t, "1.2.3", attrs["service.version"])
	assert.Equal(t, "lab", attrs["sieve.cluster"])
}

func TestInit(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "false")
		shutdown, err := Init(context.Background(), Config{Enabled: true})
		require.NoError(t, err)
		assert.False(t, Enabled())
		assert.NoError(t, shutdown(context.Background()))
	})

	t.Run("BadSampler", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "true")
		t.Setenv("OTEL_TRACES_SAMPLER", "sometimes")
		_, err := Init(context.Background(), Config{})
		assert.Error(t, err)
		assert.False(t, Enabled())
	})

	t.Run("BadProtocol", func(t *testing.T) {
		_, err := Init(context.Background(), Config{Enabled: true, Protocol: "carrier-pigeon"})
		assert.Error(t, err)
		assert.False(t, Enabled())
	})
}
