package telemetry

import (
	"os"
	"strings"
)

// Config controls trace export. It is the telemetry section of the sieve
// configuration; the standard OTEL_* variables override it. Attribute keys
// containing dots must come from OTEL_RESOURCE_ATTRIBUTES, since the config
// file nests dotted keys.
type Config struct {
	Enabled        bool              `mapstructure:"enabled"`
	ServiceName    string            `mapstructure:"service_name"`
	ServiceVersion string            `mapstructure:"service_version"`
	Endpoint       string            `mapstructure:"endpoint"`
	Protocol       string            `mapstructure:"protocol"` // grpc or http/protobuf
	Insecure       bool              `mapstructure:"insecure"`
	Headers        map[string]string `mapstructure:"headers"`
	Sampler        string            `mapstructure:"sampler"`
	SamplerArg     string            `mapstructure:"sampler_arg"`
	Attributes     map[string]string `mapstructure:"attributes"`
}

// DefaultServiceName is reported when no service name is configured.
const DefaultServiceName = "prime-sieve"

// ApplyEnv overlays the OTEL_* environment variables that are set.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("OTEL_ENABLED"); ok {
		c.Enabled = strings.EqualFold(v, "true")
	}
	setString(&c.ServiceName, "OTEL_SERVICE_NAME")
	setString(&c.ServiceVersion, "OTEL_SERVICE_VERSION")
	setString(&c.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&c.Protocol, "OTEL_EXPORTER_OTLP_PROTOCOL")
	setString(&c.Sampler, "OTEL_TRACES_SAMPLER")
	setString(&c.SamplerArg, "OTEL_TRACES_SAMPLER_ARG")
	if v, ok := os.LookupEnv("OTEL_EXPORTER_OTLP_INSECURE"); ok {
		c.Insecure = strings.EqualFold(v, "true")
	}
	c.Headers = mergePairs(c.Headers, os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	c.Attributes = mergePairs(c.Attributes, os.Getenv("OTEL_RESOURCE_ATTRIBUTES"))
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// mergePairs adds the comma-separated key=value pairs of s to m. Values may
// contain '='.
func mergePairs(m map[string]string, s string) map[string]string {
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		if m == nil {
			m = make(map[string]string)
		}
		m[key] = strings.TrimSpace(value)
	}
	return m
}
