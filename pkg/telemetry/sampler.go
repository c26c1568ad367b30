package telemetry

import (
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/sdk/trace"
)

// newSampler returns the sampler named by the OTEL_TRACES_SAMPLER values.
// The empty name samples everything.
func newSampler(name, arg string) (trace.Sampler, error) {
	switch name {
	case "", "always_on":
		return trace.AlwaysSample(), nil
	case "always_off":
		return trace.NeverSample(), nil
	case "traceidratio":
		ratio, err := parseRatio(arg)
		if err != nil {
			return nil, err
		}
		return trace.TraceIDRatioBased(ratio), nil
	case "parentbased_always_on":
		return trace.ParentBased(trace.AlwaysSample()), nil
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample()), nil
	case "parentbased_traceidratio":
		ratio, err := parseRatio(arg)
		if err != nil {
			return nil, err
		}
		return trace.ParentBased(trace.TraceIDRatioBased(ratio)), nil
	default:
		return nil, fmt.Errorf("unknown sampler: %s", name)
	}
}

// parseRatio parses a sampling ratio. Empty means 1; values outside [0, 1]
// are clamped.
func parseRatio(s string) (float64, error) {
	if s == "" {
		return 1, nil
	}
	ratio, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sampler ratio %q: %w", s, err)
	}
	return min(max(ratio, 0), 1), nil
}
