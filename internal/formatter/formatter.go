// Package formatter renders run results for the terminal.
package formatter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/prime-sieve/pkg/model"
)

// DefaultPerLine is how many primes a text line holds.
const DefaultPerLine = 10

// ResultFormatter renders a result.
type ResultFormatter interface {
	// Format writes the primes of r followed by its timing.
	Format(w io.Writer, r *model.Result) error

	// FormatSummary returns a summary map for serialization.
	FormatSummary(r *model.Result) map[string]interface{}

	// Name returns the output format this formatter produces.
	Name() string
}

// Registry manages formatter instances by output format.
type Registry struct {
	formatters map[string]ResultFormatter
	fallback   ResultFormatter
}

// NewRegistry creates a registry with the text and JSON formatters.
func NewRegistry(perLine int) *Registry {
	text := &TextFormatter{PerLine: perLine}
	r := &Registry{
		formatters: make(map[string]ResultFormatter),
		fallback:   text,
	}
	r.Register(text)
	r.Register(&JSONFormatter{})
	return r
}

// Register registers a formatter.
func (r *Registry) Register(f ResultFormatter) {
	r.formatters[f.Name()] = f
}

// Get returns the formatter for a format name, or the text formatter.
func (r *Registry) Get(name string) ResultFormatter {
	if f, ok := r.formatters[name]; ok {
		return f
	}
	return r.fallback
}

// TextFormatter prints the primes PerLine to a line, then the elapsed time.
type TextFormatter struct {
	PerLine int
}

// Name returns "text".
func (f *TextFormatter) Name() string {
	return "text"
}

// Format writes the prime listing and the "Time taken" line.
func (f *TextFormatter) Format(w io.Writer, r *model.Result) error {
	if _, err := io.WriteString(w, f.Primes(r.Primes)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Time taken: %.6f seconds\n", r.Elapsed.Seconds())
	return err
}

// Primes renders only the prime listing. It depends on nothing but the
// primes, so equal results render to identical bytes on every backend.
func (f *TextFormatter) Primes(primes []int) string {
	perLine := f.PerLine
	if perLine <= 0 {
		perLine = DefaultPerLine
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "First %d primes:\n", len(primes))
	for i, p := range primes {
		sb.WriteString(strconv.Itoa(p))
		if (i+1)%perLine == 0 || i == len(primes)-1 {
			sb.WriteByte('\n')
		} else {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// FormatSummary returns the headline numbers of a result.
func (f *TextFormatter) FormatSummary(r *model.Result) map[string]interface{} {
	return summary(r)
}

func summary(r *model.Result) map[string]interface{} {
	return map[string]interface{}{
		"run_id":     r.RunID,
		"backend":    r.Backend.String(),
		"limit":      r.Params.Limit,
		"count":      r.Len(),
		"requested":  r.Params.Count,
		"last_prime": r.Last(),
		"workers":    r.Workers,
		"mark_ms":    r.Phases.Mark.Milliseconds(),
		"collect_ms": r.Phases.Collect.Milliseconds(),
		"elapsed_ms": r.Elapsed.Milliseconds(),
	}
}
