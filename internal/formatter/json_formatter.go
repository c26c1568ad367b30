package formatter

import (
	"io"

	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/writer"
)

// JSONFormatter prints the whole result as indented JSON.
type JSONFormatter struct{}

// Name returns "json".
func (f *JSONFormatter) Name() string {
	return "json"
}

// Format writes r as JSON.
func (f *JSONFormatter) Format(w io.Writer, r *model.Result) error {
	return writer.NewPrettyJSONWriter[*model.Result]().Write(r, w)
}

// FormatSummary returns the headline numbers of a result.
func (f *JSONFormatter) FormatSummary(r *model.Result) map[string]interface{} {
	return summary(r)
}
