// Package writer provides plain and compressed JSON writers for run artifacts. File
// writes are atomic: readers see either the old file or the complete new one.
package writer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/prime-sieve/pkg/compression"
)

// JSONWriter writes data as JSON.
type JSONWriter[T any] struct {
	// Indent specifies the indentation for pretty printing.
	// Empty string means compact output.
	Indent string
}

// NewJSONWriter creates a new JSON writer with compact output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: ""}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

// Write writes the data as JSON to the writer.
func (w *JSONWriter[T]) Write(data T, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	if w.Indent != "" {
		encoder.SetIndent("", w.Indent)
	}
	return encoder.Encode(data)
}

// WriteToFile atomically replaces path with the JSON encoding of data,
// creating parent directories as needed.
func (w *JSONWriter[T]) WriteToFile(data T, path string) error {
	var buf bytes.Buffer
	if err := w.Write(data, &buf); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return writeFile(path, &buf)
}

// CompressedWriter writes data as compressed JSON.
type CompressedWriter[T any] struct {
	Compressor compression.Compressor
}

// NewCompressedWriter creates a writer that compresses with c.
func NewCompressedWriter[T any](c compression.Compressor) *CompressedWriter[T] {
	return &CompressedWriter[T]{Compressor: c}
}

// Write writes the compressed JSON of data to the writer.
func (w *CompressedWriter[T]) Write(data T, writer io.Writer) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	out, err := w.Compressor.Compress(buf.Bytes())
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	_, err = writer.Write(out)
	return err
}

// WriteToFile atomically replaces path with the compressed JSON of data.
func (w *CompressedWriter[T]) WriteToFile(data T, path string) error {
	var buf bytes.Buffer
	if err := w.Write(data, &buf); err != nil {
		return err
	}
	return writeFile(path, &buf)
}

// ReadFile decodes a file written by any writer in this package.
func ReadFile[T any](path string) (T, error) {
	var data T
	raw, err := os.ReadFile(path)
	if err != nil {
		return data, err
	}
	plain, err := compression.AutoDecompress(raw)
	if err != nil {
		return data, fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	if err := json.Unmarshal(plain, &data); err != nil {
		return data, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return data, nil
}

func writeFile(path string, r io.Reader) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := atomic.WriteFile(path, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
