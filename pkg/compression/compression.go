// Package compression compresses result artifacts.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Type names a compression algorithm.
type Type string

const (
	TypeNone Type = "none"
	TypeGzip Type = "gzip"
	TypeZstd Type = "zstd"
)

// ParseType parses a compression name. The empty string means none.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case "", TypeNone:
		return TypeNone, nil
	case TypeGzip:
		return TypeGzip, nil
	case TypeZstd:
		return TypeZstd, nil
	default:
		return "", fmt.Errorf("unknown compression: %s (valid: none, gzip, zstd)", s)
	}
}

// Ext returns the file name suffix of t.
func (t Type) Ext() string {
	switch t {
	case TypeGzip:
		return ".gz"
	case TypeZstd:
		return ".zst"
	default:
		return ""
	}
}

// Compressor compresses and decompresses whole buffers.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Type() Type
}

// New returns a compressor of type t.
func New(t Type) (Compressor, error) {
	switch t {
	case TypeNone, "":
		return noop{}, nil
	case TypeGzip:
		return gzipCompressor{level: gzip.BestCompression}, nil
	case TypeZstd:
		return newZstd()
	default:
		return nil, fmt.Errorf("unknown compression: %s", t)
	}
}

type noop struct{}

func (noop) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noop) Decompress(data []byte) ([]byte, error) { return data, nil }
func (noop) Type() Type                             { return TypeNone }

type gzipCompressor struct {
	level int
}

func (c gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write gzip data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (gzipCompressor) Type() Type { return TypeGzip }

// zstdCompressor keeps one encoder and decoder; EncodeAll and DecodeAll are
// safe for concurrent use.
type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstd() (*zstdCompressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &zstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (c *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (c *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	return c.decoder.DecodeAll(data, nil)
}

func (c *zstdCompressor) Type() Type { return TypeZstd }

// Close releases the encoder and decoder.
func (c *zstdCompressor) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

// Detect returns the compression of data from its magic bytes.
func Detect(data []byte) Type {
	switch {
	case len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd:
		return TypeZstd
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		return TypeGzip
	default:
		return TypeNone
	}
}

// AutoDecompress decompresses data in whatever format Detect finds.
func AutoDecompress(data []byte) ([]byte, error) {
	c, err := New(Detect(data))
	if err != nil {
		return nil, err
	}
	defer Close(c)
	return c.Decompress(data)
}

// Close releases c's resources if it holds any.
func Close(c Compressor) {
	if closer, ok := c.(interface{ Close() }); ok {
		closer.Close()
	}
}
