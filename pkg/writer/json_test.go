package writer

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prime-sieve/pkg/compression"
	"github.com/prime-sieve/pkg/model"
)

func sampleResult() *model.Result {
	return &model.Result{
		RunID:   "run-1",
		Backend: model.BackendThreads,
		Params:  model.Params{Limit: 30, Count: 5},
		Workers: 2,
		Primes:  []int{2, 3, 5, 7, 11},
	}
}

func TestJSONWriter_Write(t *testing.T) {
	t.Run("compact output", func(t *testing.T) {
		w := NewJSONWriter[[]int]()
		var buf bytes.Buffer
		if err := w.Write([]int{2, 3, 5}, &buf); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		expected := "[2,3,5]\n"
		if buf.String() != expected {
			t.Errorf("got %q, want %q", buf.String(), expected)
		}
	})

	t.Run("pretty output", func(t *testing.T) {
		w := NewPrettyJSONWriter[*model.Result]()
		var buf bytes.Buffer
		if err := w.Write(sampleResult(), &buf); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		if !bytes.Contains(buf.Bytes(), []byte("\n  \"run_id\": \"run-1\"")) {
			t.Errorf("output is not indented: %s", buf.String())
		}
	})
}

func TestJSONWriter_WriteToFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "runs", "run-1", "primes.json")

	w := NewJSONWriter[*model.Result]()
	if err := w.WriteToFile(sampleResult(), filePath); err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}

	var decoded model.Result
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("Failed to decode file: %v", err)
	}
	if decoded.Last() != 11 || decoded.Backend != model.BackendThreads {
		t.Errorf("decoded data mismatch: got %+v", decoded)
	}
}

func TestJSONWriter_WriteToFileReplaces(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "primes.json")
	w := NewJSONWriter[[]int]()

	if err := w.WriteToFile([]int{2, 3, 5, 7, 11, 13}, filePath); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := w.WriteToFile([]int{2}, filePath); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != "[2]\n" {
		t.Errorf("got %q, want the second write only", content)
	}

	entries, err := os.ReadDir(filepath.Dir(filePath))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestCompressedWriter_WriteToFile(t *testing.T) {
	for _, typ := range []compression.Type{compression.TypeGzip, compression.TypeZstd} {
		t.Run(string(typ), func(t *testing.T) {
			c, err := compression.New(typ)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer compression.Close(c)

			filePath := filepath.Join(t.TempDir(), "primes.json"+typ.Ext())
			if err := NewCompressedWriter[*model.Result](c).WriteToFile(sampleResult(), filePath); err != nil {
				t.Fatalf("WriteToFile failed: %v", err)
			}

			raw, err := os.ReadFile(filePath)
			if err != nil {
				t.Fatalf("Failed to read file: %v", err)
			}
			if got := compression.Detect(raw); got != typ {
				t.Errorf("file is %s, want %s", got, typ)
			}

			decoded, err := ReadFile[*model.Result](filePath)
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			if len(decoded.Primes) != 5 {
				t.Errorf("decoded %d primes, want 5", len(decoded.Primes))
			}
		})
	}
}

func TestReadFile_Plain(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "primes.json")
	if err := NewPrettyJSONWriter[[]int]().WriteToFile([]int{2, 3, 5}, filePath); err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}

	decoded, err := ReadFile[[]int](filePath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(decoded) != 3 || decoded[2] != 5 {
		t.Errorf("got %v", decoded)
	}
}

func TestReadFile_Missing(t *testing.T) {
	if _, err := ReadFile[[]int](filepath.Join(t.TempDir(), "nope.json")); !os.IsNotExist(err) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}
