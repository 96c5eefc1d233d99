// Package artifact reads and writes the pipeline's gzip-compressed
// JSON output documents. Writes are atomic: the document is written to
// a temporary file in the destination directory and promoted with a
// rename, so a failed run never leaves a partially-written artifact.
package artifact

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Meta stamps an artifact with its creation time and run identity.
type Meta struct {
	Created string `json:"created"`
	RunID   string `json:"runId"`
}

// NewMeta returns a Meta for the current run.
func NewMeta() Meta {
	return Meta{
		Created: time.Now().Format(time.RFC3339),
		RunID:   uuid.NewString(),
	}
}

// WriteGzipJSON atomically writes v as indented, gzip-compressed JSON.
func WriteGzipJSON(path string, v any) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	gz := gzip.NewWriter(tmp)
	enc := json.NewEncoder(gz)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding artifact: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("compressing artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("promoting artifact: %w", err)
	}
	return nil
}

// ReadGzipJSON reads a gzip-compressed JSON document into out.
func ReadGzipJSON(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("decompressing artifact %s: %w", filepath.Base(path), err)
	}
	defer gz.Close()
	if err := json.NewDecoder(gz).Decode(out); err != nil {
		return fmt.Errorf("decoding artifact %s: %w", filepath.Base(path), err)
	}
	return nil
}
