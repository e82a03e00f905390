// Package sink provides the verdict writers: append-only JSON lines on
// disk, a ClickHouse audit table, and a NATS publisher for live observers.
// All writers run off the scoring path; failures are logged, never
// propagated into the forward/block decision.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"TwinGuard/internal/model"
)

// TextWriter appends verdict records as JSON lines under a root path, one
// file per day.
type TextWriter struct {
	rootPath string

	mu   sync.Mutex
	file *os.File
	day  string
}

// NewTextWriter creates the root directory and returns a writer.
func NewTextWriter(rootPath string) (*TextWriter, error) {
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create verdict log directory: %w", err)
	}
	return &TextWriter{rootPath: rootPath}, nil
}

// Write appends one record.
func (w *TextWriter) Write(rec model.VerdictRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	day := rec.ScoredAt.Format("2006-01-02")
	if w.file == nil || day != w.day {
		if w.file != nil {
			w.file.Close()
		}
		path := filepath.Join(w.rootPath, "verdicts-"+day+".jsonl")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open verdict log '%s': %w", path, err)
		}
		w.file = f
		w.day = day
	}

	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append verdict record: %w", err)
	}
	return nil
}

// Close flushes and closes the current log file.
func (w *TextWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
