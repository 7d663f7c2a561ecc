// Package local persists crawl inputs and outputs on the local filesystem.
package local

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

// JSONLWriter appends one JSON line per discovered element and flushes after
// every page so completed pages survive a crash.
type JSONLWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	path string
}

var _ crawler.ResultSink = (*JSONLWriter)(nil)

// Create truncates or creates the file at path.
func Create(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %w", crawler.ErrPersistence, err)
	}
	f, err := os.Create(path) //nolint:gosec // path built from configured output root
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", crawler.ErrPersistence, path, err)
	}
	return &JSONLWriter{file: f, buf: bufio.NewWriter(f), path: path}, nil
}

// Path returns the file being written.
func (w *JSONLWriter) Path() string {
	return w.path
}

// Write appends the result's records and flushes them to the file.
func (w *JSONLWriter) Write(_ context.Context, result crawler.CaptureResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, rec := range result.Records() {
		line, err := rec.MarshalLine()
		if err != nil {
			return fmt.Errorf("%w: %w", crawler.ErrPersistence, err)
		}
		if _, err := w.buf.Write(line); err != nil {
			return fmt.Errorf("%w: write %s: %w", crawler.ErrPersistence, w.path, err)
		}
		if err := w.buf.WriteByte('\n'); err != nil {
			return fmt.Errorf("%w: write %s: %w", crawler.ErrPersistence, w.path, err)
		}
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("%w: flush %s: %w", crawler.ErrPersistence, w.path, err)
	}
	return nil
}

// Close flushes pending output and closes the file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("%w: flush %s: %w", crawler.ErrPersistence, w.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: close %s: %w", crawler.ErrPersistence, w.path, closeErr)
	}
	return nil
}
