package contract

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFlushSize is the batch writer's item threshold when the caller does
// not configure one.
const DefaultFlushSize = 500

// BatchWriter accumulates generator-style step output in a bounded buffer and
// flushes to sequentially numbered artifact files once the threshold is
// reached. Peak memory stays proportional to the flush size, not to the total
// item count. Close flushes the remainder.
type BatchWriter struct {
	c         Contract
	dir       string
	name      string
	flushSize int

	buf        []any
	totalItems int
	fileCount  int
}

// NewBatchWriter creates a writer that stores batches of `c`-shaped items
// under dir using name as the file stem. flushSize values below 1 fall back
// to DefaultFlushSize.
func NewBatchWriter(c Contract, dir, name string, flushSize int) *BatchWriter {
	if flushSize < 1 {
		flushSize = DefaultFlushSize
	}
	return &BatchWriter{
		c:         c,
		dir:       dir,
		name:      name,
		flushSize: flushSize,
		buf:       make([]any, 0, flushSize),
	}
}

// Append adds a single item, flushing when the buffer reaches the threshold.
func (w *BatchWriter) Append(v any) error {
	w.buf = append(w.buf, v)
	if len(w.buf) >= w.flushSize {
		return w.flush()
	}
	return nil
}

// Extend adds items in order, flushing as thresholds are crossed.
func (w *BatchWriter) Extend(vs []any) error {
	for _, v := range vs {
		if err := w.Append(v); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes any buffered remainder. It is safe to call on an empty
// writer; no file is written for an empty buffer.
func (w *BatchWriter) Close() error {
	if len(w.buf) == 0 {
		return nil
	}
	return w.flush()
}

// TotalItems reports how many items have been flushed to disk so far.
func (w *BatchWriter) TotalItems() int { return w.totalItems }

// FileCount reports how many batch files have been written so far.
func (w *BatchWriter) FileCount() int { return w.fileCount }

func (w *BatchWriter) flush() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("batch writer: %w", err)
	}
	data, err := w.c.Encode(w.buf)
	if err != nil {
		return err
	}
	file := filepath.Join(w.dir, fmt.Sprintf("%s_batch%04d%s", w.name, w.fileCount, w.c.Ext()))
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("batch writer: write %s: %w", file, err)
	}
	w.totalItems += len(w.buf)
	w.fileCount++
	w.buf = w.buf[:0]
	return nil
}
