package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter is an io.Writer that rotates the log file once it
// would grow past a size cap. Rotated files carry numeric suffixes,
// .1 newest, at most maxFiles kept.
type RotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int

	mu   sync.Mutex
	file *os.File
	size int64
	// sync after every write so `eventscout logs -f` sees lines as
	// they land
	immediateSync bool
}

// NewRotatingWriter opens path for appending, creating its directory
// as needed. maxSizeMB caps the live file, maxFiles the rotated set.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:          path,
		maxSize:       int64(maxSizeMB) * 1024 * 1024,
		maxFiles:      maxFiles,
		immediateSync: true,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// SetImmediateSync toggles the per-write fsync.
func (w *RotatingWriter) SetImmediateSync(enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.immediateSync = enabled
}

// Write appends p, rotating first when the file would outgrow the cap.
// A failed rotation keeps writing to the current file; losing rotation
// beats losing log lines.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, fmt.Errorf("log writer is closed")
	}

	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
		if w.file == nil {
			return 0, fmt.Errorf("log file unavailable after failed rotation")
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)

	if w.immediateSync && err == nil {
		_ = w.file.Sync()
	}
	return n, err
}

// Sync flushes the live file to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the live file. Writes after Close fail.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// rotate shifts each numbered file up one slot, moves the live file
// into slot 1, and reopens. The shift runs from the oldest slot down
// so no rename lands on an occupied name; whatever sits in the last
// slot is dropped. On a failed shift the unrotated file is reopened so
// logging continues.
func (w *RotatingWriter) rotate() error {
	var rotateErr error

	if w.file != nil {
		if err := w.file.Close(); err != nil {
			rotateErr = fmt.Errorf("failed to close log file: %w", err)
		}
		w.file = nil
	}

	if rotateErr == nil {
		slot := func(n int) string { return fmt.Sprintf("%s.%d", w.path, n) }

		_ = os.Remove(slot(w.maxFiles))
		for n := w.maxFiles - 1; n >= 1; n-- {
			if _, err := os.Stat(slot(n)); err == nil {
				_ = os.Rename(slot(n), slot(n+1))
			}
		}
		if _, err := os.Stat(w.path); err == nil {
			if err := os.Rename(w.path, slot(1)); err != nil {
				rotateErr = fmt.Errorf("failed to rotate log file: %w", err)
			}
		}
	}

	if err := w.open(); err != nil {
		return err
	}
	return rotateErr
}
