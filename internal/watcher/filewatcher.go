package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches a single file using fsnotify, with polling as a
// fallback when fsnotify cannot initialize. It watches the file's parent
// directory because editors replace files through rename, which kills a
// watch on the file itself; events are filtered to the target name and
// debounced into batches.
type FileWatcher struct {
	fsWatcher   *fsnotify.Watcher
	poller      *PollingWatcher
	useFsnotify bool
	debouncer   *Debouncer
	events      chan []FileEvent
	errors      chan error
	stopCh      chan struct{}
	opts        Options

	mu      sync.RWMutex
	target  string
	stopped bool

	droppedBatches atomic.Uint64
}

// NewFileWatcher creates a watcher with the given options. fsnotify is
// tried first; if the platform refuses, the poller takes over.
func NewFileWatcher(opts Options) (*FileWatcher, error) {
	opts = opts.WithDefaults()

	w := &FileWatcher{
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 4),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		w.fsWatcher = fsw
		w.useFsnotify = true
	} else {
		slog.Warn("fsnotify unavailable, falling back to polling",
			slog.String("error", err.Error()))
		w.poller = NewPollingWatcher(opts.PollInterval)
	}

	return w, nil
}

// Start watches the given file until Stop or context cancellation.
// Blocks; run it on its own goroutine.
func (w *FileWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	w.mu.Lock()
	w.target = absPath
	w.mu.Unlock()

	go w.forwardDebounced(ctx)

	if w.useFsnotify {
		return w.runFsnotify(ctx, absPath)
	}
	return w.runPolling(ctx, absPath)
}

func (w *FileWatcher) runFsnotify(ctx context.Context, target string) error {
	if err := w.fsWatcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch directory of %s: %w", target, err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(ev, target)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *FileWatcher) runPolling(ctx context.Context, target string) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case ev, ok := <-w.poller.Events():
				if !ok {
					return
				}
				w.debouncer.Add(ev)
			case err, ok := <-w.poller.Errors():
				if !ok {
					return
				}
				w.emitError(err)
			}
		}
	}()

	return w.poller.Start(ctx, target)
}

// handleFsnotifyEvent filters directory noise down to the target file and
// maps the operation.
func (w *FileWatcher) handleFsnotifyEvent(ev fsnotify.Event, target string) {
	if filepath.Base(ev.Name) != filepath.Base(target) {
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod and friends carry no content change.
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      target,
		Operation: op,
		Timestamp: time.Now(),
	})
}

func (w *FileWatcher) forwardDebounced(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(batch) == 0 {
				continue
			}
			w.emitBatch(batch)
		}
	}
}

func (w *FileWatcher) emitBatch(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}

	select {
	case w.events <- batch:
	default:
		count := w.droppedBatches.Add(1)
		slog.Warn("watcher event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (w *FileWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}

	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher and releases resources.
// Safe to call multiple times.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()

	if w.useFsnotify && w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.poller != nil {
		_ = w.poller.Stop()
	}

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of batched file events.
func (w *FileWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *FileWatcher) Errors() <-chan error {
	return w.errors
}

// DroppedBatches reports batches dropped due to a full event buffer.
func (w *FileWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// WatcherType reports which mechanism is active, "fsnotify" or "polling".
func (w *FileWatcher) WatcherType() string {
	if w.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// Target returns the absolute path being watched.
func (w *FileWatcher) Target() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.target
}
