package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher watches one file by periodically comparing its stat
// signature. Used as a fallback when fsnotify is not available.
type PollingWatcher struct {
	interval time.Duration
	events   chan FileEvent
	errors   chan error
	stopCh   chan struct{}
	mu       sync.Mutex
	stopped  bool

	target string
	last   fileSnapshot
	exists bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher with the given interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		events:   make(chan FileEvent, 16),
		errors:   make(chan error, 4),
		stopCh:   make(chan struct{}),
	}
}

// Start polls the given file until Stop or context cancellation. Blocks;
// run it on its own goroutine.
func (p *PollingWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	p.target = absPath

	// Baseline; a missing file is a valid start state.
	if info, err := os.Stat(absPath); err == nil {
		p.last = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		p.exists = true
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.detectChange()
		}
	}
}

// detectChange compares the current stat signature with the baseline.
func (p *PollingWatcher) detectChange() {
	info, err := os.Stat(p.target)
	switch {
	case err != nil && os.IsNotExist(err):
		if p.exists {
			p.exists = false
			p.emit(OpDelete)
		}
	case err != nil:
		p.emitErr(err)
	case !p.exists:
		p.exists = true
		p.last = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		p.emit(OpCreate)
	case info.ModTime() != p.last.modTime || info.Size() != p.last.size:
		p.last = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		p.emit(OpModify)
	}
}

// emit sends under mu so a concurrent Stop cannot close the channel
// mid-send.
func (p *PollingWatcher) emit(op Operation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	select {
	case p.events <- FileEvent{Path: p.target, Operation: op, Timestamp: time.Now()}:
	default:
	}
}

func (p *PollingWatcher) emitErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	select {
	case p.errors <- err:
	default:
	}
}

// Stop stops the polling watcher. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}

	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}
