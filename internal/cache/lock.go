package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// MaintenanceLock serializes cross-process cache maintenance (expiry
// sweeps, vacuum) for a shared on-disk tier. It is advisory: readers and
// writers never take it, only maintenance does.
type MaintenanceLock struct {
	lock *flock.Flock
	path string
}

// NewMaintenanceLock creates a lock backed by the file at path.
// The file is created on first acquisition and left in place after release.
func NewMaintenanceLock(path string) *MaintenanceLock {
	return &MaintenanceLock{
		lock: flock.New(path),
		path: path,
	}
}

// TryAcquire attempts the lock without blocking. A false return means
// another process is already doing maintenance and this one should skip.
func (l *MaintenanceLock) TryAcquire() (bool, error) {
	ok, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquiring maintenance lock %s: %w", l.path, err)
	}
	return ok, nil
}

// Acquire blocks until the lock is held or ctx is done.
func (l *MaintenanceLock) Acquire(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := l.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquiring maintenance lock %s: %w", l.path, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release drops the lock. Safe to call when not held.
func (l *MaintenanceLock) Release() error {
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("releasing maintenance lock %s: %w", l.path, err)
	}
	return nil
}

// Held reports whether this process currently holds the lock.
func (l *MaintenanceLock) Held() bool {
	return l.lock.Locked()
}

// Path returns the lock file location.
func (l *MaintenanceLock) Path() string {
	return l.path
}
