package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize is the default bound of the in-process tier.
const DefaultMemorySize = 512

// MemoryStore is the fast in-process tier: bounded LRU with per-entry TTL,
// a dependency index for group invalidation, and a periodic expiry sweep.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Entry]

	// byDep maps dependency tag -> keys; byKey mirrors it for cleanup on
	// eviction. Both are only touched under mu; the LRU eviction callback
	// runs inside our own Add/Remove calls, so it is covered by mu too.
	byDep map[string]map[string]struct{}
	byKey map[string][]string

	sweepInterval time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}
	started       bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithSweepInterval sets how often expired entries are swept.
// Zero disables the background sweep (expiry still applies on Get).
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.sweepInterval = d
	}
}

// NewMemoryStore creates the in-process tier with the given entry bound.
func NewMemoryStore(size int, opts ...MemoryOption) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}

	s := &MemoryStore{
		byDep:         make(map[string]map[string]struct{}),
		byKey:         make(map[string][]string),
		sweepInterval: 5 * time.Minute,
	}

	cache, err := lru.NewWithEvict[string, *Entry](size, func(key string, _ *Entry) {
		s.unindex(key)
	})
	if err != nil {
		return nil, err
	}
	s.cache = cache

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

var _ Store = (*MemoryStore)(nil)

// unindex drops key from the dependency index. Callers hold mu.
func (s *MemoryStore) unindex(key string) {
	for _, dep := range s.byKey[key] {
		if keys := s.byDep[dep]; keys != nil {
			delete(keys, key)
			if len(keys) == 0 {
				delete(s.byDep, dep)
			}
		}
	}
	delete(s.byKey, key)
}

// Get returns the entry for key, removing it first if its TTL has lapsed.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if entry.Expired(time.Now()) {
		s.cache.Remove(key)
		return nil, false, nil
	}
	return entry, true, nil
}

// Set writes the entry and records its dependency edges.
func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Replace any previous edges for this key.
	if _, ok := s.cache.Peek(key); ok {
		s.unindex(key)
	}
	s.cache.Add(key, entry)

	if len(entry.Dependencies) > 0 {
		s.byKey[key] = entry.Dependencies
		for _, dep := range entry.Dependencies {
			keys := s.byDep[dep]
			if keys == nil {
				keys = make(map[string]struct{})
				s.byDep[dep] = keys
			}
			keys[key] = struct{}{}
		}
	}
	return nil
}

// Delete removes the entry for key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(key)
	return nil
}

// InvalidateDependency removes every entry tagged with dep.
func (s *MemoryStore) InvalidateDependency(_ context.Context, dep string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.byDep[dep]
	if len(keys) == 0 {
		return 0, nil
	}

	// Collect first: Remove mutates byDep through the eviction callback.
	victims := make([]string, 0, len(keys))
	for key := range keys {
		victims = append(victims, key)
	}
	for _, key := range victims {
		s.cache.Remove(key)
	}
	return len(victims), nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len(), nil
}

// Start launches the background expiry sweep. No-op when the interval is
// zero or the sweep is already running.
func (s *MemoryStore) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.sweepInterval <= 0 {
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.sweepLoop(s.stopCh, s.doneCh)
}

func (s *MemoryStore) sweepLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			removed := s.sweep()
			if removed > 0 {
				slog.Debug("cache_sweep",
					slog.String("tier", "memory"),
					slog.Int("removed", removed))
			}
		}
	}
}

// sweep removes all expired entries and returns how many were dropped.
func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, key := range s.cache.Keys() {
		if entry, ok := s.cache.Peek(key); ok && entry.Expired(now) {
			s.cache.Remove(key)
			removed++
		}
	}
	return removed
}

// Close stops the sweep and drops all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.started {
		close(s.stopCh)
		s.started = false
		done := s.doneCh
		s.mu.Unlock()
		<-done
		s.mu.Lock()
	}
	s.cache.Purge()
	s.mu.Unlock()
	return nil
}
