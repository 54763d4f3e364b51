package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Sweeper is implemented by tiers that support expiry sweeps.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type opKind int

const (
	opSet opKind = iota
	opFlush
)

type writeOp struct {
	kind  opKind
	key   string
	entry *Entry
	ack   chan struct{}
}

// MultiTier composes the fast in-process tier with an optional shared tier
// behind the Store contract. Reads fall through fast -> shared and promote
// shared hits into the fast tier. Shared writes are applied asynchronously
// so a slow or unhealthy backend never stalls a request; shared read errors
// degrade to a miss.
type MultiTier struct {
	fast   Store
	shared Store

	mu       sync.RWMutex
	closed   bool
	writeCh  chan writeOp
	writerWG sync.WaitGroup

	writeTimeout  time.Duration
	maintInterval time.Duration
	stopMaint     chan struct{}
	maintDone     chan struct{}
	maintStarted  bool

	fastHits   atomic.Int64
	sharedHits atomic.Int64
	misses     atomic.Int64
	writeDrops atomic.Int64
}

var _ Store = (*MultiTier)(nil)

// MultiTierOption configures a MultiTier.
type MultiTierOption func(*MultiTier)

// WithSharedTier attaches the shared backend tier.
func WithSharedTier(shared Store) MultiTierOption {
	return func(m *MultiTier) {
		m.shared = shared
	}
}

// WithWriteQueueSize bounds the async shared-write queue. When the queue
// is full new writes are dropped, never blocked on.
func WithWriteQueueSize(n int) MultiTierOption {
	return func(m *MultiTier) {
		if n > 0 {
			m.writeCh = make(chan writeOp, n)
		}
	}
}

// WithMaintenanceInterval sets how often the shared tier is swept.
// Zero disables periodic maintenance.
func WithMaintenanceInterval(d time.Duration) MultiTierOption {
	return func(m *MultiTier) {
		m.maintInterval = d
	}
}

// NewMultiTier builds the tiered cache over the given fast tier.
func NewMultiTier(fast Store, opts ...MultiTierOption) *MultiTier {
	m := &MultiTier{
		fast:          fast,
		writeCh:       make(chan writeOp, 256),
		writeTimeout:  5 * time.Second,
		maintInterval: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.writerWG.Add(1)
	go m.writer()

	return m
}

// writer applies queued shared-tier writes in order until the queue closes.
func (m *MultiTier) writer() {
	defer m.writerWG.Done()

	for op := range m.writeCh {
		switch op.kind {
		case opSet:
			if m.shared == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
			if err := m.shared.Set(ctx, op.key, op.entry); err != nil {
				slog.Warn("cache_shared_write_failed",
					slog.String("key", op.key),
					slog.String("error", err.Error()))
			}
			cancel()
		case opFlush:
			close(op.ack)
		}
	}
}

// enqueueSet queues a shared write, dropping it when the queue is full.
func (m *MultiTier) enqueueSet(key string, entry *Entry) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed || m.shared == nil {
		return
	}
	select {
	case m.writeCh <- writeOp{kind: opSet, key: key, entry: entry}:
	default:
		m.writeDrops.Add(1)
		slog.Warn("cache_shared_write_dropped", slog.String("key", key))
	}
}

// flush blocks until every previously queued write has been applied.
// Deletes and invalidations flush first so a queued Set cannot overtake
// them and resurrect a removed entry.
func (m *MultiTier) flush(ctx context.Context) error {
	m.mu.RLock()
	if m.closed || m.shared == nil {
		m.mu.RUnlock()
		return nil
	}
	op := writeOp{kind: opFlush, ack: make(chan struct{})}
	select {
	case m.writeCh <- op:
		m.mu.RUnlock()
	case <-ctx.Done():
		m.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-op.ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get reads fast tier first, then shared. A shared hit is promoted into
// the fast tier with its original lifetime. Tier errors are logged and
// degrade to a miss.
func (m *MultiTier) Get(ctx context.Context, key string) (*Entry, bool, error) {
	entry, ok, err := m.fast.Get(ctx, key)
	if err != nil {
		slog.Warn("cache_fast_read_failed", slog.String("error", err.Error()))
	} else if ok {
		m.fastHits.Add(1)
		return entry, true, nil
	}

	if m.shared == nil {
		m.misses.Add(1)
		return nil, false, nil
	}

	entry, ok, err = m.shared.Get(ctx, key)
	if err != nil {
		slog.Warn("cache_shared_read_failed", slog.String("error", err.Error()))
		m.misses.Add(1)
		return nil, false, nil
	}
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}

	m.sharedHits.Add(1)
	if err := m.fast.Set(ctx, key, entry); err != nil {
		slog.Warn("cache_promote_failed", slog.String("error", err.Error()))
	}
	return entry, true, nil
}

// Set writes the fast tier synchronously and queues the shared write.
func (m *MultiTier) Set(ctx context.Context, key string, entry *Entry) error {
	if err := m.fast.Set(ctx, key, entry); err != nil {
		return err
	}
	m.enqueueSet(key, entry)
	return nil
}

// Delete removes the entry from both tiers synchronously.
func (m *MultiTier) Delete(ctx context.Context, key string) error {
	if err := m.fast.Delete(ctx, key); err != nil {
		return err
	}
	if m.shared == nil {
		return nil
	}
	if err := m.flush(ctx); err != nil {
		return err
	}
	return m.shared.Delete(ctx, key)
}

// InvalidateDependency removes every entry tagged with dep from both
// tiers. The shared tier holds the authoritative population, so its count
// is returned when present.
func (m *MultiTier) InvalidateDependency(ctx context.Context, dep string) (int, error) {
	fastN, err := m.fast.InvalidateDependency(ctx, dep)
	if err != nil {
		return 0, err
	}
	if m.shared == nil {
		return fastN, nil
	}
	if err := m.flush(ctx); err != nil {
		return 0, err
	}
	return m.shared.InvalidateDependency(ctx, dep)
}

// Len returns the authoritative entry count: the shared tier when present,
// the fast tier otherwise.
func (m *MultiTier) Len(ctx context.Context) (int, error) {
	if m.shared != nil {
		return m.shared.Len(ctx)
	}
	return m.fast.Len(ctx)
}

// Start launches background maintenance: the fast tier's expiry sweep and
// a periodic sweep of the shared tier when it supports one.
func (m *MultiTier) Start() {
	if starter, ok := m.fast.(interface{ Start() }); ok {
		starter.Start()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sweeper, ok := m.shared.(Sweeper)
	if !ok || m.maintStarted || m.maintInterval <= 0 {
		return
	}
	m.maintStarted = true
	m.stopMaint = make(chan struct{})
	m.maintDone = make(chan struct{})

	go m.maintLoop(sweeper, m.stopMaint, m.maintDone)
}

func (m *MultiTier) maintLoop(sweeper Sweeper, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(m.maintInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
			if _, err := sweeper.Sweep(ctx); err != nil {
				slog.Warn("cache_maintenance_failed", slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}

// Stats is a point-in-time snapshot of tier effectiveness.
type Stats struct {
	FastHits   int64 `json:"fast_hits"`
	SharedHits int64 `json:"shared_hits"`
	Misses     int64 `json:"misses"`
	WriteDrops int64 `json:"write_drops"`
	FastLen    int   `json:"fast_len"`
	SharedLen  int   `json:"shared_len"`
	HasShared  bool  `json:"has_shared"`
}

// HitRate returns the fraction of reads served from either tier.
func (s Stats) HitRate() float64 {
	total := s.FastHits + s.SharedHits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.FastHits+s.SharedHits) / float64(total)
}

// Stats returns counters and tier sizes.
func (m *MultiTier) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		FastHits:   m.fastHits.Load(),
		SharedHits: m.sharedHits.Load(),
		Misses:     m.misses.Load(),
		WriteDrops: m.writeDrops.Load(),
		HasShared:  m.shared != nil,
	}

	n, err := m.fast.Len(ctx)
	if err != nil {
		return stats, err
	}
	stats.FastLen = n

	if m.shared != nil {
		n, err := m.shared.Len(ctx)
		if err != nil {
			return stats, err
		}
		stats.SharedLen = n
	}
	return stats, nil
}

// Close drains queued shared writes, then closes both tiers.
func (m *MultiTier) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.maintStarted {
		close(m.stopMaint)
		m.maintStarted = false
	}
	close(m.writeCh)
	m.mu.Unlock()

	if m.maintDone != nil {
		<-m.maintDone
	}
	m.writerWG.Wait()

	var firstErr error
	if err := m.fast.Close(); err != nil {
		firstErr = err
	}
	if m.shared != nil {
		if err := m.shared.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
