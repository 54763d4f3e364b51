package cache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

// fakeShared is an in-memory Store stand-in for the shared tier with
// failure injection and call tracking.
type fakeShared struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	getErr   error
	getCalls int
	inSet    chan struct{}
	release  chan struct{}
}

func newFakeShared() *fakeShared {
	return &fakeShared{entries: make(map[string]*Entry)}
}

var _ Store = (*fakeShared)(nil)

func (f *fakeShared) Get(_ context.Context, key string) (*Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	entry, ok := f.entries[key]
	return entry, ok, nil
}

func (f *fakeShared) Set(_ context.Context, key string, entry *Entry) error {
	if f.inSet != nil {
		f.inSet <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = entry
	return nil
}

func (f *fakeShared) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *fakeShared) InvalidateDependency(_ context.Context, dep string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for key, entry := range f.entries {
		for _, d := range entry.Dependencies {
			if d == dep {
				delete(f.entries, key)
				removed++
				break
			}
		}
	}
	return removed, nil
}

func (f *fakeShared) Len(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries), nil
}

func (f *fakeShared) Close() error { return nil }

func (f *fakeShared) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[key]
	return ok
}

func newTestMultiTier(t *testing.T, shared Store) *MultiTier {
	t.Helper()
	fast, err := NewMemoryStore(32)
	require.NoError(t, err)

	var opts []MultiTierOption
	if shared != nil {
		opts = append(opts, WithSharedTier(shared))
	}
	return NewMultiTier(fast, opts...)
}

// TS04: Tier Fall-Through and Promotion
func TestMultiTier_SharedHitPromotesToFastTier(t *testing.T) {
	// Given: an entry living only in the shared tier
	shared := newFakeShared()
	shared.entries["k1"] = &Entry{
		Data: json.RawMessage(`{"n":1}`), CreatedAt: time.Now(), TTL: time.Hour,
	}

	mt := newTestMultiTier(t, shared)
	defer func() { _ = mt.Close() }()

	ctx := context.Background()

	// When: the first read falls through to the shared tier
	entry, ok, err := mt.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"n":1}`, string(entry.Data))

	// Then: the second read is served from the fast tier
	_, ok, err = mt.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, shared.getCalls)

	stats, err := mt.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SharedHits)
	assert.Equal(t, int64(1), stats.FastHits)
}

func TestMultiTier_SharedErrorDegradesToMiss(t *testing.T) {
	// Given: a shared tier that fails every read
	shared := newFakeShared()
	shared.getErr = eserrors.CacheError("backend down", nil)

	mt := newTestMultiTier(t, shared)
	defer func() { _ = mt.Close() }()

	// When: a read falls through to the failing tier
	_, ok, err := mt.Get(context.Background(), "k1")

	// Then: the caller sees a plain miss, never the backend error
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := mt.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestMultiTier_SetReachesSharedTierAsync(t *testing.T) {
	shared := newFakeShared()
	mt := newTestMultiTier(t, shared)
	defer func() { _ = mt.Close() }()

	ctx := context.Background()
	require.NoError(t, mt.Set(ctx, "k1", &Entry{
		Data: json.RawMessage(`1`), CreatedAt: time.Now(),
	}))

	// The fast tier sees the write immediately.
	_, ok, err := mt.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	// The shared tier catches up asynchronously.
	assert.Eventually(t, func() bool { return shared.has("k1") },
		time.Second, 5*time.Millisecond)
}

func TestMultiTier_DeleteFlushesQueuedWrites(t *testing.T) {
	shared := newFakeShared()
	mt := newTestMultiTier(t, shared)
	defer func() { _ = mt.Close() }()

	ctx := context.Background()

	// Given: a write still sitting in the async queue
	require.NoError(t, mt.Set(ctx, "k1", &Entry{
		Data: json.RawMessage(`1`), CreatedAt: time.Now(),
	}))

	// When: the key is deleted right away
	require.NoError(t, mt.Delete(ctx, "k1"))

	// Then: the queued write cannot resurrect the entry in either tier
	assert.False(t, shared.has("k1"))
	_, ok, err := mt.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMultiTier_InvalidateDependencyCoversBothTiers(t *testing.T) {
	shared := newFakeShared()
	mt := newTestMultiTier(t, shared)
	defer func() { _ = mt.Close() }()

	ctx := context.Background()
	require.NoError(t, mt.Set(ctx, "k1", &Entry{
		Data: json.RawMessage(`1`), CreatedAt: time.Now(),
		Dependencies: []string{"provider:serper"},
	}))
	require.NoError(t, mt.Set(ctx, "k2", &Entry{
		Data: json.RawMessage(`2`), CreatedAt: time.Now(),
		Dependencies: []string{"provider:local"},
	}))

	// When: one provider's entries are invalidated
	removed, err := mt.InvalidateDependency(ctx, "provider:serper")
	require.NoError(t, err)

	// Then: the shared count is authoritative and both tiers dropped it
	assert.Equal(t, 1, removed)
	assert.False(t, shared.has("k1"))
	assert.True(t, shared.has("k2"))

	_, ok, err := mt.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMultiTier_FastOnlyWithoutSharedTier(t *testing.T) {
	mt := newTestMultiTier(t, nil)
	defer func() { _ = mt.Close() }()

	ctx := context.Background()
	require.NoError(t, mt.Set(ctx, "k1", &Entry{
		Data: json.RawMessage(`1`), CreatedAt: time.Now(),
		Dependencies: []string{"provider:serper"},
	}))

	_, ok, err := mt.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := mt.InvalidateDependency(ctx, "provider:serper")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	n, err := mt.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stats, err := mt.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, stats.HasShared)
}

func TestMultiTier_CloseDrainsQueuedWrites(t *testing.T) {
	shared := newFakeShared()
	mt := newTestMultiTier(t, shared)

	require.NoError(t, mt.Set(context.Background(), "k1", &Entry{
		Data: json.RawMessage(`1`), CreatedAt: time.Now(),
	}))

	// When: the cache shuts down
	require.NoError(t, mt.Close())

	// Then: the queued write landed before the writer exited
	assert.True(t, shared.has("k1"))

	// And: a second close is a no-op
	require.NoError(t, mt.Close())
}

func TestMultiTier_FullWriteQueueDropsNewWrites(t *testing.T) {
	// Given: a single-slot queue and a shared tier stuck mid-write
	shared := newFakeShared()
	shared.inSet = make(chan struct{}, 8)
	shared.release = make(chan struct{})

	fast, err := NewMemoryStore(32)
	require.NoError(t, err)
	mt := NewMultiTier(fast, WithSharedTier(shared), WithWriteQueueSize(1))

	ctx := context.Background()
	require.NoError(t, mt.Set(ctx, "k1", &Entry{Data: json.RawMessage(`1`), CreatedAt: time.Now()}))
	<-shared.inSet // writer is now blocked inside the shared Set

	require.NoError(t, mt.Set(ctx, "k2", &Entry{Data: json.RawMessage(`2`), CreatedAt: time.Now()}))
	require.NoError(t, mt.Set(ctx, "k3", &Entry{Data: json.RawMessage(`3`), CreatedAt: time.Now()}))

	// Then: the overflow write was dropped, not blocked on
	stats, err := mt.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.WriteDrops)

	// And: the fast tier still served every write
	_, ok, _ := mt.Get(ctx, "k3")
	assert.True(t, ok)

	close(shared.release)
	require.NoError(t, mt.Close())
}

func TestMultiTier_HitRate(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.HitRate())
	assert.InDelta(t, 0.75, Stats{FastHits: 2, SharedHits: 1, Misses: 1}.HitRate(), 0.001)
}

func TestMultiTier_SweepsSharedTierPeriodically(t *testing.T) {
	// Given: a real SQLite shared tier with an expired entry
	shared, err := NewSQLiteStore("")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, shared.Set(ctx, "stale", &Entry{
		Data: json.RawMessage(`1`), CreatedAt: time.Now(), TTL: time.Millisecond,
	}))

	fast, err := NewMemoryStore(32)
	require.NoError(t, err)
	mt := NewMultiTier(fast,
		WithSharedTier(shared),
		WithMaintenanceInterval(20*time.Millisecond))
	defer func() { _ = mt.Close() }()

	// When: maintenance starts
	mt.Start()

	// Then: the expired entry is swept without any read touching it
	assert.Eventually(t, func() bool {
		n, err := shared.Len(ctx)
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)
}
