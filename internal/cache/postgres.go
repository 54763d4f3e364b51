package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

// sweepLockID is the advisory lock key serializing sweeps across processes.
const sweepLockID = int64(0x65_76_73_63) // "evsc"

// PostgresStore is the shared cache tier for deployments where several
// hosts share one cache. pgxpool handles connection concurrency, so the
// store itself carries no locking.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to databaseURL, verifies the connection, and
// ensures the cache schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eserrors.CacheError("parsing database URL", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eserrors.CacheError("creating connection pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eserrors.CacheError("pinging cache database", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, eserrors.CacheError("initializing cache schema", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key        TEXT PRIMARY KEY,
		data       BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		ttl_ns     BIGINT NOT NULL DEFAULT 0,
		expires_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_cache_expires
		ON cache_entries(expires_at) WHERE expires_at IS NOT NULL;

	CREATE TABLE IF NOT EXISTS cache_dependencies (
		dep TEXT NOT NULL,
		key TEXT NOT NULL,
		PRIMARY KEY (dep, key)
	);

	CREATE INDEX IF NOT EXISTS idx_cache_dep_key ON cache_dependencies(key);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Get returns the entry for key, deleting it on the spot if expired.
func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var (
		data    []byte
		created time.Time
		ttlNS   int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT data, created_at, ttl_ns FROM cache_entries WHERE key = $1`,
		key).Scan(&data, &created, &ttlNS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eserrors.CacheError("reading cache entry", err)
	}

	entry := &Entry{
		Data:      data,
		CreatedAt: created,
		TTL:       time.Duration(ttlNS),
	}
	if entry.Expired(time.Now()) {
		if err := s.Delete(ctx, key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT dep FROM cache_dependencies WHERE key = $1 ORDER BY dep`, key)
	if err != nil {
		return nil, false, eserrors.CacheError("reading cache dependencies", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, false, eserrors.CacheError("scanning cache dependency", err)
		}
		entry.Dependencies = append(entry.Dependencies, dep)
	}
	if err := rows.Err(); err != nil {
		return nil, false, eserrors.CacheError("iterating cache dependencies", err)
	}

	return entry, true, nil
}

// Set writes the entry and replaces its dependency edges.
func (s *PostgresStore) Set(ctx context.Context, key string, entry *Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eserrors.CacheError("beginning cache transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var expires *time.Time
	if entry.TTL > 0 {
		t := entry.CreatedAt.Add(entry.TTL)
		expires = &t
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO cache_entries (key, data, created_at, ttl_ns, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET
			data = EXCLUDED.data,
			created_at = EXCLUDED.created_at,
			ttl_ns = EXCLUDED.ttl_ns,
			expires_at = EXCLUDED.expires_at`,
		key, []byte(entry.Data), entry.CreatedAt, int64(entry.TTL), expires); err != nil {
		return eserrors.CacheError("writing cache entry", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM cache_dependencies WHERE key = $1`, key); err != nil {
		return eserrors.CacheError("clearing cache dependencies", err)
	}
	for _, dep := range entry.Dependencies {
		if _, err := tx.Exec(ctx,
			`INSERT INTO cache_dependencies (dep, key) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, dep, key); err != nil {
			return eserrors.CacheError("writing cache dependency", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eserrors.CacheError("committing cache write", err)
	}
	return nil
}

// Delete removes the entry and its dependency edges.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eserrors.CacheError("beginning cache transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM cache_entries WHERE key = $1`, key); err != nil {
		return eserrors.CacheError("deleting cache entry", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM cache_dependencies WHERE key = $1`, key); err != nil {
		return eserrors.CacheError("deleting cache dependencies", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return eserrors.CacheError("committing cache delete", err)
	}
	return nil
}

// InvalidateDependency removes every entry tagged with dep.
func (s *PostgresStore) InvalidateDependency(ctx context.Context, dep string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eserrors.CacheError("beginning cache transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`DELETE FROM cache_entries
		 WHERE key IN (SELECT key FROM cache_dependencies WHERE dep = $1)`, dep)
	if err != nil {
		return 0, eserrors.CacheError("deleting dependent entries", err)
	}
	removed := int(tag.RowsAffected())

	if _, err := tx.Exec(ctx,
		`DELETE FROM cache_dependencies
		 WHERE key IN (SELECT key FROM cache_dependencies WHERE dep = $1)`, dep); err != nil {
		return 0, eserrors.CacheError("deleting dependency edges", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eserrors.CacheError("committing invalidation", err)
	}
	return removed, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, eserrors.CacheError("counting cache entries", err)
	}
	return n, nil
}

// Sweep deletes expired entries and orphaned dependency edges. An advisory
// lock keeps hosts sharing the database from sweeping at the same time;
// when another host holds it the sweep is skipped and (0, nil) returned.
func (s *PostgresStore) Sweep(ctx context.Context) (int, error) {
	// Advisory locks are session-scoped, so pin one connection for the
	// lock, the sweep, and the unlock.
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, eserrors.CacheError("acquiring sweep connection", err)
	}
	defer conn.Release()

	var got bool
	if err := conn.QueryRow(ctx,
		`SELECT pg_try_advisory_lock($1)`, sweepLockID).Scan(&got); err != nil {
		return 0, eserrors.CacheError("acquiring sweep lock", err)
	}
	if !got {
		return 0, nil
	}
	defer func() {
		_, _ = conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, sweepLockID)
	}()

	tag, err := conn.Exec(ctx,
		`DELETE FROM cache_entries
		 WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, eserrors.CacheError("sweeping expired entries", err)
	}
	removed := int(tag.RowsAffected())

	if _, err := conn.Exec(ctx,
		`DELETE FROM cache_dependencies
		 WHERE key NOT IN (SELECT key FROM cache_entries)`); err != nil {
		return 0, eserrors.CacheError("sweeping orphaned dependencies", err)
	}

	if removed > 0 {
		slog.Debug("cache_sweep",
			slog.String("tier", "postgres"),
			slog.Int("removed", removed))
	}
	return removed, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
