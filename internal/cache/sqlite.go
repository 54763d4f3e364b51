package cache

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

// SQLiteStore is the shared on-disk cache tier. WAL mode lets several
// eventscout processes on one machine read and write the same cache file;
// the maintenance lock keeps only one of them sweeping at a time.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	maint  *MaintenanceLock
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the shared tier at path.
// An empty path creates an in-memory store for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	var maint *MaintenanceLock
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eserrors.CacheError("creating cache directory "+dir, err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
		maint = NewMaintenanceLock(path + ".maint.lock")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eserrors.CacheError("opening cache database", err)
	}

	// Single connection: one writer, no lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite; set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16384", // 16MB cache (negative = KB)
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eserrors.CacheError("setting pragma", err)
		}
	}

	s := &SQLiteStore{
		db:    db,
		path:  path,
		maint: maint,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, eserrors.CacheError("initializing cache schema", err)
	}

	return s, nil
}

// initSchema creates the cache tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- Cache entries. Timestamps are Unix nanoseconds; expires_at=0 means
	-- the entry never expires.
	CREATE TABLE IF NOT EXISTS cache_entries (
		key        TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		ttl_ns     INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_cache_expires
		ON cache_entries(expires_at) WHERE expires_at > 0;

	-- Dependency edges for group invalidation (e.g. dep='provider:serper').
	CREATE TABLE IF NOT EXISTS cache_dependencies (
		dep TEXT NOT NULL,
		key TEXT NOT NULL,
		PRIMARY KEY (dep, key)
	);

	CREATE INDEX IF NOT EXISTS idx_cache_dep_key ON cache_dependencies(key);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get returns the entry for key, deleting it on the spot if expired.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, eserrors.CacheError("cache store is closed", nil)
	}

	var (
		data      []byte
		createdNS int64
		ttlNS     int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, created_at, ttl_ns FROM cache_entries WHERE key = ?`,
		key).Scan(&data, &createdNS, &ttlNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eserrors.CacheError("reading cache entry", err)
	}

	entry := &Entry{
		Data:      data,
		CreatedAt: time.Unix(0, createdNS),
		TTL:       time.Duration(ttlNS),
	}
	if entry.Expired(time.Now()) {
		if err := s.deleteLocked(ctx, key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	deps, err := s.dependenciesOf(ctx, key)
	if err != nil {
		return nil, false, err
	}
	entry.Dependencies = deps

	return entry, true, nil
}

func (s *SQLiteStore) dependenciesOf(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dep FROM cache_dependencies WHERE key = ? ORDER BY dep`, key)
	if err != nil {
		return nil, eserrors.CacheError("reading cache dependencies", err)
	}
	defer rows.Close()

	var deps []string
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, eserrors.CacheError("scanning cache dependency", err)
		}
		deps = append(deps, dep)
	}
	if err := rows.Err(); err != nil {
		return nil, eserrors.CacheError("iterating cache dependencies", err)
	}
	return deps, nil
}

// Set writes the entry and replaces its dependency edges.
func (s *SQLiteStore) Set(ctx context.Context, key string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return eserrors.CacheError("cache store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eserrors.CacheError("beginning cache transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	createdNS := entry.CreatedAt.UnixNano()
	var expiresNS int64
	if entry.TTL > 0 {
		expiresNS = createdNS + int64(entry.TTL)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (key, data, created_at, ttl_ns, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		key, []byte(entry.Data), createdNS, int64(entry.TTL), expiresNS); err != nil {
		return eserrors.CacheError("writing cache entry", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cache_dependencies WHERE key = ?`, key); err != nil {
		return eserrors.CacheError("clearing cache dependencies", err)
	}
	for _, dep := range entry.Dependencies {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO cache_dependencies (dep, key) VALUES (?, ?)`,
			dep, key); err != nil {
			return eserrors.CacheError("writing cache dependency", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return eserrors.CacheError("committing cache write", err)
	}
	return nil
}

// Delete removes the entry and its dependency edges.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return eserrors.CacheError("cache store is closed", nil)
	}
	return s.deleteLocked(ctx, key)
}

func (s *SQLiteStore) deleteLocked(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eserrors.CacheError("beginning cache transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return eserrors.CacheError("deleting cache entry", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cache_dependencies WHERE key = ?`, key); err != nil {
		return eserrors.CacheError("deleting cache dependencies", err)
	}

	if err := tx.Commit(); err != nil {
		return eserrors.CacheError("committing cache delete", err)
	}
	return nil
}

// InvalidateDependency removes every entry tagged with dep.
func (s *SQLiteStore) InvalidateDependency(ctx context.Context, dep string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, eserrors.CacheError("cache store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM cache_dependencies WHERE dep = ?`, dep)
	if err != nil {
		return 0, eserrors.CacheError("reading dependency keys", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return 0, eserrors.CacheError("scanning dependency key", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, eserrors.CacheError("iterating dependency keys", err)
	}
	rows.Close()

	if len(keys) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eserrors.CacheError("beginning cache transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	entryStmt, err := tx.PrepareContext(ctx,
		`DELETE FROM cache_entries WHERE key = ?`)
	if err != nil {
		return 0, eserrors.CacheError("preparing entry delete", err)
	}
	defer entryStmt.Close()

	depStmt, err := tx.PrepareContext(ctx,
		`DELETE FROM cache_dependencies WHERE key = ?`)
	if err != nil {
		return 0, eserrors.CacheError("preparing dependency delete", err)
	}
	defer depStmt.Close()

	removed := 0
	for _, key := range keys {
		res, err := entryStmt.ExecContext(ctx, key)
		if err != nil {
			return 0, eserrors.CacheError("deleting cache entry", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += int(n)
		}
		if _, err := depStmt.ExecContext(ctx, key); err != nil {
			return 0, eserrors.CacheError("deleting cache dependencies", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eserrors.CacheError("committing invalidation", err)
	}
	return removed, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, eserrors.CacheError("cache store is closed", nil)
	}

	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, eserrors.CacheError("counting cache entries", err)
	}
	return n, nil
}

// Sweep deletes expired entries and orphaned dependency edges. For a
// file-backed store the maintenance lock is tried first; when another
// process already holds it the sweep is skipped and (0, nil) returned.
func (s *SQLiteStore) Sweep(ctx context.Context) (int, error) {
	if s.maint != nil {
		ok, err := s.maint.TryAcquire()
		if err != nil {
			return 0, eserrors.CacheError("acquiring sweep lock", err)
		}
		if !ok {
			return 0, nil
		}
		defer func() { _ = s.maint.Release() }()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, eserrors.CacheError("cache store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eserrors.CacheError("beginning sweep transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at <= ?`,
		time.Now().UnixNano())
	if err != nil {
		return 0, eserrors.CacheError("sweeping expired entries", err)
	}
	removed, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cache_dependencies
		 WHERE key NOT IN (SELECT key FROM cache_entries)`); err != nil {
		return 0, eserrors.CacheError("sweeping orphaned dependencies", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, eserrors.CacheError("committing sweep", err)
	}

	if removed > 0 {
		slog.Debug("cache_sweep",
			slog.String("tier", "sqlite"),
			slog.Int64("removed", removed))
	}
	return int(removed), nil
}

// Close closes the database. Further calls on the store fail.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.db.Close(); err != nil {
		return eserrors.CacheError("closing cache database", err)
	}
	return nil
}

// Path returns the database file location, empty for in-memory stores.
func (s *SQLiteStore) Path() string {
	return s.path
}
