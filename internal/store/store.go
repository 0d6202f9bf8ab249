package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/gg-curator/internal/util"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	currentSchemaVersion = 2
)

// Store is the curation database: one session, its lock manager and id
// allocator, and the entity operations built on them. A Store is not safe
// for concurrent use; open one Store per goroutine or process.
type Store struct {
	db      *sql.DB
	dialect dialect
	session *Session
	locks   *LockManager
	ids     *IDAllocator
}

// OpenOptions holds options for opening a database
type OpenOptions struct {
	Driver           string        // "sqlite" (default) or "postgres"
	NetworkOptimized bool          // Apply pragmas for databases on network filesystems (SQLite)
	BusyTimeout      time.Duration // How long SQLite waits on a locked database; 0 fails immediately
	Trace            Tracer        // Receives every statement sent to the session
	ConnectRetry     *util.RetryConfig
}

// Open opens or creates a SQLite database at the given path with default options
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens a database. For SQLite dsn is a file path, for
// Postgres a connection URL.
func OpenWithOptions(dsn string, opts *OpenOptions) (*Store, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrUnsupported, err)
	}

	if d.name() == "sqlite" {
		journal := "WAL"
		if opts.NetworkOptimized {
			// WAL needs shared memory, which network filesystems do not provide
			journal = "DELETE"
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
			dsn, journal, opts.BusyTimeout.Milliseconds())
	}

	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One live connection per store; the session pins it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if d.name() == "postgres" {
		err := util.Retry(opts.ConnectRetry, func() error {
			return db.PingContext(ctx)
		}, "connect to postgres")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect: %w", err)
		}
	}

	session, err := newSession(ctx, db, d, opts.Trace)
	if err != nil {
		db.Close()
		return nil, err
	}
	locks := newLockManager(session)
	store := &Store{
		db:      db,
		dialect: d,
		session: session,
		locks:   locks,
		ids:     &IDAllocator{session: session, locks: locks},
	}

	if opts.NetworkOptimized && d.name() == "sqlite" {
		if err := store.applyNetworkPragmas(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to apply network pragmas: %w", err)
		}
	}

	if err := store.migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return store, nil
}

// applyNetworkPragmas applies SQLite settings for databases on network filesystems
func (s *Store) applyNetworkPragmas(ctx context.Context) error {
	pragmas := []string{
		// Fewer fsyncs; each one is a network round trip
		"PRAGMA synchronous = NORMAL",

		// Keep scratch tables in memory instead of on the network disk
		"PRAGMA temp_store = MEMORY",

		// 64MB page cache (negative value = KB)
		"PRAGMA cache_size = -64000",
	}

	for _, pragma := range pragmas {
		if _, err := s.session.Exec(ctx, "", pragma); err != nil {
			return err
		}
	}

	return nil
}

// Close releases any held locks and closes the database connection
func (s *Store) Close() error {
	_ = s.locks.Release(context.Background())
	if err := s.session.close(); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to close session: %w", err)
	}
	return s.db.Close()
}

// Driver returns the dialect name ("sqlite" or "postgres")
func (s *Store) Driver() string {
	return s.dialect.name()
}

// Session returns the store's session
func (s *Store) Session() *Session {
	return s.session
}

// Locks returns the store's lock manager
func (s *Store) Locks() *LockManager {
	return s.locks
}

// IDs returns the store's id allocator
func (s *Store) IDs() *IDAllocator {
	return s.ids
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	err = db.QueryRow("SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs the engine's consistency check
func (s *Store) CheckIntegrity(ctx context.Context) error {
	if s.dialect.name() != "sqlite" {
		var one int
		return s.session.QueryRow(ctx, "", "SELECT 1", nil, &one)
	}

	var result string
	if err := s.session.QueryRow(ctx, "", "PRAGMA integrity_check", nil, &result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	var violations int
	if err := s.session.QueryRow(ctx, "", "SELECT COUNT(*) FROM pragma_foreign_key_check", nil, &violations); err != nil {
		return fmt.Errorf("foreign key check failed: %w", err)
	}
	if violations > 0 {
		return fmt.Errorf("integrity check failed: %d foreign key violations", violations)
	}

	return nil
}

// migrate applies database migrations
func (s *Store) migrate(ctx context.Context) error {
	version, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	if version >= currentSchemaVersion {
		return nil
	}

	if err := s.session.begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.session.Rollback(ctx)

	for v := version + 1; v <= currentSchemaVersion; v++ {
		if _, err := s.session.Exec(ctx, "", s.dialect.schema(v)); err != nil {
			return fmt.Errorf("failed to apply schema v%d: %w", v, err)
		}
		if err := s.setSchemaVersion(ctx, v); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	if err := s.session.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (s *Store) getSchemaVersion(ctx context.Context) (int, error) {
	exists, err := s.TableExists(ctx, "schema_version")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = s.session.QueryRow(ctx, "schema_version", "SELECT COALESCE(MAX(version), 0) FROM schema_version", nil, &version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion records a schema version inside the open transaction
func (s *Store) setSchemaVersion(ctx context.Context, version int) error {
	_, err := s.session.Exec(ctx, "schema_version", "INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// SchemaVersion returns the applied schema version
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return s.getSchemaVersion(ctx)
}

// TableExists reports whether a table (including a temporary one) exists
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	if err := s.session.QueryRow(ctx, table, s.dialect.tableExistsQuery(), []any{table}, &n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// writeTx runs fn inside one lock scope: acquire, fn, commit, release.
// Any failure rolls everything back before returning.
func (s *Store) writeTx(ctx context.Context, locks []TableLock, fn func() error) (err error) {
	if err := s.locks.Acquire(ctx, locks...); err != nil {
		return err
	}
	defer func() {
		if rerr := s.locks.Release(ctx); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if err := fn(); err != nil {
		return err
	}
	return s.session.Commit(ctx)
}
