package deployment

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	gooseOnce sync.Once
	gooseErr  error
)

// setupGoose configures the package-level goose state once. Migration
// progress is not printed.
func setupGoose() error {
	gooseOnce.Do(func() {
		goose.SetLogger(goose.NopLogger())
		goose.SetBaseFS(migrations)
		gooseErr = goose.SetDialect("sqlite3")
	})
	return gooseErr
}

// OpenSQLite opens the local snapshot database at dsn and applies pending
// migrations. Use ":memory:" for an in-memory database.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if dsn == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := setupGoose(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// SQLiteStore keeps snapshots in a local SQLite database, one row per
// deployment holding the same YAML document the object store uses.
type SQLiteStore struct {
	DB  *sql.DB
	Now func() time.Time
}

// NewSQLiteStore wraps an opened database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db, Now: time.Now}
}

// Load reads the snapshot for name.
func (s *SQLiteStore) Load(ctx context.Context, name string) (*Snapshot, error) {
	var document string
	err := s.DB.QueryRowContext(ctx,
		`SELECT document FROM snapshots WHERE name = ?`, name,
	).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	return DecodeSnapshot([]byte(document))
}

// Save replaces the stored snapshot.
func (s *SQLiteStore) Save(ctx context.Context, snapshot *Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO snapshots (name, document, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		snapshot.Name, string(data), now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// CachedStore reads from Primary and mirrors every successful load and save
// into Cache. When Primary cannot be read the cached copy is returned
// instead. A snapshot Primary reports as missing is never served from the
// cache.
type CachedStore struct {
	Primary Store
	Cache   Store
	// OnFallback is called with the Primary error whenever a load is served
	// from the cache.
	OnFallback func(name string, err error)
}

func (c *CachedStore) Load(ctx context.Context, name string) (*Snapshot, error) {
	snapshot, err := c.Primary.Load(ctx, name)
	if err != nil {
		if c.Cache == nil || errors.Is(err, ErrSnapshotNotFound) {
			return nil, err
		}
		cached, cacheErr := c.Cache.Load(ctx, name)
		if cacheErr != nil {
			return nil, err
		}
		if c.OnFallback != nil {
			c.OnFallback(name, err)
		}
		return cached, nil
	}
	if c.Cache != nil {
		if err := c.Cache.Save(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("failed to cache snapshot: %w", err)
		}
	}
	return snapshot, nil
}

func (c *CachedStore) Save(ctx context.Context, snapshot *Snapshot) error {
	if err := c.Primary.Save(ctx, snapshot); err != nil {
		return err
	}
	if c.Cache != nil {
		return c.Cache.Save(ctx, snapshot)
	}
	return nil
}
