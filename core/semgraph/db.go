package semgraph

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DB is the SQLite-backed GraphStore implementation.
//
// Thread Safety: all operations are safe for concurrent use through the
// underlying sql.DB pool; schema migration is serialized by mu.
type DB struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Compile-time interface check.
var _ GraphStore = (*DB)(nil)

// DBConfig configures the database connection pool.
//
// MaxIdleConns should typically be 40-50% of MaxOpenConns to balance
// connection reuse with resource consumption.
type DBConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Connection pool configuration bounds.
const (
	// MinOpenConns is the minimum allowed value for MaxOpenConns.
	MinOpenConns = 1
	// MaxOpenConnsLimit is the maximum allowed value for MaxOpenConns.
	MaxOpenConnsLimit = 200
	// DefaultMaxOpenConns is suitable for moderate workloads.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is 40% of DefaultMaxOpenConns for good reuse.
	DefaultMaxIdleConns = 10
	// DefaultConnMaxLifetime prevents stale connections.
	DefaultConnMaxLifetime = time.Hour
	// DefaultConnMaxIdleTime releases idle connections after inactivity.
	DefaultConnMaxIdleTime = 30 * time.Minute
)

// DefaultDBConfig returns a configuration suitable for moderate workloads.
func DefaultDBConfig(path string) DBConfig {
	return DBConfig{
		Path:            path,
		MaxOpenConns:    DefaultMaxOpenConns,
		MaxIdleConns:    DefaultMaxIdleConns,
		ConnMaxLifetime: DefaultConnMaxLifetime,
		ConnMaxIdleTime: DefaultConnMaxIdleTime,
	}
}

// Validate checks the configuration values and returns an error if invalid.
func (c DBConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("db config: path is required")
	}
	if c.MaxOpenConns < MinOpenConns || c.MaxOpenConns > MaxOpenConnsLimit {
		return fmt.Errorf("db config: MaxOpenConns must be between %d and %d, got %d",
			MinOpenConns, MaxOpenConnsLimit, c.MaxOpenConns)
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("db config: MaxIdleConns must be non-negative, got %d", c.MaxIdleConns)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("db config: MaxIdleConns (%d) cannot exceed MaxOpenConns (%d)",
			c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

// Open opens a database with default configuration.
// Use ":memory:" as the path for an in-memory store.
func Open(path string) (*DB, error) {
	return OpenWithConfig(DefaultDBConfig(path))
}

// OpenWithConfig opens a database with the given configuration.
// The configuration is validated before opening the database.
func OpenWithConfig(config DBConfig) (*DB, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_synchronous=normal", config.Path)
	if config.Path == ":memory:" {
		// WAL is meaningless for in-memory databases, and the pool must be a
		// single connection or each connection sees its own empty database.
		dsn = "file::memory:?_foreign_keys=on"
		config.MaxOpenConns = 1
		config.MaxIdleConns = 1
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", config.Path, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database at %s: %w", config.Path, err)
	}

	store := &DB{
		db:   db,
		path: config.Path,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database at %s: %w", config.Path, err)
	}

	return store, nil
}

func (d *DB) migrate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}
