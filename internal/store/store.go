// Package store provides the image-set database behind imagebatch. One table
// holds one row per image or video file; SQLite is the default driver and
// MySQL is supported for shared installations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/dbsmedya/imagebatch/internal/config"
	"github.com/dbsmedya/imagebatch/internal/logger"
	"github.com/dbsmedya/imagebatch/internal/sqlutil"
)

// Driver names accepted in store.driver.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Options tunes a Store built around an existing *sql.DB.
type Options struct {
	Driver          string
	Table           string
	OrderBy         string
	BatchDeleteSize int
}

// Store reads record snapshots and commits staged batches. A run's worker
// goroutine is the only writer while the run is active.
type Store struct {
	db              *sql.DB
	driver          string
	table           string // unquoted
	orderBy         string
	batchDeleteSize int
	path            string
	logger          *logger.Logger
}

// Open connects to the configured database. SQLite files are created on
// demand and the file table is created when missing.
func Open(ctx context.Context, cfg *config.StoreConfig, orderBy string, log *logger.Logger) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store config is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	if !sqlutil.IsValidIdentifier(cfg.Table) {
		return nil, &sqlutil.InvalidIdentifierError{Name: cfg.Table}
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(ctx, cfg.Path)
	case DriverMySQL:
		db, err = connectWithRetry(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	s := New(db, Options{
		Driver:          driver,
		Table:           cfg.Table,
		OrderBy:         orderBy,
		BatchDeleteSize: cfg.BatchDeleteSize,
	}, log)
	s.path = cfg.Path

	if driver == DriverSQLite {
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	log.Debugf("Opened %s store (table %q)", driver, cfg.Table)
	return s, nil
}

// New wraps an already opened database.
func New(db *sql.DB, opts Options, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	if opts.Table == "" {
		opts.Table = "file_data"
	}
	if opts.BatchDeleteSize <= 0 {
		opts.BatchDeleteSize = 500
	}
	return &Store{
		db:              db,
		driver:          opts.Driver,
		table:           opts.Table,
		orderBy:         opts.OrderBy,
		batchDeleteSize: opts.BatchDeleteSize,
		logger:          log,
	}
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// busy_timeout is per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	return db, nil
}

// minMySQLConns leaves one connection free while the run lock holds another.
const minMySQLConns = 2

func configurePool(db *sql.DB, cfg *config.StoreConfig) {
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(max(cfg.MaxConnections, minMySQLConns))
	}
	db.SetConnMaxLifetime(10 * time.Minute)
}

// connectWithRetry attempts to connect with exponential backoff.
func connectWithRetry(ctx context.Context, cfg *config.StoreConfig) (*sql.DB, error) {
	var err error

	maxRetries := 3
	backoff := time.Second

	for i := 0; i < maxRetries; i++ {
		var db *sql.DB
		db, err = sql.Open(DriverMySQL, BuildDSN(cfg))
		if err == nil {
			configurePool(db, cfg)

			pingErr := db.PingContext(ctx)
			if pingErr == nil {
				return db, nil
			}
			_ = db.Close()
			err = pingErr
		}

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to mysql after %d retries: %w", maxRetries, err)
}

// BuildDSN constructs a MySQL DSN from configuration.
func BuildDSN(cfg *config.StoreConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	if cfg.Database != "" {
		dsn += cfg.Database
	}

	params := "?parseTime=false"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Table returns the unquoted name of the file table.
func (s *Store) Table() string {
	return s.table
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the SQLite database file, or "" for MySQL.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store ping failed: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) quotedTable() string {
	return sqlutil.QuoteIdentifier(s.table)
}
