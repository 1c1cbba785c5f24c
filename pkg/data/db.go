package data

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const (
	DataFileName   string = "bowler.db"
	DriverSQLite   string = "sqlite"
	DriverPostgres string = "postgres"

	sqliteMaxOpenConns = 1
	sqlitePragmas      = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	pingTimeout        = 10 * time.Second

	createVersionTableSQL = `CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at BIGINT NOT NULL
		)
	`

	selectVersionSQL = `SELECT COALESCE(MAX(version), 0) FROM schema_version`

	insertVersionSQL = `INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`
)

var (
	//go:embed sql/*
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")

	// ErrGameNotFound is returned when no game matches the requested id.
	ErrGameNotFound = errors.New("game not found")
)

// Store persists game records in SQLite or PostgreSQL.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and applies any pending migrations.
// For SQLite the dsn is a file path.
func Open(driver, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("database dsn not specified")
	}

	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, errors.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", driver)
	}

	// sqlite allows a single writer, share one connection
	if driver == DriverSQLite {
		db.SetMaxOpenConns(sqliteMaxOpenConns)
	}

	s := &Store{db: db, driver: driver}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to connect to %s database", driver)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return s, nil
}

// OpenFile opens (creating if needed) the SQLite database at path.
func OpenFile(path string) (*Store, error) {
	return Open(DriverSQLite, path)
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Driver returns the name of the database driver in use.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Close closes the database if one was previously opened.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createVersionTableSQL); err != nil {
		return errors.Wrap(err, "failed to create schema_version table")
	}

	var current int
	if err := s.db.QueryRowContext(ctx, selectVersionSQL).Scan(&current); err != nil {
		return errors.Wrap(err, "failed to read schema version")
	}

	dir := path.Join("sql", s.driver)
	entries, err := fs.ReadDir(f, dir)
	if err != nil {
		return errors.Wrapf(err, "failed to list migrations in %s", dir)
	}

	for _, e := range entries {
		v, err := migrationVersion(e.Name())
		if err != nil {
			return err
		}
		if v <= current {
			continue
		}

		b, err := f.ReadFile(path.Join(dir, e.Name()))
		if err != nil {
			return errors.Wrapf(err, "failed to read migration %s", e.Name())
		}

		if err := s.applyMigration(ctx, v, string(b)); err != nil {
			return errors.Wrapf(err, "failed to apply migration %s", e.Name())
		}
		slog.Debug("migration applied", "driver", s.driver, "version", v)
	}

	return nil
}

func (s *Store) applyMigration(ctx context.Context, version int, ddl string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to execute schema")
	}

	now := time.Now().UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, s.rebind(insertVersionSQL), version, now); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to record schema version")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// migrationVersion parses the numeric prefix of files named NNN_name.sql.
func migrationVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, errors.Errorf("invalid migration file name: %s", name)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid migration version: %s", name)
	}
	return v, nil
}

// rebind rewrites ? placeholders into the $N form postgres expects.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}

	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sqliteDSN(p string) string {
	if strings.Contains(p, "?") {
		return p
	}
	return p + "?" + sqlitePragmas
}
