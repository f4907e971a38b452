// Package sqlite is the embedded single-file store. It mirrors the postgres
// package over database/sql with the modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Rrens/crm/internal/repository"
	"github.com/Rrens/crm/migrations"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so TEXT ordering matches time ordering.
const (
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
	dateLayout = "2006-01-02"
)

// ulower folds case like strings.ToLower. SQLite's built-in lower() only
// folds ASCII, which leaves Cyrillic names unsearchable.
const ulowerFunc = "ulower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(ulowerFunc, 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return v, nil
		}
	})
}

// DB wraps a single-writer SQLite handle
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path. Use ":memory:"
// for a private in-memory database.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database file path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping verifies database connectivity
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// RunMigrations applies all pending embedded migrations.
func (d *DB) RunMigrations() error {
	m, err := d.NewMigrate()
	if err != nil {
		return err
	}
	// m.Close would close the shared *sql.DB.

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("Database migration: no changes")
			return nil
		}
		return fmt.Errorf("failed to run migrate up: %w", err)
	}

	version, _, _ := m.Version()
	log.Info().Uint("version", version).Msg("Database migration: success")
	return nil
}

// NewMigrate builds a migrator bound to this database handle.
func (d *DB) NewMigrate() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(d.db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// inTx runs fn in a transaction that commits when fn returns nil.
func (d *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

var (
	uniqueIndexName = regexp.MustCompile(`UNIQUE constraint failed: index '([^']+)'`)
	uniqueColumns   = regexp.MustCompile(`UNIQUE constraint failed: ([a-z_.]+(?:, [a-z_.]+)*)`)
)

// indexByColumns names the unique index behind each column list SQLite reports.
var indexByColumns = map[string]string{
	"users.email":                                      "users_email_key",
	"workspaces.slug":                                  "workspaces_slug_key",
	"clients.workspace_id, clients.email":              "clients_email_active_key",
	"clients.workspace_id, clients.phone":              "clients_phone_active_key",
	"individuals.workspace_id, individuals.tax_number": "individuals_tax_number_active_key",
	"companies.workspace_id, companies.tax_id":         "companies_tax_id_active_key",
}

// translateUnique maps a unique violation on a known index to DuplicateEntity.
func translateUnique(err error, values map[string]string) error {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) || sqlErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return err
	}

	msg := sqlErr.Error()
	var index string
	if m := uniqueIndexName.FindStringSubmatch(msg); m != nil {
		index = m[1]
	} else if m := uniqueColumns.FindStringSubmatch(msg); m != nil {
		index = indexByColumns[strings.TrimSpace(m[1])]
	}
	if derr, ok := repository.DuplicateForIndex(index, values); ok {
		return derr
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDatePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date %q: %w", s.String, err)
	}
	return &t, nil
}
