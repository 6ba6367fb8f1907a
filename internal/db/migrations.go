package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations
var migrationFS embed.FS

// errNoTable is returned by tableColumns for a table that does not exist.
var errNoTable = errors.New("table does not exist")

// Migrate applies the versioned schema migrations for the database's
// dialect. Tables left by older deployments get their missing columns
// first, since the migrations index some of them.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	dialect := db.DriverName()

	src, err := iofs.New(migrationFS, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("loading %s migrations: %w", dialect, err)
	}

	var driver database.Driver
	switch dialect {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	case DriverPostgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	default:
		return fmt.Errorf("unsupported database driver %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("preparing migration driver: %w", err)
	}

	// Not closing m: its Close would close the shared *sql.DB.
	m, err := migrate.NewWithInstance("iofs", src, dialect, driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := ensureColumns(ctx, db, true); err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading schema version: %w", err)
	}
	slog.Info("database schema up to date", "version", version, "dirty", dirty)

	return EnsureColumns(ctx, db)
}

// column is a column that databases created before versioned migrations
// may be missing.
type column struct {
	table    string
	name     string
	sqlite   string
	postgres string
}

// legacyColumns is grouped by table; EnsureColumns reads each table's
// columns once, on first use.
var legacyColumns = []column{
	{"users", "request_admin", "BOOLEAN NOT NULL DEFAULT FALSE", "BOOLEAN NOT NULL DEFAULT FALSE"},
	{"users", "status", "TEXT NOT NULL DEFAULT 'Active'", "TEXT NOT NULL DEFAULT 'Active'"},
	{"users", "created_at", "DATETIME", "TIMESTAMPTZ DEFAULT NOW()"},

	{"items", "reported_by", "TEXT NOT NULL DEFAULT 'Unknown'", "TEXT NOT NULL DEFAULT 'Unknown'"},
	// SQLite refuses ADD COLUMN ... REFERENCES with a non-NULL default while
	// foreign keys are enabled, so only Postgres gets the constraint here.
	{"items", "user_id", "INTEGER NOT NULL DEFAULT 1", "BIGINT NOT NULL DEFAULT 1 REFERENCES users(id) ON DELETE CASCADE"},
	{"items", "image", "TEXT", "TEXT"},
	{"items", "date_reported", "DATETIME", "TIMESTAMPTZ DEFAULT NOW()"},

	{"claims", "claimant_username", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"claims", "date_submitted", "DATETIME", "TIMESTAMPTZ DEFAULT NOW()"},
	{"claims", "approver_username", "TEXT", "TEXT"},
	{"claims", "date_approved", "DATETIME", "TIMESTAMPTZ"},
}

// EnsureColumns adds every legacy column that the live schema lacks. The
// check is done by introspection, so running it repeatedly is a no-op.
func EnsureColumns(ctx context.Context, db *sqlx.DB) error {
	return ensureColumns(ctx, db, false)
}

// ensureColumns backfills legacy columns. With skipMissing, tables that do
// not exist yet are left for the migrations to create.
func ensureColumns(ctx context.Context, db *sqlx.DB, skipMissing bool) error {
	known := make(map[string]map[string]bool)

	for _, c := range legacyColumns {
		cols, ok := known[c.table]
		if !ok {
			var err error
			cols, err = tableColumns(ctx, db, c.table)
			if skipMissing && errors.Is(err, errNoTable) {
				cols = nil
			} else if err != nil {
				return err
			}
			known[c.table] = cols
		}
		if cols == nil || cols[c.name] {
			continue
		}

		def := c.sqlite
		if db.DriverName() == DriverPostgres {
			def = c.postgres
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.name, def)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", c.table, c.name, err)
		}
		cols[c.name] = true
		slog.Info("added missing column", "table", c.table, "column", c.name)
	}

	return nil
}

func tableColumns(ctx context.Context, db *sqlx.DB, table string) (map[string]bool, error) {
	var query string
	switch db.DriverName() {
	case DriverPostgres:
		query = `SELECT column_name FROM information_schema.columns
		         WHERE table_schema = current_schema() AND table_name = $1`
	default:
		query = `SELECT name FROM pragma_table_info(?)`
	}

	var names []string
	if err := db.SelectContext(ctx, &names, query, table); err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("reading columns of %s: %w", table, errNoTable)
	}

	cols := make(map[string]bool, len(names))
	for _, n := range names {
		cols[n] = true
	}
	return cols, nil
}
