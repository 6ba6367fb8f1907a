package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers as "sqlite"; keep ? placeholders for it in Rebind.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config describes how to reach the database.
type Config struct {
	Driver   string
	Path     string // sqlite only
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// sqlitePragmas are applied by the driver to every pooled connection.
var sqlitePragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// DSN builds the driver-specific data source name.
func (c Config) DSN() (string, error) {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return "", fmt.Errorf("sqlite path is empty")
		}
		q := url.Values{}
		for _, p := range sqlitePragmas {
			q.Add("_pragma", p)
		}
		return c.Path + "?" + q.Encode(), nil
	case DriverPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   c.Host + ":" + strconv.Itoa(c.Port),
			Path:   "/" + c.Name,
		}
		q := url.Values{}
		if c.SSLMode != "" {
			q.Set("sslmode", c.SSLMode)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// String describes the target without the password, for logs.
func (c Config) String() string {
	if c.Driver == DriverSQLite {
		return fmt.Sprintf("sqlite:%s", c.Path)
	}
	pw := "(empty)"
	if c.Password != "" {
		pw = "****"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, pw, c.Host, c.Port, c.Name)
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	slog.Info("connecting to database", "target", cfg.String())

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		slog.Error("database driver unavailable", "driver", cfg.Driver, "error", err)
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		slog.Error("database connection failed", "target", cfg.String(), "error", err)
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	slog.Info("database connection established", "target", cfg.String())
	return db, nil
}
