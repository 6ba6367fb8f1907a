// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/erazemk/lostfound/internal/db"
)

// Config holds every setting the server reads at startup.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR,default=:8080"`

	DBDriver   string `env:"DB_DRIVER,default=sqlite"`
	DBPath     string `env:"DB_PATH,default=lostfound.sqlite3"`
	DBHost     string `env:"DB_HOST,default=localhost"`
	DBPort     int    `env:"DB_PORT,default=5432"`
	DBName     string `env:"DB_NAME,default=uep_lost_found"`
	DBUser     string `env:"DB_USER,default=postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBSSLMode  string `env:"DB_SSLMODE,default=disable"`

	UploadDir   string `env:"UPLOAD_DIR,default=uploads"`
	MaxUploadMB int64  `env:"MAX_UPLOAD_MB,default=10"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL,default=24h"`
	CookieSecure  bool          `env:"COOKIE_SECURE,default=false"`

	CORSOrigins        string `env:"CORS_ORIGINS"`
	LoginRatePerMinute int    `env:"LOGIN_RATE_PER_MINUTE,default=10"`

	AdminUsername string `env:"ADMIN_USERNAME,default=admin"`
	AdminEmail    string `env:"ADMIN_EMAIL,default=admin@uep.edu.ph"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	LogPath string `env:"LOG_PATH"`
}

// Load reads envFile (when it exists) into the process environment and
// decodes the result. Variables already set take precedence over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decoding environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case db.DriverSQLite, db.DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", db.DriverSQLite, db.DriverPostgres, c.DBDriver)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.LoginRatePerMinute <= 0 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE must be positive, got %d", c.LoginRatePerMinute)
	}
	return nil
}

// Database returns the connection settings for db.Open.
func (c *Config) Database() db.Config {
	return db.Config{
		Driver:   c.DBDriver,
		Path:     c.DBPath,
		Host:     c.DBHost,
		Port:     c.DBPort,
		Name:     c.DBName,
		User:     c.DBUser,
		Password: c.DBPassword,
		SSLMode:  c.DBSSLMode,
	}
}

// AllowedOrigins splits CORS_ORIGINS on commas, dropping blanks.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// MaxUploadBytes is the request body limit for item reports.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
