package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/lostfound/internal/api"
	"github.com/erazemk/lostfound/internal/config"
	"github.com/erazemk/lostfound/internal/db"
	"github.com/erazemk/lostfound/internal/jobs"
	"github.com/erazemk/lostfound/internal/service"
	"github.com/erazemk/lostfound/internal/store"
	"github.com/erazemk/lostfound/internal/upload"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	fs := flag.NewFlagSet("lostfound", flag.ContinueOnError)

	var envFile string
	fs.StringVar(&envFile, "env", ".env", "")
	fs.StringVar(&envFile, "e", ".env", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: lostfound [flags]

Settings are read from the environment (see .env.example).

Flags:
  -e, -env <path>    dotenv file to load if present (default: .env)
  -l, -log <path>    log file path, overrides LOG_PATH (default: stdout/stderr only)
  -h, -help          show this help and exit
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if logPath == "" {
		logPath = cfg.LogPath
	}

	closeLog, err := setupLogger(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		if closeLog != nil {
			closeLog()
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	database, err := db.Open(ctx, cfg.Database())
	if err != nil {
		return err
	}
	defer database.Close()

	// Migrations must finish before the listener opens.
	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	secret := cfg.SessionSecret
	if secret == "" {
		secret, err = store.GetSessionSecret(ctx, database)
		if err != nil {
			return fmt.Errorf("loading session secret: %w", err)
		}
	}

	users := service.NewUsers(database)
	if err := seedAdmin(ctx, users, cfg); err != nil {
		return err
	}

	uploads, err := upload.New(cfg.UploadDir)
	if err != nil {
		return err
	}

	limiter := api.NewLoginLimiter(cfg.LoginRatePerMinute)
	runner, err := startJobs(database, limiter)
	if err != nil {
		return err
	}

	handler := api.NewRouter(api.Deps{
		DB:      database,
		Users:   users,
		Items:   service.NewItems(database),
		Claims:  service.NewClaims(database),
		Uploads: uploads,
		Session: api.SessionConfig{
			Secret: secret,
			TTL:    cfg.SessionTTL,
			Secure: cfg.CookieSecure,
		},
		LoginLimiter:   limiter,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		runner.Stop(ctx)
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.ListenAddr, "uploads", uploads.Dir)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// seedAdmin creates the first Admin account. Without ADMIN_PASSWORD a random
// password is generated and printed once.
func seedAdmin(ctx context.Context, users *service.Users, cfg *config.Config) error {
	password := cfg.AdminPassword
	generated := password == ""
	if generated {
		var err error
		if password, err = generatePassword(16); err != nil {
			return fmt.Errorf("generating admin password: %w", err)
		}
	}

	created, err := users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, password)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	slog.Info("admin account created", "user", cfg.AdminUsername)
	if generated {
		printAdminPassword(cfg.AdminUsername, password)
	}
	return nil
}

// startJobs schedules the maintenance jobs and starts the runner.
func startJobs(database *sqlx.DB, limiter *api.LoginLimiter) (*jobs.Runner, error) {
	runner := jobs.New()

	err := runner.Every("@every 1h", "purge-revoked-tokens", func(ctx context.Context) error {
		n, err := store.PurgeRevokedTokens(ctx, database, time.Now())
		if err != nil {
			return err
		}
		if n > 0 {
			slog.Info("purged expired revoked tokens", "count", n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = runner.Every("@every 10m", "login-limiter-cleanup", func(context.Context) error {
		limiter.Cleanup(30 * time.Minute)
		return nil
	})
	if err != nil {
		return nil, err
	}

	runner.Start()
	return runner, nil
}

// printAdminPassword prints the generated admin credentials to stdout.
func printAdminPassword(username, password string) {
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
