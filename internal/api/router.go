package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"

	"github.com/erazemk/lostfound/internal/metrics"
	"github.com/erazemk/lostfound/internal/service"
	"github.com/erazemk/lostfound/internal/upload"
)

// Deps are the collaborators the router wires into its handlers.
type Deps struct {
	DB      *sqlx.DB
	Users   *service.Users
	Items   *service.Items
	Claims  *service.Claims
	Uploads *upload.Store
	Session SessionConfig
	// LoginLimiter throttles POST /api/users/login; nil disables it.
	LoginLimiter   *LoginLimiter
	MaxUploadBytes int64
	AllowedOrigins []string
}

// NewRouter creates the HTTP handler with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	authHandler := &AuthHandler{DB: d.DB, Users: d.Users, Session: d.Session}
	usersHandler := &UsersHandler{Users: d.Users, Uploads: d.Uploads}
	itemsHandler := &ItemsHandler{Items: d.Items, Uploads: d.Uploads, MaxUploadBytes: d.MaxUploadBytes}
	claimsHandler := &ClaimsHandler{Claims: d.Claims}
	statsHandler := &StatsHandler{Users: d.Users, Items: d.Items, Claims: d.Claims}

	login := http.Handler(http.HandlerFunc(authHandler.Login))
	if d.LoginLimiter != nil {
		login = d.LoginLimiter.Limit(login)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", healthz(d.DB))
	r.Handle("/metrics", metrics.Handler())
	r.Handle(upload.PublicPrefix+"*", d.Uploads.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(d.Session.Secret, d.DB))

		r.Route("/users", func(r chi.Router) {
			r.Post("/", usersHandler.Register)
			r.Method(http.MethodPost, "/login", login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/current", authHandler.Current)

			r.With(RequireUser).Post("/request-admin", usersHandler.RequestAdmin)
			r.With(RequireUser).Put("/", usersHandler.Update)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/", usersHandler.List)
				r.Get("/pending-admins", usersHandler.PendingAdmins)
				r.Post("/approve-admin", usersHandler.ApproveAdmin)
				r.Post("/reject-admin", usersHandler.RejectAdmin)
				r.Delete("/", usersHandler.Delete)
			})
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemsHandler.List)
			r.Get("/stats", itemsHandler.Stats)
			r.Get("/{id}", itemsHandler.Get)
			r.With(RequireUser).Post("/", itemsHandler.Create)
			r.With(RequireAdmin).Delete("/", itemsHandler.Delete)
		})

		r.Route("/claims", func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/", claimsHandler.List)
			r.Post("/", claimsHandler.Post)
		})

		r.With(RequireAdmin).Get("/stats", statsHandler.Get)
	})

	return r
}

// healthz reports whether the database answers a ping.
func healthz(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			slog.Error("health check failed", "error", err)
			jsonError(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
