package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"

	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

type contextKey string

const sessionKey contextKey = "session"

// sessionCookie is the cookie carrying the session token.
const sessionCookie = "session"

// session is the identity attached to an authenticated request.
type session struct {
	user   *model.User
	claims *auth.Claims
}

// sessionToken returns the token from the session cookie, falling back to
// an Authorization: Bearer header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// Authenticate resolves the session token, if any, into the current user.
// Requests without a valid session pass through anonymously; RequireUser
// and RequireAdmin decide whether that is allowed.
func Authenticate(secret string, db sqlx.ExtContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := sessionToken(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ValidateToken(secret, tok)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			revoked, err := store.IsTokenRevoked(ctx, db, claims.ID)
			if err != nil {
				internalError(w, r, "failed to check token revocation", err)
				return
			}
			if revoked {
				next.ServeHTTP(w, r)
				return
			}

			user, err := store.GetUser(ctx, db, claims.UserID)
			if err != nil {
				internalError(w, r, "failed to load session user", err)
				return
			}
			if user == nil || user.Status != model.UserStatusActive {
				next.ServeHTTP(w, r)
				return
			}

			ctx = context.WithValue(ctx, sessionKey, &session{user: user, claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests without a logged-in user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUser(r.Context()) == nil {
			jsonError(w, http.StatusUnauthorized, "Not logged in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests from anyone but an Admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r.Context())
		if user == nil {
			jsonError(w, http.StatusUnauthorized, "Not logged in")
			return
		}
		if !user.IsAdmin() {
			jsonError(w, http.StatusForbidden, "Access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentUser returns the logged-in user, or nil.
func CurrentUser(ctx context.Context) *model.User {
	if s, ok := ctx.Value(sessionKey).(*session); ok {
		return s.user
	}
	return nil
}

func currentClaims(ctx context.Context) *auth.Claims {
	if s, ok := ctx.Value(sessionKey).(*session); ok {
		return s.claims
	}
	return nil
}

// LoggingMiddleware logs each request with its chi request id.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		slog.Info("request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
