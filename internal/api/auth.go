package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/metrics"
	"github.com/erazemk/lostfound/internal/service"
	"github.com/erazemk/lostfound/internal/store"
)

// SessionConfig controls how session tokens are issued.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

// AuthHandler handles login, logout and the current-user lookup.
type AuthHandler struct {
	DB      *sqlx.DB
	Users   *service.Users
	Session SessionConfig
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/users/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.Users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		internalError(w, r, "failed to authenticate", err)
		return
	}
	if user == nil {
		metrics.RecordLogin("failure")
		slog.Warn("login failed", "username", req.Username, "remote", clientIP(r))
		jsonError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, claims, err := auth.GenerateToken(h.Session.Secret, user.ID, user.Username, h.Session.TTL)
	if err != nil {
		internalError(w, r, "failed to generate session token", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HttpOnly: true,
		Secure:   h.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	metrics.RecordLogin("success")
	slog.Info("user logged in", "user", user.Username, "type", user.Type)
	jsonMessage(w, "Login successful", "user", user, "token", token)
}

// Logout handles POST /api/users/logout. The token is revoked until it
// would have expired and the cookie is cleared.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims := currentClaims(r.Context()); claims != nil {
		if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
			internalError(w, r, "failed to revoke session", err)
			return
		}
		slog.Info("user logged out", "user", claims.Username)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	jsonMessage(w, "Logged out successfully")
}

// Current handles GET /api/users/current. Anonymous callers get a null user.
func (h *AuthHandler) Current(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{"user": CurrentUser(r.Context())})
}
