package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/lostfound/internal/service"
	"github.com/erazemk/lostfound/internal/upload"
)

// UsersHandler handles registration, profile and admin-approval endpoints.
type UsersHandler struct {
	Users   *service.Users
	Uploads *upload.Store
}

type usernameRequest struct {
	Username string `json:"username"`
}

// Register handles POST /api/users.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.Registration
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.Users.Register(r.Context(), req)
	if err != nil {
		serviceError(w, r, err, "User not found")
		return
	}

	msg := "User registered successfully"
	if user.RequestAdmin {
		msg = "User registered successfully. Admin access is pending approval"
	}
	jsonMessage(w, msg, "user", user)
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		internalError(w, r, "failed to list users", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"users": users})
}

// PendingAdmins handles GET /api/users/pending-admins.
func (h *UsersHandler) PendingAdmins(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.PendingAdmins(r.Context())
	if err != nil {
		internalError(w, r, "failed to list admin requests", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"pending_admins": users})
}

func decodeUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req usernameRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid request body")
		return "", false
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		jsonError(w, http.StatusBadRequest, "Username is required")
		return "", false
	}
	return req.Username, true
}

// ApproveAdmin handles POST /api/users/approve-admin.
func (h *UsersHandler) ApproveAdmin(w http.ResponseWriter, r *http.Request) {
	username, ok := decodeUsername(w, r)
	if !ok {
		return
	}

	user, err := h.Users.ApproveAdmin(r.Context(), username)
	if err != nil {
		serviceError(w, r, err, "User not found")
		return
	}

	slog.Info("admin access approved", "user", username, "by", CurrentUser(r.Context()).Username)
	jsonMessage(w, "Admin access approved", "user", user)
}

// RejectAdmin handles POST /api/users/reject-admin.
func (h *UsersHandler) RejectAdmin(w http.ResponseWriter, r *http.Request) {
	username, ok := decodeUsername(w, r)
	if !ok {
		return
	}

	user, err := h.Users.RejectAdmin(r.Context(), username)
	if err != nil {
		serviceError(w, r, err, "User not found")
		return
	}

	slog.Info("admin access rejected", "user", username, "by", CurrentUser(r.Context()).Username)
	jsonMessage(w, "Admin access request rejected", "user", user)
}

// RequestAdmin handles POST /api/users/request-admin.
func (h *UsersHandler) RequestAdmin(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.RequestAdmin(r.Context(), CurrentUser(r.Context()).ID)
	if err != nil {
		serviceError(w, r, err, "User not found")
		return
	}
	jsonMessage(w, "Admin access requested", "user", user)
}

// Update handles PUT /api/users?username=. Users may only edit themselves.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		jsonError(w, http.StatusBadRequest, "Username is required")
		return
	}
	if username != CurrentUser(r.Context()).Username {
		jsonError(w, http.StatusForbidden, "Access denied")
		return
	}

	var req service.ProfileUpdate
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.Users.UpdateProfile(r.Context(), username, req)
	if err != nil {
		serviceError(w, r, err, "User not found")
		return
	}
	jsonMessage(w, "User updated successfully", "user", user)
}

// Delete handles DELETE /api/users?username=. The user's items, claims and
// item images go with them.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		jsonError(w, http.StatusBadRequest, "Username is required")
		return
	}
	admin := CurrentUser(r.Context())
	if username == admin.Username {
		jsonError(w, http.StatusBadRequest, "You cannot delete your own account")
		return
	}

	images, err := h.Users.Delete(r.Context(), username)
	if err != nil {
		serviceError(w, r, err, "User not found")
		return
	}
	for _, img := range images {
		removeImage(h.Uploads, img)
	}

	slog.Info("user deleted", "user", username, "by", admin.Username, "images", len(images))
	jsonMessage(w, "User deleted successfully")
}

// removeImage deletes a stored item image, logging rather than failing.
func removeImage(uploads *upload.Store, ref string) {
	if err := uploads.Remove(uploads.Resolve(ref)); err != nil {
		slog.Warn("failed to remove item image", "image", ref, "error", err)
	}
}
