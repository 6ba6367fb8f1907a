package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/lostfound/internal/auth"
	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

// Users manages accounts and the admin approval workflow.
type Users struct {
	db *sqlx.DB
}

// NewUsers returns a Users service backed by db.
func NewUsers(db *sqlx.DB) *Users {
	return &Users{db: db}
}

// Registration is the self-registration payload.
type Registration struct {
	FirstName    string `json:"fname" validate:"required,max=50"`
	MiddleName   string `json:"mname" validate:"max=50"`
	LastName     string `json:"lname" validate:"required,max=50"`
	Type         string `json:"type"`
	Email        string `json:"email" validate:"required,email,max=100"`
	Username     string `json:"username" validate:"required,min=3,max=50,username"`
	Password     string `json:"password" validate:"required"`
	RequestAdmin bool   `json:"requestAdmin"`
}

// ProfileUpdate carries the fields a user may change on their own account.
// Empty fields keep their current value.
type ProfileUpdate struct {
	FirstName  string `json:"fname" validate:"max=50"`
	MiddleName string `json:"mname" validate:"max=50"`
	LastName   string `json:"lname" validate:"max=50"`
	Email      string `json:"email" validate:"omitempty,email,max=100"`
	Username   string `json:"username" validate:"omitempty,min=3,max=50,username"`
	Password   string `json:"password"`
}

// Register creates a new account. Anyone asking for the Admin type is
// stored as a Student with a pending admin request.
func (s *Users) Register(ctx context.Context, in Registration) (*model.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.MiddleName = strings.TrimSpace(in.MiddleName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)

	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := model.ValidatePassword(in.Password); err != nil {
		return nil, invalid("password", "%s", err.Error())
	}

	userType := model.TypeStudent
	if in.Type != "" {
		t, ok := model.NormalizeUserType(in.Type)
		if !ok {
			return nil, invalid("type", "type must be one of Student, Faculty, UEP Staff or Admin")
		}
		userType = t
	}
	requestAdmin := in.RequestAdmin
	if userType == model.TypeAdmin {
		userType = model.TypeStudent
		requestAdmin = true
	}

	if err := s.ensureUnique(ctx, 0, in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := store.SaveUser(ctx, s.db, &model.User{
		FirstName:    in.FirstName,
		MiddleName:   in.MiddleName,
		LastName:     in.LastName,
		Type:         userType,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		RequestAdmin: requestAdmin,
	})
	if err != nil {
		return nil, conflict(err)
	}

	slog.Info("user registered", "user", user.Username, "type", user.Type, "request_admin", user.RequestAdmin)
	return user, nil
}

// ensureUnique rejects a username or email held by a user other than selfID.
func (s *Users) ensureUnique(ctx context.Context, selfID int64, username, email string) error {
	if username != "" {
		u, err := store.GetUserByUsername(ctx, s.db, username)
		if err != nil {
			return err
		}
		if u != nil && u.ID != selfID {
			return ErrUsernameTaken
		}
	}
	if email != "" {
		u, err := store.GetUserByEmail(ctx, s.db, email)
		if err != nil {
			return err
		}
		if u != nil && u.ID != selfID {
			return ErrEmailTaken
		}
	}
	return nil
}

// Authenticate returns the user when the username exists and the password
// matches, and nil otherwise. The two failure cases are indistinguishable
// to the caller.
func (s *Users) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := store.GetUserByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		auth.BurnPasswordCheck(password)
		return nil, nil
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, nil
	}
	if user.Status != model.UserStatusActive {
		slog.Warn("login refused for inactive account", "user", user.Username, "status", user.Status)
		return nil, nil
	}
	return user, nil
}

// Get returns the user with the given ID, or nil.
func (s *Users) Get(ctx context.Context, id int64) (*model.User, error) {
	return store.GetUser(ctx, s.db, id)
}

// ByUsername returns the named user, or nil.
func (s *Users) ByUsername(ctx context.Context, username string) (*model.User, error) {
	return store.GetUserByUsername(ctx, s.db, username)
}

// List returns every user.
func (s *Users) List(ctx context.Context) ([]model.User, error) {
	return store.ListUsers(ctx, s.db)
}

// Count returns the number of accounts.
func (s *Users) Count(ctx context.Context) (int64, error) {
	return store.CountUsers(ctx, s.db)
}

// PendingAdmins returns users with an open admin request.
func (s *Users) PendingAdmins(ctx context.Context) ([]model.User, error) {
	return store.ListAdminRequests(ctx, s.db)
}

func (s *Users) mustGet(ctx context.Context, username string) (*model.User, error) {
	user, err := store.GetUserByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return user, nil
}

// UpdateProfile applies upd to the named user. The password is re-hashed
// only when a new one is supplied.
func (s *Users) UpdateProfile(ctx context.Context, username string, upd ProfileUpdate) (*model.User, error) {
	upd.FirstName = strings.TrimSpace(upd.FirstName)
	upd.MiddleName = strings.TrimSpace(upd.MiddleName)
	upd.LastName = strings.TrimSpace(upd.LastName)
	upd.Email = strings.TrimSpace(upd.Email)
	upd.Username = strings.TrimSpace(upd.Username)

	if err := validateStruct(upd); err != nil {
		return nil, err
	}
	if upd.Password != "" {
		if err := model.ValidatePassword(upd.Password); err != nil {
			return nil, invalid("password", "%s", err.Error())
		}
	}

	user, err := s.mustGet(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := s.ensureUnique(ctx, user.ID, upd.Username, upd.Email); err != nil {
		return nil, err
	}

	if upd.FirstName != "" {
		user.FirstName = upd.FirstName
	}
	if upd.MiddleName != "" {
		user.MiddleName = upd.MiddleName
	}
	if upd.LastName != "" {
		user.LastName = upd.LastName
	}
	if upd.Email != "" {
		user.Email = upd.Email
	}
	if upd.Username != "" {
		user.Username = upd.Username
	}
	if upd.Password != "" {
		hash, err := auth.HashPassword(upd.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if _, err := store.SaveUser(ctx, s.db, user); err != nil {
		return nil, conflict(err)
	}
	slog.Info("profile updated", "user", username, "new_username", user.Username, "password_changed", upd.Password != "")
	return user, nil
}

// RequestAdmin flags the user as asking for admin access.
func (s *Users) RequestAdmin(ctx context.Context, id int64) (*model.User, error) {
	user, err := store.GetUser(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if user.IsAdmin() || user.RequestAdmin {
		return user, nil
	}

	user.RequestAdmin = true
	if _, err := store.SaveUser(ctx, s.db, user); err != nil {
		return nil, err
	}
	slog.Info("admin access requested", "user", user.Username)
	return user, nil
}

// ApproveAdmin makes the named user an Admin and clears their request.
func (s *Users) ApproveAdmin(ctx context.Context, username string) (*model.User, error) {
	user, err := s.mustGet(ctx, username)
	if err != nil {
		return nil, err
	}

	user.Type = model.TypeAdmin
	user.RequestAdmin = false
	if _, err := store.SaveUser(ctx, s.db, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RejectAdmin clears the named user's admin request without promoting them.
func (s *Users) RejectAdmin(ctx context.Context, username string) (*model.User, error) {
	user, err := s.mustGet(ctx, username)
	if err != nil {
		return nil, err
	}

	user.RequestAdmin = false
	if _, err := store.SaveUser(ctx, s.db, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the named user together with their items and claims. It
// returns the image paths of the removed items so the caller can delete
// the files.
func (s *Users) Delete(ctx context.Context, username string) ([]string, error) {
	user, err := s.mustGet(ctx, username)
	if err != nil {
		return nil, err
	}

	items, err := store.ListItems(ctx, s.db, store.ItemFilter{UserID: user.ID})
	if err != nil {
		return nil, err
	}
	var images []string
	for _, it := range items {
		if it.Image != nil {
			images = append(images, *it.Image)
		}
	}

	if err := store.DeleteUser(ctx, s.db, user.ID); err != nil {
		return nil, err
	}
	return images, nil
}

// EnsureAdmin creates an Admin account when none exists. It reports
// whether an account was created.
func (s *Users) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	n, err := store.CountUsersByType(ctx, s.db, model.TypeAdmin)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	if err := s.ensureUnique(ctx, 0, username, email); err != nil {
		return false, fmt.Errorf("seeding admin %q: %w", username, err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}

	_, err = store.SaveUser(ctx, s.db, &model.User{
		FirstName:    "System",
		LastName:     "Admin",
		Type:         model.TypeAdmin,
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		return false, fmt.Errorf("seeding admin %q: %w", username, conflict(err))
	}
	return true, nil
}
