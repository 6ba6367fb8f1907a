package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/lostfound/internal/model"
)

const userColumns = `id, fname, mname, lname, type, email, username, password,
	request_admin, status, created_at`

type userRow struct {
	ID           int64          `db:"id"`
	FirstName    string         `db:"fname"`
	MiddleName   sql.NullString `db:"mname"`
	LastName     string         `db:"lname"`
	Type         string         `db:"type"`
	Email        string         `db:"email"`
	Username     string         `db:"username"`
	Password     string         `db:"password"`
	RequestAdmin bool           `db:"request_admin"`
	Status       sql.NullString `db:"status"`
	CreatedAt    sql.NullTime   `db:"created_at"`
}

func (r userRow) model() *model.User {
	status := r.Status.String
	if status == "" {
		status = model.UserStatusActive
	}
	return &model.User{
		ID:           r.ID,
		FirstName:    r.FirstName,
		MiddleName:   r.MiddleName.String,
		LastName:     r.LastName,
		Type:         r.Type,
		Email:        r.Email,
		Username:     r.Username,
		PasswordHash: r.Password,
		RequestAdmin: r.RequestAdmin,
		Status:       status,
		CreatedAt:    timeOrNow("users", r.ID, "created_at", r.CreatedAt),
	}
}

func getUserWhere(ctx context.Context, q sqlx.ExtContext, cond string, arg any) (*model.User, error) {
	var row userRow
	found, err := getOne(ctx, q, &row, `SELECT `+userColumns+` FROM users WHERE `+cond, arg)
	if err != nil || !found {
		return nil, err
	}
	return row.model(), nil
}

// GetUser returns a user by ID, or nil if there is none.
func GetUser(ctx context.Context, q sqlx.ExtContext, id int64) (*model.User, error) {
	u, err := getUserWhere(ctx, q, `id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns a user by username, or nil if there is none.
func GetUserByUsername(ctx context.Context, q sqlx.ExtContext, username string) (*model.User, error) {
	u, err := getUserWhere(ctx, q, `username = ?`, username)
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email (case-insensitive), or nil if there is none.
func GetUserByEmail(ctx context.Context, q sqlx.ExtContext, email string) (*model.User, error) {
	u, err := getUserWhere(ctx, q, `LOWER(email) = LOWER(?)`, email)
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

func listUsers(ctx context.Context, q sqlx.ExtContext, cond string, args ...any) ([]model.User, error) {
	var rows []userRow
	query := `SELECT ` + userColumns + ` FROM users` + cond + ` ORDER BY lname, fname`
	if err := selectAll(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, *r.model())
	}
	return users, nil
}

// ListUsers returns every user ordered by last then first name.
func ListUsers(ctx context.Context, q sqlx.ExtContext) ([]model.User, error) {
	users, err := listUsers(ctx, q, "")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// ListAdminRequests returns users waiting for admin approval.
func ListAdminRequests(ctx context.Context, q sqlx.ExtContext) ([]model.User, error) {
	users, err := listUsers(ctx, q, ` WHERE request_admin = ?`, true)
	if err != nil {
		return nil, fmt.Errorf("listing admin requests: %w", err)
	}
	return users, nil
}

// SaveUser inserts u when it has no ID and updates it otherwise. On insert
// the generated ID and defaults are written back to u.
func SaveUser(ctx context.Context, q sqlx.ExtContext, u *model.User) (*model.User, error) {
	if u.Status == "" {
		u.Status = model.UserStatusActive
	}

	if u.ID != 0 {
		err := updateOne(ctx, q,
			`UPDATE users SET fname = ?, mname = ?, lname = ?, type = ?, email = ?, username = ?,
			        password = ?, request_admin = ?, status = ?
			 WHERE id = ?`,
			u.FirstName, u.MiddleName, u.LastName, u.Type, u.Email, u.Username,
			u.PasswordHash, u.RequestAdmin, u.Status, u.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating user %d: %w", u.ID, userConflict(err))
		}
		return u, nil
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	id, err := insertReturningID(ctx, q,
		`INSERT INTO users (fname, mname, lname, type, email, username, password,
		                    request_admin, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		u.FirstName, u.MiddleName, u.LastName, u.Type, u.Email, u.Username, u.PasswordHash,
		u.RequestAdmin, u.Status, u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", userConflict(err))
	}
	u.ID = id
	return u, nil
}

// userConflict turns a unique violation on users into ErrDuplicateUsername
// or ErrDuplicateEmail, keeping the driver error in the message.
func userConflict(err error) error {
	switch {
	case uniqueViolation(err, "users", "username"):
		return fmt.Errorf("%w: %v", ErrDuplicateUsername, err)
	case uniqueViolation(err, "users", "email"):
		return fmt.Errorf("%w: %v", ErrDuplicateEmail, err)
	}
	return err
}

// DeleteUser removes a user. Their items and claims go with them through
// ON DELETE CASCADE.
func DeleteUser(ctx context.Context, q sqlx.ExtContext, id int64) error {
	if _, err := exec(ctx, q, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

// CountUsers returns the number of users.
func CountUsers(ctx context.Context, q sqlx.ExtContext) (int64, error) {
	n, err := count(ctx, q, `SELECT COUNT(*) FROM users`)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// CountUsersByType returns the number of users of the given type.
func CountUsersByType(ctx context.Context, q sqlx.ExtContext, userType string) (int64, error) {
	n, err := count(ctx, q, `SELECT COUNT(*) FROM users WHERE type = ?`, userType)
	if err != nil {
		return 0, fmt.Errorf("counting users by type: %w", err)
	}
	return n, nil
}
