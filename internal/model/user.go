package model

import (
	"fmt"
	"strings"
	"time"
)

// User is a registered account. Admins are users whose Type is TypeAdmin.
type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"fname"`
	MiddleName   string    `json:"mname"`
	LastName     string    `json:"lname"`
	Type         string    `json:"type"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	RequestAdmin bool      `json:"requestAdmin"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// User types.
const (
	TypeStudent  = "Student"
	TypeFaculty  = "Faculty"
	TypeUEPStaff = "UEP Staff"
	TypeAdmin    = "Admin"
)

// UserStatusActive is the status every account starts with.
const UserStatusActive = "Active"

// MinPasswordLength is the shortest password accepted on registration or change.
const MinPasswordLength = 8

var userTypes = []string{TypeStudent, TypeFaculty, TypeUEPStaff, TypeAdmin}

// IsAdmin reports whether the user holds the Admin type.
func (u *User) IsAdmin() bool {
	return u != nil && u.Type == TypeAdmin
}

// NormalizeUserType maps a case-insensitive type name to its canonical form.
// Unknown names fail-closed.
func NormalizeUserType(t string) (string, bool) {
	t = strings.TrimSpace(t)
	for _, known := range userTypes {
		if strings.EqualFold(t, known) {
			return known, true
		}
	}
	return "", false
}

// ValidatePassword checks the password length rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	// bcrypt ignores everything past 72 bytes.
	if len(password) > 72 {
		return fmt.Errorf("password must be at most 72 bytes")
	}
	return nil
}
