// Package service holds the lost-and-found business rules on top of the
// store package.
package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/lostfound/internal/store"
)

// Sentinel errors returned by the services.
var (
	ErrNotFound        = errors.New("not found")
	ErrUsernameTaken   = errors.New("username already exists")
	ErrEmailTaken      = errors.New("email already registered")
	ErrClaimNotPending = errors.New("claim is no longer pending")
	ErrForbidden       = errors.New("not allowed")
)

// conflict maps a store unique violation onto the matching sentinel. It
// covers writes that race past the up-front uniqueness check.
func conflict(err error) error {
	switch {
	case errors.Is(err, store.ErrDuplicateUsername):
		return fmt.Errorf("%w: %v", ErrUsernameTaken, err)
	case errors.Is(err, store.ErrDuplicateEmail):
		return fmt.Errorf("%w: %v", ErrEmailTaken, err)
	}
	return err
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// validateStruct runs the struct tags and converts the first failure into
// a ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return invalid(field, "%s is required", field)
	case "email":
		return invalid(field, "%s must be a valid email address", field)
	case "min":
		return invalid(field, "%s must be at least %s characters", field, fe.Param())
	case "max":
		return invalid(field, "%s must be at most %s characters", field, fe.Param())
	case "username":
		return invalid(field, "%s may only contain letters, digits and . _ -", field)
	default:
		return invalid(field, "%s is invalid", field)
	}
}
