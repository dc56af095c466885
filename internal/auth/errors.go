package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("resource conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")

	ErrOTPExpired  = errors.New("otp has expired")
	ErrOTPMismatch = errors.New("invalid otp")
)

// FieldError wraps a sentinel with a field -> message map for client display.
type FieldError struct {
	Err    error
	Fields map[string]string
}

func (e *FieldError) Error() string {
	return e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// InvalidField builds a validation error for a single field.
func InvalidField(field, message string) error {
	return &FieldError{
		Err:    fmt.Errorf("%w: %s", ErrInvalidInput, message),
		Fields: map[string]string{field: message},
	}
}

// FieldsOf extracts the field map from err if it carries one.
func FieldsOf(err error) map[string]string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Fields
	}
	return nil
}
