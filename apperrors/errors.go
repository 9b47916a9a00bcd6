package apperrors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Sentinel errors for the transactional core. Controllers map these to
// HTTP status codes; services return them wrapped with context.
var (
	ErrValidation           = errors.New("validation failed")
	ErrFileTooLarge         = errors.New("file exceeds the maximum allowed size")
	ErrUpload               = errors.New("object storage upload failed")
	ErrDuplicate            = errors.New("record already exists")
	ErrPaymentNotCompleted  = errors.New("payment not completed")
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	ErrNotFound             = errors.New("record not found")
	ErrForbidden            = errors.New("operation not allowed")
)

// ValidationError carries per-field messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation builds a ValidationError from a field->message map.
func NewValidation(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// IsDuplicate reports whether err is a unique-constraint violation from
// any of the supported databases.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicate) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || // postgres
		strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") // mysql
}
