package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownScope      = errors.New("unknown geographic scope")
	ErrUnknownPeriod     = errors.New("unknown reporting period")
	ErrStoreUnavailable  = errors.New("record store unavailable")
	ErrMalformedPayload  = errors.New("malformed record payload")
	ErrDuplicateRecord   = errors.New("duplicate record for school, date and module")
	ErrPrivacyViolation  = errors.New("privacy violation in public payload")
	ErrRecordNotFound    = errors.New("record not found")
	ErrSchoolNotFound    = errors.New("school not found")
	ErrFactPackNotFound  = errors.New("fact pack not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("action not permitted for role")
	ErrValidation        = errors.New("validation failed")
)

// ValidationError collects field-level problems. It unwraps to ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns nil when nothing was added, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PrivacyViolationError names the offending key and where it was found.
type PrivacyViolationError struct {
	Path string
	Key  string
}

func (e *PrivacyViolationError) Error() string {
	return fmt.Sprintf("denylisted key %q found at %s", e.Key, e.Path)
}

func (e *PrivacyViolationError) Unwrap() error { return ErrPrivacyViolation }
