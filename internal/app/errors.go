package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the operation targeted an unknown identifier.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is shown verbatim to login callers.
	ErrInvalidCredentials = errors.New("Unable to login with provided credentials.")

	// ErrImageStorageNotConfigured is returned when no object store is wired.
	ErrImageStorageNotConfigured = errors.New("image storage not configured")
)

// msgFieldRequired matches the wire format clients depend on.
const msgFieldRequired = "This field is required."

// ValidationError reports required-field failures for a nested entity
// supplied inline with an employee write. It renders as
// {"<entity>": {"<field>": "This field is required."}} with every failing
// field included, not just the first.
type ValidationError struct {
	Entity string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s: invalid fields: %s", e.Entity, strings.Join(fields, ", "))
}

// InvalidReferenceError reports an identifier that resolves to no row of the
// referenced entity type. It renders as {"<entity>": "Invalid ID"}.
type InvalidReferenceError struct {
	Entity string
}

func (e *InvalidReferenceError) Error() string {
	return e.Entity + ": invalid ID"
}

// FieldErrors reports top-level field validation failures on the entity
// being written itself, keyed by field name.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid fields: " + strings.Join(fields, ", ")
}
