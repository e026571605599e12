package service

import (
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned when the requested user or book does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials is returned by Login for an unknown email and for a
// wrong password alike.
var ErrInvalidCredentials = errors.New("Invalid email or password")

// ErrForbidden matches every *ForbiddenError via errors.Is.
var ErrForbidden = errors.New("forbidden")

// ForbiddenError reports an attempt to change a book owned by someone else.
// Message is shown to the client as is.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

var (
	errEditForbidden   = &ForbiddenError{Message: "You can only edit your own books."}
	errDeleteForbidden = &ForbiddenError{Message: "You can only delete your own books."}
)

// ValidationError carries field-level messages keyed by the JSON field name.
type ValidationError struct {
	Fields map[string][]string
}

// Add appends msg to field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Has reports whether field already failed.
func (e *ValidationError) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation error: " + strings.Join(keys, ", ")
}

// orNil returns e only if it holds at least one message.
func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
