// Package apperr holds the error taxonomy shared by the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("resource already exists")
)

// NotFoundError reports a referenced entity that does not exist. ID is zero
// when the message should not name the identifier.
type NotFoundError struct {
	Entity string
	ID     int
}

func NotFound(entity string) *NotFoundError {
	return &NotFoundError{Entity: entity}
}

func NotFoundWithID(entity string, id int) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s with id %d not found", e.Entity, e.ID)
	}
	return e.Entity + " not found"
}

// ValidationError is a boundary shape violation keyed by field path.
type ValidationError struct {
	Fields map[string]string
}

func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
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
	return "bad input: " + strings.Join(parts, "; ")
}

func IsNotFound(err error, entity string) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && (entity == "" || nf.Entity == entity)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
