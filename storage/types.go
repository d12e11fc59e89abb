package storage

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cyp0633/libagenda/lifecycle"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
	// ErrConflict means the stored revision moved since the item was read
	ErrConflict ErrorType = "conflict"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsType reports whether err is a storage *Error of type t
func IsType(err error, t ErrorType) bool {
	var se *Error
	return errors.As(err, &se) && se.Type == t
}

func IsNotFound(err error) bool { return IsType(err, ErrNotFound) }
func IsConflict(err error) bool { return IsType(err, ErrConflict) }

// ListOptions filters List results. Zero values match everything.
type ListOptions struct {
	Kind     lifecycle.Kind
	Statuses []lifecycle.Status
	AuthorID string
}

// Matches reports whether item passes the filter
func (o ListOptions) Matches(item lifecycle.Item) bool {
	if o.Kind != "" && item.Kind != o.Kind {
		return false
	}
	if len(o.Statuses) > 0 && !slices.Contains(o.Statuses, item.Status) {
		return false
	}
	if o.AuthorID != "" && item.AuthorID != o.AuthorID {
		return false
	}
	return true
}

// ChangeType is the kind of write a Change reports
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is delivered to watchers after a successful write. Item is the
// stored state after the write; for deletions it is the last known state.
type Change struct {
	Type ChangeType
	Item lifecycle.Item
}
