package agenda

import "errors"

var (
	// ErrPermissionDenied is returned when the actor's role does not allow the operation
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidInput is returned for missing fields, unknown enums and malformed rules
	ErrInvalidInput = errors.New("invalid input")
)
