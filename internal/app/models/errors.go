package models

import "errors"

// Error kinds. Every error surfaced to a handler matches exactly one of these
// through errors.Is.
var (
	ErrNotFound      = errors.New("requested item not found")
	ErrConflict      = errors.New("item already exists or conflict")
	ErrValidation    = errors.New("validation failed")
	ErrConfiguration = errors.New("server configuration error")
	ErrUpstream      = errors.New("upstream service error")
)

// AppError carries the message shown to the client next to its kind and the
// underlying cause, which is only logged.
type AppError struct {
	Kind    error
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *AppError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewNotFound(msg string) error {
	return &AppError{Kind: ErrNotFound, Message: msg}
}

func NewValidation(msg string) error {
	return &AppError{Kind: ErrValidation, Message: msg}
}

func NewConfiguration(msg string, cause error) error {
	return &AppError{Kind: ErrConfiguration, Message: msg, Err: cause}
}

func NewUpstream(msg string, cause error) error {
	return &AppError{Kind: ErrUpstream, Message: msg, Err: cause}
}
