package errutil

import "errors"

// Kinds group domain errors by how callers should react to them.
var (
	ErrValidation  = errors.New("validation_error")
	ErrNotFound    = errors.New("not_found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)

// CodedError is a stable, snake_case domain error that belongs to one kind.
type CodedError struct {
	kind error
	code string
}

func (e *CodedError) Error() string {
	return e.code
}

func (e *CodedError) Unwrap() error {
	return e.kind
}

// Code returns the machine readable code, e.g. "invalid_amount".
func (e *CodedError) Code() string {
	return e.code
}

func Validation(code string) *CodedError {
	return &CodedError{kind: ErrValidation, code: code}
}

func NotFound(code string) *CodedError {
	return &CodedError{kind: ErrNotFound, code: code}
}

func Conflict(code string) *CodedError {
	return &CodedError{kind: ErrConflict, code: code}
}

func Unavailable(code string) *CodedError {
	return &CodedError{kind: ErrUnavailable, code: code}
}

// CodeOf returns the code of the first CodedError in the chain, or "" when
// err carries none.
func CodeOf(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return ""
}

// Kind returns the kind sentinel err belongs to, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrUnavailable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
