package sharecodec

import (
	"errors"
	"fmt"
)

// ErrInvalidLink matches every decode failure. Callers show an
// "invalid or expired link" state when errors.Is(err, ErrInvalidLink).
var ErrInvalidLink = errors.New("share link invalid or expired")

// EncodingError is returned when the payload cannot be serialized
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("failed to encode share token: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError is returned when a token is not valid base64 or does not contain JSON
type DecodingError struct {
	Stage string // base64, utf8, json or url
	Err   error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("failed to decode share token (%s): %v", e.Stage, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// Is reports DecodingError as an invalid link
func (e *DecodingError) Is(target error) bool { return target == ErrInvalidLink }

// ValidationError is returned when a required section is missing or null
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("share payload missing required field %q", e.Field)
}

// Is reports ValidationError as an invalid link
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidLink }
