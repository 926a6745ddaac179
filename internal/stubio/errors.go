package stubio

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrTruncated means the stream ended before a mandatory field.
	ErrTruncated = errors.New("truncated stub stream")
	// ErrMalformed means the bytes do not follow the stub format.
	ErrMalformed = errors.New("malformed stub stream")
)

// DecodeError reports a failure to read a field, with the byte offset the field
// started at. Storage layers treat it as a stale entry and rebuild from source.
type DecodeError struct {
	Offset int64
	Field  string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("stub decode: %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err carries a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrTruncated), errors.Is(err, ErrMalformed):
		return err
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
