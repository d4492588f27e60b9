package services

import (
	"errors"
	"fmt"
)

// ErrMalformedEnvelope is returned when a data URI header is absent or unparseable.
var ErrMalformedEnvelope = errors.New("malformed envelope")

type UnsupportedFormatError struct{ Tag string }

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Tag)
}

// ExtractionError means the decoder for Format rejected the payload.
type ExtractionError struct {
	Format Format
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Format, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("generation failed: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ErrEmptyContent is returned before any remote call when there is nothing to generate from.
var ErrEmptyContent = &GenerationError{Reason: "content is empty"}

// ErrContentTooLong is wrapped by the GenerationError returned for oversized input.
var ErrContentTooLong = errors.New("content too long")

func malformedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedEnvelope, fmt.Sprintf(format, args...))
}
