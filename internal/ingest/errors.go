package ingest

import (
	"errors"
	"fmt"
)

// ErrNoExtractor is returned when a report needs LLM extraction and no
// extractor is configured.
var ErrNoExtractor = errors.New("ingest: no extractor configured")

// InputError rejects a report the caller must fix before retrying.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func inputErrorf(format string, args ...any) *InputError {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// ExtractionError reports a failure of the external extraction service.
// StatusCode is the upstream HTTP status when one was received.
type ExtractionError struct {
	Err        error
	StatusCode int
}

func (e *ExtractionError) Error() string { return e.Err.Error() }

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsInputError reports whether err carries an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// IsExtractionError reports whether err carries an *ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
