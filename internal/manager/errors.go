package manager

import (
	"errors"

	"tutord/internal/llm"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// ErrTooBusy builds the backpressure error for modelID.
func ErrTooBusy(modelID string) error { return tooBusyError{modelID: modelID} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}

// modelNotFoundError is returned when a requested model id is not in the catalog.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var nf modelNotFoundError
	return errors.As(err, &nf)
}

// IsNotReady reports whether err was caused by calling into an engine that
// is not Ready (return 409).
func IsNotReady(err error) bool { return llm.IsNotReady(err) }

// IsDependencyUnavailable reports whether the selected runtime is missing
// from this binary (return 503).
func IsDependencyUnavailable(err error) bool { return llm.IsDependencyUnavailable(err) }

// ErrShutdown is returned by operations started after Shutdown.
var ErrShutdown = errors.New("manager shut down")

// StreamError reports a generation that failed after output had already been
// written. The error line is part of the stream; callers must not write a
// second response.
type StreamError struct{ Err error }

func (e *StreamError) Error() string { return "stream: " + e.Err.Error() }

func (e *StreamError) Unwrap() error { return e.Err }

// IsStreamError reports whether err is (or wraps) a *StreamError.
func IsStreamError(err error) bool {
	var se *StreamError
	return errors.As(err, &se)
}
