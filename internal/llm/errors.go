package llm

import (
	"errors"
	"fmt"

	"tutord/internal/fetch"
)

var (
	// ErrNotReady is returned by generation while the engine is not Ready.
	ErrNotReady = errors.New("inference engine not ready")
	// ErrNoEngine is the reset failure when no model is loaded.
	ErrNoEngine = errors.New("reset session: no engine loaded")
	// ErrClosed terminates streams that were in flight when the engine closed.
	ErrClosed = errors.New("inference engine closed")
)

// ConstructionError reports that a backend rejected the model file or could
// not allocate its resources.
type ConstructionError struct {
	Model string
	Stage string // "load", "session" or "interpreter"
	Err   error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct %s (%s): %v", e.Model, e.Stage, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// IsConstructionError reports whether err is (or wraps) a *ConstructionError.
func IsConstructionError(err error) bool {
	var ce *ConstructionError
	return errors.As(err, &ce)
}

// IsNotReady reports whether err signals a call outside the Ready state.
func IsNotReady(err error) bool { return errors.Is(err, ErrNotReady) }

// IsFetchError reports whether err came from a model download.
func IsFetchError(err error) bool { return fetch.IsFetchError(err) }

// dependencyUnavailableError signals a runtime that was not compiled into
// this binary, so callers can report 503 instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}
