package fetch

import (
	"errors"
	"fmt"
)

// FetchError wraps any failure of a model download.
type FetchError struct {
	Model      string
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Model, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is (or wraps) a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
