package youtube

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means an id disappeared between search and detail
	// fetch. Callers skip the item, not the batch.
	ErrNotFound = errors.New("youtube: resource not found")

	// ErrQuotaExceeded means the API key's daily quota is exhausted.
	// Fatal for the run; never retried.
	ErrQuotaExceeded = errors.New("youtube: daily quota exceeded")
)

// TransientError is a retryable API failure: rate limit, 5xx, timeout
// or connection error. The client retries these internally with
// exponential backoff before surfacing one.
type TransientError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("youtube: transient %s failure: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("youtube: transient %s failure: status %d", e.Endpoint, e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// MalformedError marks a single unusable item, e.g. an unparseable
// duration or publish timestamp. Callers skip the item and continue.
type MalformedError struct {
	ID    string
	Field string
	Err   error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("youtube: malformed %s for %s: %v", e.Field, e.ID, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is a per-item data error.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}
