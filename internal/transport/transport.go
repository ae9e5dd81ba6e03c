// Package transport holds the event-source collaborator boundary: the error
// type shared by every implementation and an in-memory source used for tests
// and offline mode. The wire protocol itself lives behind this boundary and
// is not part of the sync engine.
package transport

import (
	"errors"
	"fmt"
)

// TransportError wraps a failure talking to the messaging service. Temporary
// errors are retryable transients (timeouts, disconnects); they are never
// fatal to the process.
type TransportError struct {
	Op        string
	Temporary bool
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTemporary reports whether err is a retryable transport condition.
func IsTemporary(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Temporary
	}
	return false
}
