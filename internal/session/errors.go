package session

import "fmt"

// DecodeError reports malformed persisted data. Callers treat it identically
// to "no session": return absent and purge the corrupt entry from its
// backend. It never reaches the UI.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: decode failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session: decode failed: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PersistenceError reports a write that failed even after the one-shot quota
// recovery. It is the only error in this subsystem that surfaces to callers:
// the caller must not assume the mutation took effect.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session: save failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
