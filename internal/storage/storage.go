package storage

import (
	"context"
	"errors"
)

// Class names the persistence guarantee a provider offers.
type Class string

const (
	// ClassEphemeral entries do not outlive the visitor's session scope
	// (guest mode).
	ClassEphemeral Class = "ephemeral"
	// ClassPersistent entries survive restarts (authenticated mode).
	ClassPersistent Class = "persistent"
)

var (
	// ErrNotFound is returned by Get when no entry exists under the key.
	ErrNotFound = errors.New("storage: entry not found")
	// ErrQuotaExceeded is returned by Set when the backend refuses the
	// write for capacity reasons. Providers translate their native
	// capacity signals (Redis OOM, SQLSTATE 53100, SQLITE_FULL, byte cap)
	// to this sentinel so callers stay backend-agnostic.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
)

// Provider is a string-valued key-value store holding encoded session
// records. The session store is the sole writer by convention; nothing else
// is expected to touch its keys.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Class() Class
}

// Flusher is implemented by providers that can drop every entry they hold.
// The guest-cleanup lifecycle hook uses it to tear down the ephemeral
// backend.
type Flusher interface {
	Flush(ctx context.Context) (int64, error)
}

// AuthState is the explicit credential observation that drives backend
// selection. Subject scopes the storage key: a user id for authenticated
// visitors, a guest id otherwise.
type AuthState struct {
	Authenticated bool
	Subject       string
}

// Selector decides which persistence class a visitor's data lives in.
// Authenticated visitors get the persistent backend; everyone else gets the
// ephemeral one. Selection happens per call, so the chosen backend can change
// between successive saves if auth state changes mid-session. That is an
// accepted quirk, not corrected here.
type Selector struct {
	Ephemeral  Provider
	Persistent Provider
}

// Pick returns the provider for the given auth state. It never fails; the
// absence of a credential defaults to the ephemeral backend.
func (s Selector) Pick(state AuthState) Provider {
	if state.Authenticated {
		return s.Persistent
	}
	return s.Ephemeral
}
