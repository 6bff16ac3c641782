package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reciperag/session-cache/internal/storage"
)

// GuestCleanup ties the ephemeral backend to process teardown so guest data
// does not leak across restarts when the backend itself outlives the process
// (Redis does; the memory backend dies with it either way).
type GuestCleanup struct {
	once      sync.Once
	ephemeral storage.Provider
	log       zerolog.Logger
}

// NewGuestCleanup creates the teardown hook for the given ephemeral backend.
func NewGuestCleanup(ephemeral storage.Provider) *GuestCleanup {
	return &GuestCleanup{
		ephemeral: ephemeral,
		log:       log.With().Str("component", "guest-cleanup").Logger(),
	}
}

// Run flushes guest entries from the ephemeral backend. It is idempotent:
// only the first call does work, no matter how many shutdown paths reach it.
func (g *GuestCleanup) Run(ctx context.Context) {
	g.once.Do(func() {
		flusher, ok := g.ephemeral.(storage.Flusher)
		if !ok {
			return
		}
		n, err := flusher.Flush(ctx)
		if err != nil {
			g.log.Warn().Err(err).Msg("guest session flush failed")
			return
		}
		g.log.Info().Int64("entries", n).Msg("flushed guest sessions")
	})
}
