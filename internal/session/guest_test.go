package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reciperag/session-cache/internal/storage"
	"github.com/reciperag/session-cache/internal/storage/memory"
)

func TestGuestCleanup_FlushesOnce(t *testing.T) {
	ctx := context.Background()
	eph := memory.New(storage.ClassEphemeral, 0)

	assert.NoError(t, eph.Set(ctx, KeyPrefix+"guest:a", "{}"))
	assert.NoError(t, eph.Set(ctx, KeyPrefix+"guest:b", "{}"))

	cleanup := NewGuestCleanup(eph)
	cleanup.Run(ctx)
	assert.Equal(t, 0, eph.Len())

	// A second invocation is a no-op, even with fresh data in between.
	assert.NoError(t, eph.Set(ctx, KeyPrefix+"guest:c", "{}"))
	cleanup.Run(ctx)
	assert.Equal(t, 1, eph.Len())
}

func TestGuestCleanup_ToleratesNonFlushingBackend(t *testing.T) {
	cleanup := NewGuestCleanup(&failingProvider{})
	assert.NotPanics(t, func() {
		cleanup.Run(context.Background())
	})
}
