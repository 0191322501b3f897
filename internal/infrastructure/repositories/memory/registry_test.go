package memory

import (
	"context"
	"testing"

	"peercall/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	ctx := context.Background()
	registry := NewMemoryConnectionRegistry()

	err := registry.Register(ctx, &domain.Connection{
		ID:          "c1",
		DisplayName: "alice",
		RemoteAddr:  "10.0.0.1:1234",
	}, nil)
	require.NoError(t, err)

	conn, err := registry.Lookup(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionID("c1"), conn.ID)
	assert.Equal(t, "alice", conn.DisplayName)

	_, err = registry.Lookup(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestRegistryDuplicateIdentity(t *testing.T) {
	ctx := context.Background()
	registry := NewMemoryConnectionRegistry()

	require.NoError(t, registry.Register(ctx, &domain.Connection{ID: "c1"}, nil))
	err := registry.Register(ctx, &domain.Connection{ID: "c1"}, nil)
	assert.ErrorIs(t, err, domain.ErrDuplicateConnection)
}

func TestRegistryAssignRoom(t *testing.T) {
	ctx := context.Background()
	registry := NewMemoryConnectionRegistry()

	require.NoError(t, registry.Register(ctx, &domain.Connection{ID: "c1"}, nil))
	require.NoError(t, registry.AssignRoom(ctx, "c1", "r1"))

	conn, err := registry.Lookup(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("r1"), conn.RoomID)

	// Assigning the same room again is a no-op, not an error.
	require.NoError(t, registry.AssignRoom(ctx, "c1", "r1"))

	err = registry.AssignRoom(ctx, "ghost", "r1")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestRegistryRemoveCancelsLivenessAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	registry := NewMemoryConnectionRegistry()

	stopped := 0
	require.NoError(t, registry.Register(ctx, &domain.Connection{ID: "c1"}, func() {
		stopped++
	}))

	require.NoError(t, registry.Remove(ctx, "c1"))
	assert.Equal(t, 1, stopped, "liveness timer must be cancelled before removal")

	// Removing again must not fail and must not re-cancel.
	require.NoError(t, registry.Remove(ctx, "c1"))
	assert.Equal(t, 1, stopped)

	_, err := registry.Lookup(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestRegistryCount(t *testing.T) {
	ctx := context.Background()
	registry := NewMemoryConnectionRegistry()

	require.NoError(t, registry.Register(ctx, &domain.Connection{ID: "c1"}, nil))
	require.NoError(t, registry.Register(ctx, &domain.Connection{ID: "c2"}, nil))

	n, err := registry.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
