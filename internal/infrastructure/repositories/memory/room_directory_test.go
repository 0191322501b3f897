package memory

import (
	"context"
	"testing"

	"peercall/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomDirectoryJoinAndMembers(t *testing.T) {
	ctx := context.Background()
	directory := NewMemoryRoomDirectory()

	require.NoError(t, directory.Join(ctx, "r1", "c1"))
	require.NoError(t, directory.Join(ctx, "r1", "c2"))

	members, err := directory.Members(ctx, "r1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.ConnectionID{"c1", "c2"}, members)

	// Unknown rooms report an empty member list, not an error.
	members, err = directory.Members(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestRoomDirectoryMembershipIsExclusive(t *testing.T) {
	ctx := context.Background()
	directory := NewMemoryRoomDirectory()

	require.NoError(t, directory.Join(ctx, "r1", "c1"))
	require.NoError(t, directory.Join(ctx, "r2", "c1"))

	room, err := directory.CurrentRoom(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("r2"), room)

	members, err := directory.Members(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, members, "joining r2 must remove c1 from r1")

	// Re-joining the current room is a no-op.
	require.NoError(t, directory.Join(ctx, "r2", "c1"))
	members, err = directory.Members(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, []domain.ConnectionID{"c1"}, members)
}

func TestRoomDirectoryLeavePrunesEmptyRoom(t *testing.T) {
	ctx := context.Background()
	directory := NewMemoryRoomDirectory()

	require.NoError(t, directory.Join(ctx, "r1", "c1"))
	require.NoError(t, directory.Leave(ctx, "r1", "c1"))

	rooms, err := directory.Rooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	room, err := directory.CurrentRoom(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, room)

	// Leaving again, or leaving a room never joined, is a no-op.
	require.NoError(t, directory.Leave(ctx, "r1", "c1"))
	require.NoError(t, directory.Leave(ctx, "ghost", "c1"))
}

func TestRoomDirectoryRooms(t *testing.T) {
	ctx := context.Background()
	directory := NewMemoryRoomDirectory()

	require.NoError(t, directory.Join(ctx, "r1", "c1"))
	require.NoError(t, directory.Join(ctx, "r2", "c2"))

	rooms, err := directory.Rooms(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.RoomID{"r1", "r2"}, rooms)
}
