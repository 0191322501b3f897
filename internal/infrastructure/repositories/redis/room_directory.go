package redis

import (
	"context"
	"fmt"

	"peercall/internal/core/domain"
	"peercall/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisRoomDirectory keeps room membership in Redis sets so several signaling
// instances can resolve the same rooms. Member sets and the reverse
// connection-to-room index are updated together on join/leave.
type RedisRoomDirectory struct {
	client *redis.Client
	prefix string
}

func NewRedisRoomDirectory(client *redis.Client) ports.RoomDirectory {
	return &RedisRoomDirectory{
		client: client,
		prefix: "peercall:",
	}
}

func (d *RedisRoomDirectory) membersKey(roomID domain.RoomID) string {
	return fmt.Sprintf("%sroom:%s:members", d.prefix, roomID)
}

func (d *RedisRoomDirectory) connRoomKey(id domain.ConnectionID) string {
	return fmt.Sprintf("%sconn:%s:room", d.prefix, id)
}

func (d *RedisRoomDirectory) roomsKey() string {
	return d.prefix + "rooms"
}

func (d *RedisRoomDirectory) Join(ctx context.Context, roomID domain.RoomID, id domain.ConnectionID) error {
	prev, err := d.CurrentRoom(ctx, id)
	if err != nil {
		return err
	}
	if prev == roomID {
		return nil
	}
	if prev != "" {
		if err := d.Leave(ctx, prev, id); err != nil {
			return err
		}
	}

	pipe := d.client.TxPipeline()
	pipe.SAdd(ctx, d.membersKey(roomID), string(id))
	pipe.SAdd(ctx, d.roomsKey(), string(roomID))
	pipe.Set(ctx, d.connRoomKey(id), string(roomID), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to join room in Redis: %w", err)
	}
	return nil
}

func (d *RedisRoomDirectory) Leave(ctx context.Context, roomID domain.RoomID, id domain.ConnectionID) error {
	pipe := d.client.TxPipeline()
	pipe.SRem(ctx, d.membersKey(roomID), string(id))
	pipe.Del(ctx, d.connRoomKey(id))
	remaining := pipe.SCard(ctx, d.membersKey(roomID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to leave room in Redis: %w", err)
	}

	// Empty member sets vanish on their own; prune the room index entry too.
	if remaining.Val() == 0 {
		if err := d.client.SRem(ctx, d.roomsKey(), string(roomID)).Err(); err != nil {
			return fmt.Errorf("failed to prune room from Redis: %w", err)
		}
	}
	return nil
}

func (d *RedisRoomDirectory) Members(ctx context.Context, roomID domain.RoomID) ([]domain.ConnectionID, error) {
	ids, err := d.client.SMembers(ctx, d.membersKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get room members from Redis: %w", err)
	}

	members := make([]domain.ConnectionID, 0, len(ids))
	for _, id := range ids {
		members = append(members, domain.ConnectionID(id))
	}
	return members, nil
}

func (d *RedisRoomDirectory) CurrentRoom(ctx context.Context, id domain.ConnectionID) (domain.RoomID, error) {
	roomID, err := d.client.Get(ctx, d.connRoomKey(id)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get current room from Redis: %w", err)
	}
	return domain.RoomID(roomID), nil
}

func (d *RedisRoomDirectory) Rooms(ctx context.Context) ([]domain.RoomID, error) {
	ids, err := d.client.SMembers(ctx, d.roomsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms from Redis: %w", err)
	}

	rooms := make([]domain.RoomID, 0, len(ids))
	for _, id := range ids {
		rooms = append(rooms, domain.RoomID(id))
	}
	return rooms, nil
}
