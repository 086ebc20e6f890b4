package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchroom/internal/repository/room"
)

const roomKeySuffix = ":info"

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId + roomKeySuffix
}

func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	roomKey := r.getRoomKey(params.RoomID)

	created, err := r.rc.HSetNX(ctx, roomKey, "owner_id", params.OwnerID).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to create room: %w", err)
	}

	if !created {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomAlreadyExists)
		return room.ErrRoomAlreadyExists
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, roomKey, "name", params.Name, "created_at", params.CreatedAt)
	pipe.HSet(ctx, r.getPlayerKey(params.RoomID),
		"state", "paused",
		"time", 0,
		"updated_at", params.CreatedAt,
	)
	r.expireRoom(ctx, pipe, params.RoomID)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	var rm room.Room
	if err := r.rc.HGetAll(ctx, r.getRoomKey(roomId)).Scan(&rm); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if rm.OwnerID == "" {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Room{}, room.ErrRoomNotFound
	}

	return rm, nil
}

// GetRoomIds scans the keyspace for live rooms. It is meant for background
// jobs only.
func (r repo) GetRoomIds(ctx context.Context) ([]string, error) {
	r.logger.DebugContext(ctx, "called")
	var roomIds []string
	iter := r.rc.Scan(ctx, 0, "room:*"+roomKeySuffix, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		roomIds = append(roomIds, strings.TrimSuffix(strings.TrimPrefix(key, "room:"), roomKeySuffix))
	}

	if err := iter.Err(); err != nil && !errors.Is(err, redis.Nil) {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to scan rooms: %w", err)
	}

	return roomIds, nil
}
