package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sharetube/watchroom/internal/repository/room"
)

func (r repo) getPlayerKey(roomId string) string {
	return "room:" + roomId + ":player"
}

// SetPlayer overwrites the whole playback record and returns the stored updated_at.
func (r repo) SetPlayer(ctx context.Context, params *room.SetPlayerParams) (int64, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	updatedAt, err := r.rc.EvalSha(ctx, r.setPlayerScript, []string{r.getPlayerKey(params.RoomID)},
		params.Now,
		params.State,
		strconv.FormatFloat(params.Time, 'f', -1, 64),
		stringOrEmpty(params.VideoURL),
		stringOrEmpty(params.VideoTitle),
		stringOrEmpty(params.PlaylistID),
		int64(r.expireDuration.Seconds()),
	).Int64()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return 0, fmt.Errorf("failed to set player: %w", err)
	}

	return updatedAt, nil
}

func (r repo) GetPlayer(ctx context.Context, roomId string) (room.Player, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	var player room.Player
	if err := r.rc.HGetAll(ctx, r.getPlayerKey(roomId)).Scan(&player); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Player{}, fmt.Errorf("failed to get player: %w", err)
	}

	if player.State == "" {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrPlayerNotFound)
		return room.Player{}, room.ErrPlayerNotFound
	}

	return player, nil
}
