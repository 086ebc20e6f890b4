package redis

import (
	"context"
	"fmt"

	"github.com/sharetube/watchroom/internal/repository/room"
)

func (r repo) getKickedKey(roomId string) string {
	return "room:" + roomId + ":kicked"
}

// KickParticipant records the kick and drops the participant record in one
// transaction. Kicking twice is a no-op.
func (r repo) KickParticipant(ctx context.Context, params *room.KickParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()
	pipe.SAdd(ctx, r.getKickedKey(params.RoomID), params.ParticipantID)
	pipe.ZRem(ctx, r.getParticipantListKey(params.RoomID), params.ParticipantID)
	pipe.Del(ctx, r.getParticipantKey(params.RoomID, params.ParticipantID))
	r.expireRoom(ctx, pipe, params.RoomID)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to kick participant: %w", err)
	}

	return nil
}

func (r repo) UnkickParticipant(ctx context.Context, params *room.KickParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	if err := r.rc.SRem(ctx, r.getKickedKey(params.RoomID), params.ParticipantID).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to unkick participant: %w", err)
	}

	return nil
}

func (r repo) IsKicked(ctx context.Context, roomId, participantId string) (bool, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "participant_id", participantId)
	kicked, err := r.rc.SIsMember(ctx, r.getKickedKey(roomId), participantId).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, fmt.Errorf("failed to check kick list: %w", err)
	}

	return kicked, nil
}
