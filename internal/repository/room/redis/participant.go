package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchroom/internal/repository/room"
)

func (r repo) getParticipantKey(roomId, participantId string) string {
	return "room:" + roomId + ":participant:" + participantId
}

func (r repo) getParticipantListKey(roomId string) string {
	return "room:" + roomId + ":participants"
}

// UpsertParticipant creates or refreshes the record of a joining participant.
// An existing color is kept.
func (r repo) UpsertParticipant(ctx context.Context, params *room.UpsertParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	participantKey := r.getParticipantKey(params.RoomID, params.ParticipantID)
	pipe.HSet(ctx, participantKey,
		"display_name", params.DisplayName,
		"is_owner", params.IsOwner,
		"last_seen", params.LastSeen,
		"presence", "online",
	)
	pipe.Expire(ctx, participantKey, r.expireDuration)

	r.appendOnce(ctx, pipe, r.getParticipantListKey(params.RoomID), params.ParticipantID)
	r.expireRoom(ctx, pipe, params.RoomID)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to upsert participant: %w", err)
	}

	return nil
}

func (r repo) GetParticipant(ctx context.Context, params *room.GetParticipantParams) (room.Participant, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	var participant room.Participant
	if err := r.rc.HGetAll(ctx, r.getParticipantKey(params.RoomID, params.ParticipantID)).Scan(&participant); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Participant{}, fmt.Errorf("failed to get participant: %w", err)
	}

	if participant.DisplayName == "" {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.Participant{}, room.ErrParticipantNotFound
	}

	participant.ID = params.ParticipantID
	return participant, nil
}

// GetParticipants returns the participants of a room in join order.
func (r repo) GetParticipants(ctx context.Context, roomId string) ([]room.Participant, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	participantIds, err := r.rc.ZRange(ctx, r.getParticipantListKey(roomId), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to get participant ids: %w", err)
	}

	pipe := r.rc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(participantIds))
	for _, participantId := range participantIds {
		cmds = append(cmds, pipe.HGetAll(ctx, r.getParticipantKey(roomId, participantId)))
	}

	if len(cmds) > 0 {
		if err := r.executePipe(ctx, pipe); err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return nil, fmt.Errorf("failed to get participants: %w", err)
		}
	}

	participants := make([]room.Participant, 0, len(participantIds))
	for i, cmd := range cmds {
		var participant room.Participant
		if err := cmd.Scan(&participant); err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}

		// record expired while its id is still listed
		if participant.DisplayName == "" {
			continue
		}

		participant.ID = participantIds[i]
		participants = append(participants, participant)
	}

	return participants, nil
}

func (r repo) UpdateParticipantPresence(ctx context.Context, params *room.UpdatePresenceParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	key := r.getParticipantKey(params.RoomID, params.ParticipantID)
	ok, err := r.hSetIfExists(ctx, key, "presence", params.Presence, "last_seen", params.LastSeen)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to update presence: %w", err)
	}

	if !ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.ErrParticipantNotFound
	}

	pipe := r.rc.Pipeline()
	pipe.Expire(ctx, key, r.expireDuration)
	r.expireRoom(ctx, pipe, params.RoomID)
	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to refresh expiration: %w", err)
	}

	return nil
}

func (r repo) UpdateParticipantDisplayName(ctx context.Context, params *room.UpdateDisplayNameParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	ok, err := r.hSetIfExists(ctx, r.getParticipantKey(params.RoomID, params.ParticipantID), "display_name", params.DisplayName)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to update display name: %w", err)
	}

	if !ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.ErrParticipantNotFound
	}

	return nil
}

func (r repo) UpdateParticipantColor(ctx context.Context, params *room.UpdateColorParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	key := r.getParticipantKey(params.RoomID, params.ParticipantID)
	if params.Color == nil {
		exists, err := r.rc.Exists(ctx, key).Result()
		if err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return fmt.Errorf("failed to check participant: %w", err)
		}

		if exists == 0 {
			r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
			return room.ErrParticipantNotFound
		}

		if err := r.rc.HDel(ctx, key, "color").Err(); err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return fmt.Errorf("failed to clear color: %w", err)
		}

		return nil
	}

	ok, err := r.hSetIfExists(ctx, key, "color", *params.Color)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to update color: %w", err)
	}

	if !ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrParticipantNotFound)
		return room.ErrParticipantNotFound
	}

	return nil
}

func (r repo) RemoveParticipant(ctx context.Context, params *room.RemoveParticipantParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()
	pipe.ZRem(ctx, r.getParticipantListKey(params.RoomID), params.ParticipantID)
	pipe.Del(ctx, r.getParticipantKey(params.RoomID, params.ParticipantID))

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	return nil
}
