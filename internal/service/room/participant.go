package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/repository/room"
	"github.com/sharetube/watchroom/internal/stats"
)

type JoinRoomParams struct {
	SenderId    string
	RoomId      string
	DisplayName string
}

type JoinRoomResponse struct {
	Participant domain.Participant
}

func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	rm, err := s.getRoom(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	if err := s.checkIfNotKicked(ctx, params.RoomId, params.SenderId); err != nil {
		if errors.Is(err, domain.ErrKicked) {
			s.stats.Incr(stats.JoinsRejected)
		}

		return JoinRoomResponse{}, err
	}

	now := s.nowMs()
	isOwner := rm.OwnerID == params.SenderId
	if err := s.roomRepo.UpsertParticipant(ctx, &room.UpsertParticipantParams{
		RoomID:        params.RoomId,
		ParticipantID: params.SenderId,
		DisplayName:   params.DisplayName,
		IsOwner:       isOwner,
		LastSeen:      now,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to upsert participant", "error", err)
		return JoinRoomResponse{}, fmt.Errorf("failed to join room: %w", err)
	}

	participant, err := s.checkIfParticipant(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	s.stats.Incr(stats.Joins)

	return JoinRoomResponse{
		Participant: s.toDomainParticipant(participant, now),
	}, nil
}

type HeartbeatParams struct {
	SenderId string
	RoomId   string
	Status   domain.Status
}

// Heartbeat refreshes the sender's last_seen. A pruned record is reported as
// ErrParticipantNotFound so the client can join again.
func (s service) Heartbeat(ctx context.Context, params *HeartbeatParams) error {
	if _, err := s.getRoom(ctx, params.RoomId); err != nil {
		return err
	}

	if err := s.checkIfNotKicked(ctx, params.RoomId, params.SenderId); err != nil {
		return err
	}

	status := params.Status
	if status != domain.StatusAway {
		status = domain.StatusOnline
	}

	if err := s.roomRepo.UpdateParticipantPresence(ctx, &room.UpdatePresenceParams{
		RoomID:        params.RoomId,
		ParticipantID: params.SenderId,
		Presence:      string(status),
		LastSeen:      s.nowMs(),
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to update presence", "error", err)
		return mapRepoErr(err)
	}

	s.stats.Incr(stats.Heartbeats)

	return nil
}

type LeaveRoomParams struct {
	SenderId string
	RoomId   string
}

// LeaveRoom marks the sender offline right away. Leaving twice, or leaving a
// room the sender never joined, is not an error.
func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) error {
	err := s.roomRepo.UpdateParticipantPresence(ctx, &room.UpdatePresenceParams{
		RoomID:        params.RoomId,
		ParticipantID: params.SenderId,
		Presence:      string(domain.StatusOffline),
		LastSeen:      s.nowMs(),
	})
	if err != nil && !errors.Is(err, room.ErrParticipantNotFound) {
		s.logger.InfoContext(ctx, "failed to update presence", "error", err)
		return err
	}

	s.stats.Incr(stats.Leaves)

	return nil
}

type UpdateParticipantParams struct {
	SenderId    string
	RoomId      string
	TargetId    string
	DisplayName *string
	Color       *string
	ClearColor  bool
}

// UpdateParticipant renames or recolors a participant. The owner may update
// anyone, everybody else only themselves. Color changes need the target online.
func (s service) UpdateParticipant(ctx context.Context, params *UpdateParticipantParams) (domain.Participant, error) {
	rm, err := s.getRoom(ctx, params.RoomId)
	if err != nil {
		return domain.Participant{}, err
	}

	if err := s.checkIfNotKicked(ctx, params.RoomId, params.SenderId); err != nil {
		return domain.Participant{}, err
	}

	if params.SenderId != params.TargetId && params.SenderId != rm.OwnerID {
		return domain.Participant{}, domain.ErrPermissionDenied
	}

	target, err := s.checkIfParticipant(ctx, params.RoomId, params.TargetId)
	if err != nil {
		return domain.Participant{}, err
	}

	colorChange := params.Color != nil || params.ClearColor
	if colorChange && s.toDomainParticipant(target, s.nowMs()).Status != domain.StatusOnline {
		return domain.Participant{}, domain.ErrParticipantOffline
	}

	if params.DisplayName != nil {
		if err := s.roomRepo.UpdateParticipantDisplayName(ctx, &room.UpdateDisplayNameParams{
			RoomID:        params.RoomId,
			ParticipantID: params.TargetId,
			DisplayName:   *params.DisplayName,
		}); err != nil {
			s.logger.InfoContext(ctx, "failed to update display name", "error", err)
			return domain.Participant{}, mapRepoErr(err)
		}
	}

	if colorChange {
		var color *string
		if !params.ClearColor {
			color = params.Color
		}

		if err := s.roomRepo.UpdateParticipantColor(ctx, &room.UpdateColorParams{
			RoomID:        params.RoomId,
			ParticipantID: params.TargetId,
			Color:         color,
		}); err != nil {
			s.logger.InfoContext(ctx, "failed to update color", "error", err)
			return domain.Participant{}, mapRepoErr(err)
		}
	}

	updated, err := s.checkIfParticipant(ctx, params.RoomId, params.TargetId)
	if err != nil {
		return domain.Participant{}, err
	}

	return s.toDomainParticipant(updated, s.nowMs()), nil
}

type KickParticipantParams struct {
	SenderId string
	RoomId   string
	TargetId string
}

func (s service) checkIfOwner(ctx context.Context, roomId, senderId string) (room.Room, error) {
	rm, err := s.getRoom(ctx, roomId)
	if err != nil {
		return room.Room{}, err
	}

	if rm.OwnerID != senderId {
		return room.Room{}, domain.ErrPermissionDenied
	}

	return rm, nil
}

// KickParticipant removes the target and blocks it from joining again until
// it is unkicked. The owner can never be kicked.
func (s service) KickParticipant(ctx context.Context, params *KickParticipantParams) error {
	rm, err := s.checkIfOwner(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return err
	}

	if params.TargetId == rm.OwnerID {
		return domain.ErrOwnerNotKickable
	}

	if err := s.roomRepo.KickParticipant(ctx, &room.KickParams{
		RoomID:        params.RoomId,
		ParticipantID: params.TargetId,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to kick participant", "error", err)
		return err
	}

	s.stats.Incr(stats.Kicks)
	s.logger.InfoContext(ctx, "participant kicked", "target_id", params.TargetId)

	return nil
}

func (s service) UnkickParticipant(ctx context.Context, params *KickParticipantParams) error {
	if _, err := s.checkIfOwner(ctx, params.RoomId, params.SenderId); err != nil {
		return err
	}

	if err := s.roomRepo.UnkickParticipant(ctx, &room.KickParams{
		RoomID:        params.RoomId,
		ParticipantID: params.TargetId,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to unkick participant", "error", err)
		return err
	}

	return nil
}

// PruneStale removes non-owner participants not seen for longer than the prune
// threshold and returns how many were removed.
func (s service) PruneStale(ctx context.Context) (int, error) {
	roomIds, err := s.roomRepo.GetRoomIds(ctx)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get room ids", "error", err)
		return 0, err
	}

	cutoff := s.nowMs() - s.pruneAfter.Milliseconds()
	pruned := 0
	for _, roomId := range roomIds {
		participants, err := s.roomRepo.GetParticipants(ctx, roomId)
		if err != nil {
			s.logger.InfoContext(ctx, "failed to get participants", "room_id", roomId, "error", err)
			continue
		}

		for _, p := range participants {
			if p.IsOwner || p.LastSeen >= cutoff {
				continue
			}

			if err := s.roomRepo.RemoveParticipant(ctx, &room.RemoveParticipantParams{
				RoomID:        roomId,
				ParticipantID: p.ID,
			}); err != nil {
				s.logger.InfoContext(ctx, "failed to remove participant", "room_id", roomId, "error", err)
				continue
			}

			pruned++
			s.stats.Incr(stats.ParticipantsPruned)
		}
	}

	return pruned, nil
}
