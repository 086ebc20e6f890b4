package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/media"
	"github.com/sharetube/watchroom/internal/repository/room"
	"github.com/sharetube/watchroom/internal/stats"
)

type CreateRoomParams struct {
	SenderId    string
	Name        string
	DisplayName string
}

type CreateRoomResponse struct {
	Room        domain.Room
	Participant domain.Participant
}

// CreateRoom creates a room owned by the sender and joins the sender to it.
func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	roomId := uuid.NewString()
	now := s.nowMs()

	if err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
		RoomID:    roomId,
		OwnerID:   params.SenderId,
		Name:      params.Name,
		CreatedAt: now,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to create room", "error", err)
		return CreateRoomResponse{}, fmt.Errorf("failed to create room: %w", err)
	}

	if err := s.roomRepo.UpsertParticipant(ctx, &room.UpsertParticipantParams{
		RoomID:        roomId,
		ParticipantID: params.SenderId,
		DisplayName:   params.DisplayName,
		IsOwner:       true,
		LastSeen:      now,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to add owner", "error", err)
		return CreateRoomResponse{}, fmt.Errorf("failed to add owner: %w", err)
	}

	s.stats.Incr(stats.RoomsCreated)
	s.logger.InfoContext(ctx, "room created", "room_id", roomId)

	return CreateRoomResponse{
		Room: domain.Room{
			ID:        roomId,
			Name:      params.Name,
			OwnerID:   params.SenderId,
			CreatedAt: now,
		},
		Participant: domain.Participant{
			ID:          params.SenderId,
			DisplayName: params.DisplayName,
			IsOwner:     true,
			Presence:    domain.StatusOnline,
			LastSeen:    now,
			Status:      domain.StatusOnline,
		},
	}, nil
}

type GetRoomSyncParams struct {
	SenderId string
	RoomId   string
}

// GetRoomSync returns the playback record and the participant list with statuses
// derived against the server clock at read time.
func (s service) GetRoomSync(ctx context.Context, params *GetRoomSyncParams) (domain.RoomSync, error) {
	if _, err := s.getRoom(ctx, params.RoomId); err != nil {
		return domain.RoomSync{}, err
	}

	if err := s.checkIfNotKicked(ctx, params.RoomId, params.SenderId); err != nil {
		return domain.RoomSync{}, err
	}

	player, err := s.roomRepo.GetPlayer(ctx, params.RoomId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get player", "error", err)
		return domain.RoomSync{}, mapRepoErr(err)
	}

	participants, err := s.roomRepo.GetParticipants(ctx, params.RoomId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get participants", "error", err)
		return domain.RoomSync{}, err
	}

	serverTime := s.nowMs()
	list := make([]domain.Participant, 0, len(participants))
	for _, p := range participants {
		list = append(list, s.toDomainParticipant(p, serverTime))
	}

	s.stats.Incr(stats.SyncReads)

	return domain.RoomSync{
		Room:         toRoomState(player),
		Participants: list,
		ServerTime:   serverTime,
	}, nil
}

type PutRoomSyncParams struct {
	SenderId string
	RoomId   string
	Update   domain.PlaybackUpdate
}

type PutRoomSyncResponse struct {
	UpdatedAt int64
}

// PutRoomSync overwrites the playback record. Concurrent writers are resolved
// last-write-wins by the stored updated_at.
func (s service) PutRoomSync(ctx context.Context, params *PutRoomSyncParams) (PutRoomSyncResponse, error) {
	update := params.Update
	if !update.PlaybackState.Valid() {
		return PutRoomSyncResponse{}, fmt.Errorf("%w: %q", ErrInvalidPlaybackState, update.PlaybackState)
	}

	var parsed *media.Media
	if update.CurrentVideoURL != nil {
		m, err := media.Parse(*update.CurrentVideoURL)
		if err != nil {
			return PutRoomSyncResponse{}, err
		}
		parsed = &m
	}

	if _, err := s.getRoom(ctx, params.RoomId); err != nil {
		return PutRoomSyncResponse{}, err
	}

	if err := s.checkIfNotKicked(ctx, params.RoomId, params.SenderId); err != nil {
		return PutRoomSyncResponse{}, err
	}

	if _, err := s.checkIfParticipant(ctx, params.RoomId, params.SenderId); err != nil {
		if errors.Is(err, domain.ErrParticipantNotFound) {
			return PutRoomSyncResponse{}, domain.ErrPermissionDenied
		}

		return PutRoomSyncResponse{}, err
	}

	title := update.CurrentVideoTitle
	if parsed != nil && (title == nil || *title == "") {
		title = s.resolveTitle(ctx, *parsed)
	}

	updatedAt, err := s.roomRepo.SetPlayer(ctx, &room.SetPlayerParams{
		RoomID:     params.RoomId,
		VideoURL:   update.CurrentVideoURL,
		VideoTitle: title,
		PlaylistID: update.CurrentPlaylistID,
		State:      string(update.PlaybackState),
		Time:       update.PlaybackTime,
		Now:        s.nowMs(),
	})
	if err != nil {
		s.logger.InfoContext(ctx, "failed to set player", "error", err)
		return PutRoomSyncResponse{}, err
	}

	s.stats.Incr(stats.SyncWrites)

	return PutRoomSyncResponse{UpdatedAt: updatedAt}, nil
}

// resolveTitle looks up a display title for platform media. Lookup failures
// leave the title empty.
func (s service) resolveTitle(ctx context.Context, m media.Media) *string {
	if s.titles == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.titleTimeout)
	defer cancel()

	var title string
	switch m.Kind {
	case media.KindYouTube:
		data, err := s.titles.YouTube(ctx, m.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to resolve title", "media", m.Identity(), "error", err)
			s.stats.Incr(stats.TitleLookupsFailed)
			return nil
		}
		title = data.Title
	case media.KindVimeo:
		data, err := s.titles.Vimeo(ctx, m.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to resolve title", "media", m.Identity(), "error", err)
			s.stats.Incr(stats.TitleLookupsFailed)
			return nil
		}
		title = data.Title
	default:
		return nil
	}

	if title == "" {
		return nil
	}

	return &title
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func toRoomState(p room.Player) domain.RoomState {
	return domain.RoomState{
		CurrentVideoURL:   optionalString(p.VideoURL),
		CurrentVideoTitle: optionalString(p.VideoTitle),
		CurrentPlaylistID: optionalString(p.PlaylistID),
		PlaybackState:     domain.PlaybackState(p.State),
		PlaybackTime:      p.Time,
		UpdatedAt:         p.UpdatedAt,
	}
}
