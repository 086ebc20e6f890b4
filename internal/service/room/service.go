package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/repository/room"
	"github.com/sharetube/watchroom/internal/stats"
	"github.com/sharetube/watchroom/pkg/oembed"
)

var ErrInvalidPlaybackState = fmt.Errorf("%w: playback state must be playing or paused", domain.ErrInvalidInput)

type iRoomRepo interface {
	// room
	CreateRoom(context.Context, *room.CreateRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	GetRoomIds(context.Context) ([]string, error)
	// player
	SetPlayer(context.Context, *room.SetPlayerParams) (int64, error)
	GetPlayer(context.Context, string) (room.Player, error)
	// participant
	UpsertParticipant(context.Context, *room.UpsertParticipantParams) error
	GetParticipant(context.Context, *room.GetParticipantParams) (room.Participant, error)
	GetParticipants(context.Context, string) ([]room.Participant, error)
	UpdateParticipantPresence(context.Context, *room.UpdatePresenceParams) error
	UpdateParticipantDisplayName(context.Context, *room.UpdateDisplayNameParams) error
	UpdateParticipantColor(context.Context, *room.UpdateColorParams) error
	RemoveParticipant(context.Context, *room.RemoveParticipantParams) error
	// kick
	KickParticipant(context.Context, *room.KickParams) error
	UnkickParticipant(context.Context, *room.KickParams) error
	IsKicked(ctx context.Context, roomId, participantId string) (bool, error)
}

type iTitleResolver interface {
	YouTube(ctx context.Context, videoID string) (*oembed.VideoData, error)
	Vimeo(ctx context.Context, videoID string) (*oembed.VideoData, error)
}

type Config struct {
	Secret          string
	PresenceTimeout time.Duration
	PruneAfter      time.Duration
	TitleTimeout    time.Duration
}

type service struct {
	roomRepo        iRoomRepo
	titles          iTitleResolver
	stats           stats.StatsProvider
	logger          *slog.Logger
	secret          []byte
	presenceTimeout time.Duration
	pruneAfter      time.Duration
	titleTimeout    time.Duration
	now             func() time.Time
}

func NewService(roomRepo iRoomRepo, titles iTitleResolver, stats stats.StatsProvider, logger *slog.Logger, cfg *Config) *service {
	s := service{
		roomRepo:        roomRepo,
		titles:          titles,
		stats:           stats,
		logger:          logger,
		secret:          []byte(cfg.Secret),
		presenceTimeout: cfg.PresenceTimeout,
		pruneAfter:      cfg.PruneAfter,
		titleTimeout:    cfg.TitleTimeout,
		now:             time.Now,
	}

	if s.presenceTimeout <= 0 {
		s.presenceTimeout = domain.DefaultPresenceTimeout
	}
	if s.pruneAfter <= 0 {
		s.pruneAfter = time.Hour
	}
	if s.titleTimeout <= 0 {
		s.titleTimeout = 3 * time.Second
	}

	return &s
}

func (s service) nowMs() int64 {
	return s.now().UnixMilli()
}

// mapRepoErr turns repository sentinels into the domain errors the transport maps.
func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrPlayerNotFound):
		return domain.ErrRoomNotFound
	case errors.Is(err, room.ErrParticipantNotFound):
		return domain.ErrParticipantNotFound
	default:
		return err
	}
}

func (s service) getRoom(ctx context.Context, roomId string) (room.Room, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get room", "error", err)
		return room.Room{}, mapRepoErr(err)
	}

	return rm, nil
}

func (s service) checkIfNotKicked(ctx context.Context, roomId, participantId string) error {
	kicked, err := s.roomRepo.IsKicked(ctx, roomId, participantId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to check kick list", "error", err)
		return err
	}

	if kicked {
		return domain.ErrKicked
	}

	return nil
}

func (s service) checkIfParticipant(ctx context.Context, roomId, participantId string) (room.Participant, error) {
	participant, err := s.roomRepo.GetParticipant(ctx, &room.GetParticipantParams{
		RoomID:        roomId,
		ParticipantID: participantId,
	})
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get participant", "error", err)
		return room.Participant{}, mapRepoErr(err)
	}

	return participant, nil
}

func (s service) toDomainParticipant(p room.Participant, ref int64) domain.Participant {
	var color *string
	if p.Color != "" {
		color = domain.StringPtr(p.Color)
	}

	presence := domain.Status(p.Presence)
	if presence == "" {
		presence = domain.StatusOnline
	}

	return domain.Participant{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Color:       color,
		IsOwner:     p.IsOwner,
		Presence:    presence,
		LastSeen:    p.LastSeen,
	}.WithStatus(ref, s.presenceTimeout)
}
