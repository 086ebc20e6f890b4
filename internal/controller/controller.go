package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/service/room"
	"github.com/sharetube/watchroom/pkg/validator"
)

type iRoomService interface {
	ParseIdentityToken(string) (string, error)
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	GetRoomSync(context.Context, *room.GetRoomSyncParams) (domain.RoomSync, error)
	PutRoomSync(context.Context, *room.PutRoomSyncParams) (room.PutRoomSyncResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	Heartbeat(context.Context, *room.HeartbeatParams) error
	LeaveRoom(context.Context, *room.LeaveRoomParams) error
	UpdateParticipant(context.Context, *room.UpdateParticipantParams) (domain.Participant, error)
	KickParticipant(context.Context, *room.KickParticipantParams) error
	UnkickParticipant(context.Context, *room.KickParticipantParams) error
}

type controller struct {
	roomService  iRoomService
	statsHandler http.Handler
	validate     *validator.Validator
	logger       *slog.Logger
}

func NewController(roomService iRoomService, statsHandler http.Handler, logger *slog.Logger) *controller {
	return &controller{
		roomService:  roomService,
		statsHandler: statsHandler,
		validate:     validator.NewValidator(),
		logger:       logger,
	}
}
