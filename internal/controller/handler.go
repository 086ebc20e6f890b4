package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/service/room"
	"github.com/sharetube/watchroom/pkg/rest"
)

type createRoomRequest struct {
	Name        string `json:"name" validate:"max=64"`
	DisplayName string `json:"display_name" validate:"required,max=32"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !c.readAndValidate(w, r, &req) {
		return
	}

	resp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		SenderId:    c.getSenderIdFromCtx(r.Context()),
		Name:        req.Name,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": rest.Envelope{
		"room":        resp.Room,
		"participant": resp.Participant,
	}})
}

func (c controller) getRoomSync(w http.ResponseWriter, r *http.Request) {
	sync, err := c.roomService.GetRoomSync(r.Context(), &room.GetRoomSyncParams{
		SenderId: c.getSenderIdFromCtx(r.Context()),
		RoomId:   c.getRoomIdFromCtx(r.Context()),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": sync})
}

type putRoomSyncRequest struct {
	CurrentVideoURL   *string `json:"current_video_url" validate:"omitempty,min=1,max=2048"`
	CurrentVideoTitle *string `json:"current_video_title" validate:"omitempty,max=512"`
	CurrentPlaylistID *string `json:"current_playlist_id" validate:"omitempty,max=128"`
	PlaybackState     string  `json:"playback_state" validate:"required,oneof=playing paused"`
	PlaybackTime      float64 `json:"playback_time" validate:"gte=0"`
}

func (c controller) putRoomSync(w http.ResponseWriter, r *http.Request) {
	var req putRoomSyncRequest
	if !c.readAndValidate(w, r, &req) {
		return
	}

	resp, err := c.roomService.PutRoomSync(r.Context(), &room.PutRoomSyncParams{
		SenderId: c.getSenderIdFromCtx(r.Context()),
		RoomId:   c.getRoomIdFromCtx(r.Context()),
		Update: domain.PlaybackUpdate{
			CurrentVideoURL:   req.CurrentVideoURL,
			CurrentVideoTitle: req.CurrentVideoTitle,
			CurrentPlaylistID: req.CurrentPlaylistID,
			PlaybackState:     domain.PlaybackState(req.PlaybackState),
			PlaybackTime:      req.PlaybackTime,
		},
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rest.Envelope{
		"updated_at": resp.UpdatedAt,
	}})
}

type joinRoomRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=32"`
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if !c.readAndValidate(w, r, &req) {
		return
	}

	resp, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		SenderId:    c.getSenderIdFromCtx(r.Context()),
		RoomId:      c.getRoomIdFromCtx(r.Context()),
		DisplayName: req.DisplayName,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rest.Envelope{
		"participant": resp.Participant,
	}})
}

type heartbeatRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=online away"`
}

func (c controller) heartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if !c.readAndValidate(w, r, &req) {
		return
	}

	if err := c.roomService.Heartbeat(r.Context(), &room.HeartbeatParams{
		SenderId: c.getSenderIdFromCtx(r.Context()),
		RoomId:   c.getRoomIdFromCtx(r.Context()),
		Status:   domain.Status(req.Status),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c controller) leaveRoom(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.LeaveRoom(r.Context(), &room.LeaveRoomParams{
		SenderId: c.getSenderIdFromCtx(r.Context()),
		RoomId:   c.getRoomIdFromCtx(r.Context()),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type updateParticipantRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=32"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
	ClearColor  bool    `json:"clear_color"`
}

func (c controller) updateParticipant(w http.ResponseWriter, r *http.Request) {
	var req updateParticipantRequest
	if !c.readAndValidate(w, r, &req) {
		return
	}

	participant, err := c.roomService.UpdateParticipant(r.Context(), &room.UpdateParticipantParams{
		SenderId:    c.getSenderIdFromCtx(r.Context()),
		RoomId:      c.getRoomIdFromCtx(r.Context()),
		TargetId:    chi.URLParam(r, "participant-id"),
		DisplayName: req.DisplayName,
		Color:       req.Color,
		ClearColor:  req.ClearColor,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rest.Envelope{
		"participant": participant,
	}})
}

func (c controller) kickParticipant(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.KickParticipant(r.Context(), &room.KickParticipantParams{
		SenderId: c.getSenderIdFromCtx(r.Context()),
		RoomId:   c.getRoomIdFromCtx(r.Context()),
		TargetId: chi.URLParam(r, "participant-id"),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c controller) unkickParticipant(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.UnkickParticipant(r.Context(), &room.KickParticipantParams{
		SenderId: c.getSenderIdFromCtx(r.Context()),
		RoomId:   c.getRoomIdFromCtx(r.Context()),
		TargetId: chi.URLParam(r, "participant-id"),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
