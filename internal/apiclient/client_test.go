package apiclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/roomtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerGuest = "guest_01J9OWNER000000000000000"
	peerGuest  = "guest_01J9PEER0000000000000000"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIdentity(t *testing.T) {
	id, err := New("http://localhost", discardLogger(), WithGuestID(ownerGuest)).Identity()
	require.NoError(t, err)
	assert.Equal(t, ownerGuest, id)

	id, err = New("http://localhost", discardLogger(), WithToken(roomtest.Token(t, "user_7"))).Identity()
	require.NoError(t, err)
	assert.Equal(t, "user_7", id)

	_, err = New("http://localhost", discardLogger()).Identity()
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestRoomLifecycle(t *testing.T) {
	srv := roomtest.NewServer(t)
	ctx := context.Background()

	owner := New(srv.URL, discardLogger(), WithGuestID(ownerGuest))
	peer := New(srv.URL, discardLogger(), WithGuestID(peerGuest))

	room, self, err := owner.CreateRoom(ctx, "movie night", "Zed")
	require.NoError(t, err)
	assert.Equal(t, ownerGuest, room.OwnerID)
	assert.True(t, self.IsOwner)

	p, err := peer.JoinRoom(ctx, room.ID, "Amy")
	require.NoError(t, err)
	assert.False(t, p.IsOwner)
	assert.Equal(t, domain.StatusOnline, p.Status)

	updatedAt, err := owner.PutRoomSync(ctx, room.ID, domain.PlaybackUpdate{
		CurrentVideoURL:   domain.StringPtr("https://youtu.be/dQw4w9WgXcQ"),
		CurrentVideoTitle: domain.StringPtr("Demo"),
		PlaybackState:     domain.StatePlaying,
		PlaybackTime:      12.5,
	})
	require.NoError(t, err)
	assert.Positive(t, updatedAt)

	rs, err := peer.GetRoomSync(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", rs.Room.VideoURL())
	assert.Equal(t, domain.StatePlaying, rs.Room.PlaybackState)
	assert.Equal(t, 12.5, rs.Room.PlaybackTime)
	assert.Equal(t, updatedAt, rs.Room.UpdatedAt)
	assert.Len(t, rs.Participants, 2)
	assert.GreaterOrEqual(t, rs.ServerTime, updatedAt)

	renamed, err := peer.UpdateParticipant(ctx, room.ID, peerGuest, domain.ParticipantUpdate{
		DisplayName: domain.StringPtr("Amelia"),
		Color:       domain.StringPtr("#00ff00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Amelia", renamed.DisplayName)

	require.NoError(t, peer.Heartbeat(ctx, room.ID, domain.StatusAway))
	_, err = peer.UpdateParticipant(ctx, room.ID, peerGuest, domain.ParticipantUpdate{ClearColor: true})
	assert.ErrorIs(t, err, domain.ErrParticipantOffline)

	require.NoError(t, peer.LeaveRoom(ctx, room.ID))
	rs, err = owner.GetRoomSync(ctx, room.ID)
	require.NoError(t, err)
	for _, p := range rs.Participants {
		if p.ID == peerGuest {
			assert.Equal(t, domain.StatusOffline, p.Status)
		}
	}
}

func TestErrorsMapToDomain(t *testing.T) {
	srv := roomtest.NewServer(t)
	ctx := context.Background()

	owner := New(srv.URL, discardLogger(), WithToken(roomtest.Token(t, "user_7")))
	peer := New(srv.URL, discardLogger(), WithGuestID(peerGuest))

	room, _, err := owner.CreateRoom(ctx, "", "Zed")
	require.NoError(t, err)
	assert.Equal(t, "user_7", room.OwnerID)

	_, err = peer.GetRoomSync(ctx, "no-such-room")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = peer.JoinRoom(ctx, room.ID, "Amy")
	require.NoError(t, err)

	err = peer.KickParticipant(ctx, room.ID, "user_7")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	err = owner.KickParticipant(ctx, room.ID, "user_7")
	assert.ErrorIs(t, err, domain.ErrOwnerNotKickable)

	require.NoError(t, owner.KickParticipant(ctx, room.ID, peerGuest))
	_, err = peer.JoinRoom(ctx, room.ID, "Amy")
	require.ErrorIs(t, err, domain.ErrKicked)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, domain.CodeKicked, apiErr.Code)

	assert.ErrorIs(t, peer.Heartbeat(ctx, room.ID, domain.StatusOnline), domain.ErrKicked)

	require.NoError(t, owner.UnkickParticipant(ctx, room.ID, peerGuest))
	_, err = peer.JoinRoom(ctx, room.ID, "Amy")
	assert.NoError(t, err)

	_, err = owner.PutRoomSync(ctx, room.ID, domain.PlaybackUpdate{
		CurrentVideoURL: domain.StringPtr("https://example.com/page.html"),
		PlaybackState:   domain.StatePaused,
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedMedia)

	anon := New(srv.URL, discardLogger())
	_, _, err = anon.CreateRoom(ctx, "", "Nobody")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestUnexpectedErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ownerGuest, r.Header.Get("St-Guest-Id"))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, discardLogger(), WithGuestID(ownerGuest)).Heartbeat(context.Background(), "r", domain.StatusOnline)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, domain.CodeInternal, apiErr.Code)
}
