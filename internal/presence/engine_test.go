package presence

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// room is an in-memory presence store with the server's rules.
type room struct {
	mu           sync.Mutex
	now          func() time.Time
	ownerID      string
	order        []string
	participants map[string]*domain.Participant
	kicked       map[string]bool
	joins        int
}

func newRoom(ownerID string, now func() time.Time) *room {
	return &room{
		now:          now,
		ownerID:      ownerID,
		participants: make(map[string]*domain.Participant),
		kicked:       make(map[string]bool),
	}
}

// as binds the room to the identity of one caller.
func (r *room) as(id string) *roomClient {
	return &roomClient{room: r, id: id}
}

func (r *room) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, id)
}

type roomClient struct {
	*room
	id string
}

func (c *roomClient) JoinRoom(_ context.Context, _, displayName string) (domain.Participant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joins++
	if c.kicked[c.id] {
		return domain.Participant{}, domain.ErrKicked
	}

	p, ok := c.participants[c.id]
	if !ok {
		p = &domain.Participant{ID: c.id, IsOwner: c.id == c.ownerID}
		c.participants[c.id] = p
		c.order = append(c.order, c.id)
	}
	p.DisplayName = displayName
	p.LastSeen = c.now().UnixMilli()
	p.Presence = domain.StatusOnline

	return p.WithStatus(c.now().UnixMilli(), domain.DefaultPresenceTimeout), nil
}

func (c *roomClient) Heartbeat(_ context.Context, _ string, status domain.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kicked[c.id] {
		return domain.ErrKicked
	}
	p, ok := c.participants[c.id]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.LastSeen = c.now().UnixMilli()
	p.Presence = status
	return nil
}

func (c *roomClient) LeaveRoom(_ context.Context, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.participants[c.id]; ok {
		p.Presence = domain.StatusOffline
		p.LastSeen = c.now().UnixMilli()
	}
	return nil
}

func (c *roomClient) GetRoomSync(_ context.Context, _ string) (domain.RoomSync, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kicked[c.id] {
		return domain.RoomSync{}, domain.ErrKicked
	}

	now := c.now().UnixMilli()
	rs := domain.RoomSync{ServerTime: now}
	for _, id := range c.order {
		if p, ok := c.participants[id]; ok {
			rs.Participants = append(rs.Participants, p.WithStatus(now, domain.DefaultPresenceTimeout))
		}
	}
	return rs, nil
}

func (c *roomClient) UpdateParticipant(_ context.Context, _, targetID string, u domain.ParticipantUpdate) (domain.Participant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id != c.ownerID && c.id != targetID {
		return domain.Participant{}, domain.ErrPermissionDenied
	}
	p, ok := c.participants[targetID]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if u.DisplayName != nil {
		p.DisplayName = *u.DisplayName
	}
	if u.Color != nil {
		p.Color = u.Color
	}
	if u.ClearColor {
		p.Color = nil
	}
	return *p, nil
}

func (c *roomClient) KickParticipant(_ context.Context, _, targetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id != c.ownerID {
		return domain.ErrPermissionDenied
	}
	if targetID == c.ownerID {
		return domain.ErrOwnerNotKickable
	}
	c.kicked[targetID] = true
	delete(c.participants, targetID)
	return nil
}

func (c *roomClient) UnkickParticipant(_ context.Context, _, targetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id != c.ownerID {
		return domain.ErrPermissionDenied
	}
	delete(c.kicked, targetID)
	return nil
}

type recorder struct {
	mu          sync.Mutex
	transitions []Transition
	lists       [][]domain.Participant
	kicked      int
}

func (r *recorder) OnParticipants(list []domain.Participant) {
	r.mu.Lock()
	r.lists = append(r.lists, list)
	r.mu.Unlock()
}

func (r *recorder) OnTransition(t Transition) {
	r.mu.Lock()
	r.transitions = append(r.transitions, t)
	r.mu.Unlock()
}

func (r *recorder) OnKicked() {
	r.mu.Lock()
	r.kicked++
	r.mu.Unlock()
}

func (r *recorder) takeTransitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.transitions
	r.transitions = nil
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func names(list []domain.Participant) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.DisplayName)
	}
	return out
}

func newTestRoom() (*testClock, *room) {
	clock := &testClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return clock, newRoom("owner", clock.Now)
}

func join(t *testing.T, r *room, id, name string) *Engine {
	t.Helper()
	e := NewEngine(r.as(id), "room-1", id, discardLogger(), DefaultConfig())
	_, err := e.Join(context.Background(), name)
	require.NoError(t, err)
	return e
}

func TestSortParticipantsOrdering(t *testing.T) {
	list := []domain.Participant{
		{ID: "bob", DisplayName: "Bob", Status: domain.StatusOffline},
		{ID: "amy", DisplayName: "Amy", Status: domain.StatusOnline},
		{ID: "zed", DisplayName: "Zed", Status: domain.StatusOnline, IsOwner: true},
	}

	SortParticipants(list, "amy", true, nil)
	assert.Equal(t, []string{"Zed", "Amy", "Bob"}, names(list))

	SortParticipants(list, "bob", false, nil)
	assert.Equal(t, []string{"Zed", "Amy", "Bob"}, names(list))

	SortParticipants(list, "bob", true, nil)
	assert.Equal(t, []string{"Zed", "Bob", "Amy"}, names(list))
}

func TestSortParticipantsCollation(t *testing.T) {
	list := []domain.Participant{
		{ID: "1", DisplayName: "Zoe", Status: domain.StatusOnline},
		{ID: "2", DisplayName: "émile", Status: domain.StatusOnline},
		{ID: "3", DisplayName: "adam", Status: domain.StatusOnline},
		{ID: "4", DisplayName: "Aaron", Status: domain.StatusAway},
	}

	SortParticipants(list, "", true, nil)
	assert.Equal(t, []string{"adam", "émile", "Zoe", "Aaron"}, names(list))
}

func TestRefreshOrdersAndTracksTransitions(t *testing.T) {
	clock, r := newTestRoom()
	ctx := context.Background()

	owner := join(t, r, "owner", "Zed")
	amy := join(t, r, "guest_amy", "Amy")
	bob := join(t, r, "guest_bob", "Bob")
	require.NoError(t, bob.Leave(ctx))

	rec := &recorder{}
	amy.SetListener(rec)

	list, err := amy.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zed", "Amy", "Bob"}, names(list))
	assert.Equal(t, []Transition{
		{ParticipantID: "owner", DisplayName: "Zed", From: StatusUnknown, To: domain.StatusOnline},
		{ParticipantID: "guest_amy", DisplayName: "Amy", From: StatusUnknown, To: domain.StatusOnline},
		{ParticipantID: "guest_bob", DisplayName: "Bob", From: StatusUnknown, To: domain.StatusOffline},
	}, rec.takeTransitions())

	// no change, no transitions
	_, err = amy.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, rec.takeTransitions())

	clock.Advance(20 * time.Second)
	owner.SetAway(true)
	require.NoError(t, owner.Heartbeat(ctx))
	require.NoError(t, amy.Heartbeat(ctx))
	_, err = amy.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Transition{
		{ParticipantID: "owner", DisplayName: "Zed", From: domain.StatusOnline, To: domain.StatusAway},
	}, rec.takeTransitions())

	clock.Advance(31 * time.Second)
	require.NoError(t, amy.Heartbeat(ctx))
	list, err = amy.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOffline, list[0].Status)
	assert.Equal(t, []Transition{
		{ParticipantID: "owner", DisplayName: "Zed", From: domain.StatusAway, To: domain.StatusOffline},
	}, rec.takeTransitions())

	owner.SetAway(false)
	require.NoError(t, owner.Heartbeat(ctx))
	_, err = amy.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Transition{
		{ParticipantID: "owner", DisplayName: "Zed", From: domain.StatusOffline, To: domain.StatusOnline},
	}, rec.takeTransitions())

	rec.mu.Lock()
	assert.Len(t, rec.lists, 5)
	rec.mu.Unlock()
}

func TestKickIsTerminal(t *testing.T) {
	_, r := newTestRoom()
	ctx := context.Background()

	owner := join(t, r, "owner", "Zed")
	peer := join(t, r, "guest_amy", "Amy")
	rec := &recorder{}
	peer.SetListener(rec)

	_, err := owner.Refresh(ctx)
	require.NoError(t, err)
	require.NoError(t, owner.Kick(ctx, "guest_amy"))
	assert.Equal(t, []string{"Zed"}, names(owner.Participants()))

	// kicking twice is fine
	require.NoError(t, owner.Kick(ctx, "guest_amy"))

	err = peer.Heartbeat(ctx)
	assert.ErrorIs(t, err, domain.ErrKicked)
	assert.True(t, peer.IsKicked())
	select {
	case <-peer.Kicked():
	default:
		t.Fatal("kicked channel not closed")
	}

	joinsBefore := r.joins
	_, err = peer.Join(ctx, "Amy again")
	assert.ErrorIs(t, err, domain.ErrKicked)
	assert.Equal(t, joinsBefore, r.joins, "a kicked engine must not retry joining")

	_, err = peer.Refresh(ctx)
	assert.ErrorIs(t, err, domain.ErrKicked)
	assert.ErrorIs(t, peer.Heartbeat(ctx), domain.ErrKicked)
	assert.Equal(t, 1, rec.kicked)

	// a fresh engine for the same identity is refused by the room
	again := NewEngine(r.as("guest_amy"), "room-1", "guest_amy", discardLogger(), DefaultConfig())
	_, err = again.Join(ctx, "Amy")
	assert.ErrorIs(t, err, domain.ErrKicked)
	assert.True(t, again.IsKicked())

	require.NoError(t, owner.Unkick(ctx, "guest_amy"))
	fresh := NewEngine(r.as("guest_amy"), "room-1", "guest_amy", discardLogger(), DefaultConfig())
	_, err = fresh.Join(ctx, "Amy")
	assert.NoError(t, err)
}

func TestKickChecks(t *testing.T) {
	_, r := newTestRoom()
	ctx := context.Background()

	owner := join(t, r, "owner", "Zed")
	peer := join(t, r, "guest_amy", "Amy")

	assert.ErrorIs(t, peer.Kick(ctx, "owner"), domain.ErrPermissionDenied)
	assert.ErrorIs(t, peer.Unkick(ctx, "owner"), domain.ErrPermissionDenied)
	assert.ErrorIs(t, owner.Kick(ctx, "owner"), domain.ErrOwnerNotKickable)
	assert.False(t, peer.IsKicked())
}

func TestHeartbeatRejoinsPrunedRecord(t *testing.T) {
	_, r := newTestRoom()
	ctx := context.Background()

	peer := join(t, r, "guest_amy", "Amy")
	r.remove("guest_amy")

	require.NoError(t, peer.Heartbeat(ctx))
	list, err := peer.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Amy", list[0].DisplayName)
	assert.Equal(t, 2, r.joins)
}

func TestRenameAndColor(t *testing.T) {
	clock, r := newTestRoom()
	ctx := context.Background()

	owner := join(t, r, "owner", "Zed")
	peer := join(t, r, "guest_amy", "Amy")

	assert.ErrorIs(t, peer.Rename(ctx, "owner", "Boss"), domain.ErrPermissionDenied)
	assert.ErrorIs(t, peer.SetColor(ctx, "owner", domain.StringPtr("#ff0000")), domain.ErrPermissionDenied)
	assert.ErrorIs(t, peer.Rename(ctx, "guest_amy", "   "), domain.ErrInvalidInput)

	require.NoError(t, peer.Rename(ctx, "guest_amy", "Amelia"))
	require.NoError(t, peer.SetColor(ctx, "guest_amy", domain.StringPtr("#00ff00")))
	require.NoError(t, owner.Rename(ctx, "guest_amy", "Amy B"))

	list, err := owner.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Amy B", list[1].DisplayName)
	require.NotNil(t, list[1].Color)
	assert.Equal(t, "#00ff00", *list[1].Color)

	require.NoError(t, owner.SetColor(ctx, "guest_amy", nil))
	assert.Nil(t, owner.Participants()[1].Color)

	// the peer stops heartbeating and drops offline
	clock.Advance(31 * time.Second)
	require.NoError(t, owner.Heartbeat(ctx))
	_, err = owner.Refresh(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, owner.SetColor(ctx, "guest_amy", domain.StringPtr("#0000ff")), domain.ErrParticipantOffline)
	assert.NoError(t, owner.Rename(ctx, "guest_amy", "Away Amy"))
}

func TestRunStopsWhenKicked(t *testing.T) {
	r := newRoom("owner", time.Now)
	ctx := context.Background()

	owner := join(t, r, "owner", "Zed")
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 5 * time.Millisecond
	cfg.RefreshInterval = 5 * time.Millisecond
	peer := NewEngine(r.as("guest_amy"), "room-1", "guest_amy", discardLogger(), cfg)
	_, err := peer.Join(ctx, "Amy")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		peer.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(peer.Participants()) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, owner.Kick(ctx, "guest_amy"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop after kick")
	}
	assert.True(t, peer.IsKicked())
	assert.Empty(t, peer.Participants())
}
