package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sharetube/watchroom/internal/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// StatusUnknown is the state of a participant before its first observation.
const StatusUnknown domain.Status = "unknown"

const (
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultRefreshInterval   = 5 * time.Second
)

type PresenceStore interface {
	JoinRoom(ctx context.Context, roomID, displayName string) (domain.Participant, error)
	Heartbeat(ctx context.Context, roomID string, status domain.Status) error
	LeaveRoom(ctx context.Context, roomID string) error
	GetRoomSync(ctx context.Context, roomID string) (domain.RoomSync, error)
	UpdateParticipant(ctx context.Context, roomID, targetID string, update domain.ParticipantUpdate) (domain.Participant, error)
	KickParticipant(ctx context.Context, roomID, targetID string) error
	UnkickParticipant(ctx context.Context, roomID, targetID string) error
}

type Transition struct {
	ParticipantID string
	DisplayName   string
	From          domain.Status
	To            domain.Status
}

type Listener interface {
	OnParticipants(list []domain.Participant)
	OnTransition(t Transition)
	// OnKicked is called once, when this client learns it was kicked.
	OnKicked()
}

type Config struct {
	HeartbeatInterval time.Duration
	RefreshInterval   time.Duration
	// Timeout is how long a heartbeat keeps a participant online.
	Timeout   time.Duration
	SelfFirst bool
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: DefaultHeartbeatInterval,
		RefreshInterval:   DefaultRefreshInterval,
		Timeout:           domain.DefaultPresenceTimeout,
		SelfFirst:         true,
	}
}

type Engine struct {
	store  PresenceStore
	roomID string
	selfID string
	logger *slog.Logger
	cfg    Config

	kickedCh chan struct{}

	mu           sync.Mutex
	collator     *collate.Collator
	listener     Listener
	displayName  string
	isOwner      bool
	joined       bool
	away         bool
	kicked       bool
	participants []domain.Participant
	states       map[string]domain.Status
}

func NewEngine(store PresenceStore, roomID, selfID string, logger *slog.Logger, cfg Config) *Engine {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = domain.DefaultPresenceTimeout
	}

	return &Engine{
		store:    store,
		roomID:   roomID,
		selfID:   selfID,
		logger:   logger.With("room_id", roomID),
		cfg:      cfg,
		kickedCh: make(chan struct{}),
		collator: collate.New(language.Und),
		listener: nopListener{},
		states:   make(map[string]domain.Status),
	}
}

type nopListener struct{}

func (nopListener) OnParticipants([]domain.Participant) {}

func (nopListener) OnTransition(Transition) {}

func (nopListener) OnKicked() {}

func (e *Engine) SetListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l == nil {
		l = nopListener{}
	}
	e.listener = l
}

func (e *Engine) SelfID() string {
	return e.selfID
}

func (e *Engine) IsOwner() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isOwner
}

// Kicked is closed once this client has been kicked.
func (e *Engine) Kicked() <-chan struct{} {
	return e.kickedCh
}

func (e *Engine) IsKicked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kicked
}

// Participants returns the last refreshed, ordered participant list.
func (e *Engine) Participants() []domain.Participant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Participant(nil), e.participants...)
}

// SetAway marks this client as away on the next heartbeat.
func (e *Engine) SetAway(away bool) {
	e.mu.Lock()
	e.away = away
	e.mu.Unlock()
}

// handleErr turns a kicked answer into the terminal kicked state.
func (e *Engine) handleErr(err error) error {
	if errors.Is(err, domain.ErrKicked) {
		e.markKicked()
	}
	return err
}

func (e *Engine) markKicked() {
	e.mu.Lock()
	if e.kicked {
		e.mu.Unlock()
		return
	}
	e.kicked = true
	e.joined = false
	e.participants = nil
	e.states = make(map[string]domain.Status)
	listener := e.listener
	close(e.kickedCh)
	e.mu.Unlock()

	e.logger.Info("kicked from room")
	listener.OnKicked()
}

func (e *Engine) Join(ctx context.Context, displayName string) (domain.Participant, error) {
	if e.IsKicked() {
		return domain.Participant{}, domain.ErrKicked
	}

	p, err := e.store.JoinRoom(ctx, e.roomID, displayName)
	if err != nil {
		return domain.Participant{}, e.handleErr(fmt.Errorf("failed to join room: %w", err))
	}

	e.mu.Lock()
	e.displayName = p.DisplayName
	e.isOwner = p.IsOwner
	e.joined = true
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "joined room", "is_owner", p.IsOwner)

	return p, nil
}

func (e *Engine) Heartbeat(ctx context.Context) error {
	e.mu.Lock()
	kicked, away, name := e.kicked, e.away, e.displayName
	e.mu.Unlock()
	if kicked {
		return domain.ErrKicked
	}

	status := domain.StatusOnline
	if away {
		status = domain.StatusAway
	}

	err := e.store.Heartbeat(ctx, e.roomID, status)
	if errors.Is(err, domain.ErrParticipantNotFound) {
		e.logger.InfoContext(ctx, "participant record gone, rejoining")
		_, err = e.Join(ctx, name)
		return err
	}
	if err != nil {
		return e.handleErr(fmt.Errorf("failed to send heartbeat: %w", err))
	}

	return nil
}

func (e *Engine) Refresh(ctx context.Context) ([]domain.Participant, error) {
	if e.IsKicked() {
		return nil, domain.ErrKicked
	}

	rs, err := e.store.GetRoomSync(ctx, e.roomID)
	if err != nil {
		return nil, e.handleErr(fmt.Errorf("failed to get participants: %w", err))
	}

	list := make([]domain.Participant, 0, len(rs.Participants))
	for _, p := range rs.Participants {
		list = append(list, p.WithStatus(rs.ServerTime, e.cfg.Timeout))
	}

	e.mu.Lock()
	if e.kicked {
		e.mu.Unlock()
		return nil, domain.ErrKicked
	}

	SortParticipants(list, e.selfID, e.cfg.SelfFirst, e.collator)

	var transitions []Transition
	seen := make(map[string]domain.Status, len(list))
	for _, p := range list {
		seen[p.ID] = p.Status
		prev, ok := e.states[p.ID]
		if !ok {
			prev = StatusUnknown
		}
		if prev != p.Status {
			transitions = append(transitions, Transition{
				ParticipantID: p.ID,
				DisplayName:   p.DisplayName,
				From:          prev,
				To:            p.Status,
			})
		}
	}
	e.states = seen
	e.participants = list
	listener := e.listener
	e.mu.Unlock()

	for _, t := range transitions {
		e.logger.DebugContext(ctx, "participant status changed", "participant_id", t.ParticipantID, "from", t.From, "to", t.To)
		listener.OnTransition(t)
	}
	listener.OnParticipants(append([]domain.Participant(nil), list...))

	return list, nil
}

// Leave tells the room this client is gone. It is best effort.
func (e *Engine) Leave(ctx context.Context) error {
	e.mu.Lock()
	joined := e.joined
	e.joined = false
	e.mu.Unlock()
	if !joined {
		return nil
	}

	if err := e.store.LeaveRoom(ctx, e.roomID); err != nil {
		e.logger.WarnContext(ctx, "failed to leave room", "error", err)
		return fmt.Errorf("failed to leave room: %w", err)
	}

	return nil
}

func (e *Engine) known(id string) (domain.Participant, bool) {
	for _, p := range e.participants {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Participant{}, false
}

func (e *Engine) checkOwner() error {
	if !e.isOwner {
		return domain.ErrPermissionDenied
	}
	return nil
}

func (e *Engine) Kick(ctx context.Context, targetID string) error {
	e.mu.Lock()
	err := e.checkOwner()
	target, ok := e.known(targetID)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if targetID == e.selfID || (ok && target.IsOwner) {
		return domain.ErrOwnerNotKickable
	}

	if err := e.store.KickParticipant(ctx, e.roomID, targetID); err != nil {
		return e.handleErr(fmt.Errorf("failed to kick participant: %w", err))
	}

	e.mu.Lock()
	list := e.participants[:0:0]
	for _, p := range e.participants {
		if p.ID != targetID {
			list = append(list, p)
		}
	}
	e.participants = list
	delete(e.states, targetID)
	listener := e.listener
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "participant kicked", "participant_id", targetID)
	listener.OnParticipants(append([]domain.Participant(nil), list...))

	return nil
}

func (e *Engine) Unkick(ctx context.Context, targetID string) error {
	e.mu.Lock()
	err := e.checkOwner()
	e.mu.Unlock()
	if err != nil {
		return err
	}

	if err := e.store.UnkickParticipant(ctx, e.roomID, targetID); err != nil {
		return e.handleErr(fmt.Errorf("failed to unkick participant: %w", err))
	}

	return nil
}

// checkEdit applies the rename and recolor rule: the owner edits anyone, others
// only themselves.
func (e *Engine) checkEdit(targetID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.kicked {
		return domain.ErrKicked
	}
	if !e.isOwner && targetID != e.selfID {
		return domain.ErrPermissionDenied
	}
	return nil
}

func (e *Engine) Rename(ctx context.Context, targetID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: display name is empty", domain.ErrInvalidInput)
	}
	if err := e.checkEdit(targetID); err != nil {
		return err
	}

	return e.update(ctx, targetID, domain.ParticipantUpdate{DisplayName: &name})
}

// SetColor sets the target's color, or clears it when color is nil. The target
// has to be online.
func (e *Engine) SetColor(ctx context.Context, targetID string, color *string) error {
	if err := e.checkEdit(targetID); err != nil {
		return err
	}

	e.mu.Lock()
	target, ok := e.known(targetID)
	e.mu.Unlock()
	if ok && target.Status != domain.StatusOnline {
		return domain.ErrParticipantOffline
	}

	update := domain.ParticipantUpdate{Color: color}
	if color == nil {
		update.ClearColor = true
	}

	return e.update(ctx, targetID, update)
}

func (e *Engine) update(ctx context.Context, targetID string, update domain.ParticipantUpdate) error {
	p, err := e.store.UpdateParticipant(ctx, e.roomID, targetID, update)
	if err != nil {
		return e.handleErr(fmt.Errorf("failed to update participant: %w", err))
	}

	e.mu.Lock()
	if targetID == e.selfID {
		e.displayName = p.DisplayName
	}
	for i := range e.participants {
		if e.participants[i].ID == targetID {
			e.participants[i].DisplayName = p.DisplayName
			e.participants[i].Color = p.Color
		}
	}
	e.mu.Unlock()

	return nil
}

// Run sends heartbeats and refreshes the participant list until ctx is done or
// this client is kicked.
func (e *Engine) Run(ctx context.Context) {
	heartbeat := time.NewTicker(e.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	refresh := time.NewTicker(e.cfg.RefreshInterval)
	defer refresh.Stop()

	go e.tick(ctx, "refresh", func(ctx context.Context) error {
		_, err := e.Refresh(ctx)
		return err
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.kickedCh:
			return
		case <-heartbeat.C:
			go e.tick(ctx, "heartbeat", e.Heartbeat)
		case <-refresh.C:
			go e.tick(ctx, "refresh", func(ctx context.Context) error {
				_, err := e.Refresh(ctx)
				return err
			})
		}
	}
}

func (e *Engine) tick(ctx context.Context, name string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("presence tick panicked", "tick", name, "panic", r)
		}
	}()

	if err := fn(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrKicked) {
			return
		}
		e.logger.WarnContext(ctx, "presence tick failed", "tick", name, "error", err)
	}
}
