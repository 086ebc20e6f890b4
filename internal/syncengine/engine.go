package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/media"
	"github.com/sharetube/watchroom/internal/player"
)

const pushTimeout = 10 * time.Second

type RoomStore interface {
	GetRoomSync(ctx context.Context, roomID string) (domain.RoomSync, error)
	// PutRoomSync writes the full playback state and returns the updated_at the
	// server assigned.
	PutRoomSync(ctx context.Context, roomID string, update domain.PlaybackUpdate) (int64, error)
}

type Players interface {
	AdapterFor(ctx context.Context, m media.Media) player.Adapter
}

// VideoError is recorded when the player for the current video could not be
// set up. The load is not retried until the video changes.
type VideoError struct {
	VideoID string
	Err     error
}

func (e *VideoError) Error() string {
	return fmt.Sprintf("video %s: %v", e.VideoID, e.Err)
}

func (e *VideoError) Unwrap() error {
	return e.Err
}

type Engine struct {
	store   RoomStore
	players Players
	roomID  string
	logger  *slog.Logger
	cfg     Config

	ctx    context.Context
	cancel context.CancelFunc

	// applyMu serializes reconciliation with the adapter commands it yields.
	applyMu sync.Mutex

	mu       sync.Mutex
	cursor   Cursor
	adapter  player.Adapter
	videoErr *VideoError
	onEnded  func()
}

func NewEngine(store RoomStore, players Players, roomID string, logger *slog.Logger, cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		store:   store,
		players: players,
		roomID:  roomID,
		logger:  logger.With("room_id", roomID),
		cfg:     cfg.withDefaults(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetOnEnded registers fn to be called when the local player reaches the end
// of the current video.
func (e *Engine) SetOnEnded(fn func()) {
	e.mu.Lock()
	e.onEnded = fn
	e.mu.Unlock()
}

func (e *Engine) Cursor() Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

func (e *Engine) VideoError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.videoErr == nil {
		return nil
	}
	return e.videoErr
}

// Position returns the local player position. ok is false when nothing is loaded.
func (e *Engine) Position() (pos float64, ok bool) {
	e.mu.Lock()
	a := e.adapter
	e.mu.Unlock()
	if a == nil {
		return 0, false
	}
	return a.Position(), true
}

// Pull fetches the shared state once and applies whatever it changes locally.
func (e *Engine) Pull(ctx context.Context) error {
	rs, err := e.store.GetRoomSync(ctx, e.roomID)
	if err != nil {
		return fmt.Errorf("failed to get room sync: %w", err)
	}

	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	snap := Snapshot{State: rs.Room, ServerTime: rs.ServerTime}
	if pos, ok := e.Position(); ok {
		snap.LocalPosition = &pos
	}

	e.mu.Lock()
	prevUpdatedAt := e.cursor.LastRemoteUpdatedAt
	cursor, action := Reconcile(e.cursor, snap, e.cfg.Now(), e.cfg)
	e.cursor = cursor
	e.mu.Unlock()

	if rs.Room.UpdatedAt < prevUpdatedAt {
		e.logger.DebugContext(ctx, "stale room state dropped", "updated_at", rs.Room.UpdatedAt, "newest", prevUpdatedAt)
	}

	if action.Kind != ActionNone {
		e.logger.DebugContext(ctx, "applying remote state", "action", action.Kind, "state", action.State, "seek", action.Seek, "time", action.Time)
	}

	e.apply(ctx, action)

	return nil
}

func (e *Engine) apply(ctx context.Context, action Action) {
	switch action.Kind {
	case ActionLoad:
		e.load(ctx, action)
	case ActionApply:
		e.mu.Lock()
		a := e.adapter
		e.mu.Unlock()
		if a == nil {
			return
		}
		if err := a.ApplyRemote(player.Remote{State: action.State, Seek: action.Seek, Time: action.Time}); err != nil {
			e.logger.WarnContext(ctx, "failed to apply remote state", "error", err)
		}
	case ActionClear:
		e.unload()
	}
}

func (e *Engine) load(ctx context.Context, action Action) {
	e.unload()

	id := media.Identity(action.URL)
	m, err := media.Parse(action.URL)
	if err != nil {
		e.setVideoError(ctx, id, err)
		return
	}

	a := e.players.AdapterFor(e.ctx, m)
	a.SetListener(e)

	state := action.State
	if !state.Valid() {
		state = domain.StatePaused
	}

	if err := a.Load(ctx, player.Video{Media: m, State: state, Position: action.Time}); err != nil {
		_ = a.Close()
		e.setVideoError(ctx, id, err)
		return
	}

	e.mu.Lock()
	e.adapter = a
	e.mu.Unlock()
}

func (e *Engine) setVideoError(ctx context.Context, id string, err error) {
	e.logger.WarnContext(ctx, "failed to load video", "video_id", id, "error", err)

	e.mu.Lock()
	e.videoErr = &VideoError{VideoID: id, Err: err}
	e.mu.Unlock()
}

func (e *Engine) unload() {
	e.mu.Lock()
	a := e.adapter
	e.adapter = nil
	e.videoErr = nil
	e.mu.Unlock()

	if a != nil {
		a.SetListener(nil)
		if err := a.Close(); err != nil {
			e.logger.Warn("failed to close player", "error", err)
		}
	}
}

// markLocal records a local change and returns the full state to push.
func (e *Engine) markLocal(fn func(c *Cursor)) domain.PlaybackUpdate {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cursor.LastLocalChangeAt = e.cfg.Now()
	fn(&e.cursor)

	return e.cursor.update()
}

func (e *Engine) send(ctx context.Context, update domain.PlaybackUpdate) {
	updatedAt, err := e.store.PutRoomSync(ctx, e.roomID, update)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to push room state", "error", err)
		return
	}

	e.mu.Lock()
	if updatedAt > e.cursor.LastRemoteUpdatedAt {
		e.cursor.LastRemoteUpdatedAt = updatedAt
	}
	e.mu.Unlock()
}

// Push publishes a local transport change. Failures are logged only; the next
// local action or pull converges the room again.
func (e *Engine) Push(ctx context.Context, state domain.PlaybackState, position float64) {
	update := e.markLocal(func(c *Cursor) {
		c.LastAppliedState = state
		c.LastAppliedTime = position
	})
	e.send(ctx, update)
}

// PlayMedia switches the room to url. Unsupported urls are rejected before
// anything is sent.
func (e *Engine) PlayMedia(ctx context.Context, url, title, playlistID string) error {
	m, err := media.Parse(url)
	if err != nil {
		return err
	}

	e.applyMu.Lock()
	update := e.markLocal(func(c *Cursor) {
		c.LastAppliedVideoID = m.Identity()
		c.LastAppliedURL = m.URL
		c.LastAppliedTitle = title
		c.LastAppliedPlaylistID = playlistID
		c.LastAppliedState = domain.StatePlaying
		c.LastAppliedTime = 0
	})
	e.load(ctx, Action{Kind: ActionLoad, URL: m.URL, Title: title, State: domain.StatePlaying})
	e.applyMu.Unlock()

	e.send(ctx, update)

	return nil
}

// ClearMedia stops the current video for the whole room.
func (e *Engine) ClearMedia(ctx context.Context) {
	e.applyMu.Lock()
	update := e.markLocal(func(c *Cursor) {
		c.LastAppliedVideoID, c.LastAppliedURL, c.LastAppliedTitle = "", "", ""
		c.LastAppliedState = domain.StatePaused
		c.LastAppliedTime = 0
	})
	e.unload()
	e.applyMu.Unlock()

	e.send(ctx, update)
}

func (e *Engine) OnLocalStateChange(state domain.PlaybackState, position float64) {
	update := e.markLocal(func(c *Cursor) {
		c.LastAppliedState = state
		c.LastAppliedTime = position
	})
	e.logger.Debug("local state change", "state", state, "position", position)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		e.send(ctx, update)
	}()
}

func (e *Engine) OnEnded() {
	e.mu.Lock()
	fn := e.onEnded
	e.mu.Unlock()
	if fn != nil {
		go fn()
	}
}

// Run pulls on every interval until ctx is done. Ticks do not wait for each
// other.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PullInterval)
	defer ticker.Stop()

	go e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			go e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("pull panicked", "panic", r)
		}
	}()

	if err := e.Pull(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		e.logger.WarnContext(ctx, "pull failed", "error", err)
	}
}

// Close unloads the player. Pushes already sent are not aborted.
func (e *Engine) Close() {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	e.unload()
	e.cancel()
}
