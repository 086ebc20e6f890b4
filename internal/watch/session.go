package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/media"
	"github.com/sharetube/watchroom/internal/presence"
	"github.com/sharetube/watchroom/internal/syncengine"
)

const DefaultLeaveTimeout = 3 * time.Second

type Store interface {
	syncengine.RoomStore
	presence.PresenceStore
}

type Config struct {
	RoomID       string
	DisplayName  string
	Sync         syncengine.Config
	Presence     presence.Config
	LeaveTimeout time.Duration
}

type PlaylistItem struct {
	URL   string
	Title string
}

// Session is one open room view: a sync engine and a presence engine running
// for the same room and identity.
type Session struct {
	displayName string
	logger      *slog.Logger

	// requestTimeout bounds requests made outside any caller context.
	requestTimeout time.Duration

	sync     *syncengine.Engine
	presence *presence.Engine

	done     chan struct{}
	doneOnce sync.Once

	mu         sync.Mutex
	cancel     context.CancelFunc
	exited     bool
	playlistID string
	playlist   []PlaylistItem
	index      int
}

func NewSession(store Store, players syncengine.Players, selfID string, logger *slog.Logger, cfg Config) *Session {
	if cfg.LeaveTimeout <= 0 {
		cfg.LeaveTimeout = DefaultLeaveTimeout
	}
	logger = logger.With("room_id", cfg.RoomID)

	s := &Session{
		displayName:    cfg.DisplayName,
		logger:         logger,
		requestTimeout: cfg.LeaveTimeout,
		sync:           syncengine.NewEngine(store, players, cfg.RoomID, logger, cfg.Sync),
		presence:       presence.NewEngine(store, cfg.RoomID, selfID, logger, cfg.Presence),
		done:           make(chan struct{}),
		index:          -1,
	}
	s.sync.SetOnEnded(s.playNext)

	return s
}

func (s *Session) Sync() *syncengine.Engine {
	return s.sync
}

func (s *Session) Presence() *presence.Engine {
	return s.presence
}

// Done is closed when the session ends, by Exit or by being kicked.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Enter joins the room and starts the sync and presence loops. A kicked
// identity gets domain.ErrKicked and nothing is started.
func (s *Session) Enter(ctx context.Context) (domain.Participant, error) {
	p, err := s.presence.Join(ctx, s.displayName)
	if err != nil {
		return domain.Participant{}, err
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return p, nil
	}
	if s.exited {
		// Exit ran while the join was in flight and had nothing to leave yet.
		s.mu.Unlock()
		s.leave()
		return p, nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go s.sync.Run(loopCtx)
	go s.presence.Run(loopCtx)
	go s.watchKicked(loopCtx)

	return p, nil
}

func (s *Session) watchKicked(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.presence.Kicked():
		s.logger.Warn("kicked from room, closing session")
		s.stop()
		s.sync.Close()
		s.finish()
	}
}

func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exited = true
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Exit stops both loops and leaves the room in the background. Requests already
// in flight are not aborted. The returned channel is closed once the leave call
// has finished.
func (s *Session) Exit() <-chan struct{} {
	left := make(chan struct{})

	s.mu.Lock()
	already := s.exited
	s.mu.Unlock()
	if already {
		close(left)
		return left
	}

	s.stop()
	s.sync.Close()

	go func() {
		defer close(left)
		defer s.finish()
		s.leave()
	}()

	return left
}

func (s *Session) leave() {
	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancel()
	if err := s.presence.Leave(ctx); err != nil {
		s.logger.Warn("leave failed", "error", err)
	}
}

func (s *Session) SetPlaylist(id string, items []PlaylistItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlistID = id
	s.playlist = append([]PlaylistItem(nil), items...)
	s.index = -1
}

// PlayIndex plays entry i of the current playlist for the whole room.
func (s *Session) PlayIndex(ctx context.Context, i int) error {
	s.mu.Lock()
	if i < 0 || i >= len(s.playlist) {
		s.mu.Unlock()
		return fmt.Errorf("%w: playlist index %d out of range", domain.ErrInvalidInput, i)
	}
	item, playlistID := s.playlist[i], s.playlistID
	s.mu.Unlock()

	if err := s.sync.PlayMedia(ctx, item.URL, item.Title, playlistID); err != nil {
		return fmt.Errorf("failed to play playlist entry %d: %w", i, err)
	}

	s.mu.Lock()
	s.index = i
	s.mu.Unlock()

	return nil
}

func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Session) playNext() {
	s.mu.Lock()
	idx, exited := s.index, s.exited
	var current PlaylistItem
	if idx >= 0 && idx < len(s.playlist) {
		current = s.playlist[idx]
	}
	size := len(s.playlist)
	s.mu.Unlock()

	if exited || idx < 0 {
		return
	}
	// someone else switched the video since the playlist entry started
	if media.Identity(current.URL) != s.sync.Cursor().LastAppliedVideoID {
		return
	}
	if idx+1 >= size {
		s.logger.Info("playlist finished")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancel()
	if err := s.PlayIndex(ctx, idx+1); err != nil {
		s.logger.Warn("failed to advance playlist", "error", err)
	}
}
