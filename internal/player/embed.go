package player

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sharetube/watchroom/internal/domain"
)

type EmbedState string

const (
	EmbedUnstarted EmbedState = "unstarted"
	EmbedPlaying   EmbedState = "playing"
	EmbedPaused    EmbedState = "paused"
	EmbedBuffering EmbedState = "buffering"
	EmbedEnded     EmbedState = "ended"
)

// EmbedPlayer is a third party player that takes commands and reports state
// changes through a single callback. Position is only available by asking.
type EmbedPlayer interface {
	Load(embedURL string) error
	Play() error
	Pause() error
	SeekTo(position float64) error
	CurrentTime() float64
	State() EmbedState
	SetStateChangeHandler(h func(EmbedState))
	Close() error
}

const (
	DefaultCommandWindow = time.Second
	DefaultPollInterval  = time.Second
	DefaultSeekThreshold = 3 * time.Second
)

type EmbedConfig struct {
	// CommandWindow is how long after a command state changes are attributed to it.
	CommandWindow time.Duration
	PollInterval  time.Duration
	// SeekThreshold is the jump from the expected position reported as a user seek.
	SeekThreshold time.Duration
	Now           func() time.Time
}

// EmbedAdapter bridges an EmbedPlayer. State callbacks within the command
// window of the adapter's own last command are echoes. Buffering and unstarted
// are transient: only a flip between settled playing and paused states is
// reported. Seeks are detected by polling the position.
type EmbedAdapter struct {
	player EmbedPlayer
	logger *slog.Logger
	cfg    EmbedConfig

	mu           sync.Mutex
	listener     Listener
	commandUntil time.Time
	// settled is the last playing, paused or ended state seen.
	settled    EmbedState
	lastState  EmbedState
	lastPos    float64
	lastPollAt time.Time
	loaded     bool
	cancel     context.CancelFunc
	stopped    chan struct{}
}

func NewEmbedAdapter(player EmbedPlayer, logger *slog.Logger, cfg EmbedConfig) *EmbedAdapter {
	if cfg.CommandWindow <= 0 {
		cfg.CommandWindow = DefaultCommandWindow
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.SeekThreshold <= 0 {
		cfg.SeekThreshold = DefaultSeekThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	a := &EmbedAdapter{
		player:   player,
		logger:   logger,
		cfg:      cfg,
		listener: nopListener{},
	}
	player.SetStateChangeHandler(a.handleStateChange)

	return a
}

func (a *EmbedAdapter) SetListener(l Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if l == nil {
		l = nopListener{}
	}
	a.listener = l
}

func (a *EmbedAdapter) Load(_ context.Context, video Video) error {
	a.openWindow()
	if err := a.player.Load(video.Media.EmbedURL()); err != nil {
		return fmt.Errorf("%w: %w", ErrPlayerUnavailable, err)
	}

	a.mu.Lock()
	a.loaded = true
	a.mu.Unlock()

	remote := Remote{State: video.State}
	if video.Position > 0 {
		remote.Seek = true
		remote.Time = video.Position
	}

	return a.ApplyRemote(remote)
}

func (a *EmbedAdapter) ApplyRemote(remote Remote) error {
	a.openWindow()

	if remote.Seek {
		if err := a.player.SeekTo(remote.Time); err != nil {
			return fmt.Errorf("failed to seek: %w", err)
		}
	}

	var commanded EmbedState
	switch remote.State {
	case domain.StatePlaying:
		if err := a.player.Play(); err != nil {
			return fmt.Errorf("failed to play: %w", err)
		}
		commanded = EmbedPlaying
	case domain.StatePaused:
		if err := a.player.Pause(); err != nil {
			return fmt.Errorf("failed to pause: %w", err)
		}
		commanded = EmbedPaused
	}

	if commanded != "" {
		// the player may still be buffering towards the commanded state
		a.mu.Lock()
		a.settled = commanded
		a.mu.Unlock()
	}
	a.resetBaseline()

	return nil
}

func (a *EmbedAdapter) openWindow() {
	a.mu.Lock()
	a.commandUntil = a.cfg.Now().Add(a.cfg.CommandWindow)
	a.mu.Unlock()
}

func (a *EmbedAdapter) resetBaseline() {
	state := a.player.State()
	pos := a.player.CurrentTime()

	a.mu.Lock()
	if settledState(state) {
		a.settled = state
	}
	a.lastState = state
	a.lastPos = pos
	a.lastPollAt = a.cfg.Now()
	a.mu.Unlock()
}

func settledState(s EmbedState) bool {
	return s == EmbedPlaying || s == EmbedPaused || s == EmbedEnded
}

func toPlaybackState(s EmbedState) domain.PlaybackState {
	if s == EmbedPlaying {
		return domain.StatePlaying
	}
	return domain.StatePaused
}

func (a *EmbedAdapter) handleStateChange(state EmbedState) {
	pos := a.player.CurrentTime()
	now := a.cfg.Now()

	a.mu.Lock()
	if !a.loaded {
		a.mu.Unlock()
		return
	}
	a.lastState, a.lastPos, a.lastPollAt = state, pos, now
	if !settledState(state) {
		a.mu.Unlock()
		return
	}
	prev := a.settled
	a.settled = state
	listener := a.listener
	inWindow := now.Before(a.commandUntil)
	a.mu.Unlock()

	if inWindow || state == prev {
		return
	}

	if state == EmbedEnded {
		listener.OnEnded()
		return
	}

	a.logger.Debug("local state change", "state", state, "position", pos)
	listener.OnLocalStateChange(toPlaybackState(state), pos)
}

// start polls the player until ctx is done or the adapter is closed.
func (a *EmbedAdapter) start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})

	a.mu.Lock()
	a.cancel = cancel
	a.stopped = stopped
	a.mu.Unlock()

	go func() {
		defer close(stopped)
		a.Run(ctx)
	}()
}

// Run polls the player until ctx is done.
func (a *EmbedAdapter) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.poll()
		}
	}
}

func (a *EmbedAdapter) poll() {
	state := a.player.State()
	pos := a.player.CurrentTime()
	now := a.cfg.Now()

	a.mu.Lock()
	if !a.loaded {
		a.mu.Unlock()
		return
	}

	prevState, prevPos, prevAt := a.lastState, a.lastPos, a.lastPollAt
	a.lastState, a.lastPos, a.lastPollAt = state, pos, now
	settled := a.settled
	listener := a.listener
	inWindow := now.Before(a.commandUntil)
	a.mu.Unlock()

	if inWindow || state != settled || (state != EmbedPlaying && state != EmbedPaused) {
		return
	}

	expected := prevPos
	if prevState == EmbedPlaying {
		expected += now.Sub(prevAt).Seconds()
	}
	if math.Abs(pos-expected) > a.cfg.SeekThreshold.Seconds() {
		a.logger.Debug("local seek", "position", pos, "expected", expected)
		listener.OnLocalStateChange(toPlaybackState(state), pos)
	}
}

func (a *EmbedAdapter) Position() float64 {
	return a.player.CurrentTime()
}

func (a *EmbedAdapter) Close() error {
	a.mu.Lock()
	a.loaded = false
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return a.player.Close()
}
