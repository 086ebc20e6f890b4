package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sharetube/watchroom/internal/domain"
)

type EventType string

const (
	EventPlay   EventType = "play"
	EventPause  EventType = "pause"
	EventSeeked EventType = "seeked"
	EventEnded  EventType = "ended"
)

type Event struct {
	Type     EventType
	Position float64
}

// MediaElement is a directly controllable player that reports every transport
// change as an event, whether a command or the user caused it.
type MediaElement interface {
	Load(url string) error
	Play() error
	Pause() error
	Seek(position float64) error
	Position() float64
	Paused() bool
	SetEventHandler(h func(Event))
	Close() error
}

// NativeAdapter bridges a MediaElement. Before each command it counts one
// pending echo for the event that command will produce; a matching event then
// consumes the count instead of being reported.
type NativeAdapter struct {
	element MediaElement
	logger  *slog.Logger

	mu       sync.Mutex
	pending  map[EventType]int
	listener Listener
}

func NewNativeAdapter(element MediaElement, logger *slog.Logger) *NativeAdapter {
	a := &NativeAdapter{
		element:  element,
		logger:   logger,
		pending:  make(map[EventType]int),
		listener: nopListener{},
	}
	element.SetEventHandler(a.handleEvent)

	return a
}

func (a *NativeAdapter) SetListener(l Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if l == nil {
		l = nopListener{}
	}
	a.listener = l
}

func (a *NativeAdapter) Load(_ context.Context, video Video) error {
	if err := a.element.Load(video.Media.URL); err != nil {
		return fmt.Errorf("%w: %w", ErrPlayerUnavailable, err)
	}

	remote := Remote{State: video.State}
	if video.Position > 0 {
		remote.Seek = true
		remote.Time = video.Position
	}

	return a.ApplyRemote(remote)
}

func (a *NativeAdapter) ApplyRemote(remote Remote) error {
	if remote.Seek {
		if err := a.command(EventSeeked, func() error { return a.element.Seek(remote.Time) }); err != nil {
			return fmt.Errorf("failed to seek: %w", err)
		}
	}

	switch {
	case remote.State == domain.StatePlaying && a.element.Paused():
		if err := a.command(EventPlay, a.element.Play); err != nil {
			return fmt.Errorf("failed to play: %w", err)
		}
	case remote.State == domain.StatePaused && !a.element.Paused():
		if err := a.command(EventPause, a.element.Pause); err != nil {
			return fmt.Errorf("failed to pause: %w", err)
		}
	}

	return nil
}

// command runs fn with one pending echo registered for event. The count is
// taken back when fn fails since no event will follow.
func (a *NativeAdapter) command(event EventType, fn func() error) error {
	a.mu.Lock()
	a.pending[event]++
	a.mu.Unlock()

	if err := fn(); err != nil {
		a.mu.Lock()
		if a.pending[event] > 0 {
			a.pending[event]--
		}
		a.mu.Unlock()
		return err
	}

	return nil
}

func (a *NativeAdapter) handleEvent(e Event) {
	a.mu.Lock()
	listener := a.listener
	if e.Type != EventEnded && a.pending[e.Type] > 0 {
		a.pending[e.Type]--
		a.mu.Unlock()
		a.logger.Debug("echo suppressed", "event", e.Type)
		return
	}
	a.mu.Unlock()

	switch e.Type {
	case EventEnded:
		listener.OnEnded()
	case EventPlay:
		listener.OnLocalStateChange(domain.StatePlaying, e.Position)
	case EventPause:
		listener.OnLocalStateChange(domain.StatePaused, e.Position)
	case EventSeeked:
		state := domain.StatePlaying
		if a.element.Paused() {
			state = domain.StatePaused
		}
		listener.OnLocalStateChange(state, e.Position)
	}
}

func (a *NativeAdapter) Position() float64 {
	return a.element.Position()
}

func (a *NativeAdapter) Close() error {
	a.element.SetEventHandler(nil)
	return a.element.Close()
}
