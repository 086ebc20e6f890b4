package player

import (
	"errors"
	"sync"
	"time"
)

var errNotLoaded = errors.New("nothing loaded")

// clockedPosition tracks a playback position that advances with the clock while
// playing.
type clockedPosition struct {
	now     func() time.Time
	playing bool
	base    float64
	baseAt  time.Time
}

func (c *clockedPosition) position() float64 {
	if !c.playing {
		return c.base
	}
	return c.base + c.now().Sub(c.baseAt).Seconds()
}

func (c *clockedPosition) set(pos float64, playing bool) {
	c.base = pos
	c.baseAt = c.now()
	c.playing = playing
}

// HeadlessElement is a MediaElement without output. Commands and user actions
// produce the same events, as a real element does.
type HeadlessElement struct {
	mu      sync.Mutex
	clock   clockedPosition
	url     string
	handler func(Event)
	// LoadErr is returned by Load when set.
	LoadErr error
}

func NewHeadlessElement(now func() time.Time) *HeadlessElement {
	if now == nil {
		now = time.Now
	}
	return &HeadlessElement{clock: clockedPosition{now: now}}
}

func (e *HeadlessElement) SetEventHandler(h func(Event)) {
	e.mu.Lock()
	e.handler = h
	e.mu.Unlock()
}

func (e *HeadlessElement) emit(t EventType) {
	e.mu.Lock()
	h := e.handler
	pos := e.clock.position()
	e.mu.Unlock()

	if h != nil {
		h(Event{Type: t, Position: pos})
	}
}

func (e *HeadlessElement) Load(url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.LoadErr != nil {
		return e.LoadErr
	}
	e.url = url
	e.clock.set(0, false)
	return nil
}

func (e *HeadlessElement) URL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.url
}

func (e *HeadlessElement) setPlaying(playing bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.url == "" {
		return false, errNotLoaded
	}
	if e.clock.playing == playing {
		return false, nil
	}
	e.clock.set(e.clock.position(), playing)
	return true, nil
}

func (e *HeadlessElement) Play() error {
	changed, err := e.setPlaying(true)
	if changed {
		e.emit(EventPlay)
	}
	return err
}

func (e *HeadlessElement) Pause() error {
	changed, err := e.setPlaying(false)
	if changed {
		e.emit(EventPause)
	}
	return err
}

func (e *HeadlessElement) Seek(position float64) error {
	e.mu.Lock()
	if e.url == "" {
		e.mu.Unlock()
		return errNotLoaded
	}
	e.clock.set(position, e.clock.playing)
	e.mu.Unlock()

	e.emit(EventSeeked)
	return nil
}

func (e *HeadlessElement) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.position()
}

func (e *HeadlessElement) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.clock.playing
}

func (e *HeadlessElement) Close() error {
	e.mu.Lock()
	e.handler = nil
	e.mu.Unlock()
	return nil
}

func (e *HeadlessElement) UserPlay() { _ = e.Play() }

func (e *HeadlessElement) UserPause() { _ = e.Pause() }

func (e *HeadlessElement) UserSeek(position float64) { _ = e.Seek(position) }

// Finish stops playback as if the media reached its end.
func (e *HeadlessElement) Finish() {
	e.mu.Lock()
	e.clock.set(e.clock.position(), false)
	e.mu.Unlock()
	e.emit(EventEnded)
}

// HeadlessEmbed is an EmbedPlayer without output. Every state change is
// reported to the handler, whether commanded or not.
type HeadlessEmbed struct {
	mu      sync.Mutex
	clock   clockedPosition
	url     string
	state   EmbedState
	handler func(EmbedState)
	// LoadErr is returned by Load when set.
	LoadErr error
	// SlowStart makes Play from unstarted buffer until Recover.
	SlowStart bool
}

func NewHeadlessEmbed(now func() time.Time) *HeadlessEmbed {
	if now == nil {
		now = time.Now
	}
	return &HeadlessEmbed{clock: clockedPosition{now: now}, state: EmbedUnstarted}
}

func (e *HeadlessEmbed) SetStateChangeHandler(h func(EmbedState)) {
	e.mu.Lock()
	e.handler = h
	e.mu.Unlock()
}

// setState moves to state and notifies the handler if it changed.
func (e *HeadlessEmbed) setState(state EmbedState, playing bool) error {
	e.mu.Lock()
	if e.url == "" {
		e.mu.Unlock()
		return errNotLoaded
	}
	changed := e.state != state
	e.clock.set(e.clock.position(), playing)
	e.state = state
	h := e.handler
	e.mu.Unlock()

	if changed && h != nil {
		h(state)
	}
	return nil
}

func (e *HeadlessEmbed) Load(embedURL string) error {
	e.mu.Lock()
	if e.LoadErr != nil {
		e.mu.Unlock()
		return e.LoadErr
	}
	e.url = embedURL
	e.state = EmbedUnstarted
	e.clock.set(0, false)
	h := e.handler
	e.mu.Unlock()

	if h != nil {
		h(EmbedUnstarted)
	}
	return nil
}

func (e *HeadlessEmbed) URL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.url
}

func (e *HeadlessEmbed) Play() error {
	e.mu.Lock()
	buffer := e.SlowStart && e.state == EmbedUnstarted
	e.mu.Unlock()
	if buffer {
		return e.setState(EmbedBuffering, false)
	}
	return e.setState(EmbedPlaying, true)
}

func (e *HeadlessEmbed) Pause() error {
	return e.setState(EmbedPaused, false)
}

func (e *HeadlessEmbed) SeekTo(position float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.url == "" {
		return errNotLoaded
	}
	e.clock.set(position, e.clock.playing)
	return nil
}

func (e *HeadlessEmbed) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.position()
}

func (e *HeadlessEmbed) State() EmbedState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *HeadlessEmbed) Close() error {
	e.mu.Lock()
	e.handler = nil
	e.mu.Unlock()
	return nil
}

func (e *HeadlessEmbed) UserPlay() { _ = e.Play() }

func (e *HeadlessEmbed) UserPause() { _ = e.Pause() }

func (e *HeadlessEmbed) UserSeek(position float64) { _ = e.SeekTo(position) }

// Stall freezes playback in the buffering state, as a network stall does.
func (e *HeadlessEmbed) Stall() { _ = e.setState(EmbedBuffering, false) }

// Recover resumes playback after a stall.
func (e *HeadlessEmbed) Recover() { _ = e.setState(EmbedPlaying, true) }

func (e *HeadlessEmbed) Finish() { _ = e.setState(EmbedEnded, false) }
