package player

import (
	"context"
	"errors"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/media"
)

// ErrPlayerUnavailable means the player for a video could not be initialized.
// It is permanent for that video.
var ErrPlayerUnavailable = errors.New("player unavailable")

// Listener receives the transport events the user caused. Events caused by the
// adapter's own commands are never reported.
type Listener interface {
	OnLocalStateChange(state domain.PlaybackState, position float64)
	OnEnded()
}

type Video struct {
	Media    media.Media
	State    domain.PlaybackState
	Position float64
}

// Remote is an authoritative change to apply. An empty State keeps the current
// one. Seek moves playback to Time.
type Remote struct {
	State domain.PlaybackState
	Seek  bool
	Time  float64
}

type Adapter interface {
	Load(ctx context.Context, video Video) error
	ApplyRemote(remote Remote) error
	Position() float64
	SetListener(l Listener)
	Close() error
}

type nopListener struct{}

func (nopListener) OnLocalStateChange(domain.PlaybackState, float64) {}

func (nopListener) OnEnded() {}
