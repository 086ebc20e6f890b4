package player

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
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

type localChange struct {
	state    domain.PlaybackState
	position float64
}

type recordingListener struct {
	mu      sync.Mutex
	changes []localChange
	ended   int
}

func (l *recordingListener) OnLocalStateChange(state domain.PlaybackState, position float64) {
	l.mu.Lock()
	l.changes = append(l.changes, localChange{state, position})
	l.mu.Unlock()
}

func (l *recordingListener) OnEnded() {
	l.mu.Lock()
	l.ended++
	l.mu.Unlock()
}

func (l *recordingListener) Changes() []localChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]localChange(nil), l.changes...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustParse(t *testing.T, raw string) media.Media {
	t.Helper()
	m, err := media.Parse(raw)
	require.NoError(t, err)
	return m
}

func TestNativeAdapterSuppressesEchoes(t *testing.T) {
	clock := newTestClock()
	el := NewHeadlessElement(clock.Now)
	a := NewNativeAdapter(el, discardLogger())
	l := &recordingListener{}
	a.SetListener(l)

	err := a.Load(context.Background(), Video{
		Media:    mustParse(t, "https://cdn.example.com/movie.mp4"),
		State:    domain.StatePlaying,
		Position: 42,
	})
	require.NoError(t, err)
	assert.False(t, el.Paused())
	assert.InDelta(t, 42, a.Position(), 0.001)

	require.NoError(t, a.ApplyRemote(Remote{State: domain.StatePaused, Seek: true, Time: 10}))
	assert.True(t, el.Paused())
	assert.Empty(t, l.Changes(), "commanded transitions must not be reported")

	el.UserPlay()
	clock.Advance(2 * time.Second)
	el.UserSeek(90)

	changes := l.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, localChange{domain.StatePlaying, 10}, changes[0])
	assert.Equal(t, localChange{domain.StatePlaying, 90}, changes[1])

	el.Finish()
	assert.Equal(t, 1, l.ended)
}

func TestNativeAdapterSkipsRedundantCommands(t *testing.T) {
	clock := newTestClock()
	el := NewHeadlessElement(clock.Now)
	a := NewNativeAdapter(el, discardLogger())
	l := &recordingListener{}
	a.SetListener(l)

	require.NoError(t, a.Load(context.Background(), Video{
		Media: mustParse(t, "https://cdn.example.com/movie.mp4"),
		State: domain.StatePaused,
	}))
	require.NoError(t, a.ApplyRemote(Remote{State: domain.StatePaused}))

	// a pause command that produced no event must not swallow the user's next pause
	el.UserPlay()
	el.UserPause()
	changes := l.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, domain.StatePaused, changes[1].state)
}

func TestNativeAdapterLoadFailure(t *testing.T) {
	el := NewHeadlessElement(nil)
	el.LoadErr = errors.New("decoder missing")
	a := NewNativeAdapter(el, discardLogger())

	err := a.Load(context.Background(), Video{Media: mustParse(t, "https://cdn.example.com/a.webm")})
	assert.ErrorIs(t, err, ErrPlayerUnavailable)
}

func TestEmbedAdapterPolling(t *testing.T) {
	clock := newTestClock()
	embed := NewHeadlessEmbed(clock.Now)
	a := NewEmbedAdapter(embed, discardLogger(), EmbedConfig{Now: clock.Now})
	l := &recordingListener{}
	a.SetListener(l)

	require.NoError(t, a.Load(context.Background(), Video{
		Media: mustParse(t, "https://youtu.be/dQw4w9WgXcQ"),
		State: domain.StatePlaying,
	}))
	assert.Contains(t, embed.URL(), "/embed/dQw4w9WgXcQ")

	// inside the command window nothing is attributed to the user
	clock.Advance(500 * time.Millisecond)
	a.poll()
	clock.Advance(time.Second)
	a.poll()
	clock.Advance(time.Second)
	a.poll()
	assert.Empty(t, l.Changes())

	embed.UserSeek(120)
	clock.Advance(time.Second)
	a.poll()
	changes := l.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, domain.StatePlaying, changes[0].state)
	assert.InDelta(t, 121, changes[0].position, 0.001)

	embed.UserPause()
	clock.Advance(time.Second)
	a.poll()
	changes = l.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, domain.StatePaused, changes[1].state)

	embed.Finish()
	clock.Advance(time.Second)
	a.poll()
	a.poll()
	assert.Equal(t, 1, l.ended)
}

func TestEmbedAdapterCommandWindow(t *testing.T) {
	clock := newTestClock()
	embed := NewHeadlessEmbed(clock.Now)
	a := NewEmbedAdapter(embed, discardLogger(), EmbedConfig{Now: clock.Now})
	l := &recordingListener{}
	a.SetListener(l)

	require.NoError(t, a.Load(context.Background(), Video{
		Media: mustParse(t, "https://vimeo.com/76979871"),
		State: domain.StatePaused,
	}))
	clock.Advance(2 * time.Second)
	a.poll()

	require.NoError(t, a.ApplyRemote(Remote{State: domain.StatePlaying, Seek: true, Time: 300}))
	clock.Advance(200 * time.Millisecond)
	a.poll()
	assert.Empty(t, l.Changes())
}

func TestRegistryAdapterFor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewHeadlessRegistry(newTestClock().Now, discardLogger())

	_, ok := r.AdapterFor(ctx, mustParse(t, "https://cdn.example.com/a.mp3")).(*NativeAdapter)
	assert.True(t, ok)

	_, ok = r.AdapterFor(ctx, mustParse(t, "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC")).(*EmbedAdapter)
	assert.True(t, ok)
}

func TestEmbedAdapterIgnoresBuffering(t *testing.T) {
	clock := newTestClock()
	embed := NewHeadlessEmbed(clock.Now)
	a := NewEmbedAdapter(embed, discardLogger(), EmbedConfig{Now: clock.Now})
	l := &recordingListener{}
	a.SetListener(l)

	require.NoError(t, a.Load(context.Background(), Video{
		Media: mustParse(t, "https://youtu.be/dQw4w9WgXcQ"),
		State: domain.StatePlaying,
	}))
	clock.Advance(2 * time.Second)
	a.poll()

	embed.Stall()
	clock.Advance(time.Second)
	a.poll()
	clock.Advance(5 * time.Second)
	a.poll()
	embed.Recover()
	clock.Advance(time.Second)
	a.poll()
	assert.Empty(t, l.Changes())

	// a real pause after the stall is still reported
	embed.UserPause()
	changes := l.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, domain.StatePaused, changes[0].state)
}

func TestEmbedAdapterSlowStartIsNotLocal(t *testing.T) {
	clock := newTestClock()
	embed := NewHeadlessEmbed(clock.Now)
	embed.SlowStart = true
	a := NewEmbedAdapter(embed, discardLogger(), EmbedConfig{Now: clock.Now})
	l := &recordingListener{}
	a.SetListener(l)

	require.NoError(t, a.Load(context.Background(), Video{
		Media: mustParse(t, "https://vimeo.com/76979871"),
		State: domain.StatePlaying,
	}))
	assert.Equal(t, EmbedBuffering, embed.State())

	clock.Advance(3 * time.Second)
	a.poll()
	embed.Recover()
	clock.Advance(time.Second)
	a.poll()

	assert.Empty(t, l.Changes())
}

func TestEmbedAdapterReportsChangesBetweenPolls(t *testing.T) {
	clock := newTestClock()
	embed := NewHeadlessEmbed(clock.Now)
	a := NewEmbedAdapter(embed, discardLogger(), EmbedConfig{Now: clock.Now})
	l := &recordingListener{}
	a.SetListener(l)

	require.NoError(t, a.Load(context.Background(), Video{
		Media: mustParse(t, "https://youtu.be/dQw4w9WgXcQ"),
		State: domain.StatePlaying,
	}))
	clock.Advance(2 * time.Second)

	embed.UserPause()
	clock.Advance(200 * time.Millisecond)
	embed.UserPlay()

	changes := l.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, domain.StatePaused, changes[0].state)
	assert.Equal(t, domain.StatePlaying, changes[1].state)
}

func TestEmbedAdapterCloseStopsPolling(t *testing.T) {
	r := NewHeadlessRegistry(newTestClock().Now, discardLogger())

	a, ok := r.AdapterFor(context.Background(), mustParse(t, "https://youtu.be/dQw4w9WgXcQ")).(*EmbedAdapter)
	require.True(t, ok)

	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()
	require.NotNil(t, stopped)

	require.NoError(t, a.Close())
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("poller still running after close")
	}
}
