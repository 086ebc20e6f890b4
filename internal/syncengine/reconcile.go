package syncengine

import (
	"math"
	"time"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/media"
)

const (
	DefaultPullInterval      = 2 * time.Second
	DefaultDriftThreshold    = 3 * time.Second
	DefaultSuppressionWindow = 2 * time.Second
)

type Config struct {
	PullInterval time.Duration
	// DriftThreshold is the position difference that has to be exceeded before
	// a remote position is seeked to.
	DriftThreshold time.Duration
	// SuppressionWindow is how long after a local change remote state is ignored.
	SuppressionWindow time.Duration
	Now               func() time.Time
}

func (c Config) withDefaults() Config {
	if c.PullInterval <= 0 {
		c.PullInterval = DefaultPullInterval
	}
	if c.DriftThreshold <= 0 {
		c.DriftThreshold = DefaultDriftThreshold
	}
	if c.SuppressionWindow <= 0 {
		c.SuppressionWindow = DefaultSuppressionWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Cursor is what this client last applied or did locally.
type Cursor struct {
	LastAppliedVideoID    string
	LastAppliedURL        string
	LastAppliedTitle      string
	LastAppliedPlaylistID string
	LastAppliedState      domain.PlaybackState
	LastAppliedTime       float64
	LastLocalChangeAt     time.Time
	// LastRemoteUpdatedAt is the newest updated_at seen, read or written.
	LastRemoteUpdatedAt int64
}

func (c Cursor) update() domain.PlaybackUpdate {
	state := c.LastAppliedState
	if !state.Valid() {
		state = domain.StatePaused
	}

	return domain.PlaybackUpdate{
		CurrentVideoURL:   optional(c.LastAppliedURL),
		CurrentVideoTitle: optional(c.LastAppliedTitle),
		CurrentPlaylistID: optional(c.LastAppliedPlaylistID),
		PlaybackState:     state,
		PlaybackTime:      math.Max(c.LastAppliedTime, 0),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Snapshot is one pull result together with the local player position, if a
// player is loaded.
type Snapshot struct {
	State         domain.RoomState
	ServerTime    int64
	LocalPosition *float64
}

type ActionKind int

const (
	ActionNone ActionKind = iota
	// ActionLoad loads URL and starts it in State at Time.
	ActionLoad
	// ActionApply changes State when set and seeks when Seek is set.
	ActionApply
	// ActionClear unloads the current video.
	ActionClear
)

func (k ActionKind) String() string {
	switch k {
	case ActionLoad:
		return "load"
	case ActionApply:
		return "apply"
	case ActionClear:
		return "clear"
	default:
		return "none"
	}
}

type Action struct {
	Kind  ActionKind
	URL   string
	Title string
	State domain.PlaybackState
	Seek  bool
	Time  float64
}

// remotePosition extrapolates a playing record's position to the server time
// of the read.
func remotePosition(s Snapshot) float64 {
	pos := s.State.PlaybackTime
	if s.State.PlaybackState == domain.StatePlaying && s.ServerTime > s.State.UpdatedAt && s.State.UpdatedAt > 0 {
		pos += float64(s.ServerTime-s.State.UpdatedAt) / 1000
	}
	return pos
}

// Reconcile decides what a pulled snapshot changes locally. It has no side
// effects; the returned cursor replaces the given one.
func Reconcile(cur Cursor, snap Snapshot, now time.Time, cfg Config) (Cursor, Action) {
	cfg = cfg.withDefaults()

	if !cur.LastLocalChangeAt.IsZero() && now.Sub(cur.LastLocalChangeAt) < cfg.SuppressionWindow {
		return cur, Action{}
	}

	st := snap.State
	if st.UpdatedAt < cur.LastRemoteUpdatedAt {
		return cur, Action{}
	}
	cur.LastRemoteUpdatedAt = st.UpdatedAt

	id := media.Identity(st.VideoURL())
	remotePos := remotePosition(snap)

	switch {
	case id == "":
		hadVideo := cur.LastAppliedVideoID != ""
		cur.LastAppliedVideoID, cur.LastAppliedURL, cur.LastAppliedTitle = "", "", ""
		cur.LastAppliedPlaylistID = stringValue(st.CurrentPlaylistID)
		cur.LastAppliedState = st.PlaybackState
		cur.LastAppliedTime = st.PlaybackTime
		if hadVideo {
			return cur, Action{Kind: ActionClear}
		}
		return cur, Action{}

	case id != cur.LastAppliedVideoID:
		cur.LastAppliedVideoID = id
		cur.LastAppliedURL = st.VideoURL()
		cur.LastAppliedTitle = st.VideoTitle()
		cur.LastAppliedPlaylistID = stringValue(st.CurrentPlaylistID)
		cur.LastAppliedState = st.PlaybackState
		cur.LastAppliedTime = st.PlaybackTime
		return cur, Action{
			Kind:  ActionLoad,
			URL:   st.VideoURL(),
			Title: st.VideoTitle(),
			State: st.PlaybackState,
			Time:  remotePos,
		}
	}

	action := Action{Kind: ActionApply}
	if st.PlaybackState != cur.LastAppliedState {
		action.State = st.PlaybackState
	}

	drift := math.Abs(st.PlaybackTime - cur.LastAppliedTime)
	if snap.LocalPosition != nil {
		drift = math.Abs(remotePos - *snap.LocalPosition)
	}
	if drift > cfg.DriftThreshold.Seconds() {
		action.Seek = true
		action.Time = remotePos
	}

	cur.LastAppliedTitle = st.VideoTitle()
	cur.LastAppliedPlaylistID = stringValue(st.CurrentPlaylistID)
	cur.LastAppliedState = st.PlaybackState
	cur.LastAppliedTime = st.PlaybackTime

	if action.State == "" && !action.Seek {
		return cur, Action{}
	}

	return cur, action
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
