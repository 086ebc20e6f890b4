package domain

type PlaybackState string

const (
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

func (s PlaybackState) Valid() bool {
	return s == StatePlaying || s == StatePaused
}

// RoomState is the shared playback record of a room. Timestamps are unix milliseconds.
type RoomState struct {
	CurrentVideoURL   *string       `json:"current_video_url"`
	CurrentVideoTitle *string       `json:"current_video_title"`
	CurrentPlaylistID *string       `json:"current_playlist_id"`
	PlaybackState     PlaybackState `json:"playback_state"`
	PlaybackTime      float64       `json:"playback_time"`
	UpdatedAt         int64         `json:"updated_at"`
}

func (s RoomState) VideoURL() string {
	if s.CurrentVideoURL == nil {
		return ""
	}
	return *s.CurrentVideoURL
}

func (s RoomState) VideoTitle() string {
	if s.CurrentVideoTitle == nil {
		return ""
	}
	return *s.CurrentVideoTitle
}

// PlaybackUpdate is the full state a client writes after a local action.
type PlaybackUpdate struct {
	CurrentVideoURL   *string       `json:"current_video_url"`
	CurrentVideoTitle *string       `json:"current_video_title"`
	CurrentPlaylistID *string       `json:"current_playlist_id"`
	PlaybackState     PlaybackState `json:"playback_state"`
	PlaybackTime      float64       `json:"playback_time"`
}

type Room struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id"`
	CreatedAt int64  `json:"created_at"`
}

// RoomSync is what a single poll returns: the playback record, the participant list
// and the server clock the participant statuses were derived against.
type RoomSync struct {
	Room         RoomState     `json:"room"`
	Participants []Participant `json:"participants"`
	ServerTime   int64         `json:"server_time"`
}

func StringPtr(s string) *string {
	return &s
}
