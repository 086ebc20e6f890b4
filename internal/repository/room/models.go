package room

type Room struct {
	OwnerID   string `redis:"owner_id"`
	Name      string `redis:"name"`
	CreatedAt int64  `redis:"created_at"`
}

// Player is the shared playback record. Absent video fields are stored as
// missing hash fields and scan as "".
type Player struct {
	VideoURL   string  `redis:"video_url"`
	VideoTitle string  `redis:"video_title"`
	PlaylistID string  `redis:"playlist_id"`
	State      string  `redis:"state"`
	Time       float64 `redis:"time"`
	UpdatedAt  int64   `redis:"updated_at"`
}

type Participant struct {
	ID          string `redis:"-"`
	DisplayName string `redis:"display_name"`
	Color       string `redis:"color"`
	IsOwner     bool   `redis:"is_owner"`
	LastSeen    int64  `redis:"last_seen"`
	Presence    string `redis:"presence"`
}
