package room

type CreateRoomParams struct {
	RoomID    string
	OwnerID   string
	Name      string
	CreatedAt int64
}

type SetPlayerParams struct {
	RoomID     string
	VideoURL   *string
	VideoTitle *string
	PlaylistID *string
	State      string
	Time       float64
	// Now is the write time in unix ms. The stored updated_at is never lower
	// than the previous one plus one.
	Now int64
}

type UpsertParticipantParams struct {
	RoomID        string
	ParticipantID string
	DisplayName   string
	IsOwner       bool
	LastSeen      int64
}

type GetParticipantParams struct {
	RoomID        string
	ParticipantID string
}

type UpdatePresenceParams struct {
	RoomID        string
	ParticipantID string
	Presence      string
	LastSeen      int64
}

type UpdateDisplayNameParams struct {
	RoomID        string
	ParticipantID string
	DisplayName   string
}

type UpdateColorParams struct {
	RoomID        string
	ParticipantID string
	Color         *string
}

type KickParams struct {
	RoomID        string
	ParticipantID string
}

type RemoveParticipantParams struct {
	RoomID        string
	ParticipantID string
}
