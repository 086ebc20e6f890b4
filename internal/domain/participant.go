package domain

import (
	"strings"
	"time"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// DefaultPresenceTimeout is how long a heartbeat keeps a participant online.
const DefaultPresenceTimeout = 30 * time.Second

const GuestIDPrefix = "guest_"

type Participant struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Color       *string `json:"color"`
	IsOwner     bool    `json:"is_owner"`
	// Presence is the flag last reported by the participant itself (online, away or offline).
	Presence Status `json:"presence"`
	LastSeen int64  `json:"last_seen"`
	Status   Status `json:"status"`
}

func IsGuestID(id string) bool {
	return strings.HasPrefix(id, GuestIDPrefix)
}

// DeriveStatus computes a participant's status from heartbeat recency. The stored
// flag only distinguishes away/offline from online while the heartbeat is fresh.
func DeriveStatus(lastSeen, ref int64, timeout time.Duration, flag Status) Status {
	if lastSeen <= 0 || ref-lastSeen > timeout.Milliseconds() {
		return StatusOffline
	}

	switch flag {
	case StatusAway:
		return StatusAway
	case StatusOffline:
		return StatusOffline
	default:
		return StatusOnline
	}
}

// WithStatus returns a copy of p with Status derived against ref.
func (p Participant) WithStatus(ref int64, timeout time.Duration) Participant {
	p.Status = DeriveStatus(p.LastSeen, ref, timeout, p.Presence)
	return p
}

func (s Status) rank() int {
	switch s {
	case StatusOnline:
		return 0
	case StatusAway:
		return 1
	default:
		return 2
	}
}

// CompareStatus orders online before away before offline.
func CompareStatus(a, b Status) int {
	return a.rank() - b.rank()
}

// ParticipantUpdate changes a participant's display name or color. Nil fields are
// left untouched; ClearColor removes the color.
type ParticipantUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	Color       *string `json:"color,omitempty"`
	ClearColor  bool    `json:"clear_color,omitempty"`
}
