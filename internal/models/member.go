package models

import (
	"time"

	"github.com/google/uuid"
)

// Member is the display profile of an account. Identity resolution and
// authentication live upstream; this table only serves rendering.
type Member struct {
	ID        uuid.UUID `json:"id"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SubjectStatus values for the subject a room is attached to. Only "open"
// subjects accept new rooms.
const (
	SubjectOpen      = "open"
	SubjectClosed    = "closed"
	SubjectCompleted = "completed"
)

// Subject is the thing a chat room hangs off: a trade listing or a meetup
// post. The owning CRUD lives elsewhere; the chat side only consults Status.
type Subject struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"` // "listing" or "meetup"
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
