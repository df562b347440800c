package models

import (
	"time"

	"github.com/google/uuid"
)

// Flavor distinguishes the two chat kinds. Trade rooms pair a listing's
// interested party with the owner; meetup rooms are open to every attendee
// of a meetup post.
type Flavor string

const (
	FlavorTrade  Flavor = "trade"
	FlavorMeetup Flavor = "meetup"
)

// Role of a member inside a room.
type Role string

const (
	RoleInitiator   Role = "initiator"
	RoleCounterpart Role = "counterpart"
	RoleParticipant Role = "participant"
)

// Room is the addressable chat context attached to a subject (a trade
// listing or a meetup post). It carries a denormalized snapshot of the
// last message for list views.
type Room struct {
	ID            uuid.UUID  `json:"id"`
	Flavor        Flavor     `json:"flavor"`
	SubjectID     uuid.UUID  `json:"subject_id"`
	InitiatorID   *uuid.UUID `json:"initiator_id,omitempty"`   // trade only
	CounterpartID *uuid.UUID `json:"counterpart_id,omitempty"` // trade only
	Active        bool       `json:"active"`
	MemberCount   int        `json:"member_count"`
	LastMessage   string     `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Membership is a member's participation record in a room. A member has at
// most one membership per room; re-entry updates LastEnteredAt rather than
// creating a new row.
type Membership struct {
	RoomID            uuid.UUID  `json:"room_id"`
	MemberID          uuid.UUID  `json:"member_id"`
	Role              Role       `json:"role"`
	Active            bool       `json:"active"`
	HasEnteredBefore  bool       `json:"has_entered_before"`
	LastEnteredAt     *time.Time `json:"last_entered_at,omitempty"`
	LastReadMessageID *string    `json:"last_read_message_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// RoomSummary is a room plus the requesting member's view of it, used for
// the room list.
type RoomSummary struct {
	Room        Room       `json:"room"`
	Membership  Membership `json:"membership"`
	UnreadCount int64      `json:"unread_count"`
}
