package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind classifies a chat message. System kinds (enter/leave/
// transaction) are synthesized by room transitions and flow through the
// same accept path as talk messages.
type MessageKind string

const (
	KindTalk        MessageKind = "talk"
	KindEnter       MessageKind = "enter"
	KindLeave       MessageKind = "leave"
	KindTransaction MessageKind = "transaction"
)

// Message is a single chat message. Immutable once persisted. ID is a ULID
// minted at accept time, so lexicographic id order matches accept order and
// breaks sent_at ties deterministically.
type Message struct {
	ID       string      `json:"id"`
	RoomID   uuid.UUID   `json:"room_id"`
	SenderID *uuid.UUID  `json:"sender_id,omitempty"` // nil when no member is attributable
	Content  string      `json:"content"`
	Kind     MessageKind `json:"kind"`
	SentAt   time.Time   `json:"sent_at"`
}

// Score is the message's position in the hot cache's sorted set: sent_at as
// epoch milliseconds.
func (m Message) Score() int64 {
	return m.SentAt.UnixMilli()
}
