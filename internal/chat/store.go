package chat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/swapmeet-dev/swapmeet/internal/models"
)

// MessageLog is the durable, append-only message store. It is the source of
// truth: a message is accepted once (and only once) Append returns nil.
type MessageLog interface {
	Append(ctx context.Context, msg *models.Message) error

	// FindBefore returns up to limit messages ordered (sent_at, id)
	// descending. A nil cursor means "most recent page"; a non-nil cursor
	// bounds results to sent_at strictly before it.
	FindBefore(ctx context.Context, roomID uuid.UUID, cursor *time.Time, limit int) ([]models.Message, error)

	// FindAfter is FindBefore with an additional lower bound: only messages
	// with sent_at strictly after `after` are returned. Used by session-
	// scoped history so a rejoining member does not see messages from
	// before their current session.
	FindAfter(ctx context.Context, roomID uuid.UUID, after time.Time, cursor *time.Time, limit int) ([]models.Message, error)
}

// MessageCache is the hot, time-bounded read path for recent messages. It is
// never authoritative: a miss (or an empty result) means "unknown", not "no
// messages exist", and every failure is absorbed by the caller.
type MessageCache interface {
	Put(ctx context.Context, msg *models.Message) error
	MostRecent(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error)
	Before(ctx context.Context, roomID uuid.UUID, cursor time.Time, limit int) ([]models.Message, error)
}

// JoinOutcome reports what a join-or-rejoin did. PrevEnteredAt is the
// membership's LastEnteredAt from before this join took effect; it is nil
// exactly when FirstEntry is true.
type JoinOutcome struct {
	Membership    *models.Membership
	FirstEntry    bool
	PrevEnteredAt *time.Time
}

// RoomStore is the persistence surface behind the room directory. The
// Postgres adapter implements it; tests substitute an in-memory fake.
//
// Membership mutations must be atomic per (room, member): Join and Leave
// apply the row flip and the member-count adjustment in one transaction.
type RoomStore interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	FindTradeRoom(ctx context.Context, subjectID, a, b uuid.UUID) (*models.Room, error)
	FindMeetupRoom(ctx context.Context, subjectID uuid.UUID) (*models.Room, error)

	// CreateTradeRoom inserts the room and both memberships atomically.
	// Returns ErrDuplicateRoom if a concurrent creation won.
	CreateTradeRoom(ctx context.Context, room *models.Room, memberships []*models.Membership) error

	// CreateMeetupRoom inserts an empty room for a subject. Returns
	// ErrDuplicateRoom if a concurrent creation won.
	CreateMeetupRoom(ctx context.Context, room *models.Room) error

	GetMembership(ctx context.Context, roomID, memberID uuid.UUID) (*models.Membership, error)

	// Join creates, reactivates or refreshes a membership and keeps the
	// room's member count and active flag in step.
	Join(ctx context.Context, roomID, memberID uuid.UUID, at time.Time) (*JoinOutcome, error)

	// Leave deactivates an active membership and decrements the count;
	// when the count reaches zero the room is deactivated in the same
	// transaction. left=false means the membership was already inactive.
	Leave(ctx context.Context, roomID, memberID uuid.UUID) (left bool, remaining int, err error)

	SetRoomActive(ctx context.Context, roomID uuid.UUID, active bool) error
	UpdateLastMessage(ctx context.Context, roomID uuid.UUID, content string, sentAt time.Time) error
	SetLastRead(ctx context.Context, roomID, memberID uuid.UUID, messageID string) error

	SubjectStatus(ctx context.Context, subjectID uuid.UUID) (string, error)
	ListMemberRooms(ctx context.Context, memberID uuid.UUID) ([]models.RoomSummary, error)
}

// Publisher fans a rendered message out to the subscribers currently
// attached to a topic. At most once, fire and forget; disconnected clients
// catch up through history.
type Publisher interface {
	Publish(topic string, payload any)
}
