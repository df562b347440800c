package chat

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/swapmeet-dev/swapmeet/internal/metrics"
	"github.com/swapmeet-dev/swapmeet/internal/models"
)

// ProfileResolver looks up display fields for a sender. Best effort: a
// failed lookup degrades the broadcast payload, never the submission.
type ProfileResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (*models.Member, error)
}

// RenderedMessage is the broadcast payload: the message plus resolved
// sender display fields.
type RenderedMessage struct {
	models.Message
	SenderName   string `json:"sender_name,omitempty"`
	SenderAvatar string `json:"sender_avatar,omitempty"`
}

// Gateway is the single accept path for messages. The write contract:
// the durable log write must complete before a message is considered
// accepted; the cache write, the room snapshot and the broadcast are
// advisory and may be lost silently.
type Gateway struct {
	rooms    RoomStore
	log      MessageLog
	cache    MessageCache
	pub      Publisher
	profiles ProfileResolver
	logger   zerolog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewGateway(rooms RoomStore, log MessageLog, cache MessageCache, pub Publisher, profiles ProfileResolver, logger zerolog.Logger) *Gateway {
	return &Gateway{
		rooms:    rooms,
		log:      log,
		cache:    cache,
		pub:      pub,
		profiles: profiles,
		logger:   logger.With().Str("component", "gateway").Logger(),
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

// newMessageID mints a ULID whose timestamp component is the accept time.
// MonotonicEntropy is not safe for concurrent use, hence the lock.
func (g *Gateway) newMessageID(at time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), g.entropy).String()
}

// Submit validates a talk message against the sender's membership and runs
// it through the accept path.
func (g *Gateway) Submit(ctx context.Context, roomID, senderID uuid.UUID, content string) (*models.Message, error) {
	room, err := g.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if !room.Active {
		return nil, ErrRoomInactive
	}

	membership, err := g.rooms.GetMembership(ctx, roomID, senderID)
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if membership == nil || !membership.Active {
		return nil, ErrNotAMember
	}

	sender := senderID
	return g.accept(ctx, room, &sender, models.KindTalk, content)
}

// SubmitSystem runs a room-transition event (enter/leave/transaction)
// through the same accept path so it lands in history in order with talk
// messages. Callers are the directory's own transitions, so membership is
// not re-validated and a just-deactivated room is still written to.
func (g *Gateway) SubmitSystem(ctx context.Context, room *models.Room, actorID *uuid.UUID, kind models.MessageKind) (*models.Message, error) {
	return g.accept(ctx, room, actorID, kind, g.systemContent(ctx, actorID, kind))
}

func (g *Gateway) systemContent(ctx context.Context, actorID *uuid.UUID, kind models.MessageKind) string {
	name := "Someone"
	if actorID != nil {
		if p, err := g.profiles.Resolve(ctx, *actorID); err == nil && p != nil {
			name = p.Nickname
		}
	}
	switch kind {
	case models.KindEnter:
		return name + " joined the chat"
	case models.KindLeave:
		return name + " left the chat"
	case models.KindTransaction:
		return "The transaction was completed"
	default:
		return ""
	}
}

// accept assigns the timestamp and id, persists durably, then performs the
// advisory writes. sentAt is assigned here, never by the client.
func (g *Gateway) accept(ctx context.Context, room *models.Room, senderID *uuid.UUID, kind models.MessageKind, content string) (*models.Message, error) {
	now := time.Now().UTC()
	msg := &models.Message{
		ID:       g.newMessageID(now),
		RoomID:   room.ID,
		SenderID: senderID,
		Content:  content,
		Kind:     kind,
		SentAt:   now,
	}

	if err := g.log.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	metrics.MessagesAccepted.WithLabelValues(string(room.Flavor), string(kind)).Inc()

	if err := g.cache.Put(ctx, msg); err != nil {
		g.logger.Warn().Err(err).Str("room_id", room.ID.String()).Str("message_id", msg.ID).
			Msg("cache write failed after durable append")
	}

	if err := g.rooms.UpdateLastMessage(ctx, room.ID, msg.Content, msg.SentAt); err != nil {
		g.logger.Warn().Err(err).Str("room_id", room.ID.String()).
			Msg("room snapshot update failed")
	}

	g.pub.Publish(Topic(room.Flavor, room.ID.String()), g.render(ctx, msg))
	return msg, nil
}

// render attaches the sender's display fields for live delivery.
func (g *Gateway) render(ctx context.Context, msg *models.Message) RenderedMessage {
	out := RenderedMessage{Message: *msg}
	if msg.SenderID != nil {
		if p, err := g.profiles.Resolve(ctx, *msg.SenderID); err == nil && p != nil {
			out.SenderName = p.Nickname
			out.SenderAvatar = p.AvatarURL
		}
	}
	return out
}
