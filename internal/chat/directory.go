package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/swapmeet-dev/swapmeet/internal/models"
)

// Directory owns rooms and memberships: creation, join/leave lifecycle and
// the denormalized last-message snapshot. Message transitions it triggers
// (enter/leave/transaction events) go through the gateway.
type Directory struct {
	store   RoomStore
	gateway *Gateway
	logger  zerolog.Logger
}

func NewDirectory(store RoomStore, gateway *Gateway, logger zerolog.Logger) *Directory {
	return &Directory{
		store:   store,
		gateway: gateway,
		logger:  logger.With().Str("component", "directory").Logger(),
	}
}

// GetOrCreateTradeRoom returns the one room linking a listing with this
// counterpart pair, creating it (with both memberships) on first contact.
// Idempotent, and safe under a creation race: the partial unique index on
// (subject, initiator, counterpart) makes the loser re-fetch the winner.
func (d *Directory) GetOrCreateTradeRoom(ctx context.Context, subjectID, initiatorID, counterpartID uuid.UUID) (*models.Room, error) {
	if initiatorID == counterpartID {
		return nil, ErrSelfJoinForbidden
	}

	room, err := d.store.FindTradeRoom(ctx, subjectID, initiatorID, counterpartID)
	if err != nil {
		return nil, fmt.Errorf("find trade room: %w", err)
	}
	if room != nil {
		return room, nil
	}

	status, err := d.store.SubjectStatus(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("subject status: %w", err)
	}
	if status != models.SubjectOpen {
		return nil, ErrSubjectClosed
	}

	now := time.Now().UTC()
	room = &models.Room{
		ID:            uuid.New(),
		Flavor:        models.FlavorTrade,
		SubjectID:     subjectID,
		InitiatorID:   &initiatorID,
		CounterpartID: &counterpartID,
		Active:        true,
		MemberCount:   2,
		CreatedAt:     now,
	}
	memberships := []*models.Membership{
		{
			RoomID: room.ID, MemberID: initiatorID, Role: models.RoleInitiator,
			Active: true, HasEnteredBefore: true, LastEnteredAt: &now, CreatedAt: now,
		},
		{
			RoomID: room.ID, MemberID: counterpartID, Role: models.RoleCounterpart,
			Active: true, CreatedAt: now,
		},
	}

	err = d.store.CreateTradeRoom(ctx, room, memberships)
	if errors.Is(err, ErrDuplicateRoom) {
		// Lost the race; the other creation is the room.
		return d.store.FindTradeRoom(ctx, subjectID, initiatorID, counterpartID)
	}
	if err != nil {
		return nil, fmt.Errorf("create trade room: %w", err)
	}

	if _, err := d.gateway.SubmitSystem(ctx, room, &initiatorID, models.KindEnter); err != nil {
		d.logger.Warn().Err(err).Str("room_id", room.ID.String()).Msg("enter event not recorded")
	}
	return room, nil
}

// JoinMeetup joins (or re-joins) the member to the subject's room, creating
// the room on the first-ever join attempt for that meetup.
func (d *Directory) JoinMeetup(ctx context.Context, subjectID, memberID uuid.UUID) (*models.Room, *JoinOutcome, error) {
	room, err := d.store.FindMeetupRoom(ctx, subjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("find meetup room: %w", err)
	}
	if room == nil {
		status, err := d.store.SubjectStatus(ctx, subjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("subject status: %w", err)
		}
		if status != models.SubjectOpen {
			return nil, nil, ErrSubjectClosed
		}

		room = &models.Room{
			ID:        uuid.New(),
			Flavor:    models.FlavorMeetup,
			SubjectID: subjectID,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}
		err = d.store.CreateMeetupRoom(ctx, room)
		if errors.Is(err, ErrDuplicateRoom) {
			room, err = d.store.FindMeetupRoom(ctx, subjectID)
			if err != nil || room == nil {
				return nil, nil, fmt.Errorf("refetch meetup room after race: %w", err)
			}
		} else if err != nil {
			return nil, nil, fmt.Errorf("create meetup room: %w", err)
		}
	}

	outcome, err := d.store.Join(ctx, room.ID, memberID, time.Now().UTC())
	if err != nil {
		return nil, nil, fmt.Errorf("join room: %w", err)
	}

	if outcome.FirstEntry {
		if _, err := d.gateway.SubmitSystem(ctx, room, &memberID, models.KindEnter); err != nil {
			d.logger.Warn().Err(err).Str("room_id", room.ID.String()).Msg("enter event not recorded")
		}
	}
	return room, outcome, nil
}

// Leave deactivates the member's participation. Idempotent: leaving a room
// you already left is a no-op, not an error. When the last member leaves,
// the store deactivates the room in the same transaction.
func (d *Directory) Leave(ctx context.Context, roomID, memberID uuid.UUID) error {
	room, err := d.store.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load room: %w", err)
	}
	if room == nil {
		return ErrRoomNotFound
	}

	left, remaining, err := d.store.Leave(ctx, roomID, memberID)
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	if !left {
		return nil
	}

	if remaining > 0 {
		if _, err := d.gateway.SubmitSystem(ctx, room, &memberID, models.KindLeave); err != nil {
			d.logger.Warn().Err(err).Str("room_id", roomID.String()).Msg("leave event not recorded")
		}
	}
	return nil
}

// CompleteTrade records the transaction event and closes the room. Only a
// member of the trade room may complete it.
func (d *Directory) CompleteTrade(ctx context.Context, roomID, memberID uuid.UUID) error {
	room, err := d.store.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load room: %w", err)
	}
	if room == nil {
		return ErrRoomNotFound
	}
	if room.Flavor != models.FlavorTrade {
		return ErrRoomNotFound
	}
	if !room.Active {
		return ErrRoomInactive
	}

	membership, err := d.store.GetMembership(ctx, roomID, memberID)
	if err != nil {
		return fmt.Errorf("load membership: %w", err)
	}
	if membership == nil || !membership.Active {
		return ErrNotAMember
	}

	if _, err := d.gateway.SubmitSystem(ctx, room, &memberID, models.KindTransaction); err != nil {
		d.logger.Warn().Err(err).Str("room_id", roomID.String()).Msg("transaction event not recorded")
	}
	return d.store.SetRoomActive(ctx, roomID, false)
}

// MarkRead moves the member's read pointer.
func (d *Directory) MarkRead(ctx context.Context, roomID, memberID uuid.UUID, messageID string) error {
	membership, err := d.store.GetMembership(ctx, roomID, memberID)
	if err != nil {
		return fmt.Errorf("load membership: %w", err)
	}
	if membership == nil {
		return ErrNotAMember
	}
	return d.store.SetLastRead(ctx, roomID, memberID, messageID)
}

// Rooms lists the member's rooms with last-message snapshots and unread
// counts, newest activity first.
func (d *Directory) Rooms(ctx context.Context, memberID uuid.UUID) ([]models.RoomSummary, error) {
	return d.store.ListMemberRooms(ctx, memberID)
}
