package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapmeet-dev/swapmeet/internal/models"
)

func TestTradeRoomCreation(t *testing.T) {
	h := newHarness()
	room, buyer, seller := h.tradeRoom(t)

	assert.Equal(t, models.FlavorTrade, room.Flavor)
	assert.True(t, room.Active)
	assert.Equal(t, 2, room.MemberCount)

	initiator, err := h.store.GetMembership(context.Background(), room.ID, buyer)
	require.NoError(t, err)
	require.NotNil(t, initiator)
	assert.Equal(t, models.RoleInitiator, initiator.Role)

	counterpart, err := h.store.GetMembership(context.Background(), room.ID, seller)
	require.NoError(t, err)
	require.NotNil(t, counterpart)
	assert.Equal(t, models.RoleCounterpart, counterpart.Role)
	assert.False(t, counterpart.HasEnteredBefore)

	assert.Contains(t, h.log.kinds(room.ID), models.KindEnter)
}

func TestTradeRoomIdempotent(t *testing.T) {
	h := newHarness()
	room, buyer, seller := h.tradeRoom(t)

	again, err := h.directory.GetOrCreateTradeRoom(context.Background(), room.SubjectID, buyer, seller)
	require.NoError(t, err)
	assert.Equal(t, room.ID, again.ID)

	// Same pair, opposite direction: still the same room.
	reversed, err := h.directory.GetOrCreateTradeRoom(context.Background(), room.SubjectID, seller, buyer)
	require.NoError(t, err)
	assert.Equal(t, room.ID, reversed.ID)
}

func TestTradeRoomSelfJoinForbidden(t *testing.T) {
	h := newHarness()
	subject := h.store.addSubject(models.SubjectOpen)
	member := uuid.New()

	_, err := h.directory.GetOrCreateTradeRoom(context.Background(), subject, member, member)
	assert.ErrorIs(t, err, ErrSelfJoinForbidden)
}

func TestTradeRoomSubjectClosed(t *testing.T) {
	h := newHarness()
	subject := h.store.addSubject(models.SubjectCompleted)

	_, err := h.directory.GetOrCreateTradeRoom(context.Background(), subject, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrSubjectClosed)
}

func TestTradeRoomCreationRaceResolvesToWinner(t *testing.T) {
	h := newHarness()
	subject := h.store.addSubject(models.SubjectOpen)
	buyer, seller := uuid.New(), uuid.New()
	h.store.raceOnCreate = true

	room, err := h.directory.GetOrCreateTradeRoom(context.Background(), subject, buyer, seller)
	require.NoError(t, err, "the duplicate race is retried internally, never surfaced")
	require.NotNil(t, room)

	// Exactly one room exists for the pair.
	found, err := h.store.FindTradeRoom(context.Background(), subject, buyer, seller)
	require.NoError(t, err)
	assert.Equal(t, found.ID, room.ID)
}

func TestMeetupJoinCreatesRoomAndRecordsEntry(t *testing.T) {
	h := newHarness()
	subject := h.store.addSubject(models.SubjectOpen)
	member := uuid.New()

	room, outcome, err := h.directory.JoinMeetup(context.Background(), subject, member)
	require.NoError(t, err)
	assert.True(t, outcome.FirstEntry)
	assert.Contains(t, h.log.kinds(room.ID), models.KindEnter)

	stored, err := h.store.GetRoom(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.MemberCount)

	// Re-joining refreshes the entry time, no second enter event.
	enterEvents := 0
	for _, kind := range h.log.kinds(room.ID) {
		if kind == models.KindEnter {
			enterEvents++
		}
	}
	_, outcome2, err := h.directory.JoinMeetup(context.Background(), subject, member)
	require.NoError(t, err)
	assert.False(t, outcome2.FirstEntry)
	require.NotNil(t, outcome2.PrevEnteredAt)

	after := 0
	for _, kind := range h.log.kinds(room.ID) {
		if kind == models.KindEnter {
			after++
		}
	}
	assert.Equal(t, enterEvents, after)
}

func TestMeetupJoinClosedSubject(t *testing.T) {
	h := newHarness()
	subject := h.store.addSubject(models.SubjectClosed)

	_, _, err := h.directory.JoinMeetup(context.Background(), subject, uuid.New())
	assert.ErrorIs(t, err, ErrSubjectClosed)
}

func TestLeaveIsIdempotent(t *testing.T) {
	h := newHarness()
	room, members := h.meetupRoom(t, 2)

	require.NoError(t, h.directory.Leave(context.Background(), room.ID, members[0]))
	leaves := 0
	for _, kind := range h.log.kinds(room.ID) {
		if kind == models.KindLeave {
			leaves++
		}
	}

	// Second leave: no error, no new event, no count change.
	require.NoError(t, h.directory.Leave(context.Background(), room.ID, members[0]))
	after, err := h.store.GetRoom(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.MemberCount)

	leavesAfter := 0
	for _, kind := range h.log.kinds(room.ID) {
		if kind == models.KindLeave {
			leavesAfter++
		}
	}
	assert.Equal(t, leaves, leavesAfter)
}

func TestMeetupDrainDeactivatesRoom(t *testing.T) {
	h := newHarness()
	room, members := h.meetupRoom(t, 3)

	for i, member := range members {
		require.NoError(t, h.directory.Leave(context.Background(), room.ID, member))
		current, err := h.store.GetRoom(context.Background(), room.ID)
		require.NoError(t, err)
		assert.Equal(t, len(members)-i-1, current.MemberCount)
	}

	drained, err := h.store.GetRoom(context.Background(), room.ID)
	require.NoError(t, err)
	assert.False(t, drained.Active)

	// A fourth member's submit is refused.
	_, err = h.gateway.Submit(context.Background(), room.ID, uuid.New(), "anyone here?")
	assert.ErrorIs(t, err, ErrRoomInactive)
}

func TestRejoinReactivatesAndRestoresCount(t *testing.T) {
	h := newHarness()
	room, members := h.meetupRoom(t, 2)

	require.NoError(t, h.directory.Leave(context.Background(), room.ID, members[0]))
	_, outcome, err := h.directory.JoinMeetup(context.Background(), room.SubjectID, members[0])
	require.NoError(t, err)
	assert.False(t, outcome.FirstEntry)

	current, err := h.store.GetRoom(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.MemberCount)
	assert.True(t, current.Active)
}

func TestCompleteTradeClosesRoom(t *testing.T) {
	h := newHarness()
	room, buyer, seller := h.tradeRoom(t)

	require.NoError(t, h.directory.CompleteTrade(context.Background(), room.ID, buyer))
	assert.Contains(t, h.log.kinds(room.ID), models.KindTransaction)

	closed, err := h.store.GetRoom(context.Background(), room.ID)
	require.NoError(t, err)
	assert.False(t, closed.Active)

	_, err = h.gateway.Submit(context.Background(), room.ID, seller, "wait")
	assert.ErrorIs(t, err, ErrRoomInactive)
}

func TestCompleteTradeRequiresMembership(t *testing.T) {
	h := newHarness()
	room, _, _ := h.tradeRoom(t)

	err := h.directory.CompleteTrade(context.Background(), room.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestMarkReadMovesPointer(t *testing.T) {
	h := newHarness()
	room, buyer, _ := h.tradeRoom(t)

	msg, err := h.gateway.Submit(context.Background(), room.ID, buyer, "hello")
	require.NoError(t, err)
	require.NoError(t, h.directory.MarkRead(context.Background(), room.ID, buyer, msg.ID))

	m, err := h.store.GetMembership(context.Background(), room.ID, buyer)
	require.NoError(t, err)
	require.NotNil(t, m.LastReadMessageID)
	assert.Equal(t, msg.ID, *m.LastReadMessageID)
}
