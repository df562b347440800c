package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swapmeet-dev/swapmeet/internal/models"
)

// In-memory stand-ins for the Postgres and Redis adapters. They mirror the
// adapters' contracts closely enough that the engine tests exercise the
// same code paths the real stores do.

type memberKey struct {
	room, member uuid.UUID
}

type fakeStore struct {
	mu          sync.Mutex
	rooms       map[uuid.UUID]*models.Room
	memberships map[memberKey]*models.Membership
	subjects    map[uuid.UUID]string

	raceOnCreate bool // next create loses the race to a pre-inserted winner
	snapshotErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:       make(map[uuid.UUID]*models.Room),
		memberships: make(map[memberKey]*models.Membership),
		subjects:    make(map[uuid.UUID]string),
	}
}

func (f *fakeStore) addSubject(status string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.subjects[id] = status
	return id
}

func (f *fakeStore) GetRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.rooms[id]; ok {
		copied := *room
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) FindTradeRoom(_ context.Context, subjectID, a, b uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findTradeLocked(subjectID, a, b), nil
}

func (f *fakeStore) findTradeLocked(subjectID, a, b uuid.UUID) *models.Room {
	for _, room := range f.rooms {
		if room.Flavor != models.FlavorTrade || room.SubjectID != subjectID {
			continue
		}
		if (*room.InitiatorID == a && *room.CounterpartID == b) ||
			(*room.InitiatorID == b && *room.CounterpartID == a) {
			copied := *room
			return &copied
		}
	}
	return nil
}

func (f *fakeStore) FindMeetupRoom(_ context.Context, subjectID uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, room := range f.rooms {
		if room.Flavor == models.FlavorMeetup && room.SubjectID == subjectID {
			copied := *room
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateTradeRoom(_ context.Context, room *models.Room, memberships []*models.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.raceOnCreate {
		// A concurrent creation commits first; this insert hits the
		// unique index.
		f.raceOnCreate = false
		winner := *room
		winner.ID = uuid.New()
		f.rooms[winner.ID] = &winner
		for _, m := range memberships {
			copied := *m
			copied.RoomID = winner.ID
			f.memberships[memberKey{winner.ID, m.MemberID}] = &copied
		}
		return ErrDuplicateRoom
	}
	if f.findTradeLocked(room.SubjectID, *room.InitiatorID, *room.CounterpartID) != nil {
		return ErrDuplicateRoom
	}
	copied := *room
	f.rooms[room.ID] = &copied
	for _, m := range memberships {
		mc := *m
		f.memberships[memberKey{m.RoomID, m.MemberID}] = &mc
	}
	return nil
}

func (f *fakeStore) CreateMeetupRoom(_ context.Context, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rooms {
		if existing.Flavor == models.FlavorMeetup && existing.SubjectID == room.SubjectID {
			return ErrDuplicateRoom
		}
	}
	copied := *room
	f.rooms[room.ID] = &copied
	return nil
}

func (f *fakeStore) GetMembership(_ context.Context, roomID, memberID uuid.UUID) (*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.memberships[memberKey{roomID, memberID}]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) Join(_ context.Context, roomID, memberID uuid.UUID, at time.Time) (*JoinOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := memberKey{roomID, memberID}
	outcome := &JoinOutcome{}
	existing := f.memberships[key]
	switch {
	case existing == nil:
		outcome.FirstEntry = true
		f.memberships[key] = &models.Membership{
			RoomID: roomID, MemberID: memberID, Role: models.RoleParticipant,
			Active: true, HasEnteredBefore: true, LastEnteredAt: &at, CreatedAt: at,
		}
		f.rooms[roomID].MemberCount++
		f.rooms[roomID].Active = true
	case !existing.Active:
		outcome.PrevEnteredAt = existing.LastEnteredAt
		existing.Active = true
		entered := at
		existing.LastEnteredAt = &entered
		f.rooms[roomID].MemberCount++
		f.rooms[roomID].Active = true
	default:
		outcome.PrevEnteredAt = existing.LastEnteredAt
		entered := at
		existing.LastEnteredAt = &entered
	}
	copied := *f.memberships[key]
	outcome.Membership = &copied
	return outcome, nil
}

func (f *fakeStore) Leave(_ context.Context, roomID, memberID uuid.UUID) (bool, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := f.memberships[memberKey{roomID, memberID}]
	if m == nil || !m.Active {
		return false, f.rooms[roomID].MemberCount, nil
	}
	m.Active = false
	f.rooms[roomID].MemberCount--
	remaining := f.rooms[roomID].MemberCount
	if remaining <= 0 {
		f.rooms[roomID].Active = false
	}
	return true, remaining, nil
}

func (f *fakeStore) SetRoomActive(_ context.Context, roomID uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[roomID].Active = active
	return nil
}

func (f *fakeStore) UpdateLastMessage(_ context.Context, roomID uuid.UUID, content string, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshotErr != nil {
		return f.snapshotErr
	}
	room := f.rooms[roomID]
	room.LastMessage = content
	at := sentAt
	room.LastMessageAt = &at
	return nil
}

func (f *fakeStore) SetLastRead(_ context.Context, roomID, memberID uuid.UUID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.memberships[memberKey{roomID, memberID}]; ok {
		m.LastReadMessageID = &messageID
	}
	return nil
}

func (f *fakeStore) SubjectStatus(_ context.Context, subjectID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subjects[subjectID], nil
}

func (f *fakeStore) ListMemberRooms(_ context.Context, memberID uuid.UUID) ([]models.RoomSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.RoomSummary, 0)
	for key, m := range f.memberships {
		if key.member != memberID || !m.Active {
			continue
		}
		out = append(out, models.RoomSummary{Room: *f.rooms[key.room], Membership: *m})
	}
	return out, nil
}

type fakeLog struct {
	mu        sync.Mutex
	messages  []models.Message
	appendErr error
}

func (f *fakeLog) Append(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeLog) FindBefore(_ context.Context, roomID uuid.UUID, cursor *time.Time, limit int) ([]models.Message, error) {
	return f.query(roomID, nil, cursor, limit), nil
}

func (f *fakeLog) FindAfter(_ context.Context, roomID uuid.UUID, after time.Time, cursor *time.Time, limit int) ([]models.Message, error) {
	return f.query(roomID, &after, cursor, limit), nil
}

func (f *fakeLog) query(roomID uuid.UUID, after, cursor *time.Time, limit int) []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, 0)
	for _, m := range f.messages {
		if m.RoomID != roomID {
			continue
		}
		if after != nil && !m.SentAt.After(*after) {
			continue
		}
		if cursor != nil && !m.SentAt.Before(*cursor) {
			continue
		}
		out = append(out, m)
	}
	sortDescending(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeLog) kinds(roomID uuid.UUID) []models.MessageKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.MessageKind, 0)
	for _, m := range f.messages {
		if m.RoomID == roomID {
			out = append(out, m.Kind)
		}
	}
	return out
}

type fakeCache struct {
	mu       sync.Mutex
	byRoom   map[uuid.UUID][]models.Message
	putErr   error
	rangeErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{byRoom: make(map[uuid.UUID][]models.Message)}
}

func (f *fakeCache) Put(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.byRoom[msg.RoomID] = append(f.byRoom[msg.RoomID], *msg)
	return nil
}

// expire simulates the sliding TTL elapsing for a room.
func (f *fakeCache) expire(roomID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byRoom, roomID)
}

func (f *fakeCache) MostRecent(_ context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	return f.rangeBefore(roomID, nil, limit)
}

func (f *fakeCache) Before(_ context.Context, roomID uuid.UUID, cursor time.Time, limit int) ([]models.Message, error) {
	return f.rangeBefore(roomID, &cursor, limit)
}

func (f *fakeCache) rangeBefore(roomID uuid.UUID, cursor *time.Time, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	if limit <= 0 || limit > 20 {
		limit = 20 // same hard ceiling as the Redis adapter
	}
	out := make([]models.Message, 0)
	for _, m := range f.byRoom[roomID] {
		// score comparison happens at millisecond resolution, as in Redis
		if cursor != nil && m.SentAt.UnixMilli() >= cursor.UnixMilli() {
			continue
		}
		out = append(out, m)
	}
	sortDescending(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type published struct {
	topic   string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(topic string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{topic: topic, payload: payload})
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeResolver struct {
	profiles map[uuid.UUID]*models.Member
}

func (f *fakeResolver) Resolve(_ context.Context, id uuid.UUID) (*models.Member, error) {
	if f.profiles == nil {
		return nil, nil
	}
	return f.profiles[id], nil
}

func sortDescending(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].SentAt.Equal(msgs[j].SentAt) {
			return msgs[i].SentAt.After(msgs[j].SentAt)
		}
		return msgs[i].ID > msgs[j].ID
	})
}

// testMessage builds a message with a deterministic, ordered id.
func testMessage(roomID uuid.UUID, seq int, at time.Time, content string) models.Message {
	sender := uuid.New()
	return models.Message{
		ID:       fmt.Sprintf("%026d", seq),
		RoomID:   roomID,
		SenderID: &sender,
		Content:  content,
		Kind:     models.KindTalk,
		SentAt:   at,
	}
}

var errBoom = errors.New("boom")
