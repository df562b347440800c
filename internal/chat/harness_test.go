package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/swapmeet-dev/swapmeet/internal/models"
)

// harness wires the engine over the in-memory fakes.
type harness struct {
	store     *fakeStore
	log       *fakeLog
	cache     *fakeCache
	publisher *fakePublisher
	gateway   *Gateway
	directory *Directory
	history   *HistoryReader
}

func newHarness() *harness {
	h := &harness{
		store:     newFakeStore(),
		log:       &fakeLog{},
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
	}
	logger := zerolog.Nop()
	resolver := &fakeResolver{}
	h.gateway = NewGateway(h.store, h.log, h.cache, h.publisher, resolver, logger)
	h.directory = NewDirectory(h.store, h.gateway, logger)
	h.history = NewHistoryReader(h.store, h.log, h.cache, logger)
	return h
}

// tradeRoom sets up an open subject and its trade room between two fresh
// members.
func (h *harness) tradeRoom(t *testing.T) (*models.Room, uuid.UUID, uuid.UUID) {
	t.Helper()
	subject := h.store.addSubject(models.SubjectOpen)
	buyer, seller := uuid.New(), uuid.New()
	room, err := h.directory.GetOrCreateTradeRoom(context.Background(), subject, buyer, seller)
	require.NoError(t, err)
	return room, buyer, seller
}

// meetupRoom sets up an open subject with n joined members.
func (h *harness) meetupRoom(t *testing.T, n int) (*models.Room, []uuid.UUID) {
	t.Helper()
	subject := h.store.addSubject(models.SubjectOpen)
	members := make([]uuid.UUID, n)
	var room *models.Room
	for i := range members {
		members[i] = uuid.New()
		var err error
		room, _, err = h.directory.JoinMeetup(context.Background(), subject, members[i])
		require.NoError(t, err)
	}
	return room, members
}

// seed writes messages directly into the durable log and cache with
// explicit timestamps, bypassing the gateway.
func (h *harness) seed(t *testing.T, roomID uuid.UUID, start time.Time, contents ...string) []models.Message {
	t.Helper()
	msgs := make([]models.Message, len(contents))
	for i, content := range contents {
		msg := testMessage(roomID, i, start.Add(time.Duration(i)*time.Second), content)
		require.NoError(t, h.log.Append(context.Background(), &msg))
		require.NoError(t, h.cache.Put(context.Background(), &msg))
		msgs[i] = msg
	}
	return msgs
}
