package chat

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/swapmeet-dev/swapmeet/internal/metrics"
	"github.com/swapmeet-dev/swapmeet/internal/models"
)

// DefaultPageSize bounds history pages when the client does not ask for a
// specific size.
const DefaultPageSize = 30

// HistoryReader serves paginated history by merging the hot cache and the
// durable log behind one cursor contract: pages are ordered (sent_at, id)
// descending and the cursor is an exclusive sent_at upper bound.
type HistoryReader struct {
	rooms  RoomStore
	log    MessageLog
	cache  MessageCache
	logger zerolog.Logger
}

func NewHistoryReader(rooms RoomStore, log MessageLog, cache MessageCache, logger zerolog.Logger) *HistoryReader {
	return &HistoryReader{
		rooms:  rooms,
		log:    log,
		cache:  cache,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Page returns one page of history for the requesting member plus a
// has-more indicator. For session-scoped flavors only messages sent after
// the member's last entry are visible.
func (h *HistoryReader) Page(ctx context.Context, roomID, memberID uuid.UUID, cursor *time.Time, size int) ([]models.Message, bool, error) {
	if size <= 0 || size > 100 {
		size = DefaultPageSize
	}

	room, err := h.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, false, fmt.Errorf("load room: %w", err)
	}
	if room == nil {
		return nil, false, ErrRoomNotFound
	}

	membership, err := h.rooms.GetMembership(ctx, roomID, memberID)
	if err != nil {
		return nil, false, fmt.Errorf("load membership: %w", err)
	}
	if membership == nil {
		return nil, false, ErrNotAMember
	}

	var window *time.Time
	if PolicyFor(room.Flavor).SessionScoped {
		window = membership.LastEnteredAt
	}

	fetch := size + 1 // one extra to answer has_more
	merged := h.fetchMerged(ctx, roomID, cursor, window, fetch)

	hasMore := len(merged) > size
	if hasMore {
		merged = merged[:size]
	}
	return merged, hasMore, nil
}

// fetchMerged tries the cache first and falls back to the durable log
// whenever the cache cannot prove the page is complete. Cache failures are
// indistinguishable from misses by design.
func (h *HistoryReader) fetchMerged(ctx context.Context, roomID uuid.UUID, cursor, window *time.Time, fetch int) []models.Message {
	cached := h.fromCache(ctx, roomID, cursor, fetch)
	if window != nil {
		cached = filterAfter(cached, *window)
	}
	if len(cached) >= fetch {
		metrics.HistoryCacheHits.Inc()
		return cached
	}
	metrics.HistoryCacheMisses.Inc()

	durable, err := h.fromLog(ctx, roomID, cursor, window, fetch)
	if err != nil {
		h.logger.Error().Err(err).Str("room_id", roomID.String()).Msg("durable history read failed")
		// The cache alone is the best answer available.
		return cached
	}
	return mergeDescending(cached, durable, fetch)
}

func (h *HistoryReader) fromCache(ctx context.Context, roomID uuid.UUID, cursor *time.Time, fetch int) []models.Message {
	var (
		cached []models.Message
		err    error
	)
	if cursor == nil {
		cached, err = h.cache.MostRecent(ctx, roomID, fetch)
	} else {
		cached, err = h.cache.Before(ctx, roomID, *cursor, fetch)
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("room_id", roomID.String()).Msg("cache read failed, treating as miss")
		return nil
	}
	return cached
}

func (h *HistoryReader) fromLog(ctx context.Context, roomID uuid.UUID, cursor, window *time.Time, fetch int) ([]models.Message, error) {
	if window != nil {
		return h.log.FindAfter(ctx, roomID, *window, cursor, fetch)
	}
	return h.log.FindBefore(ctx, roomID, cursor, fetch)
}

func filterAfter(msgs []models.Message, after time.Time) []models.Message {
	out := msgs[:0:0]
	for _, m := range msgs {
		if m.SentAt.After(after) {
			out = append(out, m)
		}
	}
	return out
}

// mergeDescending combines both tiers, drops duplicates by id and keeps
// (sent_at, id) descending order.
func mergeDescending(a, b []models.Message, limit int) []models.Message {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]models.Message, 0, len(a)+len(b))
	for _, m := range append(append([]models.Message{}, a...), b...) {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.After(out[j].SentAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
