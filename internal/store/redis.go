package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/swapmeet-dev/swapmeet/internal/chat"
	"github.com/swapmeet-dev/swapmeet/internal/models"
)

const (
	// cacheTTL is the sliding lifetime of a room's hot window. Every write
	// refreshes it; a quiet room's entries vanish after an hour.
	cacheTTL = time.Hour

	// maxRangeCount is a hard ceiling per range call, not a default.
	// Callers asking for more still get at most this many from the cache.
	maxRangeCount = 20
)

// RedisCache is the hot read path: one sorted set per room, scored by
// sent_at in epoch milliseconds. Entries are expendable derived copies of
// durably logged messages.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates the cache from a Redis URL.
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

// Client exposes the underlying connection for sibling concerns (rate
// limiting) that share the instance.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// roomMessagesKey returns the key for a room's message sorted set.
func roomMessagesKey(roomID uuid.UUID) string {
	return fmt.Sprintf("chat:room:%s:messages", roomID)
}

// Put inserts the message and refreshes the room's sliding TTL.
func (c *RedisCache) Put(ctx context.Context, msg *models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := roomMessagesKey(msg.RoomID)
	if err := c.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.Score()),
		Member: string(data),
	}).Err(); err != nil {
		return err
	}

	return c.client.Expire(ctx, key, cacheTTL).Err()
}

// MostRecent returns the newest messages, highest score first.
func (c *RedisCache) MostRecent(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	return c.revRange(ctx, roomID, "+inf", limit)
}

// Before returns messages with scores strictly below the cursor, highest
// first.
func (c *RedisCache) Before(ctx context.Context, roomID uuid.UUID, cursor time.Time, limit int) ([]models.Message, error) {
	return c.revRange(ctx, roomID, fmt.Sprintf("(%d", cursor.UnixMilli()), limit)
}

func (c *RedisCache) revRange(ctx context.Context, roomID uuid.UUID, maxScore string, limit int) ([]models.Message, error) {
	results, err := c.client.ZRevRangeByScore(ctx, roomMessagesKey(roomID), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   maxScore,
		Count: int64(capRangeCount(limit)),
	}).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// capRangeCount enforces the per-call ceiling.
func capRangeCount(limit int) int {
	if limit <= 0 || limit > maxRangeCount {
		return maxRangeCount
	}
	return limit
}

var _ chat.MessageCache = (*RedisCache)(nil)
