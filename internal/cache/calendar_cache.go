package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpticket-service/internal/domain"
)

const calendarKey = "helpticket:calendar"

// CalendarEntry is the cached pair read by every deadline computation.
type CalendarEntry struct {
	Config   domain.CalendarConfig `json:"config"`
	Holidays []domain.Holiday      `json:"holidays"`
}

// CalendarCache stores the calendar configuration and holiday list in Redis.
// Failures are logged and reported as misses so callers fall back to the store.
type CalendarCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCalendarCache returns nil when client is nil.
func NewCalendarCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *CalendarCache {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached entry, if any.
func (c *CalendarCache) Get(ctx context.Context) (*CalendarEntry, bool) {
	if c == nil {
		return nil, false
	}
	val, err := c.client.Get(ctx, calendarKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("calendar cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var entry CalendarEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		c.logger.Warn("calendar cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return &entry, true
}

// Set stores entry with the configured TTL.
func (c *CalendarCache) Set(ctx context.Context, entry CalendarEntry) {
	if c == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("calendar cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, calendarKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("calendar cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached entry.
func (c *CalendarCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, calendarKey).Err(); err != nil {
		c.logger.Warn("calendar cache invalidation failed", zap.Error(err))
	}
}
