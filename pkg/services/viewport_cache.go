package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mapform-hq/mapform-engine/pkg/models"
)

// ViewportCache is an optional Redis read-through cache for viewport
// point queries. Map panning hits the same boxes over and over; caching
// them keeps the hot path off the database.
//
// Invalidation bumps a per-column version that is part of every cache
// key, so stale entries are simply never read again and expire on TTL.
// A nil Redis client disables the cache; correctness never depends on it.
type ViewportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewViewportCache creates a viewport cache. client may be nil, which
// turns every operation into a no-op.
func NewViewportCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ViewportCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ViewportCache{client: client, ttl: ttl, logger: logger}
}

func (c *ViewportCache) enabled() bool {
	return c != nil && c.client != nil
}

func (c *ViewportCache) versionKey(columnID uuid.UUID) string {
	return fmt.Sprintf("viewport:ver:%s", columnID)
}

func (c *ViewportCache) entryKey(columnID uuid.UUID, version int64, bounds models.Bounds) string {
	return fmt.Sprintf("viewport:%s:%d:%g:%g:%g:%g",
		columnID, version, bounds.MinLng, bounds.MinLat, bounds.MaxLng, bounds.MaxLat)
}

// Get returns the cached features for (column, bounds), or ok=false on
// miss, disabled cache, or any Redis error. Errors are logged and
// swallowed; the caller falls through to the database.
func (c *ViewportCache) Get(ctx context.Context, columnID uuid.UUID, bounds models.Bounds) ([]models.PointFeature, bool) {
	if !c.enabled() {
		return nil, false
	}

	version, err := c.client.Get(ctx, c.versionKey(columnID)).Int64()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("viewport cache version read failed", zap.Error(err))
		}
		version = 0
	}

	raw, err := c.client.Get(ctx, c.entryKey(columnID, version, bounds)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("viewport cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var features []models.PointFeature
	if err := json.Unmarshal(raw, &features); err != nil {
		c.logger.Warn("viewport cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return features, true
}

// Put stores the features for (column, bounds) under the column's current
// version.
func (c *ViewportCache) Put(ctx context.Context, columnID uuid.UUID, bounds models.Bounds, features []models.PointFeature) {
	if !c.enabled() {
		return
	}

	version, err := c.client.Get(ctx, c.versionKey(columnID)).Int64()
	if err != nil && err != redis.Nil {
		return
	}

	raw, err := json.Marshal(features)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.entryKey(columnID, version, bounds), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("viewport cache write failed", zap.Error(err))
	}
}

// InvalidateColumn drops all cached boxes for the column by bumping its
// version.
func (c *ViewportCache) InvalidateColumn(ctx context.Context, columnID uuid.UUID) {
	if !c.enabled() {
		return
	}
	if err := c.client.Incr(ctx, c.versionKey(columnID)).Err(); err != nil {
		c.logger.Warn("viewport cache invalidation failed",
			zap.String("column_id", columnID.String()), zap.Error(err))
	}
}
