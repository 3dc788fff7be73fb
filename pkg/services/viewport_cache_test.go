package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapform-hq/mapform-engine/pkg/models"
)

// A nil client must turn the cache into a no-op, never a panic; the
// database path has to work without Redis.
func TestViewportCacheDisabled(t *testing.T) {
	cache := NewViewportCache(nil, 0, zap.NewNop())
	ctx := context.Background()
	columnID := uuid.New()
	bounds := models.Bounds{MinLng: 0, MinLat: 0, MaxLng: 1, MaxLat: 1}

	if _, ok := cache.Get(ctx, columnID, bounds); ok {
		t.Error("disabled cache must always miss")
	}
	cache.Put(ctx, columnID, bounds, []models.PointFeature{{CellID: uuid.New()}})
	cache.InvalidateColumn(ctx, columnID)

	var nilCache *ViewportCache
	if _, ok := nilCache.Get(ctx, columnID, bounds); ok {
		t.Error("nil cache must always miss")
	}
	nilCache.Put(ctx, columnID, bounds, nil)
	nilCache.InvalidateColumn(ctx, columnID)
}

func TestViewportCacheKeysVaryByBoundsAndVersion(t *testing.T) {
	cache := NewViewportCache(nil, 0, zap.NewNop())
	columnID := uuid.New()

	a := cache.entryKey(columnID, 1, models.Bounds{MinLng: 0, MinLat: 0, MaxLng: 1, MaxLat: 1})
	b := cache.entryKey(columnID, 1, models.Bounds{MinLng: 0, MinLat: 0, MaxLng: 2, MaxLat: 1})
	c := cache.entryKey(columnID, 2, models.Bounds{MinLng: 0, MinLat: 0, MaxLng: 1, MaxLat: 1})

	if a == b {
		t.Error("different bounds must key differently")
	}
	if a == c {
		t.Error("different versions must key differently")
	}
}
