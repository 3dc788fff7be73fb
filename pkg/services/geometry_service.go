package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapform-hq/mapform-engine/pkg/models"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
)

// GeometryService serves spatial reads for map viewports.
type GeometryService interface {
	// QueryPointsInBounds returns the stored points of a column inside the
	// box, boundary inclusive. Results may be served from the viewport
	// cache.
	QueryPointsInBounds(ctx context.Context, columnID uuid.UUID, bounds models.Bounds) ([]models.PointFeature, error)
	// ReadPointsForCells batch-hydrates coordinates for known cell ids.
	ReadPointsForCells(ctx context.Context, cellIDs []uuid.UUID) (map[uuid.UUID]models.LngLat, error)
}

type geometryService struct {
	geometryRepo repositories.GeometryRepository
	cache        *ViewportCache
	logger       *zap.Logger
}

// NewGeometryService creates a new geometry service with dependencies.
func NewGeometryService(geometryRepo repositories.GeometryRepository, cache *ViewportCache, logger *zap.Logger) GeometryService {
	return &geometryService{
		geometryRepo: geometryRepo,
		cache:        cache,
		logger:       logger,
	}
}

func (s *geometryService) QueryPointsInBounds(ctx context.Context, columnID uuid.UUID, bounds models.Bounds) ([]models.PointFeature, error) {
	if features, ok := s.cache.Get(ctx, columnID, bounds); ok {
		return features, nil
	}

	features, err := s.geometryRepo.QueryWithinBounds(ctx, columnID, bounds)
	if err != nil {
		return nil, err
	}

	s.cache.Put(ctx, columnID, bounds, features)
	return features, nil
}

func (s *geometryService) ReadPointsForCells(ctx context.Context, cellIDs []uuid.UUID) (map[uuid.UUID]models.LngLat, error) {
	return s.geometryRepo.ReadPointsForCells(ctx, cellIDs)
}

var _ GeometryService = (*geometryService)(nil)
