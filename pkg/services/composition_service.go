package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/models"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
)

// CompositionService edits the structure of a draft project: its pages,
// its layers and which layers sit on which page in what order. Every
// structural mutation marks the owning draft dirty in the same
// transaction as the edit, so the publish engine knows the snapshot is
// stale; published snapshots never go dirty.
type CompositionService interface {
	CreatePage(ctx context.Context, projectID uuid.UUID, name string, view models.MapView) (*models.Page, error)
	GetPage(ctx context.Context, pageID uuid.UUID) (*models.Page, error)
	DeletePage(ctx context.Context, pageID uuid.UUID) error
	ReorderPages(ctx context.Context, projectID uuid.UUID, orderedPageIDs []uuid.UUID) error

	// CreatePointLayer makes a point layer over a dataset, checking that
	// the referenced columns belong to the dataset and carry the types the
	// layer reads (point / string / richtext).
	CreatePointLayer(ctx context.Context, datasetID uuid.UUID, name string, pointColumnID uuid.UUID, titleColumnID, descriptionColumnID *uuid.UUID, color, icon *string) (*models.Layer, error)
	DeleteLayer(ctx context.Context, layerID uuid.UUID) error

	// AddLayerToPage appends the layer to the page and returns its
	// position in the page's layer order.
	AddLayerToPage(ctx context.Context, layerID, pageID uuid.UUID) (int, error)
	RemoveLayerFromPage(ctx context.Context, layerID, pageID uuid.UUID) error
	ReorderLayers(ctx context.Context, pageID uuid.UUID, orderedLayerIDs []uuid.UUID) error
}

type compositionService struct {
	pageRepo      repositories.PageRepository
	pageLayerRepo repositories.PageLayerRepository
	layerRepo     repositories.LayerRepository
	columnRepo    repositories.ColumnRepository
	logger        *zap.Logger
}

// NewCompositionService creates a new composition service with
// dependencies.
func NewCompositionService(
	pageRepo repositories.PageRepository,
	pageLayerRepo repositories.PageLayerRepository,
	layerRepo repositories.LayerRepository,
	columnRepo repositories.ColumnRepository,
	logger *zap.Logger,
) CompositionService {
	return &compositionService{
		pageRepo:      pageRepo,
		pageLayerRepo: pageLayerRepo,
		layerRepo:     layerRepo,
		columnRepo:    columnRepo,
		logger:        logger,
	}
}

func (s *compositionService) CreatePage(ctx context.Context, projectID uuid.UUID, name string, view models.MapView) (*models.Page, error) {
	if err := view.Center.Validate(); err != nil {
		return nil, fmt.Errorf("%w: page center: %v", apperrors.ErrInvalidValue, err)
	}

	page := &models.Page{
		ProjectID: projectID,
		Name:      name,
		View:      view,
	}
	if err := s.pageRepo.Create(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *compositionService) GetPage(ctx context.Context, pageID uuid.UUID) (*models.Page, error) {
	page, err := s.pageRepo.Get(ctx, pageID)
	if err != nil {
		return nil, err
	}
	page.Layers, err = s.pageLayerRepo.ListByPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *compositionService) DeletePage(ctx context.Context, pageID uuid.UUID) error {
	return s.pageRepo.Delete(ctx, pageID)
}

func (s *compositionService) ReorderPages(ctx context.Context, projectID uuid.UUID, orderedPageIDs []uuid.UUID) error {
	return s.pageRepo.Reorder(ctx, projectID, orderedPageIDs)
}

func (s *compositionService) CreatePointLayer(ctx context.Context, datasetID uuid.UUID, name string, pointColumnID uuid.UUID, titleColumnID, descriptionColumnID *uuid.UUID, color, icon *string) (*models.Layer, error) {
	if err := s.checkLayerColumn(ctx, datasetID, pointColumnID, models.ColumnTypePoint); err != nil {
		return nil, err
	}
	if titleColumnID != nil {
		if err := s.checkLayerColumn(ctx, datasetID, *titleColumnID, models.ColumnTypeString); err != nil {
			return nil, err
		}
	}
	if descriptionColumnID != nil {
		if err := s.checkLayerColumn(ctx, datasetID, *descriptionColumnID, models.ColumnTypeRichtext); err != nil {
			return nil, err
		}
	}

	layer := &models.Layer{
		DatasetID:           datasetID,
		Name:                name,
		Type:                models.LayerTypePoint,
		PointColumnID:       &pointColumnID,
		TitleColumnID:       titleColumnID,
		DescriptionColumnID: descriptionColumnID,
		Color:               color,
		Icon:                icon,
	}
	if err := s.layerRepo.Create(ctx, layer); err != nil {
		return nil, err
	}
	return layer, nil
}

func (s *compositionService) checkLayerColumn(ctx context.Context, datasetID, columnID uuid.UUID, want models.ColumnType) error {
	column, err := s.columnRepo.Get(ctx, columnID)
	if err != nil {
		return err
	}
	if column.DatasetID != datasetID {
		return fmt.Errorf("column %s: %w", columnID, apperrors.ErrNotFound)
	}
	if column.Type != want {
		return fmt.Errorf("%w: column %s is %s, layer needs %s",
			apperrors.ErrTypeMismatch, columnID, column.Type, want)
	}
	return nil
}

func (s *compositionService) DeleteLayer(ctx context.Context, layerID uuid.UUID) error {
	return s.layerRepo.Delete(ctx, layerID)
}

func (s *compositionService) AddLayerToPage(ctx context.Context, layerID, pageID uuid.UUID) (int, error) {
	return s.pageLayerRepo.Attach(ctx, layerID, pageID)
}

func (s *compositionService) RemoveLayerFromPage(ctx context.Context, layerID, pageID uuid.UUID) error {
	return s.pageLayerRepo.Detach(ctx, layerID, pageID)
}

func (s *compositionService) ReorderLayers(ctx context.Context, pageID uuid.UUID, orderedLayerIDs []uuid.UUID) error {
	return s.pageLayerRepo.Reorder(ctx, pageID, orderedLayerIDs)
}

var _ CompositionService = (*compositionService)(nil)
