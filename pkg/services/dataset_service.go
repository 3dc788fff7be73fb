package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapform-hq/mapform-engine/pkg/models"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
)

// DatasetService manages dataset lifecycle and the form submission path.
type DatasetService interface {
	Create(ctx context.Context, teamspaceID uuid.UUID, name string) (*models.Dataset, error)
	// CreateEmptyPointDataset makes a dataset pre-seeded with the three
	// columns a point layer needs: Location (point), Title (string) and
	// Description (richtext).
	CreateEmptyPointDataset(ctx context.Context, teamspaceID uuid.UUID, name string) (*models.Dataset, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	GetWithColumns(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	// Delete removes the dataset. Layers over it are deleted first so the
	// pages they sat on keep dense positions.
	Delete(ctx context.Context, id uuid.UUID) error

	// SubmitResponse stores one form response: a new row in the project's
	// submissions dataset with a cell per supplied column value.
	SubmitResponse(ctx context.Context, projectID uuid.UUID, values map[uuid.UUID]json.RawMessage) (*models.Row, error)
}

type datasetService struct {
	datasetRepo repositories.DatasetRepository
	projectRepo repositories.ProjectRepository
	layerRepo   repositories.LayerRepository
	cellService CellService
	logger      *zap.Logger
}

// NewDatasetService creates a new dataset service with dependencies.
func NewDatasetService(
	datasetRepo repositories.DatasetRepository,
	projectRepo repositories.ProjectRepository,
	layerRepo repositories.LayerRepository,
	cellService CellService,
	logger *zap.Logger,
) DatasetService {
	return &datasetService{
		datasetRepo: datasetRepo,
		projectRepo: projectRepo,
		layerRepo:   layerRepo,
		cellService: cellService,
		logger:      logger,
	}
}

func (s *datasetService) Create(ctx context.Context, teamspaceID uuid.UUID, name string) (*models.Dataset, error) {
	dataset := &models.Dataset{TeamspaceID: teamspaceID, Name: name}
	if err := s.datasetRepo.Create(ctx, dataset); err != nil {
		return nil, err
	}
	return dataset, nil
}

func (s *datasetService) CreateEmptyPointDataset(ctx context.Context, teamspaceID uuid.UUID, name string) (*models.Dataset, error) {
	dataset, err := s.Create(ctx, teamspaceID, name)
	if err != nil {
		return nil, err
	}

	seed := []struct {
		name string
		typ  models.ColumnType
	}{
		{"Location", models.ColumnTypePoint},
		{"Title", models.ColumnTypeString},
		{"Description", models.ColumnTypeRichtext},
	}
	for _, col := range seed {
		column, err := s.cellService.CreateColumn(ctx, dataset.ID, col.name, col.typ)
		if err != nil {
			return nil, fmt.Errorf("failed to seed column %s: %w", col.name, err)
		}
		dataset.Columns = append(dataset.Columns, *column)
	}
	return dataset, nil
}

func (s *datasetService) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return s.datasetRepo.Get(ctx, id)
}

func (s *datasetService) GetWithColumns(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return s.datasetRepo.GetWithColumns(ctx, id)
}

func (s *datasetService) Delete(ctx context.Context, id uuid.UUID) error {
	// A bare cascade would drop layer-page associations without compacting
	// page positions, so delete the dataset's layers through the
	// repository first.
	layerIDs, err := s.listLayerIDs(ctx, id)
	if err != nil {
		return err
	}
	for _, layerID := range layerIDs {
		if err := s.layerRepo.Delete(ctx, layerID); err != nil {
			return err
		}
	}
	return s.datasetRepo.Delete(ctx, id)
}

func (s *datasetService) listLayerIDs(ctx context.Context, datasetID uuid.UUID) ([]uuid.UUID, error) {
	layers, err := s.layerRepo.ListByDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(layers))
	for _, layer := range layers {
		ids = append(ids, layer.ID)
	}
	return ids, nil
}

func (s *datasetService) SubmitResponse(ctx context.Context, projectID uuid.UUID, values map[uuid.UUID]json.RawMessage) (*models.Row, error) {
	project, err := s.projectRepo.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	dataset, err := s.datasetRepo.GetWithColumns(ctx, project.SubmissionsDatasetID)
	if err != nil {
		return nil, err
	}
	known := make(map[uuid.UUID]bool, len(dataset.Columns))
	for _, col := range dataset.Columns {
		known[col.ID] = true
	}

	accepted := make(map[uuid.UUID]json.RawMessage, len(values))
	for columnID, raw := range values {
		if !known[columnID] {
			// A stale form can reference a deleted column; skip it rather
			// than lose the whole submission.
			s.logger.Warn("submission references unknown column",
				zap.String("project_id", projectID.String()),
				zap.String("column_id", columnID.String()))
			continue
		}
		accepted[columnID] = raw
	}

	// The row and every accepted value commit together; one bad value
	// rejects the response wholesale and leaves nothing behind.
	row, err := s.cellService.CreateRowWithCells(ctx, dataset.ID, accepted)
	if err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}
	return row, nil
}

var _ DatasetService = (*datasetService)(nil)
