package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/models"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
	"github.com/mapform-hq/mapform-engine/pkg/schema"
)

// CellService is the entry point for dataset schema and cell edits. It
// validates values through the schema registry before anything touches
// storage; the repositories enforce the storage-side invariants.
//
// The cell store knows nothing about projects. Callers that edit cells on
// behalf of a draft project are responsible for marking it dirty.
type CellService interface {
	CreateColumn(ctx context.Context, datasetID uuid.UUID, name string, columnType models.ColumnType) (*models.Column, error)
	RenameColumn(ctx context.Context, columnID uuid.UUID, name string) error
	DeleteColumn(ctx context.Context, columnID uuid.UUID) error

	CreateRow(ctx context.Context, datasetID uuid.UUID) (*models.Row, error)
	GetRow(ctx context.Context, rowID uuid.UUID) (*models.Row, error)
	ListRows(ctx context.Context, datasetID uuid.UUID) ([]*models.Row, error)
	DeleteRow(ctx context.Context, rowID uuid.UUID) error

	// UpsertCell validates that declaredType matches the column's type and
	// that raw is a valid value of that type, then writes the cell and its
	// value row atomically.
	UpsertCell(ctx context.Context, rowID, columnID uuid.UUID, declaredType models.ColumnType, raw json.RawMessage) (*models.Cell, error)
	ClearCell(ctx context.Context, rowID, columnID uuid.UUID) error

	// CreateRowWithCells validates every supplied value against its
	// column's type, then writes the row and all cells in one transaction.
	// One invalid value rejects the whole write; no row is created.
	CreateRowWithCells(ctx context.Context, datasetID uuid.UUID, values map[uuid.UUID]json.RawMessage) (*models.Row, error)
}

type cellService struct {
	registry   *schema.Registry
	columnRepo repositories.ColumnRepository
	cellRepo   repositories.CellRepository
	cache      *ViewportCache
	logger     *zap.Logger
}

// NewCellService creates a new cell service with dependencies.
func NewCellService(
	registry *schema.Registry,
	columnRepo repositories.ColumnRepository,
	cellRepo repositories.CellRepository,
	cache *ViewportCache,
	logger *zap.Logger,
) CellService {
	return &cellService{
		registry:   registry,
		columnRepo: columnRepo,
		cellRepo:   cellRepo,
		cache:      cache,
		logger:     logger,
	}
}

func (s *cellService) CreateColumn(ctx context.Context, datasetID uuid.UUID, name string, columnType models.ColumnType) (*models.Column, error) {
	if !columnType.Valid() {
		return nil, fmt.Errorf("%w: unknown column type %q", apperrors.ErrInvalidValue, columnType)
	}

	column := &models.Column{
		DatasetID: datasetID,
		Name:      name,
		Type:      columnType,
	}
	if err := s.columnRepo.Create(ctx, column); err != nil {
		return nil, err
	}
	return column, nil
}

func (s *cellService) RenameColumn(ctx context.Context, columnID uuid.UUID, name string) error {
	return s.columnRepo.Rename(ctx, columnID, name)
}

// DeleteColumn removes the column and, through the cascade, every cell
// and value row referencing it. Point columns also drop out of the
// viewport cache.
func (s *cellService) DeleteColumn(ctx context.Context, columnID uuid.UUID) error {
	column, err := s.columnRepo.Get(ctx, columnID)
	if err != nil {
		return err
	}
	if err := s.columnRepo.Delete(ctx, columnID); err != nil {
		return err
	}
	if column.Type == models.ColumnTypePoint {
		s.cache.InvalidateColumn(ctx, columnID)
	}
	return nil
}

func (s *cellService) CreateRow(ctx context.Context, datasetID uuid.UUID) (*models.Row, error) {
	row := &models.Row{DatasetID: datasetID}
	if err := s.cellRepo.CreateRow(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *cellService) GetRow(ctx context.Context, rowID uuid.UUID) (*models.Row, error) {
	return s.cellRepo.GetRow(ctx, rowID)
}

func (s *cellService) ListRows(ctx context.Context, datasetID uuid.UUID) ([]*models.Row, error) {
	return s.cellRepo.ListRows(ctx, datasetID)
}

func (s *cellService) DeleteRow(ctx context.Context, rowID uuid.UUID) error {
	return s.cellRepo.DeleteRow(ctx, rowID)
}

func (s *cellService) UpsertCell(ctx context.Context, rowID, columnID uuid.UUID, declaredType models.ColumnType, raw json.RawMessage) (*models.Cell, error) {
	value, err := s.registry.Validate(declaredType, raw)
	if err != nil {
		return nil, err
	}

	cell, err := s.cellRepo.UpsertCell(ctx, rowID, columnID, value)
	if err != nil {
		return nil, err
	}

	if declaredType == models.ColumnTypePoint {
		s.cache.InvalidateColumn(ctx, columnID)
	}
	return cell, nil
}

func (s *cellService) CreateRowWithCells(ctx context.Context, datasetID uuid.UUID, values map[uuid.UUID]json.RawMessage) (*models.Row, error) {
	// Validate everything up front; nothing is written until the whole
	// batch has passed.
	validated := make(map[uuid.UUID]models.CellValue, len(values))
	for columnID, raw := range values {
		column, err := s.columnRepo.Get(ctx, columnID)
		if err != nil {
			return nil, err
		}
		if column.DatasetID != datasetID {
			return nil, fmt.Errorf("column %s: %w", columnID, apperrors.ErrNotFound)
		}
		value, err := s.registry.Validate(column.Type, raw)
		if err != nil {
			return nil, err
		}
		validated[columnID] = value
	}

	row := &models.Row{DatasetID: datasetID}
	if err := s.cellRepo.CreateRowWithCells(ctx, row, validated); err != nil {
		return nil, err
	}

	for columnID, value := range validated {
		if value.ColumnType() == models.ColumnTypePoint {
			s.cache.InvalidateColumn(ctx, columnID)
		}
	}
	return s.cellRepo.GetRow(ctx, row.ID)
}

func (s *cellService) ClearCell(ctx context.Context, rowID, columnID uuid.UUID) error {
	if err := s.cellRepo.DeleteCell(ctx, rowID, columnID); err != nil {
		return err
	}

	column, err := s.columnRepo.Get(ctx, columnID)
	if err == nil && column.Type == models.ColumnTypePoint {
		s.cache.InvalidateColumn(ctx, columnID)
	}
	return nil
}

var _ CellService = (*cellService)(nil)
