package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/database"
	"github.com/mapform-hq/mapform-engine/pkg/models"
)

// DatasetRepository defines the interface for dataset data access.
type DatasetRepository interface {
	Create(ctx context.Context, dataset *models.Dataset) error
	Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	// GetWithColumns returns the dataset with its columns populated.
	GetWithColumns(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type datasetRepository struct{}

// NewDatasetRepository creates a new dataset repository.
func NewDatasetRepository() DatasetRepository {
	return &datasetRepository{}
}

func (r *datasetRepository) Create(ctx context.Context, dataset *models.Dataset) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	if dataset.ID == uuid.Nil {
		dataset.ID = uuid.New()
	}
	now := time.Now()
	dataset.CreatedAt = now
	dataset.UpdatedAt = now

	query := `
		INSERT INTO engine_datasets (id, teamspace_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := scope.Conn.Exec(ctx, query,
		dataset.ID, dataset.TeamspaceID, dataset.Name, dataset.CreatedAt, dataset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	return nil
}

func (r *datasetRepository) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	query := `
		SELECT id, teamspace_id, name, created_at, updated_at
		FROM engine_datasets
		WHERE id = $1`

	var dataset models.Dataset
	err := scope.Conn.QueryRow(ctx, query, id).Scan(
		&dataset.ID, &dataset.TeamspaceID, &dataset.Name, &dataset.CreatedAt, &dataset.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return &dataset, nil
}

func (r *datasetRepository) GetWithColumns(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	dataset, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	scope, _ := database.GetTeamspaceScope(ctx)

	query := `
		SELECT id, dataset_id, name, type, created_at
		FROM engine_columns
		WHERE dataset_id = $1
		ORDER BY created_at, id`

	rows, err := scope.Conn.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var col models.Column
		if err := rows.Scan(&col.ID, &col.DatasetID, &col.Name, &col.Type, &col.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		dataset.Columns = append(dataset.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	return dataset, nil
}

func (r *datasetRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE engine_datasets SET name = $2, updated_at = $3 WHERE id = $1`,
		id, name, time.Now())
	if err != nil {
		return fmt.Errorf("failed to rename dataset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes a dataset. Columns, rows, cells and value rows cascade.
func (r *datasetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM engine_datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

var _ DatasetRepository = (*datasetRepository)(nil)
