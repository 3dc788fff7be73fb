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

// ColumnRepository defines the interface for column data access. Column
// types are immutable after creation; there is deliberately no operation
// that changes one.
type ColumnRepository interface {
	Create(ctx context.Context, column *models.Column) error
	Get(ctx context.Context, id uuid.UUID) (*models.Column, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	// Delete removes the column; every cell referencing it and their value
	// rows cascade away with it.
	Delete(ctx context.Context, id uuid.UUID) error
}

type columnRepository struct{}

// NewColumnRepository creates a new column repository.
func NewColumnRepository() ColumnRepository {
	return &columnRepository{}
}

func (r *columnRepository) Create(ctx context.Context, column *models.Column) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	if !column.Type.Valid() {
		return fmt.Errorf("%w: unknown column type %q", apperrors.ErrInvalidValue, column.Type)
	}

	if column.ID == uuid.Nil {
		column.ID = uuid.New()
	}
	column.CreatedAt = time.Now()

	// Verify the dataset exists first so a missing dataset surfaces as
	// NotFound rather than an FK violation.
	var datasetID uuid.UUID
	err := scope.Conn.QueryRow(ctx,
		`SELECT id FROM engine_datasets WHERE id = $1`, column.DatasetID).Scan(&datasetID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("dataset %s: %w", column.DatasetID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to check dataset: %w", err)
	}

	query := `
		INSERT INTO engine_columns (id, dataset_id, name, type, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = scope.Conn.Exec(ctx, query,
		column.ID, column.DatasetID, column.Name, column.Type, column.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create column: %w", err)
	}
	return nil
}

func (r *columnRepository) Get(ctx context.Context, id uuid.UUID) (*models.Column, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	query := `
		SELECT id, dataset_id, name, type, created_at
		FROM engine_columns
		WHERE id = $1`

	var column models.Column
	err := scope.Conn.QueryRow(ctx, query, id).Scan(
		&column.ID, &column.DatasetID, &column.Name, &column.Type, &column.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get column: %w", err)
	}
	return &column, nil
}

func (r *columnRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE engine_columns SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("failed to rename column: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *columnRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM engine_columns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete column: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

var _ ColumnRepository = (*columnRepository)(nil)
