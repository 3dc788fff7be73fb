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

// LayerRepository defines the interface for layer data access. Page
// attachment lives in PageLayerRepository.
type LayerRepository interface {
	Create(ctx context.Context, layer *models.Layer) error
	Get(ctx context.Context, id uuid.UUID) (*models.Layer, error)
	ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Layer, error)
	Update(ctx context.Context, layer *models.Layer) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type layerRepository struct{}

// NewLayerRepository creates a new layer repository.
func NewLayerRepository() LayerRepository {
	return &layerRepository{}
}

func (r *layerRepository) Create(ctx context.Context, layer *models.Layer) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	if !layer.Type.Valid() {
		return fmt.Errorf("%w: unknown layer type %q", apperrors.ErrInvalidValue, layer.Type)
	}

	if layer.ID == uuid.Nil {
		layer.ID = uuid.New()
	}
	now := time.Now()
	layer.CreatedAt = now
	layer.UpdatedAt = now

	query := `
		INSERT INTO engine_layers
			(id, dataset_id, name, type, point_column_id, title_column_id,
			 description_column_id, color, icon, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := scope.Conn.Exec(ctx, query,
		layer.ID, layer.DatasetID, layer.Name, layer.Type,
		layer.PointColumnID, layer.TitleColumnID, layer.DescriptionColumnID,
		layer.Color, layer.Icon, layer.CreatedAt, layer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create layer: %w", err)
	}
	return nil
}

func (r *layerRepository) Get(ctx context.Context, id uuid.UUID) (*models.Layer, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	query := `
		SELECT id, dataset_id, name, type, point_column_id, title_column_id,
		       description_column_id, color, icon, created_at, updated_at
		FROM engine_layers
		WHERE id = $1`

	var layer models.Layer
	err := scope.Conn.QueryRow(ctx, query, id).Scan(
		&layer.ID, &layer.DatasetID, &layer.Name, &layer.Type,
		&layer.PointColumnID, &layer.TitleColumnID, &layer.DescriptionColumnID,
		&layer.Color, &layer.Icon, &layer.CreatedAt, &layer.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get layer: %w", err)
	}
	return &layer, nil
}

func (r *layerRepository) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Layer, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	query := `
		SELECT id, dataset_id, name, type, point_column_id, title_column_id,
		       description_column_id, color, icon, created_at, updated_at
		FROM engine_layers
		WHERE dataset_id = $1
		ORDER BY created_at, id`

	rows, err := scope.Conn.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list layers: %w", err)
	}
	defer rows.Close()

	var layers []*models.Layer
	for rows.Next() {
		var layer models.Layer
		err := rows.Scan(
			&layer.ID, &layer.DatasetID, &layer.Name, &layer.Type,
			&layer.PointColumnID, &layer.TitleColumnID, &layer.DescriptionColumnID,
			&layer.Color, &layer.Icon, &layer.CreatedAt, &layer.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, &layer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read layers: %w", err)
	}
	return layers, nil
}

// Update rewrites the layer's name, column references and styling. The
// type and dataset are fixed at creation.
func (r *layerRepository) Update(ctx context.Context, layer *models.Layer) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	layer.UpdatedAt = time.Now()

	query := `
		UPDATE engine_layers
		SET name = $2, point_column_id = $3, title_column_id = $4,
		    description_column_id = $5, color = $6, icon = $7, updated_at = $8
		WHERE id = $1`

	result, err := scope.Conn.Exec(ctx, query,
		layer.ID, layer.Name, layer.PointColumnID, layer.TitleColumnID,
		layer.DescriptionColumnID, layer.Color, layer.Icon, layer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update layer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes the layer. Its page associations do not simply cascade:
// each page the layer was attached to has its remaining layer positions
// compacted through the ledger, all in one transaction.
func (r *layerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	rows, err := tx.Query(ctx,
		`SELECT page_id FROM engine_layers_to_pages WHERE layer_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to list layer pages: %w", err)
	}
	var pageIDs []uuid.UUID
	for rows.Next() {
		var pageID uuid.UUID
		if err := rows.Scan(&pageID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan page id: %w", err)
		}
		pageIDs = append(pageIDs, pageID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read layer pages: %w", err)
	}

	for _, pageID := range pageIDs {
		if err := pageLayersLedger.remove(ctx, tx, pageID, id); err != nil {
			return err
		}
		if err := flagPageDraftDirty(ctx, tx, pageID); err != nil {
			return err
		}
	}

	result, err := tx.Exec(ctx, `DELETE FROM engine_layers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete layer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ LayerRepository = (*layerRepository)(nil)
