package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/database"
	"github.com/mapform-hq/mapform-engine/pkg/models"
)

// PageLayerRepository manages which layers appear on which pages and in
// what order. Positions are dense and 1-based per page, maintained only
// through the position ledger.
type PageLayerRepository interface {
	// Attach appends the layer to the page's layer list and returns its
	// position. Attaching the same layer twice is ErrConflict.
	Attach(ctx context.Context, layerID, pageID uuid.UUID) (int, error)
	// Detach removes the association and compacts sibling positions.
	Detach(ctx context.Context, layerID, pageID uuid.UUID) error
	// Reorder renumbers the page's layers from a full ordered snapshot.
	Reorder(ctx context.Context, pageID uuid.UUID, orderedLayerIDs []uuid.UUID) error
	// ListByPage returns the page's layer associations in position order,
	// with the layer populated.
	ListByPage(ctx context.Context, pageID uuid.UUID) ([]models.LayerToPage, error)
}

type pageLayerRepository struct{}

// NewPageLayerRepository creates a new page-layer repository.
func NewPageLayerRepository() PageLayerRepository {
	return &pageLayerRepository{}
}

func (r *pageLayerRepository) Attach(ctx context.Context, layerID, pageID uuid.UUID) (int, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no teamspace scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var exists uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM engine_layers WHERE id = $1`, layerID).Scan(&exists)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("layer %s: %w", layerID, apperrors.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to check layer: %w", err)
	}

	position, err := pageLayersLedger.nextPosition(ctx, tx, pageID)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return 0, fmt.Errorf("page %s: %w", pageID, apperrors.ErrNotFound)
		}
		return 0, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO engine_layers_to_pages (layer_id, page_id, position) VALUES ($1, $2, $3)`,
		layerID, pageID, position)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("layer %s already on page %s: %w", layerID, pageID, apperrors.ErrConflict)
		}
		return 0, fmt.Errorf("failed to attach layer to page: %w", err)
	}

	if err := flagPageDraftDirty(ctx, tx, pageID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return position, nil
}

func (r *pageLayerRepository) Detach(ctx context.Context, layerID, pageID uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if err := pageLayersLedger.remove(ctx, tx, pageID, layerID); err != nil {
		return err
	}

	if err := flagPageDraftDirty(ctx, tx, pageID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *pageLayerRepository) Reorder(ctx context.Context, pageID uuid.UUID, orderedLayerIDs []uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if err := pageLayersLedger.reorder(ctx, tx, pageID, orderedLayerIDs); err != nil {
		return err
	}

	if err := flagPageDraftDirty(ctx, tx, pageID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *pageLayerRepository) ListByPage(ctx context.Context, pageID uuid.UUID) ([]models.LayerToPage, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	query := `
		SELECT lp.layer_id, lp.page_id, lp.position,
		       l.id, l.dataset_id, l.name, l.type, l.point_column_id,
		       l.title_column_id, l.description_column_id, l.color, l.icon,
		       l.created_at, l.updated_at
		FROM engine_layers_to_pages lp
		JOIN engine_layers l ON l.id = lp.layer_id
		WHERE lp.page_id = $1
		ORDER BY lp.position`

	rows, err := scope.Conn.Query(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list page layers: %w", err)
	}
	defer rows.Close()

	var links []models.LayerToPage
	for rows.Next() {
		var (
			link  models.LayerToPage
			layer models.Layer
		)
		err := rows.Scan(
			&link.LayerID, &link.PageID, &link.Position,
			&layer.ID, &layer.DatasetID, &layer.Name, &layer.Type, &layer.PointColumnID,
			&layer.TitleColumnID, &layer.DescriptionColumnID, &layer.Color, &layer.Icon,
			&layer.CreatedAt, &layer.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page layer: %w", err)
		}
		link.Layer = &layer
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read page layers: %w", err)
	}
	return links, nil
}

var _ PageLayerRepository = (*pageLayerRepository)(nil)
