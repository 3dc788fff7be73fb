package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/database"
	"github.com/mapform-hq/mapform-engine/pkg/models"
)

// PageRepository defines the interface for page data access. Page
// positions are dense and 1-based within a project and are maintained
// only through the position ledger; Create appends, Delete compacts,
// Reorder renumbers from a full snapshot.
type PageRepository interface {
	Create(ctx context.Context, page *models.Page) error
	Get(ctx context.Context, id uuid.UUID) (*models.Page, error)
	// ListByProject returns the project's pages in position order.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Page, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Reorder(ctx context.Context, projectID uuid.UUID, orderedPageIDs []uuid.UUID) error
}

type pageRepository struct{}

// NewPageRepository creates a new page repository.
func NewPageRepository() PageRepository {
	return &pageRepository{}
}

func (r *pageRepository) Create(ctx context.Context, page *models.Page) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}
	page.CreatedAt = time.Now()

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	position, err := pagesLedger.nextPosition(ctx, tx, page.ProjectID)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return fmt.Errorf("project %s: %w", page.ProjectID, apperrors.ErrNotFound)
		}
		return err
	}
	page.Position = position

	query := `
		INSERT INTO engine_pages
			(id, project_id, position, name, center, zoom, pitch, bearing, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.Exec(ctx, query,
		page.ID, page.ProjectID, page.Position, page.Name, pgPoint(page.View.Center),
		page.View.Zoom, page.View.Pitch, page.View.Bearing, page.Content, page.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	if err := flagDraftDirty(ctx, tx, page.ProjectID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *pageRepository) Get(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	query := `
		SELECT id, project_id, position, name, center, zoom, pitch, bearing, content, created_at
		FROM engine_pages
		WHERE id = $1`

	page, err := scanPage(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return page, nil
}

func (r *pageRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Page, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	query := `
		SELECT id, project_id, position, name, center, zoom, pitch, bearing, content, created_at
		FROM engine_pages
		WHERE project_id = $1
		ORDER BY position`

	rows, err := scope.Conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []*models.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pages: %w", err)
	}
	return pages, nil
}

func scanPage(row pgx.Row) (*models.Page, error) {
	var (
		page   models.Page
		center pgtype.Point
	)
	err := row.Scan(
		&page.ID, &page.ProjectID, &page.Position, &page.Name, &center,
		&page.View.Zoom, &page.View.Pitch, &page.View.Bearing, &page.Content, &page.CreatedAt)
	if err != nil {
		return nil, err
	}
	page.View.Center = models.LngLat{Lng: center.P.X, Lat: center.P.Y}
	return &page, nil
}

func (r *pageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var projectID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT project_id FROM engine_pages WHERE id = $1`, id).Scan(&projectID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to get page project: %w", err)
	}

	// remove deletes the page row and compacts sibling positions in the
	// same transaction; layer associations cascade with the row.
	if err := pagesLedger.remove(ctx, tx, projectID, id); err != nil {
		return err
	}

	if err := flagDraftDirty(ctx, tx, projectID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *pageRepository) Reorder(ctx context.Context, projectID uuid.UUID, orderedPageIDs []uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if err := pagesLedger.reorder(ctx, tx, projectID, orderedPageIDs); err != nil {
		return err
	}

	if err := flagDraftDirty(ctx, tx, projectID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ PageRepository = (*pageRepository)(nil)
