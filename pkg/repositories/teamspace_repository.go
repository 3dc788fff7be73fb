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

// TeamspaceRepository defines the interface for teamspace data access.
// Teamspace management lives outside the engine; only the rows needed for
// ownership and scoping are maintained here.
type TeamspaceRepository interface {
	Create(ctx context.Context, teamspace *models.Teamspace) error
	Get(ctx context.Context, id uuid.UUID) (*models.Teamspace, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type teamspaceRepository struct{}

// NewTeamspaceRepository creates a new teamspace repository.
func NewTeamspaceRepository() TeamspaceRepository {
	return &teamspaceRepository{}
}

// Create inserts a teamspace row, idempotently.
func (r *teamspaceRepository) Create(ctx context.Context, teamspace *models.Teamspace) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	if teamspace.ID == uuid.Nil {
		teamspace.ID = uuid.New()
	}
	teamspace.CreatedAt = time.Now()

	query := `
		INSERT INTO engine_teamspaces (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	_, err := scope.Conn.Exec(ctx, query, teamspace.ID, teamspace.Name, teamspace.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create teamspace: %w", err)
	}
	return nil
}

// Get retrieves a teamspace by ID.
func (r *teamspaceRepository) Get(ctx context.Context, id uuid.UUID) (*models.Teamspace, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	query := `SELECT id, name, created_at FROM engine_teamspaces WHERE id = $1`

	var teamspace models.Teamspace
	err := scope.Conn.QueryRow(ctx, query, id).Scan(&teamspace.ID, &teamspace.Name, &teamspace.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get teamspace: %w", err)
	}
	return &teamspace, nil
}

// Delete removes a teamspace. Datasets and projects cascade.
func (r *teamspaceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM engine_teamspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete teamspace: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

var _ TeamspaceRepository = (*teamspaceRepository)(nil)
