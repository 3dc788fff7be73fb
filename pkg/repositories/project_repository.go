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

// ProjectRepository defines the interface for project data access. A
// draft's published snapshot is the child row whose root_project_id
// points at the draft; at most one exists per draft.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// GetPublished returns the draft's published snapshot, or ErrNotFound
	// if the draft has never been published.
	GetPublished(ctx context.Context, rootProjectID uuid.UUID) (*models.Project, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	// SetDirty flips the draft's unpublished-changes flag.
	SetDirty(ctx context.Context, id uuid.UUID, dirty bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type projectRepository struct{}

// NewProjectRepository creates a new project repository.
func NewProjectRepository() ProjectRepository {
	return &projectRepository{}
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	query := `
		INSERT INTO engine_projects
			(id, teamspace_id, name, root_project_id, is_dirty, submissions_dataset_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := scope.Conn.Exec(ctx, query,
		project.ID, project.TeamspaceID, project.Name, project.RootProjectID,
		project.IsDirty, project.SubmissionsDatasetID, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *projectRepository) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	query := `
		SELECT id, teamspace_id, name, root_project_id, is_dirty, submissions_dataset_id, created_at, updated_at
		FROM engine_projects
		WHERE id = $1`

	return scanProject(scope.Conn.QueryRow(ctx, query, id))
}

func (r *projectRepository) GetPublished(ctx context.Context, rootProjectID uuid.UUID) (*models.Project, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	query := `
		SELECT id, teamspace_id, name, root_project_id, is_dirty, submissions_dataset_id, created_at, updated_at
		FROM engine_projects
		WHERE root_project_id = $1`

	return scanProject(scope.Conn.QueryRow(ctx, query, rootProjectID))
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var project models.Project
	err := row.Scan(
		&project.ID, &project.TeamspaceID, &project.Name, &project.RootProjectID,
		&project.IsDirty, &project.SubmissionsDatasetID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

func (r *projectRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	// Renaming a draft outdates the name the snapshot copied at publish
	// time, so the dirty flag rides the same statement. Snapshots keep
	// their flag as is.
	result, err := scope.Conn.Exec(ctx,
		`UPDATE engine_projects
		SET name = $2, updated_at = $3,
			is_dirty = is_dirty OR root_project_id IS NULL
		WHERE id = $1`,
		id, name, time.Now())
	if err != nil {
		return fmt.Errorf("failed to rename project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *projectRepository) SetDirty(ctx context.Context, id uuid.UUID, dirty bool) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE engine_projects SET is_dirty = $2, updated_at = $3 WHERE id = $1`,
		id, dirty, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set project dirty flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes a project. Pages, layer associations, blobs and a
// published snapshot (via root_project_id) cascade. The submissions
// dataset does not; the service deletes it alongside.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM engine_projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

var _ ProjectRepository = (*projectRepository)(nil)
