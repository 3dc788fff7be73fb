package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/database"
	"github.com/mapform-hq/mapform-engine/pkg/models"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
)

// ProjectService manages draft project lifecycle. Published snapshots are
// created only by the publish service.
type ProjectService interface {
	// Create makes a draft project together with its empty submissions
	// dataset, atomically.
	Create(ctx context.Context, teamspaceID uuid.UUID, name string) (*models.Project, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	// Delete removes the draft, its published snapshot and both
	// submissions datasets.
	Delete(ctx context.Context, id uuid.UUID) error
	// MarkDirty records that the draft has unpublished changes. Called by
	// every structural mutation path; publishing clears it.
	MarkDirty(ctx context.Context, id uuid.UUID) error
}

type projectService struct {
	projectRepo repositories.ProjectRepository
	datasetRepo repositories.DatasetRepository
	logger      *zap.Logger
}

// NewProjectService creates a new project service with dependencies.
func NewProjectService(
	projectRepo repositories.ProjectRepository,
	datasetRepo repositories.DatasetRepository,
	logger *zap.Logger,
) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		datasetRepo: datasetRepo,
		logger:      logger,
	}
}

func (s *projectService) Create(ctx context.Context, teamspaceID uuid.UUID, name string) (*models.Project, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	now := time.Now()
	project := &models.Project{
		ID:                   uuid.New(),
		TeamspaceID:          teamspaceID,
		Name:                 name,
		SubmissionsDatasetID: uuid.New(),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	// The project and its submissions dataset exist together or not at
	// all, so both inserts share one transaction.
	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	_, err = tx.Exec(ctx, `
		INSERT INTO engine_datasets (id, teamspace_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		project.SubmissionsDatasetID, teamspaceID, name+" Submissions", now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create submissions dataset: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO engine_projects
			(id, teamspace_id, name, root_project_id, is_dirty, submissions_dataset_id, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, false, $4, $5, $6)`,
		project.ID, teamspaceID, name, project.SubmissionsDatasetID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("created project",
		zap.String("project_id", project.ID.String()),
		zap.String("teamspace_id", teamspaceID.String()))
	return project, nil
}

func (s *projectService) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return s.projectRepo.Get(ctx, id)
}

func (s *projectService) Rename(ctx context.Context, id uuid.UUID, name string) error {
	return s.projectRepo.Rename(ctx, id, name)
}

func (s *projectService) Delete(ctx context.Context, id uuid.UUID) error {
	project, err := s.projectRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	// The published snapshot cascades with the draft, but submissions
	// datasets are referenced the other way around and must go explicitly.
	var datasetIDs []uuid.UUID
	datasetIDs = append(datasetIDs, project.SubmissionsDatasetID)
	if published, err := s.projectRepo.GetPublished(ctx, id); err == nil {
		datasetIDs = append(datasetIDs, published.SubmissionsDatasetID)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	if err := s.projectRepo.Delete(ctx, id); err != nil {
		return err
	}
	for _, datasetID := range datasetIDs {
		if err := s.datasetRepo.Delete(ctx, datasetID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *projectService) MarkDirty(ctx context.Context, id uuid.UUID) error {
	return s.projectRepo.SetDirty(ctx, id, true)
}

var _ ProjectService = (*projectService)(nil)
