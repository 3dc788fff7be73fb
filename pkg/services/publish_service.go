package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/database"
	"github.com/mapform-hq/mapform-engine/pkg/models"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
	"github.com/mapform-hq/mapform-engine/pkg/retry"
)

// PublishService snapshots a draft project into its published child.
// Publishing is all-or-nothing: the snapshot is rebuilt inside one
// transaction, and a reader either sees the previous snapshot or the new
// one, never a mix.
type PublishService interface {
	// Publish rebuilds the draft's published snapshot from the draft's
	// current pages and layer attachments, then clears the draft's dirty
	// flag. The first publish creates the snapshot project together with
	// its own empty submissions dataset.
	Publish(ctx context.Context, draftProjectID uuid.UUID) (*models.Project, error)
	// GetPublished returns the draft's published snapshot.
	GetPublished(ctx context.Context, draftProjectID uuid.UUID) (*models.Project, error)
}

type publishService struct {
	projectRepo repositories.ProjectRepository
	logger      *zap.Logger
}

// NewPublishService creates a new publish service with dependencies.
func NewPublishService(projectRepo repositories.ProjectRepository, logger *zap.Logger) PublishService {
	return &publishService{
		projectRepo: projectRepo,
		logger:      logger,
	}
}

// publishPage is the slice of a draft page the snapshot copies. Layer
// attachments keep their layer ids; only page ids are re-minted.
type publishPage struct {
	oldID    uuid.UUID
	name     string
	center   pgtype.Point
	zoom     float64
	pitch    float64
	bearing  float64
	content  []byte
	layerIDs []uuid.UUID
}

func (s *publishService) Publish(ctx context.Context, draftProjectID uuid.UUID) (*models.Project, error) {
	// Concurrent structural edits can deadlock against the publish
	// transaction's locks; those attempts are safe to repeat.
	var published *models.Project
	err := retry.Do(ctx, nil, func() error {
		var err error
		published, err = s.attempt(ctx, draftProjectID)
		return err
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("publish failed",
			zap.String("project_id", draftProjectID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPublishFailed, err)
	}

	s.logger.Info("published project",
		zap.String("project_id", draftProjectID.String()),
		zap.String("published_id", published.ID.String()))
	return published, nil
}

func (s *publishService) attempt(ctx context.Context, draftProjectID uuid.UUID) (*models.Project, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	published, err := s.publishInTx(ctx, tx, draftProjectID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return published, nil
}

func (s *publishService) publishInTx(ctx context.Context, tx pgx.Tx, draftProjectID uuid.UUID) (*models.Project, error) {
	// Lock the draft row for the duration so concurrent publishes and
	// structural edits serialize behind this transaction.
	var draft models.Project
	err := tx.QueryRow(ctx, `
		SELECT id, teamspace_id, name, root_project_id, is_dirty, submissions_dataset_id, created_at, updated_at
		FROM engine_projects
		WHERE id = $1
		FOR UPDATE`, draftProjectID).Scan(
		&draft.ID, &draft.TeamspaceID, &draft.Name, &draft.RootProjectID,
		&draft.IsDirty, &draft.SubmissionsDatasetID, &draft.CreatedAt, &draft.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if !draft.IsDraft() {
		// Only drafts publish; a snapshot has no snapshot of its own.
		return nil, fmt.Errorf("project %s is a published snapshot: %w", draftProjectID, apperrors.ErrNotFound)
	}

	pages, err := s.loadDraftPages(ctx, tx, draftProjectID)
	if err != nil {
		return nil, err
	}

	published, err := s.ensureSnapshotProject(ctx, tx, &draft)
	if err != nil {
		return nil, err
	}

	// Rebuild wholesale: drop the previous snapshot's pages (layer
	// attachments cascade), then write the draft's pages under fresh ids
	// with positions renumbered in draft order.
	if _, err := tx.Exec(ctx, `DELETE FROM engine_pages WHERE project_id = $1`, published.ID); err != nil {
		return nil, fmt.Errorf("failed to clear snapshot pages: %w", err)
	}

	now := time.Now()
	batch := &pgx.Batch{}
	queued := 0
	for i, page := range pages {
		newPageID := uuid.New()
		batch.Queue(`
			INSERT INTO engine_pages
				(id, project_id, position, name, center, zoom, pitch, bearing, content, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			newPageID, published.ID, i+1, page.name, page.center,
			page.zoom, page.pitch, page.bearing, page.content, now)
		queued++
		for j, layerID := range page.layerIDs {
			batch.Queue(`
				INSERT INTO engine_layers_to_pages (layer_id, page_id, position)
				VALUES ($1, $2, $3)`,
				layerID, newPageID, j+1)
			queued++
		}
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < queued; i++ {
		if _, err := results.Exec(); err != nil {
			results.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to write snapshot pages: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("failed to write snapshot pages: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE engine_projects SET is_dirty = false, updated_at = $2 WHERE id = $1`,
		draftProjectID, now); err != nil {
		return nil, fmt.Errorf("failed to clear dirty flag: %w", err)
	}

	return published, nil
}

func (s *publishService) loadDraftPages(ctx context.Context, tx pgx.Tx, draftProjectID uuid.UUID) ([]*publishPage, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, name, center, zoom, pitch, bearing, content
		FROM engine_pages
		WHERE project_id = $1
		ORDER BY position`, draftProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft pages: %w", err)
	}
	defer rows.Close()

	var (
		pages  []*publishPage
		byID   = make(map[uuid.UUID]*publishPage)
		pageID []uuid.UUID
	)
	for rows.Next() {
		var page publishPage
		if err := rows.Scan(&page.oldID, &page.name, &page.center,
			&page.zoom, &page.pitch, &page.bearing, &page.content); err != nil {
			return nil, fmt.Errorf("failed to scan draft page: %w", err)
		}
		pages = append(pages, &page)
		byID[page.oldID] = &page
		pageID = append(pageID, page.oldID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read draft pages: %w", err)
	}
	rows.Close()

	if len(pages) == 0 {
		return pages, nil
	}

	linkRows, err := tx.Query(ctx, `
		SELECT page_id, layer_id
		FROM engine_layers_to_pages
		WHERE page_id = ANY($1)
		ORDER BY page_id, position`, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load layer attachments: %w", err)
	}
	defer linkRows.Close()

	for linkRows.Next() {
		var pgID, layerID uuid.UUID
		if err := linkRows.Scan(&pgID, &layerID); err != nil {
			return nil, fmt.Errorf("failed to scan layer attachment: %w", err)
		}
		byID[pgID].layerIDs = append(byID[pgID].layerIDs, layerID)
	}
	if err := linkRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read layer attachments: %w", err)
	}
	return pages, nil
}

// ensureSnapshotProject locks and returns the draft's published child,
// creating it (with its own empty submissions dataset) on first publish.
// The snapshot's name tracks the draft's.
func (s *publishService) ensureSnapshotProject(ctx context.Context, tx pgx.Tx, draft *models.Project) (*models.Project, error) {
	var published models.Project
	err := tx.QueryRow(ctx, `
		SELECT id, teamspace_id, name, root_project_id, is_dirty, submissions_dataset_id, created_at, updated_at
		FROM engine_projects
		WHERE root_project_id = $1
		FOR UPDATE`, draft.ID).Scan(
		&published.ID, &published.TeamspaceID, &published.Name, &published.RootProjectID,
		&published.IsDirty, &published.SubmissionsDatasetID, &published.CreatedAt, &published.UpdatedAt)
	if err == nil {
		if published.Name != draft.Name {
			published.Name = draft.Name
			if _, err := tx.Exec(ctx,
				`UPDATE engine_projects SET name = $2, updated_at = $3 WHERE id = $1`,
				published.ID, draft.Name, time.Now()); err != nil {
				return nil, fmt.Errorf("failed to rename snapshot: %w", err)
			}
		}
		return &published, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	now := time.Now()
	published = models.Project{
		ID:                   uuid.New(),
		TeamspaceID:          draft.TeamspaceID,
		Name:                 draft.Name,
		RootProjectID:        &draft.ID,
		SubmissionsDatasetID: uuid.New(),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO engine_datasets (id, teamspace_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		published.SubmissionsDatasetID, draft.TeamspaceID, draft.Name+" Submissions", now, now); err != nil {
		return nil, fmt.Errorf("failed to create snapshot submissions dataset: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO engine_projects
			(id, teamspace_id, name, root_project_id, is_dirty, submissions_dataset_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, false, $5, $6, $7)`,
		published.ID, published.TeamspaceID, published.Name, draft.ID,
		published.SubmissionsDatasetID, now, now); err != nil {
		return nil, fmt.Errorf("failed to create snapshot project: %w", err)
	}

	return &published, nil
}

func (s *publishService) GetPublished(ctx context.Context, draftProjectID uuid.UUID) (*models.Project, error) {
	return s.projectRepo.GetPublished(ctx, draftProjectID)
}

var _ PublishService = (*publishService)(nil)
