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

// BlobRepository tracks attached files. A blob belongs to exactly one
// owner (project or row) and keeps a dense position among that owner's
// blobs; the owner kind selects which ledger instance runs.
type BlobRepository interface {
	// Create appends the blob to its owner's list and sets its position.
	Create(ctx context.Context, blob *models.Blob) error
	Get(ctx context.Context, id uuid.UUID) (*models.Blob, error)
	// ListByOwner returns the owner's blobs in position order.
	ListByOwner(ctx context.Context, owner models.BlobOwner, ownerID uuid.UUID) ([]*models.Blob, error)
	// Delete removes the blob and compacts the owner's positions.
	Delete(ctx context.Context, id uuid.UUID) error
	// Reorder renumbers the owner's blobs from a full ordered snapshot.
	Reorder(ctx context.Context, owner models.BlobOwner, ownerID uuid.UUID, orderedBlobIDs []uuid.UUID) error
}

type blobRepository struct{}

// NewBlobRepository creates a new blob repository.
func NewBlobRepository() BlobRepository {
	return &blobRepository{}
}

// ledgerFor selects the ledger instance for an owner kind.
func ledgerFor(owner models.BlobOwner) (positionLedger, error) {
	switch owner {
	case models.BlobOwnerProject:
		return projectBlobsLedger, nil
	case models.BlobOwnerRow:
		return rowBlobsLedger, nil
	}
	return positionLedger{}, fmt.Errorf("%w: unknown blob owner %q", apperrors.ErrInvalidValue, owner)
}

func (r *blobRepository) Create(ctx context.Context, blob *models.Blob) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	owner, ownerID, err := blob.Owner()
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidValue, err)
	}
	ledger, err := ledgerFor(owner)
	if err != nil {
		return err
	}

	if blob.ID == uuid.Nil {
		blob.ID = uuid.New()
	}
	blob.CreatedAt = time.Now()

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	position, err := ledger.nextPosition(ctx, tx, ownerID)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return fmt.Errorf("%s %s: %w", owner, ownerID, apperrors.ErrNotFound)
		}
		return err
	}
	blob.Position = position

	query := `
		INSERT INTO engine_blobs (id, url, mime_type, size_bytes, project_id, row_id, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.Exec(ctx, query,
		blob.ID, blob.URL, blob.MimeType, blob.SizeBytes,
		blob.ProjectID, blob.RowID, blob.Position, blob.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create blob: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *blobRepository) Get(ctx context.Context, id uuid.UUID) (*models.Blob, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	query := `
		SELECT id, url, mime_type, size_bytes, project_id, row_id, position, created_at
		FROM engine_blobs
		WHERE id = $1`

	var blob models.Blob
	err := scope.Conn.QueryRow(ctx, query, id).Scan(
		&blob.ID, &blob.URL, &blob.MimeType, &blob.SizeBytes,
		&blob.ProjectID, &blob.RowID, &blob.Position, &blob.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return &blob, nil
}

func (r *blobRepository) ListByOwner(ctx context.Context, owner models.BlobOwner, ownerID uuid.UUID) ([]*models.Blob, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	ledger, err := ledgerFor(owner)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, url, mime_type, size_bytes, project_id, row_id, position, created_at
		FROM engine_blobs
		WHERE %s = $1
		ORDER BY position`, ledger.groupCol)

	rows, err := scope.Conn.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	var blobs []*models.Blob
	for rows.Next() {
		var blob models.Blob
		err := rows.Scan(
			&blob.ID, &blob.URL, &blob.MimeType, &blob.SizeBytes,
			&blob.ProjectID, &blob.RowID, &blob.Position, &blob.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blob: %w", err)
		}
		blobs = append(blobs, &blob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read blobs: %w", err)
	}
	return blobs, nil
}

func (r *blobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	blob, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	owner, ownerID, err := blob.Owner()
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidValue, err)
	}
	ledger, err := ledgerFor(owner)
	if err != nil {
		return err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if err := ledger.remove(ctx, tx, ownerID, id); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *blobRepository) Reorder(ctx context.Context, owner models.BlobOwner, ownerID uuid.UUID, orderedBlobIDs []uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	ledger, err := ledgerFor(owner)
	if err != nil {
		return err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if err := ledger.reorder(ctx, tx, ownerID, orderedBlobIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ BlobRepository = (*blobRepository)(nil)
