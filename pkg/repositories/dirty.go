package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// flagDraftDirty marks the owning draft dirty in the caller's
// transaction, so a structural edit and its dirty flag commit together.
// Published snapshots are left untouched.
func flagDraftDirty(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE engine_projects
		SET is_dirty = true, updated_at = $2
		WHERE id = $1 AND root_project_id IS NULL`,
		projectID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to flag project dirty: %w", err)
	}
	return nil
}

// flagPageDraftDirty resolves the page's project without leaving the
// transaction.
func flagPageDraftDirty(ctx context.Context, tx pgx.Tx, pageID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE engine_projects p
		SET is_dirty = true, updated_at = $2
		FROM engine_pages pg
		WHERE pg.id = $1 AND p.id = pg.project_id AND p.root_project_id IS NULL`,
		pageID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to flag page project dirty: %w", err)
	}
	return nil
}
