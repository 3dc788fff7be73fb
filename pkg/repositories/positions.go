package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
)

// positionLedger maintains a dense, gap-free, 1-based position sequence
// for one ordered collection. It is instantiated three times: layers on a
// page, pages in a project and blobs on an owner. Position columns are
// written exclusively through this type; the invariant is that at every
// commit boundary the positions of a group are exactly {1..N}.
//
// All methods run inside the caller's transaction. Appends serialize by
// locking the parent row, so "count, then insert at count+1" cannot race.
type positionLedger struct {
	table       string // ordered table, e.g. engine_pages
	groupCol    string // grouping FK column, e.g. project_id
	idCol       string // item id column within the group
	parentTable string // parent row locked to serialize group writes
}

var (
	pagesLedger = positionLedger{
		table:       "engine_pages",
		groupCol:    "project_id",
		idCol:       "id",
		parentTable: "engine_projects",
	}
	pageLayersLedger = positionLedger{
		table:       "engine_layers_to_pages",
		groupCol:    "page_id",
		idCol:       "layer_id",
		parentTable: "engine_pages",
	}
	projectBlobsLedger = positionLedger{
		table:       "engine_blobs",
		groupCol:    "project_id",
		idCol:       "id",
		parentTable: "engine_projects",
	}
	rowBlobsLedger = positionLedger{
		table:       "engine_blobs",
		groupCol:    "row_id",
		idCol:       "id",
		parentTable: "engine_rows",
	}
)

// lockGroup takes a row lock on the parent so concurrent ledger writes on
// the same group queue up behind each other. Returns ErrNotFound if the
// parent row does not exist.
func (l positionLedger) lockGroup(ctx context.Context, tx pgx.Tx, groupKey uuid.UUID) error {
	query := fmt.Sprintf("SELECT id FROM %s WHERE id = $1 FOR UPDATE", l.parentTable)

	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, groupKey).Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to lock %s group: %w", l.table, err)
	}
	return nil
}

// nextPosition locks the group and returns count+1, the position for an
// append. The caller inserts the item with this position in the same
// transaction.
func (l positionLedger) nextPosition(ctx context.Context, tx pgx.Tx, groupKey uuid.UUID) (int, error) {
	if err := l.lockGroup(ctx, tx, groupKey); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", l.table, l.groupCol)

	var count int
	if err := tx.QueryRow(ctx, query, groupKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s group: %w", l.table, err)
	}
	return count + 1, nil
}

// remove deletes the item and closes the gap by decrementing every
// sibling position greater than the removed one, all in the caller's
// transaction. Returns ErrNotFound if the item is not in the group.
func (l positionLedger) remove(ctx context.Context, tx pgx.Tx, groupKey, itemID uuid.UUID) error {
	if err := l.lockGroup(ctx, tx, groupKey); err != nil {
		return err
	}

	deleteQuery := fmt.Sprintf(
		"DELETE FROM %s WHERE %s = $1 AND %s = $2 RETURNING position",
		l.table, l.groupCol, l.idCol)

	var removedPos int
	if err := tx.QueryRow(ctx, deleteQuery, groupKey, itemID).Scan(&removedPos); err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to delete from %s: %w", l.table, err)
	}

	compactQuery := fmt.Sprintf(
		"UPDATE %s SET position = position - 1 WHERE %s = $1 AND position > $2",
		l.table, l.groupCol)

	if _, err := tx.Exec(ctx, compactQuery, groupKey, removedPos); err != nil {
		return fmt.Errorf("failed to compact %s positions: %w", l.table, err)
	}

	return l.checkDense(ctx, tx, groupKey)
}

// reorder assigns positions from a full snapshot of the desired order.
// The id set must match the group's current members exactly; partial
// reorders are not supported.
func (l positionLedger) reorder(ctx context.Context, tx pgx.Tx, groupKey uuid.UUID, orderedIDs []uuid.UUID) error {
	if err := l.lockGroup(ctx, tx, groupKey); err != nil {
		return err
	}

	listQuery := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", l.idCol, l.table, l.groupCol)

	rows, err := tx.Query(ctx, listQuery, groupKey)
	if err != nil {
		return fmt.Errorf("failed to list %s group: %w", l.table, err)
	}
	existing := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan %s id: %w", l.table, err)
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read %s group: %w", l.table, err)
	}

	if len(orderedIDs) != len(existing) {
		return fmt.Errorf("%w: reorder snapshot has %d ids, group has %d",
			apperrors.ErrNotFound, len(orderedIDs), len(existing))
	}
	seen := make(map[uuid.UUID]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if !existing[id] || seen[id] {
			return fmt.Errorf("%w: id %s not a unique member of the group", apperrors.ErrNotFound, id)
		}
		seen[id] = true
	}

	updateQuery := fmt.Sprintf(
		"UPDATE %s SET position = $1 WHERE %s = $2 AND %s = $3",
		l.table, l.groupCol, l.idCol)

	batch := &pgx.Batch{}
	for i, id := range orderedIDs {
		batch.Queue(updateQuery, i+1, groupKey, id)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to renumber %s: %w", l.table, err)
	}

	return l.checkDense(ctx, tx, groupKey)
}

// checkDense asserts that the group's positions are exactly {1..N}. A
// violation means a code path wrote positions outside the ledger; it is a
// bug, not a user error.
func (l positionLedger) checkDense(ctx context.Context, tx pgx.Tx, groupKey uuid.UUID) error {
	query := fmt.Sprintf(
		"SELECT position FROM %s WHERE %s = $1 ORDER BY position",
		l.table, l.groupCol)

	rows, err := tx.Query(ctx, query, groupKey)
	if err != nil {
		return fmt.Errorf("failed to read %s positions: %w", l.table, err)
	}
	defer rows.Close()

	want := 1
	for rows.Next() {
		var pos int
		if err := rows.Scan(&pos); err != nil {
			return fmt.Errorf("failed to scan %s position: %w", l.table, err)
		}
		if pos != want {
			return fmt.Errorf("%w: %s group %s has position %d where %d expected",
				apperrors.ErrOrderingViolation, l.table, groupKey, pos, want)
		}
		want++
	}
	return rows.Err()
}
