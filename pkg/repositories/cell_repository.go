package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/database"
	"github.com/mapform-hq/mapform-engine/pkg/models"
)

// CellRepository is the row/cell side of the cell store. A cell is a
// (row, column) pair whose value lives in exactly one per-type value
// table; every write here keeps that invariant inside one transaction.
type CellRepository interface {
	CreateRow(ctx context.Context, row *models.Row) error
	// GetRow returns the row with every cell hydrated from its value
	// table, each annotated with the table it resolved from.
	GetRow(ctx context.Context, rowID uuid.UUID) (*models.Row, error)
	// ListRows returns the dataset's rows, hydrated, oldest first.
	ListRows(ctx context.Context, datasetID uuid.UUID) ([]*models.Row, error)
	DeleteRow(ctx context.Context, rowID uuid.UUID) error

	// UpsertCell writes the value for (row, column), replacing any prior
	// value. The value's type must match the column's declared type. The
	// cell record and its value-table row are written atomically; on any
	// failure nothing is created.
	UpsertCell(ctx context.Context, rowID, columnID uuid.UUID, value models.CellValue) (*models.Cell, error)
	// CreateRowWithCells inserts a new row and writes every supplied cell
	// value in one transaction; on any failure nothing is created.
	CreateRowWithCells(ctx context.Context, row *models.Row, values map[uuid.UUID]models.CellValue) error
	// DeleteCell removes the cell and its value row ("no value" state).
	DeleteCell(ctx context.Context, rowID, columnID uuid.UUID) error
}

type cellRepository struct{}

// NewCellRepository creates a new cell repository.
func NewCellRepository() CellRepository {
	return &cellRepository{}
}

func (r *cellRepository) CreateRow(ctx context.Context, row *models.Row) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now()

	var datasetID uuid.UUID
	err := scope.Conn.QueryRow(ctx,
		`SELECT id FROM engine_datasets WHERE id = $1`, row.DatasetID).Scan(&datasetID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("dataset %s: %w", row.DatasetID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to check dataset: %w", err)
	}

	_, err = scope.Conn.Exec(ctx,
		`INSERT INTO engine_rows (id, dataset_id, created_at) VALUES ($1, $2, $3)`,
		row.ID, row.DatasetID, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create row: %w", err)
	}
	return nil
}

func (r *cellRepository) GetRow(ctx context.Context, rowID uuid.UUID) (*models.Row, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	var row models.Row
	err := scope.Conn.QueryRow(ctx,
		`SELECT id, dataset_id, created_at FROM engine_rows WHERE id = $1`, rowID).
		Scan(&row.ID, &row.DatasetID, &row.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get row: %w", err)
	}

	cellsByRow, err := hydrateCells(ctx, scope.Conn, []uuid.UUID{rowID})
	if err != nil {
		return nil, err
	}
	row.Cells = cellsByRow[rowID]
	return &row, nil
}

func (r *cellRepository) ListRows(ctx context.Context, datasetID uuid.UUID) ([]*models.Row, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT id, dataset_id, created_at FROM engine_rows WHERE dataset_id = $1 ORDER BY created_at, id`,
		datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}
	defer rows.Close()

	var result []*models.Row
	var rowIDs []uuid.UUID
	for rows.Next() {
		var row models.Row
		if err := rows.Scan(&row.ID, &row.DatasetID, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, &row)
		rowIDs = append(rowIDs, row.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	cellsByRow, err := hydrateCells(ctx, scope.Conn, rowIDs)
	if err != nil {
		return nil, err
	}
	for _, row := range result {
		row.Cells = cellsByRow[row.ID]
	}
	return result, nil
}

func (r *cellRepository) DeleteRow(ctx context.Context, rowID uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM engine_rows WHERE id = $1`, rowID)
	if err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *cellRepository) UpsertCell(ctx context.Context, rowID, columnID uuid.UUID, value models.CellValue) (*models.Cell, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var exists uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM engine_rows WHERE id = $1`, rowID).Scan(&exists)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("row %s: %w", rowID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to check row: %w", err)
	}

	cell, err := upsertCellTx(ctx, tx, rowID, columnID, value)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return cell, nil
}

// CreateRowWithCells inserts the row and all supplied values inside one
// transaction. Used by the form submission path, where a response must
// land whole or not at all.
func (r *cellRepository) CreateRowWithCells(ctx context.Context, row *models.Row, values map[uuid.UUID]models.CellValue) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now()

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var datasetID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM engine_datasets WHERE id = $1`, row.DatasetID).Scan(&datasetID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("dataset %s: %w", row.DatasetID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to check dataset: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO engine_rows (id, dataset_id, created_at) VALUES ($1, $2, $3)`,
		row.ID, row.DatasetID, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create row: %w", err)
	}

	for columnID, value := range values {
		if _, err := upsertCellTx(ctx, tx, row.ID, columnID, value); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// upsertCellTx writes the cell record and its value row in the caller's
// transaction. The caller guarantees the row exists.
func upsertCellTx(ctx context.Context, tx pgx.Tx, rowID, columnID uuid.UUID, value models.CellValue) (*models.Cell, error) {
	// The column's declared type is authoritative; read it inside the
	// transaction.
	var columnType models.ColumnType
	err := tx.QueryRow(ctx, `SELECT type FROM engine_columns WHERE id = $1`, columnID).Scan(&columnType)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("column %s: %w", columnID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get column type: %w", err)
	}
	if value == nil {
		return nil, fmt.Errorf("%w: nil value", apperrors.ErrInvalidValue)
	}
	if value.ColumnType() != columnType {
		return nil, fmt.Errorf("%w: column %s is %s, value is %s",
			apperrors.ErrTypeMismatch, columnID, columnType, value.ColumnType())
	}

	cell := &models.Cell{RowID: rowID, ColumnID: columnID}
	err = tx.QueryRow(ctx, `
		INSERT INTO engine_cells (id, row_id, column_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (row_id, column_id) DO UPDATE SET row_id = EXCLUDED.row_id
		RETURNING id, created_at`,
		uuid.New(), rowID, columnID, time.Now()).Scan(&cell.ID, &cell.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cell: %w", err)
	}

	// Replace the prior value. The column type never changes, so the old
	// value can only live in the same table the new one goes into.
	table := columnType.ValueTable()
	if _, err := tx.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE cell_id = $1", table), cell.ID); err != nil {
		return nil, fmt.Errorf("failed to clear prior value: %w", err)
	}

	if err := writeValue(ctx, tx, cell.ID, value); err != nil {
		return nil, err
	}

	cell.Value = value
	cell.ValueTable = table
	return cell, nil
}

func (r *cellRepository) DeleteCell(ctx context.Context, rowID, columnID uuid.UUID) error {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no teamspace scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`DELETE FROM engine_cells WHERE row_id = $1 AND column_id = $2`, rowID, columnID)
	if err != nil {
		return fmt.Errorf("failed to delete cell: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// writeValue dispatches the value to its one value table. The switch is
// exhaustive over the models.CellValue variants.
func writeValue(ctx context.Context, q querier, cellID uuid.UUID, value models.CellValue) error {
	switch v := value.(type) {
	case models.StringValue:
		_, err := q.Exec(ctx,
			`INSERT INTO engine_cell_string_values (cell_id, value) VALUES ($1, $2)`,
			cellID, v.Value)
		if err != nil {
			return fmt.Errorf("failed to store string value: %w", err)
		}
	case models.NumberValue:
		_, err := q.Exec(ctx,
			`INSERT INTO engine_cell_number_values (cell_id, value) VALUES ($1, $2)`,
			cellID, v.Value)
		if err != nil {
			return fmt.Errorf("failed to store number value: %w", err)
		}
	case models.BoolValue:
		_, err := q.Exec(ctx,
			`INSERT INTO engine_cell_bool_values (cell_id, value) VALUES ($1, $2)`,
			cellID, v.Value)
		if err != nil {
			return fmt.Errorf("failed to store bool value: %w", err)
		}
	case models.DateValue:
		_, err := q.Exec(ctx,
			`INSERT INTO engine_cell_date_values (cell_id, value) VALUES ($1, $2)`,
			cellID, v.Value)
		if err != nil {
			return fmt.Errorf("failed to store date value: %w", err)
		}
	case models.RichtextValue:
		_, err := q.Exec(ctx,
			`INSERT INTO engine_cell_richtext_values (cell_id, value) VALUES ($1, $2)`,
			cellID, v.Document)
		if err != nil {
			return fmt.Errorf("failed to store richtext value: %w", err)
		}
	case models.PointValue:
		return storePoint(ctx, q, cellID, v.Coordinate)
	case models.LineValue:
		return storeLine(ctx, q, cellID, v.Coordinates)
	case models.PolygonValue:
		return storePolygon(ctx, q, cellID, v.Rings)
	default:
		return fmt.Errorf("%w: unhandled cell value type %T", apperrors.ErrInvalidValue, value)
	}
	return nil
}

// hydrateCells loads all cells of the given rows and resolves each value
// from its type's table in one batched read per table.
func hydrateCells(ctx context.Context, q querier, rowIDs []uuid.UUID) (map[uuid.UUID][]models.Cell, error) {
	byRow := make(map[uuid.UUID][]models.Cell, len(rowIDs))
	if len(rowIDs) == 0 {
		return byRow, nil
	}

	rows, err := q.Query(ctx, `
		SELECT c.id, c.row_id, c.column_id, c.created_at, col.type
		FROM engine_cells c
		JOIN engine_columns col ON col.id = c.column_id
		WHERE c.row_id = ANY($1)
		ORDER BY col.created_at, col.id`, rowIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load cells: %w", err)
	}
	defer rows.Close()

	type cellRef struct {
		rowID uuid.UUID
		index int
	}
	refs := make(map[uuid.UUID]cellRef)
	idsByType := make(map[models.ColumnType][]uuid.UUID)
	for rows.Next() {
		var (
			cell    models.Cell
			colType models.ColumnType
		)
		if err := rows.Scan(&cell.ID, &cell.RowID, &cell.ColumnID, &cell.CreatedAt, &colType); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		cell.ValueTable = colType.ValueTable()
		byRow[cell.RowID] = append(byRow[cell.RowID], cell)
		refs[cell.ID] = cellRef{rowID: cell.RowID, index: len(byRow[cell.RowID]) - 1}
		idsByType[colType] = append(idsByType[colType], cell.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cells: %w", err)
	}

	setValue := func(cellID uuid.UUID, v models.CellValue) {
		ref := refs[cellID]
		byRow[ref.rowID][ref.index].Value = v
	}

	for colType, ids := range idsByType {
		if err := readValues(ctx, q, colType, ids, setValue); err != nil {
			return nil, err
		}
	}
	return byRow, nil
}

// readValues reads one value table for a batch of cell ids.
func readValues(ctx context.Context, q querier, colType models.ColumnType, cellIDs []uuid.UUID, set func(uuid.UUID, models.CellValue)) error {
	query := fmt.Sprintf("SELECT cell_id, value FROM %s WHERE cell_id = ANY($1)", colType.ValueTable())

	rows, err := q.Query(ctx, query, cellIDs)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", colType.ValueTable(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var cellID uuid.UUID
		switch colType {
		case models.ColumnTypeString:
			var v string
			if err := rows.Scan(&cellID, &v); err != nil {
				return fmt.Errorf("failed to scan string value: %w", err)
			}
			set(cellID, models.StringValue{Value: v})
		case models.ColumnTypeNumber:
			var v float64
			if err := rows.Scan(&cellID, &v); err != nil {
				return fmt.Errorf("failed to scan number value: %w", err)
			}
			set(cellID, models.NumberValue{Value: v})
		case models.ColumnTypeBool:
			var v bool
			if err := rows.Scan(&cellID, &v); err != nil {
				return fmt.Errorf("failed to scan bool value: %w", err)
			}
			set(cellID, models.BoolValue{Value: v})
		case models.ColumnTypeDate:
			var v time.Time
			if err := rows.Scan(&cellID, &v); err != nil {
				return fmt.Errorf("failed to scan date value: %w", err)
			}
			set(cellID, models.DateValue{Value: v})
		case models.ColumnTypeRichtext:
			var v []byte
			if err := rows.Scan(&cellID, &v); err != nil {
				return fmt.Errorf("failed to scan richtext value: %w", err)
			}
			set(cellID, models.RichtextValue{Document: v})
		case models.ColumnTypePoint:
			var v pgtype.Point
			if err := rows.Scan(&cellID, &v); err != nil {
				return fmt.Errorf("failed to scan point value: %w", err)
			}
			set(cellID, models.PointValue{Coordinate: models.LngLat{Lng: v.P.X, Lat: v.P.Y}})
		case models.ColumnTypeLine:
			var raw []byte
			if err := rows.Scan(&cellID, &raw); err != nil {
				return fmt.Errorf("failed to scan line value: %w", err)
			}
			var coords models.LineString
			if err := json.Unmarshal(raw, &coords); err != nil {
				return fmt.Errorf("failed to unmarshal line value: %w", err)
			}
			set(cellID, models.LineValue{Coordinates: coords})
		case models.ColumnTypePolygon:
			var raw []byte
			if err := rows.Scan(&cellID, &raw); err != nil {
				return fmt.Errorf("failed to scan polygon value: %w", err)
			}
			var rings models.PolygonRings
			if err := json.Unmarshal(raw, &rings); err != nil {
				return fmt.Errorf("failed to unmarshal polygon value: %w", err)
			}
			set(cellID, models.PolygonValue{Rings: rings})
		default:
			return fmt.Errorf("unhandled column type %q", colType)
		}
	}
	return rows.Err()
}

var _ CellRepository = (*cellRepository)(nil)
