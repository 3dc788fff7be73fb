package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mapform-hq/mapform-engine/pkg/database"
	"github.com/mapform-hq/mapform-engine/pkg/models"
)

// GeometryRepository is the spatial side of the cell store: it owns the
// point/line/polygon value tables and the viewport query. Points are
// stored in a native POINT column (x=longitude, y=latitude, the LngLat
// convention) so bounding-box containment runs against a GiST index.
type GeometryRepository interface {
	// QueryWithinBounds returns every stored point of the column that lies
	// within the box, boundary inclusive.
	QueryWithinBounds(ctx context.Context, columnID uuid.UUID, bounds models.Bounds) ([]models.PointFeature, error)
	// ReadPointsForCells batch-hydrates point coordinates by cell id.
	ReadPointsForCells(ctx context.Context, cellIDs []uuid.UUID) (map[uuid.UUID]models.LngLat, error)
}

type geometryRepository struct{}

// NewGeometryRepository creates a new geometry repository.
func NewGeometryRepository() GeometryRepository {
	return &geometryRepository{}
}

func (r *geometryRepository) QueryWithinBounds(ctx context.Context, columnID uuid.UUID, bounds models.Bounds) ([]models.PointFeature, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	if err := bounds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bounds: %w", err)
	}

	// box(point, point) containment (<@) is inclusive of the boundary.
	query := `
		SELECT c.id, v.value
		FROM engine_cells c
		JOIN engine_cell_point_values v ON v.cell_id = c.id
		WHERE c.column_id = $1
		  AND v.value <@ box(point($2, $3), point($4, $5))`

	rows, err := scope.Conn.Query(ctx, query, columnID,
		bounds.MinLng, bounds.MinLat, bounds.MaxLng, bounds.MaxLat)
	if err != nil {
		return nil, fmt.Errorf("failed to query points in bounds: %w", err)
	}
	defer rows.Close()

	var features []models.PointFeature
	for rows.Next() {
		var (
			cellID uuid.UUID
			pt     pgtype.Point
		)
		if err := rows.Scan(&cellID, &pt); err != nil {
			return nil, fmt.Errorf("failed to scan point feature: %w", err)
		}
		features = append(features, models.PointFeature{
			CellID:     cellID,
			Coordinate: models.LngLat{Lng: pt.P.X, Lat: pt.P.Y},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read point features: %w", err)
	}
	return features, nil
}

func (r *geometryRepository) ReadPointsForCells(ctx context.Context, cellIDs []uuid.UUID) (map[uuid.UUID]models.LngLat, error) {
	scope, ok := database.GetTeamspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no teamspace scope in context")
	}

	points := make(map[uuid.UUID]models.LngLat, len(cellIDs))
	if len(cellIDs) == 0 {
		return points, nil
	}

	query := `SELECT cell_id, value FROM engine_cell_point_values WHERE cell_id = ANY($1)`

	rows, err := scope.Conn.Query(ctx, query, cellIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cellID uuid.UUID
			pt     pgtype.Point
		)
		if err := rows.Scan(&cellID, &pt); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		points[cellID] = models.LngLat{Lng: pt.P.X, Lat: pt.P.Y}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read points: %w", err)
	}
	return points, nil
}

var _ GeometryRepository = (*geometryRepository)(nil)

// pgPoint converts a coordinate to the wire type for a POINT column.
func pgPoint(c models.LngLat) pgtype.Point {
	return pgtype.Point{P: pgtype.Vec2{X: c.Lng, Y: c.Lat}, Valid: true}
}

// storePoint writes a point value row inside the caller's transaction.
func storePoint(ctx context.Context, q querier, cellID uuid.UUID, c models.LngLat) error {
	_, err := q.Exec(ctx,
		`INSERT INTO engine_cell_point_values (cell_id, value) VALUES ($1, $2)`,
		cellID, pgPoint(c))
	if err != nil {
		return fmt.Errorf("failed to store point: %w", err)
	}
	return nil
}

// storeLine writes a line value row inside the caller's transaction.
func storeLine(ctx context.Context, q querier, cellID uuid.UUID, coords models.LineString) error {
	encoded, err := json.Marshal(coords)
	if err != nil {
		return fmt.Errorf("failed to marshal line: %w", err)
	}
	_, err = q.Exec(ctx,
		`INSERT INTO engine_cell_line_values (cell_id, value) VALUES ($1, $2)`,
		cellID, encoded)
	if err != nil {
		return fmt.Errorf("failed to store line: %w", err)
	}
	return nil
}

// storePolygon writes a polygon value row inside the caller's transaction.
func storePolygon(ctx context.Context, q querier, cellID uuid.UUID, rings models.PolygonRings) error {
	encoded, err := json.Marshal(rings)
	if err != nil {
		return fmt.Errorf("failed to marshal polygon: %w", err)
	}
	_, err = q.Exec(ctx,
		`INSERT INTO engine_cell_polygon_values (cell_id, value) VALUES ($1, $2)`,
		cellID, encoded)
	if err != nil {
		return fmt.Errorf("failed to store polygon: %w", err)
	}
	return nil
}
