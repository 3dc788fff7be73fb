//go:build integration

package repositories_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapform-hq/mapform-engine/pkg/models"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
)

func storePointCell(t *testing.T, ctx context.Context, datasetID, columnID uuid.UUID, c models.LngLat) uuid.UUID {
	t.Helper()
	row := createRow(t, ctx, datasetID)
	cell, err := repositories.NewCellRepository().UpsertCell(ctx, row.ID, columnID, models.PointValue{Coordinate: c})
	require.NoError(t, err)
	return cell.ID
}

// The query box includes its boundary on all four edges.
func Test_QueryWithinBounds_InclusiveBoundary(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewGeometryRepository()

	dataset := createDataset(t, ctx, teamspaceID)
	column := createColumn(t, ctx, dataset.ID, "Location", models.ColumnTypePoint)

	points := map[string]models.LngLat{
		"inside":     {Lng: 5, Lat: 5},
		"min corner": {Lng: 0, Lat: 0},
		"max corner": {Lng: 10, Lat: 10},
		"on edge":    {Lng: 10, Lat: 5},
	}
	wantCells := make(map[uuid.UUID]string)
	for name, c := range points {
		wantCells[storePointCell(t, ctx, dataset.ID, column.ID, c)] = name
	}

	outside := []models.LngLat{
		{Lng: 10.0001, Lat: 5},
		{Lng: -0.0001, Lat: 0},
		{Lng: 5, Lat: -10},
	}
	for _, c := range outside {
		storePointCell(t, ctx, dataset.ID, column.ID, c)
	}

	features, err := repo.QueryWithinBounds(ctx, column.ID,
		models.Bounds{MinLng: 0, MinLat: 0, MaxLng: 10, MaxLat: 10})
	require.NoError(t, err)
	require.Len(t, features, len(points))

	for _, f := range features {
		name, ok := wantCells[f.CellID]
		require.True(t, ok, "unexpected cell %s at %+v", f.CellID, f.Coordinate)
		assert.Equal(t, points[name], f.Coordinate, name)
	}
}

func Test_QueryWithinBounds_ScopedToColumn(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewGeometryRepository()

	dataset := createDataset(t, ctx, teamspaceID)
	columnA := createColumn(t, ctx, dataset.ID, "A", models.ColumnTypePoint)
	columnB := createColumn(t, ctx, dataset.ID, "B", models.ColumnTypePoint)

	cellA := storePointCell(t, ctx, dataset.ID, columnA.ID, models.LngLat{Lng: 1, Lat: 1})
	storePointCell(t, ctx, dataset.ID, columnB.ID, models.LngLat{Lng: 1, Lat: 1})

	features, err := repo.QueryWithinBounds(ctx, columnA.ID,
		models.Bounds{MinLng: 0, MinLat: 0, MaxLng: 2, MaxLat: 2})
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, cellA, features[0].CellID)
}

func Test_QueryWithinBounds_RejectsMalformedBox(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewGeometryRepository()

	dataset := createDataset(t, ctx, teamspaceID)
	column := createColumn(t, ctx, dataset.ID, "Location", models.ColumnTypePoint)

	_, err := repo.QueryWithinBounds(ctx, column.ID,
		models.Bounds{MinLng: 10, MinLat: 0, MaxLng: 0, MaxLat: 10})
	assert.Error(t, err)
}

func Test_ReadPointsForCells(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewGeometryRepository()

	dataset := createDataset(t, ctx, teamspaceID)
	column := createColumn(t, ctx, dataset.ID, "Location", models.ColumnTypePoint)

	want := models.LngLat{Lng: 18.4233, Lat: -33.9188}
	cellID := storePointCell(t, ctx, dataset.ID, column.ID, want)

	points, err := repo.ReadPointsForCells(ctx, []uuid.UUID{cellID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, want, points[cellID])

	empty, err := repo.ReadPointsForCells(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
