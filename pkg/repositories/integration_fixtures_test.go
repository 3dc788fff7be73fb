//go:build integration

package repositories_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mapform-hq/mapform-engine/pkg/models"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
	"github.com/mapform-hq/mapform-engine/pkg/testhelpers"
)

// scopedCtx spins up (or reuses) the shared database and returns a
// context scoped to a fresh teamspace, so tests never see each other's
// rows even through RLS-exempt queries.
func scopedCtx(t *testing.T) (context.Context, uuid.UUID) {
	t.Helper()
	db := testhelpers.GetEngineDB(t)
	return testhelpers.ScopedContext(t, db)
}

func createDataset(t *testing.T, ctx context.Context, teamspaceID uuid.UUID) *models.Dataset {
	t.Helper()
	dataset := &models.Dataset{TeamspaceID: teamspaceID, Name: "Test Dataset"}
	require.NoError(t, repositories.NewDatasetRepository().Create(ctx, dataset))
	return dataset
}

func createColumn(t *testing.T, ctx context.Context, datasetID uuid.UUID, name string, columnType models.ColumnType) *models.Column {
	t.Helper()
	column := &models.Column{DatasetID: datasetID, Name: name, Type: columnType}
	require.NoError(t, repositories.NewColumnRepository().Create(ctx, column))
	return column
}

func createRow(t *testing.T, ctx context.Context, datasetID uuid.UUID) *models.Row {
	t.Helper()
	row := &models.Row{DatasetID: datasetID}
	require.NoError(t, repositories.NewCellRepository().CreateRow(ctx, row))
	return row
}

func createProject(t *testing.T, ctx context.Context, teamspaceID uuid.UUID) *models.Project {
	t.Helper()
	submissions := createDataset(t, ctx, teamspaceID)
	project := &models.Project{
		TeamspaceID:          teamspaceID,
		Name:                 "Test Project",
		SubmissionsDatasetID: submissions.ID,
	}
	require.NoError(t, repositories.NewProjectRepository().Create(ctx, project))
	return project
}

func createPage(t *testing.T, ctx context.Context, projectID uuid.UUID, name string) *models.Page {
	t.Helper()
	page := &models.Page{
		ProjectID: projectID,
		Name:      name,
		View:      models.MapView{Center: models.LngLat{Lng: 18.42, Lat: -33.92}, Zoom: 10},
	}
	require.NoError(t, repositories.NewPageRepository().Create(ctx, page))
	return page
}

func createPointLayer(t *testing.T, ctx context.Context, datasetID uuid.UUID, name string) *models.Layer {
	t.Helper()
	pointColumn := createColumn(t, ctx, datasetID, name+" Location", models.ColumnTypePoint)
	layer := &models.Layer{
		DatasetID:     datasetID,
		Name:          name,
		Type:          models.LayerTypePoint,
		PointColumnID: &pointColumn.ID,
	}
	require.NoError(t, repositories.NewLayerRepository().Create(ctx, layer))
	return layer
}
