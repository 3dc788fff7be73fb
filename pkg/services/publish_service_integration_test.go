//go:build integration

package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/models"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
	"github.com/mapform-hq/mapform-engine/pkg/services"
	"github.com/mapform-hq/mapform-engine/pkg/testhelpers"
)

type publishFixture struct {
	ctx         context.Context
	teamspaceID uuid.UUID

	projectRepo   repositories.ProjectRepository
	pageRepo      repositories.PageRepository
	pageLayerRepo repositories.PageLayerRepository

	projects    services.ProjectService
	composition services.CompositionService
	publish     services.PublishService
}

func newPublishFixture(t *testing.T) *publishFixture {
	t.Helper()
	db := testhelpers.GetEngineDB(t)
	ctx, teamspaceID := testhelpers.ScopedContext(t, db)
	logger := zap.NewNop()

	projectRepo := repositories.NewProjectRepository()
	pageRepo := repositories.NewPageRepository()
	pageLayerRepo := repositories.NewPageLayerRepository()
	layerRepo := repositories.NewLayerRepository()
	columnRepo := repositories.NewColumnRepository()
	datasetRepo := repositories.NewDatasetRepository()

	return &publishFixture{
		ctx:           ctx,
		teamspaceID:   teamspaceID,
		projectRepo:   projectRepo,
		pageRepo:      pageRepo,
		pageLayerRepo: pageLayerRepo,
		projects:      services.NewProjectService(projectRepo, datasetRepo, logger),
		composition: services.NewCompositionService(
			pageRepo, pageLayerRepo, layerRepo, columnRepo, logger),
		publish: services.NewPublishService(projectRepo, logger),
	}
}

func (f *publishFixture) addPage(t *testing.T, projectID uuid.UUID, name string) *models.Page {
	t.Helper()
	page, err := f.composition.CreatePage(f.ctx, projectID, name, models.MapView{
		Center: models.LngLat{Lng: 18.42, Lat: -33.92},
		Zoom:   12,
	})
	require.NoError(t, err)
	return page
}

func (f *publishFixture) pageNames(t *testing.T, projectID uuid.UUID) []string {
	t.Helper()
	pages, err := f.pageRepo.ListByProject(f.ctx, projectID)
	require.NoError(t, err)
	names := make([]string, 0, len(pages))
	for i, page := range pages {
		require.Equal(t, i+1, page.Position, "positions must be dense")
		names = append(names, page.Name)
	}
	return names
}

// A published snapshot is frozen at publish time: later draft edits do
// not show until the next publish.
func Test_Publish_SnapshotIsolation(t *testing.T) {
	f := newPublishFixture(t)

	draft, err := f.projects.Create(f.ctx, f.teamspaceID, "Field Survey")
	require.NoError(t, err)
	f.addPage(t, draft.ID, "intro")
	f.addPage(t, draft.ID, "map")

	published, err := f.publish.Publish(f.ctx, draft.ID)
	require.NoError(t, err)
	require.NotEqual(t, draft.ID, published.ID)
	require.NotNil(t, published.RootProjectID)
	assert.Equal(t, draft.ID, *published.RootProjectID)
	assert.NotEqual(t, draft.SubmissionsDatasetID, published.SubmissionsDatasetID,
		"snapshot gets its own submissions dataset")

	assert.Equal(t, []string{"intro", "map"}, f.pageNames(t, published.ID))

	reloaded, err := f.projects.Get(f.ctx, draft.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDirty, "publish clears the dirty flag")

	// Draft edits leave the snapshot untouched and re-dirty the draft.
	f.addPage(t, draft.ID, "outro")
	assert.Equal(t, []string{"intro", "map"}, f.pageNames(t, published.ID))

	reloaded, err = f.projects.Get(f.ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsDirty)

	// Republish replaces the snapshot wholesale, same snapshot project.
	republished, err := f.publish.Publish(f.ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, published.ID, republished.ID)
	assert.Equal(t, []string{"intro", "map", "outro"}, f.pageNames(t, republished.ID))
}

// Snapshot pages get fresh ids; layer attachments keep pointing at the
// same layers in the same order.
func Test_Publish_RemintsPagesKeepsLayers(t *testing.T) {
	f := newPublishFixture(t)

	draft, err := f.projects.Create(f.ctx, f.teamspaceID, "Layered")
	require.NoError(t, err)
	page := f.addPage(t, draft.ID, "map")

	datasetRepo := repositories.NewDatasetRepository()
	dataset := &models.Dataset{TeamspaceID: f.teamspaceID, Name: "Points"}
	require.NoError(t, datasetRepo.Create(f.ctx, dataset))

	columnRepo := repositories.NewColumnRepository()
	pointColumn := &models.Column{DatasetID: dataset.ID, Name: "Location", Type: models.ColumnTypePoint}
	require.NoError(t, columnRepo.Create(f.ctx, pointColumn))

	layer, err := f.composition.CreatePointLayer(f.ctx, dataset.ID, "Sites", pointColumn.ID, nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = f.composition.AddLayerToPage(f.ctx, layer.ID, page.ID)
	require.NoError(t, err)

	published, err := f.publish.Publish(f.ctx, draft.ID)
	require.NoError(t, err)

	publishedPages, err := f.pageRepo.ListByProject(f.ctx, published.ID)
	require.NoError(t, err)
	require.Len(t, publishedPages, 1)
	assert.NotEqual(t, page.ID, publishedPages[0].ID, "snapshot pages are new rows")
	assert.Equal(t, page.View, publishedPages[0].View)

	links, err := f.pageLayerRepo.ListByPage(f.ctx, publishedPages[0].ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, layer.ID, links[0].LayerID, "layers are shared, not copied")
	assert.Equal(t, 1, links[0].Position)
}

func Test_Publish_IsIdempotentWhenClean(t *testing.T) {
	f := newPublishFixture(t)

	draft, err := f.projects.Create(f.ctx, f.teamspaceID, "Stable")
	require.NoError(t, err)
	f.addPage(t, draft.ID, "only")

	first, err := f.publish.Publish(f.ctx, draft.ID)
	require.NoError(t, err)
	second, err := f.publish.Publish(f.ctx, draft.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []string{"only"}, f.pageNames(t, second.ID))
}

func Test_Publish_RejectsSnapshotProject(t *testing.T) {
	f := newPublishFixture(t)

	draft, err := f.projects.Create(f.ctx, f.teamspaceID, "Source")
	require.NoError(t, err)
	published, err := f.publish.Publish(f.ctx, draft.ID)
	require.NoError(t, err)

	_, err = f.publish.Publish(f.ctx, published.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func Test_Publish_UnknownProject(t *testing.T) {
	f := newPublishFixture(t)

	_, err := f.publish.Publish(f.ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// The dirty flag commits with the structural edit itself; it can never
// lag behind a committed change. Snapshots stay clean through all of it.
func Test_StructuralEdits_FlagDraftDirty(t *testing.T) {
	f := newPublishFixture(t)

	draft, err := f.projects.Create(f.ctx, f.teamspaceID, "Flagged")
	require.NoError(t, err)
	first := f.addPage(t, draft.ID, "first")
	second := f.addPage(t, draft.ID, "second")

	published, err := f.publish.Publish(f.ctx, draft.ID)
	require.NoError(t, err)

	requireDirty := func(t *testing.T, want bool) {
		t.Helper()
		reloaded, err := f.projects.Get(f.ctx, draft.ID)
		require.NoError(t, err)
		require.Equal(t, want, reloaded.IsDirty)

		snapshot, err := f.projects.Get(f.ctx, published.ID)
		require.NoError(t, err)
		require.False(t, snapshot.IsDirty, "snapshots never go dirty")
	}
	requireDirty(t, false)

	require.NoError(t, f.composition.ReorderPages(f.ctx, draft.ID,
		[]uuid.UUID{second.ID, first.ID}))
	requireDirty(t, true)

	_, err = f.publish.Publish(f.ctx, draft.ID)
	require.NoError(t, err)
	requireDirty(t, false)

	require.NoError(t, f.composition.DeletePage(f.ctx, first.ID))
	requireDirty(t, true)

	_, err = f.publish.Publish(f.ctx, draft.ID)
	require.NoError(t, err)
	requireDirty(t, false)

	// Renaming the draft outdates the snapshot's copied name; renaming
	// the snapshot changes nothing the draft would republish.
	require.NoError(t, f.projects.Rename(f.ctx, draft.ID, "Flagged v2"))
	requireDirty(t, true)

	_, err = f.publish.Publish(f.ctx, draft.ID)
	require.NoError(t, err)
	require.NoError(t, f.projects.Rename(f.ctx, published.ID, "Detached name"))
	requireDirty(t, false)
}

func Test_GetPublished(t *testing.T) {
	f := newPublishFixture(t)

	draft, err := f.projects.Create(f.ctx, f.teamspaceID, "Lookup")
	require.NoError(t, err)

	_, err = f.publish.GetPublished(f.ctx, draft.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	published, err := f.publish.Publish(f.ctx, draft.ID)
	require.NoError(t, err)

	got, err := f.publish.GetPublished(f.ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, published.ID, got.ID)
}
