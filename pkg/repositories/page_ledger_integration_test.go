//go:build integration

package repositories_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/models"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
)

func pagePositions(t *testing.T, pages []*models.Page) map[string]int {
	t.Helper()
	positions := make(map[string]int, len(pages))
	for _, page := range pages {
		positions[page.Name] = page.Position
	}
	return positions
}

func Test_Pages_AppendAssignsDensePositions(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewPageRepository()

	project := createProject(t, ctx, teamspaceID)
	for i, name := range []string{"one", "two", "three"} {
		page := createPage(t, ctx, project.ID, name)
		assert.Equal(t, i+1, page.Position)
	}

	pages, err := repo.ListByProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, map[string]int{"one": 1, "two": 2, "three": 3}, pagePositions(t, pages))
}

// Removing the middle page closes the gap: successors shift down one,
// relative order preserved.
func Test_Pages_DeleteCompactsPositions(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewPageRepository()

	project := createProject(t, ctx, teamspaceID)
	createPage(t, ctx, project.ID, "one")
	middle := createPage(t, ctx, project.ID, "two")
	createPage(t, ctx, project.ID, "three")

	require.NoError(t, repo.Delete(ctx, middle.ID))

	pages, err := repo.ListByProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, map[string]int{"one": 1, "three": 2}, pagePositions(t, pages))
}

func Test_Pages_Reorder(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewPageRepository()

	project := createProject(t, ctx, teamspaceID)
	a := createPage(t, ctx, project.ID, "a")
	b := createPage(t, ctx, project.ID, "b")
	c := createPage(t, ctx, project.ID, "c")

	require.NoError(t, repo.Reorder(ctx, project.ID, []uuid.UUID{c.ID, a.ID, b.ID}))

	pages, err := repo.ListByProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"c": 1, "a": 2, "b": 3}, pagePositions(t, pages))
}

// A reorder snapshot must name every page exactly once; anything else is
// rejected and changes nothing.
func Test_Pages_ReorderRejectsBadSnapshots(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewPageRepository()

	project := createProject(t, ctx, teamspaceID)
	a := createPage(t, ctx, project.ID, "a")
	b := createPage(t, ctx, project.ID, "b")

	tests := []struct {
		name     string
		snapshot []uuid.UUID
	}{
		{"missing page", []uuid.UUID{a.ID}},
		{"duplicate page", []uuid.UUID{a.ID, a.ID}},
		{"unknown page", []uuid.UUID{a.ID, uuid.New()}},
		{"extra page", []uuid.UUID{a.ID, b.ID, uuid.New()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Reorder(ctx, project.ID, tt.snapshot)
			assert.ErrorIs(t, err, apperrors.ErrNotFound)
		})
	}

	pages, err := repo.ListByProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, pagePositions(t, pages))
}

func Test_PageLayers_AttachDetach(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewPageLayerRepository()

	dataset := createDataset(t, ctx, teamspaceID)
	project := createProject(t, ctx, teamspaceID)
	page := createPage(t, ctx, project.ID, "map")
	first := createPointLayer(t, ctx, dataset.ID, "first")
	second := createPointLayer(t, ctx, dataset.ID, "second")

	pos, err := repo.Attach(ctx, first.ID, page.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = repo.Attach(ctx, second.ID, page.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	_, err = repo.Attach(ctx, first.ID, page.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	require.NoError(t, repo.Detach(ctx, first.ID, page.ID))

	links, err := repo.ListByPage(ctx, page.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, second.ID, links[0].LayerID)
	assert.Equal(t, 1, links[0].Position)
	require.NotNil(t, links[0].Layer)
	assert.Equal(t, "second", links[0].Layer.Name)
}

func Test_PageLayers_Reorder(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewPageLayerRepository()

	dataset := createDataset(t, ctx, teamspaceID)
	project := createProject(t, ctx, teamspaceID)
	page := createPage(t, ctx, project.ID, "map")
	first := createPointLayer(t, ctx, dataset.ID, "first")
	second := createPointLayer(t, ctx, dataset.ID, "second")

	_, err := repo.Attach(ctx, first.ID, page.ID)
	require.NoError(t, err)
	_, err = repo.Attach(ctx, second.ID, page.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Reorder(ctx, page.ID, []uuid.UUID{second.ID, first.ID}))

	links, err := repo.ListByPage(ctx, page.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, second.ID, links[0].LayerID)
	assert.Equal(t, first.ID, links[1].LayerID)

	err = repo.Reorder(ctx, page.ID, []uuid.UUID{first.ID})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// Deleting a layer detaches it from every page it was on and compacts
// those pages' layer positions.
func Test_Layers_DeleteCompactsPagePositions(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	layerRepo := repositories.NewLayerRepository()
	pageLayerRepo := repositories.NewPageLayerRepository()

	dataset := createDataset(t, ctx, teamspaceID)
	project := createProject(t, ctx, teamspaceID)
	page := createPage(t, ctx, project.ID, "map")
	doomed := createPointLayer(t, ctx, dataset.ID, "doomed")
	kept := createPointLayer(t, ctx, dataset.ID, "kept")

	_, err := pageLayerRepo.Attach(ctx, doomed.ID, page.ID)
	require.NoError(t, err)
	_, err = pageLayerRepo.Attach(ctx, kept.ID, page.ID)
	require.NoError(t, err)

	require.NoError(t, layerRepo.Delete(ctx, doomed.ID))

	links, err := pageLayerRepo.ListByPage(ctx, page.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, kept.ID, links[0].LayerID)
	assert.Equal(t, 1, links[0].Position)
}
