//go:build integration

package repositories_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/models"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
)

func createProjectBlob(t *testing.T, ctx context.Context, projectID uuid.UUID, url string) *models.Blob {
	t.Helper()
	blob := &models.Blob{URL: url, MimeType: "image/png", SizeBytes: 1024, ProjectID: &projectID}
	require.NoError(t, repositories.NewBlobRepository().Create(ctx, blob))
	return blob
}

// Each owner runs its own position sequence; project and row blobs never
// interleave.
func Test_Blobs_PerOwnerPositions(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewBlobRepository()

	project := createProject(t, ctx, teamspaceID)
	dataset := createDataset(t, ctx, teamspaceID)
	row := createRow(t, ctx, dataset.ID)

	p1 := createProjectBlob(t, ctx, project.ID, "s3://bucket/p1.png")
	p2 := createProjectBlob(t, ctx, project.ID, "s3://bucket/p2.png")
	assert.Equal(t, 1, p1.Position)
	assert.Equal(t, 2, p2.Position)

	rowBlob := &models.Blob{URL: "s3://bucket/r1.png", MimeType: "image/png", SizeBytes: 64, RowID: &row.ID}
	require.NoError(t, repo.Create(ctx, rowBlob))
	assert.Equal(t, 1, rowBlob.Position, "row blobs start their own sequence")

	projectBlobs, err := repo.ListByOwner(ctx, models.BlobOwnerProject, project.ID)
	require.NoError(t, err)
	require.Len(t, projectBlobs, 2)
	assert.Equal(t, p1.ID, projectBlobs[0].ID)
	assert.Equal(t, p2.ID, projectBlobs[1].ID)
}

func Test_Blobs_DeleteCompactsOwnerPositions(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewBlobRepository()

	project := createProject(t, ctx, teamspaceID)
	first := createProjectBlob(t, ctx, project.ID, "s3://bucket/1.png")
	second := createProjectBlob(t, ctx, project.ID, "s3://bucket/2.png")
	third := createProjectBlob(t, ctx, project.ID, "s3://bucket/3.png")

	require.NoError(t, repo.Delete(ctx, second.ID))

	blobs, err := repo.ListByOwner(ctx, models.BlobOwnerProject, project.ID)
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, first.ID, blobs[0].ID)
	assert.Equal(t, 1, blobs[0].Position)
	assert.Equal(t, third.ID, blobs[1].ID)
	assert.Equal(t, 2, blobs[1].Position)
}

func Test_Blobs_Reorder(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewBlobRepository()

	project := createProject(t, ctx, teamspaceID)
	first := createProjectBlob(t, ctx, project.ID, "s3://bucket/1.png")
	second := createProjectBlob(t, ctx, project.ID, "s3://bucket/2.png")

	require.NoError(t, repo.Reorder(ctx, models.BlobOwnerProject, project.ID,
		[]uuid.UUID{second.ID, first.ID}))

	blobs, err := repo.ListByOwner(ctx, models.BlobOwnerProject, project.ID)
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, second.ID, blobs[0].ID)

	err = repo.Reorder(ctx, models.BlobOwnerProject, project.ID, []uuid.UUID{first.ID})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func Test_Blobs_RejectAmbiguousOwner(t *testing.T) {
	ctx, teamspaceID := scopedCtx(t)
	repo := repositories.NewBlobRepository()

	project := createProject(t, ctx, teamspaceID)
	dataset := createDataset(t, ctx, teamspaceID)
	row := createRow(t, ctx, dataset.ID)

	both := &models.Blob{URL: "s3://bucket/x.png", ProjectID: &project.ID, RowID: &row.ID}
	assert.ErrorIs(t, repo.Create(ctx, both), apperrors.ErrInvalidValue)

	neither := &models.Blob{URL: "s3://bucket/y.png"}
	assert.ErrorIs(t, repo.Create(ctx, neither), apperrors.ErrInvalidValue)
}
