//go:build integration

package repositories_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
)

// Row level security pins each scoped connection to its teamspace:
// another teamspace's rows are invisible, not forbidden.
func Test_TeamspaceIsolation(t *testing.T) {
	ctxA, teamspaceA := scopedCtx(t)
	ctxB, _ := scopedCtx(t)
	repo := repositories.NewDatasetRepository()

	dataset := createDataset(t, ctxA, teamspaceA)

	visible, err := repo.Get(ctxA, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, dataset.ID, visible.ID)

	_, err = repo.Get(ctxB, dataset.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func Test_ProjectTeamspaceIsolation(t *testing.T) {
	ctxA, teamspaceA := scopedCtx(t)
	ctxB, _ := scopedCtx(t)
	repo := repositories.NewProjectRepository()

	project := createProject(t, ctxA, teamspaceA)

	_, err := repo.Get(ctxB, project.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, repo.Rename(ctxB, project.ID, "hijacked"), apperrors.ErrNotFound)

	untouched, err := repo.Get(ctxA, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Project", untouched.Name)
}
