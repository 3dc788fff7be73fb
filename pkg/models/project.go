package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is either a draft (RootProjectID nil) or a published snapshot
// referencing its draft through RootProjectID. Published projects are
// written only by the publish engine and are otherwise read-only.
type Project struct {
	ID          uuid.UUID `json:"id"`
	TeamspaceID uuid.UUID `json:"teamspace_id"`
	Name        string    `json:"name"`

	// RootProjectID links a published snapshot back to its draft.
	RootProjectID *uuid.UUID `json:"root_project_id,omitempty"`

	// IsDirty is true once a draft has changes that postdate its last
	// publish. Always false on published snapshots.
	IsDirty bool `json:"is_dirty"`

	// SubmissionsDatasetID is the dataset that collects form responses.
	// Every project owns one; it starts with no columns.
	SubmissionsDatasetID uuid.UUID `json:"submissions_dataset_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDraft reports whether the project is a root draft rather than a
// published snapshot.
func (p *Project) IsDraft() bool {
	return p.RootProjectID == nil
}
