package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BlobOwner identifies which kind of entity a blob hangs off.
type BlobOwner string

const (
	BlobOwnerProject BlobOwner = "project"
	BlobOwnerRow     BlobOwner = "row"
)

// Blob is an attached file or image. The bytes live in external object
// storage; the engine stores the URL and keeps a dense position among the
// owner's blobs via the position ledger. Exactly one of ProjectID/RowID
// is set.
type Blob struct {
	ID        uuid.UUID  `json:"id"`
	URL       string     `json:"url"`
	MimeType  string     `json:"mime_type"`
	SizeBytes int64      `json:"size_bytes"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
	RowID     *uuid.UUID `json:"row_id,omitempty"`
	Position  int        `json:"position"`
	CreatedAt time.Time  `json:"created_at"`
}

// Owner returns the blob's owner kind and id.
func (b *Blob) Owner() (BlobOwner, uuid.UUID, error) {
	switch {
	case b.ProjectID != nil && b.RowID == nil:
		return BlobOwnerProject, *b.ProjectID, nil
	case b.RowID != nil && b.ProjectID == nil:
		return BlobOwnerRow, *b.RowID, nil
	}
	return "", uuid.Nil, fmt.Errorf("blob %s must have exactly one owner", b.ID)
}
