package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestBlobOwner(t *testing.T) {
	projectID := uuid.New()
	rowID := uuid.New()

	blob := &Blob{ID: uuid.New(), ProjectID: &projectID}
	owner, id, err := blob.Owner()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner != BlobOwnerProject || id != projectID {
		t.Errorf("got %s %s", owner, id)
	}

	blob = &Blob{ID: uuid.New(), RowID: &rowID}
	owner, id, err = blob.Owner()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner != BlobOwnerRow || id != rowID {
		t.Errorf("got %s %s", owner, id)
	}

	if _, _, err := (&Blob{ID: uuid.New()}).Owner(); err == nil {
		t.Error("expected error for ownerless blob")
	}
	if _, _, err := (&Blob{ID: uuid.New(), ProjectID: &projectID, RowID: &rowID}).Owner(); err == nil {
		t.Error("expected error for doubly-owned blob")
	}
}
