// Package models contains domain types for mapform-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Dataset is a named collection of columns and rows owned by exactly one
// teamspace. Deleting the owner cascades to the dataset and everything
// under it.
type Dataset struct {
	ID          uuid.UUID `json:"id"`
	TeamspaceID uuid.UUID `json:"teamspace_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Columns []Column `json:"columns,omitempty"` // populated on demand
}

// Row is a container of cells, at most one per column defined on the
// dataset. A missing cell means "no value", never an error.
type Row struct {
	ID        uuid.UUID `json:"id"`
	DatasetID uuid.UUID `json:"dataset_id"`
	CreatedAt time.Time `json:"created_at"`

	Cells []Cell `json:"cells,omitempty"` // populated on demand
}

// CellForColumn returns the row's cell for the given column, if present.
func (r *Row) CellForColumn(columnID uuid.UUID) (*Cell, bool) {
	for i := range r.Cells {
		if r.Cells[i].ColumnID == columnID {
			return &r.Cells[i], true
		}
	}
	return nil, false
}
