package models

import (
	"time"

	"github.com/google/uuid"
)

// LayerType identifies how a layer visualizes its dataset. Point is the
// only type today; the column set a layer references depends on it.
type LayerType string

const (
	LayerTypePoint LayerType = "point"
)

// Valid reports whether t is a known layer type.
func (t LayerType) Valid() bool {
	return t == LayerTypePoint
}

// Layer is a named, typed view over a dataset that can be attached to
// pages. For point layers the column references select which columns
// supply the geometry, title and description.
type Layer struct {
	ID        uuid.UUID `json:"id"`
	DatasetID uuid.UUID `json:"dataset_id"`
	Name      string    `json:"name"`
	Type      LayerType `json:"type"`

	PointColumnID       *uuid.UUID `json:"point_column_id,omitempty"`
	TitleColumnID       *uuid.UUID `json:"title_column_id,omitempty"`
	DescriptionColumnID *uuid.UUID `json:"description_column_id,omitempty"`

	Color *string `json:"color,omitempty"`
	Icon  *string `json:"icon,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LayerToPage attaches a layer to a page at a dense 1-based position
// unique within the page. Positions are written only by the position
// ledger.
type LayerToPage struct {
	LayerID  uuid.UUID `json:"layer_id"`
	PageID   uuid.UUID `json:"page_id"`
	Position int       `json:"position"`

	Layer *Layer `json:"layer,omitempty"` // populated on demand
}
