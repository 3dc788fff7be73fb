package models

import (
	"time"

	"github.com/google/uuid"
)

// MapView is the camera state a page opens with.
type MapView struct {
	Center  LngLat  `json:"center"`
	Zoom    float64 `json:"zoom"`
	Pitch   float64 `json:"pitch"`
	Bearing float64 `json:"bearing"`
}

// Page is an ordered unit of a project. Position is dense and 1-based
// within the project and is written only by the position ledger.
type Page struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Position  int       `json:"position"`
	Name      string    `json:"name"`
	View      MapView   `json:"view"`

	// Content is the page's form/document body, opaque to the engine.
	Content []byte `json:"content,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	Layers []LayerToPage `json:"layers,omitempty"` // ordered, populated on demand
}
