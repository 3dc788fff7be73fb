package models

import (
	"time"

	"github.com/google/uuid"
)

// Teamspace is the organizational owner of datasets and projects.
// Membership and billing are managed outside the engine; only the row
// needed for ownership and row-level scoping lives here.
type Teamspace struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
