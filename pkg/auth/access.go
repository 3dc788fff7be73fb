// Package auth defines the access context the engine receives from the
// surrounding API layer. The engine never authenticates; it only checks
// that the pre-validated identity it was handed may touch a teamspace.
//
// The access context is an explicit parameter, not ambient state, so the
// engine stays testable without a fake request environment.
package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AccessContext carries the authenticated subject and the teamspaces it
// may operate on. The API layer builds one per request from its session.
type AccessContext struct {
	// UserID is the authenticated subject.
	UserID uuid.UUID

	// TeamspaceIDs are the teamspaces the subject belongs to.
	TeamspaceIDs []uuid.UUID
}

// CanAccessTeamspace reports whether the subject belongs to the given
// teamspace.
func (a *AccessContext) CanAccessTeamspace(teamspaceID uuid.UUID) bool {
	for _, id := range a.TeamspaceIDs {
		if id == teamspaceID {
			return true
		}
	}
	return false
}

// RequireTeamspace returns an error unless the subject belongs to the
// given teamspace.
func (a *AccessContext) RequireTeamspace(teamspaceID uuid.UUID) error {
	if a == nil {
		return fmt.Errorf("no access context")
	}
	if !a.CanAccessTeamspace(teamspaceID) {
		return fmt.Errorf("user %s has no access to teamspace %s", a.UserID, teamspaceID)
	}
	return nil
}

type contextKey string

const accessContextKey contextKey = "accessContext"

// WithAccess stores the access context in ctx.
func WithAccess(ctx context.Context, access *AccessContext) context.Context {
	return context.WithValue(ctx, accessContextKey, access)
}

// GetAccess retrieves the access context from ctx. Returns nil and false
// if not present.
func GetAccess(ctx context.Context) (*AccessContext, bool) {
	access, ok := ctx.Value(accessContextKey).(*AccessContext)
	return access, ok
}
