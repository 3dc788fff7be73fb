package database

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// TeamspaceScopeKey is the context key for the teamspace-scoped
	// database connection.
	TeamspaceScopeKey contextKey = "teamspaceScope"
)

// GetTeamspaceScope retrieves the teamspace-scoped database connection
// from context. Returns nil and false if not present.
func GetTeamspaceScope(ctx context.Context) (*TeamspaceScope, bool) {
	scope, ok := ctx.Value(TeamspaceScopeKey).(*TeamspaceScope)
	return scope, ok
}

// SetTeamspaceScope stores the teamspace-scoped database connection in
// context.
func SetTeamspaceScope(ctx context.Context, scope *TeamspaceScope) context.Context {
	return context.WithValue(ctx, TeamspaceScopeKey, scope)
}

// TeamspaceScopeProvider creates teamspace-scoped contexts for engine
// operations. The API layer calls this once per request after its access
// check passes.
type TeamspaceScopeProvider struct {
	db *DB
}

// NewTeamspaceScopeProvider creates a TeamspaceScopeProvider for the
// given database.
func NewTeamspaceScopeProvider(db *DB) *TeamspaceScopeProvider {
	return &TeamspaceScopeProvider{db: db}
}

// WithTeamspaceScope returns a context with teamspace scope set. The
// cleanup function must be called when the scope is no longer needed.
func (p *TeamspaceScopeProvider) WithTeamspaceScope(ctx context.Context, teamspaceID uuid.UUID) (context.Context, func(), error) {
	scope, err := p.db.WithTeamspace(ctx, teamspaceID)
	if err != nil {
		return nil, nil, err
	}
	scopedCtx := SetTeamspaceScope(ctx, scope)
	return scopedCtx, func() { scope.Close() }, nil
}
