package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapform-hq/mapform-engine/pkg/auth"
	"github.com/mapform-hq/mapform-engine/pkg/database"
)

// TeamspaceHeader names the request header the surrounding API layer
// uses to tell the engine which teamspace the request operates on.
const TeamspaceHeader = "X-Teamspace-ID"

// TeamspaceScope returns middleware that checks the caller's access
// context against the requested teamspace, acquires a teamspace-scoped
// database connection for the request and releases it when the request
// finishes. Handlers downstream read the scope from the request context.
func TeamspaceScope(provider *database.TeamspaceScopeProvider, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			teamspaceID, err := uuid.Parse(r.Header.Get(TeamspaceHeader))
			if err != nil {
				http.Error(w, "missing or invalid teamspace header", http.StatusBadRequest)
				return
			}

			access, ok := auth.GetAccess(r.Context())
			if !ok {
				http.Error(w, "no access context", http.StatusUnauthorized)
				return
			}
			if err := access.RequireTeamspace(teamspaceID); err != nil {
				http.Error(w, "teamspace access denied", http.StatusForbidden)
				return
			}

			ctx, cleanup, err := provider.WithTeamspaceScope(r.Context(), teamspaceID)
			if err != nil {
				logger.Error("failed to acquire teamspace scope",
					zap.String("teamspace_id", teamspaceID.String()),
					zap.Error(err))
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
			defer cleanup()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
