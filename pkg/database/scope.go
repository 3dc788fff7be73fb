package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TeamspaceScope wraps a connection pinned to one teamspace. The
// connection has app.current_teamspace_id set for RLS policy evaluation.
type TeamspaceScope struct {
	Conn *pgxpool.Conn
}

// Close resets the teamspace setting and releases the connection to the
// pool. This MUST be called so the setting cannot leak into whichever
// request acquires the connection next.
func (s *TeamspaceScope) Close() {
	if s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_teamspace_id")
	s.Conn.Release()
}

// WithTeamspace acquires a connection and pins it to the teamspace for
// RLS. The returned scope MUST be closed with defer scope.Close().
func (db *DB) WithTeamspace(ctx context.Context, teamspaceID uuid.UUID) (*TeamspaceScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_teamspace_id', $1, false)", teamspaceID.String())
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &TeamspaceScope{Conn: conn}, nil
}

// WithoutTeamspace acquires a connection without teamspace scoping. Use
// this for cross-teamspace maintenance paths and test setup only. The
// returned scope MUST be closed with defer scope.Close().
func (db *DB) WithoutTeamspace(ctx context.Context) (*TeamspaceScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &TeamspaceScope{Conn: conn}, nil
}
