package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"buildmatch/internal/config"
	"buildmatch/internal/db"
	"buildmatch/internal/domain"
	"buildmatch/internal/engine"
	"buildmatch/internal/migrate"
	"buildmatch/internal/policy"
	"buildmatch/internal/repo"
)

// Open opens the workspace database, applies migrations, loads the platform
// config (seeding the default file when absent), and returns a ready engine.
func Open(ctx context.Context, workspace string) (engine.Engine, *sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	if cfg == nil {
		cfg = config.Default("buildmatch")
	}
	return engine.New(conn, cfg), conn, nil
}

// ResolvePrincipal builds the policy principal for a locally addressed user,
// reading the role and linkage columns the auth middleware would otherwise
// take from token claims.
func ResolvePrincipal(ctx context.Context, r repo.Repo, userID string) (policy.Principal, error) {
	if userID == "" {
		return policy.Principal{}, errors.New("user not specified; use --user")
	}
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return policy.Principal{}, fmt.Errorf("user %s not found; seed one with bm user add", userID)
		}
		return policy.Principal{}, err
	}
	p := policy.Principal{
		UserID:   u.ID,
		Role:     u.Role,
		FullName: u.FullName,
		Source:   "local",
	}
	if u.DeveloperOrgID != nil {
		p.OrgID = *u.DeveloperOrgID
	}
	if u.ProfessionalProfileID != nil {
		p.ProfileID = *u.ProfessionalProfileID
	}
	return p, nil
}

// EnsureAdmin makes sure a usable admin identity exists for first-run CLI
// sessions, creating one when the database is empty.
func EnsureAdmin(ctx context.Context, e engine.Engine) (domain.User, error) {
	const seedEmail = "admin@buildmatch.local"
	row := e.DB.QueryRowContext(ctx, `SELECT id FROM users WHERE role='ADMIN' ORDER BY created_at ASC LIMIT 1`)
	var id string
	err := row.Scan(&id)
	if err == nil {
		return e.Repo.GetUser(ctx, id)
	}
	if err != sql.ErrNoRows {
		return domain.User{}, err
	}
	return e.CreateUser(ctx, engine.UserCreateOptions{
		Email:    seedEmail,
		FullName: "Platform Admin",
		Role:     domain.RoleAdmin,
	})
}
