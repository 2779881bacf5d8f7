package repo

import (
	"context"
	"database/sql"

	"buildmatch/internal/domain"
)

const projectColumns = `id,org_id,title,COALESCE(description,''),site_address,local_authority,units_planned,budget_estimate,current_stage,created_at`

func scanProject(scan func(...any) error) (domain.Project, error) {
	var p domain.Project
	var site, authority sql.NullString
	var units, budget sql.NullInt64
	err := scan(&p.ID, &p.OrgID, &p.Title, &p.Description, &site, &authority, &units, &budget, &p.CurrentStage, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if site.Valid {
		p.SiteAddress = &site.String
	}
	if authority.Valid {
		p.LocalAuthority = &authority.String
	}
	if units.Valid {
		n := int(units.Int64)
		p.UnitsPlanned = &n
	}
	if budget.Valid {
		n := int(budget.Int64)
		p.BudgetEstimate = &n
	}
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,org_id,title,description,site_address,local_authority,units_planned,budget_estimate,current_stage,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.OrgID, p.Title, nullable(p.Description), nullableStringPtr(p.SiteAddress), nullableStringPtr(p.LocalAuthority),
		nullableIntPtr(p.UnitsPlanned), nullableIntPtr(p.BudgetEstimate), string(p.CurrentStage), p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

// ListProjectsByOrg returns an organization's projects, newest first.
func (r Repo) ListProjectsByOrg(ctx context.Context, orgID string) ([]domain.Project, error) {
	return r.listProjects(ctx, `SELECT `+projectColumns+` FROM projects WHERE org_id=? ORDER BY created_at DESC, id DESC`, orgID)
}

// ListProjects returns every project, newest first. Professionals browse
// the full catalogue when deciding where to bid.
func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return r.listProjects(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id DESC`)
}

func (r Repo) listProjects(ctx context.Context, query string, args ...any) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) SetProjectStage(ctx context.Context, tx *sql.Tx, id string, stage domain.RIBAStage) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET current_stage=? WHERE id=?`, string(stage), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ProjectCounts(ctx context.Context, projectID string) (domain.ProjectCounts, error) {
	var c domain.ProjectCounts
	err := r.DB.QueryRowContext(ctx, `SELECT
(SELECT count(*) FROM tasks WHERE project_id=?),
(SELECT count(*) FROM bids WHERE project_id=?)`, projectID, projectID).Scan(&c.Tasks, &c.Bids)
	return c, err
}
