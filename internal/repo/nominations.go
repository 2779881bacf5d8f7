package repo

import (
	"context"
	"database/sql"

	"buildmatch/internal/domain"
)

// InsertNomination persists a staffing nomination. The UNIQUE(project_id,
// professional_id) index closes the duplicate window; a violation maps to
// ErrConflict.
func (r Repo) InsertNomination(ctx context.Context, tx *sql.Tx, n domain.Nomination) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO project_professionals(id,project_id,professional_id,role_description,appointed_at) VALUES (?,?,?,?,?)`,
		n.ID, n.ProjectID, n.ProfessionalID, n.RoleDescription, n.AppointedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r Repo) GetNomination(ctx context.Context, id string) (domain.Nomination, error) {
	var n domain.Nomination
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,professional_id,role_description,appointed_at FROM project_professionals WHERE id=?`, id).
		Scan(&n.ID, &n.ProjectID, &n.ProfessionalID, &n.RoleDescription, &n.AppointedAt)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	return n, err
}

func (r Repo) DeleteNomination(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM project_professionals WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRoster returns a project's nominations with professional display
// fields embedded. Callers gate access; this query does not.
func (r Repo) ListRoster(ctx context.Context, projectID string) ([]domain.NominationEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT n.id,n.project_id,n.professional_id,n.role_description,n.appointed_at,COALESCE(pp.company_name,''),u.full_name
FROM project_professionals n
JOIN professional_profiles pp ON pp.id=n.professional_id
JOIN users u ON u.id=pp.user_id
WHERE n.project_id=?
ORDER BY n.appointed_at ASC, n.id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.NominationEntry
	for rows.Next() {
		var e domain.NominationEntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.ProfessionalID, &e.RoleDescription, &e.AppointedAt, &e.CompanyName, &e.FullName); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
