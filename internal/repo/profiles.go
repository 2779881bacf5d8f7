package repo

import (
	"context"
	"database/sql"

	"buildmatch/internal/domain"
)

func (r Repo) InsertOrg(ctx context.Context, tx *sql.Tx, o domain.Organization) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO organizations(id,name,created_at) VALUES (?,?,?)`, o.ID, o.Name, o.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r Repo) GetOrg(ctx context.Context, id string) (domain.Organization, error) {
	var o domain.Organization
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM organizations WHERE id=?`, id).Scan(&o.ID, &o.Name, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(id,email,full_name,role,developer_org_id,professional_profile_id,created_at) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.FullName, string(u.Role), nullableStringPtr(u.DeveloperOrgID), nullableStringPtr(u.ProfessionalProfileID), u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func scanUser(scan func(...any) error) (domain.User, error) {
	var u domain.User
	var org, profile sql.NullString
	err := scan(&u.ID, &u.Email, &u.FullName, &u.Role, &org, &profile, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	if org.Valid {
		u.DeveloperOrgID = &org.String
	}
	if profile.Valid {
		u.ProfessionalProfileID = &profile.String
	}
	return u, nil
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,email,full_name,role,developer_org_id,professional_profile_id,created_at FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

func (r Repo) SetUserProfile(ctx context.Context, tx *sql.Tx, userID, profileID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET professional_profile_id=? WHERE id=?`, profileID, userID)
	return err
}

func (r Repo) InsertProfile(ctx context.Context, tx *sql.Tx, p domain.ProfessionalProfile) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO professional_profiles(id,user_id,company_name,bio,rating_average,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.UserID, nullable(p.CompanyName), nullable(p.Bio), p.RatingAverage, p.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r Repo) GetProfile(ctx context.Context, id string) (domain.ProfessionalProfile, error) {
	var p domain.ProfessionalProfile
	var company, bio sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,user_id,company_name,bio,rating_average,created_at FROM professional_profiles WHERE id=?`, id).
		Scan(&p.ID, &p.UserID, &company, &bio, &p.RatingAverage, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if company.Valid {
		p.CompanyName = company.String
	}
	if bio.Valid {
		p.Bio = bio.String
	}
	return p, nil
}

// ListProfiles returns the professional directory, best rated first.
func (r Repo) ListProfiles(ctx context.Context) ([]domain.ProfessionalProfile, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,COALESCE(company_name,''),COALESCE(bio,''),rating_average,created_at
FROM professional_profiles ORDER BY rating_average DESC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProfessionalProfile
	for rows.Next() {
		var p domain.ProfessionalProfile
		if err := rows.Scan(&p.ID, &p.UserID, &p.CompanyName, &p.Bio, &p.RatingAverage, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) InsertQualification(ctx context.Context, tx *sql.Tx, q domain.Qualification) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO qualifications(id,profile_id,title,authority,credential_id,created_at) VALUES (?,?,?,?,?,?)`,
		q.ID, q.ProfileID, q.Title, nullableStringPtr(q.Authority), nullableStringPtr(q.CredentialID), q.CreatedAt)
	return err
}

func (r Repo) DeleteQualification(ctx context.Context, tx *sql.Tx, id, profileID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM qualifications WHERE id=? AND profile_id=?`, id, profileID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// QualificationsOwned resolves ids against one profile. Ids belonging to a
// different profile simply do not come back.
func (r Repo) QualificationsOwned(ctx context.Context, profileID string, ids []string) ([]domain.Qualification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id,profile_id,title,authority,credential_id,created_at FROM qualifications WHERE profile_id=? AND id IN (?` + placeholders(len(ids)-1) + `) ORDER BY created_at ASC`
	args := make([]any, 0, len(ids)+1)
	args = append(args, profileID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Qualification
	for rows.Next() {
		var q domain.Qualification
		var authority, credential sql.NullString
		if err := rows.Scan(&q.ID, &q.ProfileID, &q.Title, &authority, &credential, &q.CreatedAt); err != nil {
			return nil, err
		}
		if authority.Valid {
			q.Authority = &authority.String
		}
		if credential.Valid {
			q.CredentialID = &credential.String
		}
		res = append(res, q)
	}
	return res, rows.Err()
}

func (r Repo) InsertPortfolioItem(ctx context.Context, tx *sql.Tx, p domain.PortfolioItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO portfolio_items(id,profile_id,title,description,location,units,created_at) VALUES (?,?,?,?,?,?,?)`,
		p.ID, p.ProfileID, p.Title, nullable(p.Description), nullableStringPtr(p.Location), nullableIntPtr(p.Units), p.CreatedAt)
	return err
}

func (r Repo) DeletePortfolioItem(ctx context.Context, tx *sql.Tx, id, profileID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM portfolio_items WHERE id=? AND profile_id=?`, id, profileID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PortfolioOwned resolves portfolio item ids against one profile, dropping
// foreign ids silently.
func (r Repo) PortfolioOwned(ctx context.Context, profileID string, ids []string) ([]domain.PortfolioItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id,profile_id,title,COALESCE(description,''),location,units,created_at FROM portfolio_items WHERE profile_id=? AND id IN (?` + placeholders(len(ids)-1) + `) ORDER BY created_at ASC`
	args := make([]any, 0, len(ids)+1)
	args = append(args, profileID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PortfolioItem
	for rows.Next() {
		var p domain.PortfolioItem
		var location sql.NullString
		var units sql.NullInt64
		if err := rows.Scan(&p.ID, &p.ProfileID, &p.Title, &p.Description, &location, &units, &p.CreatedAt); err != nil {
			return nil, err
		}
		if location.Valid {
			p.Location = &location.String
		}
		if units.Valid {
			n := int(units.Int64)
			p.Units = &n
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func placeholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ",?"
	}
	return out
}
