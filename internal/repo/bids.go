package repo

import (
	"context"
	"database/sql"

	"buildmatch/internal/domain"
)

// InsertBid persists a bid, relying on the UNIQUE(project_id,
// professional_id) index for the at-most-one-bid guarantee. A violation maps
// to ErrConflict so races surface to exactly one caller.
func (r Repo) InsertBid(ctx context.Context, tx *sql.Tx, b domain.Bid) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO bids(id,project_id,professional_id,status,proposal_text,submitted_at) VALUES (?,?,?,?,?,?)`,
		b.ID, b.ProjectID, b.ProfessionalID, string(b.Status), b.ProposalText, b.SubmittedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r Repo) GetBid(ctx context.Context, id string) (domain.Bid, error) {
	var b domain.Bid
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,professional_id,status,proposal_text,submitted_at FROM bids WHERE id=?`, id).
		Scan(&b.ID, &b.ProjectID, &b.ProfessionalID, &b.Status, &b.ProposalText, &b.SubmittedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) GetBidByPair(ctx context.Context, projectID, professionalID string) (domain.Bid, error) {
	var b domain.Bid
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,professional_id,status,proposal_text,submitted_at FROM bids WHERE project_id=? AND professional_id=?`,
		projectID, professionalID).
		Scan(&b.ID, &b.ProjectID, &b.ProfessionalID, &b.Status, &b.ProposalText, &b.SubmittedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) CountBids(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM bids WHERE project_id=?`, projectID).Scan(&n)
	return n, err
}
