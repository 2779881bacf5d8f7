package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"buildmatch/internal/domain"
	"buildmatch/internal/events"
	"buildmatch/internal/policy"
)

// BidSubmitOptions carry the tender application form. Qualification and
// portfolio ids are resolved against the caller's own profile; foreign ids
// are dropped without error.
type BidSubmitOptions struct {
	ProjectID        string
	ProposalText     string
	FeeProposal      string
	Methodology      string
	Timeline         string
	QualificationIDs []string
	PortfolioIDs     []string
}

// SubmitBid records a tender application. The proposal is assembled once at
// submission time and stored as the permanent record; later edits to the
// referenced qualifications or portfolio items do not touch it. The
// (project, professional) unique index guarantees at most one bid per pair.
func (e Engine) SubmitBid(ctx context.Context, p policy.Principal, opts BidSubmitOptions) (domain.Bid, error) {
	if err := policy.Require(p, policy.OpSubmitBid, policy.Resource{}); err != nil {
		return domain.Bid{}, err
	}
	if opts.ProposalText == "" {
		return domain.Bid{}, errors.New("proposal_text is required")
	}
	if opts.FeeProposal == "" {
		return domain.Bid{}, errors.New("fee_proposal is required")
	}
	if opts.Methodology == "" {
		return domain.Bid{}, errors.New("methodology is required")
	}
	if opts.Timeline == "" {
		return domain.Bid{}, errors.New("timeline is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Bid{}, err
	}
	proposal, err := e.assembleProposal(ctx, p.ProfileID, opts)
	if err != nil {
		return domain.Bid{}, err
	}
	b := domain.Bid{
		ID:             uuid.New().String(),
		ProjectID:      opts.ProjectID,
		ProfessionalID: p.ProfileID,
		Status:         domain.BidSubmitted,
		ProposalText:   proposal,
		SubmittedAt:    e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Bid{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertBid(ctx, tx, b); err != nil {
		return domain.Bid{}, err
	}
	if err := e.Events.Append(ctx, tx, "bid.submitted", b.ProjectID, "bid", b.ID, p.UserID, events.EventPayload{
		"professional_id": b.ProfessionalID,
	}); err != nil {
		return domain.Bid{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Bid{}, err
	}
	return b, nil
}

const noneSelected = "None selected"

// assembleProposal renders the full proposal text with section markers.
// Empty selections render the explicit marker so the snapshot stays
// self-describing after profile records change or disappear.
func (e Engine) assembleProposal(ctx context.Context, profileID string, opts BidSubmitOptions) (string, error) {
	quals, err := e.Repo.QualificationsOwned(ctx, profileID, opts.QualificationIDs)
	if err != nil {
		return "", err
	}
	items, err := e.Repo.PortfolioOwned(ctx, profileID, opts.PortfolioIDs)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(opts.ProposalText)
	b.WriteString("\n\n--- FEE PROPOSAL ---\n")
	b.WriteString(opts.FeeProposal)
	b.WriteString("\n\n--- METHODOLOGY & APPROACH ---\n")
	b.WriteString(opts.Methodology)
	b.WriteString("\n\n--- PROPOSED TIMELINE ---\n")
	b.WriteString(opts.Timeline)
	b.WriteString("\n\n--- SELECTED QUALIFICATIONS ---\n")
	b.WriteString(renderQualifications(quals))
	b.WriteString("\n\n--- SELECTED PORTFOLIO ITEMS ---\n")
	b.WriteString(renderPortfolio(items))
	return strings.TrimSpace(b.String()), nil
}

func renderQualifications(quals []domain.Qualification) string {
	if len(quals) == 0 {
		return noneSelected
	}
	lines := make([]string, 0, len(quals))
	for _, q := range quals {
		line := "- " + q.Title
		if q.Authority != nil && *q.Authority != "" {
			line += fmt.Sprintf(" (%s)", *q.Authority)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderPortfolio(items []domain.PortfolioItem) string {
	if len(items) == 0 {
		return noneSelected
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		line := "- " + it.Title
		if it.Location != nil && *it.Location != "" {
			line += fmt.Sprintf(" (%s)", *it.Location)
		}
		if it.Units != nil && *it.Units > 0 {
			line += fmt.Sprintf(", %d units", *it.Units)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// CountBids is the public half of the tender surface: anyone may see how
// many applications a project has drawn, never their contents.
func (e Engine) CountBids(ctx context.Context, projectID string) (int, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return 0, err
	}
	return e.Repo.CountBids(ctx, projectID)
}
