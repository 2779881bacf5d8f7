package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"buildmatch/internal/domain"
	"buildmatch/internal/events"
	"buildmatch/internal/policy"
)

// Nominate appoints a professional to a project's private staffing roster.
func (e Engine) Nominate(ctx context.Context, p policy.Principal, projectID, professionalID, roleDescription string) (domain.Nomination, error) {
	if professionalID == "" {
		return domain.Nomination{}, errors.New("professional_id is required")
	}
	if roleDescription == "" {
		return domain.Nomination{}, errors.New("role_description is required")
	}
	proj, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Nomination{}, err
	}
	if err := policy.Require(p, policy.OpNominate, policy.Resource{ProjectOrgID: proj.OrgID}); err != nil {
		return domain.Nomination{}, err
	}
	if _, err := e.Repo.GetProfile(ctx, professionalID); err != nil {
		return domain.Nomination{}, err
	}
	n := domain.Nomination{
		ID:              uuid.New().String(),
		ProjectID:       proj.ID,
		ProfessionalID:  professionalID,
		RoleDescription: roleDescription,
		AppointedAt:     e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Nomination{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertNomination(ctx, tx, n); err != nil {
		return domain.Nomination{}, err
	}
	if err := e.Events.Append(ctx, tx, "nomination.created", n.ProjectID, "nomination", n.ID, p.UserID, events.EventPayload{
		"professional_id":  n.ProfessionalID,
		"role_description": n.RoleDescription,
	}); err != nil {
		return domain.Nomination{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Nomination{}, err
	}
	return n, nil
}

// RemoveNomination deletes a roster entry. The assignment must belong to
// the addressed project; a mismatch rejects the call before any
// authorization or deletion happens.
func (e Engine) RemoveNomination(ctx context.Context, p policy.Principal, projectID, assignmentID string) error {
	n, err := e.Repo.GetNomination(ctx, assignmentID)
	if err != nil {
		return err
	}
	if n.ProjectID != projectID {
		return fmt.Errorf("invalid assignment %s: not in project %s", assignmentID, projectID)
	}
	proj, err := e.Repo.GetProject(ctx, n.ProjectID)
	if err != nil {
		return err
	}
	if err := policy.Require(p, policy.OpRemoveNomination, policy.Resource{ProjectOrgID: proj.OrgID}); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteNomination(ctx, tx, n.ID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "nomination.removed", n.ProjectID, "nomination", n.ID, p.UserID, events.EventPayload{
		"professional_id": n.ProfessionalID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// Roster returns a project's nominations with professional display fields.
// Callers outside the owning organization get a policy denial carrying no
// hint of the roster's size or existence.
func (e Engine) Roster(ctx context.Context, p policy.Principal, projectID string) ([]domain.NominationEntry, error) {
	proj, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := policy.Require(p, policy.OpViewRoster, policy.Resource{ProjectOrgID: proj.OrgID}); err != nil {
		return nil, err
	}
	roster, err := e.Repo.ListRoster(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	if roster == nil {
		roster = []domain.NominationEntry{}
	}
	return roster, nil
}
