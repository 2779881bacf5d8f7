package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"buildmatch/internal/config"
	"buildmatch/internal/domain"
	"buildmatch/internal/events"
	"buildmatch/internal/policy"
	"buildmatch/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	Title          string
	Description    string
	SiteAddress    *string
	LocalAuthority *string
	UnitsPlanned   *int
	BudgetEstimate *int
}

// CreateProject creates a project owned by the principal's organization.
func (e Engine) CreateProject(ctx context.Context, p policy.Principal, opts ProjectCreateOptions) (domain.Project, error) {
	if err := policy.Require(p, policy.OpCreateProject, policy.Resource{}); err != nil {
		return domain.Project{}, err
	}
	if opts.Title == "" {
		return domain.Project{}, errors.New("title is required")
	}
	proj := domain.Project{
		ID:             uuid.New().String(),
		OrgID:          p.OrgID,
		Title:          opts.Title,
		Description:    opts.Description,
		SiteAddress:    opts.SiteAddress,
		LocalAuthority: opts.LocalAuthority,
		UnitsPlanned:   opts.UnitsPlanned,
		BudgetEstimate: opts.BudgetEstimate,
		CurrentStage:   domain.Stage0,
		CreatedAt:      e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertProject(ctx, tx, proj); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.created", proj.ID, "project", proj.ID, p.UserID, events.EventPayload{
		"title":  proj.Title,
		"org_id": proj.OrgID,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return proj, nil
}

// ProjectView is a project read enriched with child counts and, when the
// caller may see it, the staffing roster. Roster stays nil on DENY so the
// response shape never reveals whether nominations exist.
type ProjectView struct {
	domain.Project
	Counts domain.ProjectCounts
	Roster []domain.NominationEntry
}

func (e Engine) GetProjectView(ctx context.Context, p policy.Principal, projectID string) (ProjectView, error) {
	proj, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return ProjectView{}, err
	}
	counts, err := e.Repo.ProjectCounts(ctx, proj.ID)
	if err != nil {
		return ProjectView{}, err
	}
	view := ProjectView{Project: proj, Counts: counts}
	if policy.Decide(p, policy.OpViewRoster, policy.Resource{ProjectOrgID: proj.OrgID}).Allow {
		roster, err := e.Repo.ListRoster(ctx, proj.ID)
		if err != nil {
			return ProjectView{}, err
		}
		if roster == nil {
			roster = []domain.NominationEntry{}
		}
		view.Roster = roster
	}
	return view, nil
}

// ListProjects scopes the listing by role: developers see their own
// organization's projects, professionals and admins browse everything.
func (e Engine) ListProjects(ctx context.Context, p policy.Principal) ([]domain.Project, error) {
	if p.Role == domain.RoleDeveloper {
		if p.OrgID == "" {
			return nil, nil
		}
		return e.Repo.ListProjectsByOrg(ctx, p.OrgID)
	}
	return e.Repo.ListProjects(ctx)
}

// SetStage moves a project to a delivery stage. Stages are freely
// assignable in either direction.
func (e Engine) SetStage(ctx context.Context, p policy.Principal, projectID string, stage domain.RIBAStage) (domain.Project, error) {
	if !domain.ValidRIBAStage(string(stage)) {
		return domain.Project{}, errors.New("invalid stage")
	}
	proj, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := policy.Require(p, policy.OpSetStage, policy.Resource{ProjectOrgID: proj.OrgID}); err != nil {
		return domain.Project{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.SetProjectStage(ctx, tx, proj.ID, stage); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.stage.changed", proj.ID, "project", proj.ID, p.UserID, events.EventPayload{
		"from": string(proj.CurrentStage),
		"to":   string(stage),
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	proj.CurrentStage = stage
	return proj, nil
}

// ProjectEvents returns the newest audit events for a project. Restricted
// to the owning organization and admins.
func (e Engine) ProjectEvents(ctx context.Context, p policy.Principal, projectID string, limit int) ([]domain.Event, error) {
	proj, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := policy.Require(p, policy.OpViewEvents, policy.Resource{ProjectOrgID: proj.OrgID}); err != nil {
		return nil, err
	}
	return e.Repo.LatestEvents(ctx, limit, proj.ID, "")
}
