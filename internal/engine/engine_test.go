package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"buildmatch/internal/config"
	"buildmatch/internal/db"
	"buildmatch/internal/domain"
	"buildmatch/internal/engine"
	"buildmatch/internal/migrate"
	"buildmatch/internal/policy"
	"buildmatch/internal/repo"
)

type testEnv struct {
	Engine    engine.Engine
	Ctx       context.Context
	Developer policy.Principal
	Pro       policy.Principal
	Admin     policy.Principal
	Project   domain.Project
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default("test-platform"))
	eng.Now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	org, err := eng.CreateOrganization(ctx, "Northgate Homes")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	dev, err := eng.CreateUser(ctx, engine.UserCreateOptions{
		Email: "dev@northgate.test", FullName: "Dana Developer", Role: domain.RoleDeveloper, OrgID: org.ID,
	})
	if err != nil {
		t.Fatalf("create developer: %v", err)
	}
	pro, err := eng.CreateUser(ctx, engine.UserCreateOptions{
		Email: "arch@studio.test", FullName: "Pat Architect", Role: domain.RoleProfessional, CompanyName: "Studio North",
	})
	if err != nil {
		t.Fatalf("create professional: %v", err)
	}
	admin, err := eng.CreateUser(ctx, engine.UserCreateOptions{
		Email: "ops@platform.test", FullName: "Alex Admin", Role: domain.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	devPrincipal := policy.Principal{UserID: dev.ID, Role: domain.RoleDeveloper, OrgID: org.ID}
	proPrincipal := policy.Principal{UserID: pro.ID, Role: domain.RoleProfessional, ProfileID: *pro.ProfessionalProfileID}
	adminPrincipal := policy.Principal{UserID: admin.ID, Role: domain.RoleAdmin}

	proj, err := eng.CreateProject(ctx, devPrincipal, engine.ProjectCreateOptions{
		Title: "Riverside Quarter", Description: "42 unit residential scheme",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return testEnv{
		Engine:    eng,
		Ctx:       ctx,
		Developer: devPrincipal,
		Pro:       proPrincipal,
		Admin:     adminPrincipal,
		Project:   proj,
	}
}

func TestCreateTaskAssignsSequentialOrderIndexes(t *testing.T) {
	env := newTestEnv(t)
	for want := 0; want < 3; want++ {
		task, err := env.Engine.CreateTask(env.Ctx, env.Developer, engine.TaskCreateOptions{
			ProjectID: env.Project.ID,
			Title:     "Survey",
		})
		if err != nil {
			t.Fatalf("create task %d: %v", want, err)
		}
		if task.OrderIndex != want {
			t.Fatalf("task %d: order index = %d, want %d", want, task.OrderIndex, want)
		}
	}
	// A different partition starts from zero again.
	task, err := env.Engine.CreateTask(env.Ctx, env.Developer, engine.TaskCreateOptions{
		ProjectID: env.Project.ID,
		Title:     "Planning application",
		Status:    domain.StatusTodo,
	})
	if err != nil {
		t.Fatal(err)
	}
	if task.OrderIndex != 0 {
		t.Fatalf("new partition order index = %d, want 0", task.OrderIndex)
	}
}

func TestConcurrentCreatesNeverShareAnIndex(t *testing.T) {
	env := newTestEnv(t)
	const n = 8
	var wg sync.WaitGroup
	indexes := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := env.Engine.CreateTask(env.Ctx, env.Developer, engine.TaskCreateOptions{
				ProjectID: env.Project.ID,
				Title:     "parallel",
			})
			if err != nil {
				t.Errorf("create task: %v", err)
				return
			}
			indexes <- task.OrderIndex
		}()
	}
	wg.Wait()
	close(indexes)
	seen := map[int]bool{}
	for idx := range indexes {
		if seen[idx] {
			t.Fatalf("order index %d assigned twice", idx)
		}
		seen[idx] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d distinct indexes, want %d", len(seen), n)
	}
}

func TestMoveTaskAppliesPlacementVerbatim(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.Engine.CreateTask(env.Ctx, env.Developer, engine.TaskCreateOptions{ProjectID: env.Project.ID, Title: "a"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := env.Engine.CreateTask(env.Ctx, env.Developer, engine.TaskCreateOptions{ProjectID: env.Project.ID, Title: "b"})
	if err != nil {
		t.Fatal(err)
	}

	status := domain.StatusInProgress
	idx := 5
	moved, err := env.Engine.MoveTask(env.Ctx, env.Developer, engine.TaskMoveOptions{
		ProjectID:  env.Project.ID,
		TaskID:     a.ID,
		Status:     &status,
		OrderIndex: &idx,
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Status != domain.StatusInProgress || moved.OrderIndex != 5 {
		t.Fatalf("got status=%s index=%d", moved.Status, moved.OrderIndex)
	}
	// The sibling keeps its index untouched.
	got, err := env.Engine.Repo.GetTask(env.Ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.OrderIndex != b.OrderIndex {
		t.Fatalf("sibling renumbered: %d -> %d", b.OrderIndex, got.OrderIndex)
	}
	// DONE is not terminal.
	done := domain.StatusDone
	if _, err := env.Engine.MoveTask(env.Ctx, env.Developer, engine.TaskMoveOptions{ProjectID: env.Project.ID, TaskID: a.ID, Status: &done}); err != nil {
		t.Fatalf("to done: %v", err)
	}
	back := domain.StatusBacklog
	if _, err := env.Engine.MoveTask(env.Ctx, env.Developer, engine.TaskMoveOptions{ProjectID: env.Project.ID, TaskID: a.ID, Status: &back}); err != nil {
		t.Fatalf("done to backlog: %v", err)
	}
}

func TestMoveTaskRejectsForeignProject(t *testing.T) {
	env := newTestEnv(t)
	other, err := env.Engine.CreateProject(env.Ctx, env.Developer, engine.ProjectCreateOptions{Title: "Other"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := env.Engine.CreateTask(env.Ctx, env.Developer, engine.TaskCreateOptions{ProjectID: other.ID, Title: "elsewhere"})
	if err != nil {
		t.Fatal(err)
	}
	idx := 0
	_, err = env.Engine.MoveTask(env.Ctx, env.Developer, engine.TaskMoveOptions{
		ProjectID:  env.Project.ID,
		TaskID:     task.ID,
		OrderIndex: &idx,
	})
	if err == nil || !strings.Contains(err.Error(), "not in project") {
		t.Fatalf("expected project mismatch error, got %v", err)
	}
}

func TestReindexPartition(t *testing.T) {
	env := newTestEnv(t)
	var ids []string
	for i := 0; i < 3; i++ {
		task, err := env.Engine.CreateTask(env.Ctx, env.Developer, engine.TaskCreateOptions{ProjectID: env.Project.ID, Title: "t"})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, task.ID)
	}
	reversed := []string{ids[2], ids[1], ids[0]}
	if err := env.Engine.ReindexPartition(env.Ctx, env.Developer, env.Project.ID, domain.StatusBacklog, reversed); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	for want, id := range reversed {
		task, err := env.Engine.Repo.GetTask(env.Ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if task.OrderIndex != want {
			t.Fatalf("task %s: index %d, want %d", id, task.OrderIndex, want)
		}
	}
	// Foreign ids reject the whole call.
	err := env.Engine.ReindexPartition(env.Ctx, env.Developer, env.Project.ID, domain.StatusBacklog, []string{ids[0], ids[1], "nope"})
	if err == nil {
		t.Fatal("expected rejection for foreign id")
	}
}

func TestSubmitBidIsUniquePerProjectAndProfessional(t *testing.T) {
	env := newTestEnv(t)
	opts := engine.BidSubmitOptions{
		ProjectID:    env.Project.ID,
		ProposalText: "We would love to design this.",
		FeeProposal:  "4.5% of build cost",
		Methodology:  "RIBA plan of work",
		Timeline:     "12 months",
	}
	if _, err := env.Engine.SubmitBid(env.Ctx, env.Pro, opts); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	_, err := env.Engine.SubmitBid(env.Ctx, env.Pro, opts)
	if !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("second bid: got %v, want conflict", err)
	}
	n, err := env.Engine.CountBids(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("bid count = %d, want 1", n)
	}
}

func TestProposalSnapshotRendersSelections(t *testing.T) {
	env := newTestEnv(t)
	authority := "ARB"
	qual, err := env.Engine.AddQualification(env.Ctx, env.Pro, "Chartered Architect", &authority, nil)
	if err != nil {
		t.Fatal(err)
	}
	location := "Leeds"
	units := 12
	item, err := env.Engine.AddPortfolioItem(env.Ctx, env.Pro, engine.PortfolioItemOptions{
		Title:    "Mill Lane Terrace",
		Location: &location,
		Units:    &units,
	})
	if err != nil {
		t.Fatal(err)
	}
	bid, err := env.Engine.SubmitBid(env.Ctx, env.Pro, engine.BidSubmitOptions{
		ProjectID:        env.Project.ID,
		ProposalText:     "Narrative",
		FeeProposal:      "Fixed fee",
		Methodology:      "Stage gates",
		Timeline:         "9 months",
		QualificationIDs: []string{qual.ID},
		PortfolioIDs:     []string{item.ID},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.Contains(bid.ProposalText, "- Chartered Architect (ARB)") {
		t.Fatalf("qualification missing from snapshot:\n%s", bid.ProposalText)
	}
	if !strings.Contains(bid.ProposalText, "- Mill Lane Terrace (Leeds), 12 units") {
		t.Fatalf("portfolio item missing from snapshot:\n%s", bid.ProposalText)
	}

	if err := env.Engine.RemovePortfolioItem(env.Ctx, env.Pro, item.ID); err != nil {
		t.Fatalf("remove portfolio item: %v", err)
	}
	owned, err := env.Engine.Repo.PortfolioOwned(env.Ctx, env.Pro.ProfileID, []string{item.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 0 {
		t.Fatalf("portfolio item still owned after removal: %+v", owned)
	}
	stored, err := env.Engine.Repo.GetBid(env.Ctx, bid.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stored.ProposalText, "- Mill Lane Terrace (Leeds), 12 units") {
		t.Fatalf("snapshot lost portfolio line after removal:\n%s", stored.ProposalText)
	}
}

func TestProposalSnapshotSurvivesQualificationDeletion(t *testing.T) {
	env := newTestEnv(t)
	qual, err := env.Engine.AddQualification(env.Ctx, env.Pro, "RIBA Member", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	bid, err := env.Engine.SubmitBid(env.Ctx, env.Pro, engine.BidSubmitOptions{
		ProjectID:        env.Project.ID,
		ProposalText:     "Narrative",
		FeeProposal:      "Fee",
		Methodology:      "Method",
		Timeline:         "Timeline",
		QualificationIDs: []string{qual.ID},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.RemoveQualification(env.Ctx, env.Pro, qual.ID); err != nil {
		t.Fatalf("remove qualification: %v", err)
	}
	stored, err := env.Engine.Repo.GetBid(env.Ctx, bid.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ProposalText != bid.ProposalText {
		t.Fatal("snapshot changed after qualification deletion")
	}
	if !strings.Contains(stored.ProposalText, "- RIBA Member") {
		t.Fatalf("deleted qualification no longer rendered:\n%s", stored.ProposalText)
	}
}

func TestForeignQualificationIDsAreDropped(t *testing.T) {
	env := newTestEnv(t)
	other, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		Email: "qs@other.test", FullName: "Quinn Surveyor", Role: domain.RoleProfessional,
	})
	if err != nil {
		t.Fatal(err)
	}
	otherPrincipal := policy.Principal{UserID: other.ID, Role: domain.RoleProfessional, ProfileID: *other.ProfessionalProfileID}
	foreign, err := env.Engine.AddQualification(env.Ctx, otherPrincipal, "RICS Member", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	bid, err := env.Engine.SubmitBid(env.Ctx, env.Pro, engine.BidSubmitOptions{
		ProjectID:        env.Project.ID,
		ProposalText:     "Narrative",
		FeeProposal:      "Fee",
		Methodology:      "Method",
		Timeline:         "Timeline",
		QualificationIDs: []string{foreign.ID},
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(bid.ProposalText, "RICS Member") {
		t.Fatalf("foreign qualification leaked into snapshot:\n%s", bid.ProposalText)
	}
	if !strings.Contains(bid.ProposalText, "--- SELECTED QUALIFICATIONS ---\nNone selected") {
		t.Fatalf("expected empty qualification marker:\n%s", bid.ProposalText)
	}
	if !strings.Contains(bid.ProposalText, "--- SELECTED PORTFOLIO ITEMS ---\nNone selected") {
		t.Fatalf("expected empty portfolio marker:\n%s", bid.ProposalText)
	}
}

func TestNominationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	n, err := env.Engine.Nominate(env.Ctx, env.Developer, env.Project.ID, env.Pro.ProfileID, "Lead Architect")
	if err != nil {
		t.Fatalf("nominate: %v", err)
	}
	// Duplicate pair conflicts.
	if _, err := env.Engine.Nominate(env.Ctx, env.Developer, env.Project.ID, env.Pro.ProfileID, "Again"); !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("duplicate nomination: got %v, want conflict", err)
	}
	roster, err := env.Engine.Roster(env.Ctx, env.Developer, env.Project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(roster) != 1 || roster[0].FullName != "Pat Architect" {
		t.Fatalf("roster = %+v", roster)
	}
	if err := env.Engine.RemoveNomination(env.Ctx, env.Developer, env.Project.ID, n.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	roster, err = env.Engine.Roster(env.Ctx, env.Developer, env.Project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(roster) != 0 {
		t.Fatalf("roster not empty after removal: %+v", roster)
	}
}

func TestRemoveNominationRejectsForeignProject(t *testing.T) {
	env := newTestEnv(t)
	n, err := env.Engine.Nominate(env.Ctx, env.Developer, env.Project.ID, env.Pro.ProfileID, "Lead Architect")
	if err != nil {
		t.Fatal(err)
	}
	other, err := env.Engine.CreateProject(env.Ctx, env.Developer, engine.ProjectCreateOptions{Title: "Other"})
	if err != nil {
		t.Fatal(err)
	}
	err = env.Engine.RemoveNomination(env.Ctx, env.Developer, other.ID, n.ID)
	if err == nil || !strings.Contains(err.Error(), "not in project") {
		t.Fatalf("expected project mismatch, got %v", err)
	}
	// Nothing was deleted.
	roster, err := env.Engine.Roster(env.Ctx, env.Developer, env.Project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(roster) != 1 {
		t.Fatalf("nomination deleted despite mismatch: %+v", roster)
	}
}

func TestRosterVisibility(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.Nominate(env.Ctx, env.Developer, env.Project.ID, env.Pro.ProfileID, "Lead Architect"); err != nil {
		t.Fatal(err)
	}
	// A professional outside the org is denied identically whether or not
	// nominations exist.
	_, errWith := env.Engine.Roster(env.Ctx, env.Pro, env.Project.ID)
	var fe policy.ForbiddenError
	if !errors.As(errWith, &fe) {
		t.Fatalf("expected forbidden, got %v", errWith)
	}
	empty, err := env.Engine.CreateProject(env.Ctx, env.Developer, engine.ProjectCreateOptions{Title: "Empty"})
	if err != nil {
		t.Fatal(err)
	}
	_, errWithout := env.Engine.Roster(env.Ctx, env.Pro, empty.ID)
	var fe2 policy.ForbiddenError
	if !errors.As(errWithout, &fe2) {
		t.Fatalf("expected forbidden, got %v", errWithout)
	}
	if fe.Op != fe2.Op {
		t.Fatalf("denial shape differs: %v vs %v", fe, fe2)
	}
	// Admin sees everything, including empty lists.
	roster, err := env.Engine.Roster(env.Ctx, env.Admin, empty.ID)
	if err != nil {
		t.Fatalf("admin roster: %v", err)
	}
	if roster == nil || len(roster) != 0 {
		t.Fatalf("admin empty roster = %#v, want []", roster)
	}
}

func TestSetStage(t *testing.T) {
	env := newTestEnv(t)
	proj, err := env.Engine.SetStage(env.Ctx, env.Developer, env.Project.ID, domain.Stage3)
	if err != nil {
		t.Fatalf("set stage: %v", err)
	}
	if proj.CurrentStage != domain.Stage3 {
		t.Fatalf("stage = %s", proj.CurrentStage)
	}
	// Stages regress freely.
	proj, err = env.Engine.SetStage(env.Ctx, env.Developer, env.Project.ID, domain.Stage1)
	if err != nil || proj.CurrentStage != domain.Stage1 {
		t.Fatalf("regress stage: %v (%s)", err, proj.CurrentStage)
	}
	if _, err := env.Engine.SetStage(env.Ctx, env.Developer, env.Project.ID, "STAGE_9"); err == nil {
		t.Fatal("expected invalid stage error")
	}
	// Professionals cannot move stages.
	if _, err := env.Engine.SetStage(env.Ctx, env.Pro, env.Project.ID, domain.Stage2); err == nil {
		t.Fatal("expected forbidden")
	}
}

func TestProjectEventsAreAppended(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTask(env.Ctx, env.Developer, engine.TaskCreateOptions{ProjectID: env.Project.ID, Title: "t"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetStage(env.Ctx, env.Developer, env.Project.ID, domain.Stage2); err != nil {
		t.Fatal(err)
	}
	evts, err := env.Engine.ProjectEvents(env.Ctx, env.Developer, env.Project.ID, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	types := map[string]bool{}
	for _, evt := range evts {
		types[evt.Type] = true
	}
	for _, want := range []string{"project.created", "task.created", "project.stage.changed"} {
		if !types[want] {
			t.Fatalf("missing event %s in %v", want, types)
		}
	}
	// Outsiders cannot read the audit tail.
	if _, err := env.Engine.ProjectEvents(env.Ctx, env.Pro, env.Project.ID, 10); err == nil {
		t.Fatal("expected forbidden")
	}
}

func TestListProjectsScopedByRole(t *testing.T) {
	env := newTestEnv(t)
	otherOrg, err := env.Engine.CreateOrganization(env.Ctx, "Westfield Estates")
	if err != nil {
		t.Fatal(err)
	}
	otherDev, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		Email: "dev@westfield.test", FullName: "Wes Developer", Role: domain.RoleDeveloper, OrgID: otherOrg.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	otherPrincipal := policy.Principal{UserID: otherDev.ID, Role: domain.RoleDeveloper, OrgID: otherOrg.ID}
	if _, err := env.Engine.CreateProject(env.Ctx, otherPrincipal, engine.ProjectCreateOptions{Title: "Westfield Mews"}); err != nil {
		t.Fatal(err)
	}

	mine, err := env.Engine.ListProjects(env.Ctx, env.Developer)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].ID != env.Project.ID {
		t.Fatalf("developer sees %d projects", len(mine))
	}
	all, err := env.Engine.ListProjects(env.Ctx, env.Pro)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("professional sees %d projects, want 2", len(all))
	}
}

func TestProjectViewEmbedsRosterOnlyWhenAuthorized(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.Nominate(env.Ctx, env.Developer, env.Project.ID, env.Pro.ProfileID, "Lead Architect"); err != nil {
		t.Fatal(err)
	}
	owner, err := env.Engine.GetProjectView(env.Ctx, env.Developer, env.Project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(owner.Roster) != 1 {
		t.Fatalf("owner roster = %+v", owner.Roster)
	}
	outsider, err := env.Engine.GetProjectView(env.Ctx, env.Pro, env.Project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if outsider.Roster != nil {
		t.Fatalf("outsider sees roster: %+v", outsider.Roster)
	}
	if outsider.Counts.Bids != 0 || outsider.Counts.Tasks != 0 {
		t.Fatalf("counts = %+v", outsider.Counts)
	}
}
