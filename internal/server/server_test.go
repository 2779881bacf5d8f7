package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"buildmatch/internal/config"
	"buildmatch/internal/db"
	"buildmatch/internal/domain"
	"buildmatch/internal/engine"
	"buildmatch/internal/migrate"
)

const testJWTSecret = "server-test-secret"

type testServer struct {
	URL          string
	client       *http.Client
	close        func()
	Developer    domain.User
	Professional domain.User
	Admin        domain.User
	OrgID        string
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("buildmatch-test"))

	ctx := context.Background()
	org, err := e.CreateOrganization(ctx, "Northgate Homes")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	dev, err := e.CreateUser(ctx, engine.UserCreateOptions{
		Email:    "dev@northgate.test",
		FullName: "Dana Mercer",
		Role:     domain.RoleDeveloper,
		OrgID:    org.ID,
	})
	if err != nil {
		t.Fatalf("create developer: %v", err)
	}
	pro, err := e.CreateUser(ctx, engine.UserCreateOptions{
		Email:       "arch@studio.test",
		FullName:    "Priya Shah",
		Role:        domain.RoleProfessional,
		CompanyName: "Shah Architecture",
	})
	if err != nil {
		t.Fatalf("create professional: %v", err)
	}
	admin, err := e.CreateUser(ctx, engine.UserCreateOptions{
		Email:    "ops@buildmatch.test",
		FullName: "Platform Ops",
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testJWTSecret, AllowActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:          "http://" + ln.Addr().String(),
		client:       &http.Client{},
		Developer:    dev,
		Professional: pro,
		Admin:        admin,
		OrgID:        org.ID,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func asUser(u domain.User) map[string]string {
	return map[string]string{"X-User-Id": u.ID}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createProject(t *testing.T, srv *testServer, title string) ProjectResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"title": title,
	}, asUser(srv.Developer))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var proj ProjectResponse
	if err := json.Unmarshal(data, &proj); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	return proj
}

func TestRequestsWithoutCredentialsAreRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}

	health, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health should be open: %d %s", health.StatusCode, string(body))
	}
}

func TestJWTBearerAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	claims := jwt.MapClaims{
		"sub":    srv.Developer.ID,
		"role":   string(domain.RoleDeveloper),
		"org_id": srv.OrgID,
		"name":   srv.Developer.FullName,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"title": "Token Gated Scheme",
	}, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create with jwt: %d %s", res.StatusCode, string(data))
	}

	bad, badBody := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if bad.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d %s", bad.StatusCode, string(badBody))
	}
}

func TestBoardCreateAndMoveFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	proj := createProject(t, srv, "Riverside Quarter")

	var tasks []TaskResponse
	for _, title := range []string{"Site survey", "Planning pre-app", "Ground investigation"} {
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects/"+proj.ID+"/tasks", map[string]any{
			"title": title,
		}, asUser(srv.Developer))
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create task %q: %d %s", title, res.StatusCode, string(data))
		}
		var created TaskResponse
		if err := json.Unmarshal(data, &created); err != nil {
			t.Fatalf("unmarshal task: %v", err)
		}
		tasks = append(tasks, created)
	}
	for i, task := range tasks {
		if task.OrderIndex != i {
			t.Fatalf("task %d got order_index %d", i, task.OrderIndex)
		}
	}

	moveRes, moveBody := doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/projects/"+proj.ID+"/tasks", map[string]any{
		"task_id":     tasks[2].ID,
		"status":      "IN_PROGRESS",
		"order_index": 5,
	}, asUser(srv.Developer))
	if moveRes.StatusCode != http.StatusOK {
		t.Fatalf("move task: %d %s", moveRes.StatusCode, string(moveBody))
	}
	var moved TaskResponse
	if err := json.Unmarshal(moveBody, &moved); err != nil {
		t.Fatalf("unmarshal moved: %v", err)
	}
	if moved.Status != "IN_PROGRESS" || moved.OrderIndex != 5 {
		t.Fatalf("move applied %s/%d, want IN_PROGRESS/5", moved.Status, moved.OrderIndex)
	}

	listRes, listBody := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+proj.ID+"/tasks", nil, asUser(srv.Professional))
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list tasks: %d %s", listRes.StatusCode, string(listBody))
	}
	var listed []TaskResponse
	if err := json.Unmarshal(listBody, &listed); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(listed))
	}
}

func TestDuplicateBidAnswersConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	proj := createProject(t, srv, "Harbour Gate")

	application := map[string]any{
		"proposal_text": "Full architectural service.",
		"fee_proposal":  "4.5% of contract value",
		"methodology":   "BIM-led design development",
		"timeline":      "Stage 3 in 16 weeks",
	}
	first, firstBody := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects/"+proj.ID+"/apply", application, asUser(srv.Professional))
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("first bid: %d %s", first.StatusCode, string(firstBody))
	}

	second, secondBody := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects/"+proj.ID+"/apply", application, asUser(srv.Professional))
	if second.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate bid: %d %s", second.StatusCode, string(secondBody))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(secondBody, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "conflict" {
		t.Fatalf("expected code conflict, got %q", envelope.Error.Code)
	}

	countRes, countBody := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+proj.ID+"/bid-count", nil, asUser(srv.Professional))
	if countRes.StatusCode != http.StatusOK {
		t.Fatalf("bid count: %d %s", countRes.StatusCode, string(countBody))
	}
	var count BidCountResponse
	if err := json.Unmarshal(countBody, &count); err != nil {
		t.Fatalf("unmarshal count: %v", err)
	}
	if count.Count != 1 {
		t.Fatalf("expected 1 bid, got %d", count.Count)
	}
}

func TestRosterDenialShapeIsUniform(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	staffed := createProject(t, srv, "Staffed Scheme")
	empty := createProject(t, srv, "Empty Scheme")

	nomRes, nomBody := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects/"+staffed.ID+"/nominate", map[string]any{
		"professional_id":  *srv.Professional.ProfessionalProfileID,
		"role_description": "Lead Architect",
	}, asUser(srv.Developer))
	if nomRes.StatusCode != http.StatusCreated {
		t.Fatalf("nominate: %d %s", nomRes.StatusCode, string(nomBody))
	}

	staffedRes, staffedBody := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+staffed.ID+"/roster", nil, asUser(srv.Professional))
	emptyRes, emptyBody := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+empty.ID+"/roster", nil, asUser(srv.Professional))
	if staffedRes.StatusCode != http.StatusForbidden || emptyRes.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for both, got %d and %d", staffedRes.StatusCode, emptyRes.StatusCode)
	}
	if !bytes.Equal(staffedBody, emptyBody) {
		t.Fatalf("denial bodies differ:\n%s\n%s", string(staffedBody), string(emptyBody))
	}

	adminRes, adminBody := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+empty.ID+"/roster", nil, asUser(srv.Admin))
	if adminRes.StatusCode != http.StatusOK {
		t.Fatalf("admin roster: %d %s", adminRes.StatusCode, string(adminBody))
	}
	var roster []NominationResponse
	if err := json.Unmarshal(adminBody, &roster); err != nil {
		t.Fatalf("unmarshal roster: %v", err)
	}
	if len(roster) != 0 {
		t.Fatalf("expected empty roster, got %d entries", len(roster))
	}

	ownerRes, ownerBody := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+staffed.ID+"/roster", nil, asUser(srv.Developer))
	if ownerRes.StatusCode != http.StatusOK {
		t.Fatalf("owner roster: %d %s", ownerRes.StatusCode, string(ownerBody))
	}
	var ownerRoster []NominationResponse
	if err := json.Unmarshal(ownerBody, &ownerRoster); err != nil {
		t.Fatalf("unmarshal owner roster: %v", err)
	}
	if len(ownerRoster) != 1 || ownerRoster[0].RoleDescription != "Lead Architect" {
		t.Fatalf("unexpected owner roster: %s", string(ownerBody))
	}
}

func TestStageChangeAndEvents(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	proj := createProject(t, srv, "Mill Lane")

	res, data := doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/projects/"+proj.ID+"/stage", map[string]any{
		"stage": "STAGE_3",
	}, asUser(srv.Developer))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set stage: %d %s", res.StatusCode, string(data))
	}
	var updated ProjectResponse
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	if updated.CurrentStage != "STAGE_3" {
		t.Fatalf("stage %s, want STAGE_3", updated.CurrentStage)
	}

	proRes, proBody := doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/projects/"+proj.ID+"/stage", map[string]any{
		"stage": "STAGE_4",
	}, asUser(srv.Professional))
	if proRes.StatusCode != http.StatusForbidden {
		t.Fatalf("professional stage change: %d %s", proRes.StatusCode, string(proBody))
	}

	evRes, evBody := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+proj.ID+"/events", nil, asUser(srv.Developer))
	if evRes.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", evRes.StatusCode, string(evBody))
	}
	var events []EventResponse
	if err := json.Unmarshal(evBody, &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("expected at least 2 events, got %d", len(events))
	}
	if events[0].Type != "project.stage.changed" {
		t.Fatalf("newest event %s, want project.stage.changed", events[0].Type)
	}
}
