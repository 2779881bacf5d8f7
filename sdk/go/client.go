package buildmatchsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Buildmatch HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API project model (partial).
type Project struct {
	ID           string `json:"id"`
	OrgID        string `json:"org_id"`
	Title        string `json:"title"`
	CurrentStage string `json:"current_stage"`
	CreatedAt    string `json:"created_at"`
}

// Task represents a board entry.
type Task struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	OrderIndex int    `json:"order_index"`
}

// Bid represents a tender application.
type Bid struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	ProfessionalID string `json:"professional_id"`
	Status         string `json:"status"`
	ProposalText   string `json:"proposal_text"`
	SubmittedAt    string `json:"submitted_at"`
}

// Nomination represents a roster assignment.
type Nomination struct {
	ID              string `json:"id"`
	ProjectID       string `json:"project_id"`
	ProfessionalID  string `json:"professional_id"`
	RoleDescription string `json:"role_description"`
	AppointedAt     string `json:"appointed_at"`
	CompanyName     string `json:"company_name,omitempty"`
	FullName        string `json:"full_name,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	ProjectID  string         `json:"project_id"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// BidCount reports how many bids a project has received.
type BidCount struct {
	ProjectID string `json:"project_id"`
	Count     int    `json:"count"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProject creates a project owned by the caller's organization.
func (c *Client) CreateProject(ctx context.Context, title string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", map[string]any{"title": title}, &resp)
	return resp, err
}

// ListProjects returns projects visible to the caller.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "v0/projects", nil, &resp)
	return resp, err
}

// SetStage moves a project to a RIBA delivery stage.
func (c *Client) SetStage(ctx context.Context, projectID, stage string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPatch, c.projectPath(projectID, "stage"), map[string]any{"stage": stage}, &resp)
	return resp, err
}

// CreateTask appends a task to the tail of its board column.
func (c *Client) CreateTask(ctx context.Context, projectID, title string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "tasks"), map[string]any{"title": title}, &resp)
	return resp, err
}

// ListTasks returns a project board in display order.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, c.projectPath(projectID, "tasks"), nil, &resp)
	return resp, err
}

// MoveTask repositions a task. Nil status or orderIndex leaves that field
// unchanged.
func (c *Client) MoveTask(ctx context.Context, projectID, taskID string, status *string, orderIndex *int) (Task, error) {
	body := map[string]any{"task_id": taskID}
	if status != nil {
		body["status"] = *status
	}
	if orderIndex != nil {
		body["order_index"] = *orderIndex
	}
	var resp Task
	err := c.do(ctx, http.MethodPatch, c.projectPath(projectID, "tasks"), body, &resp)
	return resp, err
}

// SubmitBidInput is the tender application form.
type SubmitBidInput struct {
	ProposalText     string   `json:"proposal_text"`
	FeeProposal      string   `json:"fee_proposal"`
	Methodology      string   `json:"methodology"`
	Timeline         string   `json:"timeline"`
	QualificationIDs []string `json:"qualification_ids,omitempty"`
	PortfolioIDs     []string `json:"portfolio_ids,omitempty"`
}

// SubmitBid applies to a project tender.
func (c *Client) SubmitBid(ctx context.Context, projectID string, input SubmitBidInput) (Bid, error) {
	var resp Bid
	err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "apply"), input, &resp)
	return resp, err
}

// BidCount returns the number of bids on a project.
func (c *Client) BidCount(ctx context.Context, projectID string) (BidCount, error) {
	var resp BidCount
	err := c.do(ctx, http.MethodGet, c.projectPath(projectID, "bid-count"), nil, &resp)
	return resp, err
}

// Roster returns the project staffing roster.
func (c *Client) Roster(ctx context.Context, projectID string) ([]Nomination, error) {
	var resp []Nomination
	err := c.do(ctx, http.MethodGet, c.projectPath(projectID, "roster"), nil, &resp)
	return resp, err
}

// Nominate appoints a professional to the project roster.
func (c *Client) Nominate(ctx context.Context, projectID, professionalID, roleDescription string) (Nomination, error) {
	body := map[string]any{
		"professional_id":  professionalID,
		"role_description": roleDescription,
	}
	var resp Nomination
	err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "nominate"), body, &resp)
	return resp, err
}

// Events returns recent audit events for a project.
func (c *Client) Events(ctx context.Context, projectID string, limit int) ([]Event, error) {
	endpoint := c.projectPath(projectID, "events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(projectID, p string) string {
	return fmt.Sprintf("v0/projects/%s/%s", url.PathEscape(projectID), strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
