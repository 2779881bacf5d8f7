package server

import (
	"encoding/json"

	"buildmatch/internal/domain"
	"buildmatch/internal/engine"
)

// Request payloads

type CreateProjectRequest struct {
	Title          string  `json:"title"`
	Description    *string `json:"description,omitempty"`
	SiteAddress    *string `json:"site_address,omitempty"`
	LocalAuthority *string `json:"local_authority,omitempty"`
	UnitsPlanned   *int    `json:"units_planned,omitempty"`
	BudgetEstimate *int    `json:"budget_estimate,omitempty"`
}

type SetStageRequest struct {
	Stage string `json:"stage" enum:"STAGE_0,STAGE_1,STAGE_2,STAGE_3,STAGE_4,STAGE_5,STAGE_6,STAGE_7"`
}

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"BACKLOG,TODO,IN_PROGRESS,REVIEW,DONE"`
	RIBAStage   *string `json:"riba_stage,omitempty" enum:"STAGE_0,STAGE_1,STAGE_2,STAGE_3,STAGE_4,STAGE_5,STAGE_6,STAGE_7"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
}

type MoveTaskRequest struct {
	TaskID     string  `json:"task_id"`
	Status     *string `json:"status,omitempty" enum:"BACKLOG,TODO,IN_PROGRESS,REVIEW,DONE"`
	OrderIndex *int    `json:"order_index,omitempty"`
}

type ReindexRequest struct {
	Status  string   `json:"status" enum:"BACKLOG,TODO,IN_PROGRESS,REVIEW,DONE"`
	TaskIDs []string `json:"task_ids"`
}

type SubmitBidRequest struct {
	ProposalText     string   `json:"proposal_text"`
	FeeProposal      string   `json:"fee_proposal"`
	Methodology      string   `json:"methodology"`
	Timeline         string   `json:"timeline"`
	QualificationIDs []string `json:"qualification_ids,omitempty"`
	PortfolioIDs     []string `json:"portfolio_ids,omitempty"`
}

type NominateRequest struct {
	ProfessionalID  string `json:"professional_id"`
	RoleDescription string `json:"role_description"`
}

// Response payloads

type ProjectResponse struct {
	ID             string  `json:"id"`
	OrgID          string  `json:"org_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	SiteAddress    *string `json:"site_address,omitempty"`
	LocalAuthority *string `json:"local_authority,omitempty"`
	UnitsPlanned   *int    `json:"units_planned,omitempty"`
	BudgetEstimate *int    `json:"budget_estimate,omitempty"`
	CurrentStage   string  `json:"current_stage" enum:"STAGE_0,STAGE_1,STAGE_2,STAGE_3,STAGE_4,STAGE_5,STAGE_6,STAGE_7"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

type ProjectDetailResponse struct {
	ProjectResponse
	Counts ProjectCountsResponse `json:"counts"`
	Roster []NominationResponse  `json:"roster,omitempty"`
}

type ProjectCountsResponse struct {
	Tasks int `json:"tasks"`
	Bids  int `json:"bids"`
}

type AssigneeResponse struct {
	ProfileID string `json:"profile_id"`
	UserID    string `json:"user_id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
}

type TaskResponse struct {
	ID          string            `json:"id"`
	ProjectID   string            `json:"project_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status" enum:"BACKLOG,TODO,IN_PROGRESS,REVIEW,DONE"`
	RIBAStage   *string           `json:"riba_stage,omitempty"`
	DueDate     *string           `json:"due_date,omitempty" format:"date-time"`
	AssigneeID  *string           `json:"assignee_id,omitempty"`
	Assignee    *AssigneeResponse `json:"assignee,omitempty"`
	OrderIndex  int               `json:"order_index"`
	CreatedAt   string            `json:"created_at" format:"date-time"`
	UpdatedAt   string            `json:"updated_at" format:"date-time"`
}

type BidResponse struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	ProfessionalID string `json:"professional_id"`
	Status         string `json:"status" enum:"SUBMITTED"`
	ProposalText   string `json:"proposal_text"`
	SubmittedAt    string `json:"submitted_at" format:"date-time"`
}

type BidCountResponse struct {
	ProjectID string `json:"project_id"`
	Count     int    `json:"count"`
}

type NominationResponse struct {
	ID              string `json:"id"`
	ProjectID       string `json:"project_id"`
	ProfessionalID  string `json:"professional_id"`
	RoleDescription string `json:"role_description"`
	AppointedAt     string `json:"appointed_at" format:"date-time"`
	CompanyName     string `json:"company_name,omitempty"`
	FullName        string `json:"full_name,omitempty"`
}

type ProfileResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	CompanyName   string  `json:"company_name,omitempty"`
	Bio           string  `json:"bio,omitempty"`
	RatingAverage float64 `json:"rating_average"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	ProjectID  string         `json:"project_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// Conversion helpers

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:             p.ID,
		OrgID:          p.OrgID,
		Title:          p.Title,
		Description:    p.Description,
		SiteAddress:    p.SiteAddress,
		LocalAuthority: p.LocalAuthority,
		UnitsPlanned:   p.UnitsPlanned,
		BudgetEstimate: p.BudgetEstimate,
		CurrentStage:   string(p.CurrentStage),
		CreatedAt:      p.CreatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

func projectDetailResponse(v engine.ProjectView) ProjectDetailResponse {
	out := ProjectDetailResponse{
		ProjectResponse: projectResponse(v.Project),
		Counts:          ProjectCountsResponse{Tasks: v.Counts.Tasks, Bids: v.Counts.Bids},
	}
	if v.Roster != nil {
		out.Roster = mapNominations(v.Roster)
	}
	return out
}

func taskResponse(t domain.Task) TaskResponse {
	res := TaskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		DueDate:     t.DueDate,
		AssigneeID:  t.AssigneeID,
		OrderIndex:  t.OrderIndex,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.RIBAStage != nil {
		stage := string(*t.RIBAStage)
		res.RIBAStage = &stage
	}
	return res
}

func taskEntryResponse(e domain.TaskEntry) TaskResponse {
	res := taskResponse(e.Task)
	if e.Assignee != nil {
		res.Assignee = &AssigneeResponse{
			ProfileID: e.Assignee.ProfileID,
			UserID:    e.Assignee.UserID,
			FullName:  e.Assignee.FullName,
			Email:     e.Assignee.Email,
		}
	}
	return res
}

func mapTaskEntries(items []domain.TaskEntry) []TaskResponse {
	res := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		res = append(res, taskEntryResponse(t))
	}
	return res
}

func bidResponse(b domain.Bid) BidResponse {
	return BidResponse{
		ID:             b.ID,
		ProjectID:      b.ProjectID,
		ProfessionalID: b.ProfessionalID,
		Status:         string(b.Status),
		ProposalText:   b.ProposalText,
		SubmittedAt:    b.SubmittedAt,
	}
}

func nominationResponse(n domain.NominationEntry) NominationResponse {
	return NominationResponse{
		ID:              n.ID,
		ProjectID:       n.ProjectID,
		ProfessionalID:  n.ProfessionalID,
		RoleDescription: n.RoleDescription,
		AppointedAt:     n.AppointedAt,
		CompanyName:     n.CompanyName,
		FullName:        n.FullName,
	}
}

func mapNominations(items []domain.NominationEntry) []NominationResponse {
	res := make([]NominationResponse, 0, len(items))
	for _, n := range items {
		res = append(res, nominationResponse(n))
	}
	return res
}

func profileResponse(p domain.ProfessionalProfile) ProfileResponse {
	return ProfileResponse(p)
}

func mapProfiles(items []domain.ProfessionalProfile) []ProfileResponse {
	res := make([]ProfileResponse, 0, len(items))
	for _, p := range items {
		res = append(res, profileResponse(p))
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	payload := map[string]any{}
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &payload)
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		ProjectID:  e.ProjectID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    payload,
	}
}

func mapEvents(items []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(items))
	for _, e := range items {
		res = append(res, eventResponse(e))
	}
	return res
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
