package domain

// Role of an authenticated platform user.
type Role string

const (
	RoleDeveloper    Role = "DEVELOPER"
	RoleProfessional Role = "PROFESSIONAL"
	RoleAdmin        Role = "ADMIN"
)

func ValidRole(s string) bool {
	switch Role(s) {
	case RoleDeveloper, RoleProfessional, RoleAdmin:
		return true
	}
	return false
}

// TaskStatus partitions a project board. The slice order is the board
// display order and must stay in sync with the status rank CASE used in
// repo task queries.
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "BACKLOG"
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusReview     TaskStatus = "REVIEW"
	StatusDone       TaskStatus = "DONE"
)

var TaskStatuses = []TaskStatus{StatusBacklog, StatusTodo, StatusInProgress, StatusReview, StatusDone}

func ValidTaskStatus(s string) bool {
	for _, st := range TaskStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

// RIBAStage is one of the eight ordered delivery stages. Projects track a
// current stage; tasks can carry an independent stage tag.
type RIBAStage string

const (
	Stage0 RIBAStage = "STAGE_0"
	Stage1 RIBAStage = "STAGE_1"
	Stage2 RIBAStage = "STAGE_2"
	Stage3 RIBAStage = "STAGE_3"
	Stage4 RIBAStage = "STAGE_4"
	Stage5 RIBAStage = "STAGE_5"
	Stage6 RIBAStage = "STAGE_6"
	Stage7 RIBAStage = "STAGE_7"
)

var RIBAStages = []RIBAStage{Stage0, Stage1, Stage2, Stage3, Stage4, Stage5, Stage6, Stage7}

func ValidRIBAStage(s string) bool {
	for _, st := range RIBAStages {
		if string(st) == s {
			return true
		}
	}
	return false
}

// BidStatus of a tender application. Submission is the only transition
// owned by this service.
type BidStatus string

const BidSubmitted BidStatus = "SUBMITTED"

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type User struct {
	ID                    string  `json:"id"`
	Email                 string  `json:"email"`
	FullName              string  `json:"full_name"`
	Role                  Role    `json:"role" enum:"DEVELOPER,PROFESSIONAL,ADMIN"`
	DeveloperOrgID        *string `json:"developer_org_id,omitempty"`
	ProfessionalProfileID *string `json:"professional_profile_id,omitempty"`
	CreatedAt             string  `json:"created_at" format:"date-time"`
}

type ProfessionalProfile struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	CompanyName   string  `json:"company_name,omitempty"`
	Bio           string  `json:"bio,omitempty"`
	RatingAverage float64 `json:"rating_average"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

type Qualification struct {
	ID           string  `json:"id"`
	ProfileID    string  `json:"profile_id"`
	Title        string  `json:"title"`
	Authority    *string `json:"authority,omitempty"`
	CredentialID *string `json:"credential_id,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

type PortfolioItem struct {
	ID          string  `json:"id"`
	ProfileID   string  `json:"profile_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	Units       *int    `json:"units,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type Project struct {
	ID             string    `json:"id"`
	OrgID          string    `json:"org_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	SiteAddress    *string   `json:"site_address,omitempty"`
	LocalAuthority *string   `json:"local_authority,omitempty"`
	UnitsPlanned   *int      `json:"units_planned,omitempty"`
	BudgetEstimate *int      `json:"budget_estimate,omitempty"`
	CurrentStage   RIBAStage `json:"current_stage" enum:"STAGE_0,STAGE_1,STAGE_2,STAGE_3,STAGE_4,STAGE_5,STAGE_6,STAGE_7"`
	CreatedAt      string    `json:"created_at" format:"date-time"`
}

// ProjectCounts carries child-entity tallies embedded in project reads.
type ProjectCounts struct {
	Tasks int `json:"tasks"`
	Bids  int `json:"bids"`
}

type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status" enum:"BACKLOG,TODO,IN_PROGRESS,REVIEW,DONE"`
	RIBAStage   *RIBAStage `json:"riba_stage,omitempty"`
	DueDate     *string    `json:"due_date,omitempty" format:"date-time"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	OrderIndex  int        `json:"order_index"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
	UpdatedAt   string     `json:"updated_at" format:"date-time"`
}

// AssigneeRef is the display snapshot of a task assignee.
type AssigneeRef struct {
	ProfileID string `json:"profile_id"`
	UserID    string `json:"user_id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
}

// TaskEntry is a task with its assignee display fields resolved.
type TaskEntry struct {
	Task
	Assignee *AssigneeRef `json:"assignee,omitempty"`
}

type Bid struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	ProfessionalID string    `json:"professional_id"`
	Status         BidStatus `json:"status" enum:"SUBMITTED"`
	ProposalText   string    `json:"proposal_text"`
	SubmittedAt    string    `json:"submitted_at" format:"date-time"`
}

// Nomination is a private staffing assignment of a professional to a
// project (stored as project_professionals).
type Nomination struct {
	ID              string `json:"id"`
	ProjectID       string `json:"project_id"`
	ProfessionalID  string `json:"professional_id"`
	RoleDescription string `json:"role_description"`
	AppointedAt     string `json:"appointed_at" format:"date-time"`
}

// NominationEntry embeds professional display fields for roster reads.
type NominationEntry struct {
	Nomination
	CompanyName string `json:"company_name,omitempty"`
	FullName    string `json:"full_name"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
