package policy

import (
	"fmt"

	"buildmatch/internal/domain"
)

// Operation is an authorization-gated action kind.
type Operation string

const (
	OpCreateProject    Operation = "project.create"
	OpSetStage         Operation = "project.stage.set"
	OpSubmitBid        Operation = "bid.submit"
	OpNominate         Operation = "nomination.create"
	OpRemoveNomination Operation = "nomination.remove"
	OpViewRoster       Operation = "nomination.roster.view"
	OpViewEvents       Operation = "project.events.view"
	OpViewBidCount     Operation = "bid.count.view"
	OpDirectoryRead    Operation = "directory.read"
)

// Deny reasons. These are logged for observability and never returned to
// callers verbatim.
const (
	ReasonRoleMismatch       = "role mismatch"
	ReasonOrgMismatch        = "organization mismatch"
	ReasonMissingOrgLink     = "missing organization linkage"
	ReasonMissingProfileLink = "missing professional profile linkage"
)

// Principal is the authenticated identity this engine trusts. It carries
// either an organization linkage (developers) or a professional profile
// linkage (professionals); admins carry neither.
type Principal struct {
	UserID    string
	Role      domain.Role
	OrgID     string
	ProfileID string
	FullName  string
	Source    string
}

// Resource describes the target of an operation. Only the owning
// organization matters for the decisions made here.
type Resource struct {
	ProjectOrgID string
}

// Decision is the tagged outcome of a policy check.
type Decision struct {
	Allow  bool
	Reason string
}

func allow() Decision             { return Decision{Allow: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// ForbiddenError carries the failing predicate for logs. Handlers must map
// it to a generic forbidden response.
type ForbiddenError struct {
	Op     Operation
	Reason string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("operation %s denied: %s", e.Op, e.Reason)
}

// Decide evaluates a single operation against a principal and resource.
// It is pure: no storage access, no side effects.
func Decide(p Principal, op Operation, res Resource) Decision {
	switch op {
	case OpCreateProject:
		if p.Role != domain.RoleDeveloper {
			return deny(ReasonRoleMismatch)
		}
		if p.OrgID == "" {
			return deny(ReasonMissingOrgLink)
		}
		return allow()

	case OpSubmitBid:
		if p.Role != domain.RoleProfessional {
			return deny(ReasonRoleMismatch)
		}
		if p.ProfileID == "" {
			return deny(ReasonMissingProfileLink)
		}
		return allow()

	case OpNominate, OpRemoveNomination, OpViewRoster, OpViewEvents, OpSetStage:
		return decideOwnership(p, res)

	case OpViewBidCount, OpDirectoryRead:
		// Public within the platform: any authenticated principal.
		return allow()

	default:
		return deny(ReasonRoleMismatch)
	}
}

// decideOwnership is the shared rule for the private project surface:
// admins always, developers only inside the owning organization.
func decideOwnership(p Principal, res Resource) Decision {
	if p.Role == domain.RoleAdmin {
		return allow()
	}
	if p.Role != domain.RoleDeveloper {
		return deny(ReasonRoleMismatch)
	}
	if p.OrgID == "" {
		return deny(ReasonMissingOrgLink)
	}
	if p.OrgID != res.ProjectOrgID {
		return deny(ReasonOrgMismatch)
	}
	return allow()
}

// Require returns a ForbiddenError when the decision is DENY.
func Require(p Principal, op Operation, res Resource) error {
	d := Decide(p, op, res)
	if !d.Allow {
		return ForbiddenError{Op: op, Reason: d.Reason}
	}
	return nil
}
