package policy

import (
	"errors"
	"testing"

	"buildmatch/internal/domain"
)

func TestDecide(t *testing.T) {
	developer := Principal{UserID: "u1", Role: domain.RoleDeveloper, OrgID: "org-1"}
	orphanDeveloper := Principal{UserID: "u2", Role: domain.RoleDeveloper}
	professional := Principal{UserID: "u3", Role: domain.RoleProfessional, ProfileID: "prof-1"}
	orphanProfessional := Principal{UserID: "u4", Role: domain.RoleProfessional}
	admin := Principal{UserID: "u5", Role: domain.RoleAdmin}

	owned := Resource{ProjectOrgID: "org-1"}
	foreign := Resource{ProjectOrgID: "org-2"}

	cases := []struct {
		name   string
		p      Principal
		op     Operation
		res    Resource
		allow  bool
		reason string
	}{
		{"developer creates project", developer, OpCreateProject, Resource{}, true, ""},
		{"developer without org cannot create", orphanDeveloper, OpCreateProject, Resource{}, false, ReasonMissingOrgLink},
		{"professional cannot create project", professional, OpCreateProject, Resource{}, false, ReasonRoleMismatch},
		{"professional submits bid", professional, OpSubmitBid, Resource{}, true, ""},
		{"professional without profile cannot bid", orphanProfessional, OpSubmitBid, Resource{}, false, ReasonMissingProfileLink},
		{"developer cannot bid", developer, OpSubmitBid, Resource{}, false, ReasonRoleMismatch},
		{"org member nominates", developer, OpNominate, owned, true, ""},
		{"outside org cannot nominate", developer, OpNominate, foreign, false, ReasonOrgMismatch},
		{"admin nominates anywhere", admin, OpNominate, foreign, true, ""},
		{"professional never sees roster", professional, OpViewRoster, owned, false, ReasonRoleMismatch},
		{"org member sees roster", developer, OpViewRoster, owned, true, ""},
		{"outside org denied roster", developer, OpViewRoster, foreign, false, ReasonOrgMismatch},
		{"admin sees roster", admin, OpViewRoster, foreign, true, ""},
		{"org member removes nomination", developer, OpRemoveNomination, owned, true, ""},
		{"outside org cannot set stage", developer, OpSetStage, foreign, false, ReasonOrgMismatch},
		{"bid count public to professional", professional, OpViewBidCount, foreign, true, ""},
		{"directory public to developer", developer, OpDirectoryRead, Resource{}, true, ""},
		{"unknown operation denied", admin, Operation("nope"), Resource{}, false, ReasonRoleMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.p, tc.op, tc.res)
			if d.Allow != tc.allow {
				t.Fatalf("allow=%v want %v", d.Allow, tc.allow)
			}
			if !tc.allow && d.Reason != tc.reason {
				t.Fatalf("reason %q want %q", d.Reason, tc.reason)
			}
		})
	}
}

func TestRequireReturnsTypedError(t *testing.T) {
	p := Principal{UserID: "u1", Role: domain.RoleProfessional, ProfileID: "prof-1"}
	err := Require(p, OpViewRoster, Resource{ProjectOrgID: "org-1"})
	if err == nil {
		t.Fatal("expected denial")
	}
	var fe ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError, got %T", err)
	}
	if fe.Op != OpViewRoster || fe.Reason != ReasonRoleMismatch {
		t.Fatalf("unexpected error contents: %+v", fe)
	}
}

func TestDenialShapeIndependentOfResource(t *testing.T) {
	// The denial a professional receives must not vary with the project,
	// so roster existence cannot leak through error contents.
	p := Principal{UserID: "u1", Role: domain.RoleProfessional, ProfileID: "prof-1"}
	a := Decide(p, OpViewRoster, Resource{ProjectOrgID: "org-1"})
	b := Decide(p, OpViewRoster, Resource{ProjectOrgID: "org-2"})
	c := Decide(p, OpViewRoster, Resource{})
	if a != b || b != c {
		t.Fatalf("denials differ: %+v %+v %+v", a, b, c)
	}
}
