package member

import "time"

// RoleType enumerates the organisational roles a contact can hold.
type RoleType string

const (
	RoleChair        RoleType = "chair"
	RoleSecretary    RoleType = "secretary"
	RoleTreasurer    RoleType = "treasurer"
	RoleTrustee      RoleType = "trustee"
	RoleMember       RoleType = "member"
	RoleDelegate     RoleType = "delegate"
	RoleRep          RoleType = "representative"
	RoleSeniorRep    RoleType = "senior_representative"
	RoleOrganiser    RoleType = "organiser"
	RoleLearningRep  RoleType = "learning_rep"

	// RoleGlobalAdmin satisfies any role check regardless of scope.
	RoleGlobalAdmin RoleType = "global.admin"
)

// UnitType distinguishes the two kinds of organisational unit a role can be
// scoped to.
type UnitType string

const (
	UnitBranch    UnitType = "branch"
	UnitCommittee UnitType = "committee"
)

// Unit identifies a single branch or committee.
type Unit struct {
	Type UnitType
	ID   string
}

// Grant is one role held by a contact, optionally scoped to a unit, valid
// for a window of dates. Expired grants are kept for the audit trail and
// excluded from evaluation.
type Grant struct {
	ID        string
	ContactID string
	Role      RoleType
	Unit      *Unit // nil means the grant is global
	HeldSince time.Time
	EndsOn    time.Time
}

// ActiveAt reports whether the grant's validity window covers t.
func (g Grant) ActiveAt(t time.Time) bool {
	if g.HeldSince.After(t) {
		return false
	}
	return g.EndsOn.IsZero() || g.EndsOn.After(t)
}

// Principal is the authenticated identity attached to a request. Trusted is
// a snapshot of the originating session's trust flag, set when the principal
// is loaded by the middleware.
type Principal struct {
	ID      string
	Blocked bool
	Trusted bool
	Grants  []Grant
}
