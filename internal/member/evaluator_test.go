package member

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evalNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testEvaluator() *Evaluator {
	return NewEvaluator(WithClock(func() time.Time { return evalNow }))
}

func grantFor(role RoleType, unit *Unit, since, ends time.Time) Grant {
	return Grant{ID: "g1", ContactID: "c1", Role: role, Unit: unit, HeldSince: since, EndsOn: ends}
}

func TestHasRoleScopedToUnit(t *testing.T) {
	e := testEvaluator()
	b1 := &Unit{Type: UnitBranch, ID: "b1"}
	b2 := &Unit{Type: UnitBranch, ID: "b2"}

	p := &Principal{ID: "c1", Grants: []Grant{
		grantFor(RoleTreasurer, b1, evalNow.AddDate(0, -6, 0), evalNow.AddDate(0, 6, 0)),
	}}

	require.NoError(t, e.HasRole(p, RoleTreasurer, b1))

	err := e.HasRole(p, RoleTreasurer, b2)
	require.Error(t, err)
	var dn *DeniedError
	require.ErrorAs(t, err, &dn)
	assert.False(t, Allowed(err))
}

func TestHasRoleGlobalGrantSatisfiesUnitScope(t *testing.T) {
	e := testEvaluator()
	p := &Principal{ID: "c1", Grants: []Grant{
		grantFor(RoleOrganiser, nil, evalNow.AddDate(-1, 0, 0), time.Time{}),
	}}
	require.NoError(t, e.HasRole(p, RoleOrganiser, &Unit{Type: UnitCommittee, ID: "cm3"}))
}

func TestHasRoleExpiredGrantExcluded(t *testing.T) {
	e := testEvaluator()
	p := &Principal{ID: "c1", Grants: []Grant{
		grantFor(RoleSecretary, nil, evalNow.AddDate(-2, 0, 0), evalNow.AddDate(-1, 0, 0)),
	}}
	assert.Error(t, e.HasRole(p, RoleSecretary, nil))
}

func TestHasRoleNotYetHeldExcluded(t *testing.T) {
	e := testEvaluator()
	p := &Principal{ID: "c1", Grants: []Grant{
		grantFor(RoleChair, nil, evalNow.AddDate(0, 1, 0), evalNow.AddDate(1, 0, 0)),
	}}
	assert.Error(t, e.HasRole(p, RoleChair, nil))
}

func TestGlobalAdminOverridesAnyCheck(t *testing.T) {
	e := testEvaluator()
	p := &Principal{ID: "c1", Grants: []Grant{
		grantFor(RoleGlobalAdmin, nil, evalNow.AddDate(-1, 0, 0), time.Time{}),
	}}
	for _, role := range []RoleType{RoleChair, RoleTreasurer, RoleLearningRep} {
		require.NoError(t, e.HasRole(p, role, &Unit{Type: UnitBranch, ID: "anywhere"}))
		require.NoError(t, e.HasRole(p, role, nil))
	}
}

func TestTrusted(t *testing.T) {
	e := testEvaluator()

	assert.Error(t, e.Trusted(nil))
	assert.Error(t, e.Trusted(&Principal{}))
	assert.Error(t, e.Trusted(&Principal{ID: "c1", Blocked: true, Trusted: true}))
	assert.Error(t, e.Trusted(&Principal{ID: "c1", Trusted: false}))
	assert.NoError(t, e.Trusted(&Principal{ID: "c1", Trusted: true}))
}

func TestAllOfShortCircuitsOnFirstDenial(t *testing.T) {
	e := testEvaluator()
	p := &Principal{ID: "c1", Trusted: true}

	calls := 0
	counting := func(p *Principal) error { calls++; return denied("nope") }

	err := e.AllOf(p, e.RequireTrusted(), counting, counting)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestAnyOfShortCircuitsOnFirstSuccess(t *testing.T) {
	e := testEvaluator()
	p := &Principal{ID: "c1", Trusted: true}

	calls := 0
	counting := func(p *Principal) error { calls++; return nil }

	require.NoError(t, e.AnyOf(p, e.RequireRole(RoleChair, nil), counting, counting))
	assert.Equal(t, 1, calls)

	assert.Error(t, e.AnyOf(p))
}
