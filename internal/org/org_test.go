package org

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"peterboroughtenants.org/internal/member"
)

func principal(id string, trusted bool, grants ...member.Grant) *member.Principal {
	return &member.Principal{ID: id, Trusted: trusted, Grants: grants}
}

func grant(contactID string, role member.RoleType, unit *member.Unit) member.Grant {
	return member.Grant{
		ID: "g1", ContactID: contactID, Role: role, Unit: unit,
		HeldSince: time.Now().AddDate(-1, 0, 0),
	}
}

func TestBranchGuard(t *testing.T) {
	b := &Branch{ID: "b1", Name: "Millfield"}

	ok, _ := b.Guard("view", nil)
	assert.False(t, ok)
	ok, _ = b.Guard("view", principal("m1", true))
	assert.True(t, ok)
	ok, _ = b.Guard("view", principal("m1", false))
	assert.False(t, ok)

	ok, _ = b.Guard("edit", principal("m1", true))
	assert.False(t, ok)
	ok, _ = b.Guard("edit", principal("a1", true, grant("a1", member.RoleGlobalAdmin, nil)))
	assert.True(t, ok)
}

func TestCommitteeChairCanEditOwnCommitteeOnly(t *testing.T) {
	c := &Committee{ID: "c1", Name: "Housing Disrepair"}
	other := &Committee{ID: "c2", Name: "Media"}

	unit := &member.Unit{Type: member.UnitCommittee, ID: "c1"}
	chair := principal("m1", true, grant("m1", member.RoleChair, unit))

	ok, _ := c.Guard("edit", chair)
	assert.True(t, ok)
	ok, _ = other.Guard("edit", chair)
	assert.False(t, ok, "chair of c1 has no say over c2")

	ok, _ = c.Guard("delete", chair)
	assert.False(t, ok, "even the chair cannot delete a committee")
}

func TestBranchActive(t *testing.T) {
	assert.True(t, (&Branch{}).Active())
	assert.False(t, (&Branch{Dissolved: time.Now()}).Active())
}
