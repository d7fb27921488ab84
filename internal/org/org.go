package org

import (
	"time"

	"peterboroughtenants.org/internal/member"
)

// Branch is a geographic organising unit of the union.
type Branch struct {
	ID        string
	Name      string
	Area      string
	Founded   time.Time
	Dissolved time.Time
	CreatedOn time.Time

	eval *member.Evaluator
}

func (b *Branch) Active() bool {
	return b.Dissolved.IsZero()
}

func (b *Branch) evaluator() *member.Evaluator {
	if b.eval == nil {
		b.eval = member.NewEvaluator()
	}
	return b.eval
}

// Guard lets any trusted member see branches; changes need the admin role.
func (b *Branch) Guard(action string, p *member.Principal) (bool, error) {
	switch action {
	case "view":
		return member.Allowed(b.evaluator().Trusted(p)), nil
	case "edit", "delete":
		return member.Allowed(b.evaluator().HasRole(p, member.RoleGlobalAdmin, nil)), nil
	default:
		return false, nil
	}
}

func (b *Branch) Fields() map[string]any {
	return map[string]any{
		"id":        b.ID,
		"name":      b.Name,
		"area":      b.Area,
		"founded":   b.Founded,
		"dissolved": b.Dissolved,
		"active":    b.Active(),
	}
}

// Committee is a working group, optionally attached to a branch.
type Committee struct {
	ID        string
	Name      string
	Purpose   string
	BranchID  string // empty for union-wide committees
	CreatedOn time.Time

	eval *member.Evaluator
}

func (c *Committee) evaluator() *member.Evaluator {
	if c.eval == nil {
		c.eval = member.NewEvaluator()
	}
	return c.eval
}

// Guard mirrors Branch: visible to trusted members, writable by
// committee chairs and administrators.
func (c *Committee) Guard(action string, p *member.Principal) (bool, error) {
	switch action {
	case "view":
		return member.Allowed(c.evaluator().Trusted(p)), nil
	case "edit":
		unit := &member.Unit{Type: member.UnitCommittee, ID: c.ID}
		if member.Allowed(c.evaluator().HasRole(p, member.RoleChair, unit)) {
			return true, nil
		}
		return member.Allowed(c.evaluator().HasRole(p, member.RoleGlobalAdmin, nil)), nil
	case "delete":
		return member.Allowed(c.evaluator().HasRole(p, member.RoleGlobalAdmin, nil)), nil
	default:
		return false, nil
	}
}

func (c *Committee) Fields() map[string]any {
	return map[string]any{
		"id":      c.ID,
		"name":    c.Name,
		"purpose": c.Purpose,
		"branch":  c.BranchID,
	}
}
