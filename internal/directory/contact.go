package directory

import (
	"strings"
	"time"

	"peterboroughtenants.org/internal/member"
)

// Contact is a member or prospective member of the union.
type Contact struct {
	ID               string
	GivenName        string
	FamilyName       string
	OtherNames       string
	Pronouns         string
	DateOfBirth      time.Time
	MembershipNumber string
	MembershipType   string
	JoinedOn         time.Time
	PreferredEmail   string
	Blocked          bool
	PasswordHash     string // never serialized
	CreatedOn        time.Time
	UpdatedOn        time.Time
	Emails           []*EmailAddress

	eval *member.Evaluator
}

func (c *Contact) Name() string {
	return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
}

func (c *Contact) isSelf(p *member.Principal) bool {
	return p != nil && p.ID != "" && p.ID == c.ID
}

func (c *Contact) evaluator() *member.Evaluator {
	if c.eval == nil {
		c.eval = member.NewEvaluator()
	}
	return c.eval
}

func (c *Contact) isAdmin(p *member.Principal) bool {
	return member.Allowed(c.evaluator().HasRole(p, member.RoleGlobalAdmin, nil))
}

// Guard answers per-action authorization for this contact record.
func (c *Contact) Guard(action string, p *member.Principal) (bool, error) {
	switch action {
	case "view":
		if c.isSelf(p) {
			return true, nil
		}
		return member.Allowed(c.evaluator().Trusted(p)), nil
	case "edit":
		return c.isSelf(p) || c.isAdmin(p), nil
	case "delete":
		return c.isAdmin(p), nil
	default:
		return false, nil
	}
}

// Fields declares the serializable surface of a contact.
func (c *Contact) Fields() map[string]any {
	return map[string]any{
		"id":                c.ID,
		"name":              c.Name(),
		"pronouns":          c.Pronouns,
		"date_of_birth":     c.DateOfBirth,
		"joined_on":         c.JoinedOn,
		"membership_number": c.MembershipNumber,
		"membership_type":   c.MembershipType,
		"email":             c.PreferredEmail,
		"account_blocked":   c.Blocked,
		"emails":            c.Emails,
		"created":           c.CreatedOn,
		"updated":           c.UpdatedOn,
	}
}

// FilterField hides sensitive fields from anyone but the contact themself
// and office holders who need them.
func (c *Contact) FilterField(name string, p *member.Principal) bool {
	switch name {
	case "date_of_birth":
		return c.isSelf(p) || c.isAdmin(p)
	case "membership_number":
		return c.isSelf(p) || c.isAdmin(p) ||
			member.Allowed(c.evaluator().HasRole(p, member.RoleOrganiser, nil))
	case "account_blocked", "emails":
		return c.isSelf(p) || c.isAdmin(p)
	default:
		return true
	}
}

// EmailAddress is one address on a contact's record.
type EmailAddress struct {
	Address   string
	ContactID string
	Verified  bool
	Blocked   bool

	eval *member.Evaluator
}

// IsInternal reports whether the address belongs to the union's own domain.
func (e *EmailAddress) IsInternal() bool {
	parts := strings.Split(e.Address, "@")
	return len(parts) == 2 && parts[1] == "peterboroughtenants.org"
}

func (e *EmailAddress) evaluator() *member.Evaluator {
	if e.eval == nil {
		e.eval = member.NewEvaluator()
	}
	return e.eval
}

func (e *EmailAddress) Guard(action string, p *member.Principal) (bool, error) {
	if action != "view" {
		return false, nil
	}
	if p != nil && p.ID == e.ContactID {
		return true, nil
	}
	return member.Allowed(e.evaluator().HasRole(p, member.RoleGlobalAdmin, nil)), nil
}

func (e *EmailAddress) Fields() map[string]any {
	return map[string]any{
		"address":  e.Address,
		"verified": e.Verified,
		"internal": e.IsInternal(),
	}
}
