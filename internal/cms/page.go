package cms

import (
	"time"

	"peterboroughtenants.org/internal/member"
)

// Page statuses are derived from the record, never stored.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Page is a piece of site content addressed by slug.
type Page struct {
	ID          string
	Slug        string
	Title       string
	Description string
	Body        string
	Category    string
	Archived    bool
	PublishOn   time.Time
	CreatedOn   time.Time
	UpdatedOn   time.Time

	eval *member.Evaluator
	now  func() time.Time
}

func (p *Page) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// Status derives the page lifecycle state. Archived wins over everything,
// a page with no publish date is a draft, a future date means scheduled.
func (p *Page) Status() string {
	switch {
	case p.Archived:
		return StatusArchived
	case p.PublishOn.IsZero():
		return StatusDraft
	case p.PublishOn.After(p.clock()):
		return StatusScheduled
	default:
		return StatusPublished
	}
}

func (p *Page) evaluator() *member.Evaluator {
	if p.eval == nil {
		p.eval = member.NewEvaluator()
	}
	return p.eval
}

func (p *Page) isAdmin(pr *member.Principal) bool {
	return member.Allowed(p.evaluator().HasRole(pr, member.RoleGlobalAdmin, nil))
}

// Guard lets anyone read published pages; drafts, scheduled and archived
// pages are for administrators only, as is any mutation.
func (p *Page) Guard(action string, pr *member.Principal) (bool, error) {
	switch action {
	case "view":
		return p.Status() == StatusPublished || p.isAdmin(pr), nil
	case "edit", "delete":
		return p.isAdmin(pr), nil
	default:
		return false, nil
	}
}

func (p *Page) Fields() map[string]any {
	return map[string]any{
		"id":          p.ID,
		"slug":        p.Slug,
		"title":       p.Title,
		"description": p.Description,
		"body":        p.Body,
		"category":    p.Category,
		"status":      p.Status(),
		"publish_on":  p.PublishOn,
		"created":     p.CreatedOn,
		"updated":     p.UpdatedOn,
	}
}

// FilterField hides editorial state from public readers.
func (p *Page) FilterField(name string, pr *member.Principal) bool {
	switch name {
	case "status", "publish_on":
		return p.isAdmin(pr)
	default:
		return true
	}
}
