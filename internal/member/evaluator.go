package member

import "time"

// Evaluator answers permission questions over a loaded principal. It has no
// side effects; the database read happens when the principal's grants are
// loaded by the store.
type Evaluator struct {
	now func() time.Time
}

// EvaluatorOption configures Evaluator behavior.
type EvaluatorOption func(*Evaluator)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check is a single requirement over a principal, for composition with
// AllOf and AnyOf.
type Check func(p *Principal) error

// Trusted fails unless the principal exists, is not blocked, and arrived on
// a session that completed step-up verification.
func (e *Evaluator) Trusted(p *Principal) error {
	if p == nil || p.ID == "" {
		return denied("no authenticated principal")
	}
	if p.Blocked {
		return denied("account blocked")
	}
	if !p.Trusted {
		return denied("session not trusted")
	}
	return nil
}

// HasRole fails unless the principal holds a non-expired grant for the role,
// and, when unit is non-nil, a grant scoped to that unit (or a global grant
// for the role). A global.admin grant satisfies any check.
func (e *Evaluator) HasRole(p *Principal, role RoleType, unit *Unit) error {
	if p == nil || p.ID == "" {
		return denied("no authenticated principal")
	}
	now := e.now()
	for _, g := range p.Grants {
		if !g.ActiveAt(now) {
			continue
		}
		if g.Role == RoleGlobalAdmin {
			return nil
		}
		if g.Role != role {
			continue
		}
		if unit == nil || g.Unit == nil {
			return nil
		}
		if g.Unit.Type == unit.Type && g.Unit.ID == unit.ID {
			return nil
		}
	}
	if unit != nil {
		return denied("missing role " + string(role) + " in " + string(unit.Type) + " " + unit.ID)
	}
	return denied("missing role " + string(role))
}

// RequireTrusted adapts Trusted for composition.
func (e *Evaluator) RequireTrusted() Check {
	return func(p *Principal) error { return e.Trusted(p) }
}

// RequireRole adapts HasRole for composition.
func (e *Evaluator) RequireRole(role RoleType, unit *Unit) Check {
	return func(p *Principal) error { return e.HasRole(p, role, unit) }
}

// AllOf fails on the first check that denies.
func (e *Evaluator) AllOf(p *Principal, checks ...Check) error {
	for _, check := range checks {
		if err := check(p); err != nil {
			return err
		}
	}
	return nil
}

// AnyOf succeeds on the first check that allows. With no checks it denies.
func (e *Evaluator) AnyOf(p *Principal, checks ...Check) error {
	var last error = denied("no requirements satisfied")
	for _, check := range checks {
		err := check(p)
		if err == nil {
			return nil
		}
		last = err
	}
	return last
}
