// Package guard converts domain objects into output documents, consulting
// each object's per-action authorization predicate and per-field filters on
// the way. Every ambiguity resolves to "not visible": a guard that errors or
// panics hides its object, never exposes it.
package guard

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"peterboroughtenants.org/internal/member"
)

// ActionView is the default action when a handler does not name one.
const ActionView = "view"

var (
	// ErrForbidden is returned when the root object's guard denies the
	// requesting principal. Handlers map it to HTTP 403.
	ErrForbidden = errors.New("guard: forbidden")

	// ErrNotImplemented means an object without an authorization contract
	// reached the serializer. That is a code defect, not a user error;
	// handlers map it to HTTP 501.
	ErrNotImplemented = errors.New("guard: entity does not implement guard contract")
)

// Entity is the capability every serializable domain object must implement.
// Guard answers "may this principal perform action on me"; Fields returns
// the declared output field map, custom computed fields included.
type Entity interface {
	Guard(action string, p *member.Principal) (bool, error)
	Fields() map[string]any
}

// FieldFilter is optionally implemented by entities whose individual fields
// need principal-dependent visibility. Returning false omits the field.
type FieldFilter interface {
	FilterField(name string, p *member.Principal) bool
}

// Render serializes a root object or a homogeneous list of objects for the
// principal. For a list, denied elements are dropped; for a singleton, a
// denial fails the whole render with ErrForbidden. The include list, when
// non-empty, restricts top-level fields; nested objects always render their
// full declared field set.
//
// Output maps rely on encoding/json's sorted map-key order for
// deterministic bytes.
func Render(v any, p *member.Principal, action string, include []string) (any, error) {
	if action == "" {
		action = ActionView
	}

	if e, ok := v.(Entity); ok {
		out, visible := renderEntity(e, p, action, include)
		if !visible {
			return nil, ErrForbidden
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	if v == nil || rv.Kind() != reflect.Slice {
		return nil, ErrNotImplemented
	}

	result := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		e, ok := rv.Index(i).Interface().(Entity)
		if !ok {
			return nil, ErrNotImplemented
		}
		if out, visible := renderEntity(e, p, action, include); visible {
			result = append(result, out)
		}
	}
	return result, nil
}

func renderEntity(e Entity, p *member.Principal, action string, include []string) (map[string]any, bool) {
	if !allowed(e, action, p) {
		return nil, false
	}

	filterer, _ := e.(FieldFilter)
	out := make(map[string]any)
	for name, value := range e.Fields() {
		if excludedName(name) {
			continue
		}
		if len(include) > 0 && !contains(include, name) {
			continue
		}
		if filterer != nil && !fieldVisible(filterer, name, p) {
			continue
		}
		rendered, visible := renderValue(value, p, action)
		if !visible {
			continue
		}
		out[name] = rendered
	}
	return out, true
}

func renderValue(value any, p *member.Principal, action string) (any, bool) {
	switch t := value.(type) {
	case nil:
		return nil, false
	case time.Time:
		if t.IsZero() {
			return nil, false
		}
		return t.Format(time.RFC3339), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil, false
		}
		return t.Format(time.RFC3339), true
	case Entity:
		return renderEntity(t, p, action, nil)
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice {
		members := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, visible := renderValue(rv.Index(i).Interface(), p, action)
			if !visible {
				continue
			}
			if containsValue(members, item) {
				continue
			}
			members = append(members, item)
		}
		return members, true
	}

	return value, true
}

// allowed runs the guard predicate, treating errors and panics as denial.
func allowed(e Entity, action string, p *member.Principal) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	allow, err := e.Guard(action, p)
	if err != nil {
		return false
	}
	return allow
}

func fieldVisible(f FieldFilter, name string, p *member.Principal) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return f.FilterField(name, p)
}

// excludedName drops names that are never part of the output surface.
func excludedName(name string) bool {
	return strings.HasPrefix(name, "_") ||
		strings.HasSuffix(name, "_guard") ||
		strings.HasSuffix(name, "_filter")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsValue(list []any, v any) bool {
	for _, existing := range list {
		if reflect.DeepEqual(existing, v) {
			return true
		}
	}
	return false
}
