package notify

import (
	"fmt"
	"sort"
	"strings"
)

// Templates are deliberately plain text. Each maps to a body with
// %{key} placeholders substituted from Message.Data.
var templates = map[string]string{
	"welcome": "Hello %{name},\n\n" +
		"Welcome to Peterborough Tenants Union. Your membership number is %{membership_number}.\n\n" +
		"In solidarity,\nThe membership team",
	"password_changed": "Hello %{name},\n\n" +
		"The password on your account was changed. If this was not you, contact " +
		"the membership team immediately.\n",
	"login_notice": "Hello %{name},\n\n" +
		"A new device signed in to your account. If this was not you, change " +
		"your password.\n",
}

func render(m *Message) error {
	tmpl, ok := templates[m.Template]
	if !ok {
		return fmt.Errorf("notify: unknown template %q", m.Template)
	}
	body := tmpl
	for k, v := range m.Data {
		body = strings.ReplaceAll(body, "%{"+k+"}", v)
	}
	if missing := unfilled(body); len(missing) > 0 {
		return fmt.Errorf("notify: template %q missing data for %s", m.Template, strings.Join(missing, ", "))
	}
	m.Body = body
	return nil
}

func unfilled(body string) []string {
	var missing []string
	rest := body
	for {
		i := strings.Index(rest, "%{")
		if i < 0 {
			break
		}
		rest = rest[i+2:]
		j := strings.Index(rest, "}")
		if j < 0 {
			break
		}
		missing = append(missing, rest[:j])
		rest = rest[j+1:]
	}
	sort.Strings(missing)
	return missing
}
