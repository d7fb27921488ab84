package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/metrics":                  "/metrics",
		"/contacts":                 "/contacts",
		"/contacts/412":             "/contacts/:id",
		"/contacts/412/password":    "/contacts/:id/password",
		"/contacts/412/extra/thing": "/contacts/412/extra/thing",
		"/pages":                    "/pages",
		"/pages/rent-strike-faq":    "/pages/:slug",
		"/pages/faq?category=help":  "/pages/:slug",
		"/session":                  "/session",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
