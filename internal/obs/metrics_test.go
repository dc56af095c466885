package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"": "/",
		"/healthz":                                "/healthz",
		"/public/auth/login":                      "/public/auth/login",
		"/private/roles":                          "/private/roles",
		"/private/roles/01J0ABC":                  "/private/roles/:id",
		"/private/roles/01J0ABC/permissions":      "/private/roles/:id/permissions",
		"/private/permissions/01J0DEF":            "/private/permissions/:id",
		"/private/users/01J0GHI":                  "/private/users/:id",
		"/private/users/01J0GHI/approve":          "/private/users/:id/approve",
		"/private/users/01J0GHI?include=profile":  "/private/users/:id",
		"/private/users/01J0GHI/approve/trailing": "/private/users/01J0GHI/approve/trailing",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
