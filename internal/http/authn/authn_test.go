package authn

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/guard"
	"github.com/ecolearn/ecolearn/internal/session"
	"github.com/ecolearn/ecolearn/internal/storage"
	"github.com/labstack/echo/v5"
)

func TestSanitizeNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace", in: "   ", want: ""},
		{name: "root", in: "/", want: ""},
		{name: "ok_path", in: "/teacher", want: "/teacher"},
		{name: "ok_path_query", in: "/teacher?tab=classes", want: "/teacher?tab=classes"},
		{name: "ok_root_query", in: "/?foo=bar", want: "/?foo=bar"},
		{name: "absolute_url", in: "https://evil.example/", want: ""},
		{name: "protocol_relative", in: "//evil.example/", want: ""},
		{name: "triple_slash", in: "///evil.example/", want: ""},
		{name: "backslash", in: "/\\evil.example/", want: ""},
		{name: "encoded_slash", in: "/%2f%2fevil.example/", want: ""},
		{name: "encoded_backslash", in: "/%5cevil.example/", want: ""},
		{name: "login_path", in: "/login", want: ""},
		{name: "login_subpath", in: "/login/reset", want: ""},
		{name: "register_path", in: "/register", want: ""},
		{name: "teacher_login_path", in: "/teacher/login", want: ""},
		{name: "newline", in: "/\n/evil", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeNext(tt.in); got != tt.want {
				t.Fatalf("SanitizeNext(%q)=%q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

type staticSource struct {
	m *session.Manager
}

func (s staticSource) Manager(*echo.Context) (*session.Manager, error) {
	return s.m, nil
}

type stubLogin struct {
	identity auth.Identity
}

func (stubLogin) Name() string { return "stub" }

func (s stubLogin) Resolve(context.Context, session.Request) (session.Resolution, error) {
	return session.Resolution{Identity: s.identity}, nil
}

func newManager(t *testing.T, role auth.Role, bootstrap bool) *session.Manager {
	t.Helper()
	m, err := session.New(session.Options{
		Storage:        storage.NewMemory(),
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		LoginResolvers: []session.Resolver{stubLogin{identity: auth.Identity{ID: "u1", Name: "U", Role: role}}},
	})
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	if bootstrap {
		m.Bootstrap(context.Background())
	}
	if role != "" {
		if !m.Login(context.Background(), "u@x.io", "pw") {
			t.Fatal("Login() = false")
		}
	}
	return m
}

func serveGuarded(t *testing.T, m *session.Manager, policy guard.Policy, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	cfg := GuardConfig{
		Routes: guard.DefaultRoutes(),
		Loading: func(c *echo.Context) error {
			return c.String(http.StatusOK, "loading")
		},
	}
	handler := func(c *echo.Context) error {
		id, ok := IdentityFromContext(c)
		if !ok {
			t.Fatal("identity missing from context")
		}
		return c.String(http.StatusOK, "hello "+id.Name)
	}

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := Require(staticSource{m: m}, cfg, policy)(handler)(c); err != nil {
		t.Fatalf("middleware error = %v", err)
	}
	return rec
}

func TestRequireAnonymousRedirectsToSignIn(t *testing.T) {
	t.Parallel()
	m := newManager(t, "", true)

	rec := serveGuarded(t, m, guard.Policy{AllowedRoles: []auth.Role{auth.RoleStudent}}, "/progress")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != "/login?next=%2Fprogress" {
		t.Fatalf("Location = %q", got)
	}
}

func TestRequireAnonymousUsesPolicyRedirect(t *testing.T) {
	t.Parallel()
	m := newManager(t, "", true)

	policy := guard.Policy{AllowedRoles: []auth.Role{auth.RoleTeacher, auth.RoleAdmin}, RedirectTo: "/teacher/login"}
	rec := serveGuarded(t, m, policy, "/teacher")
	if got := rec.Header().Get("Location"); got != "/teacher/login?next=%2Fteacher" {
		t.Fatalf("Location = %q", got)
	}
}

func TestRequireWrongRoleRedirectsHome(t *testing.T) {
	t.Parallel()
	m := newManager(t, auth.RoleTeacher, true)

	rec := serveGuarded(t, m, guard.Policy{AllowedRoles: []auth.Role{auth.RoleStudent}}, "/")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != "/teacher" {
		t.Fatalf("Location = %q, want /teacher", got)
	}
}

func TestRequireAllowedRoleRenders(t *testing.T) {
	t.Parallel()
	m := newManager(t, auth.RoleAdmin, true)

	rec := serveGuarded(t, m, guard.Policy{AllowedRoles: []auth.Role{auth.RoleTeacher, auth.RoleAdmin}}, "/teacher")
	if rec.Code != http.StatusOK || rec.Body.String() != "hello U" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestRequireResolvingShowsLoading(t *testing.T) {
	t.Parallel()
	m := newManager(t, "", false)

	rec := serveGuarded(t, m, guard.Policy{}, "/")
	if rec.Code != http.StatusOK || rec.Body.String() != "loading" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRequireAPIRequestsGetJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m    *session.Manager
		want int
	}{
		{name: "resolving", m: newManager(t, "", false), want: http.StatusServiceUnavailable},
		{name: "anonymous", m: newManager(t, "", true), want: http.StatusUnauthorized},
		{name: "forbidden", m: newManager(t, auth.RoleStudent, true), want: http.StatusForbidden},
	}
	policy := guard.Policy{AllowedRoles: []auth.Role{auth.RoleAdmin}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serveGuarded(t, tt.m, policy, "/api/teacher/classes")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Fatalf("Content-Type = %q", ct)
			}
		})
	}
}

func TestRequireNestedGuardsDecideIndependently(t *testing.T) {
	t.Parallel()
	m := newManager(t, auth.RoleAdmin, true)

	e := echo.New()
	cfg := GuardConfig{Routes: guard.DefaultRoutes()}
	staff := Require(staticSource{m: m}, cfg, guard.Policy{AllowedRoles: []auth.Role{auth.RoleTeacher, auth.RoleAdmin}})
	teacherOnly := Require(staticSource{m: m}, cfg, guard.Policy{AllowedRoles: []auth.Role{auth.RoleTeacher}, RedirectTo: "/teacher/login"})

	inner := func(c *echo.Context) error {
		t.Fatal("inner handler must not run")
		return nil
	}
	req := httptest.NewRequest(http.MethodGet, "/teacher/grading", nil)
	rec := httptest.NewRecorder()
	if err := staff(teacherOnly(inner))(e.NewContext(req, rec)); err != nil {
		t.Fatalf("middleware error = %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != "/teacher/login" {
		t.Fatalf("Location = %q, want /teacher/login", got)
	}
}

func TestRequireWaitsForBootstrap(t *testing.T) {
	t.Parallel()
	m := newManager(t, "", false)

	e := echo.New()
	cfg := GuardConfig{
		Routes: guard.DefaultRoutes(),
		Wait:   5 * time.Second,
		Loading: func(c *echo.Context) error {
			return c.String(http.StatusOK, "loading")
		},
	}
	handler := func(c *echo.Context) error { return c.String(http.StatusOK, "ok") }

	go m.Bootstrap(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := Require(staticSource{m: m}, cfg, guard.Policy{})(handler)(e.NewContext(req, rec)); err != nil {
		t.Fatalf("middleware error = %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d body = %q, want redirect after bootstrap", rec.Code, rec.Body.String())
	}
}
