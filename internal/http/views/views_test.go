package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/ecolearn/ecolearn/internal/http/viewmodels"
)

func renderViewComponent(t *testing.T, component templ.Component) string {
	t.Helper()

	var buf bytes.Buffer
	if err := component.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render component: %v", err)
	}
	return buf.String()
}

func assertContains(t *testing.T, content, want string) {
	t.Helper()
	if !strings.Contains(content, want) {
		t.Fatalf("expected rendered HTML to contain %q", want)
	}
}

func assertNotContains(t *testing.T, content, disallowed string) {
	t.Helper()
	if strings.Contains(content, disallowed) {
		t.Fatalf("expected rendered HTML to not contain %q", disallowed)
	}
}

func TestLayoutEnablesGlobalHTMXBoost(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, Layout(viewmodels.LayoutData{
		Title:     "Dashboard",
		CSRFToken: "csrf-token-123",
	}))

	assertContains(t, html, `hx-boost="true"`)
	assertContains(t, html, `X-CSRF-Token`)
	assertContains(t, html, `csrf-token-123`)
	assertContains(t, html, `<title>Dashboard · EcoLearn</title>`)
}

func TestLayoutLogoutFormOptsOutOfHTMXBoost(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, Layout(viewmodels.LayoutData{
		Title:     "Dashboard",
		CSRFToken: "csrf-token-123",
		UserName:  "Teacher Admin",
		UserEmail: "teacher@ecolearn.com",
		UserRole:  "teacher",
		IsStaff:   true,
	}))

	assertContains(t, html, `form method="post" action="/logout" hx-boost="false"`)
	assertContains(t, html, `href="/teacher"`)
	assertContains(t, html, "Teacher")
}

func TestLayoutHidesAccountForAnonymousVisitors(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, Layout(viewmodels.LayoutData{Title: "Sign in"}))
	assertNotContains(t, html, `action="/logout"`)
}

func TestLayoutEscapesUserContent(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, Layout(viewmodels.LayoutData{
		UserName:  `<script>alert(1)</script>`,
		UserEmail: "x@y.io",
		Toast:     &viewmodels.ToastViewData{Category: "error", Title: `<b>bad</b>`},
	}))
	assertNotContains(t, html, `<script>alert(1)</script>`)
	assertNotContains(t, html, `<b>bad</b>`)
	assertContains(t, html, `toast toast-error`)
}

func TestLoginPageDemoHints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    viewmodels.LoginViewData
		want    []string
		notWant []string
	}{
		{
			name:    "student_demo",
			data:    viewmodels.LoginViewData{DemoMode: true},
			want:    []string{`action="/login"`, "demo@ecolearn.com", `href="/teacher/login"`},
			notWant: []string{"teacher@ecolearn.com"},
		},
		{
			name:    "teacher_demo",
			data:    viewmodels.LoginViewData{Teacher: true, DemoMode: true},
			want:    []string{`action="/teacher/login"`, "teacher@ecolearn.com", "Teacher sign in"},
			notWant: []string{"demo@ecolearn.com"},
		},
		{
			name:    "no_demo",
			data:    viewmodels.LoginViewData{Teacher: true},
			want:    []string{`action="/teacher/login"`},
			notWant: []string{"teacher123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			html := renderViewComponent(t, LoginPage(tt.data))
			for _, want := range tt.want {
				assertContains(t, html, want)
			}
			for _, disallowed := range tt.notWant {
				assertNotContains(t, html, disallowed)
			}
		})
	}
}

func TestLoginPageShowsErrorAndNext(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, LoginPage(viewmodels.LoginViewData{
		CSRFToken:    "tok",
		Email:        "demo@ecolearn.com",
		Next:         "/progress",
		ErrorMessage: "Invalid email or password. Please try again.",
	}))
	assertContains(t, html, `role="alert"`)
	assertContains(t, html, "Invalid email or password. Please try again.")
	assertContains(t, html, `name="next" value="/progress"`)
	assertContains(t, html, `name="csrf" value="tok"`)
}

func TestRegisterPageKeepsInput(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, RegisterPage(viewmodels.RegisterViewData{
		Name:         "Ana",
		Email:        "ana@x.io",
		ErrorMessage: "Passwords do not match",
	}))
	assertContains(t, html, `value="Ana"`)
	assertContains(t, html, `value="ana@x.io"`)
	assertContains(t, html, `name="confirm_password"`)
	assertContains(t, html, "Passwords do not match")
}

func TestLoadingPageRefreshes(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, LoadingPage(viewmodels.LoadingViewData{Path: "/teacher"}))
	assertContains(t, html, `http-equiv="refresh"`)
	assertContains(t, html, `content="1; url=/teacher"`)
}

func TestLayoutRendersChildrenInsideMain(t *testing.T) {
	t.Parallel()

	body := templ.Raw(`<p id="child">quests</p>`)
	html := renderViewComponent(t, Layout(viewmodels.LayoutData{}))
	assertNotContains(t, html, `id="child"`)

	var buf bytes.Buffer
	ctx := templ.WithChildren(context.Background(), body)
	if err := Layout(viewmodels.LayoutData{}).Render(ctx, &buf); err != nil {
		t.Fatalf("render layout: %v", err)
	}
	assertContains(t, buf.String(), `<main><p id="child">quests</p></main>`)
	assertContains(t, buf.String(), `<title>EcoLearn</title>`)
	assertContains(t, buf.String(), `hx-headers="{}"`)
}

func TestHomePages(t *testing.T) {
	t.Parallel()

	layout := viewmodels.LayoutData{
		UserName:  "Teacher Admin",
		UserEmail: "teacher@ecolearn.com",
		UserRole:  "teacher",
		IsStaff:   true,
	}
	teacher := renderViewComponent(t, TeacherHomePage(layout))
	assertContains(t, teacher, "<h1>Teacher dashboard</h1>")
	assertContains(t, teacher, "Teacher Admin · Teacher · teacher@ecolearn.com")

	layout = viewmodels.LayoutData{UserName: "Demo Student", UserEmail: "demo@ecolearn.com"}
	student := renderViewComponent(t, StudentHomePage(layout))
	assertContains(t, student, "<h1>Welcome back, Demo Student!</h1>")
	assertContains(t, student, `<a href="/">Dashboard</a>`)
	assertNotContains(t, student, `href="/teacher"`)
}

func TestRefreshContentDefaults(t *testing.T) {
	t.Parallel()

	if got := RefreshContent(viewmodels.LoadingViewData{}); got != "1; url=/" {
		t.Fatalf("RefreshContent() = %q, want %q", got, "1; url=/")
	}
	if got := RefreshContent(viewmodels.LoadingViewData{Path: "/teacher", RefreshSeconds: 3}); got != "3; url=/teacher" {
		t.Fatalf("RefreshContent() = %q", got)
	}
}
