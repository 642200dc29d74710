package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/config"
	"github.com/ecolearn/ecolearn/internal/directory"
	"github.com/ecolearn/ecolearn/internal/http/viewmodels"
	"github.com/ecolearn/ecolearn/internal/session"
	"github.com/ecolearn/ecolearn/internal/storage"
	"github.com/labstack/echo/v5"
)

type staticSource struct {
	m *session.Manager
}

func (s staticSource) Manager(*echo.Context) (*session.Manager, error) {
	return s.m, nil
}

// newDemoManager returns a bootstrapped, anonymous manager backed by a
// seeded in-memory directory.
func newDemoManager(t *testing.T) *session.Manager {
	t.Helper()

	store := storage.NewMemory()
	m, err := session.New(session.Options{
		Storage:   store,
		Directory: directory.New(store, directory.Options{}),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	m.Bootstrap(context.Background())
	return m
}

func newFormContext(method, target string, form url.Values) (*echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func newAuthHandlerWithSessionContext(t *testing.T, c *echo.Context, m *session.Manager) *Handlers {
	t.Helper()

	sessions := scs.New()
	sessionCtx, err := sessions.Load(c.Request().Context(), "")
	if err != nil {
		t.Fatalf("sessions.Load() error = %v", err)
	}
	c.SetRequest(c.Request().WithContext(sessionCtx))

	return &Handlers{
		Cfg:      config.Config{DemoMode: true},
		Sessions: sessions,
		Visitors: staticSource{m: m},
		Validate: NewValidator(),
	}
}

func flashToastFrom(t *testing.T, h *Handlers, c *echo.Context) viewmodels.ToastViewData {
	t.Helper()

	toast := h.popToast(c)
	if toast == nil {
		t.Fatal("toast not stored in session")
	}
	return *toast
}

func TestHandleLogoutPostRedirectsNormallyForNonHTMX(t *testing.T) {
	c, rec := newTestContext(http.MethodPost, "http://example.com/logout")
	h := newAuthHandlerWithSessionContext(t, c, newDemoManager(t))

	if err := h.HandleLogoutPost(c); err != nil {
		t.Fatalf("HandleLogoutPost() error = %v", err)
	}

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != "/login" {
		t.Fatalf("Location = %q, want %q", got, "/login")
	}

	vary := parseVaryHeader(rec.Header().Get("Vary"))
	if vary["hx-request"] != 1 {
		t.Fatalf("Vary header missing hx-request: %v", vary)
	}
}

func TestHandleLogoutPostUsesHXRedirectForHTMX(t *testing.T) {
	c, rec := newTestContext(http.MethodPost, "http://example.com/logout")
	c.Request().Header.Set("HX-Request", "true")
	h := newAuthHandlerWithSessionContext(t, c, newDemoManager(t))

	if err := h.HandleLogoutPost(c); err != nil {
		t.Fatalf("HandleLogoutPost() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/login" {
		t.Fatalf("HX-Redirect = %q, want %q", got, "/login")
	}
}

func TestHandleLogoutPostClearsSession(t *testing.T) {
	m := newDemoManager(t)
	if !m.Login(context.Background(), "demo@ecolearn.com", "demo123") {
		t.Fatal("Login() = false")
	}

	c, _ := newTestContext(http.MethodPost, "http://example.com/logout")
	h := newAuthHandlerWithSessionContext(t, c, m)
	if err := h.HandleLogoutPost(c); err != nil {
		t.Fatalf("HandleLogoutPost() error = %v", err)
	}
	if m.View().Authenticated() {
		t.Fatalf("View() = %+v, want anonymous", m.View())
	}
}

func TestHandleLoginPost(t *testing.T) {
	tests := []struct {
		name         string
		form         url.Values
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{
			name:       "empty_fields",
			form:       url.Values{"email": {""}, "password": {""}},
			wantStatus: http.StatusOK,
			wantBody:   msgFillAllFields,
		},
		{
			name:       "wrong_password",
			form:       url.Values{"email": {"demo@ecolearn.com"}, "password": {"nope"}},
			wantStatus: http.StatusOK,
			wantBody:   "Invalid email or password. Please try again.",
		},
		{
			name:         "student",
			form:         url.Values{"email": {"demo@ecolearn.com"}, "password": {"demo123"}},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/",
		},
		{
			name:         "teacher",
			form:         url.Values{"email": {"teacher@ecolearn.com"}, "password": {"teacher123"}},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/teacher",
		},
		{
			name:         "next",
			form:         url.Values{"email": {"demo@ecolearn.com"}, "password": {"demo123"}, "next": {"/?tab=quests"}},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/?tab=quests",
		},
		{
			name:         "unsafe_next",
			form:         url.Values{"email": {"demo@ecolearn.com"}, "password": {"demo123"}, "next": {"//evil.example"}},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newFormContext(http.MethodPost, "http://example.com/login", tt.form)
			h := newAuthHandlerWithSessionContext(t, c, newDemoManager(t))

			if err := h.HandleLoginPost(c); err != nil {
				t.Fatalf("HandleLoginPost() error = %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantLocation != "" {
				if got := rec.Header().Get("Location"); got != tt.wantLocation {
					t.Fatalf("Location = %q, want %q", got, tt.wantLocation)
				}
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("body missing %q: %s", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestHandleLoginPostKeepsEmailOnFailure(t *testing.T) {
	form := url.Values{"email": {"demo@ecolearn.com"}, "password": {"wrong"}}
	c, rec := newFormContext(http.MethodPost, "http://example.com/login", form)
	h := newAuthHandlerWithSessionContext(t, c, newDemoManager(t))

	if err := h.HandleLoginPost(c); err != nil {
		t.Fatalf("HandleLoginPost() error = %v", err)
	}
	if !strings.Contains(rec.Body.String(), `value="demo@ecolearn.com"`) {
		t.Fatalf("expected email to be preserved: %s", rec.Body.String())
	}
}

func TestHandleTeacherLoginPost(t *testing.T) {
	tests := []struct {
		name         string
		email        string
		password     string
		wantLocation string
		wantTitle    string
	}{
		{
			name:         "teacher",
			email:        "teacher@ecolearn.com",
			password:     "teacher123",
			wantLocation: "/teacher",
			wantTitle:    "Welcome, Teacher!",
		},
		{
			name:         "mentor",
			email:        "mentor@ecolearn.com",
			password:     "mentor123",
			wantLocation: "/teacher",
			wantTitle:    "Welcome, Teacher!",
		},
		{
			name:         "student",
			email:        "demo@ecolearn.com",
			password:     "demo123",
			wantLocation: "/",
			wantTitle:    "Student account detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"email": {tt.email}, "password": {tt.password}}
			c, rec := newFormContext(http.MethodPost, "http://example.com/teacher/login", form)
			m := newDemoManager(t)
			h := newAuthHandlerWithSessionContext(t, c, m)

			if err := h.HandleTeacherLoginPost(c); err != nil {
				t.Fatalf("HandleTeacherLoginPost() error = %v", err)
			}
			if rec.Code != http.StatusSeeOther {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
			}
			if got := rec.Header().Get("Location"); got != tt.wantLocation {
				t.Fatalf("Location = %q, want %q", got, tt.wantLocation)
			}
			if got := flashToastFrom(t, h, c); got.Title != tt.wantTitle {
				t.Fatalf("toast title = %q, want %q", got.Title, tt.wantTitle)
			}
			if !m.View().Authenticated() {
				t.Fatal("expected an authenticated session")
			}
		})
	}
}

func TestHandleTeacherLoginPostRejectsBadCredentials(t *testing.T) {
	form := url.Values{"email": {"teacher@ecolearn.com"}, "password": {"wrong"}}
	c, rec := newFormContext(http.MethodPost, "http://example.com/teacher/login", form)
	h := newAuthHandlerWithSessionContext(t, c, newDemoManager(t))

	if err := h.HandleTeacherLoginPost(c); err != nil {
		t.Fatalf("HandleTeacherLoginPost() error = %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Invalid email or password. Please try again.") {
		t.Fatalf("missing error message: %s", body)
	}
	if !strings.Contains(body, `action="/teacher/login"`) {
		t.Fatalf("expected teacher form: %s", body)
	}
}

func TestHandleLoginGetRedirectsSignedInVisitor(t *testing.T) {
	m := newDemoManager(t)
	if !m.Login(context.Background(), "mentor@ecolearn.com", "mentor123") {
		t.Fatal("Login() = false")
	}

	c, rec := newTestContext(http.MethodGet, "http://example.com/login")
	h := newAuthHandlerWithSessionContext(t, c, m)
	if err := h.HandleLoginGet(c); err != nil {
		t.Fatalf("HandleLoginGet() error = %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != "/teacher" {
		t.Fatalf("Location = %q, want /teacher", got)
	}
}

func TestHandleLoginGetRendersForm(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "http://example.com/login?next=%2Fprogress")
	h := newAuthHandlerWithSessionContext(t, c, newDemoManager(t))

	if err := h.HandleLoginGet(c); err != nil {
		t.Fatalf("HandleLoginGet() error = %v", err)
	}
	body := rec.Body.String()
	for _, want := range []string{`action="/login"`, `name="next" value="/progress"`, "demo@ecolearn.com"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q: %s", want, body)
		}
	}
}

func TestHandleRegisterPost(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{
			name:       "mismatch",
			form:       url.Values{"name": {"Ana"}, "email": {"ana@x.io"}, "password": {"secret1"}, "confirm_password": {"secret2"}},
			wantStatus: http.StatusOK,
			wantBody:   msgPasswordMismatch,
		},
		{
			name:       "duplicate",
			form:       url.Values{"name": {"Ana"}, "email": {"demo@ecolearn.com"}, "password": {"secret1"}, "confirm_password": {"secret1"}},
			wantStatus: http.StatusOK,
			wantBody:   msgRegisterFailed,
		},
		{
			name:       "created",
			form:       url.Values{"name": {"Ana"}, "email": {"ana@x.io"}, "password": {"secret1"}, "confirm_password": {"secret1"}},
			wantStatus: http.StatusSeeOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newFormContext(http.MethodPost, "http://example.com/register", tt.form)
			m := newDemoManager(t)
			h := newAuthHandlerWithSessionContext(t, c, m)

			if err := h.HandleRegisterPost(c); err != nil {
				t.Fatalf("HandleRegisterPost() error = %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("body missing %q: %s", tt.wantBody, rec.Body.String())
			}
			if tt.wantStatus == http.StatusSeeOther {
				if got := rec.Header().Get("Location"); got != "/" {
					t.Fatalf("Location = %q, want /", got)
				}
				view := m.View()
				if view.Identity.Email != "ana@x.io" || view.Identity.Role != auth.RoleStudent {
					t.Fatalf("View() = %+v", view)
				}
			}
		})
	}
}

type forgettingSource struct {
	staticSource
	forgot int
}

func (s *forgettingSource) Forget(context.Context) {
	s.forgot++
}

func TestHandleLogoutPostDetachesVisitor(t *testing.T) {
	m := newDemoManager(t)
	if !m.Login(context.Background(), "demo@ecolearn.com", "demo123") {
		t.Fatal("Login() = false")
	}

	c, _ := newTestContext(http.MethodPost, "http://example.com/logout")
	h := newAuthHandlerWithSessionContext(t, c, m)
	source := &forgettingSource{staticSource: staticSource{m: m}}
	h.Visitors = source

	if err := h.HandleLogoutPost(c); err != nil {
		t.Fatalf("HandleLogoutPost() error = %v", err)
	}
	if source.forgot != 1 {
		t.Fatalf("Forget calls = %d, want 1", source.forgot)
	}
	if got := flashToastFrom(t, h, c); got.Title != "Signed out" {
		t.Fatalf("toast title = %q, want Signed out", got.Title)
	}
}
