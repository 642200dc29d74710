package guard

import (
	"testing"

	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/session"
)

func authenticated(role auth.Role) session.View {
	return session.View{
		State:    session.StateAuthenticated,
		Identity: auth.Identity{ID: "x", Role: role},
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	staff := Policy{AllowedRoles: []auth.Role{auth.RoleTeacher, auth.RoleAdmin}}
	staffWithRedirect := Policy{AllowedRoles: []auth.Role{auth.RoleTeacher, auth.RoleAdmin}, RedirectTo: PathTeacherLogin}
	students := Policy{AllowedRoles: []auth.Role{auth.RoleStudent}}

	tests := []struct {
		name   string
		view   session.View
		policy Policy
		want   Decision
	}{
		{
			name: "resolving shows loading",
			view: session.View{State: session.StateResolving, Resolving: true},
			want: Decision{Outcome: Loading},
		},
		{
			name: "anonymous goes to sign in",
			view: session.View{State: session.StateAnonymous},
			want: Decision{Outcome: Redirect, Location: PathSignIn},
		},
		{
			name:   "anonymous honors redirect",
			view:   session.View{State: session.StateAnonymous},
			policy: staffWithRedirect,
			want:   Decision{Outcome: Redirect, Location: PathTeacherLogin},
		},
		{
			name: "any role without allowed roles",
			view: authenticated(auth.RoleStudent),
			want: Decision{Outcome: Render},
		},
		{
			name:   "student refused from staff area goes home",
			view:   authenticated(auth.RoleStudent),
			policy: staff,
			want:   Decision{Outcome: Redirect, Location: PathStudentHome},
		},
		{
			name:   "teacher renders staff area",
			view:   authenticated(auth.RoleTeacher),
			policy: staff,
			want:   Decision{Outcome: Render},
		},
		{
			name:   "teacher refused from student area goes to teacher area",
			view:   authenticated(auth.RoleTeacher),
			policy: students,
			want:   Decision{Outcome: Redirect, Location: PathTeacherHome},
		},
		{
			name:   "admin refused from student area goes to teacher area",
			view:   authenticated(auth.RoleAdmin),
			policy: students,
			want:   Decision{Outcome: Redirect, Location: PathTeacherHome},
		},
		{
			name:   "explicit redirect wins over role home",
			view:   authenticated(auth.RoleStudent),
			policy: staffWithRedirect,
			want:   Decision{Outcome: Redirect, Location: PathTeacherLogin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Decide(tt.view, tt.policy, DefaultRoutes()); got != tt.want {
				t.Fatalf("Decide() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecideUsesInjectedHome(t *testing.T) {
	t.Parallel()

	routes := Routes{
		SignIn: "/auth",
		Home: func(role auth.Role) string {
			return "/home/" + role.String()
		},
	}
	policy := Policy{AllowedRoles: []auth.Role{auth.RoleAdmin}}

	if got := Decide(authenticated(auth.RoleTeacher), policy, routes); got.Location != "/home/teacher" {
		t.Fatalf("Location = %q, want /home/teacher", got.Location)
	}
	if got := Decide(session.View{State: session.StateAnonymous}, policy, routes); got.Location != "/auth" {
		t.Fatalf("Location = %q, want /auth", got.Location)
	}
}

func TestDecideZeroRoutesFallsBack(t *testing.T) {
	t.Parallel()

	if got := Decide(session.View{State: session.StateAnonymous}, Policy{}, Routes{}); got.Location != PathSignIn {
		t.Fatalf("Location = %q, want %q", got.Location, PathSignIn)
	}
	policy := Policy{AllowedRoles: []auth.Role{auth.RoleAdmin}}
	if got := Decide(authenticated(auth.RoleStudent), policy, Routes{}); got.Location != PathStudentHome {
		t.Fatalf("Location = %q, want %q", got.Location, PathStudentHome)
	}
}

func TestNestedGuardsDecideIndependently(t *testing.T) {
	t.Parallel()

	view := authenticated(auth.RoleTeacher)
	outer := Decide(view, Policy{}, DefaultRoutes())
	inner := Decide(view, Policy{AllowedRoles: []auth.Role{auth.RoleAdmin}, RedirectTo: "/denied"}, DefaultRoutes())

	if outer.Outcome != Render {
		t.Fatalf("outer = %+v, want render", outer)
	}
	if inner.Outcome != Redirect || inner.Location != "/denied" {
		t.Fatalf("inner = %+v, want redirect to /denied", inner)
	}
}
