// Package guard decides whether a route may render for the current session.
package guard

import (
	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/session"
)

// Outcome is what the caller should do with the guarded route.
type Outcome int

const (
	Render Outcome = iota
	Loading
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Policy is the access rule declared by a route. An empty AllowedRoles admits
// any authenticated identity; an empty RedirectTo selects the Routes defaults.
type Policy struct {
	AllowedRoles []auth.Role
	RedirectTo   string
}

// Routes holds the default redirect targets.
type Routes struct {
	SignIn string
	// Home returns the landing path for a role that was refused.
	Home func(auth.Role) string
}

const (
	PathSignIn       = "/login"
	PathStudentHome  = "/"
	PathTeacherHome  = "/teacher"
	PathTeacherLogin = "/teacher/login"
)

// HomeForRole sends staff to the teacher area and everyone else to the student area.
func HomeForRole(role auth.Role) string {
	if role.IsStaff() {
		return PathTeacherHome
	}
	return PathStudentHome
}

func DefaultRoutes() Routes {
	return Routes{SignIn: PathSignIn, Home: HomeForRole}
}

type Decision struct {
	Outcome  Outcome
	Location string
}

// Decide evaluates policy against view. It has no side effects, so any number
// of guards may consult the same session concurrently.
func Decide(view session.View, policy Policy, routes Routes) Decision {
	if view.Resolving || view.State == session.StateResolving {
		return Decision{Outcome: Loading}
	}
	if !view.Authenticated() {
		return Decision{Outcome: Redirect, Location: firstNonEmpty(policy.RedirectTo, routes.SignIn, PathSignIn)}
	}
	if len(policy.AllowedRoles) > 0 && !view.Identity.Role.In(policy.AllowedRoles) {
		home := ""
		if routes.Home != nil {
			home = routes.Home(view.Identity.Role)
		}
		return Decision{Outcome: Redirect, Location: firstNonEmpty(policy.RedirectTo, home, PathStudentHome)}
	}
	return Decision{Outcome: Render}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
