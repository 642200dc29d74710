package authn

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/guard"
	"github.com/ecolearn/ecolearn/internal/metrics"
	"github.com/ecolearn/ecolearn/internal/session"
	"github.com/labstack/echo/v5"
)

const (
	ContextKeyIdentity = "auth_identity"

	// SessionKeyVisitorID stores the visitor id in the cookie session.
	SessionKeyVisitorID = "visitor_id"
)

// SessionSource returns the session manager belonging to the requesting visitor.
type SessionSource interface {
	Manager(c *echo.Context) (*session.Manager, error)
}

// Loading renders the placeholder shown while a visitor's session is still resolving.
type Loading func(c *echo.Context) error

type GuardConfig struct {
	Routes guard.Routes
	// Wait bounds how long a request blocks for bootstrap before the loading
	// placeholder is shown.
	Wait    time.Duration
	Loading Loading
}

func IdentityFromContext(c *echo.Context) (auth.Identity, bool) {
	id, ok := c.Get(ContextKeyIdentity).(auth.Identity)
	return id, ok
}

// Require gates a route with policy. Guards compose: each one consults the
// visitor's session independently.
func Require(source SessionSource, cfg GuardConfig, policy guard.Policy) echo.MiddlewareFunc {
	if cfg.Routes.SignIn == "" && cfg.Routes.Home == nil {
		cfg.Routes = guard.DefaultRoutes()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			m, err := source.Manager(c)
			if err != nil {
				return err
			}
			waitForBootstrap(c.Request().Context(), m, cfg.Wait)

			view := m.View()
			decision := guard.Decide(view, policy, cfg.Routes)
			metrics.GuardDecisionsTotal.WithLabelValues(decision.Outcome.String()).Inc()

			switch decision.Outcome {
			case guard.Render:
				c.Set(ContextKeyIdentity, view.Identity)
				return next(c)
			case guard.Loading:
				return handleLoading(c, cfg.Loading)
			default:
				if view.Authenticated() {
					return handleForbidden(c, decision.Location)
				}
				return handleUnauth(c, decision.Location)
			}
		}
	}
}

func waitForBootstrap(ctx context.Context, m *session.Manager, wait time.Duration) {
	if wait <= 0 {
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	_ = m.Wait(waitCtx)
}

func isAPIRequest(c *echo.Context) bool {
	return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Request().URL.Path, "/api/")
}

func handleLoading(c *echo.Context, loading Loading) error {
	c.Response().Header().Set("Retry-After", "1")
	if isAPIRequest(c) || loading == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "resolving"})
	}
	return loading(c)
}

func handleForbidden(c *echo.Context, location string) error {
	if isAPIRequest(c) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
	}
	return c.Redirect(http.StatusSeeOther, location)
}

func handleUnauth(c *echo.Context, location string) error {
	if isAPIRequest(c) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	if c.Request().Method == http.MethodGet {
		if next := SanitizeNext(c.Request().URL.RequestURI()); next != "" {
			location = withNext(location, next)
		}
	}
	return c.Redirect(http.StatusSeeOther, location)
}

func withNext(location, next string) string {
	sep := "?"
	if strings.Contains(location, "?") {
		sep = "&"
	}
	return location + sep + "next=" + url.QueryEscape(next)
}

// authPaths never make sense as a post-login destination.
var authPaths = []string{"/login", "/register", "/logout", "/teacher/login"}

// SanitizeNext returns next when it is a safe same-origin redirect target and
// an empty string otherwise.
func SanitizeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || next == "/" || len(next) > 2048 {
		return ""
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	if strings.Contains(next, "\\") {
		return ""
	}

	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" || u.Scheme != "" {
		return ""
	}
	if strings.HasPrefix(u.Path, "//") || strings.Contains(u.Path, "\\") {
		return ""
	}
	for _, p := range authPaths {
		if u.Path == p || strings.HasPrefix(u.Path, p+"/") {
			return ""
		}
	}
	return next
}
