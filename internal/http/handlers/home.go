package handlers

import (
	"net/http"

	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/http/authn"
	"github.com/ecolearn/ecolearn/internal/http/viewmodels"
	"github.com/ecolearn/ecolearn/internal/http/views"
	"github.com/labstack/echo/v5"
)

const loadingRefreshSeconds = 1

func (h *Handlers) HandleStudentHome(c *echo.Context) error {
	return h.RenderComponent(c, views.StudentHomePage(h.LayoutData(c, "Dashboard")))
}

func (h *Handlers) HandleTeacherHome(c *echo.Context) error {
	return h.RenderComponent(c, views.TeacherHomePage(h.LayoutData(c, "Teacher dashboard")))
}

// HandleLoading renders the placeholder shown while a protected page waits
// for the visitor's session to resolve.
func (h *Handlers) HandleLoading(c *echo.Context) error {
	path := c.Request().URL.RequestURI()
	if sanitized := authn.SanitizeNext(path); sanitized != "" {
		path = sanitized
	} else {
		path = c.Request().URL.Path
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	c.Response().Header().Set("Retry-After", "1")
	return h.RenderComponent(c, views.LoadingPage(viewmodels.LoadingViewData{
		Path:           path,
		RefreshSeconds: loadingRefreshSeconds,
	}))
}

type sessionUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type sessionResponse struct {
	State     string       `json:"state"`
	Resolving bool         `json:"resolving"`
	User      *sessionUser `json:"user"`
}

// HandleSessionAPI reports the visitor's current session view without
// waiting for bootstrap to finish.
func (h *Handlers) HandleSessionAPI(c *echo.Context) error {
	m, err := h.Visitors.Manager(c)
	if err != nil {
		return err
	}
	view := m.View()
	resp := sessionResponse{
		State:     view.State.String(),
		Resolving: view.Resolving,
	}
	if view.Authenticated() {
		resp.User = userJSON(view.Identity)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, resp)
}

func userJSON(identity auth.Identity) *sessionUser {
	return &sessionUser{
		ID:    identity.ID,
		Name:  identity.Name,
		Email: identity.Email,
		Role:  identity.Role.String(),
	}
}

func (h *Handlers) HandleHealthz(c *echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
