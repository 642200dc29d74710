// Package handlers contains HTTP handler logic split by domain.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"github.com/alexedwards/scs/v2"
	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/config"
	"github.com/ecolearn/ecolearn/internal/guard"
	"github.com/ecolearn/ecolearn/internal/http/authn"
	"github.com/ecolearn/ecolearn/internal/http/viewmodels"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

const (
	// ContextKeyRequestID stores the request id (X-Request-ID) for logging and client error references.
	ContextKeyRequestID = "request_id"

	// InternalErrorCode is a stable error code safe to return to clients.
	InternalErrorCode = "INTERNAL_ERROR"
)

// Handlers groups all HTTP handlers and shared dependencies.
type Handlers struct {
	Cfg      config.Config
	Sessions *scs.SessionManager
	Visitors authn.SessionSource
	Validate *validator.Validate
	Routes   guard.Routes
}

func (h *Handlers) routes() guard.Routes {
	if h.Routes.SignIn == "" && h.Routes.Home == nil {
		return guard.DefaultRoutes()
	}
	return h.Routes
}

func (h *Handlers) home(role auth.Role) string {
	routes := h.routes()
	if routes.Home == nil {
		return guard.PathStudentHome
	}
	return routes.Home(role)
}

// LayoutData builds the common layout data for page rendering.
func (h *Handlers) LayoutData(c *echo.Context, title string) viewmodels.LayoutData {
	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	data := viewmodels.LayoutData{
		Title:      title,
		CSRFToken:  csrfToken,
		Toast:      h.popToast(c),
		ActivePath: c.Request().URL.Path,
	}
	if identity, ok := authn.IdentityFromContext(c); ok {
		data.UserName = identity.Name
		data.UserEmail = identity.Email
		data.UserRole = identity.Role.String()
		data.IsStaff = identity.Role.IsStaff()
	}
	return data
}

// RenderComponent renders a templ component into the response.
func (h *Handlers) RenderComponent(c *echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(c.Request().Context(), c.Response()); err != nil {
		return h.RenderError(c, err)
	}
	return nil
}

// RenderError returns a plain text error response.
func (h *Handlers) RenderError(c *echo.Context, err error) error {
	requestID, _ := c.Get(ContextKeyRequestID).(string)
	path := ""
	if req := c.Request(); req != nil && req.URL != nil {
		path = req.URL.Path
	}
	method := ""
	if req := c.Request(); req != nil {
		method = req.Method
	}
	c.Logger().Error("http error",
		"request_id", requestID,
		"method", method,
		"path", path,
		"ip", c.RealIP(),
		"error", err,
	)

	msg := "Internal server error."
	if requestID != "" {
		msg = fmt.Sprintf("%s Reference: %s.", msg, requestID)
	}
	msg = fmt.Sprintf("%s Code: %s.", msg, InternalErrorCode)
	return c.String(http.StatusInternalServerError, msg)
}

func RenderNotFound(c *echo.Context) error {
	return c.String(http.StatusNotFound, "404 page not found")
}
