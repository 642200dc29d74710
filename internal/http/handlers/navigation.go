package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ecolearn/ecolearn/internal/http/viewmodels"
	"github.com/labstack/echo/v5"
)

// sessionKeyToast holds the toast shown on the page after an auth redirect.
const sessionKeyToast = "toast"

var (
	toastWelcomeBack = viewmodels.ToastViewData{
		Category:    "success",
		Title:       "Welcome back!",
		Description: "You have successfully logged in.",
	}
	toastWelcomeTeacher = viewmodels.ToastViewData{
		Category:    "success",
		Title:       "Welcome, Teacher!",
		Description: "You have successfully logged in.",
	}
	toastStudentOnTeacherPortal = viewmodels.ToastViewData{
		Category:    "info",
		Title:       "Student account detected",
		Description: "This portal is for teachers. Redirecting to student dashboard.",
	}
	toastRegistered = viewmodels.ToastViewData{
		Category:    "success",
		Title:       "Welcome to EcoLearn!",
		Description: "Your account has been created.",
	}
	toastSignedOut = viewmodels.ToastViewData{
		Category: "success",
		Title:    "Signed out",
	}
)

// visitorForgetter is implemented by visitor sources that can detach the
// requesting browser from its session manager.
type visitorForgetter interface {
	Forget(ctx context.Context)
}

// finishAuth stores toast in the cookie session and navigates to location.
// Boosted htmx form posts get HX-Redirect so the browser reloads the layout
// for the new identity.
func (h *Handlers) finishAuth(c *echo.Context, location string, toast viewmodels.ToastViewData) error {
	h.putToast(c.Request().Context(), toast)

	c.Response().Header().Add(echo.HeaderVary, "HX-Request")
	if strings.EqualFold(c.Request().Header.Get("HX-Request"), "true") {
		c.Response().Header().Set("HX-Redirect", location)
		return c.NoContent(http.StatusOK)
	}
	return c.Redirect(http.StatusSeeOther, location)
}

func (h *Handlers) putToast(ctx context.Context, toast viewmodels.ToastViewData) {
	if h.Sessions == nil {
		return
	}
	payload, err := json.Marshal(toast)
	if err != nil {
		return
	}
	h.Sessions.Put(ctx, sessionKeyToast, string(payload))
}

// popToast returns the pending toast once. Unknown categories render as info.
func (h *Handlers) popToast(c *echo.Context) *viewmodels.ToastViewData {
	if h.Sessions == nil {
		return nil
	}
	raw := h.Sessions.PopString(c.Request().Context(), sessionKeyToast)
	if raw == "" {
		return nil
	}
	var toast viewmodels.ToastViewData
	if err := json.Unmarshal([]byte(raw), &toast); err != nil {
		return nil
	}
	switch toast.Category {
	case "success", "error", "warning", "info":
	default:
		toast.Category = "info"
	}
	if toast.Title == "" && toast.Description == "" {
		return nil
	}
	return &toast
}
