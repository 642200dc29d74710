package handlers

import (
	"net/http"

	"github.com/ecolearn/ecolearn/internal/guard"
	"github.com/ecolearn/ecolearn/internal/http/authn"
	"github.com/ecolearn/ecolearn/internal/http/viewmodels"
	"github.com/ecolearn/ecolearn/internal/http/views"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

func csrfToken(c *echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}

// redirectIfSignedIn sends an already authenticated visitor to their home.
func (h *Handlers) redirectIfSignedIn(c *echo.Context) (bool, error) {
	m, err := h.Visitors.Manager(c)
	if err != nil {
		return false, err
	}
	view := m.View()
	if !view.Authenticated() {
		return false, nil
	}
	return true, c.Redirect(http.StatusSeeOther, h.home(view.Identity.Role))
}

func (h *Handlers) HandleLoginGet(c *echo.Context) error {
	return h.renderLoginGet(c, false)
}

func (h *Handlers) HandleTeacherLoginGet(c *echo.Context) error {
	return h.renderLoginGet(c, true)
}

func (h *Handlers) renderLoginGet(c *echo.Context, teacher bool) error {
	if done, err := h.redirectIfSignedIn(c); err != nil || done {
		return err
	}
	data := viewmodels.LoginViewData{
		CSRFToken: csrfToken(c),
		Next:      authn.SanitizeNext(c.QueryParam("next")),
		Teacher:   teacher,
		DemoMode:  h.Cfg.DemoMode,
		Toast:     h.popToast(c),
	}
	return h.RenderComponent(c, views.LoginPage(data))
}

func (h *Handlers) HandleLoginPost(c *echo.Context) error {
	return h.handleLoginPost(c, false)
}

// HandleTeacherLoginPost signs in through the teacher portal. Students who
// use it are signed in anyway and sent to the student area.
func (h *Handlers) HandleTeacherLoginPost(c *echo.Context) error {
	return h.handleLoginPost(c, true)
}

func (h *Handlers) handleLoginPost(c *echo.Context, teacher bool) error {
	ctx := c.Request().Context()

	form := loginForm{
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
	}
	data := viewmodels.LoginViewData{
		CSRFToken: csrfToken(c),
		Email:     form.Email,
		Next:      authn.SanitizeNext(c.FormValue("next")),
		Teacher:   teacher,
		DemoMode:  h.Cfg.DemoMode,
	}

	if msg := h.formMessage(form); msg != "" {
		data.ErrorMessage = msg
		return h.RenderComponent(c, views.LoginPage(data))
	}

	m, err := h.Visitors.Manager(c)
	if err != nil {
		return err
	}
	if !m.Login(ctx, form.Email, form.Password) {
		data.ErrorMessage = msgInvalidCredentials
		return h.RenderComponent(c, views.LoginPage(data))
	}

	if err := h.Sessions.RenewToken(ctx); err != nil {
		return err
	}

	role := m.View().Identity.Role
	if teacher {
		if role.IsStaff() {
			return h.finishAuth(c, guard.PathTeacherHome, toastWelcomeTeacher)
		}
		return h.finishAuth(c, guard.PathStudentHome, toastStudentOnTeacherPortal)
	}
	if data.Next != "" {
		return h.finishAuth(c, data.Next, toastWelcomeBack)
	}
	return h.finishAuth(c, h.home(role), toastWelcomeBack)
}

func (h *Handlers) HandleRegisterGet(c *echo.Context) error {
	if done, err := h.redirectIfSignedIn(c); err != nil || done {
		return err
	}
	data := viewmodels.RegisterViewData{
		CSRFToken: csrfToken(c),
		Toast:     h.popToast(c),
	}
	return h.RenderComponent(c, views.RegisterPage(data))
}

func (h *Handlers) HandleRegisterPost(c *echo.Context) error {
	ctx := c.Request().Context()

	form := registerForm{
		Name:            c.FormValue("name"),
		Email:           c.FormValue("email"),
		Password:        c.FormValue("password"),
		ConfirmPassword: c.FormValue("confirm_password"),
	}
	data := viewmodels.RegisterViewData{
		CSRFToken: csrfToken(c),
		Name:      form.Name,
		Email:     form.Email,
	}

	if msg := h.formMessage(form); msg != "" {
		data.ErrorMessage = msg
		return h.RenderComponent(c, views.RegisterPage(data))
	}

	m, err := h.Visitors.Manager(c)
	if err != nil {
		return err
	}
	if !m.Register(ctx, form.Name, form.Email, form.Password) {
		data.ErrorMessage = msgRegisterFailed
		return h.RenderComponent(c, views.RegisterPage(data))
	}

	if err := h.Sessions.RenewToken(ctx); err != nil {
		return err
	}
	return h.finishAuth(c, h.home(m.View().Identity.Role), toastRegistered)
}

func (h *Handlers) HandleLogoutPost(c *echo.Context) error {
	ctx := c.Request().Context()

	m, err := h.Visitors.Manager(c)
	if err != nil {
		return err
	}
	m.Logout(ctx)
	if f, ok := h.Visitors.(visitorForgetter); ok {
		f.Forget(ctx)
	}

	if err := h.Sessions.RenewToken(ctx); err != nil {
		return err
	}
	return h.finishAuth(c, guard.PathSignIn, toastSignedOut)
}
