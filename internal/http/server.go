package httpapp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/alexedwards/scs/v2"
	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/config"
	"github.com/ecolearn/ecolearn/internal/guard"
	"github.com/ecolearn/ecolearn/internal/http/authn"
	"github.com/ecolearn/ecolearn/internal/http/handlers"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

const maxRequestIDLength = 128

// Options tweaks server construction.
type Options struct {
	// DisableCSRF skips CSRF checks. Only tests set it.
	DisableCSRF bool
}

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h        *handlers.Handlers
	e        *echo.Echo
	sessions *scs.SessionManager

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewEchoServer creates a new HTTP server. Visitor sessions are carried by
// sessions; visitors maps each of them to its auth session manager.
func NewEchoServer(cfg config.Config, sessions *scs.SessionManager, visitors authn.SessionSource, opts Options) (*EchoServer, error) {
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if visitors == nil {
		return nil, errors.New("visitor registry is required")
	}
	h := &handlers.Handlers{
		Cfg:      cfg,
		Sessions: sessions,
		Visitors: visitors,
		Validate: handlers.NewValidator(),
		Routes:   guard.DefaultRoutes(),
	}
	es := &EchoServer{h: h, e: echo.New(), sessions: sessions}
	es.e.HTTPErrorHandler = es.httpErrorHandler
	es.e.Use(requestID)
	es.e.Use(middleware.Recover())
	es.registerRoutes(opts)
	return es, nil
}

func (es *EchoServer) registerRoutes(opts Options) {
	es.e.GET("/healthz", es.h.HandleHealthz)

	app := es.e.Group("")
	if !opts.DisableCSRF {
		app.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup:    "header:" + echo.HeaderXCSRFToken + ",form:csrf",
			CookiePath:     "/",
			CookieHTTPOnly: true,
			CookieSecure:   es.h.Cfg.AuthCookieSecure,
			CookieSameSite: http.SameSiteLaxMode,
		}))
	}

	app.GET("/api/session", es.h.HandleSessionAPI)
	app.GET(guard.PathSignIn, es.h.HandleLoginGet)
	app.POST(guard.PathSignIn, es.h.HandleLoginPost)
	app.GET("/register", es.h.HandleRegisterGet)
	app.POST("/register", es.h.HandleRegisterPost)
	app.GET(guard.PathTeacherLogin, es.h.HandleTeacherLoginGet)
	app.POST(guard.PathTeacherLogin, es.h.HandleTeacherLoginPost)
	app.POST("/logout", es.h.HandleLogoutPost)

	guardCfg := authn.GuardConfig{
		Routes:  es.h.Routes,
		Wait:    es.h.Cfg.GuardWait,
		Loading: es.h.HandleLoading,
	}
	teacherOnly := authn.Require(es.h.Visitors, guardCfg, guard.Policy{
		AllowedRoles: []auth.Role{auth.RoleTeacher, auth.RoleAdmin},
		RedirectTo:   guard.PathTeacherLogin,
	})
	studentOnly := authn.Require(es.h.Visitors, guardCfg, guard.Policy{
		AllowedRoles: []auth.Role{auth.RoleStudent},
	})

	app.GET(guard.PathTeacherHome, es.h.HandleTeacherHome, teacherOnly)
	app.GET(guard.PathStudentHome, es.h.HandleStudentHome, studentOnly)
}

// Handler returns the application wrapped with session loading and saving.
func (es *EchoServer) Handler() http.Handler {
	return es.sessions.LoadAndSave(es.e)
}

// StartServer serves the application on server until Shutdown is called.
func (es *EchoServer) StartServer(server *http.Server) error {
	server.Handler = es.Handler()
	es.mu.Lock()
	if es.closed {
		es.mu.Unlock()
		return http.ErrServerClosed
	}
	es.server = server
	es.mu.Unlock()
	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (es *EchoServer) Shutdown(ctx context.Context) error {
	es.mu.Lock()
	es.closed = true
	server := es.server
	es.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := strings.TrimSpace(c.Request().Header.Get(echo.HeaderXRequestID))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(handlers.ContextKeyRequestID, id)
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		return next(c)
	}
}

func (es *EchoServer) httpErrorHandler(c *echo.Context, err error) {
	status := httpStatusFromError(err)
	switch {
	case status == http.StatusNotFound:
		_ = handlers.RenderNotFound(c)
	case status >= http.StatusInternalServerError:
		_ = es.h.RenderError(c, err)
	default:
		_ = c.String(status, http.StatusText(status))
	}
}

func httpStatusFromError(err error) int {
	var coder interface{ StatusCode() int }
	if errors.As(err, &coder) {
		if code := coder.StatusCode(); code > 0 {
			return code
		}
	}
	return http.StatusInternalServerError
}
