// Package httpapp wires the echo server: routes, sessions, CSRF, and the
// generic error handler.
package httpapp

import (
	"context"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/bridgepoint-app/bridgepoint/internal/authz"
	"github.com/bridgepoint-app/bridgepoint/internal/config"
	"github.com/bridgepoint-app/bridgepoint/internal/http/authn"
	"github.com/bridgepoint-app/bridgepoint/internal/http/handlers"
	"github.com/bridgepoint-app/bridgepoint/internal/http/views"
	"github.com/bridgepoint-app/bridgepoint/internal/invite"
)

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h   *handlers.Handlers
	e   *echo.Echo
	srv *http.Server
}

// NewEchoServer creates a new HTTP server.
func NewEchoServer(cfg config.Config, st handlers.Store, sessions *scs.SessionManager, invites *invite.Service) (*EchoServer, error) {
	renderer, err := views.NewRenderer(nil)
	if err != nil {
		return nil, err
	}

	resolver := &authn.Resolver{
		Sessions: sessions,
		Dir:      st,
		Chain:    authz.NewChain(st, nil),
	}

	h := &handlers.Handlers{
		Cfg:      cfg,
		Store:    st,
		Sessions: sessions,
		Resolver: resolver,
		Invites:  invites,
		Views:    renderer,
	}
	es := &EchoServer{h: h, e: echo.New()}
	es.e.HTTPErrorHandler = es.httpErrorHandler
	es.registerRoutes(resolver)
	return es, nil
}

func (es *EchoServer) registerRoutes(resolver *authn.Resolver) {
	es.e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c *echo.Context, id string) {
			c.Set(handlers.ContextKeyRequestID, id)
		},
	}))

	es.e.GET("/healthz", es.h.HandleHealthz)

	base := es.e.Group("")
	base.Use(echo.WrapMiddleware(es.h.Sessions.LoadAndSave))
	base.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:" + echo.HeaderXCSRFToken + ",form:csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   es.h.Cfg.AuthCookieSecure,
		CookieSameSite: http.SameSiteLaxMode,
	}))

	base.GET("/login", es.h.HandleLoginGet)
	base.POST("/login", es.h.HandleLoginPost)
	base.POST("/logout", es.h.HandleLogoutPost)
	base.GET("/invite/accept", es.h.HandleInviteAcceptGet)
	base.POST("/invite/accept", es.h.HandleInviteAcceptPost)

	authed := base.Group("", authn.RequireAuth(resolver))
	authed.GET("/", es.h.HandleDashboard)

	program := authed.Group("", authn.RequireProgramRole())
	program.GET("/profile", es.h.HandleProfileGet)
	program.POST("/profile", es.h.HandleProfilePost)
	program.POST("/profile/claim", es.h.HandleProfileClaimPost)

	api := base.Group("/api", authn.RequireAuth(resolver))
	api.POST("/claim", es.h.HandleClaimAPI, authn.RequireProgramRole())

	admin := authed.Group("/admin", authn.RequireAdminLevel())
	admin.GET("/invites", es.h.HandleAdminInvites, authn.RequirePagePermission(es.h.Store, "invites"))
	admin.POST("/invites", es.h.HandleAdminInviteCreate, authn.RequirePagePermission(es.h.Store, "invites"))
	admin.POST("/invites/bulk", es.h.HandleAdminInviteBulk, authn.RequirePagePermission(es.h.Store, "invites"))
	admin.POST("/invites/backfill", es.h.HandleAdminInviteBackfill, authn.RequirePagePermission(es.h.Store, "invites"))

	super := admin.Group("", authn.RequireSuperAdmin())
	super.GET("/users", es.h.HandleAdminUsers)
	super.POST("/users", es.h.HandleAdminUsersCreate)
	super.POST("/users/:id/role", es.h.HandleAdminUserRole)
	super.POST("/users/:id/active", es.h.HandleAdminUserActive)
	super.GET("/permissions", es.h.HandleAdminPermissions)
	super.POST("/permissions", es.h.HandleAdminPermissionGrant)
	super.POST("/permissions/revoke", es.h.HandleAdminPermissionRevoke)

	es.e.Static("/static", "web/static")
}

// httpErrorHandler keeps error responses generic. Internal errors carry only
// a request-id reference; client errors get the bare status text.
func (es *EchoServer) httpErrorHandler(c *echo.Context, err error) {
	if r, _ := echo.UnwrapResponse(c.Response()); r != nil && r.Committed {
		return
	}

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
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// Start starts the HTTP server.
func (es *EchoServer) Start(addr string) error {
	return es.e.Start(addr)
}

// StartServer starts the HTTP server with a custom http.Server.
func (es *EchoServer) StartServer(server *http.Server) error {
	server.Handler = es.e
	es.srv = server
	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (es *EchoServer) Shutdown(ctx context.Context) error {
	if es.srv == nil {
		return nil
	}
	return es.srv.Shutdown(ctx)
}
