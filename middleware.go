package bandsite

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eringen/bandsite/auth"
	"github.com/eringen/bandsite/dashboard"
)

const sessionName = "admin_session"

// Session value keys.
const (
	sessUID   = "uid"
	sessEmail = "email"
	sessAdmin = "admin"
	sessID    = "sid"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			a.log.Info("request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/public/") || strings.HasPrefix(path, "/uploads/")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self'; media-src 'self' https:; frame-src https://open.spotify.com https://www.youtube.com",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:     middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.CookieSecure,
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/public") ||
				strings.HasPrefix(path, "/uploads") ||
				path == "/sitemap.xml" || path == "/events.xml" ||
				path == "/robots.txt" || path == "/favicon.svg"
		},
	}))

	e.Use(cacheControlMiddleware)
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case strings.HasPrefix(path, "/public/"), strings.HasPrefix(path, "/uploads/"):
			c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		case path == "/sitemap.xml" || path == "/events.xml" || path == "/robots.txt":
			c.Response().Header().Set("Cache-Control", "public, max-age=3600")
		case strings.HasPrefix(path, "/admin"), strings.HasPrefix(path, "/auditions"):
			c.Response().Header().Set("Cache-Control", "no-store")
		default:
			// Pages depend on the per-browser auditions cookie.
			c.Response().Header().Set("Cache-Control", "private, max-age=60")
		}
		return next(c)
	}
}

// uploadLimit caps multipart bodies on routes that accept files.
func (a *App) uploadLimit() echo.MiddlewareFunc {
	return middleware.BodyLimit(a.Config.MaxUploadBytes)
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 12,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// sessionUser is what the admin session cookie carries.
type sessionUser struct {
	UID   string
	Email string
	Admin bool
	SID   string // keys the dashboard controller registry
}

func currentUser(c echo.Context) (sessionUser, bool) {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return sessionUser{}, false
	}
	uid, _ := sess.Values[sessUID].(string)
	if uid == "" {
		return sessionUser{}, false
	}
	u := sessionUser{UID: uid}
	u.Email, _ = sess.Values[sessEmail].(string)
	u.Admin, _ = sess.Values[sessAdmin].(bool)
	u.SID, _ = sess.Values[sessID].(string)
	return u, true
}

// IsAdmin reports whether the current session belongs to a signed-in admin.
func IsAdmin(c echo.Context) bool {
	u, ok := currentUser(c)
	return ok && u.Admin
}

func setAdminSession(c echo.Context, cred auth.Credential) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values[sessUID] = cred.UID
	sess.Values[sessEmail] = cred.Email
	sess.Values[sessAdmin] = cred.Admin
	sess.Values[sessID] = uuid.NewString()
	return sess.Save(c.Request(), c.Response())
}

func clearAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// requireAdmin gates the dashboard. Without a session the user is sent to
// the login page; a session without the admin claim is signed out.
func (a *App) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, signedIn := currentUser(c)
		switch dashboard.Authorize(dashboard.AuthState{SignedIn: signedIn, Admin: u.Admin}) {
		case dashboard.RedirectToLogin:
			return a.redirectToLogin(c)
		case dashboard.Deny:
			a.log.Warn("admin_denied", "uid", u.UID, "email", u.Email)
			a.registry.Drop(u.SID)
			if err := clearAdminSession(c); err != nil {
				return err
			}
			if isHTMX(c) {
				c.Response().Header().Set("HX-Redirect", "/admin/login/?denied=1")
				return c.NoContent(http.StatusForbidden)
			}
			return c.Redirect(http.StatusSeeOther, "/admin/login/?denied=1")
		}
		c.Set("user", u)
		return next(c)
	}
}

// redirectToLogin sends htmx requests a client-side redirect.
func (a *App) redirectToLogin(c echo.Context) error {
	if isHTMX(c) {
		c.Response().Header().Set("HX-Redirect", "/admin/login/")
		return c.NoContent(http.StatusUnauthorized)
	}
	return c.Redirect(http.StatusSeeOther, "/admin/login/")
}

func userFrom(c echo.Context) sessionUser {
	u, _ := c.Get("user").(sessionUser)
	return u
}

func isHTMX(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true"
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
