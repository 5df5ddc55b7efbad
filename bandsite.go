// Package bandsite serves a band's promotional website and the admin
// dashboard that edits it. Built with Go, Echo and htmx.
//
// Public pages read songs, gallery albums, merchandise, events and members
// from the content store through a short-lived cache. Signed-in admins
// manage that content from /admin/, and every write invalidates the cache.
package bandsite

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/bandsite/auth"
	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/dashboard"
	"github.com/eringen/bandsite/notify"
)

// Deps are the backends the App runs on. Open builds them from a
// SiteConfig; tests assemble them directly.
type Deps struct {
	Client *content.Client
	Repos  *content.Repositories
	Auth   auth.Authenticator
	Mailer notify.Sender
	Cache  ContentCache
	Log    *slog.Logger
}

// App is the central bandsite application. It wires together the content
// repositories, cache, handlers, middleware and views.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Deps   Deps

	renderer        *Renderer
	panels          map[string]panelOps
	registry        *dashboard.Registry
	loginLimiter    *RateLimiter
	auditionLimiter *RateLimiter
	customRoutes    []func(*App)
	staticDir       string
	now             func() time.Time
	log             *slog.Logger

	setupOnce sync.Once
}

// New creates a new App with the given configuration and backends.
func New(cfg SiteConfig, deps Deps, opts ...Option) *App {
	cfg.setDefaults()
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Cache == nil {
		deps.Cache = NewMemoryCache(cfg.CacheTTL)
	}
	if deps.Mailer == nil {
		deps.Mailer = notify.Noop{}
	}

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Deps:      deps,
		staticDir: "public",
		now:       time.Now,
		log:       deps.Log,
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler wires middleware and routes on first use and returns the Echo
// instance as an http.Handler.
func (a *App) Handler() http.Handler {
	a.setupOnce.Do(a.setup)
	return a.Echo
}

func (a *App) setup() {
	a.loginLimiter = NewRateLimiter(a.Config.LoginLimit, a.Config.LimitWindow)
	a.auditionLimiter = NewRateLimiter(a.Config.AuditionLimit, a.Config.LimitWindow)
	a.renderer = NewRenderer(a.Deps.Repos, a.Deps.Cache, a.log, a.now)
	a.panels = a.buildPanels()
	a.registry = dashboard.NewRegistry(12*time.Hour, func() *dashboard.Controller {
		return dashboard.NewController(a.Deps.Repos, a.Deps.Client.Activity, dashboard.Config{
			Now: a.now,
		})
	})

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
}

// Start wires the middleware and routes and starts the server.
func (a *App) Start() error {
	a.Handler()
	a.log.Info("server_start", "addr", a.Config.Addr, "backend", a.Config.Backend, "env", a.Config.Env)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("bandsite: %w", err)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Framework script, served ahead of the site's own static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/bandsite.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	e.Static("/public", a.staticDir)
	e.Static("/uploads", a.Config.UploadsDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/events.xml", a.handleFeed)

	// Public pages
	e.GET("/", a.handleHome)
	e.GET("/music/", a.handleMusic)
	e.GET("/gallery/", a.handleGallery)
	e.GET("/merch/", a.handleMerch)
	e.GET("/events/", a.handleEvents)
	e.GET("/members/", a.handleMembers)
	e.GET("/auditions/", a.handleAuditions)
	e.POST("/auditions/", a.handleAuditionSubmit, a.uploadLimit())

	// Admin sign-in
	e.GET("/admin/login/", a.handleLoginPage)
	e.POST("/admin/login/", a.handleLogin)
	e.POST("/admin/logout/", a.handleLogout)

	admin := e.Group("/admin", a.requireAdmin)
	admin.GET("/", a.handleDashboard)
	admin.GET("/profile/", a.handleProfilePage)
	admin.POST("/profile/", a.handleProfileUpdate, a.uploadLimit())
	admin.POST("/password/", a.handlePasswordChange)
	admin.POST("/settings/", a.handleSettingsUpdate, a.uploadLimit())
	admin.POST("/auditions-visibility/", a.handleAuditionsVisibility)
	admin.POST("/auditions/:id/status/", a.handleAuditionStatus)

	admin.GET("/panels/:panel/search/", a.handlePanelSearch)
	admin.GET("/panels/:panel/new/", a.handlePanelNew)
	admin.GET("/panels/:panel/close/", a.handlePanelClose)
	admin.GET("/panels/:panel/:id/edit/", a.handlePanelEdit)
	admin.POST("/panels/:panel/", a.handlePanelSave, a.uploadLimit())
	admin.DELETE("/panels/:panel/:id/", a.handlePanelDelete)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Close()
	}
	if a.auditionLimiter != nil {
		a.auditionLimiter.Close()
	}
	if a.registry != nil {
		a.registry.Close()
	}
	if a.Deps.Client != nil {
		a.Deps.Client.Activity.Wait()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("bandsite: required environment variable %s is not set", key)
	}
	return v
}
