package bandsite

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendFirebase = "firebase"
)

// SiteConfig holds all configuration for the band site.
type SiteConfig struct {
	Name string // Site name (default "U4C Band")
	URL  string // Canonical URL (default "http://localhost:3000")
	Env  string // "development" or "production"

	Addr         string // Listen address (default ":3000")
	Backend      string // "sqlite" (default) or "firebase"
	DatabasePath string // SQLite path (default "data/site.db")
	UploadsDir   string // local blob directory (default "data/uploads")

	FirebaseProjectID       string
	FirebaseStorageBucket   string
	FirebaseCredentialsPath string
	FirebaseAPIKey          string // web API key for password sign-in

	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	RedisURL string        // optional; enables the shared content cache
	CacheTTL time.Duration // content cache TTL (default 5min)

	ResendAPIKey  string // optional; audition alerts are only logged without it
	MailFrom      string
	AdminEmail    string // receives audition alerts; seeded admin account
	AdminPassword string

	AuditionLimit  int           // audition submissions per window per IP (default 5)
	LoginLimit     int           // failed logins per window per IP (default 5)
	LimitWindow    time.Duration // default 1min
	MaxUploadBytes string        // echo body limit for upload routes (default "100M")
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "U4C Band"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/site.db"
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "data/uploads"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.MailFrom == "" {
		c.MailFrom = "U4C Band <noreply@u4cband.com>"
	}
	if c.AuditionLimit == 0 {
		c.AuditionLimit = 5
	}
	if c.LoginLimit == 0 {
		c.LoginLimit = 5
	}
	if c.LimitWindow == 0 {
		c.LimitWindow = time.Minute
	}
	if c.MaxUploadBytes == "" {
		c.MaxUploadBytes = "100M"
	}
}

// Production reports whether the site runs with APP_ENV=production.
func (c SiteConfig) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate rejects configurations the server cannot start with.
func (c SiteConfig) Validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	switch c.Backend {
	case BackendSQLite:
	case BackendFirebase:
		if c.FirebaseProjectID == "" || c.FirebaseStorageBucket == "" || c.FirebaseCredentialsPath == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID, FIREBASE_STORAGE_BUCKET and FIREBASE_CREDENTIALS_PATH are required for the firebase backend")
		}
		if c.FirebaseAPIKey == "" {
			return fmt.Errorf("FIREBASE_API_KEY is required for the firebase backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Backend)
	}
	return nil
}

// LoadConfig reads the configuration from the environment, loading a .env
// file first when one exists.
func LoadConfig() (SiteConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := SiteConfig{
		Name:                    os.Getenv("SITE_NAME"),
		URL:                     os.Getenv("SITE_URL"),
		Env:                     EnvOr("APP_ENV", "development"),
		Addr:                    os.Getenv("ADDR"),
		Backend:                 strings.ToLower(os.Getenv("STORE_BACKEND")),
		DatabasePath:            os.Getenv("DATABASE_PATH"),
		UploadsDir:              os.Getenv("UPLOADS_DIR"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseStorageBucket:   os.Getenv("FIREBASE_STORAGE_BUCKET"),
		FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
		FirebaseAPIKey:          os.Getenv("FIREBASE_API_KEY"),
		SessionSecret:           os.Getenv("SESSION_SECRET"),
		CookieSecure:            envBool("COOKIE_SECURE", false),
		RedisURL:                os.Getenv("REDIS_URL"),
		CacheTTL:                envDuration("CACHE_TTL", 0),
		ResendAPIKey:            os.Getenv("RESEND_API_KEY"),
		MailFrom:                os.Getenv("MAIL_FROM"),
		AdminEmail:              os.Getenv("ADMIN_EMAIL"),
		AdminPassword:           os.Getenv("ADMIN_PASSWORD"),
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return SiteConfig{}, err
	}
	return cfg, nil
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %t", key, fallback)
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, fallback)
		return fallback
	}
	return d
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for site-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithClock replaces the wall clock used for "upcoming" queries.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}
