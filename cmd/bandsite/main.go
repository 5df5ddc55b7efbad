package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eringen/bandsite"
	"github.com/eringen/bandsite/auth"
	"github.com/eringen/bandsite/store/hosted"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "seed-admin":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: bandsite seed-admin <email> [password]")
			os.Exit(1)
		}
		password := ""
		if len(os.Args) > 3 {
			password = os.Args[3]
		}
		if err := runSeedAdmin(os.Args[2], password); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("bandsite %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`bandsite - A band website and admin dashboard built with Go, Echo, and htmx

Usage:
  bandsite <command> [arguments]

Commands:
  serve                        Start the web server
  seed-admin <email> [pass]    Create or promote a dashboard admin
  version                      Print the bandsite version
  help                         Show this help message

Configuration is read from the environment (and .env):
  SESSION_SECRET, STORE_BACKEND (sqlite|firebase), DATABASE_PATH, UPLOADS_DIR,
  FIREBASE_PROJECT_ID, FIREBASE_STORAGE_BUCKET, FIREBASE_CREDENTIALS_PATH,
  FIREBASE_API_KEY, REDIS_URL, RESEND_API_KEY, ADMIN_EMAIL, ADMIN_PASSWORD

Examples:
  bandsite serve
  bandsite seed-admin admin@u4cband.com 's3cret-pass'`)
}

func newLogger(cfg bandsite.SiteConfig) *slog.Logger {
	var h slog.Handler
	if cfg.Production() {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	log := slog.New(h)
	slog.SetDefault(log)
	return log
}

func runServe() error {
	cfg, err := bandsite.LoadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, closeDeps, err := bandsite.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDeps()

	app := bandsite.New(cfg, deps, bandsite.WithStaticDir(bandsite.EnvOr("STATIC_DIR", "public")))
	defer app.Close()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Echo.Shutdown(shutdownCtx)
}

func runSeedAdmin(email, password string) error {
	cfg, err := bandsite.LoadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	ctx := context.Background()

	if cfg.Backend == bandsite.BackendFirebase {
		app, err := hosted.NewApp(ctx, hosted.Config{
			ProjectID:       cfg.FirebaseProjectID,
			StorageBucket:   cfg.FirebaseStorageBucket,
			CredentialsPath: cfg.FirebaseCredentialsPath,
		})
		if err != nil {
			return err
		}
		defer app.Close()
		fb, err := auth.NewFirebase(ctx, app.Auth, cfg.FirebaseAPIKey)
		if err != nil {
			return err
		}
		cred, err := fb.GrantAdmin(ctx, email)
		if err != nil {
			return err
		}
		log.Info("admin_granted", "uid", cred.UID, "email", cred.Email)
		return nil
	}

	if password == "" {
		return fmt.Errorf("a password is required for the %s backend", cfg.Backend)
	}
	cfg.AdminEmail, cfg.AdminPassword = email, password
	_, closeDeps, err := bandsite.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	return closeDeps()
}
