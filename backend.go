package bandsite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eringen/bandsite/auth"
	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/notify"
	"github.com/eringen/bandsite/store"
	"github.com/eringen/bandsite/store/hosted"
	"github.com/eringen/bandsite/store/sqlitestore"
)

// Open connects the backends named by cfg. The returned func releases them.
func Open(ctx context.Context, cfg SiteConfig, log *slog.Logger) (Deps, func() error, error) {
	cfg.setDefaults()
	if log == nil {
		log = slog.Default()
	}

	var (
		st      store.Store
		blobs   store.BlobStore
		closers []func() error
		deps    = Deps{Log: log}
	)
	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	switch cfg.Backend {
	case BackendFirebase:
		app, err := hosted.NewApp(ctx, hosted.Config{
			ProjectID:       cfg.FirebaseProjectID,
			StorageBucket:   cfg.FirebaseStorageBucket,
			CredentialsPath: cfg.FirebaseCredentialsPath,
		})
		if err != nil {
			return Deps{}, nil, err
		}
		closers = append(closers, app.Close)
		fb, err := auth.NewFirebase(ctx, app.Auth, cfg.FirebaseAPIKey)
		if err != nil {
			closeAll()
			return Deps{}, nil, err
		}
		st, blobs, deps.Auth = app.Store(), app.Blobs(), fb

	default:
		if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return Deps{}, nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		db, err := sqlitestore.Open(cfg.DatabasePath)
		if err != nil {
			return Deps{}, nil, fmt.Errorf("init store: %w", err)
		}
		closers = append(closers, db.Close)
		local := auth.NewLocal(db)
		if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
			if _, err := local.EnsureAccount(ctx, cfg.AdminEmail, cfg.AdminPassword, true); err != nil {
				closeAll()
				return Deps{}, nil, fmt.Errorf("seed admin account: %w", err)
			}
			log.Info("admin_account_ready", "email", auth.NormalizeEmail(cfg.AdminEmail))
		}
		st, blobs, deps.Auth = db, sqlitestore.NewFileBlobs(cfg.UploadsDir, "/uploads"), local
	}

	deps.Client = content.NewClient(st, blobs, log)
	deps.Repos = content.NewRepositories(deps.Client)
	closers = append(closers, func() error {
		deps.Client.Activity.Wait()
		return nil
	})

	if cfg.RedisURL != "" {
		rc, err := OpenRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL, func(op string, err error) {
			log.Warn("cache_error", "op", op, "error", err)
		})
		if err != nil {
			closeAll()
			return Deps{}, nil, err
		}
		closers = append(closers, rc.Close)
		deps.Cache = rc
		log.Info("cache_backend", "backend", "redis")
	} else {
		deps.Cache = NewMemoryCache(cfg.CacheTTL)
	}

	if cfg.ResendAPIKey != "" {
		deps.Mailer = notify.NewResend(cfg.ResendAPIKey, cfg.MailFrom)
	} else {
		deps.Mailer = notify.Noop{}
	}

	return deps, closeAll, nil
}
