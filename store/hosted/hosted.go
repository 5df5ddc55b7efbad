// Package hosted implements the store contracts on Firebase: documents in
// Firestore and blobs in Firebase Storage.
package hosted

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Config selects the Firebase project and credentials.
type Config struct {
	ProjectID       string
	StorageBucket   string
	CredentialsPath string
}

// App holds the Firebase clients shared by the store, the blob store and
// the authenticator. Create it once at startup.
type App struct {
	Firestore *firestore.Client
	Bucket    *gcs.BucketHandle
	Auth      *auth.Client

	bucketName string
}

// NewApp initializes the Firebase Admin SDK.
func NewApp(ctx context.Context, cfg Config) (*App, error) {
	if cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
	}
	if cfg.StorageBucket == "" {
		return nil, fmt.Errorf("FIREBASE_STORAGE_BUCKET is required")
	}

	opt := option.WithCredentialsFile(cfg.CredentialsPath)
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	}, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firestore client: %w", err)
	}
	st, err := app.Storage(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to get Storage client: %w", err)
	}
	bucket, err := st.DefaultBucket()
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to get default bucket: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to get Auth client: %w", err)
	}

	return &App{
		Firestore:  fs,
		Bucket:     bucket,
		Auth:       authClient,
		bucketName: cfg.StorageBucket,
	}, nil
}

// Store returns the Firestore-backed document store.
func (a *App) Store() *Store {
	return &Store{client: a.Firestore}
}

// Blobs returns the Storage-backed blob store.
func (a *App) Blobs() *Blobs {
	return &Blobs{bucket: a.Bucket, name: a.bucketName}
}

// Close releases the Firestore connection.
func (a *App) Close() error {
	return a.Firestore.Close()
}
