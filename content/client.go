// Package content holds the band site's entities and the repositories that
// keep documents and their uploaded files consistent in the content store.
package content

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/eringen/bandsite/store"
)

// Collection names in the content store.
const (
	CollectionSongs     = "songs"
	CollectionGallery   = "gallery"
	CollectionProducts  = "products"
	CollectionEvents    = "events"
	CollectionMembers   = "members"
	CollectionAuditions = "auditions"
	CollectionSettings  = "settings"
	CollectionActivity  = "activity"
	CollectionProfiles  = "profile_images"
)

// Client bundles the store handles every repository needs. Build one at
// startup with NewClient and pass it to the repository constructors.
type Client struct {
	Store    store.Store
	Blobs    store.BlobStore
	Now      func() time.Time
	Log      *slog.Logger
	Activity *ActivityLog

	// Progress, if set, receives upload progress for each blob path.
	Progress func(path string, pct int)
}

// NewClient returns a Client with a wall clock and an activity log.
func NewClient(st store.Store, blobs store.BlobStore, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		Store: st,
		Blobs: blobs,
		Now:   time.Now,
		Log:   log,
	}
	c.Activity = NewActivityLog(c)
	return c
}

// File is an uploaded file waiting to be stored as a blob.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Files maps a form field name to the files submitted for it.
type Files map[string][]File

// Has reports whether at least one file was submitted for field.
func (f Files) Has(field string) bool {
	return len(f[field]) > 0
}

// ValidationError is a user-facing problem with submitted input. It is
// always detected before any store call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalid returns a ValidationError with msg.
func Invalid(msg string) error {
	return &ValidationError{Msg: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
