package content

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/eringen/bandsite/store"
)

// FileSlot declares a file-bearing form field and the record field that
// receives the uploaded blob's URL.
type FileSlot struct {
	Field    string // form field, e.g. "audioFile"
	URLField string // record field, e.g. "audioUrl"; for Multi slots the media list key
	Required string // message shown when the file is missing on create
	Multi    bool   // many files, stored as a list of {url, type, name}
	Image    bool   // downscale and re-encode images before upload
}

// Kind describes how one entity type is stored.
type Kind[T any] struct {
	Collection string
	Activity   string // activity log type, e.g. "music"
	Noun       string // used in activity descriptions, e.g. "song"
	Slots      []FileSlot
	// Stamps are set to the server time on create and never rewritten.
	Stamps  []string
	OrderBy string
	Desc    bool

	Title  func(T) string
	Encode func(T) store.Record
	Decode func(store.Document) T
	// Validate runs before any upload or store call. create is false for edits.
	Validate func(v T, files Files, create bool) error
}

// Repository pairs entity documents with their blobs.
type Repository[T any] struct {
	c    *Client
	kind Kind[T]
}

// NewRepository returns a repository for kind.
func NewRepository[T any](c *Client, kind Kind[T]) *Repository[T] {
	return &Repository[T]{c: c, kind: kind}
}

// Kind returns the repository's entity description.
func (r *Repository[T]) Kind() Kind[T] { return r.kind }

// List returns every entity in the kind's default order.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	return r.Query(ctx, &store.Query{OrderBy: r.kind.OrderBy, Desc: r.kind.Desc})
}

// Query returns the entities matched by q.
func (r *Repository[T]) Query(ctx context.Context, q *store.Query) ([]T, error) {
	docs, err := r.c.Store.List(ctx, r.kind.Collection, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		out = append(out, r.kind.Decode(d))
	}
	return out, nil
}

// Get returns one entity or store.ErrNotFound.
func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	doc, err := r.c.Store.Get(ctx, r.kind.Collection, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.kind.Decode(doc), nil
}

// Add validates v, uploads every submitted file, then writes the document
// with the resolved URLs. It returns the new id.
//
// A failed document write leaves already uploaded blobs in place; they are
// logged as orphaned.
func (r *Repository[T]) Add(ctx context.Context, v T, files Files) (string, error) {
	if err := r.validate(v, files, true); err != nil {
		return "", err
	}
	rec := r.kind.Encode(v)
	uploaded, err := r.uploadAll(ctx, rec, nil, files)
	if err != nil {
		r.orphaned(uploaded, err)
		return "", err
	}
	for _, f := range r.kind.Stamps {
		rec[f] = store.ServerTimestamp
	}
	id, err := r.c.Store.Create(ctx, r.kind.Collection, rec)
	if err != nil {
		r.orphaned(uploaded, err)
		return "", err
	}
	r.c.Activity.Record(r.kind.Activity, fmt.Sprintf("New %s %q added", r.kind.Noun, r.kind.Title(v)))
	return id, nil
}

// Update applies v to the document at id. URL fields are only rewritten
// when a replacement file was uploaded; the replaced blob is then removed.
// Files submitted for a Multi slot are appended to the existing media.
func (r *Repository[T]) Update(ctx context.Context, id string, v T, files Files) error {
	if err := r.validate(v, files, false); err != nil {
		return err
	}
	current, err := r.c.Store.Get(ctx, r.kind.Collection, id)
	if err != nil {
		return err
	}

	rec := r.kind.Encode(v)
	for _, s := range r.kind.Slots {
		delete(rec, s.URLField)
	}
	for _, f := range r.kind.Stamps {
		delete(rec, f)
	}
	uploaded, err := r.uploadAll(ctx, rec, current.Data, files)
	if err != nil {
		r.orphaned(uploaded, err)
		return err
	}
	rec["updatedAt"] = store.ServerTimestamp
	if err := r.c.Store.Update(ctx, r.kind.Collection, id, rec); err != nil {
		r.orphaned(uploaded, err)
		return err
	}

	for _, s := range r.kind.Slots {
		if s.Multi || !files.Has(s.Field) {
			continue
		}
		if old := str(current.Data, s.URLField); old != "" {
			r.deleteBlobQuietly(ctx, old)
		}
	}
	r.c.Activity.Record(r.kind.Activity, fmt.Sprintf("%s %q updated", capitalize(r.kind.Noun), r.kind.Title(v)))
	return nil
}

// Remove deletes the document at id together with every blob it
// references. Removing a missing document succeeds and records nothing.
// If a blob cannot be deleted the document is kept so the pointer to the
// blob is not lost.
func (r *Repository[T]) Remove(ctx context.Context, id string) error {
	doc, err := r.c.Store.Get(ctx, r.kind.Collection, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, url := range r.blobURLs(doc.Data) {
		if err := r.c.Blobs.DeleteBlob(ctx, url); err != nil {
			return fmt.Errorf("delete blob %s: %w", url, err)
		}
	}
	if err := r.c.Store.Delete(ctx, r.kind.Collection, id); err != nil {
		return err
	}
	r.c.Activity.Record(r.kind.Activity, fmt.Sprintf("%s %q deleted", capitalize(r.kind.Noun), r.kind.Title(r.kind.Decode(doc))))
	return nil
}

func (r *Repository[T]) validate(v T, files Files, create bool) error {
	if create {
		for _, s := range r.kind.Slots {
			if s.Required != "" && !files.Has(s.Field) {
				return Invalid(s.Required)
			}
		}
	}
	for _, s := range r.kind.Slots {
		if !s.Multi && len(files[s.Field]) > 1 {
			return Invalid(fmt.Sprintf("Only one file can be uploaded for %s", s.Field))
		}
	}
	if r.kind.Validate != nil {
		return r.kind.Validate(v, files, create)
	}
	return nil
}

// uploadAll uploads the files of every slot and writes the resulting URLs
// into rec. existing supplies the current media list for Multi slots. It
// returns the URLs uploaded so far, also on error.
func (r *Repository[T]) uploadAll(ctx context.Context, rec, existing store.Record, files Files) ([]string, error) {
	var uploaded []string
	for _, s := range r.kind.Slots {
		if !files.Has(s.Field) {
			continue
		}
		if !s.Multi {
			url, err := r.upload(ctx, files[s.Field][0], s.Image)
			if err != nil {
				return uploaded, err
			}
			uploaded = append(uploaded, url)
			rec[s.URLField] = url
			continue
		}
		var media []map[string]any
		for _, m := range records(existing, s.URLField) {
			media = append(media, m)
		}
		for _, f := range files[s.Field] {
			url, err := r.upload(ctx, f, s.Image)
			if err != nil {
				return uploaded, err
			}
			uploaded = append(uploaded, url)
			media = append(media, map[string]any{
				"url":  url,
				"type": mediaType(f.ContentType),
				"name": f.Name,
			})
		}
		rec[s.URLField] = media
	}
	return uploaded, nil
}

func (r *Repository[T]) upload(ctx context.Context, f File, isImage bool) (string, error) {
	f, err := prepare(f, isImage)
	if err != nil {
		return "", err
	}
	if f.ContentType == "" {
		f.ContentType = mime.TypeByExtension(filepath.Ext(f.Name))
	}
	path := r.kind.Collection + "/" + blobName(r.c.Now().UnixNano(), f.Name)
	return r.c.uploadBlob(ctx, path, f)
}

// blobURLs lists every blob the record points to.
func (r *Repository[T]) blobURLs(rec store.Record) []string {
	var urls []string
	for _, s := range r.kind.Slots {
		if s.Multi {
			for _, m := range records(rec, s.URLField) {
				if u := str(m, "url"); u != "" {
					urls = append(urls, u)
				}
			}
			continue
		}
		if u := str(rec, s.URLField); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func (r *Repository[T]) deleteBlobQuietly(ctx context.Context, url string) {
	if err := r.c.Blobs.DeleteBlob(ctx, url); err != nil {
		r.c.Log.Warn("blob_delete_failed", "collection", r.kind.Collection, "url", url, "error", err)
	}
}

func (r *Repository[T]) orphaned(urls []string, cause error) {
	for _, u := range urls {
		r.c.Log.Warn("orphaned_blob", "collection", r.kind.Collection, "url", u, "error", cause)
	}
}

// uploadBlob streams f to the blob store, forwarding progress to c.Progress.
func (c *Client) uploadBlob(ctx context.Context, path string, f File) (string, error) {
	up := store.StartUpload(ctx, c.Blobs, path, f.Reader, f.Size, f.ContentType)
	for pct := range up.Progress() {
		if c.Progress != nil {
			c.Progress(path, pct)
		}
	}
	url, err := up.Wait()
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	return url, nil
}

func mediaType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	default:
		return "image"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
