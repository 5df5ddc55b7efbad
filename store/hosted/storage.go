package hosted

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"

	"github.com/eringen/bandsite/store"
)

const publicHost = "https://storage.googleapis.com/"

// Blobs is a store.BlobStore over a Firebase Storage bucket.
type Blobs struct {
	bucket *gcs.BucketHandle
	name   string
}

// NewBlobs wraps a bucket handle. name must match the bucket the handle points to.
func NewBlobs(bucket *gcs.BucketHandle, name string) *Blobs {
	return &Blobs{bucket: bucket, name: name}
}

func (b *Blobs) UploadBlob(ctx context.Context, path string, r io.Reader, contentType string) (string, error) {
	if err := store.ValidatePath(path); err != nil {
		return "", err
	}
	w := b.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("storage: upload %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", path, err)
	}
	return b.url(path), nil
}

func (b *Blobs) DeleteBlob(ctx context.Context, url string) error {
	path, ok := strings.CutPrefix(url, publicHost+b.name+"/")
	if !ok {
		return nil
	}
	err := b.bucket.Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

func (b *Blobs) url(path string) string {
	return publicHost + b.name + "/" + path
}
