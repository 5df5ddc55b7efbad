package sqlitestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/eringen/bandsite/store"
)

// FileBlobs stores blobs as files under Dir. The files are expected to be
// served at BaseURL, e.g. "/uploads".
type FileBlobs struct {
	Dir     string
	BaseURL string
}

// NewFileBlobs returns a blob store rooted at dir.
func NewFileBlobs(dir, baseURL string) *FileBlobs {
	return &FileBlobs{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

// UploadBlob writes r to Dir/path and returns its public URL. The file is
// written to a temporary name first so readers never see a partial upload.
func (b *FileBlobs) UploadBlob(ctx context.Context, path string, r io.Reader, contentType string) (string, error) {
	if err := store.ValidatePath(path); err != nil {
		return "", err
	}
	full := filepath.Join(b.Dir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	return b.BaseURL + "/" + path, nil
}

// DeleteBlob removes the file behind url. URLs outside BaseURL are ignored.
func (b *FileBlobs) DeleteBlob(ctx context.Context, url string) error {
	path, ok := strings.CutPrefix(url, b.BaseURL+"/")
	if !ok {
		return nil
	}
	if err := store.ValidatePath(path); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(b.Dir, filepath.FromSlash(path)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
