package content

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 1600
	jpegQuality   = 85
)

// resizable lists the image types that are re-encoded before upload. Other
// images (webp, svg) and all audio and video are stored as submitted.
var resizable = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// processImage decodes an image, scales it down to maxImageWidth if wider,
// and re-encodes it as JPEG. The returned file has a .jpg name.
func processImage(f File) (File, error) {
	img, _, err := image.Decode(f.Reader)
	if err != nil {
		return File{}, Invalid(fmt.Sprintf("Invalid image %q: %v", f.Name, err))
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return File{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return File{
		Name:        strings.TrimSuffix(f.Name, filepath.Ext(f.Name)) + ".jpg",
		ContentType: "image/jpeg",
		Size:        int64(buf.Len()),
		Reader:      &buf,
	}, nil
}

// prepare applies image processing when the slot asks for it.
func prepare(f File, isImage bool) (File, error) {
	if isImage && resizable[f.ContentType] {
		return processImage(f)
	}
	return f, nil
}

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// blobName returns a collision-resistant object name for an upload:
// a nanosecond timestamp followed by the slugified original name.
func blobName(nanos int64, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	base := Slugify(strings.TrimSuffix(original, filepath.Ext(original)))
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%d_%s%s", nanos, base, ext)
}

// UploadProfileImage stores a dashboard user's photo under
// profile_images/<uid>/ and returns its URL.
func (c *Client) UploadProfileImage(ctx context.Context, uid string, f File) (string, error) {
	if !strings.HasPrefix(f.ContentType, "image/") {
		return "", Invalid("Please select an image file")
	}
	f, err := prepare(f, true)
	if err != nil {
		return "", err
	}
	path := CollectionProfiles + "/" + Slugify(uid) + "/" + blobName(c.Now().UnixNano(), f.Name)
	return c.uploadBlob(ctx, path, f)
}
