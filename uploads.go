package bandsite

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/bandsite/content"
)

const multipartMemory = 32 << 20 // larger parts spill to temp files

// formFiles opens the files submitted for fields. Empty file inputs are
// skipped. The returned cleanup closes every opened file.
func formFiles(c echo.Context, fields ...string) (content.Files, func(), error) {
	files := content.Files{}
	var opened []io.Closer
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	req := c.Request()
	if req.MultipartForm == nil {
		if err := req.ParseMultipartForm(multipartMemory); err != nil {
			if errors.Is(err, http.ErrNotMultipart) {
				return files, cleanup, nil
			}
			return nil, cleanup, err
		}
	}
	for _, field := range fields {
		for _, fh := range req.MultipartForm.File[field] {
			if fh.Filename == "" || fh.Size == 0 {
				continue
			}
			f, err := fh.Open()
			if err != nil {
				cleanup()
				return nil, func() {}, err
			}
			opened = append(opened, f)
			files[field] = append(files[field], content.File{
				Name:        fh.Filename,
				ContentType: contentType(fh),
				Size:        fh.Size,
				Reader:      f,
			})
		}
	}
	return files, cleanup, nil
}

// contentType trusts the part header and falls back to sniffing.
func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get(echo.HeaderContentType); ct != "" && ct != echo.MIMEOctetStream {
		return ct
	}
	f, err := fh.Open()
	if err != nil {
		return echo.MIMEOctetStream
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	return http.DetectContentType(head[:n])
}
