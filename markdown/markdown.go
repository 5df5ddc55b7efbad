// Package markdown renders the free-text fields of the site (descriptions,
// bios, mission text) from Markdown to HTML as templ components.
package markdown

import (
	"bytes"
	"context"
	"html"
	"html/template"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in the input is omitted and dangerous link schemes are dropped
// because WithUnsafe is not set.
var md = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// Markdown returns a templ.Component that renders content as HTML.
func Markdown(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderMarkdown(&buf, content)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderMarkdown writes the HTML representation of content to buf. If the
// conversion fails the escaped source is written instead.
func RenderMarkdown(buf *bytes.Buffer, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	start := buf.Len()
	if err := md.Convert([]byte(content), buf); err != nil {
		buf.Truncate(start)
		buf.WriteString("<p>" + html.EscapeString(content) + "</p>")
	}
}

// HTML renders content for use inside html/template.
func HTML(content string) template.HTML {
	var buf bytes.Buffer
	RenderMarkdown(&buf, content)
	return template.HTML(buf.String())
}

// SafeURL validates a URL for use in an href or src attribute. Relative
// paths and http, https, mailto and tel URLs pass; anything else yields "".
func SafeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return val
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return val
	default:
		return ""
	}
}
