// Package views renders the public pages, the admin dashboard and the error
// pages. Pages are html/template files embedded in the binary, exposed as
// templ components so handlers render them like any other component.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/bandsite/content"
)

//go:embed templates/*.html
var files embed.FS

const (
	publicLayout = "templates/layout.html"
	adminLayout  = "templates/admin_layout.html"
	partials     = "templates/partials.html"
)

var pages = mustParse()

func mustParse() map[string]*template.Template {
	entries, err := fs.Glob(files, "templates/*.html")
	if err != nil {
		panic(err)
	}
	base := template.Must(template.New("").Funcs(funcs).ParseFS(files, publicLayout, adminLayout, partials))
	out := make(map[string]*template.Template, len(entries))
	for _, name := range entries {
		if name == publicLayout || name == adminLayout || name == partials {
			continue
		}
		t := template.Must(template.Must(base.Clone()).ParseFS(files, name))
		key := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".html")
		out[key] = t
	}
	return out
}

// page executes the named template of a page file.
func page(file, tmpl string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t, ok := pages[file]
		if !ok {
			return fmt.Errorf("views: unknown page %q", file)
		}
		return t.ExecuteTemplate(w, tmpl, data)
	})
}

func Home(p HomePage) templ.Component { return page("home", "public", p) }

func Music(p ListPage[content.Song]) templ.Component { return page("music", "public", p) }

func Gallery(p ListPage[content.GalleryItem]) templ.Component {
	return page("gallery", "public", p)
}

func Merch(p ListPage[content.Product]) templ.Component { return page("merch", "public", p) }

func Events(p ListPage[content.Event]) templ.Component { return page("events", "public", p) }

func Members(p ListPage[content.Member]) templ.Component { return page("members", "public", p) }

func Auditions(p AuditionsPage) templ.Component { return page("auditions", "public", p) }

// AuditionsForm is the form fragment swapped in by htmx after a submission.
func AuditionsForm(p AuditionsPage) templ.Component { return page("auditions", "audition-form", p) }

func Login(p LoginPage) templ.Component { return page("login", "admin", p) }

func Dashboard(p DashboardPage) templ.Component { return page("dashboard", "admin", p) }

// PanelList is the list fragment a debounced dashboard search swaps in.
func PanelList(p PanelView) templ.Component { return page("dashboard", "panel-list", p) }

// Panel is one dashboard panel with its form, swapped in after a submit.
func Panel(d PanelData) templ.Component { return page("dashboard", "panel", d) }

func Profile(p ProfilePage) templ.Component { return page("profile", "admin", p) }

func NotFound() templ.Component { return page("errors", "not-found", nil) }

func ServerError() templ.Component { return page("errors", "server-error", nil) }
