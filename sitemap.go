package bandsite

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
}

// sitemapPages are the public sections. Auditions is left out: the page is
// hidden from navigation unless a browser opts in.
var sitemapPages = []struct {
	path string
	freq string
}{
	{"", "weekly"},
	{"music", "weekly"},
	{"gallery", "weekly"},
	{"merch", "monthly"},
	{"events", "daily"},
	{"members", "monthly"},
}

func (a *App) renderSitemap(c echo.Context, lastMod string) error {
	base := a.Config.URL
	urls := make([]sitemapURL, 0, len(sitemapPages))
	for _, p := range sitemapPages {
		loc := BuildURL(base)
		if p.path != "" {
			loc = BuildURL(base, p.path)
		}
		urls = append(urls, sitemapURL{Loc: loc, LastMod: lastMod, ChangeFreq: p.freq})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
