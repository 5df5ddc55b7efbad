package bandsite

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/markdown"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// renderRSS writes the upcoming events as an RSS 2.0 feed. Each item links
// to its ticket page when one is set, otherwise to the events page.
func (a *App) renderRSS(c echo.Context, settings content.Settings, events []content.Event) error {
	base := a.Config.URL
	eventsURL := BuildURL(base, "events")
	items := make([]rssItem, 0, len(events))
	for _, ev := range events {
		link := eventsURL
		if u := markdown.SafeURL(ev.TicketURL); u != "" && u[0] != '/' && u[0] != '#' {
			link = u
		}
		desc := ev.Location
		if ev.Description != "" {
			desc += " - " + ev.Description
		}
		items = append(items, rssItem{
			Title:       ev.Title + ", " + ev.Date.Format("Jan 2, 2006"),
			Link:        link,
			Description: desc,
			PubDate:     ev.Date.Format(time.RFC1123Z),
			GUID:        eventsURL + "#event-" + ev.ID,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       settings.SiteTitle + " events",
			Link:        eventsURL,
			Description: settings.Sections["events"].Description,
			Items:       items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
