package views

import (
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/markdown"
)

// Placeholder is the pair of texts a region shows instead of its items.
type Placeholder struct {
	Empty  string
	Failed string
}

// Placeholders by region name.
var Placeholders = map[string]Placeholder{
	"music":   {"No music available at the moment. Check back soon!", "Error loading music. Please try again later."},
	"gallery": {"No images available at the moment. Check back soon!", "Error loading gallery. Please try again later."},
	"merch":   {"No merchandise available at the moment. Check back soon!", "Error loading merchandise. Please try again later."},
	"events":  {"No upcoming events at this time.", "Error loading events. Please try again later."},
	"members": {"No members to show yet. Check back soon!", "Error loading members. Please try again later."},
}

var platformNames = map[string]string{
	"spotify":    "Spotify",
	"appleMusic": "Apple Music",
	"youtube":    "YouTube",
}

// PlatformName is the display name of a streaming platform key.
func PlatformName(key string) string {
	if n, ok := platformNames[key]; ok {
		return n
	}
	return key
}

// FormatPrice formats a price in dollars, e.g. "$12.50".
func FormatPrice(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "$0.00"
	}
	return fmt.Sprintf("$%.2f", v)
}

// FormatEventDate formats an event date as "Jan 2, 2006".
func FormatEventDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// FormatTime formats a timestamp for the dashboard, e.g. "Jan 2, 2006 15:04".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006 15:04")
}

// buildURL joins path segments onto a base URL, ensuring a trailing slash.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// NavClass returns the CSS class of a nav link, marking the current page.
func NavClass(current, href string) string {
	if current == href {
		return "nav-link active"
	}
	return "nav-link"
}

// MusicGroupJsonLD produces a Schema.org MusicGroup JSON-LD block for the band.
func MusicGroupJsonLD(site Site) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "MusicGroup",
		"name":     site.Settings.SiteTitle,
		"url":      buildURL(site.URL),
	}
	if site.Settings.MissionText != "" {
		data["description"] = site.Settings.MissionText
	}
	if site.Settings.ContactEmail != "" {
		data["email"] = site.Settings.ContactEmail
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// EventJsonLD produces a Schema.org MusicEvent JSON-LD block for an event.
func EventJsonLD(site Site, ev content.Event) string {
	data := map[string]interface{}{
		"@context":  "https://schema.org",
		"@type":     "MusicEvent",
		"name":      ev.Title,
		"startDate": ev.Date.Format(time.RFC3339),
		"location": map[string]string{
			"@type": "Place",
			"name":  ev.Location,
		},
		"performer": map[string]string{
			"@type": "MusicGroup",
			"name":  site.Settings.SiteTitle,
		},
	}
	if u := markdown.SafeURL(ev.TicketURL); u != "" {
		data["offers"] = map[string]string{
			"@type":         "Offer",
			"url":           u,
			"price":         fmt.Sprintf("%.2f", ev.TicketPrice),
			"priceCurrency": "USD",
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

var funcs = template.FuncMap{
	"price":    FormatPrice,
	"date":     FormatEventDate,
	"datetime": FormatTime,
	"isoDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	},
	"markdown": markdown.HTML,
	"safeURL": func(s string) template.URL {
		return template.URL(markdown.SafeURL(s))
	},
	"navClass": NavClass,
	"join":     strings.Join,
	"placeholder": func(region string) Placeholder {
		return Placeholders[region]
	},
	"jsonLD": func(s string) template.JS {
		return template.JS(s)
	},
	"musicGroupLD": MusicGroupJsonLD,
	"eventLD":      EventJsonLD,
	"section": func(s content.Settings, key string) content.Section {
		return s.Sections[key]
	},
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"statuses": func() []string {
		return []string{content.StatusPending, content.StatusApproved, content.StatusRejected}
	},
	"socialKeys": func() []string {
		return []string{"facebook", "instagram", "twitter", "youtube"}
	},
	"sectionKeys": func() []string { return content.SectionKeys },
	"releaseKeys": func() []string { return content.ReleaseLinkKeys },
	"platform":    PlatformName,
	"panelData": func(p PanelView, csrf string) PanelData {
		return PanelData{PanelView: p, CSRF: csrf}
	},
	"inputDateTime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02T15:04")
	},
}
