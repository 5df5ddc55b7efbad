package views

import (
	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/dashboard"
)

// Site carries what every page needs: the settings, the auditions nav flag
// and the request's CSRF token.
type Site struct {
	Name             string // SITE_NAME
	URL              string // SITE_URL
	Settings         content.Settings
	AuditionsEnabled bool
	Path             string // current request path, for the active nav entry
	CSRF             string
	Meta             PageMeta
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}

// Region is the result of loading one named area of a page. Exactly one of
// the three renderings applies: the items, the empty placeholder, or the
// error placeholder.
type Region[T any] struct {
	Items []T
	Err   error
}

// Failed reports whether the region could not be loaded.
func (r Region[T]) Failed() bool { return r.Err != nil }

// Empty reports whether the region loaded without items.
func (r Region[T]) Empty() bool { return r.Err == nil && len(r.Items) == 0 }

// HomePage is the landing page.
type HomePage struct {
	Site
	Songs  Region[content.Song]
	Events Region[content.Event]
}

// ListPage is a public page showing one collection.
type ListPage[T any] struct {
	Site
	Section content.Section
	Region  Region[T]
}

// AuditionsPage is the public audition request form.
type AuditionsPage struct {
	Site
	Section content.Section
	Form    content.AuditionRequest
	Error   string
	Sent    bool
}

// LoginPage is the admin sign-in form.
type LoginPage struct {
	CSRF  string
	Email string
	Error string
}

// DashboardPage is the admin overview plus one panel per entity kind.
type DashboardPage struct {
	CSRF         string
	User         UserInfo
	Overview     dashboard.Overview
	OverviewErr  error
	Panels       []PanelView
	Notification *dashboard.Notification
	NotifyMillis int64
	Settings     content.Settings
	Auditions    bool
}

// UserInfo is the signed-in admin shown in the dashboard header.
type UserInfo struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// PanelView is one entity panel as rendered.
type PanelView struct {
	Name     string
	Title    string
	State    string
	Busy     bool
	Query    string
	Items    []dashboard.Item
	LoadErr  error
	FormOpen bool
	EditID   string // set when the form edits an existing item
	Form     any    // entity shown in the form; the zero value for a new item
}

// PanelData is a panel plus the CSRF token its forms post and, after a
// submission, the notification swapped in out of band.
type PanelData struct {
	PanelView
	CSRF         string
	Notification *dashboard.Notification
	NotifyMillis int64
}

// ProfilePage holds the profile and password forms.
type ProfilePage struct {
	CSRF         string
	User         UserInfo
	Notification *dashboard.Notification
	NotifyMillis int64
}
