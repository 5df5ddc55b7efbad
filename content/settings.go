package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eringen/bandsite/store"
)

const settingsID = "main"

// HeroVideo holds the two encodings of the home page background video.
type HeroVideo struct {
	MP4URL  string
	WebMURL string
}

// Section is the heading and blurb of one public page section.
type Section struct {
	Title       string
	Description string
}

// LatestRelease is the newest single promoted on the home page.
type LatestRelease struct {
	Title       string
	Description string
	CoverImage  string
	Links       map[string]string // streaming platform -> URL
}

// ReleaseLinkKeys are the streaming platforms the dashboard edits.
var ReleaseLinkKeys = []string{"spotify", "appleMusic", "youtube"}

// Section keys used in Settings.Sections.
var SectionKeys = []string{"music", "gallery", "merch", "events", "members", "auditions"}

// Settings is the site-wide singleton edited from the dashboard.
type Settings struct {
	SiteTitle    string
	HeroTitle    string
	HeroSubtitle string
	HeroVideo    HeroVideo
	MissionTitle string
	MissionText  string
	ContactEmail string
	ContactPhone string
	Social       map[string]string // facebook, instagram, twitter, youtube
	Sections     map[string]Section
	Release      LatestRelease
	FooterText   string
}

// DefaultSettings returns the record written on first read.
func DefaultSettings() Settings {
	return Settings{
		SiteTitle:    "Us For Christ Band",
		HeroTitle:    "Welcome to U4C Band",
		HeroSubtitle: "Experience the Music",
		HeroVideo: HeroVideo{
			MP4URL:  "/public/videos/hero-background.mp4",
			WebMURL: "/public/videos/hero-background.webm",
		},
		MissionTitle: "Our Mission",
		MissionText:  "To create and share music that inspires and connects people.",
		ContactEmail: "contact@u4cband.com",
		ContactPhone: "(555) 123-4567",
		Social: map[string]string{
			"facebook":  "#",
			"instagram": "#",
			"twitter":   "#",
			"youtube":   "#",
		},
		Sections: map[string]Section{
			"music":     {Title: "Our Music", Description: "Listen to our latest songs."},
			"gallery":   {Title: "Gallery", Description: "Moments from the stage and the studio."},
			"merch":     {Title: "Merchandise", Description: "Support the band."},
			"events":    {Title: "Upcoming Events", Description: "Come see us live."},
			"members":   {Title: "Meet the Band", Description: "The people behind the music."},
			"auditions": {Title: "Auditions", Description: "Want to play with us? Tell us about yourself."},
		},
		Release: LatestRelease{
			Title:       "Coming Soon",
			Description: "Our newest worship single is coming soon",
			Links:       map[string]string{},
		},
		FooterText: "© Us For Christ Band. All rights reserved.",
	}
}

// settingsFields are the top-level keys Update accepts.
var settingsFields = map[string]bool{
	"siteTitle":     true,
	"heroTitle":     true,
	"heroSubtitle":  true,
	"heroVideo":     true,
	"missionTitle":  true,
	"missionText":   true,
	"contactEmail":  true,
	"contactPhone":  true,
	"social":        true,
	"sections":      true,
	"latestRelease": true,
	"footerText":    true,
}

func (s Settings) record() store.Record {
	social := make(map[string]any, len(s.Social))
	for k, v := range s.Social {
		social[k] = v
	}
	sections := make(map[string]any, len(s.Sections))
	for k, v := range s.Sections {
		sections[k] = map[string]any{"title": v.Title, "description": v.Description}
	}
	links := make(map[string]any, len(s.Release.Links))
	for k, v := range s.Release.Links {
		links[k] = v
	}
	return store.Record{
		"siteTitle":    s.SiteTitle,
		"heroTitle":    s.HeroTitle,
		"heroSubtitle": s.HeroSubtitle,
		"heroVideo":    map[string]any{"mp4Url": s.HeroVideo.MP4URL, "webmUrl": s.HeroVideo.WebMURL},
		"missionTitle": s.MissionTitle,
		"missionText":  s.MissionText,
		"contactEmail": s.ContactEmail,
		"contactPhone": s.ContactPhone,
		"social":       social,
		"sections":     sections,
		"latestRelease": map[string]any{
			"title":          s.Release.Title,
			"description":    s.Release.Description,
			"coverImage":     s.Release.CoverImage,
			"streamingLinks": links,
		},
		"footerText": s.FooterText,
	}
}

// decodeSettings reads r on top of the defaults so documents written by
// older versions still render every field.
func decodeSettings(r store.Record) Settings {
	s := DefaultSettings()
	text := map[string]*string{
		"siteTitle":    &s.SiteTitle,
		"heroTitle":    &s.HeroTitle,
		"heroSubtitle": &s.HeroSubtitle,
		"missionTitle": &s.MissionTitle,
		"missionText":  &s.MissionText,
		"contactEmail": &s.ContactEmail,
		"contactPhone": &s.ContactPhone,
		"footerText":   &s.FooterText,
	}
	for k, p := range text {
		if v, ok := r[k].(string); ok {
			*p = v
		}
	}
	if hv := sub(r, "heroVideo"); hv != nil {
		if v := str(hv, "mp4Url"); v != "" {
			s.HeroVideo.MP4URL = v
		}
		if v := str(hv, "webmUrl"); v != "" {
			s.HeroVideo.WebMURL = v
		}
	}
	for k, v := range sub(r, "social") {
		if url, ok := v.(string); ok {
			s.Social[k] = url
		}
	}
	for k := range sub(r, "sections") {
		sec := sub(sub(r, "sections"), k)
		s.Sections[k] = Section{Title: str(sec, "title"), Description: str(sec, "description")}
	}
	if rel := sub(r, "latestRelease"); rel != nil {
		s.Release = LatestRelease{
			Title:       str(rel, "title"),
			Description: str(rel, "description"),
			CoverImage:  str(rel, "coverImage"),
			Links:       map[string]string{},
		}
		for k, v := range sub(rel, "streamingLinks") {
			if url, ok := v.(string); ok {
				s.Release.Links[k] = url
			}
		}
	}
	return s
}

// SettingsResolver reads and writes the settings singleton.
type SettingsResolver struct {
	c *Client
}

// NewSettingsResolver returns a resolver on c.
func NewSettingsResolver(c *Client) *SettingsResolver {
	return &SettingsResolver{c: c}
}

// Get returns the site settings. A missing document is created with the
// defaults; any other store error is logged and the defaults are returned
// without being persisted. Get never fails.
func (r *SettingsResolver) Get(ctx context.Context) Settings {
	s, _ := r.Resolve(ctx)
	return s
}

// Resolve is Get that also reports whether the result came from the store.
// It is false when the read failed and s is the in-memory fallback, which
// callers must not cache.
func (r *SettingsResolver) Resolve(ctx context.Context) (s Settings, stored bool) {
	doc, err := r.c.Store.Get(ctx, CollectionSettings, settingsID)
	switch {
	case err == nil:
		return decodeSettings(doc.Data), true
	case errors.Is(err, store.ErrNotFound):
		def := DefaultSettings()
		rec := def.record()
		rec["createdAt"] = store.ServerTimestamp
		if err := r.c.Store.Set(ctx, CollectionSettings, settingsID, rec); err != nil {
			r.c.Log.Error("settings_self_heal_failed", "error", err)
			return def, false
		}
		r.c.Log.Info("settings_self_heal", "id", settingsID)
		return def, true
	default:
		r.c.Log.Error("settings_read_failed", "error", err)
		return DefaultSettings(), false
	}
}

// Update merges patch into the settings document. When video is set it is
// uploaded first and its URL replaces the matching heroVideo slot, so the
// merge only ever sees URLs.
func (r *SettingsResolver) Update(ctx context.Context, patch store.Record, video *File) (Settings, error) {
	for k := range patch {
		if !settingsFields[k] {
			return Settings{}, Invalid(fmt.Sprintf("Unknown setting %q", k))
		}
	}
	if err := store.ValidateRecord(patch); err != nil {
		return Settings{}, Invalid(err.Error())
	}
	if video != nil && !strings.HasPrefix(video.ContentType, "video/") {
		return Settings{}, Invalid("Please select a video file")
	}

	current := r.Get(ctx)
	patch = store.Merge(nil, patch)

	var replaced string
	if video != nil {
		path := CollectionSettings + "/" + blobName(r.c.Now().UnixNano(), video.Name)
		url, err := r.c.uploadBlob(ctx, path, *video)
		if err != nil {
			return Settings{}, err
		}
		hv := current.HeroVideo
		if video.ContentType == "video/webm" {
			replaced, hv.WebMURL = hv.WebMURL, url
		} else {
			replaced, hv.MP4URL = hv.MP4URL, url
		}
		patch["heroVideo"] = map[string]any{"mp4Url": hv.MP4URL, "webmUrl": hv.WebMURL}
	}
	patch["updatedAt"] = store.ServerTimestamp

	if err := r.c.Store.Update(ctx, CollectionSettings, settingsID, patch); err != nil {
		if video != nil {
			hv := sub(patch, "heroVideo")
			r.c.Log.Warn("orphaned_blob", "collection", CollectionSettings, "url", hv, "error", err)
		}
		return Settings{}, err
	}
	if replaced != "" {
		if err := r.c.Blobs.DeleteBlob(ctx, replaced); err != nil {
			r.c.Log.Warn("blob_delete_failed", "collection", CollectionSettings, "url", replaced, "error", err)
		}
	}
	r.c.Activity.Record(ActivitySettings, "Website settings updated")
	return r.Get(ctx), nil
}
