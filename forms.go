package bandsite

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/store"
)

// Accepted layouts for event dates: datetime-local inputs, then plain dates.
var eventDateLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02"}

func formValue(c echo.Context, name string) string {
	return strings.TrimSpace(c.FormValue(name))
}

func parseAmount(raw, msg string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, content.Invalid(msg)
	}
	return v, nil
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range eventDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, content.Invalid("Please enter a valid date")
}

func songForm(c echo.Context) (content.Song, error) {
	return content.Song{
		Title:          formValue(c, "title"),
		Artist:         formValue(c, "artist"),
		Genre:          formValue(c, "genre"),
		Description:    formValue(c, "description"),
		SpotifyLink:    formValue(c, "spotifyLink"),
		AppleMusicLink: formValue(c, "appleMusicLink"),
		YouTubeLink:    formValue(c, "youtubeLink"),
	}, nil
}

func galleryForm(c echo.Context) (content.GalleryItem, error) {
	return content.GalleryItem{
		Title:       formValue(c, "title"),
		Description: formValue(c, "description"),
	}, nil
}

func productForm(c echo.Context) (content.Product, error) {
	p := content.Product{
		Name:        formValue(c, "name"),
		Description: formValue(c, "description"),
		Category:    formValue(c, "category"),
		Colors:      SplitList(c.FormValue("colors")),
	}
	raw := formValue(c, "price")
	if raw == "" {
		return p, content.Invalid("Please enter a valid price")
	}
	price, err := parseAmount(raw, "Please enter a valid price")
	if err != nil {
		return p, err
	}
	p.Price = price
	if s := formValue(c, "stock"); s != "" {
		stock, err := strconv.Atoi(s)
		if err != nil {
			return p, content.Invalid("Please enter a valid stock quantity")
		}
		p.Stock = stock
	}
	return p, nil
}

func eventForm(c echo.Context) (content.Event, error) {
	ev := content.Event{
		Title:       formValue(c, "title"),
		Location:    formValue(c, "location"),
		Description: formValue(c, "description"),
		TicketURL:   formValue(c, "ticketUrl"),
	}
	date, err := parseDate(formValue(c, "date"), time.Local)
	if err != nil {
		return ev, content.Invalid("Please enter a valid event date")
	}
	ev.Date = date
	ev.TicketPrice, err = parseAmount(formValue(c, "ticketPrice"), "Please enter a valid ticket price")
	return ev, err
}

func memberForm(c echo.Context) (content.Member, error) {
	m := content.Member{
		Name:       formValue(c, "name"),
		Role:       formValue(c, "role"),
		Instrument: formValue(c, "instrument"),
		Bio:        formValue(c, "bio"),
	}
	join, err := parseDate(formValue(c, "joinDate"), time.Local)
	if err != nil {
		return m, content.Invalid("Please enter a valid join date")
	}
	m.JoinDate = join
	return m, nil
}

func auditionForm(c echo.Context) content.AuditionRequest {
	return content.AuditionRequest{
		Name:         formValue(c, "name"),
		Email:        formValue(c, "email"),
		Phone:        formValue(c, "phone"),
		Instrument:   formValue(c, "instrument"),
		Experience:   formValue(c, "experience"),
		Availability: formValue(c, "availability"),
		Message:      formValue(c, "message"),
	}
}

var socialKeys = []string{"facebook", "instagram", "twitter", "youtube"}

var settingsTextFields = []string{
	"siteTitle", "heroTitle", "heroSubtitle", "missionTitle", "missionText",
	"contactEmail", "contactPhone", "footerText",
}

// settingsPatch builds a settings patch from the fields present in the
// form. Nested maps start from current so a partial form keeps the rest.
func settingsPatch(c echo.Context, current content.Settings) store.Record {
	form, err := c.FormParams()
	if err != nil {
		return store.Record{}
	}
	has := func(k string) bool {
		_, ok := form[k]
		return ok
	}

	patch := store.Record{}
	for _, k := range settingsTextFields {
		if has(k) {
			patch[k] = strings.TrimSpace(form.Get(k))
		}
	}

	social := map[string]any{}
	changed := false
	for k, v := range current.Social {
		social[k] = v
	}
	for _, k := range socialKeys {
		if has("social." + k) {
			social[k] = strings.TrimSpace(form.Get("social." + k))
			changed = true
		}
	}
	if changed {
		patch["social"] = social
	}

	sections := map[string]any{}
	changed = false
	for _, k := range content.SectionKeys {
		sec := current.Sections[k]
		if has("sections." + k + ".title") {
			sec.Title = strings.TrimSpace(form.Get("sections." + k + ".title"))
			changed = true
		}
		if has("sections." + k + ".description") {
			sec.Description = strings.TrimSpace(form.Get("sections." + k + ".description"))
			changed = true
		}
		sections[k] = map[string]any{"title": sec.Title, "description": sec.Description}
	}
	if changed {
		patch["sections"] = sections
	}

	rel := current.Release
	changed = false
	for k, dst := range map[string]*string{
		"latestRelease.title":       &rel.Title,
		"latestRelease.description": &rel.Description,
		"latestRelease.coverImage":  &rel.CoverImage,
	} {
		if has(k) {
			*dst = strings.TrimSpace(form.Get(k))
			changed = true
		}
	}
	links := map[string]any{}
	for k, v := range rel.Links {
		links[k] = v
	}
	for _, k := range content.ReleaseLinkKeys {
		if has("latestRelease.links." + k) {
			links[k] = strings.TrimSpace(form.Get("latestRelease.links." + k))
			changed = true
		}
	}
	if changed {
		patch["latestRelease"] = map[string]any{
			"title":          rel.Title,
			"description":    rel.Description,
			"coverImage":     rel.CoverImage,
			"streamingLinks": links,
		}
	}
	return patch
}
