package views

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/dashboard"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func testSite() Site {
	return Site{Name: "U4C", URL: "http://localhost:3000", Settings: content.DefaultSettings(), Path: "/music/", CSRF: "tok"}
}

func TestMusicRegionRenderings(t *testing.T) {
	tests := []struct {
		name   string
		region Region[content.Song]
		want   string
		absent string
	}{
		{"empty", Region[content.Song]{}, "No music available at the moment. Check back soon!", "Error loading music"},
		{"failed", Region[content.Song]{Err: errors.New("offline")}, "Error loading music. Please try again later.", "No music available"},
		{"items", Region[content.Song]{Items: []content.Song{{Title: "Grace", AudioURL: "/uploads/songs/1_grace.mp3"}}}, "Grace", "No music available"},
	}
	for _, tt := range tests {
		out := renderString(t, Music(ListPage[content.Song]{Site: testSite(), Region: tt.region}))
		if !strings.Contains(out, tt.want) {
			t.Errorf("%s: expected %q in output", tt.name, tt.want)
		}
		if strings.Contains(out, tt.absent) {
			t.Errorf("%s: did not expect %q in output", tt.name, tt.absent)
		}
	}
}

func TestPlaceholdersForEveryRegion(t *testing.T) {
	site := testSite()
	failed := errors.New("offline")
	pages := map[string]templ.Component{
		"gallery": Gallery(ListPage[content.GalleryItem]{Site: site, Region: Region[content.GalleryItem]{Err: failed}}),
		"merch":   Merch(ListPage[content.Product]{Site: site, Region: Region[content.Product]{Err: failed}}),
		"events":  Events(ListPage[content.Event]{Site: site, Region: Region[content.Event]{Err: failed}}),
		"members": Members(ListPage[content.Member]{Site: site, Region: Region[content.Member]{Err: failed}}),
	}
	for name, c := range pages {
		out := renderString(t, c)
		if !strings.Contains(out, Placeholders[name].Failed) {
			t.Errorf("%s: missing failure placeholder", name)
		}
	}
	out := renderString(t, Events(ListPage[content.Event]{Site: site}))
	if !strings.Contains(out, "No upcoming events at this time.") {
		t.Errorf("events: missing empty placeholder")
	}
}

func TestAuditionsNavGatedByFlag(t *testing.T) {
	site := testSite()
	out := renderString(t, Home(HomePage{Site: site}))
	if strings.Contains(out, `href="/auditions/"`) {
		t.Fatalf("auditions link shown while hidden")
	}
	site.AuditionsEnabled = true
	out = renderString(t, Home(HomePage{Site: site}))
	if !strings.Contains(out, `href="/auditions/"`) {
		t.Fatalf("auditions link missing while enabled")
	}
}

func TestMerchFormatsPrice(t *testing.T) {
	out := renderString(t, Merch(ListPage[content.Product]{
		Site:   testSite(),
		Region: Region[content.Product]{Items: []content.Product{{Name: "Tee", Price: 12.5, Stock: 3}}},
	}))
	if !strings.Contains(out, "$12.50") {
		t.Fatalf("expected formatted price")
	}
}

func TestEventsEscapeUserContent(t *testing.T) {
	out := renderString(t, Events(ListPage[content.Event]{
		Site: testSite(),
		Region: Region[content.Event]{Items: []content.Event{{
			Title:     "<b>Show</b>",
			Date:      time.Date(2026, 11, 20, 19, 0, 0, 0, time.UTC),
			TicketURL: "javascript:alert(1)",
		}}},
	}))
	if strings.Contains(out, "<b>Show</b>") {
		t.Fatalf("title not escaped")
	}
	if strings.Contains(out, "javascript:alert") {
		t.Fatalf("unsafe ticket url rendered")
	}
	if !strings.Contains(out, "Nov 20, 2026") {
		t.Fatalf("expected formatted date")
	}
}

func TestDashboardRenders(t *testing.T) {
	n := dashboard.Notification{Kind: dashboard.Success, Message: "Song added successfully"}
	out := renderString(t, Dashboard(DashboardPage{
		CSRF: "tok",
		User: UserInfo{Email: "admin@u4cband.com"},
		Overview: dashboard.Overview{
			Stats: dashboard.Stats{Songs: 4, PendingAuditions: 2},
		},
		Panels: []PanelView{
			{Name: "songs", Title: "Music", State: "form-open", FormOpen: true, Form: content.Song{}},
			{Name: "auditions", Title: "Auditions", Items: []dashboard.Item{{ID: "a1", Title: "Ana", Value: content.AuditionRequest{Email: "ana@example.com", Status: "pending"}}}},
		},
		Notification: &n,
		NotifyMillis: 3000,
		Settings:     content.DefaultSettings(),
	}))
	for _, want := range []string{
		"Song added successfully",
		`data-ttl="3000"`,
		`delay:300ms`,
		`name="audioFile"`,
		`/admin/auditions/a1/status/`,
		`id="pending-auditions">2<`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in dashboard output", want)
		}
	}
}

func TestErrorPages(t *testing.T) {
	if out := renderString(t, NotFound()); !strings.Contains(out, "404") {
		t.Fatalf("not found page missing status")
	}
	if out := renderString(t, ServerError()); !strings.Contains(out, "500") {
		t.Fatalf("server error page missing status")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := FormatPrice(12.5); got != "$12.50" {
		t.Errorf("FormatPrice = %q", got)
	}
	if got := FormatEventDate(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)); got != "Jan 2, 2026" {
		t.Errorf("FormatEventDate = %q", got)
	}
	if got := FormatEventDate(time.Time{}); got != "" {
		t.Errorf("zero date = %q", got)
	}
}

func TestHomeLatestRelease(t *testing.T) {
	site := testSite()
	out := renderString(t, Home(HomePage{Site: site}))
	if !strings.Contains(out, "<h3>Coming Soon</h3>") {
		t.Errorf("default release not shown")
	}

	site.Settings.Release = content.LatestRelease{
		Title:       "Amazing Grace",
		Description: "Out now",
		Links: map[string]string{
			"spotify":    "https://open.spotify.com/track/1",
			"youtube":    "#",
			"appleMusic": "",
		},
	}
	out = renderString(t, Home(HomePage{Site: site}))
	for _, want := range []string{"<h3>Amazing Grace</h3>", `href="https://open.spotify.com/track/1"`, ">Spotify</a>"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
	for _, absent := range []string{">YouTube</a>", ">Apple Music</a>", "Coming Soon"} {
		if strings.Contains(out, absent) {
			t.Errorf("unexpected %q", absent)
		}
	}

	site.Settings.Release = content.LatestRelease{}
	out = renderString(t, Home(HomePage{Site: site}))
	if !strings.Contains(out, "Our newest worship single is coming soon") {
		t.Errorf("empty release should fall back to the placeholder")
	}
}
