package bandsite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/bandsite/auth"
	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/notify"
	"github.com/eringen/bandsite/store"
	"github.com/eringen/bandsite/store/sqlitestore"
)

const testCSRF = "test-csrf-token"

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type recordingMailer struct {
	sent chan notify.Message
}

func (m *recordingMailer) Send(_ context.Context, msg notify.Message) (string, error) {
	m.sent <- msg
	return "test-message", nil
}

// failingList fails every List call on one collection.
type failingList struct {
	store.Store
	collection string
}

func (f failingList) List(ctx context.Context, c string, q *store.Query) ([]store.Document, error) {
	if c == f.collection {
		return nil, errors.New("backend unavailable")
	}
	return f.Store.List(ctx, c, q)
}

type testSite struct {
	t      *testing.T
	app    *App
	srv    *httptest.Server
	client *http.Client
	repos  *content.Repositories
	local  *auth.Local
	mail   *recordingMailer
}

func newTestSite(t *testing.T, cfg SiteConfig, wrap func(store.Store) store.Store) *testSite {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlitestore.Open(filepath.Join(dir, "site.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var st store.Store = db
	if wrap != nil {
		st = wrap(db)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := content.NewClient(st, sqlitestore.NewFileBlobs(filepath.Join(dir, "uploads"), "/uploads"), log)
	repos := content.NewRepositories(client)
	local := auth.NewLocal(db)
	mail := &recordingMailer{sent: make(chan notify.Message, 4)}

	cfg.SessionSecret = "test-session-secret-0123456789abcdef"
	cfg.UploadsDir = filepath.Join(dir, "uploads")
	app := New(cfg, Deps{
		Client: client,
		Repos:  repos,
		Auth:   local,
		Mailer: mail,
		Log:    log,
	}, WithClock(func() time.Time { return testNow }), WithStaticDir(dir))

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		srv.Close()
		app.Close()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, _ := url.Parse(srv.URL)
	jar.SetCookies(u, []*http.Cookie{{Name: "_csrf", Value: testCSRF, Path: "/"}})

	return &testSite{
		t:   t,
		app: app,
		srv: srv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		repos: repos,
		local: local,
		mail:  mail,
	}
}

func (s *testSite) do(req *http.Request) (*http.Response, string) {
	s.t.Helper()
	resp, err := s.client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, string(body)
}

func (s *testSite) get(path string, htmx bool) (*http.Response, string) {
	s.t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+path, nil)
	require.NoError(s.t, err)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return s.do(req)
}

func (s *testSite) send(method, path string, form url.Values, htmx bool) (*http.Response, string) {
	s.t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRF-Token", testCSRF)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return s.do(req)
}

func (s *testSite) setCookie(name, value string) {
	u, _ := url.Parse(s.srv.URL)
	s.client.Jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

func (s *testSite) loginAdmin() {
	s.t.Helper()
	_, err := s.local.EnsureAccount(context.Background(), "admin@u4cband.com", "correct-horse", true)
	require.NoError(s.t, err)
	resp, _ := s.send(http.MethodPost, "/admin/login/", url.Values{
		"email":    {"admin@u4cband.com"},
		"password": {"correct-horse"},
	}, false)
	require.Equal(s.t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(s.t, "/admin/", resp.Header.Get("Location"))
}

func TestPublicPagesShowEmptyPlaceholders(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, nil)

	pages := map[string]string{
		"/music/":   "No music available at the moment. Check back soon!",
		"/gallery/": "No images available at the moment. Check back soon!",
		"/merch/":   "No merchandise available at the moment. Check back soon!",
		"/events/":  "No upcoming events at this time.",
		"/members/": "No members to show yet. Check back soon!",
	}
	for path, want := range pages {
		resp, body := s.get(path, false)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, body, want, path)
	}

	resp, body := s.get("/", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Welcome to U4C Band")
}

func TestFailedRegionShowsErrorPlaceholderAndPageStillRenders(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, func(st store.Store) store.Store {
		return failingList{Store: st, collection: content.CollectionSongs}
	})
	_, err := s.repos.Events.Add(context.Background(), content.Event{
		Title: "Harvest Night",
		Date:  testNow.Add(72 * time.Hour),
	}, nil)
	require.NoError(t, err)

	resp, body := s.get("/music/", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Error loading music. Please try again later.")

	_, body = s.get("/", false)
	assert.Contains(t, body, "Error loading music. Please try again later.")
	assert.Contains(t, body, "Harvest Night", "events region is unaffected")
}

func TestAuditionsNavDependsOnBrowserFlag(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, nil)

	_, body := s.get("/", false)
	assert.NotContains(t, body, `id="auditions-nav"`)

	s.setCookie(auditionsCookie, "true")
	_, body = s.get("/", false)
	assert.Contains(t, body, `id="auditions-nav"`)
}

func TestDashboardRequiresSession(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, nil)

	resp, _ := s.get("/admin/", false)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/login/", resp.Header.Get("Location"))

	resp, _ = s.get("/admin/panels/songs/search/?q=x", true)
	assert.Equal(t, "/admin/login/", resp.Header.Get("HX-Redirect"))
}

func TestLoginRejectsNonAdmin(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, nil)
	_, err := s.local.EnsureAccount(context.Background(), "fan@example.com", "fan-password", false)
	require.NoError(t, err)

	resp, body := s.send(http.MethodPost, "/admin/login/", url.Values{
		"email":    {"fan@example.com"},
		"password": {"fan-password"},
	}, false)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, auth.DeniedMessage)

	resp, _ = s.get("/admin/", false)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "no session was created")
}

func TestLoginValidation(t *testing.T) {
	s := newTestSite(t, SiteConfig{LoginLimit: 2}, nil)

	_, body := s.send(http.MethodPost, "/admin/login/", url.Values{"email": {"a@b.c"}}, false)
	assert.Contains(t, body, "Please fill in all fields")

	for i := 0; i < 2; i++ {
		resp, _ := s.send(http.MethodPost, "/admin/login/", url.Values{
			"email":    {"nobody@example.com"},
			"password": {"wrong-password"},
		}, false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, body := s.send(http.MethodPost, "/admin/login/", url.Values{
		"email":    {"nobody@example.com"},
		"password": {"wrong-password"},
	}, false)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body, "Too many failed attempts. Please try again later")
}

func TestCSRFIsRequired(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, nil)
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/admin/login/", strings.NewReader("email=a&password=b"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRF-Token", "forged")
	resp, _ := s.do(req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminAddsEventAndPublicPageRefreshes(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, nil)
	s.loginAdmin()

	resp, body := s.get("/admin/", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Dashboard")
	assert.Contains(t, body, `id="panel-events"`)

	// Warm the public cache.
	_, body = s.get("/events/", false)
	assert.Contains(t, body, "No upcoming events at this time.")

	resp, body = s.send(http.MethodPost, "/admin/panels/events/", url.Values{
		"title":       {"Spring Tour Kickoff"},
		"date":        {"2027-03-01T20:00"},
		"location":    {"Main Hall"},
		"ticketPrice": {"15"},
	}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Event added successfully")
	assert.Contains(t, body, "Spring Tour Kickoff")
	assert.Contains(t, body, `data-state="idle"`)

	_, body = s.get("/events/", false)
	assert.Contains(t, body, "Spring Tour Kickoff", "cache was invalidated by the write")
	assert.Contains(t, body, "Main Hall")
}

func TestAdminFormValidationKeepsFormOpen(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, nil)
	s.loginAdmin()

	resp, _ := s.get("/admin/panels/songs/new/", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.send(http.MethodPost, "/admin/panels/songs/", url.Values{
		"title":  {"Amazing Grace"},
		"artist": {"U4C"},
	}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Please select an audio file")
	assert.Contains(t, body, `data-state="form-open"`)
	assert.Contains(t, body, `value="Amazing Grace"`, "submitted values are shown again")

	songs, err := s.repos.Songs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, songs)

	_, body = s.send(http.MethodPost, "/admin/panels/products/", url.Values{
		"name":  {"Tour Shirt"},
		"price": {"twelve"},
	}, true)
	assert.Contains(t, body, "Please enter a valid price")
}

func TestAdminDeleteAndSearch(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, nil)
	ctx := context.Background()
	keep, err := s.repos.Events.Add(ctx, content.Event{Title: "Winter Tour", Date: testNow.Add(24 * time.Hour)}, nil)
	require.NoError(t, err)
	gone, err := s.repos.Events.Add(ctx, content.Event{Title: "Youth Night", Date: testNow.Add(48 * time.Hour)}, nil)
	require.NoError(t, err)
	s.loginAdmin()

	_, body := s.get("/admin/panels/events/search/?q=tour", true)
	assert.Contains(t, body, "Winter Tour")
	assert.NotContains(t, body, "Youth Night")

	resp, body := s.send(http.MethodDelete, "/admin/panels/events/"+gone+"/", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Event deleted successfully")
	assert.NotContains(t, body, "Youth Night")

	_, err = s.repos.Events.Get(ctx, keep)
	assert.NoError(t, err)
	_, err = s.repos.Events.Get(ctx, gone)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuditionStatusUpdate(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, nil)
	ctx := context.Background()
	id, err := s.repos.Auditions.Submit(ctx, content.AuditionRequest{
		Name: "Ada", Email: "ada@example.com", Instrument: "Bass",
	}, nil)
	require.NoError(t, err)
	s.loginAdmin()

	resp, body := s.send(http.MethodPost, "/admin/auditions/"+id+"/status/", url.Values{"status": {"approved"}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Audition status updated successfully")

	req, err := s.repos.Auditions.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, content.StatusApproved, req.Status)

	_, body = s.send(http.MethodPost, "/admin/auditions/"+id+"/status/", url.Values{"status": {"maybe"}}, true)
	assert.Contains(t, body, `Unknown status &#34;maybe&#34;`)
}

func TestSettingsUpdateAndVisibilityToggle(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, nil)
	s.loginAdmin()

	resp, _ := s.send(http.MethodPost, "/admin/settings/", url.Values{
		"heroTitle":            {"Live at the Chapel"},
		"social.instagram":     {"https://instagram.com/u4c"},
		"sections.music.title": {"Songs"},
	}, false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	settings := s.repos.Settings.Get(context.Background())
	assert.Equal(t, "Live at the Chapel", settings.HeroTitle)
	assert.Equal(t, "https://instagram.com/u4c", settings.Social["instagram"])
	assert.Equal(t, "Songs", settings.Sections["music"].Title)
	assert.Equal(t, "Listen to our latest songs.", settings.Sections["music"].Description)

	_, body := s.get("/", false)
	assert.Contains(t, body, "Live at the Chapel")

	_, body = s.get("/admin/", false)
	assert.Contains(t, body, "Website content saved successfully")

	resp, _ = s.send(http.MethodPost, "/admin/auditions-visibility/", url.Values{"enabled": {"1"}}, false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body = s.get("/", false)
	assert.Contains(t, body, `id="auditions-nav"`)
}

func TestAuditionSubmission(t *testing.T) {
	s := newTestSite(t, SiteConfig{AdminEmail: "band@u4cband.com"}, nil)

	_, body := s.send(http.MethodPost, "/auditions/", url.Values{
		"name":       {"Grace"},
		"instrument": {"Drums"},
	}, true)
	assert.Contains(t, body, "Please enter your email")

	resp, body := s.send(http.MethodPost, "/auditions/", url.Values{
		"name":       {"Grace"},
		"email":      {"grace@example.com"},
		"instrument": {"Drums"},
	}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Your audition request has been submitted successfully!")

	pending, err := s.repos.Auditions.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Grace", pending[0].Name)

	select {
	case msg := <-s.mail.sent:
		assert.Equal(t, []string{"band@u4cband.com"}, msg.To)
		assert.Contains(t, msg.Subject, "Grace")
	case <-time.After(2 * time.Second):
		t.Fatal("audition alert was not sent")
	}
}

func TestAuditionSubmissionIsRateLimited(t *testing.T) {
	s := newTestSite(t, SiteConfig{AuditionLimit: 1}, nil)
	form := url.Values{"name": {"Grace"}, "email": {"grace@example.com"}, "instrument": {"Drums"}}

	_, body := s.send(http.MethodPost, "/auditions/", form, true)
	assert.Contains(t, body, "submitted successfully")
	_, body = s.send(http.MethodPost, "/auditions/", form, true)
	assert.Contains(t, body, "Too many submissions")
}

func TestSitemapFeedAndRobots(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, nil)
	_, err := s.repos.Events.Add(context.Background(), content.Event{
		Title:     "Harvest Night",
		Date:      testNow.Add(72 * time.Hour),
		TicketURL: "javascript:alert(1)",
	}, nil)
	require.NoError(t, err)

	resp, body := s.get("/sitemap.xml", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<loc>http://localhost:3000/music/</loc>")
	assert.NotContains(t, body, "auditions")

	resp, body = s.get("/events.xml", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/rss+xml")
	assert.Contains(t, body, "Harvest Night")
	assert.NotContains(t, body, "javascript:")

	_, body = s.get("/robots.txt", false)
	assert.Contains(t, body, "Sitemap: http://localhost:3000/sitemap.xml")
}

func TestUnknownRouteRendersNotFoundPage(t *testing.T) {
	s := newTestSite(t, SiteConfig{}, nil)
	resp, _ := s.get("/no-such-page/", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
