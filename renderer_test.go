package bandsite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/store"
	"github.com/eringen/bandsite/store/sqlitestore"
	"github.com/eringen/bandsite/views"
)

// switchableSettings fails settings reads while down is set.
type switchableSettings struct {
	store.Store
	down atomic.Bool
}

func (s *switchableSettings) Get(ctx context.Context, c, id string) (store.Document, error) {
	if c == content.CollectionSettings && s.down.Load() {
		return store.Document{}, errors.New("backend unavailable")
	}
	return s.Store.Get(ctx, c, id)
}

type rendererEnv struct {
	r     *Renderer
	repos *content.Repositories
	st    *switchableSettings
	now   atomic.Pointer[time.Time]
}

func newRendererEnv(t *testing.T) *rendererEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlitestore.Open(filepath.Join(dir, "site.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &rendererEnv{st: &switchableSettings{Store: db}}
	now := testNow
	env.now.Store(&now)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := content.NewClient(env.st, sqlitestore.NewFileBlobs(filepath.Join(dir, "uploads"), "/uploads"), log)
	t.Cleanup(client.Activity.Wait)
	env.repos = content.NewRepositories(client)
	env.r = NewRenderer(env.repos, NewMemoryCache(time.Hour), log, func() time.Time { return *env.now.Load() })
	env.r.attempts = 1
	return env
}

func (e *rendererEnv) advance(d time.Duration) {
	next := e.now.Load().Add(d)
	e.now.Store(&next)
}

func TestSettingsFallbackIsNotCached(t *testing.T) {
	env := newRendererEnv(t)
	ctx := context.Background()
	_, err := env.repos.Settings.Update(ctx, store.Record{"heroTitle": "Live Tonight"}, nil)
	require.NoError(t, err)

	env.st.down.Store(true)
	assert.Equal(t, content.DefaultSettings().HeroTitle, env.r.Settings(ctx).HeroTitle)

	env.st.down.Store(false)
	assert.Equal(t, "Live Tonight", env.r.Settings(ctx).HeroTitle, "defaults served during the outage must not stick")

	// now cached: a later outage keeps serving the stored value
	env.st.down.Store(true)
	assert.Equal(t, "Live Tonight", env.r.Settings(ctx).HeroTitle)
}

func TestCachedUpcomingEventsDropPastShows(t *testing.T) {
	env := newRendererEnv(t)
	ctx := context.Background()
	start := *env.now.Load()
	_, err := env.repos.Events.Add(ctx, content.Event{Title: "Tonight", Date: start.Add(time.Hour)}, nil)
	require.NoError(t, err)
	_, err = env.repos.Events.Add(ctx, content.Event{Title: "Next Week", Date: start.Add(7 * 24 * time.Hour)}, nil)
	require.NoError(t, err)

	site := views.Site{Settings: content.DefaultSettings()}
	titles := func(evs []content.Event) []string {
		var out []string
		for _, e := range evs {
			out = append(out, e.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Tonight", "Next Week"}, titles(env.r.Home(ctx, site).Events.Items))
	assert.Equal(t, []string{"Tonight", "Next Week"}, titles(env.r.Events(ctx, site).Region.Items))

	env.advance(2 * time.Hour)
	home := env.r.Home(ctx, site)
	require.False(t, home.Events.Failed())
	assert.Equal(t, []string{"Next Week"}, titles(home.Events.Items))
	assert.Equal(t, []string{"Next Week"}, titles(env.r.Events(ctx, site).Region.Items))
}

func TestNotPastKeepsFailedRegion(t *testing.T) {
	boom := errors.New("offline")
	reg := notPast(views.Region[content.Event]{Err: boom}, testNow)
	assert.ErrorIs(t, reg.Err, boom)
}
