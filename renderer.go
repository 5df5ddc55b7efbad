package bandsite

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/bandsite/content"
	"github.com/eringen/bandsite/views"
)

// Renderer loads the data behind the public pages. Every region of a page
// is loaded on its own: a failing region shows its error placeholder while
// the rest of the page renders normally.
type Renderer struct {
	repos *content.Repositories
	cache ContentCache
	log   *slog.Logger
	now   func() time.Time

	attempts int
	backoff  time.Duration
}

// Home page region sizes.
const (
	homeSongs  = 3
	homeEvents = 3
)

// NewRenderer returns a Renderer reading through cache.
func NewRenderer(repos *content.Repositories, cache ContentCache, log *slog.Logger, now func() time.Time) *Renderer {
	if now == nil {
		now = time.Now
	}
	return &Renderer{
		repos:    repos,
		cache:    cache,
		log:      log,
		now:      now,
		attempts: 2,
		backoff:  150 * time.Millisecond,
	}
}

func loadRegion[T any](ctx context.Context, r *Renderer, key string, load func(context.Context) ([]T, error)) views.Region[T] {
	items, err := Cached(ctx, r.cache, key, func(ctx context.Context) ([]T, error) {
		return content.Retry(ctx, r.attempts, r.backoff, load)
	})
	if err != nil {
		r.log.Error("region_load_failed", "region", key, "error", err)
		return views.Region[T]{Err: err}
	}
	return views.Region[T]{Items: items}
}

// errSettingsFallback keeps the resolver's fallback settings out of the cache.
var errSettingsFallback = errors.New("settings: store unavailable, using defaults")

// Settings returns the site settings. It never fails; the defaults served
// while the store is down are not cached.
func (r *Renderer) Settings(ctx context.Context) content.Settings {
	s, _ := Cached(ctx, r.cache, "settings", func(ctx context.Context) (content.Settings, error) {
		s, stored := r.repos.Settings.Resolve(ctx)
		if !stored {
			return s, errSettingsFallback
		}
		return s, nil
	})
	return s
}

func (r *Renderer) Home(ctx context.Context, site views.Site) views.HomePage {
	page := views.HomePage{Site: site}
	var g errgroup.Group
	g.Go(func() error {
		page.Songs = loadRegion(ctx, r, "songs:latest:"+strconv.Itoa(homeSongs), func(ctx context.Context) ([]content.Song, error) {
			return r.repos.Songs.Latest(ctx, homeSongs)
		})
		return nil
	})
	g.Go(func() error {
		now := r.now()
		page.Events = notPast(loadRegion(ctx, r, "events:upcoming:"+strconv.Itoa(homeEvents), func(ctx context.Context) ([]content.Event, error) {
			return r.repos.Events.Upcoming(ctx, now, homeEvents)
		}), now)
		return nil
	})
	_ = g.Wait()
	return page
}

func (r *Renderer) Music(ctx context.Context, site views.Site) views.ListPage[content.Song] {
	return views.ListPage[content.Song]{
		Site:    site,
		Section: site.Settings.Sections["music"],
		Region:  loadRegion(ctx, r, "songs", r.repos.Songs.List),
	}
}

func (r *Renderer) Gallery(ctx context.Context, site views.Site) views.ListPage[content.GalleryItem] {
	return views.ListPage[content.GalleryItem]{
		Site:    site,
		Section: site.Settings.Sections["gallery"],
		Region:  loadRegion(ctx, r, "gallery", r.repos.Gallery.List),
	}
}

func (r *Renderer) Merch(ctx context.Context, site views.Site) views.ListPage[content.Product] {
	return views.ListPage[content.Product]{
		Site:    site,
		Section: site.Settings.Sections["merch"],
		Region:  loadRegion(ctx, r, "products", r.repos.Products.List),
	}
}

func (r *Renderer) Events(ctx context.Context, site views.Site) views.ListPage[content.Event] {
	return views.ListPage[content.Event]{
		Site:    site,
		Section: site.Settings.Sections["events"],
		Region:  r.upcoming(ctx),
	}
}

func (r *Renderer) upcoming(ctx context.Context) views.Region[content.Event] {
	now := r.now()
	return notPast(loadRegion(ctx, r, "events:upcoming", func(ctx context.Context) ([]content.Event, error) {
		return r.repos.Events.Upcoming(ctx, now, 0)
	}), now)
}

// notPast drops events that started before now. A cached upcoming list
// can outlive the moment it was built for.
func notPast(reg views.Region[content.Event], now time.Time) views.Region[content.Event] {
	if reg.Err != nil {
		return reg
	}
	kept := reg.Items[:0:0]
	for _, e := range reg.Items {
		if !e.Date.Before(now) {
			kept = append(kept, e)
		}
	}
	reg.Items = kept
	return reg
}

func (r *Renderer) Members(ctx context.Context, site views.Site) views.ListPage[content.Member] {
	return views.ListPage[content.Member]{
		Site:    site,
		Section: site.Settings.Sections["members"],
		Region:  loadRegion(ctx, r, "members", r.repos.Members.List),
	}
}
