package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/bandsite/content"
)

// Panel names.
const (
	PanelSongs     = "songs"
	PanelGallery   = "gallery"
	PanelProducts  = "products"
	PanelEvents    = "events"
	PanelMembers   = "members"
	PanelAuditions = "auditions"
)

// PanelNames lists the panels in sidebar order.
var PanelNames = []string{PanelSongs, PanelGallery, PanelProducts, PanelEvents, PanelMembers, PanelAuditions}

// Decision is the outcome of the dashboard auth gate.
type Decision int

const (
	Allow Decision = iota
	RedirectToLogin
	Deny
)

// AuthState is what the session knows about the current user.
type AuthState struct {
	SignedIn bool
	Admin    bool
}

// Authorize decides whether the dashboard may be used. Without a session
// the user is sent to the login page; a session without the admin claim
// must be signed out and refused before any write is wired.
func Authorize(s AuthState) Decision {
	switch {
	case !s.SignedIn:
		return RedirectToLogin
	case !s.Admin:
		return Deny
	}
	return Allow
}

// Stats are the overview counters.
type Stats struct {
	Songs            int
	UpcomingEvents   int
	Products         int
	PendingAuditions int
}

// Overview is the dashboard landing data.
type Overview struct {
	Stats    Stats
	Activity []content.ActivityEntry
	Upcoming []content.Event
}

// Outcome names the notification shown after a submission.
type Outcome struct {
	Success string
	Failure string // prefix for the error text, e.g. "Error adding song"
}

// Controller is one admin session's dashboard.
type Controller struct {
	repos    *content.Repositories
	activity *content.ActivityLog
	now      func() time.Time
	panels   map[string]*Panel

	Notifier *Notifier
}

// Config tunes controller timings.
type Config struct {
	NotificationTTL time.Duration
	SearchDelay     time.Duration
	Now             func() time.Time
}

// NewController builds the panels for every entity kind.
func NewController(repos *content.Repositories, activity *content.ActivityLog, cfg Config) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SearchDelay <= 0 {
		cfg.SearchDelay = DefaultSearchDelay
	}
	c := &Controller{
		repos:    repos,
		activity: activity,
		now:      cfg.Now,
		Notifier: NewNotifier(cfg.NotificationTTL),
	}
	c.panels = map[string]*Panel{
		PanelSongs:     NewPanel(PanelSongs, listItems(repos.Songs.List, songItem)),
		PanelGallery:   NewPanel(PanelGallery, listItems(repos.Gallery.List, galleryItem)),
		PanelProducts:  NewPanel(PanelProducts, listItems(repos.Products.List, productItem)),
		PanelEvents:    NewPanel(PanelEvents, listItems(repos.Events.List, eventItem)),
		PanelMembers:   NewPanel(PanelMembers, listItems(repos.Members.List, memberItem)),
		PanelAuditions: NewPanel(PanelAuditions, listItems(repos.Auditions.List, auditionItem)),
	}
	for _, p := range c.panels {
		p.Search = NewDebouncer(cfg.SearchDelay)
	}
	return c
}

// Panel returns the named panel.
func (c *Controller) Panel(name string) (*Panel, bool) {
	p, ok := c.panels[name]
	return p, ok
}

// Submit runs write on the named panel and shows the outcome notification.
// Validation errors are shown verbatim.
func (c *Controller) Submit(ctx context.Context, panel string, out Outcome, write func(context.Context) error) error {
	p, ok := c.panels[panel]
	if !ok {
		return fmt.Errorf("dashboard: unknown panel %q", panel)
	}
	err := p.Submit(ctx, write)
	switch {
	case err == nil:
		c.Notifier.Show(Success, out.Success)
	case content.IsValidation(err):
		c.Notifier.Show(Error, err.Error())
	default:
		c.Notifier.Show(Error, fmt.Sprintf("%s: %v", out.Failure, err))
	}
	return err
}

// Overview loads the counters, recent activity and next events. All
// queries run concurrently; the first error is returned along with
// whatever did load.
func (c *Controller) Overview(ctx context.Context) (Overview, error) {
	var (
		ov Overview
		g  errgroup.Group
		mu sync.Mutex
	)
	now := c.now()
	set := func(fn func()) {
		mu.Lock()
		fn()
		mu.Unlock()
	}
	g.Go(func() error {
		songs, err := c.repos.Songs.List(ctx)
		set(func() { ov.Stats.Songs = len(songs) })
		return err
	})
	g.Go(func() error {
		events, err := c.repos.Events.Upcoming(ctx, now, 0)
		set(func() { ov.Stats.UpcomingEvents = len(events) })
		return err
	})
	g.Go(func() error {
		products, err := c.repos.Products.List(ctx)
		set(func() { ov.Stats.Products = len(products) })
		return err
	})
	g.Go(func() error {
		pending, err := c.repos.Auditions.Pending(ctx)
		set(func() { ov.Stats.PendingAuditions = len(pending) })
		return err
	})
	g.Go(func() error {
		entries, err := c.activity.Recent(ctx, 5)
		set(func() { ov.Activity = entries })
		return err
	})
	g.Go(func() error {
		events, err := c.repos.Events.Upcoming(ctx, now, 5)
		set(func() { ov.Upcoming = events })
		return err
	})
	err := g.Wait()
	return ov, err
}

func listItems[T any](list func(context.Context) ([]T, error), item func(T) Item) func(context.Context) ([]Item, error) {
	return func(ctx context.Context) ([]Item, error) {
		vs, err := list(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]Item, 0, len(vs))
		for _, v := range vs {
			items = append(items, item(v))
		}
		return items, nil
	}
}

func songItem(s content.Song) Item {
	sub := s.Artist
	if s.Genre != "" {
		sub = strings.TrimSpace(sub + " " + s.Genre)
	}
	return Item{ID: s.ID, Title: s.Title, Subtitle: sub, Value: s}
}

func galleryItem(g content.GalleryItem) Item {
	return Item{ID: g.ID, Title: g.Title, Subtitle: g.Description, Value: g}
}

func productItem(p content.Product) Item {
	return Item{ID: p.ID, Title: p.Name, Subtitle: p.Category, Value: p}
}

func eventItem(e content.Event) Item {
	return Item{ID: e.ID, Title: e.Title, Subtitle: e.Location, Value: e}
}

func memberItem(m content.Member) Item {
	return Item{ID: m.ID, Title: m.Name, Subtitle: m.Role, Value: m}
}

func auditionItem(a content.AuditionRequest) Item {
	return Item{ID: a.ID, Title: a.Name, Subtitle: a.Instrument, Value: a}
}

// Registry keeps one Controller per admin session and drops idle ones.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	idle    time.Duration
	factory func() *Controller
	stop    chan struct{}
	once    sync.Once
}

type entry struct {
	ctrl *Controller
	seen time.Time
}

// NewRegistry returns a registry that evicts sessions idle for longer than idle.
func NewRegistry(idle time.Duration, factory func() *Controller) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		idle:    idle,
		factory: factory,
		stop:    make(chan struct{}),
	}
	go r.cleanup()
	return r
}

func (r *Registry) cleanup() {
	ticker := time.NewTicker(r.idle)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep(time.Now())
		}
	}
}

// Get returns the controller for sessionID, creating it on first use.
func (r *Registry) Get(sessionID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		e = &entry{ctrl: r.factory()}
		r.entries[sessionID] = e
	}
	e.seen = time.Now()
	return e.ctrl
}

// Drop forgets sessionID, e.g. on logout.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.entries, sessionID)
	r.mu.Unlock()
}

// Sweep removes sessions not seen since now minus the idle period and
// returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.seen.Before(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops the background sweeper.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.stop) })
}
