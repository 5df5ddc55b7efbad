// Package dashboard holds the admin dashboard's per-session state: one
// panel per entity kind with its form state machine, the transient
// notification, search debouncing and the overview statistics.
package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// State is a panel's form state.
type State int

const (
	Idle State = iota
	FormOpen
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FormOpen:
		return "form-open"
	case Submitting:
		return "submitting"
	}
	return "unknown"
}

// ErrBusy is returned when a panel is asked to act while a submission is
// still in flight.
var ErrBusy = errors.New("dashboard: a submission is already in progress")

// Item is one row of a panel list. Title and Subtitle are what search
// matches against; Value carries the underlying entity.
type Item struct {
	ID       string
	Title    string
	Subtitle string
	Value    any
}

// Panel manages one entity list and its add/edit form.
type Panel struct {
	Name string
	// Search debounces this panel's search requests only.
	Search *Debouncer

	mu         sync.Mutex
	state      State
	prev       State
	items      []Item
	loaded     bool
	refreshErr error
	fetch      func(context.Context) ([]Item, error)
}

// NewPanel returns an idle panel that loads its items with fetch.
func NewPanel(name string, fetch func(context.Context) ([]Item, error)) *Panel {
	return &Panel{Name: name, fetch: fetch, Search: NewDebouncer(DefaultSearchDelay)}
}

func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Busy reports whether a submission is in flight; the submit control is
// disabled while it is.
func (p *Panel) Busy() bool {
	return p.State() == Submitting
}

// Open moves the panel to FormOpen.
func (p *Panel) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Submitting {
		return ErrBusy
	}
	p.state = FormOpen
	return nil
}

// Close dismisses the form without submitting.
func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == FormOpen {
		p.state = Idle
	}
}

// Submit runs write. On success the panel returns to Idle and its list is
// reloaded; on failure it goes back to where it was before (FormOpen for
// form submissions) and the list is left untouched.
func (p *Panel) Submit(ctx context.Context, write func(context.Context) error) error {
	p.mu.Lock()
	if p.state == Submitting {
		p.mu.Unlock()
		return ErrBusy
	}
	p.prev = p.state
	p.state = Submitting
	p.mu.Unlock()

	if err := write(ctx); err != nil {
		p.mu.Lock()
		p.state = p.prev
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.state = Idle
	p.mu.Unlock()
	p.Refresh(ctx)
	return nil
}

// Refresh reloads the list. A failed reload keeps the previous items and
// is reported by RefreshErr.
func (p *Panel) Refresh(ctx context.Context) error {
	items, err := p.fetch(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshErr = err
	if err != nil {
		return err
	}
	p.items = items
	p.loaded = true
	return nil
}

// EnsureLoaded fetches the list once.
func (p *Panel) EnsureLoaded(ctx context.Context) error {
	p.mu.Lock()
	loaded := p.loaded
	p.mu.Unlock()
	if loaded {
		return nil
	}
	return p.Refresh(ctx)
}

// RefreshErr returns the error of the last reload, if any.
func (p *Panel) RefreshErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshErr
}

// Items returns a copy of the last fetched list.
func (p *Panel) Items() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Item, len(p.items))
	copy(out, p.items)
	return out
}

// Filter searches the last fetched list. It never reloads.
func (p *Panel) Filter(query string) []Item {
	return Filter(p.Items(), query)
}

// Filter returns the items whose title or subtitle contains query,
// ignoring case. An empty query returns every item.
func Filter(items []Item, query string) []Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	var out []Item
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), q) || strings.Contains(strings.ToLower(it.Subtitle), q) {
			out = append(out, it)
		}
	}
	return out
}
