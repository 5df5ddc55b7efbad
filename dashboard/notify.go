package dashboard

import (
	"context"
	"sync"
	"time"
)

// Notification kinds.
const (
	Success = "success"
	Error   = "error"
	Info    = "info"
)

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 3 * time.Second

// Notification is a transient message shown at the top of the dashboard.
type Notification struct {
	Kind    string
	Message string
}

// Notifier holds at most one notification and clears it after its TTL.
type Notifier struct {
	mu      sync.Mutex
	ttl     time.Duration
	current *Notification
	gen     int
}

// NewNotifier returns a notifier whose messages expire after ttl.
func NewNotifier(ttl time.Duration) *Notifier {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Notifier{ttl: ttl}
}

// TTL returns the display duration.
func (n *Notifier) TTL() time.Duration { return n.ttl }

// Show replaces the current notification and restarts the timer.
func (n *Notifier) Show(kind, message string) {
	n.mu.Lock()
	n.gen++
	gen := n.gen
	n.current = &Notification{Kind: kind, Message: message}
	n.mu.Unlock()

	time.AfterFunc(n.ttl, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.gen == gen {
			n.current = nil
		}
	})
}

// Current returns the visible notification, if any.
func (n *Notifier) Current() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notification{}, false
	}
	return *n.current, true
}

// Take returns the visible notification and clears it, so it is rendered once.
func (n *Notifier) Take() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notification{}, false
	}
	cur := *n.current
	n.current = nil
	n.gen++
	return cur, true
}

// DefaultSearchDelay is the quiet period after the last keystroke.
const DefaultSearchDelay = 300 * time.Millisecond

// Debouncer lets only the last of a burst of calls through.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	gen   int
}

// NewDebouncer returns a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Wait sleeps for the quiet period and reports whether this call is still
// the latest one. Superseded callers get false and should drop their work.
func (d *Debouncer) Wait(ctx context.Context) bool {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	t := time.NewTimer(d.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen == gen
}
