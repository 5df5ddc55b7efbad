package content

import (
	"context"
	"sync"
	"time"

	"github.com/eringen/bandsite/store"
)

// Activity types shown in the dashboard feed.
const (
	ActivityMusic    = "music"
	ActivityEvent    = "event"
	ActivityGallery  = "gallery"
	ActivityStore    = "store"
	ActivityMember   = "member"
	ActivityAudition = "audition"
	ActivitySettings = "settings"
)

const defaultRecent = 5

// ActivityEntry is one line of the recent activity feed.
type ActivityEntry struct {
	ID          string
	Type        string
	Description string
	Timestamp   time.Time
}

// ActivityLog appends entries in the background. A failed append is logged
// and never reported to the caller.
type ActivityLog struct {
	c       *Client
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewActivityLog returns a log writing through c.Store.
func NewActivityLog(c *Client) *ActivityLog {
	return &ActivityLog{c: c, timeout: 10 * time.Second}
}

// Record appends an entry without waiting for the write.
func (a *ActivityLog) Record(typ, description string) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		_, err := a.c.Store.Create(ctx, CollectionActivity, store.Record{
			"type":        typ,
			"description": description,
			"timestamp":   store.ServerTimestamp,
		})
		if err != nil {
			a.c.Log.Warn("activity_append_failed", "type", typ, "description", description, "error", err)
		}
	}()
}

// Wait blocks until every pending append has finished.
func (a *ActivityLog) Wait() {
	a.wg.Wait()
}

// Recent returns the newest n entries, newest first. n <= 0 means 5.
func (a *ActivityLog) Recent(ctx context.Context, n int) ([]ActivityEntry, error) {
	if n <= 0 {
		n = defaultRecent
	}
	docs, err := a.c.Store.List(ctx, CollectionActivity, &store.Query{
		OrderBy: "timestamp",
		Desc:    true,
		Limit:   n,
	})
	if err != nil {
		return nil, err
	}
	out := make([]ActivityEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, ActivityEntry{
			ID:          d.ID,
			Type:        str(d.Data, "type"),
			Description: str(d.Data, "description"),
			Timestamp:   timestamp(d.Data, "timestamp"),
		})
	}
	return out, nil
}
