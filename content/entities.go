package content

import (
	"context"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/eringen/bandsite/store"
)

// Song is a track shown on the music page.
type Song struct {
	ID             string
	Title          string
	Artist         string
	Description    string
	Genre          string
	SpotifyLink    string
	AppleMusicLink string
	YouTubeLink    string
	CoverURL       string
	AudioURL       string
	UploadDate     time.Time
}

// MediaItem is one file of a gallery album.
type MediaItem struct {
	URL  string
	Type string // "image", "video" or "audio"
	Name string
}

// GalleryItem is either a single image or an album of media files.
type GalleryItem struct {
	ID          string
	Title       string
	Description string
	ImageURL    string
	Media       []MediaItem
	CreatedAt   time.Time
}

// Cover returns the first image of the item, if any.
func (g GalleryItem) Cover() string {
	if g.ImageURL != "" {
		return g.ImageURL
	}
	for _, m := range g.Media {
		if m.Type == "image" {
			return m.URL
		}
	}
	return ""
}

// Product is a merchandise item.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       float64
	Category    string
	Colors      []string
	ImageURL    string
	Stock       int
	CreatedAt   time.Time
}

// Event is a scheduled performance.
type Event struct {
	ID          string
	Title       string
	Date        time.Time
	Location    string
	Description string
	TicketPrice float64
	TicketURL   string
	CreatedAt   time.Time
}

// Member is a band member profile.
type Member struct {
	ID         string
	Name       string
	Role       string
	Instrument string
	Bio        string
	PhotoURL   string
	JoinDate   time.Time
	CreatedAt  time.Time
}

// Audition statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ValidStatus reports whether s is a known audition status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// AuditionRequest is submitted from the public auditions page.
type AuditionRequest struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	Instrument    string
	Experience    string
	Availability  string
	Message       string
	Status        string
	VideoURL      string
	AudioURL      string
	SheetMusicURL string
	CreatedAt     time.Time
}

var SongKind = Kind[Song]{
	Collection: CollectionSongs,
	Activity:   ActivityMusic,
	Noun:       "song",
	Slots: []FileSlot{
		{Field: "audioFile", URLField: "audioUrl", Required: "Please select an audio file"},
		{Field: "coverImage", URLField: "coverUrl", Image: true},
	},
	Stamps:  []string{"uploadDate", "createdAt"},
	OrderBy: "uploadDate",
	Desc:    true,
	Title:   func(s Song) string { return s.Title },
	Encode: func(s Song) store.Record {
		r := store.Record{
			"title":          s.Title,
			"artist":         s.Artist,
			"description":    s.Description,
			"genre":          s.Genre,
			"spotifyLink":    s.SpotifyLink,
			"appleMusicLink": s.AppleMusicLink,
			"youtubeLink":    s.YouTubeLink,
		}
		putStr(r, "coverUrl", s.CoverURL)
		putStr(r, "audioUrl", s.AudioURL)
		return r
	},
	Decode: func(d store.Document) Song {
		r := d.Data
		return Song{
			ID:             d.ID,
			Title:          str(r, "title"),
			Artist:         str(r, "artist"),
			Description:    str(r, "description"),
			Genre:          str(r, "genre"),
			SpotifyLink:    str(r, "spotifyLink"),
			AppleMusicLink: str(r, "appleMusicLink"),
			YouTubeLink:    str(r, "youtubeLink"),
			CoverURL:       str(r, "coverUrl"),
			AudioURL:       str(r, "audioUrl"),
			UploadDate:     timestamp(r, "uploadDate"),
		}
	},
	Validate: func(s Song, _ Files, _ bool) error {
		if strings.TrimSpace(s.Title) == "" {
			return Invalid("Please enter a song title")
		}
		return nil
	},
}

var GalleryKind = Kind[GalleryItem]{
	Collection: CollectionGallery,
	Activity:   ActivityGallery,
	Noun:       "gallery item",
	Slots: []FileSlot{
		{Field: "imageFile", URLField: "imageUrl", Image: true},
		{Field: "media", URLField: "media", Multi: true, Image: true},
	},
	Stamps:  []string{"createdAt"},
	OrderBy: "createdAt",
	Desc:    true,
	Title:   func(g GalleryItem) string { return g.Title },
	Encode: func(g GalleryItem) store.Record {
		r := store.Record{
			"title":       g.Title,
			"description": g.Description,
		}
		putStr(r, "imageUrl", g.ImageURL)
		if len(g.Media) > 0 {
			media := make([]map[string]any, 0, len(g.Media))
			for _, m := range g.Media {
				media = append(media, map[string]any{"url": m.URL, "type": m.Type, "name": m.Name})
			}
			r["media"] = media
		}
		return r
	},
	Decode: func(d store.Document) GalleryItem {
		r := d.Data
		g := GalleryItem{
			ID:          d.ID,
			Title:       str(r, "title"),
			Description: str(r, "description"),
			ImageURL:    str(r, "imageUrl"),
			CreatedAt:   timestamp(r, "createdAt"),
		}
		for _, m := range records(r, "media") {
			g.Media = append(g.Media, MediaItem{URL: str(m, "url"), Type: str(m, "type"), Name: str(m, "name")})
		}
		return g
	},
	Validate: func(g GalleryItem, files Files, create bool) error {
		if create && g.ImageURL == "" && len(g.Media) == 0 && !files.Has("imageFile") && !files.Has("media") {
			return Invalid("Please select at least one media file")
		}
		return nil
	},
}

var ProductKind = Kind[Product]{
	Collection: CollectionProducts,
	Activity:   ActivityStore,
	Noun:       "product",
	Slots: []FileSlot{
		{Field: "imageFile", URLField: "imageUrl", Required: "Please select a product image", Image: true},
	},
	Stamps:  []string{"createdAt"},
	OrderBy: "createdAt",
	Desc:    true,
	Title:   func(p Product) string { return p.Name },
	Encode: func(p Product) store.Record {
		colors := p.Colors
		if colors == nil {
			colors = []string{}
		}
		r := store.Record{
			"name":        p.Name,
			"description": p.Description,
			"price":       p.Price,
			"category":    p.Category,
			"colors":      colors,
			"stock":       p.Stock,
		}
		putStr(r, "imageUrl", p.ImageURL)
		return r
	},
	Decode: func(d store.Document) Product {
		r := d.Data
		return Product{
			ID:          d.ID,
			Name:        str(r, "name"),
			Description: str(r, "description"),
			Price:       num(r, "price"),
			Category:    str(r, "category"),
			Colors:      strs(r, "colors"),
			ImageURL:    str(r, "imageUrl"),
			Stock:       integer(r, "stock"),
			CreatedAt:   timestamp(r, "createdAt"),
		}
	},
	Validate: func(p Product, _ Files, _ bool) error {
		switch {
		case strings.TrimSpace(p.Name) == "":
			return Invalid("Please enter a product name")
		case p.Price < 0:
			return Invalid("Price cannot be negative")
		case p.Stock < 0:
			return Invalid("Stock cannot be negative")
		}
		return nil
	},
}

var EventKind = Kind[Event]{
	Collection: CollectionEvents,
	Activity:   ActivityEvent,
	Noun:       "event",
	Stamps:     []string{"createdAt"},
	OrderBy:    "date",
	Title:      func(e Event) string { return e.Title },
	Encode: func(e Event) store.Record {
		r := store.Record{
			"title":       e.Title,
			"location":    e.Location,
			"description": e.Description,
			"ticketPrice": e.TicketPrice,
			"ticketUrl":   e.TicketURL,
		}
		putTime(r, "date", e.Date)
		return r
	},
	Decode: func(d store.Document) Event {
		r := d.Data
		return Event{
			ID:          d.ID,
			Title:       str(r, "title"),
			Date:        timestamp(r, "date"),
			Location:    str(r, "location"),
			Description: str(r, "description"),
			TicketPrice: num(r, "ticketPrice"),
			TicketURL:   str(r, "ticketUrl"),
			CreatedAt:   timestamp(r, "createdAt"),
		}
	},
	Validate: func(e Event, _ Files, _ bool) error {
		switch {
		case strings.TrimSpace(e.Title) == "":
			return Invalid("Please enter an event title")
		case e.Date.IsZero():
			return Invalid("Please enter an event date")
		case e.TicketPrice < 0:
			return Invalid("Ticket price cannot be negative")
		}
		return nil
	},
}

var MemberKind = Kind[Member]{
	Collection: CollectionMembers,
	Activity:   ActivityMember,
	Noun:       "member",
	Slots: []FileSlot{
		{Field: "memberPhoto", URLField: "photoURL", Required: "Please select a profile photo", Image: true},
	},
	Stamps:  []string{"createdAt"},
	OrderBy: "createdAt",
	Title:   func(m Member) string { return m.Name },
	Encode: func(m Member) store.Record {
		r := store.Record{
			"name":       m.Name,
			"role":       m.Role,
			"instrument": m.Instrument,
			"bio":        m.Bio,
		}
		putStr(r, "photoURL", m.PhotoURL)
		putTime(r, "joinDate", m.JoinDate)
		return r
	},
	Decode: func(d store.Document) Member {
		r := d.Data
		return Member{
			ID:         d.ID,
			Name:       str(r, "name"),
			Role:       str(r, "role"),
			Instrument: str(r, "instrument"),
			Bio:        str(r, "bio"),
			PhotoURL:   str(r, "photoURL"),
			JoinDate:   timestamp(r, "joinDate"),
			CreatedAt:  timestamp(r, "createdAt"),
		}
	},
	Validate: func(m Member, _ Files, _ bool) error {
		if strings.TrimSpace(m.Name) == "" {
			return Invalid("Please enter the member's name")
		}
		return nil
	},
}

var AuditionKind = Kind[AuditionRequest]{
	Collection: CollectionAuditions,
	Activity:   ActivityAudition,
	Noun:       "audition request",
	Slots: []FileSlot{
		{Field: "video", URLField: "videoUrl"},
		{Field: "audio", URLField: "audioUrl"},
		{Field: "sheetMusic", URLField: "sheetMusicUrl"},
	},
	Stamps:  []string{"createdAt"},
	OrderBy: "createdAt",
	Desc:    true,
	Title:   func(a AuditionRequest) string { return a.Name },
	Encode: func(a AuditionRequest) store.Record {
		r := store.Record{
			"name":         a.Name,
			"email":        a.Email,
			"phone":        a.Phone,
			"instrument":   a.Instrument,
			"experience":   a.Experience,
			"availability": a.Availability,
			"message":      a.Message,
			"status":       a.Status,
		}
		putStr(r, "videoUrl", a.VideoURL)
		putStr(r, "audioUrl", a.AudioURL)
		putStr(r, "sheetMusicUrl", a.SheetMusicURL)
		return r
	},
	Decode: func(d store.Document) AuditionRequest {
		r := d.Data
		return AuditionRequest{
			ID:            d.ID,
			Name:          str(r, "name"),
			Email:         str(r, "email"),
			Phone:         str(r, "phone"),
			Instrument:    str(r, "instrument"),
			Experience:    str(r, "experience"),
			Availability:  str(r, "availability"),
			Message:       str(r, "message"),
			Status:        str(r, "status"),
			VideoURL:      str(r, "videoUrl"),
			AudioURL:      str(r, "audioUrl"),
			SheetMusicURL: str(r, "sheetMusicUrl"),
			CreatedAt:     timestamp(r, "createdAt"),
		}
	},
	Validate: func(a AuditionRequest, _ Files, _ bool) error {
		switch {
		case strings.TrimSpace(a.Name) == "":
			return Invalid("Please enter your name")
		case strings.TrimSpace(a.Email) == "":
			return Invalid("Please enter your email")
		case strings.TrimSpace(a.Instrument) == "":
			return Invalid("Please select an instrument")
		case !ValidStatus(a.Status):
			return Invalid(fmt.Sprintf("Unknown status %q", a.Status))
		}
		if _, err := mail.ParseAddress(a.Email); err != nil {
			return Invalid("Please enter a valid email address")
		}
		return nil
	},
}

// Songs is the song repository.
type Songs struct{ *Repository[Song] }

// NewSongs returns the song repository.
func NewSongs(c *Client) *Songs { return &Songs{NewRepository(c, SongKind)} }

// Latest returns the n most recently uploaded songs.
func (s *Songs) Latest(ctx context.Context, n int) ([]Song, error) {
	return s.Query(ctx, &store.Query{OrderBy: "uploadDate", Desc: true, Limit: n})
}

// Events is the event repository.
type Events struct{ *Repository[Event] }

// NewEvents returns the event repository.
func NewEvents(c *Client) *Events { return &Events{NewRepository(c, EventKind)} }

// Upcoming returns up to limit events dated at or after now, soonest first.
// limit <= 0 returns all of them.
func (e *Events) Upcoming(ctx context.Context, now time.Time, limit int) ([]Event, error) {
	return e.Query(ctx, &store.Query{
		Where:   &store.Filter{Field: "date", Op: store.Ge, Value: now},
		OrderBy: "date",
		Limit:   limit,
	})
}

// Auditions is the audition request repository.
type Auditions struct{ *Repository[AuditionRequest] }

// NewAuditions returns the audition request repository.
func NewAuditions(c *Client) *Auditions {
	return &Auditions{NewRepository(c, AuditionKind)}
}

// Submit stores a request from the public form. The status is always pending.
func (a *Auditions) Submit(ctx context.Context, req AuditionRequest, files Files) (string, error) {
	req.ID = ""
	req.Status = StatusPending
	req.VideoURL, req.AudioURL, req.SheetMusicURL = "", "", ""
	return a.Add(ctx, req, files)
}

// UpdateStatus changes the status of a request and nothing else.
func (a *Auditions) UpdateStatus(ctx context.Context, id, status string) error {
	if !ValidStatus(status) {
		return Invalid(fmt.Sprintf("Unknown status %q", status))
	}
	req, err := a.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.c.Store.Update(ctx, CollectionAuditions, id, store.Record{"status": status}); err != nil {
		return err
	}
	a.c.Activity.Record(ActivityAudition, fmt.Sprintf("Audition request from %q %s", req.Name, status))
	return nil
}

// Pending returns requests still waiting for a decision, newest first.
// The result is sorted in memory so no composite index is needed.
func (a *Auditions) Pending(ctx context.Context) ([]AuditionRequest, error) {
	reqs, err := a.Query(ctx, &store.Query{
		Where: &store.Filter{Field: "status", Op: store.Eq, Value: StatusPending},
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(reqs, func(x, y AuditionRequest) int {
		return y.CreatedAt.Compare(x.CreatedAt)
	})
	return reqs, nil
}

// Repositories groups one repository per entity kind.
type Repositories struct {
	Songs     *Songs
	Gallery   *Repository[GalleryItem]
	Products  *Repository[Product]
	Events    *Events
	Members   *Repository[Member]
	Auditions *Auditions
	Settings  *SettingsResolver
}

// NewRepositories builds every repository on c.
func NewRepositories(c *Client) *Repositories {
	return &Repositories{
		Songs:     NewSongs(c),
		Gallery:   NewRepository(c, GalleryKind),
		Products:  NewRepository(c, ProductKind),
		Events:    NewEvents(c),
		Members:   NewRepository(c, MemberKind),
		Auditions: NewAuditions(c),
		Settings:  NewSettingsResolver(c),
	}
}
