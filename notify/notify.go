// Package notify sends outbound email, currently the new-audition alert
// delivered to the band's contact address.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/eringen/bandsite/content"
)

// Message is one outgoing email.
type Message struct {
	To      []string
	Subject string
	HTML    string
	ReplyTo string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Noop logs messages instead of sending them. Used when no API key is set.
type Noop struct{}

func (Noop) Send(ctx context.Context, msg Message) (string, error) {
	slog.Info("email_skipped", "to", msg.To, "subject", msg.Subject)
	return "", nil
}

// Resend sends email through the Resend API.
type Resend struct {
	client *resend.Client
	from   string
}

// NewResend returns a sender using apiKey and the default from address.
func NewResend(apiKey, from string) *Resend {
	return &Resend{client: resend.NewClient(apiKey), from: from}
}

func (s *Resend) Send(ctx context.Context, msg Message) (string, error) {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if msg.ReplyTo != "" {
		params.ReplyTo = msg.ReplyTo
	}
	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		slog.Error("resend_send_failed", "error", err, "to", msg.To, "subject", msg.Subject)
		return "", fmt.Errorf("resend send failed: %w", err)
	}
	slog.Info("resend_sent", "message_id", sent.Id, "to", msg.To, "subject", msg.Subject)
	return sent.Id, nil
}

// AuditionAlert builds the email sent to the band when a request arrives.
func AuditionAlert(to string, req content.AuditionRequest) Message {
	var b strings.Builder
	b.WriteString("<h2>New audition request</h2><ul>")
	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "<li><strong>%s:</strong> %s</li>", label, html.EscapeString(value))
	}
	row("Name", req.Name)
	row("Email", req.Email)
	row("Phone", req.Phone)
	row("Instrument", req.Instrument)
	row("Experience", req.Experience)
	row("Availability", req.Availability)
	row("Message", req.Message)
	b.WriteString("</ul>")
	return Message{
		To:      []string{to},
		Subject: "New audition request from " + req.Name,
		HTML:    b.String(),
		ReplyTo: req.Email,
	}
}

// SendAsync sends msg in the background with its own timeout. Failures are
// logged only.
func SendAsync(s Sender, msg Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := s.Send(ctx, msg); err != nil {
			slog.Warn("notify_failed", "subject", msg.Subject, "error", err)
		}
	}()
}
