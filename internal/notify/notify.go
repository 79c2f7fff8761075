// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package notify emails the reviewer and the stakeholder about draft
// milestones over an authenticated SMTP relay. Delivery is fire-and-forget:
// a failure is reported to the caller once and never retried.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"themedesk/internal/markdown"
	"themedesk/internal/metrics"
	"themedesk/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// SendFunc matches smtp.SendMail. Tests replace it to capture messages.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Config holds the relay credentials and the two fixed recipients.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string // defaults to Username
	Reviewer    string
	Stakeholder string
}

// Notifier sends draft notifications.
type Notifier struct {
	cfg  Config
	send SendFunc
	tmpl *template.Template
	now  func() time.Time
}

// New creates a notifier that delivers through smtp.SendMail. With an
// empty Host it only logs what it would send.
func New(cfg Config) *Notifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Notifier{
		cfg:  cfg,
		send: smtp.SendMail,
		tmpl: template.Must(template.ParseFS(templateFS, "templates/*.html")),
		now:  time.Now,
	}
}

// WithSender replaces the delivery function.
func (n *Notifier) WithSender(f SendFunc) *Notifier {
	n.send = f
	return n
}

// message is the data passed to the HTML templates.
type message struct {
	Segment   models.Segment
	Month     string
	Subject   string
	DraftHTML template.HTML
}

// DraftReady tells the reviewer that t's draft is waiting for review.
func (n *Notifier) DraftReady(ctx context.Context, t models.Theme) error {
	subject := fmt.Sprintf("Draft ready for review: %s | %s", t.Segment, t.Subject)
	intro := fmt.Sprintf("A new draft for the %s newsletter (%s) is ready for your review.", t.Segment, t.Month)
	return n.notify(ctx, "draft_ready", n.cfg.Reviewer, subject, intro, t)
}

// DraftApproved tells the stakeholder that t's draft has been approved.
func (n *Notifier) DraftApproved(ctx context.Context, t models.Theme) error {
	subject := fmt.Sprintf("Draft approved: %s | %s", t.Segment, t.Subject)
	intro := fmt.Sprintf("The %s newsletter for %s has been approved.", t.Segment, t.Month)
	return n.notify(ctx, "draft_approved", n.cfg.Stakeholder, subject, intro, t)
}

func (n *Notifier) notify(ctx context.Context, kind, to, subject, intro string, t models.Theme) error {
	start := time.Now()
	err := n.deliver(ctx, kind, to, subject, intro, t)
	metrics.ObserveCall("smtp", kind, start, err)
	if err != nil {
		slog.Error("notification failed", "kind", kind, "to", to, "theme_id", t.ID, "error", err)
		return models.NewError(models.KindNotification, "send "+strings.ReplaceAll(kind, "_", " ")+" email", err)
	}
	return nil
}

func (n *Notifier) deliver(ctx context.Context, kind, to, subject, intro string, t models.Theme) error {
	if to == "" {
		return fmt.Errorf("no recipient configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if n.cfg.Host == "" {
		slog.Info("smtp not configured, would send", "kind", kind, "to", to, "subject", subject)
		return nil
	}

	msg, err := n.build(kind, to, subject, intro, t)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	if err := n.send(addr, auth, n.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}

	slog.Info("notification sent", "kind", kind, "to", to, "theme_id", t.ID)
	return nil
}

// build renders a multipart/alternative message with a plain text part
// and an HTML part.
func (n *Notifier) build(kind, to, subject, intro string, t models.Theme) ([]byte, error) {
	draftHTML, err := markdown.ToHTML(t.EmailDraft)
	if err != nil {
		return nil, fmt.Errorf("render draft: %w", err)
	}

	var html bytes.Buffer
	err = n.tmpl.ExecuteTemplate(&html, kind, message{
		Segment:   t.Segment,
		Month:     t.Month,
		Subject:   t.Subject,
		DraftHTML: template.HTML(draftHTML), // goldmark output with raw HTML escaped
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	text := fmt.Sprintf("%s\n\nSubject: %s\n\n%s\n", intro, t.Subject, t.EmailDraft)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := []string{
		"From: " + n.cfg.From,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"Date: " + n.now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="` + mw.Boundary() + `"`,
	}
	var out bytes.Buffer
	out.WriteString(strings.Join(header, "\r\n"))
	out.WriteString("\r\n\r\n")

	if err := writePart(mw, "text/plain; charset=utf-8", text); err != nil {
		return nil, err
	}
	if err := writePart(mw, "text/html; charset=utf-8", html.String()); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	out.Write(buf.Bytes())
	return out.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, body string) error {
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}
