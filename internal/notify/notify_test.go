package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"

	"themedesk/internal/models"
)

type captured struct {
	addr string
	from string
	to   []string
	msg  []byte
	auth smtp.Auth
}

func newTestNotifier(cfg Config, sendErr error) (*Notifier, *[]captured) {
	var sent []captured
	n := New(cfg).WithSender(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, captured{addr: addr, from: from, to: to, msg: msg, auth: a})
		return sendErr
	})
	return n, &sent
}

var testCfg = Config{
	Host:        "smtp.example.com",
	Port:        587,
	Username:    "desk@example.com",
	Password:    "secret",
	Reviewer:    "reviewer@example.com",
	Stakeholder: "owner@example.com",
}

var theme = models.Theme{
	ID:         "rec1",
	Segment:    models.SegmentRetiree,
	Month:      "May 2026",
	Subject:    "Social Security timing",
	EmailDraft: "Hello,\n\nWaiting can raise your benefit.\n\nYour Planning Team",
}

// parts decodes a multipart/alternative message into content type → body.
func parts(t *testing.T, raw []byte) (*mail.Message, map[string]string) {
	t.Helper()
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/alternative" {
		t.Fatalf("content type: %q %v", mediaType, err)
	}

	out := map[string]string{}
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		// multipart.Reader decodes quoted-printable transparently.
		body, err := io.ReadAll(p)
		if err != nil {
			t.Fatalf("read part: %v", err)
		}
		ct, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
		out[ct] = string(body)
	}
	return msg, out
}

func TestDraftReady(t *testing.T) {
	n, sent := newTestNotifier(testCfg, nil)

	if err := n.DraftReady(context.Background(), theme); err != nil {
		t.Fatalf("DraftReady: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent %d messages", len(*sent))
	}
	c := (*sent)[0]
	if c.addr != "smtp.example.com:587" || c.from != "desk@example.com" {
		t.Errorf("envelope: %+v", c)
	}
	if len(c.to) != 1 || c.to[0] != "reviewer@example.com" {
		t.Errorf("recipient: %v", c.to)
	}
	if c.auth == nil {
		t.Error("expected PLAIN auth")
	}

	msg, body := parts(t, c.msg)
	dec := new(mime.WordDecoder)
	subject, _ := dec.DecodeHeader(msg.Header.Get("Subject"))
	if subject != "Draft ready for review: Retiree | Social Security timing" {
		t.Errorf("subject: %q", subject)
	}
	if !strings.Contains(body["text/plain"], "Waiting can raise your benefit.") {
		t.Errorf("text part: %q", body["text/plain"])
	}
	if !strings.Contains(body["text/html"], "<p>Waiting can raise your benefit.</p>") {
		t.Errorf("html part: %q", body["text/html"])
	}
}

func TestDraftApprovedGoesToStakeholder(t *testing.T) {
	n, sent := newTestNotifier(testCfg, nil)

	if err := n.DraftApproved(context.Background(), theme); err != nil {
		t.Fatalf("DraftApproved: %v", err)
	}
	if got := (*sent)[0].to[0]; got != "owner@example.com" {
		t.Errorf("recipient: %q", got)
	}
	_, body := parts(t, (*sent)[0].msg)
	if !strings.Contains(body["text/html"], "has been approved") {
		t.Errorf("html part: %q", body["text/html"])
	}
}

func TestSendFailureIsNotificationError(t *testing.T) {
	n, _ := newTestNotifier(testCfg, errors.New("535 authentication failed"))

	err := n.DraftReady(context.Background(), theme)
	if !errors.Is(err, models.ErrNotification) {
		t.Fatalf("expected ErrNotification, got %v", err)
	}
	if !strings.Contains(err.Error(), "535") {
		t.Errorf("cause should be kept: %v", err)
	}
}

func TestMissingRecipient(t *testing.T) {
	cfg := testCfg
	cfg.Stakeholder = ""
	n, sent := newTestNotifier(cfg, nil)

	if err := n.DraftApproved(context.Background(), theme); !errors.Is(err, models.ErrNotification) {
		t.Errorf("expected ErrNotification, got %v", err)
	}
	if len(*sent) != 0 {
		t.Error("nothing should be sent")
	}
}

func TestNoHostLogsOnly(t *testing.T) {
	cfg := testCfg
	cfg.Host = ""
	n, sent := newTestNotifier(cfg, nil)

	if err := n.DraftReady(context.Background(), theme); err != nil {
		t.Fatalf("DraftReady: %v", err)
	}
	if len(*sent) != 0 {
		t.Error("no relay configured, nothing should be sent")
	}
}

func TestHTMLEscapesMarkup(t *testing.T) {
	n, sent := newTestNotifier(testCfg, nil)

	th := theme
	th.Subject = "Fees <b>explained</b>"
	th.EmailDraft = "Hi <img src=x onerror=alert(1)>"
	if err := n.DraftReady(context.Background(), th); err != nil {
		t.Fatalf("DraftReady: %v", err)
	}
	_, body := parts(t, (*sent)[0].msg)
	if strings.Contains(body["text/html"], "<b>explained") || strings.Contains(body["text/html"], "<img") {
		t.Errorf("markup not escaped: %s", body["text/html"])
	}
}

func TestQuotedPrintableLongLines(t *testing.T) {
	n, sent := newTestNotifier(testCfg, nil)
	th := theme
	th.EmailDraft = strings.Repeat("word ", 60)
	if err := n.DraftReady(context.Background(), th); err != nil {
		t.Fatalf("DraftReady: %v", err)
	}
	for _, line := range strings.Split(string((*sent)[0].msg), "\r\n") {
		if len(line) > 998 {
			t.Fatalf("line exceeds SMTP limit: %d", len(line))
		}
	}
}
