// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package mailchimp stages approved drafts as regular campaigns on the
// Mailchimp Marketing API. It creates the campaign and sets its content;
// sending is always left to a human in the Mailchimp UI.
package mailchimp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"themedesk/internal/markdown"
	"themedesk/internal/metrics"
	"themedesk/internal/models"
)

// Config holds the account and audience settings.
type Config struct {
	APIKey       string
	ServerPrefix string // e.g. "us21"; derived from the API key suffix if empty
	AudienceID   string
	// SegmentTags maps each audience segment to its saved segment (tag) ID.
	SegmentTags map[models.Segment]int
	FromName    string
	ReplyTo     string
	BaseURL     string // override for tests
}

// Publisher creates Mailchimp campaigns.
type Publisher struct {
	cfg    Config
	client *http.Client
}

// New creates a publisher. The base URL is built from the server prefix
// unless cfg.BaseURL is set.
func New(cfg Config) *Publisher {
	if cfg.ServerPrefix == "" {
		if i := strings.LastIndex(cfg.APIKey, "-"); i >= 0 {
			cfg.ServerPrefix = cfg.APIKey[i+1:]
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("https://%s.api.mailchimp.com/3.0", cfg.ServerPrefix)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Publisher{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether the publisher has enough settings to call
// the API.
func (p *Publisher) Configured() bool {
	return p.cfg.APIKey != "" && p.cfg.AudienceID != "" && p.cfg.ServerPrefix != ""
}

// --- API types ---

type segmentOpts struct {
	SavedSegmentID int `json:"saved_segment_id"`
}

type recipients struct {
	ListID      string       `json:"list_id"`
	SegmentOpts *segmentOpts `json:"segment_opts,omitempty"`
}

type settings struct {
	SubjectLine string `json:"subject_line"`
	Title       string `json:"title"`
	FromName    string `json:"from_name"`
	ReplyTo     string `json:"reply_to"`
}

type campaignRequest struct {
	Type       string     `json:"type"`
	Recipients recipients `json:"recipients"`
	Settings   settings   `json:"settings"`
}

type campaignResponse struct {
	ID    string `json:"id"`
	WebID int64  `json:"web_id"`
}

type contentRequest struct {
	PlainText string `json:"plain_text"`
	HTML      string `json:"html"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// Publish creates a campaign for d and sets its content. If the content
// step fails the created campaign stays in Mailchimp as an empty draft and
// the error names its ID.
func (p *Publisher) Publish(ctx context.Context, d models.CampaignDraft) (*models.CampaignRef, error) {
	if !p.Configured() {
		return nil, models.NewError(models.KindPublish, "publish campaign", fmt.Errorf("mailchimp is not configured"))
	}

	ref, err := p.CreateCampaign(ctx, d)
	if err != nil {
		return nil, err
	}

	if err := p.SetContent(ctx, ref.ID, d.Body); err != nil {
		slog.Warn("campaign left without content", "campaign_id", ref.ID, "error", err)
		return nil, err
	}

	slog.Info("campaign staged", "campaign_id", ref.ID, "segment", d.Segment, "title", ref.Title)
	return ref, nil
}

// CreateCampaign creates a regular campaign addressed to the segment's tag.
func (p *Publisher) CreateCampaign(ctx context.Context, d models.CampaignDraft) (*models.CampaignRef, error) {
	start := time.Now()
	ref, err := p.createCampaign(ctx, d)
	metrics.ObserveCall("mailchimp", "create_campaign", start, err)
	if err != nil {
		return nil, models.NewError(models.KindPublish, "create campaign", err)
	}
	return ref, nil
}

func (p *Publisher) createCampaign(ctx context.Context, d models.CampaignDraft) (*models.CampaignRef, error) {
	tag, ok := p.cfg.SegmentTags[d.Segment]
	if !ok {
		return nil, fmt.Errorf("no audience tag configured for segment %q", d.Segment)
	}

	title := Title(d)
	req := campaignRequest{
		Type: "regular",
		Recipients: recipients{
			ListID:      p.cfg.AudienceID,
			SegmentOpts: &segmentOpts{SavedSegmentID: tag},
		},
		Settings: settings{
			SubjectLine: d.Subject,
			Title:       title,
			FromName:    p.cfg.FromName,
			ReplyTo:     p.cfg.ReplyTo,
		},
	}

	var resp campaignResponse
	if err := p.do(ctx, http.MethodPost, "/campaigns", req, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("response missing campaign id")
	}
	return &models.CampaignRef{ID: resp.ID, WebID: resp.WebID, Title: title}, nil
}

// SetContent uploads the plain text body and its HTML rendering.
func (p *Publisher) SetContent(ctx context.Context, campaignID, body string) error {
	start := time.Now()
	err := p.setContent(ctx, campaignID, body)
	metrics.ObserveCall("mailchimp", "set_content", start, err)
	if err != nil {
		return models.NewError(models.KindPublish, "set campaign content", fmt.Errorf("campaign %s created without content: %w", campaignID, err))
	}
	return nil
}

func (p *Publisher) setContent(ctx context.Context, campaignID, body string) error {
	html, err := markdown.ToHTML(body)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	req := contentRequest{PlainText: body, HTML: html}
	return p.do(ctx, http.MethodPut, "/campaigns/"+url.PathEscape(campaignID)+"/content", req, nil)
}

// Title is the internal campaign name shown in the Mailchimp dashboard.
func Title(d models.CampaignDraft) string {
	if d.Month == "" {
		return fmt.Sprintf("%s | %s", d.Segment, d.Subject)
	}
	return fmt.Sprintf("%s | %s | %s", d.Month, d.Segment, d.Subject)
}

func (p *Publisher) do(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.SetBasicAuth("anystring", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Detail != "" {
			return fmt.Errorf("mailchimp API error (status %d): %s: %s", resp.StatusCode, apiErr.Title, apiErr.Detail)
		}
		return fmt.Errorf("mailchimp API error (status %d): %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
	}
	return nil
}
