// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package airtable stores theme records in an Airtable table. It only
// formats requests and maps the loosely typed field maps Airtable returns
// into models.Theme; all lifecycle rules live in the workflow package.
package airtable

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

	"themedesk/internal/metrics"
	"themedesk/internal/models"
)

const (
	// DefaultTable is the table name used when none is configured.
	DefaultTable = "MonthlyThemes"

	defaultBaseURL = "https://api.airtable.com/v0"

	// pageSize is the number of records requested per list page.
	pageSize = 50
)

// Column names of the selection fields in the themes table.
const (
	fieldSegment     = "Segment"
	fieldMonth       = "Month"
	fieldSubject     = "Subject"
	fieldDescription = "Description"
	fieldStatus      = "Status"
)

// DraftColumns names the columns holding the draft text and its review
// flags. Tables differ here, so each name can be overridden.
type DraftColumns struct {
	EmailDraft     string
	DraftSubmitted string
	DraftApproved  string
}

// DefaultDraftColumns returns the column names used when none are set.
func DefaultDraftColumns() DraftColumns {
	return DraftColumns{
		EmailDraft:     "email_draft",
		DraftSubmitted: "draft_submitted",
		DraftApproved:  "draft_approved",
	}
}

// withDefaults fills blank names from DefaultDraftColumns.
func (d DraftColumns) withDefaults() DraftColumns {
	def := DefaultDraftColumns()
	if d.EmailDraft == "" {
		d.EmailDraft = def.EmailDraft
	}
	if d.DraftSubmitted == "" {
		d.DraftSubmitted = def.DraftSubmitted
	}
	if d.DraftApproved == "" {
		d.DraftApproved = def.DraftApproved
	}
	return d
}

// Config holds the credentials and location of the themes table.
type Config struct {
	Token   string // personal access token
	BaseID  string
	Table   string
	Columns DraftColumns
	BaseURL string // override for tests; defaults to the public API
}

// Client is a thin REST client for one Airtable table.
type Client struct {
	cfg    Config
	client *http.Client
}

// New creates a client. Empty Table, BaseURL and column names fall back
// to defaults.
func New(cfg Config) *Client {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Columns = cfg.Columns.withDefaults()
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// --- wire types ---

type record struct {
	ID          string         `json:"id,omitempty"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []record `json:"records"`
	Offset  string   `json:"offset"`
}

type batchRequest struct {
	Records []record `json:"records"`
}

// List returns every record matching the filter in the table's natural
// order, following pagination offsets until the last page.
func (c *Client) List(ctx context.Context, f models.ThemeFilter) ([]models.Theme, error) {
	start := time.Now()
	themes, err := c.list(ctx, f)
	metrics.ObserveCall("airtable", "list", start, err)
	return themes, err
}

func (c *Client) list(ctx context.Context, f models.ThemeFilter) ([]models.Theme, error) {
	var themes []models.Theme
	offset := ""

	for {
		params := url.Values{}
		params.Set("pageSize", fmt.Sprint(pageSize))
		if formula := Formula(f); formula != "" {
			params.Set("filterByFormula", formula)
		}
		if offset != "" {
			params.Set("offset", offset)
		}

		var page listResponse
		status, err := c.do(ctx, http.MethodGet, c.tableURL()+"?"+params.Encode(), nil, &page)
		if err != nil {
			return nil, fetchError("list themes", status, err)
		}

		for _, rec := range page.Records {
			themes = append(themes, toTheme(rec, c.cfg.Columns))
		}

		if page.Offset == "" {
			return themes, nil
		}
		offset = page.Offset
	}
}

// Get fetches a single record by ID.
func (c *Client) Get(ctx context.Context, id string) (*models.Theme, error) {
	start := time.Now()
	var rec record
	status, err := c.do(ctx, http.MethodGet, c.recordURL(id), nil, &rec)
	metrics.ObserveCall("airtable", "get", start, err)
	if err != nil {
		return nil, fetchError("get theme", status, err)
	}
	t := toTheme(rec, c.cfg.Columns)
	return &t, nil
}

// Create inserts one record, sent as a batch of one.
func (c *Client) Create(ctx context.Context, t models.Theme) (*models.Theme, error) {
	start := time.Now()
	body := batchRequest{Records: []record{{Fields: createFields(t, c.cfg.Columns)}}}

	var resp listResponse
	status, err := c.do(ctx, http.MethodPost, c.tableURL(), body, &resp)
	metrics.ObserveCall("airtable", "create", start, err)
	if err != nil {
		return nil, updateError("create theme", status, err)
	}
	if len(resp.Records) == 0 {
		return nil, models.NewError(models.KindUpdate, "create theme", fmt.Errorf("airtable returned no records"))
	}

	created := toTheme(resp.Records[0], c.cfg.Columns)
	slog.Info("airtable record created", "id", created.ID, "segment", created.Segment, "month", created.Month)
	return &created, nil
}

// Update patches only the fields set on p and returns the stored record.
func (c *Client) Update(ctx context.Context, id string, p models.ThemePatch) (*models.Theme, error) {
	if p.Empty() {
		return c.Get(ctx, id)
	}

	start := time.Now()
	var rec record
	status, err := c.do(ctx, http.MethodPatch, c.recordURL(id), record{Fields: patchFields(p, c.cfg.Columns)}, &rec)
	metrics.ObserveCall("airtable", "update", start, err)
	if err != nil {
		return nil, updateError("update theme", status, err)
	}

	t := toTheme(rec, c.cfg.Columns)
	return &t, nil
}

// do performs one request. It returns the HTTP status (0 if none was
// received) and an error for transport failures and non-2xx responses.
func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("airtable API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("unmarshal: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) tableURL() string {
	return c.cfg.BaseURL + "/" + url.PathEscape(c.cfg.BaseID) + "/" + url.PathEscape(c.cfg.Table)
}

func (c *Client) recordURL(id string) string {
	return c.tableURL() + "/" + url.PathEscape(id)
}

func fetchError(op string, status int, err error) error {
	if status == http.StatusNotFound {
		return models.NewError(models.KindNotFound, op, err)
	}
	return models.NewError(models.KindFetch, op, err)
}

func updateError(op string, status int, err error) error {
	if status == http.StatusNotFound {
		return models.NewError(models.KindNotFound, op, err)
	}
	return models.NewError(models.KindUpdate, op, err)
}
