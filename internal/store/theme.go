// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store keeps theme records in PostgreSQL. It is the alternative
// to the Airtable backend and returns the same error kinds.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"themedesk/internal/metrics"
	"themedesk/internal/models"
)

// themeColumns is the select list matching scanTheme.
const themeColumns = `id, segment, month, subject, description, status,
	email_draft, draft_submitted, draft_approved, created_at`

// ThemeStore handles theme persistence in the themes table.
type ThemeStore struct {
	db *sql.DB
}

// NewThemeStore creates a new ThemeStore with the given database connection.
func NewThemeStore(db *sql.DB) *ThemeStore {
	return &ThemeStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTheme(row scanner) (*models.Theme, error) {
	var t models.Theme
	var seg, status string
	if err := row.Scan(
		&t.ID, &seg, &t.Month, &t.Subject, &t.Description, &status,
		&t.EmailDraft, &t.DraftSubmitted, &t.DraftApproved, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.Segment = models.Segment(seg)
	t.Status = models.ThemeStatus(status)
	return &t, nil
}

// List returns the themes matching f, oldest first.
func (s *ThemeStore) List(ctx context.Context, f models.ThemeFilter) ([]models.Theme, error) {
	start := time.Now()
	themes, err := s.list(ctx, f)
	metrics.ObserveCall("postgres", "list", start, err)
	if err != nil {
		return nil, models.NewError(models.KindFetch, "list themes", err)
	}
	return themes, nil
}

func (s *ThemeStore) list(ctx context.Context, f models.ThemeFilter) ([]models.Theme, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Segment != "" {
		where = append(where, "segment = "+arg(string(f.Segment)))
	}
	if f.Month != "" {
		where = append(where, "month = "+arg(f.Month))
	}
	if len(f.Statuses) > 0 {
		ph := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			ph[i] = arg(string(st))
		}
		where = append(where, "status IN ("+strings.Join(ph, ", ")+")")
	}

	query := "SELECT " + themeColumns + " FROM themes"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query themes: %w", err)
	}
	defer rows.Close()

	var themes []models.Theme
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		themes = append(themes, *t)
	}
	return themes, rows.Err()
}

// Get retrieves a theme by its UUID.
func (s *ThemeStore) Get(ctx context.Context, id string) (*models.Theme, error) {
	const op = "get theme"
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.NewError(models.KindNotFound, op, fmt.Errorf("theme %q not found", id))
	}

	start := time.Now()
	t, err := scanTheme(s.db.QueryRowContext(ctx,
		"SELECT "+themeColumns+" FROM themes WHERE id = $1", id))
	metrics.ObserveCall("postgres", "get", start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewError(models.KindNotFound, op, fmt.Errorf("theme %s not found", id))
	}
	if err != nil {
		return nil, models.NewError(models.KindFetch, op, err)
	}
	return t, nil
}

// Create inserts a theme with a new UUID and returns the stored row.
func (s *ThemeStore) Create(ctx context.Context, t models.Theme) (*models.Theme, error) {
	if t.Status == "" {
		t.Status = models.ThemeStatusPending
	}

	start := time.Now()
	created, err := scanTheme(s.db.QueryRowContext(ctx, `
		INSERT INTO themes (id, segment, month, subject, description, status, email_draft)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+themeColumns,
		uuid.New().String(), string(t.Segment), t.Month, t.Subject, t.Description, string(t.Status), t.EmailDraft,
	))
	metrics.ObserveCall("postgres", "create", start, err)
	if err != nil {
		return nil, models.NewError(models.KindUpdate, "create theme", err)
	}
	return created, nil
}

// Update writes only the fields set on p and returns the stored row.
func (s *ThemeStore) Update(ctx context.Context, id string, p models.ThemePatch) (*models.Theme, error) {
	const op = "update theme"
	if p.Empty() {
		return s.Get(ctx, id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.NewError(models.KindNotFound, op, fmt.Errorf("theme %q not found", id))
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.EmailDraft != nil {
		set("email_draft", *p.EmailDraft)
	}
	if p.DraftSubmitted != nil {
		set("draft_submitted", *p.DraftSubmitted)
	}
	if p.DraftApproved != nil {
		set("draft_approved", *p.DraftApproved)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE themes SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), themeColumns)

	start := time.Now()
	t, err := scanTheme(s.db.QueryRowContext(ctx, query, args...))
	metrics.ObserveCall("postgres", "update", start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewError(models.KindNotFound, op, fmt.Errorf("theme %s not found", id))
	}
	if err != nil {
		return nil, models.NewError(models.KindUpdate, op, err)
	}
	return t, nil
}
