// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the JSON API handlers for themedesk. Each
// handler decodes the request, calls one lifecycle operation and encodes
// the result; no workflow rules live here.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"themedesk/internal/httputil"
	"themedesk/internal/models"
	"themedesk/internal/prompt"
	"themedesk/internal/workflow"
)

// Notes persists the instructions an operator accumulates while
// regenerating a draft. The Valkey note store implements it.
type Notes interface {
	Append(ctx context.Context, themeID, note string) (prompt.Instructions, error)
	Load(ctx context.Context, themeID string) (prompt.Instructions, error)
	Clear(ctx context.Context, themeID string) error
}

// API groups the operator-facing handlers and their dependencies.
type API struct {
	flow  *workflow.Controller
	notes Notes
}

// NewAPI creates the handler group. notes may be nil, in which case a
// regeneration only uses the instruction sent with the request.
func NewAPI(flow *workflow.Controller, notes Notes) *API {
	return &API{flow: flow, notes: notes}
}

// themeView is a record plus its derived lifecycle state.
type themeView struct {
	models.Theme
	State workflow.State `json:"state"`
}

func (a *API) view(t models.Theme) themeView {
	return themeView{Theme: t, State: a.flow.StateOf(t)}
}

func (a *API) views(ts []models.Theme) []themeView {
	out := make([]themeView, 0, len(ts))
	for _, t := range ts {
		out = append(out, a.view(t))
	}
	return out
}

// segmentParam parses the {segment} URL parameter, accepting either the
// display name or its slug.
func segmentParam(w http.ResponseWriter, r *http.Request) (models.Segment, bool) {
	seg, err := models.ParseSegment(chi.URLParam(r, "segment"))
	if err != nil {
		httputil.Fail(w, models.NewError(models.KindInvalid, "parse segment", err))
		return "", false
	}
	return seg, true
}

// clearNotes drops stored regeneration notes. Failures are only logged:
// stale notes are harmless until the next regeneration.
func (a *API) clearNotes(ctx context.Context, ids ...string) {
	if a.notes == nil {
		return
	}
	for _, id := range ids {
		if err := a.notes.Clear(ctx, id); err != nil {
			slog.Warn("clear regeneration notes failed", "theme_id", id, "error", err)
		}
	}
}
