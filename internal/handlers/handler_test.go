// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for the API handler
// tests: an in-memory record store and stub external services behind a
// real lifecycle controller.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"themedesk/internal/models"
	"themedesk/internal/prompt"
	"themedesk/internal/workflow"
)

const month = "May 2026"

type memStore struct {
	mu      sync.Mutex
	order   []string
	records map[string]models.Theme
	nextID  int
}

func newMemStore(themes ...models.Theme) *memStore {
	s := &memStore{records: map[string]models.Theme{}}
	for _, t := range themes {
		s.records[t.ID] = t
		s.order = append(s.order, t.ID)
	}
	return s
}

func (s *memStore) List(_ context.Context, f models.ThemeFilter) ([]models.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Theme
	for _, id := range s.order {
		t := s.records[id]
		if f.Segment != "" && t.Segment != f.Segment {
			continue
		}
		if f.Month != "" && t.Month != f.Month {
			continue
		}
		if len(f.Statuses) > 0 {
			match := false
			for _, st := range f.Statuses {
				match = match || st == t.Status
			}
			if !match {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, id string) (*models.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.records[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "get theme", fmt.Errorf("theme %s not found", id))
	}
	return &t, nil
}

func (s *memStore) Create(_ context.Context, t models.Theme) (*models.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = fmt.Sprintf("new%d", s.nextID)
	s.records[t.ID] = t
	s.order = append(s.order, t.ID)
	return &t, nil
}

func (s *memStore) Update(_ context.Context, id string, p models.ThemePatch) (*models.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.records[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "update theme", fmt.Errorf("theme %s not found", id))
	}
	p.Apply(&t)
	s.records[id] = t
	return &t, nil
}

func (s *memStore) theme(id string) models.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

type stubGenerator struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (g *stubGenerator) Generate(_ context.Context, p string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("Dear reader, draft %d.", len(g.prompts)), nil
}

func (g *stubGenerator) failWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *stubGenerator) last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type stubNotifier struct{ err error }

func (n stubNotifier) DraftReady(context.Context, models.Theme) error { return n.err }
func (n stubNotifier) DraftApproved(context.Context, models.Theme) error { return n.err }

type stubPublisher struct{}

func (stubPublisher) Publish(_ context.Context, d models.CampaignDraft) (*models.CampaignRef, error) {
	return &models.CampaignRef{ID: "cmp1", WebID: 42, Title: d.Month + " | " + string(d.Segment) + " | " + d.Subject}, nil
}

// memNotes is an in-memory Notes.
type memNotes struct {
	mu    sync.Mutex
	notes map[string]prompt.Instructions
}

func newMemNotes() *memNotes { return &memNotes{notes: map[string]prompt.Instructions{}} }

func (n *memNotes) Append(_ context.Context, id, note string) (prompt.Instructions, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes[id] = n.notes[id].With(note)
	return n.notes[id], nil
}

func (n *memNotes) Load(_ context.Context, id string) (prompt.Instructions, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notes[id], nil
}

func (n *memNotes) Clear(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.notes, id)
	return nil
}

type testEnv struct {
	store  *memStore
	gen    *stubGenerator
	notes  *memNotes
	router chi.Router
}

func seedThemes() []models.Theme {
	return []models.Theme{
		{ID: "r1", Segment: models.SegmentRetiree, Month: month, Subject: "RMD season", Description: "Required distributions.", Status: models.ThemeStatusPending},
		{ID: "r2", Segment: models.SegmentRetiree, Month: month, Subject: "Medicare open enrollment", Description: "Plan choices.", Status: models.ThemeStatusPending},
		{ID: "p1", Segment: models.SegmentPreRetiree, Month: month, Subject: "Catch-up contributions", Description: "Save more after 50.", Status: models.ThemeStatusPending},
	}
}

func newTestEnv(t *testing.T, notifyErr error, themes ...models.Theme) *testEnv {
	t.Helper()
	env := &testEnv{store: newMemStore(themes...), gen: &stubGenerator{}, notes: newMemNotes()}
	flow := workflow.New(workflow.Config{
		Store:     env.store,
		Prompts:   prompt.Default(),
		Generator: env.gen,
		Notifier:  stubNotifier{err: notifyErr},
		Publisher: stubPublisher{},
		Now:       func() time.Time { return time.Date(2026, time.May, 15, 12, 0, 0, 0, time.UTC) },
	})
	api := NewAPI(flow, env.notes)

	r := chi.NewRouter()
	r.Get("/api/overview", api.Overview)
	r.Post("/api/themes", api.CreateTheme)
	r.Get("/api/themes/{id}", api.GetTheme)
	r.Post("/api/themes/{id}/draft", api.GenerateDraft)
	r.Post("/api/themes/{id}/draft/regenerate", api.RegenerateDraft)
	r.Put("/api/themes/{id}/draft", api.SaveDraft)
	r.Post("/api/themes/{id}/submit", api.Submit)
	r.Post("/api/themes/{id}/approve", api.Approve)
	r.Post("/api/themes/{id}/unapprove", api.Unapprove)
	r.Post("/api/themes/{id}/push", api.Push)
	r.Get("/api/segments/{segment}/themes", api.PendingThemes)
	r.Post("/api/segments/{segment}/select", api.Select)
	r.Post("/api/segments/{segment}/skip", api.Skip)
	r.Post("/api/segments/{segment}/reset", api.Reset)
	env.router = r
	return env
}

// do sends a JSON request and decodes the JSON response into a map.
func (env *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	var out map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, rr.Body.String(), err)
		}
	}
	return rr.Code, out
}
