package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"themedesk/internal/models"
)

// memStore is an in-memory Store with failure injection.
type memStore struct {
	mu      sync.Mutex
	order   []string
	records map[string]models.Theme
	nextID  int

	updates int
	// failUpdate, if set, is consulted before every update.
	failUpdate func(n int, id string, p models.ThemePatch) error
	failList   error
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
	if s.failList != nil {
		return nil, models.NewError(models.KindFetch, "list themes", s.failList)
	}
	var out []models.Theme
	for _, id := range s.order {
		t := s.records[id]
		if f.Segment != "" && t.Segment != f.Segment {
			continue
		}
		if f.Month != "" && t.Month != f.Month {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, t.Status) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func hasStatus(list []models.ThemeStatus, s models.ThemeStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
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
	s.updates++
	if s.failUpdate != nil {
		if err := s.failUpdate(s.updates, id, p); err != nil {
			return nil, models.NewError(models.KindUpdate, "update theme", err)
		}
	}
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

// chosenCount counts selected or skipped records for a segment/month.
func (s *memStore) chosenCount(seg models.Segment, month string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.records {
		if t.Segment == seg && t.Month == month && t.Status.IsChosen() {
			n++
		}
	}
	return n
}

type fakeGenerator struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
	// block, if set, is waited on before returning.
	block   chan struct{}
	started chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.block != nil {
		<-g.block
	}
	if g.err != nil {
		return "", models.NewError(models.KindGeneration, "generate draft", g.err)
	}
	return g.text, nil
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type fakeNotifier struct {
	ready    []models.Theme
	approved []models.Theme
	err      error
}

func (n *fakeNotifier) DraftReady(_ context.Context, t models.Theme) error {
	n.ready = append(n.ready, t)
	if n.err != nil {
		return models.NewError(models.KindNotification, "send draft ready email", n.err)
	}
	return nil
}

func (n *fakeNotifier) DraftApproved(_ context.Context, t models.Theme) error {
	n.approved = append(n.approved, t)
	if n.err != nil {
		return models.NewError(models.KindNotification, "send draft approved email", n.err)
	}
	return nil
}

type fakePublisher struct {
	drafts []models.CampaignDraft
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, d models.CampaignDraft) (*models.CampaignRef, error) {
	p.drafts = append(p.drafts, d)
	if p.err != nil {
		return nil, models.NewError(models.KindPublish, "create campaign", p.err)
	}
	return &models.CampaignRef{ID: "cmp1", Title: d.Subject}, nil
}

type fakeArchiver struct {
	archived []string
	err      error
}

func (a *fakeArchiver) Archive(_ context.Context, t models.Theme, ref models.CampaignRef) error {
	a.archived = append(a.archived, t.ID+"@"+ref.ID)
	return a.err
}

var errBoom = errors.New("boom")

// fixedNow is 15 May 2026 at noon UTC.
func fixedNow() time.Time {
	return time.Date(2026, time.May, 15, 12, 0, 0, 0, time.UTC)
}

const month = "May 2026"
