// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package workflow is the theme lifecycle controller. It decides which
// operator actions are legal for a segment's monthly theme and drives the
// record store, prompt builder, draft generator, notifier and campaign
// publisher to carry them out. Every operation is synchronous and reports
// its failure to the caller; nothing is retried.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"themedesk/internal/metrics"
	"themedesk/internal/models"
	"themedesk/internal/prompt"
)

// Store is the record store holding theme records.
type Store interface {
	List(ctx context.Context, f models.ThemeFilter) ([]models.Theme, error)
	Get(ctx context.Context, id string) (*models.Theme, error)
	Create(ctx context.Context, t models.Theme) (*models.Theme, error)
	Update(ctx context.Context, id string, p models.ThemePatch) (*models.Theme, error)
}

// Prompter builds the language model instruction for a theme.
type Prompter interface {
	Build(subject, description string, seg models.Segment, extra string) (string, error)
}

// Generator turns a prompt into draft text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Notifier emails the reviewer and the stakeholder.
type Notifier interface {
	DraftReady(ctx context.Context, t models.Theme) error
	DraftApproved(ctx context.Context, t models.Theme) error
}

// Publisher stages approved copy on the campaign platform.
type Publisher interface {
	Publish(ctx context.Context, d models.CampaignDraft) (*models.CampaignRef, error)
}

// Archiver keeps a copy of pushed drafts. Optional.
type Archiver interface {
	Archive(ctx context.Context, t models.Theme, ref models.CampaignRef) error
}

// Config wires the controller's collaborators.
type Config struct {
	Store     Store
	Prompts   Prompter
	Generator Generator
	Notifier  Notifier
	Publisher Publisher
	Archiver  Archiver

	// Location is the timezone month labels are derived in (default UTC).
	Location *time.Location
	// Now is the clock (default time.Now).
	Now func() time.Time
}

// Controller runs theme lifecycle transitions.
type Controller struct {
	store     Store
	prompts   Prompter
	generator Generator
	notifier  Notifier
	publisher Publisher
	archiver  Archiver
	loc       *time.Location
	now       func() time.Time

	mu       sync.Mutex
	drafting map[string]struct{}
}

// New creates a controller.
func New(cfg Config) *Controller {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		store:     cfg.Store,
		prompts:   cfg.Prompts,
		generator: cfg.Generator,
		notifier:  cfg.Notifier,
		publisher: cfg.Publisher,
		archiver:  cfg.Archiver,
		loc:       cfg.Location,
		now:       cfg.Now,
		drafting:  make(map[string]struct{}),
	}
}

// CurrentMonth returns the month label for the current time.
func (c *Controller) CurrentMonth() string {
	return models.MonthLabel(c.now(), c.loc)
}

func (c *Controller) month(m string) string {
	if m = strings.TrimSpace(m); m != "" {
		return m
	}
	return c.CurrentMonth()
}

// StateOf returns the lifecycle state of a single record, including the
// transient drafting state while a generation call for it is running.
func (c *Controller) StateOf(t models.Theme) State {
	c.mu.Lock()
	_, busy := c.drafting[t.ID]
	c.mu.Unlock()
	if busy {
		return StateDrafting
	}
	return RecordState(t)
}

// --- listing ---

// ListPending returns the pending records for a segment and month in the
// store's natural order. An empty month means the current one.
func (c *Controller) ListPending(ctx context.Context, seg models.Segment, month string) ([]models.Theme, error) {
	if err := checkSegment("list pending themes", seg); err != nil {
		return nil, err
	}
	return c.store.List(ctx, models.ThemeFilter{
		Segment:  seg,
		Month:    c.month(month),
		Statuses: []models.ThemeStatus{models.ThemeStatusPending},
	})
}

// Get returns one record.
func (c *Controller) Get(ctx context.Context, id string) (*models.Theme, error) {
	return c.store.Get(ctx, id)
}

// SegmentOverview is one segment's month at a glance.
type SegmentOverview struct {
	Segment models.Segment `json:"segment"`
	Month   string         `json:"month"`
	State   State          `json:"state"`
	Chosen  *models.Theme  `json:"chosen,omitempty"`
	Themes  []models.Theme `json:"themes"`
}

// Overview reads every segment's records for month concurrently and
// derives each segment's state.
func (c *Controller) Overview(ctx context.Context, month string) ([]SegmentOverview, error) {
	month = c.month(month)
	segments := models.Segments()
	out := make([]SegmentOverview, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range segments {
		g.Go(func() error {
			themes, err := c.store.List(gctx, models.ThemeFilter{Segment: seg, Month: month})
			if err != nil {
				return err
			}
			ov := SegmentOverview{Segment: seg, Month: month, State: SegmentState(themes), Themes: themes}
			if ov.Themes == nil {
				ov.Themes = []models.Theme{}
			}
			if chosen := Chosen(themes); chosen != nil {
				ov.Chosen = chosen
				ov.State = c.StateOf(*chosen)
			}
			out[i] = ov
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// --- selection ---

var chosenStatuses = []models.ThemeStatus{models.ThemeStatusSelected, models.ThemeStatusSkipped}

// Select makes id the segment's theme for month. Any other selected or
// skipped record is first returned to pending; those records are returned
// alongside the updated target.
func (c *Controller) Select(ctx context.Context, seg models.Segment, month, id string) (*models.Theme, []models.Theme, error) {
	return c.choose(ctx, ActionSelect, seg, month, id, models.ThemeStatusSelected)
}

// Skip marks id as skipped for the segment's month, resetting any other
// selected or skipped record first.
func (c *Controller) Skip(ctx context.Context, seg models.Segment, month, id string) (*models.Theme, []models.Theme, error) {
	return c.choose(ctx, ActionSkip, seg, month, id, models.ThemeStatusSkipped)
}

// choose resets competing records and then sets the target's status. If a
// later step fails, the resets already applied are undone and the returned
// update error carries a *PartialFailure saying whether that worked.
func (c *Controller) choose(ctx context.Context, action Action, seg models.Segment, month, id string, status models.ThemeStatus) (*models.Theme, []models.Theme, error) {
	op := string(action) + " theme"
	month = c.month(month)

	if err := checkSegment(op, seg); err != nil {
		return nil, nil, c.finish(action, id, err)
	}

	target, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, nil, c.finish(action, id, err)
	}
	if target.Segment != seg || target.Month != month {
		return nil, nil, c.finish(action, id, models.NewError(models.KindInvalid, op,
			fmt.Errorf("theme %s belongs to %s / %s, not %s / %s", id, target.Segment, target.Month, seg, month)))
	}

	chosen, err := c.store.List(ctx, models.ThemeFilter{Segment: seg, Month: month, Statuses: chosenStatuses})
	if err != nil {
		return nil, nil, c.finish(action, id, err)
	}

	var (
		sg       saga
		replaced []models.Theme
	)
	for _, other := range chosen {
		if other.ID == id {
			continue
		}
		step := "reset " + other.ID
		reset, err := c.store.Update(ctx, other.ID, resetPatch())
		if err != nil {
			return nil, nil, c.finish(action, id, models.NewError(models.KindUpdate, op, sg.fail(ctx, step, err)))
		}
		sg.done(step, c.restore(other))
		replaced = append(replaced, *reset)
	}

	patch := models.StatusPatch(status)
	if target.Status != status {
		clearFlags(&patch)
	}
	updated, err := c.store.Update(ctx, id, patch)
	if err != nil {
		return nil, nil, c.finish(action, id, models.NewError(models.KindUpdate, op, sg.fail(ctx, "set "+string(status), err)))
	}

	c.finish(action, id, nil)
	return updated, replaced, nil
}

// Reset returns every selected or skipped record of the segment's month to
// pending and returns the records it changed.
func (c *Controller) Reset(ctx context.Context, seg models.Segment, month string) ([]models.Theme, error) {
	const op = "reset themes"
	month = c.month(month)

	if err := checkSegment(op, seg); err != nil {
		return nil, c.finish(ActionReset, "", err)
	}

	chosen, err := c.store.List(ctx, models.ThemeFilter{Segment: seg, Month: month, Statuses: chosenStatuses})
	if err != nil {
		return nil, c.finish(ActionReset, "", err)
	}

	var sg saga
	out := make([]models.Theme, 0, len(chosen))
	for _, t := range chosen {
		step := "reset " + t.ID
		updated, err := c.store.Update(ctx, t.ID, resetPatch())
		if err != nil {
			return nil, c.finish(ActionReset, "", models.NewError(models.KindUpdate, op, sg.fail(ctx, step, err)))
		}
		sg.done(step, c.restore(t))
		out = append(out, *updated)
	}

	c.finish(ActionReset, "", nil)
	return out, nil
}

// resetPatch returns a record to pending. Its draft text is kept but it
// loses any submission or approval.
func resetPatch() models.ThemePatch {
	p := models.StatusPatch(models.ThemeStatusPending)
	clearFlags(&p)
	return p
}

func clearFlags(p *models.ThemePatch) {
	f := false
	p.DraftSubmitted = &f
	p.DraftApproved = &f
}

// restore returns an undo step putting prev's status and flags back.
func (c *Controller) restore(prev models.Theme) func(context.Context) error {
	return func(ctx context.Context) error {
		status, submitted, approved := prev.Status, prev.DraftSubmitted, prev.DraftApproved
		_, err := c.store.Update(ctx, prev.ID, models.ThemePatch{
			Status:         &status,
			DraftSubmitted: &submitted,
			DraftApproved:  &approved,
		})
		return err
	}
}

// --- drafting ---

// GenerateDraft builds the prompt for a selected theme, asks the model for
// a draft and stores it, replacing any previous draft.
func (c *Controller) GenerateDraft(ctx context.Context, id string) (*models.Theme, error) {
	return c.generate(ctx, ActionGenerate, id, "")
}

// RegenerateDraft is GenerateDraft with the caller's accumulated
// instructions appended to the prompt.
func (c *Controller) RegenerateDraft(ctx context.Context, id string, extra prompt.Instructions) (*models.Theme, error) {
	return c.generate(ctx, ActionRegenerate, id, extra.String())
}

func (c *Controller) generate(ctx context.Context, action Action, id, extra string) (*models.Theme, error) {
	t, err := c.load(ctx, action, id)
	if err != nil {
		return nil, c.finish(action, id, err)
	}

	if !c.beginDrafting(id) {
		return nil, c.finish(action, id, precondition(action, StateDrafting))
	}
	defer c.endDrafting(id)

	p, err := c.prompts.Build(t.Subject, t.Description, t.Segment, extra)
	if err != nil {
		return nil, c.finish(action, id, err)
	}

	text, err := c.generator.Generate(ctx, p)
	if err != nil {
		return nil, c.finish(action, id, err)
	}

	updated, err := c.store.Update(ctx, id, models.ThemePatch{EmailDraft: &text})
	if err != nil {
		return nil, c.finish(action, id, err)
	}

	c.finish(action, id, nil)
	return updated, nil
}

func (c *Controller) beginDrafting(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.drafting[id]; busy {
		return false
	}
	c.drafting[id] = struct{}{}
	return true
}

func (c *Controller) endDrafting(id string) {
	c.mu.Lock()
	delete(c.drafting, id)
	c.mu.Unlock()
}

// SaveEdits overwrites the draft with operator-edited text as given.
func (c *Controller) SaveEdits(ctx context.Context, id, text string) (*models.Theme, error) {
	if _, err := c.load(ctx, ActionSaveEdits, id); err != nil {
		return nil, c.finish(ActionSaveEdits, id, err)
	}

	updated, err := c.store.Update(ctx, id, models.ThemePatch{EmailDraft: &text})
	if err != nil {
		return nil, c.finish(ActionSaveEdits, id, err)
	}

	c.finish(ActionSaveEdits, id, nil)
	return updated, nil
}

// --- review ---

// SubmitForReview flags the draft as submitted and emails it to the
// reviewer. A failed email is returned together with the updated record;
// the flag stays set.
func (c *Controller) SubmitForReview(ctx context.Context, id string) (*models.Theme, error) {
	return c.flagAndNotify(ctx, ActionSubmit, id, func(p *models.ThemePatch) {
		v := true
		p.DraftSubmitted = &v
	}, c.notifier.DraftReady)
}

// Approve flags the draft as approved and tells the stakeholder. Approval
// does not require a prior submission. A failed email is returned together
// with the updated record; the flag stays set.
func (c *Controller) Approve(ctx context.Context, id string) (*models.Theme, error) {
	return c.flagAndNotify(ctx, ActionApprove, id, func(p *models.ThemePatch) {
		v := true
		p.DraftApproved = &v
	}, c.notifier.DraftApproved)
}

func (c *Controller) flagAndNotify(ctx context.Context, action Action, id string, set func(*models.ThemePatch), send func(context.Context, models.Theme) error) (*models.Theme, error) {
	if _, err := c.load(ctx, action, id); err != nil {
		return nil, c.finish(action, id, err)
	}

	var patch models.ThemePatch
	set(&patch)
	updated, err := c.store.Update(ctx, id, patch)
	if err != nil {
		return nil, c.finish(action, id, err)
	}

	if err := send(ctx, *updated); err != nil {
		return updated, c.finish(action, id, err)
	}

	c.finish(action, id, nil)
	return updated, nil
}

// Unapprove clears the approval so the draft can be edited again.
func (c *Controller) Unapprove(ctx context.Context, id string) (*models.Theme, error) {
	if _, err := c.load(ctx, ActionUnapprove, id); err != nil {
		return nil, c.finish(ActionUnapprove, id, err)
	}

	f := false
	updated, err := c.store.Update(ctx, id, models.ThemePatch{DraftApproved: &f})
	if err != nil {
		return nil, c.finish(ActionUnapprove, id, err)
	}

	c.finish(ActionUnapprove, id, nil)
	return updated, nil
}

// --- publishing ---

// PushToCampaign re-reads the record and, if it is still approved, stages
// its subject and draft as a campaign. Nothing is written back to the
// record and a failed push leaves the approval in place. When an archiver
// is configured the pushed copy is archived; archive failures are logged.
func (c *Controller) PushToCampaign(ctx context.Context, id string) (*models.CampaignRef, error) {
	t, err := c.load(ctx, ActionPush, id)
	if err != nil {
		return nil, c.finish(ActionPush, id, err)
	}

	ref, err := c.publisher.Publish(ctx, models.CampaignDraft{
		Segment: t.Segment,
		Month:   t.Month,
		Subject: t.Subject,
		Body:    t.EmailDraft,
	})
	if err != nil {
		return nil, c.finish(ActionPush, id, err)
	}

	if c.archiver != nil {
		if err := c.archiver.Archive(ctx, *t, *ref); err != nil {
			slog.Warn("archive pushed draft failed", "theme_id", id, "campaign_id", ref.ID, "error", err)
		}
	}

	c.finish(ActionPush, id, nil)
	return ref, nil
}

// --- manual entry ---

// CreateTheme adds a pending theme for the current month.
func (c *Controller) CreateTheme(ctx context.Context, seg models.Segment, subject, description string) (*models.Theme, error) {
	const op = "create theme"
	subject, description = strings.TrimSpace(subject), strings.TrimSpace(description)

	if err := checkSegment(op, seg); err != nil {
		return nil, c.finish(ActionCreate, "", err)
	}
	if subject == "" || description == "" {
		return nil, c.finish(ActionCreate, "", models.NewError(models.KindInvalid, op, fmt.Errorf("subject and description are both required")))
	}

	created, err := c.store.Create(ctx, models.Theme{
		Segment:     seg,
		Month:       c.CurrentMonth(),
		Subject:     subject,
		Description: description,
		Status:      models.ThemeStatusPending,
	})
	if err != nil {
		return nil, c.finish(ActionCreate, "", err)
	}

	c.finish(ActionCreate, created.ID, nil)
	return created, nil
}

// --- helpers ---

// load reads a record and checks that action is legal from its state.
func (c *Controller) load(ctx context.Context, action Action, id string) (*models.Theme, error) {
	t, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if st := c.StateOf(*t); !st.Allows(action) {
		return nil, precondition(action, st)
	}
	return t, nil
}

func precondition(action Action, st State) error {
	return models.NewError(models.KindPrecondition, string(action)+" theme",
		fmt.Errorf("cannot %s a theme that is %s", strings.ReplaceAll(string(action), "_", " "), strings.ReplaceAll(string(st), "_", " ")))
}

func checkSegment(op string, seg models.Segment) error {
	for _, s := range models.Segments() {
		if s == seg {
			return nil
		}
	}
	return models.NewError(models.KindInvalid, op, fmt.Errorf("unknown segment %q", seg))
}

// finish logs and counts a transition and returns err unchanged.
func (c *Controller) finish(action Action, id string, err error) error {
	metrics.RecordTransition(string(action), err)
	if err != nil {
		slog.Warn("theme transition failed", "action", action, "theme_id", id, "error", err)
		return err
	}
	slog.Info("theme transition", "action", action, "theme_id", id)
	return nil
}
