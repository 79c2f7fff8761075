package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"themedesk/internal/httputil"
	"themedesk/internal/models"
	"themedesk/internal/workflow"
)

// overviewResponse wraps every segment's month.
type overviewResponse struct {
	Month    string            `json:"month"`
	Segments []segmentResponse `json:"segments"`
}

type segmentResponse struct {
	Segment models.Segment `json:"segment"`
	Month   string         `json:"month"`
	State   workflow.State `json:"state"`
	Chosen  *themeView     `json:"chosen,omitempty"`
	Themes  []themeView    `json:"themes"`
}

// Overview returns each segment's state and records for a month.
// GET /api/overview?month=May+2026
func (a *API) Overview(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		month = a.flow.CurrentMonth()
	}

	segs, err := a.flow.Overview(r.Context(), month)
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	resp := overviewResponse{Month: month, Segments: make([]segmentResponse, 0, len(segs))}
	for _, s := range segs {
		sr := segmentResponse{
			Segment: s.Segment,
			Month:   s.Month,
			State:   s.State,
			Themes:  a.views(s.Themes),
		}
		if s.Chosen != nil {
			v := a.view(*s.Chosen)
			sr.Chosen = &v
		}
		resp.Segments = append(resp.Segments, sr)
	}
	httputil.OK(w, resp)
}

// PendingThemes lists the pending records of a segment.
// GET /api/segments/{segment}/themes?month=
func (a *API) PendingThemes(w http.ResponseWriter, r *http.Request) {
	seg, ok := segmentParam(w, r)
	if !ok {
		return
	}

	themes, err := a.flow.ListPending(r.Context(), seg, r.URL.Query().Get("month"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"segment": seg,
		"themes":  a.views(themes),
		"total":   len(themes),
	})
}

type createThemeRequest struct {
	Segment     string `json:"segment"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// CreateTheme adds a manually entered theme for the current month.
// POST /api/themes
func (a *API) CreateTheme(w http.ResponseWriter, r *http.Request) {
	var req createThemeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if msg := validateTheme(req.Subject, req.Description); msg != "" {
		httputil.Error(w, http.StatusBadRequest, string(models.KindInvalid), msg)
		return
	}
	seg, err := models.ParseSegment(req.Segment)
	if err != nil {
		httputil.Fail(w, models.NewError(models.KindInvalid, "parse segment", err))
		return
	}

	created, err := a.flow.CreateTheme(r.Context(), seg, req.Subject, req.Description)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.Created(w, a.view(*created))
}

// GetTheme returns one record.
// GET /api/themes/{id}
func (a *API) GetTheme(w http.ResponseWriter, r *http.Request) {
	t, err := a.flow.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, a.view(*t))
}

type chooseRequest struct {
	ID    string `json:"id"`
	Month string `json:"month"`
}

// Select makes a record the segment's theme for the month.
// POST /api/segments/{segment}/select
func (a *API) Select(w http.ResponseWriter, r *http.Request) {
	a.choose(w, r, a.flow.Select)
}

// Skip marks the segment as sending nothing this month.
// POST /api/segments/{segment}/skip
func (a *API) Skip(w http.ResponseWriter, r *http.Request) {
	a.choose(w, r, a.flow.Skip)
}

// choose runs Select or Skip and drops the regeneration notes of any record
// the choice returned to pending.
func (a *API) choose(w http.ResponseWriter, r *http.Request, do func(context.Context, models.Segment, string, string) (*models.Theme, []models.Theme, error)) {
	seg, ok := segmentParam(w, r)
	if !ok {
		return
	}
	var req chooseRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		httputil.Error(w, http.StatusBadRequest, string(models.KindInvalid), "id is required")
		return
	}

	t, replaced, err := do(r.Context(), seg, req.Month, req.ID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	for _, old := range replaced {
		a.clearNotes(r.Context(), old.ID)
	}
	httputil.OK(w, a.view(*t))
}

type resetRequest struct {
	Month string `json:"month"`
}

// Reset returns the segment's chosen record to pending and drops its
// regeneration notes.
// POST /api/segments/{segment}/reset
func (a *API) Reset(w http.ResponseWriter, r *http.Request) {
	seg, ok := segmentParam(w, r)
	if !ok {
		return
	}
	var req resetRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	reset, err := a.flow.Reset(r.Context(), seg, req.Month)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	for _, t := range reset {
		a.clearNotes(r.Context(), t.ID)
	}
	httputil.OK(w, map[string]any{
		"segment": seg,
		"reset":   a.views(reset),
	})
}
