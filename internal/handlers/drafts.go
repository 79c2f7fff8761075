package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"themedesk/internal/httputil"
	"themedesk/internal/models"
	"themedesk/internal/prompt"
	"themedesk/internal/workflow"
)

// GenerateDraft writes a first draft for a selected record.
// POST /api/themes/{id}/draft
func (a *API) GenerateDraft(w http.ResponseWriter, r *http.Request) {
	t, err := a.flow.GenerateDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, a.view(*t))
}

type regenerateRequest struct {
	Instruction string `json:"instruction"`
}

type regenerateResponse struct {
	themeView
	Instructions []string `json:"instructions"`
}

// RegenerateDraft replaces the draft, steering the model with every
// instruction given for this record so far.
// POST /api/themes/{id}/draft/regenerate
func (a *API) RegenerateDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req regenerateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if msg := validateInstruction(req.Instruction); msg != "" {
		httputil.Error(w, http.StatusBadRequest, string(models.KindInvalid), msg)
		return
	}

	var saved prompt.Instructions
	if a.notes != nil {
		loaded, err := a.notes.Load(r.Context(), id)
		if err != nil {
			slog.Warn("load regeneration notes failed, using request instruction only", "theme_id", id, "error", err)
		} else {
			saved = loaded
		}
	}
	extra := saved.With(req.Instruction)

	t, err := a.flow.RegenerateDraft(r.Context(), id, extra)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	// Only a regeneration that produced a draft keeps its instruction.
	if a.notes != nil {
		if _, err := a.notes.Append(r.Context(), id, req.Instruction); err != nil {
			slog.Warn("save regeneration note failed", "theme_id", id, "error", err)
		}
	}
	if extra == nil {
		extra = prompt.Instructions{}
	}
	httputil.OK(w, regenerateResponse{themeView: a.view(*t), Instructions: extra})
}

type saveDraftRequest struct {
	Text string `json:"text"`
}

// SaveDraft stores the operator's edited draft text.
// PUT /api/themes/{id}/draft
func (a *API) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req saveDraftRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if msg := validateDraft(req.Text); msg != "" {
		httputil.Error(w, http.StatusBadRequest, string(models.KindInvalid), msg)
		return
	}

	t, err := a.flow.SaveEdits(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, a.view(*t))
}

// reviewResponse reports a flag change that stuck even if the email about
// it could not be sent.
type reviewResponse struct {
	themeView
	NotificationError string `json:"notification_error,omitempty"`
}

// Submit flags the draft for review and emails the reviewer.
// POST /api/themes/{id}/submit
func (a *API) Submit(w http.ResponseWriter, r *http.Request) {
	t, err := a.flow.SubmitForReview(r.Context(), chi.URLParam(r, "id"))
	a.review(w, t, err)
}

// Approve flags the draft as approved, emails the stakeholder and drops
// the record's regeneration notes.
// POST /api/themes/{id}/approve
func (a *API) Approve(w http.ResponseWriter, r *http.Request) {
	t, err := a.flow.Approve(r.Context(), chi.URLParam(r, "id"))
	if t != nil {
		a.clearNotes(r.Context(), t.ID)
	}
	a.review(w, t, err)
}

func (a *API) review(w http.ResponseWriter, t *models.Theme, err error) {
	if t == nil {
		httputil.Fail(w, err)
		return
	}
	resp := reviewResponse{themeView: a.view(*t)}
	if err != nil {
		resp.NotificationError = err.Error()
	}
	httputil.OK(w, resp)
}

// Unapprove clears the approval so the draft can change again.
// POST /api/themes/{id}/unapprove
func (a *API) Unapprove(w http.ResponseWriter, r *http.Request) {
	t, err := a.flow.Unapprove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, a.view(*t))
}

type pushResponse struct {
	ThemeID  string              `json:"theme_id"`
	State    workflow.State      `json:"state"`
	Campaign *models.CampaignRef `json:"campaign"`
}

// Push stages the approved draft as a campaign in the email platform.
// POST /api/themes/{id}/push
func (a *API) Push(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ref, err := a.flow.PushToCampaign(r.Context(), id)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, pushResponse{ThemeID: id, State: workflow.StatePushed, Campaign: ref})
}
