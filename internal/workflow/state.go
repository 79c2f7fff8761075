// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package workflow

import "themedesk/internal/models"

// State is where a segment's monthly theme sits in its lifecycle.
type State string

const (
	StateNoThemes  State = "no_themes"
	StatePending   State = "pending"
	StateSelected  State = "selected"
	StateDrafting  State = "drafting" // a generation call is in flight
	StateDrafted   State = "drafted"
	StateSubmitted State = "submitted"
	StateApproved  State = "approved"
	StatePushed    State = "pushed" // reported once by a successful push, never stored
	StateSkipped   State = "skipped"
)

// Action is an operator request against a theme.
type Action string

const (
	ActionSelect     Action = "select"
	ActionSkip       Action = "skip"
	ActionReset      Action = "reset"
	ActionCreate     Action = "create"
	ActionGenerate   Action = "generate"
	ActionRegenerate Action = "regenerate"
	ActionSaveEdits  Action = "save_edits"
	ActionSubmit     Action = "submit"
	ActionApprove    Action = "approve"
	ActionUnapprove  Action = "unapprove"
	ActionPush       Action = "push"
)

// legal lists, per action, the states it may start from. Actions missing
// from the table are legal from every state.
var legal = map[Action][]State{
	ActionGenerate:   {StateSelected, StateDrafted, StateSubmitted},
	ActionRegenerate: {StateSelected, StateDrafted, StateSubmitted},
	ActionSaveEdits:  {StateSelected, StateDrafted, StateSubmitted},
	ActionSubmit:     {StateDrafted, StateSubmitted},
	ActionApprove:    {StateDrafted, StateSubmitted},
	ActionUnapprove:  {StateApproved},
	ActionPush:       {StateApproved},
}

// Allows reports whether a may be taken from s.
func (s State) Allows(a Action) bool {
	from, ok := legal[a]
	if !ok {
		return true
	}
	for _, st := range from {
		if st == s {
			return true
		}
	}
	return false
}

// RecordState derives a single record's state from its stored fields.
// Approval only counts when there is a draft to approve.
func RecordState(t models.Theme) State {
	switch t.Status {
	case models.ThemeStatusSkipped:
		return StateSkipped
	case models.ThemeStatusSelected:
		switch {
		case !t.HasDraft():
			return StateSelected
		case t.DraftApproved:
			return StateApproved
		case t.DraftSubmitted:
			return StateSubmitted
		default:
			return StateDrafted
		}
	default:
		return StatePending
	}
}

// Chosen returns the selected or skipped record among themes, if any.
func Chosen(themes []models.Theme) *models.Theme {
	for i := range themes {
		if themes[i].Status.IsChosen() {
			return &themes[i]
		}
	}
	return nil
}

// SegmentState derives the state of a segment/month from all its records.
func SegmentState(themes []models.Theme) State {
	if len(themes) == 0 {
		return StateNoThemes
	}
	if c := Chosen(themes); c != nil {
		return RecordState(*c)
	}
	return StatePending
}
