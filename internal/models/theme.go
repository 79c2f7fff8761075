// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"strings"
	"time"
)

// Segment is the audience category a theme is written for. Each segment has
// its own persona and its own recipient tag on the campaign platform.
type Segment string

const (
	SegmentPreRetiree Segment = "Pre-Retiree"
	SegmentRetiree    Segment = "Retiree"
)

// Segments returns every known segment in display order.
func Segments() []Segment {
	return []Segment{SegmentPreRetiree, SegmentRetiree}
}

// ParseSegment resolves a segment from its display name. Matching is
// case-insensitive and also accepts the slug form ("pre-retiree").
func ParseSegment(s string) (Segment, error) {
	s = strings.TrimSpace(s)
	for _, seg := range Segments() {
		if strings.EqualFold(s, string(seg)) {
			return seg, nil
		}
	}
	return "", NewError(KindInvalid, "parse segment", fmt.Errorf("unknown segment %q", s))
}

// Slug returns the lower-case URL form of the segment.
func (s Segment) Slug() string {
	return strings.ToLower(string(s))
}

// ThemeStatus is the selection state of a single theme record.
type ThemeStatus string

const (
	ThemeStatusPending  ThemeStatus = "pending"
	ThemeStatusSelected ThemeStatus = "selected"
	ThemeStatusSkipped  ThemeStatus = "skipped"
)

// Valid reports whether s is one of the known statuses.
func (s ThemeStatus) Valid() bool {
	switch s {
	case ThemeStatusPending, ThemeStatusSelected, ThemeStatusSkipped:
		return true
	}
	return false
}

// IsChosen is true for the statuses that at most one record per
// (segment, month) may hold at a time.
func (s ThemeStatus) IsChosen() bool {
	return s == ThemeStatusSelected || s == ThemeStatusSkipped
}

// Theme is one candidate email topic for a segment in a given month. The
// draft fields are only meaningful once the theme has been selected.
type Theme struct {
	ID             string      `json:"id"`
	Segment        Segment     `json:"segment"`
	Month          string      `json:"month"`
	Subject        string      `json:"subject"`
	Description    string      `json:"description"`
	Status         ThemeStatus `json:"status"`
	EmailDraft     string      `json:"email_draft,omitempty"`
	DraftSubmitted bool        `json:"draft_submitted"`
	DraftApproved  bool        `json:"draft_approved"`
	CreatedAt      time.Time   `json:"created_at,omitzero"`
}

// HasDraft returns true if a non-blank draft has been stored.
func (t *Theme) HasDraft() bool {
	return strings.TrimSpace(t.EmailDraft) != ""
}

// ThemeFilter narrows a store listing. Empty fields are not filtered on.
type ThemeFilter struct {
	Segment  Segment
	Month    string
	Statuses []ThemeStatus
}

// ThemePatch is a partial update. Nil fields are left unchanged.
type ThemePatch struct {
	Status         *ThemeStatus
	EmailDraft     *string
	DraftSubmitted *bool
	DraftApproved  *bool
}

// Empty reports whether the patch would change nothing.
func (p ThemePatch) Empty() bool {
	return p.Status == nil && p.EmailDraft == nil && p.DraftSubmitted == nil && p.DraftApproved == nil
}

// Apply copies the set fields of the patch onto t.
func (p ThemePatch) Apply(t *Theme) {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.EmailDraft != nil {
		t.EmailDraft = *p.EmailDraft
	}
	if p.DraftSubmitted != nil {
		t.DraftSubmitted = *p.DraftSubmitted
	}
	if p.DraftApproved != nil {
		t.DraftApproved = *p.DraftApproved
	}
}

// StatusPatch builds a patch that only changes the status.
func StatusPatch(s ThemeStatus) ThemePatch {
	return ThemePatch{Status: &s}
}

// monthLayout renders e.g. "October 2026".
const monthLayout = "January 2006"

// MonthLabel returns the month display string for t in loc. A nil location
// means UTC.
func MonthLabel(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(monthLayout)
}

// ParseMonthLabel validates a month display string and returns the first
// instant of that month in UTC.
func ParseMonthLabel(s string) (time.Time, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, NewError(KindInvalid, "parse month", fmt.Errorf("month %q must look like %q", s, monthLayout))
	}
	return t, nil
}
