package airtable

import (
	"log/slog"
	"strings"
	"time"

	"themedesk/internal/models"
)

// Formula builds an Airtable filterByFormula expression for f. Every
// condition is an equality on a column; statuses are OR-ed together.
func Formula(f models.ThemeFilter) string {
	var conds []string
	if f.Segment != "" {
		conds = append(conds, eq(fieldSegment, string(f.Segment)))
	}
	if f.Month != "" {
		conds = append(conds, eq(fieldMonth, f.Month))
	}
	switch len(f.Statuses) {
	case 0:
	case 1:
		conds = append(conds, eq(fieldStatus, string(f.Statuses[0])))
	default:
		ors := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			ors[i] = eq(fieldStatus, string(s))
		}
		conds = append(conds, "OR("+strings.Join(ors, ", ")+")")
	}

	switch len(conds) {
	case 0:
		return ""
	case 1:
		return conds[0]
	}
	return "AND(" + strings.Join(conds, ", ") + ")"
}

func eq(field, value string) string {
	return "{" + field + "} = '" + quote(value) + "'"
}

// quote escapes a value for use inside a single-quoted formula string.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// toTheme maps a raw record into a Theme. Missing optional fields take
// their zero value explicitly: no draft, not submitted, not approved. A
// missing status reads as pending.
func toTheme(rec record, cols DraftColumns) models.Theme {
	t := models.Theme{
		ID:             rec.ID,
		Month:          str(rec.Fields, fieldMonth),
		Subject:        str(rec.Fields, fieldSubject),
		Description:    str(rec.Fields, fieldDescription),
		EmailDraft:     str(rec.Fields, cols.EmailDraft),
		DraftSubmitted: boolean(rec.Fields, cols.DraftSubmitted),
		DraftApproved:  boolean(rec.Fields, cols.DraftApproved),
		Status:         models.ThemeStatusPending,
	}

	rawSeg := str(rec.Fields, fieldSegment)
	if seg, err := models.ParseSegment(rawSeg); err == nil {
		t.Segment = seg
	} else {
		slog.Warn("airtable record has unknown segment", "id", rec.ID, "segment", rawSeg)
		t.Segment = models.Segment(rawSeg)
	}

	if raw := str(rec.Fields, fieldStatus); raw != "" {
		if s := models.ThemeStatus(strings.ToLower(raw)); s.Valid() {
			t.Status = s
		} else {
			slog.Warn("airtable record has unknown status, treating as pending", "id", rec.ID, "status", raw)
		}
	}

	if rec.CreatedTime != "" {
		if ts, err := time.Parse(time.RFC3339, rec.CreatedTime); err == nil {
			t.CreatedAt = ts
		}
	}
	return t
}

func str(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

// boolean reads a checkbox column. Airtable omits unchecked boxes entirely.
func boolean(fields map[string]any, key string) bool {
	switch v := fields[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

func createFields(t models.Theme, cols DraftColumns) map[string]any {
	status := t.Status
	if status == "" {
		status = models.ThemeStatusPending
	}
	fields := map[string]any{
		fieldSegment:     string(t.Segment),
		fieldMonth:       t.Month,
		fieldSubject:     t.Subject,
		fieldDescription: t.Description,
		fieldStatus:      string(status),
	}
	if t.EmailDraft != "" {
		fields[cols.EmailDraft] = t.EmailDraft
	}
	return fields
}

func patchFields(p models.ThemePatch, cols DraftColumns) map[string]any {
	fields := make(map[string]any, 4)
	if p.Status != nil {
		fields[fieldStatus] = string(*p.Status)
	}
	if p.EmailDraft != nil {
		fields[cols.EmailDraft] = *p.EmailDraft
	}
	if p.DraftSubmitted != nil {
		fields[cols.DraftSubmitted] = *p.DraftSubmitted
	}
	if p.DraftApproved != nil {
		fields[cols.DraftApproved] = *p.DraftApproved
	}
	return fields
}
