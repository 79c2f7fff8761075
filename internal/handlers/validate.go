package handlers

import (
	"strings"
	"unicode/utf8"
)

// Validation limits for operator-entered fields.
const (
	maxSubjectLen     = 200
	maxDescriptionLen = 2_000
	maxDraftLen       = 20_000
	maxInstructionLen = 1_000
)

// validateTheme checks manual theme entry and returns the first error found.
func validateTheme(subject, description string) string {
	subject = strings.TrimSpace(subject)
	description = strings.TrimSpace(description)
	if subject == "" || description == "" {
		return "Subject and description are both required."
	}
	if utf8.RuneCountInString(subject) > maxSubjectLen {
		return "Subject is too long (max 200 characters)."
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return "Description is too long (max 2,000 characters)."
	}
	return ""
}

// validateDraft checks edited draft text.
func validateDraft(text string) string {
	if utf8.RuneCountInString(text) > maxDraftLen {
		return "Draft is too long (max 20,000 characters)."
	}
	return ""
}

// validateInstruction checks a regeneration instruction. Blank is allowed.
func validateInstruction(s string) string {
	if utf8.RuneCountInString(s) > maxInstructionLen {
		return "Instruction is too long (max 1,000 characters)."
	}
	return ""
}
