// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"themedesk/internal/metrics"
	"themedesk/internal/models"
)

// Completer is anything that turns a prompt into text. Both Registry and
// individual providers satisfy it.
type Completer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DraftGenerator produces email drafts from fully built prompts. It makes
// exactly one request per call and never retries.
type DraftGenerator struct {
	llm Completer
}

// NewDraftGenerator wraps a completer.
func NewDraftGenerator(llm Completer) *DraftGenerator {
	return &DraftGenerator{llm: llm}
}

// Generate returns the model's draft text as-is. Any failure, including a
// blank answer, is reported as a generation error.
func (g *DraftGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := g.llm.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("model returned an empty draft")
	}
	metrics.ObserveCall("llm", "generate_draft", start, err)

	if err != nil {
		slog.Error("draft generation failed", "error", err, "duration", time.Since(start).String())
		return "", models.NewError(models.KindGeneration, "generate draft", err)
	}

	slog.Info("draft generated", "chars", len(text), "duration", time.Since(start).String())
	return text, nil
}
