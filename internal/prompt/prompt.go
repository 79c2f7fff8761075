// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package prompt assembles the language model instruction for a monthly
// theme. Building is a pure function of its inputs: the same subject,
// description, segment and extra instructions always produce the same bytes.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"themedesk/internal/models"
)

//go:embed personas.yaml
var defaultFile []byte

// extraHeader introduces operator-supplied instructions. Everything from
// this header on is the only part of the output that depends on extra.
const extraHeader = "\n\nAdditional instructions from the reviewer (follow these exactly):\n"

// file is the on-disk schema of a persona file.
type file struct {
	Personas     map[string]string `yaml:"personas"`
	Instructions string            `yaml:"instructions"`
}

// Builder renders prompts from a fixed set of personas and one
// instruction template. A Builder is immutable after construction and safe
// for concurrent use.
type Builder struct {
	personas map[models.Segment]string
	tmpl     *template.Template
}

// Default returns a Builder backed by the personas compiled into the binary.
func Default() *Builder {
	b, err := parse(defaultFile)
	if err != nil {
		panic(fmt.Sprintf("prompt: embedded personas invalid: %v", err))
	}
	return b
}

// Load reads a persona file with the same schema as the embedded default.
// Every known segment must have a persona.
func Load(path string) (*Builder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	b, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("persona file %s: %w", path, err)
	}
	return b, nil
}

func parse(data []byte) (*Builder, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if strings.TrimSpace(f.Instructions) == "" {
		return nil, fmt.Errorf("instructions template is empty")
	}

	tmpl, err := template.New("instructions").Option("missingkey=error").Parse(f.Instructions)
	if err != nil {
		return nil, fmt.Errorf("instructions template: %w", err)
	}

	personas := make(map[models.Segment]string, len(f.Personas))
	for name, text := range f.Personas {
		seg, err := models.ParseSegment(name)
		if err != nil {
			return nil, fmt.Errorf("persona %q: %w", name, err)
		}
		personas[seg] = strings.TrimSpace(text)
	}
	for _, seg := range models.Segments() {
		if personas[seg] == "" {
			return nil, fmt.Errorf("missing persona for %s", seg)
		}
	}

	return &Builder{personas: personas, tmpl: tmpl}, nil
}

// Persona returns the narrative for a segment.
func (b *Builder) Persona(seg models.Segment) (string, bool) {
	p, ok := b.personas[seg]
	return p, ok
}

// Build renders the instruction for one theme. extra is appended verbatim
// after a fixed header when it is not blank.
func (b *Builder) Build(subject, description string, seg models.Segment, extra string) (string, error) {
	persona, ok := b.Persona(seg)
	if !ok {
		return "", models.NewError(models.KindInvalid, "build prompt", fmt.Errorf("no persona for segment %q", seg))
	}

	var sb strings.Builder
	err := b.tmpl.Execute(&sb, struct {
		Subject     string
		Description string
		Segment     string
		Persona     string
	}{
		Subject:     strings.TrimSpace(subject),
		Description: strings.TrimSpace(description),
		Segment:     string(seg),
		Persona:     persona,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	out := strings.TrimRight(sb.String(), "\n")
	if strings.TrimSpace(extra) != "" {
		out += extraHeader + extra
	}
	return out, nil
}
