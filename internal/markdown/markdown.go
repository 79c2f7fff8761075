// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package markdown converts plain-text email drafts into HTML using
// goldmark. Drafts are written without markup, so the converter mostly
// turns blank-line separated paragraphs into <p> blocks and keeps single
// line breaks (greeting, sign-off) as <br>. Raw HTML is escaped.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// md is the configured goldmark instance, reused across calls.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.Linkify, // bare URLs become links
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// ToHTML converts a draft into an HTML fragment. Line endings are
// normalised first so drafts pasted from Windows editors render the same.
func ToHTML(source string) (string, error) {
	source = strings.ReplaceAll(source, "\r\n", "\n")

	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
