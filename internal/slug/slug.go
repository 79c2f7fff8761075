// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug turns theme subjects and segment names into lower-case,
// hyphenated path segments for object keys.
package slug

import (
	"regexp"
	"strings"
)

// MaxLen bounds a slug so object keys stay readable.
const MaxLen = 60

// nonAlphanumeric matches anything that isn't a letter, digit, space or hyphen.
var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s-]`)

// Generate creates a slug from s.
// Example: "Tax Time: 5 Tips!" → "tax-time-5-tips"
func Generate(s string) string {
	result := strings.ToLower(s)
	result = nonAlphanumeric.ReplaceAllString(result, "")

	// Fields splits on any whitespace run; hyphen runs collapse below.
	result = strings.Join(strings.Fields(result), "-")
	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-")

	if len(result) > MaxLen {
		result = result[:MaxLen]
		if i := strings.LastIndex(result, "-"); i > 0 {
			result = result[:i]
		}
	}
	return result
}
