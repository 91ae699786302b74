/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codegen

import (
	"strings"
)

// ExtractObject returns the first balanced top-level JSON object found in
// text, or ok=false if there is none. Generation backends are instructed to
// emit exactly one JSON object and nothing else, but they are not
// contractually guaranteed to honor that, so the extractor tolerates prose
// and markdown fences before and after the object.
//
// This is an explicit, bounded parsing strategy rather than a general parser:
// model output is unreliable, and input that defeats it is reported as a
// malformed generation response rather than hardened against further.
func ExtractObject(text string) (string, bool) {
	// Strip a markdown fence first: models frequently wrap the object in
	// ```json blocks even when told not to.
	if fenced, ok := extractFenced(text); ok {
		text = fenced
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// extractFenced returns the content of the first ```json (or bare ```) fence.
func extractFenced(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	var sb strings.Builder
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inBlock && (trimmed == "```json" || trimmed == "```") {
			inBlock = true
			continue
		}
		if inBlock && trimmed == "```" {
			return sb.String(), true
		}
		if inBlock {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(line)
		}
	}
	return "", false
}
