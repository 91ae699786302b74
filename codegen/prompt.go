/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codegen

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/phinehas2020/ai-website-editor/model"
)

// promptTemplate is the generation prompt: every snapshot file under a
// FILE: header with fenced content, the user's instruction, and the fixed
// rule block. Rule 3's output contract is what the adapter's parser expects.
var promptTemplate = template.Must(template.New("generate").Parse(`You are an AI that modifies website code based on user requests.

Current files in the repository:
---
{{range .Files}}FILE: {{.Path}}
` + "```" + `
{{.Content}}
` + "```" + `

{{end}}---

User request: "{{.Instruction}}"

RULES:
1. For text/color/content changes, prefer editing content/site.json if it exists
2. NEVER edit: next.config.js, package.json, any files in /api, .env files
3. Return ONLY valid JSON in this format:
{
  "summary": "Brief description of changes made",
  "files": {
    "path/to/file.tsx": "full new content...",
    "path/to/other.json": "full new content..."
  }
}
4. Only include files that need changes
5. Preserve all existing functionality
6. Do not include any text before or after the JSON object`))

// BuildPrompt renders the generation prompt for the given snapshot and
// instruction.
func BuildPrompt(files []model.File, instruction string) (string, error) {
	var sb strings.Builder
	err := promptTemplate.Execute(&sb, struct {
		Files       []model.File
		Instruction string
	}{Files: files, Instruction: instruction})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return sb.String(), nil
}
