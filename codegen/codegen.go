/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package codegen turns a source snapshot and a user instruction into a
// proposed set of file edits via one of a fixed set of AI generation
// backends.
//
// Each backend is a uniform text-in/text-out adapter; backend-specific
// request and response shapes never leak past it. Response validation is
// shared: extract the first balanced JSON object from the raw text, then
// require a string "summary" and an object "files".
package codegen

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"github.com/chainguard-dev/clog"

	"github.com/phinehas2020/ai-website-editor/model"
)

// ModelChoice names one of the supported generation backends.
type ModelChoice string

const (
	ModelGeminiFlash ModelChoice = "gemini-flash"
	ModelGeminiPro   ModelChoice = "gemini-pro"
	ModelClaudeOpus  ModelChoice = "claude-opus"
	ModelGPT4o       ModelChoice = "gpt-4o"
)

// ModelInfo describes a supported model for API consumers.
type ModelInfo struct {
	ID          ModelChoice `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
}

// Catalog enumerates every supported model choice.
func Catalog() []ModelInfo {
	return []ModelInfo{
		{ID: ModelGeminiFlash, Name: "Gemini Flash", Description: "Fast and efficient for simple changes"},
		{ID: ModelGeminiPro, Name: "Gemini Pro", Description: "More capable for complex changes"},
		{ID: ModelClaudeOpus, Name: "Claude Opus", Description: "Most capable for sophisticated changes"},
		{ID: ModelGPT4o, Name: "GPT-4o", Description: "Strong general-purpose editing"},
	}
}

// Backend submits a prompt to one generation backend and returns its raw
// text response.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result is a validated generation outcome. An empty Files map is a valid
// outcome meaning "no change needed".
type Result struct {
	Summary string
	// Files maps changed paths to full new file content.
	Files map[string]string
}

// ChangedPaths returns the changed file paths in stable (sorted) order.
func (r *Result) ChangedPaths() []string {
	paths := make([]string, 0, len(r.Files))
	for path := range r.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Adapter routes generation requests to the configured backends.
type Adapter struct {
	backends map[ModelChoice]Backend
}

// NewAdapter returns an Adapter over the given backends. Only model choices
// present in the map are accepted.
func NewAdapter(backends map[ModelChoice]Backend) *Adapter {
	return &Adapter{backends: backends}
}

// Supports reports whether the given model choice has a configured backend.
func (a *Adapter) Supports(choice ModelChoice) bool {
	_, ok := a.backends[choice]
	return ok
}

// Generate builds the prompt, invokes the selected backend, and validates
// its response. An unrecognized model choice fails before any network call.
func (a *Adapter) Generate(ctx context.Context, files []model.File, instruction string, choice ModelChoice) (*Result, error) {
	backend, ok := a.backends[choice]
	if !ok {
		return nil, model.E(model.KindInvalidInput, "unsupported model %q", choice)
	}

	prompt, err := BuildPrompt(files, instruction)
	if err != nil {
		return nil, err
	}

	log := clog.FromContext(ctx)
	log.With("model", string(choice)).
		With("prompt_length", len(prompt)).
		With("files", len(files)).
		Info("Invoking generation backend")

	raw, err := backend.Generate(ctx, prompt)
	if err != nil {
		return nil, model.Wrap(model.KindUpstreamUnavailable, err, "generation backend %q", choice)
	}

	result, err := parseResponse(raw)
	if err != nil {
		log.With("model", string(choice)).With("error", err.Error()).Warn("Generation response failed validation")
		return nil, err
	}
	log.With("model", string(choice)).With("files_changed", len(result.Files)).Info("Generation response validated")
	return result, nil
}

// parseResponse extracts and validates the backend's JSON object. The
// summary must be a string and files must be an object; anything else is a
// malformed generation response.
func parseResponse(raw string) (*Result, error) {
	text, ok := ExtractObject(raw)
	if !ok {
		return nil, model.E(model.KindMalformedGeneration, "no JSON object found in generation response")
	}

	var envelope struct {
		Summary json.RawMessage `json:"summary"`
		Files   json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return nil, model.Wrap(model.KindMalformedGeneration, err, "parsing generation response")
	}

	var summary string
	if err := json.Unmarshal(envelope.Summary, &summary); err != nil {
		return nil, model.E(model.KindMalformedGeneration, "generation response summary is not a string")
	}

	rawFiles := bytes.TrimSpace(envelope.Files)
	if len(rawFiles) == 0 || rawFiles[0] != '{' {
		return nil, model.E(model.KindMalformedGeneration, "generation response files is not an object")
	}
	files := map[string]string{}
	if err := json.Unmarshal(rawFiles, &files); err != nil {
		return nil, model.E(model.KindMalformedGeneration, "generation response files is not an object of path to content")
	}

	return &Result{Summary: summary, Files: files}, nil
}
