/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codegen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/phinehas2020/ai-website-editor/codegen/retry"
	"github.com/phinehas2020/ai-website-editor/metrics"
)

// geminiBackend generates through the Gemini API.
type geminiBackend struct {
	client       *genai.Client
	model        string
	retryConfig  retry.Config
	genaiMetrics *metrics.GenAI
}

// NewGeminiBackend returns a Backend for the given Gemini model.
func NewGeminiBackend(client *genai.Client, model string, genaiMetrics *metrics.GenAI) Backend {
	return &geminiBackend{
		client:       client,
		model:        model,
		retryConfig:  retry.DefaultConfig(),
		genaiMetrics: genaiMetrics,
	}
}

func (b *geminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := retry.Do(ctx, b.retryConfig, "gemini_generate", isRetryableGeminiError, func() (*genai.GenerateContentResponse, error) {
		return b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), nil)
	})
	if err != nil {
		return "", fmt.Errorf("gemini generation: %w", err)
	}

	if response.UsageMetadata != nil {
		b.genaiMetrics.RecordTokens(ctx, b.model,
			int64(response.UsageMetadata.PromptTokenCount),
			int64(response.UsageMetadata.CandidatesTokenCount))
	}

	text := response.Text()
	if text == "" {
		return "", errors.New("no text content in Gemini response")
	}
	return text, nil
}

// isRetryableGeminiError reports whether the error looks like a rate limit,
// quota exhaustion, or transient server error. The Gemini SDK does not expose
// a stable typed error for these, so this matches on message text.
func isRetryableGeminiError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "Resource exhausted") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "Overloaded") ||
		strings.Contains(msg, "quota exceeded") ||
		strings.Contains(msg, "Internal error") ||
		strings.Contains(msg, "server error")
}
