/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codegen

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/phinehas2020/ai-website-editor/codegen/retry"
	"github.com/phinehas2020/ai-website-editor/metrics"
)

// claudeBackend generates through the Anthropic Messages API.
type claudeBackend struct {
	client       anthropic.Client
	model        string
	maxTokens    int64
	retryConfig  retry.Config
	genaiMetrics *metrics.GenAI
}

// NewClaudeBackend returns a Backend for the given Claude model.
func NewClaudeBackend(client anthropic.Client, model string, genaiMetrics *metrics.GenAI) Backend {
	return &claudeBackend{
		client:       client,
		model:        model,
		maxTokens:    8192,
		retryConfig:  retry.DefaultConfig(),
		genaiMetrics: genaiMetrics,
	}
}

func (b *claudeBackend) Generate(ctx context.Context, prompt string) (string, error) {
	message, err := retry.Do(ctx, b.retryConfig, "claude_generate", isRetryableClaudeError, func() (*anthropic.Message, error) {
		return b.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(b.model),
			MaxTokens: b.maxTokens,
			Messages: []anthropic.MessageParam{{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(prompt),
				},
			}},
		})
	})
	if err != nil {
		return "", fmt.Errorf("claude generation: %w", err)
	}

	if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
		b.genaiMetrics.RecordTokens(ctx, b.model, message.Usage.InputTokens, message.Usage.OutputTokens)
	}

	for _, content := range message.Content {
		if content.Type == "text" {
			return content.Text, nil
		}
	}
	return "", errors.New("no text content in Claude response")
}

// isRetryableClaudeError reports whether the error is a rate limit,
// overloaded, or transient server error.
func isRetryableClaudeError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 503, 504, 529:
			return true
		}
	}
	return false
}
