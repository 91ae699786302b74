/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codegen

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/phinehas2020/ai-website-editor/codegen/retry"
	"github.com/phinehas2020/ai-website-editor/metrics"
)

// openaiBackend generates through the OpenAI chat completions API.
type openaiBackend struct {
	client       openai.Client
	model        string
	retryConfig  retry.Config
	genaiMetrics *metrics.GenAI
}

// NewOpenAIBackend returns a Backend for the given OpenAI model.
func NewOpenAIBackend(client openai.Client, model string, genaiMetrics *metrics.GenAI) Backend {
	return &openaiBackend{
		client:       client,
		model:        model,
		retryConfig:  retry.DefaultConfig(),
		genaiMetrics: genaiMetrics,
	}
}

func (b *openaiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	completion, err := retry.Do(ctx, b.retryConfig, "openai_generate", isRetryableOpenAIError, func() (*openai.ChatCompletion, error) {
		return b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(b.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
		})
	})
	if err != nil {
		return "", fmt.Errorf("openai generation: %w", err)
	}

	if completion.Usage.PromptTokens > 0 || completion.Usage.CompletionTokens > 0 {
		b.genaiMetrics.RecordTokens(ctx, b.model, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", errors.New("no text content in OpenAI response")
	}
	return completion.Choices[0].Message.Content, nil
}

// isRetryableOpenAIError reports whether the error is a rate limit or
// transient server error.
func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 503, 504:
			return true
		}
	}
	return false
}
