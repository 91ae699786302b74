/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs the change request workflow engine's HTTP API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v71/github"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/oauth2"
	"google.golang.org/genai"

	"github.com/phinehas2020/ai-website-editor/branchmanager"
	"github.com/phinehas2020/ai-website-editor/codegen"
	"github.com/phinehas2020/ai-website-editor/deploystatus"
	"github.com/phinehas2020/ai-website-editor/metrics"
	"github.com/phinehas2020/ai-website-editor/server"
	"github.com/phinehas2020/ai-website-editor/snapshot"
	"github.com/phinehas2020/ai-website-editor/storage/sqlite"
	"github.com/phinehas2020/ai-website-editor/workflow"
)

type config struct {
	Port   int    `env:"PORT,default=8080"`
	DBPath string `env:"DB_PATH,default=editor.db"`

	// GitHub access and the default owner for bare repository names.
	GitHubToken string `env:"GITHUB_TOKEN,required"`
	GitHubOrg   string `env:"GITHUB_ORG"`

	// Generation backend keys; only models whose key is set are enabled.
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	GoogleAPIKey    string `env:"GOOGLE_AI_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`

	VercelToken  string `env:"VERCEL_TOKEN"`
	VercelTeamID string `env:"VERCEL_TEAM_ID"`

	// APIAuthTokens is a comma-separated list of token:user pairs accepted
	// as Bearer credentials.
	APIAuthTokens string `env:"API_AUTH_TOKENS,required"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := clog.New(slog.NewJSONHandler(os.Stderr, nil))
	ctx = clog.WithLogger(ctx, log)

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	auth, err := server.ParseStaticTokens(cfg.APIAuthTokens)
	if err != nil {
		clog.FatalContextf(ctx, "parsing API auth tokens: %v", err)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		clog.FatalContextf(ctx, "opening store: %v", err)
	}
	defer store.Close()

	gh := github.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})))

	backends, err := buildBackends(ctx, cfg)
	if err != nil {
		clog.FatalContextf(ctx, "configuring generation backends: %v", err)
	}
	if len(backends) == 0 {
		clog.FatalContextf(ctx, "no generation backend keys configured")
	}

	coordinator := workflow.New(
		store,
		snapshot.New(gh.Repositories),
		codegen.NewAdapter(backends),
		branchmanager.New(gh),
		deploystatus.NewVercel(cfg.VercelToken, cfg.VercelTeamID),
		cfg.GitHubOrg,
		cfg.VercelTeamID,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.New(coordinator, store, auth).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.With("error", err.Error()).Warn("Server shutdown failed")
		}
	}()

	clog.InfoContextf(ctx, "Starting workflow engine on port %d", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		clog.FatalContextf(ctx, "server failed: %v", err)
	}
}

// buildBackends wires one generation backend per configured API key. Model
// choices without a key stay unsupported rather than failing at call time.
func buildBackends(ctx context.Context, cfg config) (map[codegen.ModelChoice]codegen.Backend, error) {
	log := clog.FromContext(ctx)
	genaiMetrics := metrics.NewGenAI("ai-website-editor.codegen")
	backends := map[codegen.ModelChoice]codegen.Backend{}

	if cfg.GoogleAPIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GoogleAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("creating Gemini client: %w", err)
		}
		backends[codegen.ModelGeminiFlash] = codegen.NewGeminiBackend(client, "gemini-2.0-flash", genaiMetrics)
		backends[codegen.ModelGeminiPro] = codegen.NewGeminiBackend(client, "gemini-2.0-pro", genaiMetrics)
		log.Info("Enabled Gemini backends")
	}
	if cfg.AnthropicAPIKey != "" {
		client := anthropic.NewClient(anthropicoption.WithAPIKey(cfg.AnthropicAPIKey))
		backends[codegen.ModelClaudeOpus] = codegen.NewClaudeBackend(client, "claude-opus-4-5-20251101", genaiMetrics)
		log.Info("Enabled Claude backend")
	}
	if cfg.OpenAIAPIKey != "" {
		client := openai.NewClient(openaioption.WithAPIKey(cfg.OpenAIAPIKey))
		backends[codegen.ModelGPT4o] = codegen.NewOpenAIBackend(client, "gpt-4o", genaiMetrics)
		log.Info("Enabled OpenAI backend")
	}
	return backends, nil
}
