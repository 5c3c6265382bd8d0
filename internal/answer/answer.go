// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package answer sends summarize and question turns to an LLM provider
// together with the extracted article, and cleans up the generated text.
//
// Two protocols are supported. ClaudeBackend inlines the TEI document in a
// single Messages API request. AssistantBackend uploads the TEI document,
// creates an assistant and a thread, and polls a run until it completes.
package answer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/article-bot/pkg/types"
)

// Gateway produces an answer about an article.
type Gateway interface {
	// Answer returns the cleaned answer text. Every error is a *Failure.
	Answer(ctx context.Context, req types.AnswerRequest) (string, error)

	// Provider is the display name used in user-facing messages.
	Provider() string
}

// Failure wraps a provider error with the provider's display name.
type Failure struct {
	Provider string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Provider, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

var (
	citationMarker = regexp.MustCompile(`【[^】]+】`)
	blankLines     = regexp.MustCompile(`\n\s*\n`)
)

// Clean removes file-search citation markers such as 【4:0†source】,
// collapses runs of blank lines into one, and trims the result.
func Clean(text string) string {
	text = citationMarker.ReplaceAllString(text, "")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Default models and display names per provider.
const (
	DefaultAnthropicModel = "claude-3-5-haiku-20241022"
	DefaultOpenAIModel    = "gpt-4o-mini"

	defaultMaxTokens = 1024
)

// New returns the Gateway selected by cfg.Provider.
func New(cfg types.AIConfig, log *zap.Logger) (Gateway, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Provider {
	case types.ProviderAnthropic:
		return NewClaudeBackend(cfg), nil
	case types.ProviderOpenAI:
		return NewAssistantBackend(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q (want %q or %q)",
			cfg.Provider, types.ProviderAnthropic, types.ProviderOpenAI)
	}
}

func displayName(cfg types.AIConfig, fallback string) string {
	if cfg.DisplayName != "" {
		return cfg.DisplayName
	}
	return fallback
}
