// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pdiddy/article-bot/internal/httputil"
	"github.com/pdiddy/article-bot/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const anthropicVersion = "2023-06-01"

// ClaudeBackend answers with one Messages API request that carries the
// instruction and the TEI document as a plain-text document block.
type ClaudeBackend struct {
	APIKey     string
	Endpoint   string // defaults to claudeAPIURL
	Model      string
	Name       string
	MaxTokens  int
	MaxRetries int
	Client     *http.Client
}

// NewClaudeBackend builds a ClaudeBackend from configuration.
func NewClaudeBackend(cfg types.AIConfig) *ClaudeBackend {
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ClaudeBackend{
		APIKey:     cfg.APIKey,
		Endpoint:   cfg.BaseURL,
		Model:      model,
		Name:       displayName(cfg, "Claude 3.5 Haiku"),
		MaxTokens:  maxTokens,
		MaxRetries: cfg.MaxRetries,
		Client:     &http.Client{Timeout: timeout},
	}
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

// claudeBlock is a text or document content block.
type claudeBlock struct {
	Type   string        `json:"type"`
	Text   string        `json:"text,omitempty"`
	Source *claudeSource `json:"source,omitempty"`
}

type claudeSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Provider returns the display name of the model.
func (c *ClaudeBackend) Provider() string { return c.Name }

// Answer sends the instruction and the article's TEI XML in one request.
func (c *ClaudeBackend) Answer(ctx context.Context, req types.AnswerRequest) (string, error) {
	text, err := c.answer(ctx, req)
	if err != nil {
		return "", &Failure{Provider: c.Name, Err: err}
	}
	return text, nil
}

func (c *ClaudeBackend) answer(ctx context.Context, req types.AnswerRequest) (string, error) {
	tei, err := os.ReadFile(req.Article.TEIPath)
	if err != nil {
		return "", fmt.Errorf("reading article: %w", err)
	}

	reqBody := claudeRequest{
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Messages: []claudeMessage{{
			Role: "user",
			Content: []claudeBlock{
				{Type: "text", Text: req.Instruction},
				{Type: "document", Source: &claudeSource{
					Type:      "text",
					MediaType: "text/plain",
					Data:      string(tei),
				}},
			},
		}},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = claudeAPIURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := httputil.DoWithRetry(ctx, c.Client, httpReq, c.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", httputil.ReadError("Claude API", resp)
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	for _, block := range cResp.Content {
		if block.Type == "text" {
			return Clean(block.Text), nil
		}
	}
	return "", errors.New("no text content in Claude API response")
}
