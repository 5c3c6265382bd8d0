// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package answer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/article-bot/pkg/types"
)

// openaiAssistants implements assistantAPI with the openai-go client. File
// uploads use the typed Files service; the assistants endpoints are called
// through the client's generic request methods with the v2 beta header.
type openaiAssistants struct {
	client openai.Client
}

func newOpenAIAssistants(cfg types.AIConfig) *openaiAssistants {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHeader("OpenAI-Beta", "assistants=v2"),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &openaiAssistants{client: openai.NewClient(opts...)}
}

type objectID struct {
	ID string `json:"id"`
}

type fileSearchTool struct {
	Type string `json:"type"`
}

var fileSearch = []fileSearchTool{{Type: "file_search"}}

type assistantParams struct {
	Model        string           `json:"model"`
	Name         string           `json:"name"`
	Instructions string           `json:"instructions"`
	Tools        []fileSearchTool `json:"tools"`
}

type messageAttachment struct {
	FileID string           `json:"file_id"`
	Tools  []fileSearchTool `json:"tools"`
}

type messageParams struct {
	Role        string              `json:"role"`
	Content     string              `json:"content"`
	Attachments []messageAttachment `json:"attachments,omitempty"`
}

type runParams struct {
	AssistantID         string `json:"assistant_id"`
	MaxCompletionTokens int    `json:"max_completion_tokens,omitempty"`
}

type runObject struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

func (r runObject) run() Run {
	out := Run{ID: r.ID, Status: r.Status}
	if r.LastError != nil {
		out.LastError = strings.TrimSpace(r.LastError.Code + " " + r.LastError.Message)
	}
	return out
}

type messageList struct {
	Data []struct {
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// UploadFile uploads path with purpose "assistants". XML files are sent
// with a .txt name, which file search accepts.
func (o *openaiAssistants) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(name), ".xml") {
		name += ".txt"
	}

	file, err := o.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(f, name, "application/octet-stream"),
		Purpose: openai.FilePurposeAssistants,
	})
	if err != nil {
		return "", err
	}
	return file.ID, nil
}

func (o *openaiAssistants) CreateAssistant(ctx context.Context, model, name, instructions string) (string, error) {
	var res objectID
	err := o.client.Post(ctx, "assistants", assistantParams{
		Model:        model,
		Name:         name,
		Instructions: instructions,
		Tools:        fileSearch,
	}, &res)
	return res.ID, err
}

func (o *openaiAssistants) CreateThread(ctx context.Context) (string, error) {
	var res objectID
	err := o.client.Post(ctx, "threads", struct{}{}, &res)
	return res.ID, err
}

func (o *openaiAssistants) AddMessage(ctx context.Context, threadID, content, fileID string) error {
	params := messageParams{Role: "user", Content: content}
	if fileID != "" {
		params.Attachments = []messageAttachment{{FileID: fileID, Tools: fileSearch}}
	}
	var res objectID
	return o.client.Post(ctx, "threads/"+threadID+"/messages", params, &res)
}

func (o *openaiAssistants) CreateRun(ctx context.Context, threadID, assistantID string, maxTokens int) (Run, error) {
	var res runObject
	params := runParams{AssistantID: assistantID, MaxCompletionTokens: maxTokens}
	if err := o.client.Post(ctx, "threads/"+threadID+"/runs", params, &res); err != nil {
		return Run{}, err
	}
	return res.run(), nil
}

func (o *openaiAssistants) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	var res runObject
	if err := o.client.Get(ctx, "threads/"+threadID+"/runs/"+runID, nil, &res); err != nil {
		return Run{}, err
	}
	return res.run(), nil
}

// LatestMessage returns the text of the newest message in the thread.
func (o *openaiAssistants) LatestMessage(ctx context.Context, threadID string) (string, error) {
	var res messageList
	err := o.client.Get(ctx, "threads/"+threadID+"/messages", nil, &res,
		option.WithQuery("order", "desc"),
		option.WithQuery("limit", "1"),
	)
	if err != nil {
		return "", err
	}
	if len(res.Data) == 0 {
		return "", errors.New("thread has no messages")
	}
	for _, c := range res.Data[0].Content {
		if c.Type == "text" {
			return c.Text.Value, nil
		}
	}
	return "", fmt.Errorf("latest message has no text content")
}

func (o *openaiAssistants) DeleteAssistant(ctx context.Context, assistantID string) error {
	return o.client.Delete(ctx, "assistants/"+assistantID, nil, nil)
}

func (o *openaiAssistants) DeleteFile(ctx context.Context, fileID string) error {
	return o.client.Delete(ctx, "files/"+fileID, nil, nil)
}
