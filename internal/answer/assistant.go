// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package answer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/article-bot/internal/httputil"
	"github.com/pdiddy/article-bot/pkg/types"
)

const (
	assistantName         = "TEI/XML Scientific Article Assistant"
	assistantInstructions = "You are an assistant specialized in scientific articles in TEI/XML format. Use the content of the uploaded files to answer the user's questions."

	defaultRunPollInterval = time.Second
	defaultRunTimeout      = 60 * time.Second
)

var (
	// ErrRunTimeout means the run did not reach a terminal state in time.
	ErrRunTimeout = errors.New("assistant run timed out")

	// ErrRunFailed means the run ended in a state other than completed.
	ErrRunFailed = errors.New("assistant run did not complete")

	// ErrEmptyAnswer means the thread holds no text reply.
	ErrEmptyAnswer = errors.New("assistant returned no text")
)

// Run states reported by the assistants API.
const (
	RunQueued         = "queued"
	RunInProgress     = "in_progress"
	RunRequiresAction = "requires_action"
	RunCancelling     = "cancelling"
	RunCancelled      = "cancelled"
	RunFailed         = "failed"
	RunCompleted      = "completed"
	RunIncomplete     = "incomplete"
	RunExpired        = "expired"
)

// Run is the state of one assistant run.
type Run struct {
	ID        string
	Status    string
	LastError string
}

// Terminal reports whether the run will not change state anymore.
func (r Run) Terminal() bool {
	switch r.Status {
	case RunCompleted, RunFailed, RunCancelled, RunExpired, RunIncomplete:
		return true
	}
	return false
}

// assistantAPI is the subset of the assistants API the session protocol
// needs. The production implementation is openaiAssistants.
type assistantAPI interface {
	UploadFile(ctx context.Context, path string) (string, error)
	CreateAssistant(ctx context.Context, model, name, instructions string) (string, error)
	CreateThread(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, threadID, content, fileID string) error
	CreateRun(ctx context.Context, threadID, assistantID string, maxTokens int) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	LatestMessage(ctx context.Context, threadID string) (string, error)
	DeleteAssistant(ctx context.Context, assistantID string) error
	DeleteFile(ctx context.Context, fileID string) error
}

// AssistantBackend answers through an assistant session: upload the
// article, create an assistant and a thread, post the instruction, then
// poll the run and read the newest message.
type AssistantBackend struct {
	Model        string
	Name         string
	PollInterval time.Duration
	Timeout      time.Duration

	// MaxTokens bounds the completion tokens of one run.
	MaxTokens int

	Logger *zap.Logger

	api assistantAPI
}

// NewAssistantBackend builds an AssistantBackend over the OpenAI API.
func NewAssistantBackend(cfg types.AIConfig, log *zap.Logger) *AssistantBackend {
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultRunPollInterval
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AssistantBackend{
		Model:        model,
		Name:         displayName(cfg, "GPT-4o mini"),
		PollInterval: interval,
		Timeout:      timeout,
		MaxTokens:    maxTokens,
		Logger:       log.With(zap.String("component", "assistant")),
		api:          newOpenAIAssistants(cfg),
	}
}

// Provider returns the display name of the model.
func (a *AssistantBackend) Provider() string { return a.Name }

// Answer runs one assistant session for req.
func (a *AssistantBackend) Answer(ctx context.Context, req types.AnswerRequest) (string, error) {
	text, err := a.answer(ctx, req)
	if err != nil {
		return "", &Failure{Provider: a.Name, Err: err}
	}
	return text, nil
}

func (a *AssistantBackend) answer(ctx context.Context, req types.AnswerRequest) (string, error) {
	path := articleFile(req.Article)
	if path == "" {
		return "", errors.New("no article file to upload")
	}

	fileID, err := a.api.UploadFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
	}
	defer a.cleanup("file", fileID, a.api.DeleteFile)

	assistantID, err := a.api.CreateAssistant(ctx, a.Model, assistantName, assistantInstructions)
	if err != nil {
		return "", fmt.Errorf("creating assistant: %w", err)
	}
	defer a.cleanup("assistant", assistantID, a.api.DeleteAssistant)

	threadID, err := a.api.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}

	if err := a.api.AddMessage(ctx, threadID, req.Instruction, fileID); err != nil {
		return "", fmt.Errorf("posting message: %w", err)
	}

	run, err := a.api.CreateRun(ctx, threadID, assistantID, a.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}

	err = httputil.Poll(ctx, a.PollInterval, a.Timeout, func(ctx context.Context) (bool, error) {
		if run.Terminal() {
			return true, nil
		}
		run, err = a.api.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return false, fmt.Errorf("polling run: %w", err)
		}
		return run.Terminal(), nil
	})
	if errors.Is(err, httputil.ErrPollTimeout) {
		return "", fmt.Errorf("%w after %s (status %s)", ErrRunTimeout, a.Timeout, run.Status)
	}
	if err != nil {
		return "", err
	}

	if run.Status != RunCompleted {
		if run.LastError != "" {
			return "", fmt.Errorf("%w: %s: %s", ErrRunFailed, run.Status, run.LastError)
		}
		return "", fmt.Errorf("%w: %s", ErrRunFailed, run.Status)
	}

	text, err := a.api.LatestMessage(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	text = Clean(text)
	if text == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}

// cleanup deletes a provider-side resource. It runs on a fresh context so a
// cancelled turn still releases what it created.
func (a *AssistantBackend) cleanup(kind, id string, del func(context.Context, string) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := del(ctx, id); err != nil {
		a.Logger.Warn("deleting provider resource", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
	}
}

// articleFile is the file uploaded for file search. It is always the full
// TEI document: the header, body and bibliography the prompts refer to.
func articleFile(ref types.ArticleRef) string {
	return ref.TEIPath
}
