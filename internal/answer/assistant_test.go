// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package answer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/article-bot/pkg/types"
)

// fakeAssistants records calls and replays scripted run states.
type fakeAssistants struct {
	mu        sync.Mutex
	uploaded  string
	message   string
	statuses  []string
	lastError string
	reply     string
	uploadErr error
	maxTokens int
	deleted   []string
}

func (f *fakeAssistants) UploadFile(_ context.Context, path string) (string, error) {
	f.uploaded = path
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "file-1", nil
}

func (f *fakeAssistants) CreateAssistant(context.Context, string, string, string) (string, error) {
	return "asst-1", nil
}

func (f *fakeAssistants) CreateThread(context.Context) (string, error) { return "thread-1", nil }

func (f *fakeAssistants) AddMessage(_ context.Context, _, content, _ string) error {
	f.message = content
	return nil
}

func (f *fakeAssistants) CreateRun(_ context.Context, _, _ string, maxTokens int) (Run, error) {
	f.maxTokens = maxTokens
	return f.next(), nil
}

func (f *fakeAssistants) GetRun(context.Context, string, string) (Run, error) {
	return f.next(), nil
}

func (f *fakeAssistants) next() Run {
	status := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return Run{ID: "run-1", Status: status, LastError: f.lastError}
}

func (f *fakeAssistants) LatestMessage(context.Context, string) (string, error) {
	return f.reply, nil
}

func (f *fakeAssistants) DeleteAssistant(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAssistants) DeleteFile(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestAssistant(t *testing.T, api assistantAPI) *AssistantBackend {
	return &AssistantBackend{
		Model:        DefaultOpenAIModel,
		Name:         "GPT-4o mini",
		PollInterval: time.Millisecond,
		Timeout:      100 * time.Millisecond,
		MaxTokens:    512,
		Logger:       zaptest.NewLogger(t),
		api:          api,
	}
}

// teiWithHeader is a TEI document carrying the bibliographic data a
// summary asks for: authors, date, publisher and two references.
const teiWithHeader = `<TEI xmlns="http://www.tei-c.org/ns/1.0"><teiHeader><fileDesc>
<titleStmt><title>Deep Learning</title></titleStmt>
<publicationStmt><publisher>Nature</publisher><date when="2015-05-28">2015</date></publicationStmt>
<sourceDesc><biblStruct><analytic><author><persName><forename>Yann</forename><surname>LeCun</surname></persName></author></analytic></biblStruct></sourceDesc>
</fileDesc></teiHeader><text><body><p>Body.</p></body><back><listBibl>
<biblStruct xml:id="b0"><analytic><title>Ref one</title></analytic></biblStruct>
<biblStruct xml:id="b1"><analytic><title>Ref two</title></analytic></biblStruct>
</listBibl></back></text></TEI>`

// articleWithDigest writes a full TEI file and a reduced JSON digest next
// to it, as the orchestrator does after extraction.
func articleWithDigest(t *testing.T) types.ArticleRef {
	ref := writeArticle(t)
	require.NoError(t, os.WriteFile(ref.TEIPath, []byte(teiWithHeader), 0o644))
	ref.DigestPath = filepath.Join(ref.Dir, "paper.json")
	require.NoError(t, os.WriteFile(ref.DigestPath, []byte(`{"title":"Deep Learning"}`), 0o644))
	return ref
}

func TestAssistantBackend_Completed(t *testing.T) {
	api := &fakeAssistants{
		statuses: []string{RunQueued, RunInProgress, RunCompleted},
		reply:    "Resposta【3:1†paper.json】\n\n\n\nfim",
	}
	ref := articleWithDigest(t)

	text, err := newTestAssistant(t, api).Answer(context.Background(), types.AnswerRequest{
		Instruction: "pergunta",
		Article:     ref,
	})
	require.NoError(t, err)
	assert.Equal(t, "Resposta\n\nfim", text)
	assert.Equal(t, ref.TEIPath, api.uploaded, "the full TEI is uploaded, not the digest")
	assert.Equal(t, "pergunta", api.message)
	assert.Equal(t, 512, api.maxTokens)
	assert.ElementsMatch(t, []string{"asst-1", "file-1"}, api.deleted)
}

func TestAssistantBackend_WithoutDigest(t *testing.T) {
	api := &fakeAssistants{statuses: []string{RunCompleted}, reply: "ok"}
	ref := writeArticle(t)

	_, err := newTestAssistant(t, api).Answer(context.Background(), types.AnswerRequest{Article: ref})
	require.NoError(t, err)
	assert.Equal(t, ref.TEIPath, api.uploaded)
}

func TestNewAssistantBackend_MaxTokens(t *testing.T) {
	assert.Equal(t, defaultMaxTokens, NewAssistantBackend(types.AIConfig{APIKey: "k"}, nil).MaxTokens)
	assert.Equal(t, 300, NewAssistantBackend(types.AIConfig{APIKey: "k", MaxTokens: 300}, nil).MaxTokens)
}

func TestAssistantBackend_Errors(t *testing.T) {
	tests := []struct {
		name    string
		api     *fakeAssistants
		wantErr error
	}{
		{
			name:    "run failed",
			api:     &fakeAssistants{statuses: []string{RunInProgress, RunFailed}, lastError: "rate_limit_exceeded"},
			wantErr: ErrRunFailed,
		},
		{
			name:    "run expired",
			api:     &fakeAssistants{statuses: []string{RunExpired}},
			wantErr: ErrRunFailed,
		},
		{
			name:    "never terminal",
			api:     &fakeAssistants{statuses: []string{RunInProgress}},
			wantErr: ErrRunTimeout,
		},
		{
			name:    "empty reply",
			api:     &fakeAssistants{statuses: []string{RunCompleted}, reply: "【1:0†x】 \n"},
			wantErr: ErrEmptyAnswer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestAssistant(t, tt.api).Answer(context.Background(), types.AnswerRequest{Article: writeArticle(t)})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var f *Failure
			require.True(t, errors.As(err, &f))
			assert.Equal(t, "GPT-4o mini", f.Provider)
			assert.Len(t, tt.api.deleted, 2)
		})
	}
}

func TestAssistantBackend_UploadFailureCreatesNothing(t *testing.T) {
	api := &fakeAssistants{uploadErr: errors.New("quota exceeded")}

	_, err := newTestAssistant(t, api).Answer(context.Background(), types.AnswerRequest{Article: writeArticle(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GPT-4o mini: uploading paper.grobid.tei.xml: quota exceeded")
	assert.Empty(t, api.deleted)
}

func TestOpenAIAssistants_SessionProtocol(t *testing.T) {
	var (
		mu         sync.Mutex
		paths      []string
		uploadName string
		uploadBody string
		runBody    map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		switch r.Method + " " + r.URL.Path {
		case "POST /files":
			if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
				assert.Equal(t, "assistants", r.FormValue("purpose"))
				f, hdr, err := r.FormFile("file")
				if assert.NoError(t, err) {
					data, _ := io.ReadAll(f)
					f.Close()
					uploadName, uploadBody = hdr.Filename, string(data)
				}
			}
			w.Write([]byte(`{"id":"file-1","object":"file","bytes":3,"created_at":1,"filename":"paper.json","purpose":"assistants","status":"processed"}`))
		case "POST /assistants":
			assert.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))
			w.Write([]byte(`{"id":"asst-1"}`))
		case "POST /threads":
			w.Write([]byte(`{"id":"thread-1"}`))
		case "POST /threads/thread-1/messages":
			w.Write([]byte(`{"id":"msg-1"}`))
		case "POST /threads/thread-1/runs":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&runBody))
			w.Write([]byte(`{"id":"run-1","status":"queued"}`))
		case "GET /threads/thread-1/runs/run-1":
			w.Write([]byte(`{"id":"run-1","status":"completed"}`))
		case "GET /threads/thread-1/messages":
			assert.Equal(t, "desc", r.URL.Query().Get("order"))
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			w.Write([]byte(`{"data":[{"content":[{"type":"text","text":{"value":"resposta"}}]}]}`))
		case "DELETE /assistants/asst-1", "DELETE /files/file-1":
			w.Write([]byte(`{"deleted":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	b := NewAssistantBackend(types.AIConfig{
		Provider:     types.ProviderOpenAI,
		APIKey:       "sk-test",
		BaseURL:      srv.URL + "/",
		MaxTokens:    1024,
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
	}, zaptest.NewLogger(t))

	text, err := b.Answer(context.Background(), types.AnswerRequest{
		Instruction: "pergunta",
		Article:     articleWithDigest(t),
	})
	require.NoError(t, err)
	assert.Equal(t, "resposta", text)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "POST /threads/thread-1/runs")
	assert.Equal(t, "asst-1", runBody["assistant_id"])
	assert.EqualValues(t, 1024, runBody["max_completion_tokens"])

	assert.Equal(t, "paper.grobid.tei.xml.txt", uploadName)
	assert.Contains(t, uploadBody, "<surname>LeCun</surname>", "authors reach the uploaded file")
	assert.Contains(t, uploadBody, "<publisher>Nature</publisher>")
	assert.Equal(t, 2, strings.Count(uploadBody, `<biblStruct xml:id=`), "every reference reaches the uploaded file")
	assert.Contains(t, paths, "DELETE /assistants/asst-1")
	assert.Contains(t, paths, "DELETE /files/file-1")
}
