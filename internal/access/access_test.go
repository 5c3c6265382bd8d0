// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package access

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/article-bot/internal/artifact"
	"github.com/pdiddy/article-bot/internal/bot"
	"github.com/pdiddy/article-bot/pkg/types"
)

type recorder struct {
	mu      sync.Mutex
	replies []bot.Reply
}

func (r *recorder) Send(_ context.Context, _ int64, reply bot.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply)
	return nil
}

func (r *recorder) Typing(context.Context, int64) error { return nil }

func (r *recorder) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not supported")
}

func TestNewGuard_EmptyList(t *testing.T) {
	for _, list := range [][]string{nil, {}, {"", " ", "@"}} {
		_, err := NewGuard(list, &recorder{}, nil)
		assert.True(t, errors.Is(err, ErrEmptyAllowList), "%q", list)
	}
}

func TestAllowed(t *testing.T) {
	g, err := NewGuard([]string{"@Alice", "bob", "12345"}, &recorder{}, nil)
	require.NoError(t, err)

	tests := []struct {
		sender bot.Sender
		want   bool
	}{
		{bot.Sender{Username: "alice"}, true},
		{bot.Sender{Username: "ALICE"}, true},
		{bot.Sender{Username: "bob", ID: 7}, true},
		{bot.Sender{ID: 12345}, true},
		{bot.Sender{Username: "mallory", ID: 99}, false},
		{bot.Sender{}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.Allowed(tt.sender), "%+v", tt.sender)
	}
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"alice", "@bob", "42"}, ParseList("alice, @bob;42\n"))
	assert.Empty(t, ParseList(""))
}

func TestWrap(t *testing.T) {
	rec := &recorder{}
	g, err := NewGuard([]string{"alice"}, rec, zaptest.NewLogger(t))
	require.NoError(t, err)

	calls := 0
	h := g.Wrap(func(context.Context, bot.Event) error {
		calls++
		return nil
	})

	require.NoError(t, h(context.Background(), bot.Event{Sender: bot.Sender{Username: "alice"}, Command: "start"}))
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.replies)

	require.NoError(t, h(context.Background(), bot.Event{Sender: bot.Sender{Username: "eve"}, Command: "resumo"}))
	assert.Equal(t, 1, calls)
	require.Len(t, rec.replies, 1)
	assert.Equal(t, bot.MsgAccessDenied, rec.replies[0].Text)
	assert.Equal(t, bot.FormatPlain, rec.replies[0].Format)
}

type countingAnswerer struct{ calls int }

func (c *countingAnswerer) Provider() string { return "Claude" }

func (c *countingAnswerer) Answer(context.Context, types.AnswerRequest) (string, error) {
	c.calls++
	return "resumo", nil
}

type staticExtractor struct{}

func (staticExtractor) Extract(_ context.Context, job types.UploadJob) (string, error) {
	path := filepath.Join(job.Dir, artifact.ExtractedName(job.FileName))
	return path, os.WriteFile(path, []byte("<TEI/>"), 0o644)
}

func TestUnauthorizedSummarizeNeverReachesGateway(t *testing.T) {
	rec := &recorder{}
	g, err := NewGuard([]string{"alice"}, rec, zaptest.NewLogger(t))
	require.NoError(t, err)

	ans := &countingAnswerer{}
	orch, err := bot.New(bot.Deps{
		Transport:  rec,
		Store:      artifact.NewStore(t.TempDir()),
		Extractor:  staticExtractor{},
		Answerer:   ans,
		Middleware: []bot.Middleware{g.Middleware()},
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	err = orch.Handle(context.Background(), bot.Event{
		Session: 10,
		Sender:  bot.Sender{ID: 10, Username: "mallory"},
		Command: "resumo",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, ans.calls)
	require.Len(t, rec.replies, 1)
	assert.Equal(t, bot.MsgAccessDenied, rec.replies[0].Text)
	assert.False(t, orch.State(10).HasArticle())
}
