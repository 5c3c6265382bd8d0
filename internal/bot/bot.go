// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bot implements the conversation: it classifies inbound events,
// keeps per-session state, and drives the extraction and answer gateways.
//
// Turns of one session run one at a time in arrival order. Turns of
// different sessions run concurrently. Every failure inside a turn becomes
// a chat reply; Handle only returns transport errors.
package bot

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/article-bot/internal/answer"
	"github.com/pdiddy/article-bot/internal/artifact"
	"github.com/pdiddy/article-bot/internal/metrics"
	"github.com/pdiddy/article-bot/pkg/types"
)

// ErrNoArticle is logged when a turn needs an article the session lacks.
var ErrNoArticle = errors.New("no article uploaded in this session")

// Transport delivers replies and fetches uploaded files.
type Transport interface {
	Send(ctx context.Context, session int64, r Reply) error
	Typing(ctx context.Context, session int64) error
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Extractor turns an upload into a verified TEI artifact path.
type Extractor interface {
	Extract(ctx context.Context, job types.UploadJob) (string, error)
}

// Catalog records processed articles and their summaries.
type Catalog interface {
	Record(ctx context.Context, session string, ref types.ArticleRef) error
	SaveSummary(ctx context.Context, uploadID, summary string) error
}

// HandlerFunc handles one event.
type HandlerFunc func(ctx context.Context, ev Event) error

// Middleware wraps a handler; it runs before any turn logic.
type Middleware func(next HandlerFunc) HandlerFunc

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Transport Transport
	Store     *artifact.Store
	Extractor Extractor
	Answerer  answer.Gateway

	// Catalog is optional.
	Catalog Catalog

	// Middleware runs outermost first.
	Middleware []Middleware

	// SummaryTopics overrides the default /resumo topics.
	SummaryTopics []string

	// Version and Contact appear in the help message.
	Version string
	Contact string

	Logger *zap.Logger
}

// Orchestrator owns the per-session state and dispatches events.
type Orchestrator struct {
	deps    Deps
	log     *zap.Logger
	handler HandlerFunc
	now     func() time.Time

	mu       sync.Mutex
	sessions map[int64]*session
}

// session is the state of one chat and the tail of its turn queue.
type session struct {
	state types.ConversationState
	tail  chan struct{}
}

// New builds an Orchestrator. Transport, Store, Extractor and Answerer are
// required.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Transport == nil:
		return nil, errors.New("bot: transport is required")
	case deps.Store == nil:
		return nil, errors.New("bot: artifact store is required")
	case deps.Extractor == nil:
		return nil, errors.New("bot: extractor is required")
	case deps.Answerer == nil:
		return nil, errors.New("bot: answer gateway is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}

	o := &Orchestrator{
		deps:     deps,
		log:      deps.Logger.With(zap.String("component", "bot")),
		now:      time.Now,
		sessions: make(map[int64]*session),
	}

	h := HandlerFunc(o.dispatch)
	for i := len(deps.Middleware) - 1; i >= 0; i-- {
		h = deps.Middleware[i](h)
	}
	o.handler = h
	return o, nil
}

// Handle runs the middleware chain and then the turn for ev.
func (o *Orchestrator) Handle(ctx context.Context, ev Event) error {
	return o.handler(ctx, ev)
}

// State returns a copy of the session's state.
func (o *Orchestrator) State(id int64) types.ConversationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[id]
	if !ok {
		return types.ConversationState{}
	}
	st := s.state
	if st.Article != nil {
		ref := *st.Article
		st.Article = &ref
	}
	return st
}

func (o *Orchestrator) updateState(id int64, fn func(*types.ConversationState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.sessionLocked(id)
	fn(&s.state)
	s.state.UpdatedAt = o.now()
}

func (o *Orchestrator) sessionLocked(id int64) *session {
	s, ok := o.sessions[id]
	if !ok {
		s = &session{}
		o.sessions[id] = s
	}
	return s
}

// acquire queues a turn behind the session's previous turn and waits for
// it. The returned release must be called when the turn finishes.
func (o *Orchestrator) acquire(ctx context.Context, id int64) (release func(), err error) {
	o.mu.Lock()
	s := o.sessionLocked(id)
	prev := s.tail
	done := make(chan struct{})
	s.tail = done
	o.mu.Unlock()

	release = func() { close(done) }
	if prev == nil {
		return release, nil
	}
	select {
	case <-prev:
		return release, nil
	case <-ctx.Done():
		// Keep the queue intact for later turns.
		go func() {
			<-prev
			close(done)
		}()
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, ev Event) error {
	kind := ev.Kind()
	if kind == KindIgnored {
		return nil
	}

	release, err := o.acquire(ctx, ev.Session)
	if err != nil {
		return err
	}
	defer release()

	metrics.TurnsActive.Inc()
	defer metrics.TurnsActive.Dec()

	log := o.log.With(
		zap.Int64("session", ev.Session),
		zap.String("kind", kind.String()),
		zap.String("user", ev.Sender.Username),
	)

	outcome := metrics.OutcomeOK
	switch kind {
	case KindStart:
		err = o.send(ctx, ev.Session, Plain(msgWelcome))
	case KindHelp:
		err = o.send(ctx, ev.Session, Markdown(HelpText(o.deps.Answerer.Provider(), o.deps.Version, o.deps.Contact)))
	case KindDocument:
		outcome, err = o.handleDocument(ctx, ev, log)
	case KindSummarize:
		outcome, err = o.handleSummarize(ctx, ev, log)
	case KindText:
		outcome, err = o.handleText(ctx, ev, log)
	}
	if err != nil {
		outcome = metrics.OutcomeError
		log.Error("sending reply", zap.Error(err))
	}
	metrics.TurnsTotal.WithLabelValues(kind.String(), outcome).Inc()
	return err
}

func (o *Orchestrator) send(ctx context.Context, id int64, r Reply) error {
	return o.deps.Transport.Send(ctx, id, r)
}

func sessionKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
