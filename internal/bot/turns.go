// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/article-bot/internal/answer"
	"github.com/pdiddy/article-bot/internal/grobid"
	"github.com/pdiddy/article-bot/internal/metrics"
	"github.com/pdiddy/article-bot/pkg/types"
)

// handleDocument stores the upload, extracts it and, on success, makes it
// the session's article. The returned error is a transport error; turn
// failures are reported to the user and reflected in the outcome.
func (o *Orchestrator) handleDocument(ctx context.Context, ev Event, log *zap.Logger) (string, error) {
	doc := ev.Document
	job, err := o.deps.Store.BeginUpload(sessionKey(ev.Session), doc.FileName)
	if err != nil {
		log.Error("creating upload directory", zap.Error(err))
		return metrics.OutcomeError, o.send(ctx, ev.Session, diagnostic(msgDownloadFailed, err))
	}
	log = log.With(zap.String("upload", job.ID), zap.String("file", job.FileName))

	if err := o.download(ctx, doc.FileID, job.SourcePath); err != nil {
		log.Error("downloading document", zap.Error(err))
		return metrics.OutcomeError, o.send(ctx, ev.Session, diagnostic(msgDownloadFailed, err))
	}
	if err := o.deps.Store.WriteManifest(job); err != nil {
		log.Warn("writing upload manifest", zap.Error(err))
	}

	if err := o.send(ctx, ev.Session, Plain(msgProcessing)); err != nil {
		return metrics.OutcomeError, err
	}
	o.typing(ctx, ev.Session, log)

	teiPath, err := o.deps.Extractor.Extract(ctx, job)
	switch {
	case errors.Is(err, grobid.ErrOutputMissing):
		log.Warn("extraction produced no output", zap.Error(err))
		return metrics.OutcomeError, o.send(ctx, ev.Session, Plain(msgOutputMissing))
	case err != nil:
		log.Warn("extraction failed", zap.Error(err))
		return metrics.OutcomeError, o.send(ctx, ev.Session, diagnostic(msgUnreachable, err))
	}

	job.Extracted = teiPath
	if err := o.deps.Store.WriteManifest(job); err != nil {
		log.Warn("writing upload manifest", zap.Error(err))
	}

	ref := types.ArticleRef{
		UploadID:   job.ID,
		Dir:        job.Dir,
		FileName:   job.FileName,
		SourcePath: job.SourcePath,
		TEIPath:    teiPath,
	}
	if digest, title, err := o.deps.Store.WriteDigest(teiPath); err != nil {
		log.Warn("writing article digest", zap.Error(err))
	} else {
		ref.DigestPath, ref.Title = digest, title
	}

	o.updateState(ev.Session, func(st *types.ConversationState) {
		st.Article = &ref
		st.LastSummary = ""
	})
	log.Info("article ready", zap.String("tei", teiPath), zap.String("title", ref.Title))

	if o.deps.Catalog != nil {
		if err := o.deps.Catalog.Record(ctx, sessionKey(ev.Session), ref); err != nil {
			log.Warn("recording article in catalog", zap.Error(err))
		}
	}

	return metrics.OutcomeOK, o.send(ctx, ev.Session, Plain(msgProcessed))
}

func (o *Orchestrator) download(ctx context.Context, fileID, dest string) error {
	rc, err := o.deps.Transport.Download(ctx, fileID)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = o.deps.Store.SaveIncoming(rc, dest)
	return err
}

func (o *Orchestrator) handleSummarize(ctx context.Context, ev Event, log *zap.Logger) (string, error) {
	st := o.State(ev.Session)
	if !st.HasArticle() {
		log.Info("summary requested", zap.Error(ErrNoArticle))
		return metrics.OutcomeOK, o.send(ctx, ev.Session, Plain(msgNoArticleSummary))
	}

	summary, failed, err := o.ask(ctx, ev.Session, answer.SummaryInstruction(o.deps.SummaryTopics), *st.Article, log)
	if err != nil || failed {
		return metrics.OutcomeError, err
	}

	o.updateState(ev.Session, func(st *types.ConversationState) {
		st.LastSummary = summary
	})
	if o.deps.Catalog != nil {
		if err := o.deps.Catalog.SaveSummary(ctx, st.Article.UploadID, summary); err != nil {
			log.Warn("saving summary in catalog", zap.Error(err))
		}
	}

	if err := o.send(ctx, ev.Session, summaryReply(summary)); err != nil {
		return metrics.OutcomeError, err
	}
	return metrics.OutcomeOK, o.send(ctx, ev.Session, Plain(msgFollowUp))
}

func (o *Orchestrator) handleText(ctx context.Context, ev Event, log *zap.Logger) (string, error) {
	st := o.State(ev.Session)
	if !st.HasArticle() {
		log.Info("question received", zap.Error(ErrNoArticle))
		return metrics.OutcomeOK, o.send(ctx, ev.Session, Plain(msgNoArticleText))
	}

	text, failed, err := o.ask(ctx, ev.Session, answer.QuestionInstruction(ev.Text), *st.Article, log)
	if err != nil || failed {
		return metrics.OutcomeError, err
	}
	return metrics.OutcomeOK, o.send(ctx, ev.Session, Plain(text))
}

// ask acknowledges the request, calls the answer gateway and reports a
// gateway failure to the user. failed is true when the gateway failed and
// the diagnostic was sent.
func (o *Orchestrator) ask(ctx context.Context, id int64, instruction string, ref types.ArticleRef, log *zap.Logger) (text string, failed bool, err error) {
	provider := o.deps.Answerer.Provider()
	if err := o.send(ctx, id, Plain(fmt.Sprintf(msgGenerating, provider))); err != nil {
		return "", false, err
	}
	o.typing(ctx, id, log)

	start := time.Now()
	text, aerr := o.deps.Answerer.Answer(ctx, types.AnswerRequest{Instruction: instruction, Article: ref})
	outcome := metrics.OutcomeOK
	if aerr != nil {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveSince(metrics.AnswerDuration.WithLabelValues(provider, outcome), start)

	if aerr != nil {
		log.Warn("answer failed", zap.String("provider", provider), zap.Error(aerr))
		var f *answer.Failure
		if !errors.As(aerr, &f) {
			aerr = &answer.Failure{Provider: provider, Err: aerr}
		}
		return "", true, o.send(ctx, id, diagnostic("%v", aerr))
	}
	return text, false, nil
}

func (o *Orchestrator) typing(ctx context.Context, id int64, log *zap.Logger) {
	if err := o.deps.Transport.Typing(ctx, id); err != nil {
		log.Debug("sending chat action", zap.Error(err))
	}
}
