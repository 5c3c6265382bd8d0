// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package grobid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/article-bot/internal/artifact"
	"github.com/pdiddy/article-bot/internal/metrics"
	"github.com/pdiddy/article-bot/pkg/types"
)

var (
	// ErrUnreachable means the server could not be contacted, reported it
	// was not alive, or stayed busy past the timeout.
	ErrUnreachable = errors.New("grobid server unreachable")

	// ErrOutputMissing means the server finished but the expected TEI file
	// was not written.
	ErrOutputMissing = errors.New("tei output was not generated")
)

// Extractor runs one upload through GROBID and verifies its artifact.
type Extractor struct {
	Client *Client
	Store  *artifact.Store
	Logger *zap.Logger
}

// NewExtractor returns an Extractor over client and store.
func NewExtractor(client *Client, store *artifact.Store, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{Client: client, Store: store, Logger: log}
}

// Extract converts the job's PDF and returns the path of its TEI file. The
// path is returned only after the file was found on disk.
func (e *Extractor) Extract(ctx context.Context, job types.UploadJob) (path string, err error) {
	start := time.Now()
	log := e.Logger.With(zap.String("upload", job.ID), zap.String("file", job.FileName))
	defer func() {
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.ObserveSince(metrics.ExtractionDuration.WithLabelValues(outcome), start)
	}()

	if err := e.Client.IsAlive(ctx); err != nil {
		log.Warn("grobid health check failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	sum, err := e.Client.Process(ctx, job.Dir)
	if err != nil {
		log.Warn("grobid processing aborted", zap.Error(err))
		return "", err
	}
	log.Info("grobid batch finished",
		zap.Int("processed", sum.Processed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Duration("elapsed", time.Since(start)))

	path, ok := e.Store.LocateExtracted(job.Dir, job.FileName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrOutputMissing, path)
	}
	return path, nil
}
