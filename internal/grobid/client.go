// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package grobid converts PDFs to TEI XML through a GROBID server.
//
// The client mirrors the batch behavior of the reference GROBID client: every
// PDF of a directory is posted to /api/processFulltextDocument, a busy server
// (HTTP 503) is retried at a fixed interval, and each successful response is
// written next to its PDF as <name>.grobid.tei.xml. Per-file failures are
// logged and leave no output; the caller verifies the artifact afterwards.
package grobid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/article-bot/internal/artifact"
	"github.com/pdiddy/article-bot/internal/httputil"
	"github.com/pdiddy/article-bot/pkg/types"
)

const (
	processPath = "/api/processFulltextDocument"
	alivePath   = "/api/isalive"

	defaultServer       = "http://localhost:8070"
	defaultBatchSize    = 100
	defaultPollInterval = 5 * time.Second
	defaultTimeout      = 60 * time.Second
	defaultUserAgent    = "article-bot/1.0"
)

// DefaultCoordinates are the TEI elements for which PDF coordinates are
// requested when none are configured.
var DefaultCoordinates = []string{
	"ref", "biblStruct", "persName", "figure", "formula", "head",
	"s", "p", "note", "title", "affiliation",
}


// Options are the processing flags sent with every document.
type Options struct {
	ConsolidateHeader      bool
	ConsolidateCitations   bool
	IncludeRawCitations    bool
	IncludeRawAffiliations bool
	SegmentSentences       bool
	TEICoordinates         []string

	// Force reprocesses PDFs whose TEI output already exists.
	Force bool

	// BatchSize caps the number of PDFs taken from one directory.
	BatchSize int

	// PollInterval spaces attempts while the server answers 503.
	PollInterval time.Duration

	// Timeout bounds the wait for one document, retries included.
	Timeout time.Duration
}

// DefaultOptions returns the flags used by the bot.
func DefaultOptions() Options {
	return Options{
		ConsolidateHeader:      true,
		ConsolidateCitations:   true,
		IncludeRawCitations:    true,
		IncludeRawAffiliations: true,
		SegmentSentences:       true,
		TEICoordinates:         DefaultCoordinates,
		BatchSize:              defaultBatchSize,
		PollInterval:           defaultPollInterval,
		Timeout:                defaultTimeout,
	}
}

// Summary counts the outcome of one Process call.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
}

// Total returns the number of PDFs considered.
func (s Summary) Total() int {
	return s.Processed + s.Skipped + s.Failed
}

// Client talks to one GROBID server.
type Client struct {
	Server    string
	UserAgent string
	HTTP      *http.Client
	Options   Options
	Logger    *zap.Logger
}

// NewClient builds a Client from configuration, filling defaults for unset
// fields.
func NewClient(cfg types.GROBIDConfig, log *zap.Logger) *Client {
	opts := Options{
		ConsolidateHeader:      cfg.ConsolidateHeader,
		ConsolidateCitations:   cfg.ConsolidateCitations,
		IncludeRawCitations:    cfg.IncludeRawCitations,
		IncludeRawAffiliations: cfg.IncludeRawAffiliations,
		SegmentSentences:       cfg.SegmentSentences,
		TEICoordinates:         cfg.TEICoordinates,
		Force:                  cfg.Force,
		BatchSize:              cfg.BatchSize,
		PollInterval:           cfg.PollInterval,
		Timeout:                cfg.MaxWait,
	}
	if opts.TEICoordinates == nil {
		opts.TEICoordinates = DefaultCoordinates
	}

	server := cfg.Server
	if server == "" {
		server = defaultServer
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		Server:    strings.TrimRight(server, "/"),
		UserAgent: cfg.UserAgent,
		HTTP:      &http.Client{Timeout: timeout},
		Options:   opts,
		Logger:    log.With(zap.String("component", "grobid")),
	}
}

// IsAlive reports whether the server answers its health endpoint.
func (c *Client) IsAlive(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Server+alivePath, nil)
	if err != nil {
		return fmt.Errorf("building isalive request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("grobid server %s: %w", c.Server, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("grobid server %s is not alive (status %d)", c.Server, resp.StatusCode)
	}
	return nil
}

// Process converts every PDF in dir. A transport failure, or a server that
// stays busy past the timeout, aborts the batch with an error wrapping
// ErrUnreachable. Other per-file failures are counted and logged.
func (c *Client) Process(ctx context.Context, dir string) (Summary, error) {
	var sum Summary

	pdfs, err := listPDFs(dir, c.batchSize())
	if err != nil {
		return sum, err
	}

	for _, pdf := range pdfs {
		out := filepath.Join(dir, artifact.ExtractedName(pdf))
		log := c.Logger.With(zap.String("pdf", pdf))

		if !c.Options.Force {
			if _, err := os.Stat(out); err == nil {
				log.Debug("output exists, skipping")
				sum.Skipped++
				continue
			}
		}

		status, tei, err := c.processFile(ctx, filepath.Join(dir, pdf))
		if err != nil {
			sum.Failed++
			return sum, err
		}
		if status != http.StatusOK {
			log.Warn("grobid rejected document", zap.Int("status", status), zap.ByteString("body", truncate(tei, 256)))
			sum.Failed++
			continue
		}

		if err := writeAtomic(out, tei); err != nil {
			log.Error("writing tei output", zap.Error(err))
			sum.Failed++
			continue
		}
		log.Info("document processed", zap.String("output", out), zap.Int("bytes", len(tei)))
		sum.Processed++
	}
	return sum, nil
}

// processFile posts one PDF, retrying while the server answers 503. It
// returns the final status and body; err is set only when the server could
// not be reached or stayed busy.
func (c *Client) processFile(ctx context.Context, path string) (int, []byte, error) {
	pdf, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var (
		status int
		body   []byte
	)
	err = httputil.Poll(ctx, c.pollInterval(), c.timeout(), func(ctx context.Context) (bool, error) {
		req, err := c.newProcessRequest(ctx, filepath.Base(path), pdf)
		if err != nil {
			return false, err
		}
		resp, err := c.httpClient().Do(req)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusServiceUnavailable {
			io.Copy(io.Discard, resp.Body)
			c.Logger.Debug("grobid busy, waiting", zap.String("pdf", filepath.Base(path)), zap.Duration("interval", c.pollInterval()))
			return false, nil
		}

		status = resp.StatusCode
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return false, fmt.Errorf("%w: reading response: %v", ErrUnreachable, err)
		}
		return true, nil
	})

	switch {
	case errors.Is(err, httputil.ErrPollTimeout):
		// Busy answers or a slow conversion ran into the max_wait ceiling.
		return 0, nil, fmt.Errorf("%w: no result within %s: %v", ErrUnreachable, c.timeout(), err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return 0, nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	case err != nil:
		return 0, nil, err
	}
	return status, body, nil
}

func (c *Client) newProcessRequest(ctx context.Context, name string, pdf []byte) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="input"; filename=%q`, name))
	h.Set("Content-Type", "application/pdf")
	h.Set("Expires", "0")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating form part: %w", err)
	}
	if _, err := part.Write(pdf); err != nil {
		return nil, fmt.Errorf("writing form part: %w", err)
	}

	fields := []struct {
		name string
		on   bool
	}{
		{"consolidateHeader", c.Options.ConsolidateHeader},
		{"consolidateCitations", c.Options.ConsolidateCitations},
		{"includeRawCitations", c.Options.IncludeRawCitations},
		{"includeRawAffiliations", c.Options.IncludeRawAffiliations},
		{"segmentSentences", c.Options.SegmentSentences},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, flag(f.on)); err != nil {
			return nil, err
		}
	}
	for _, el := range c.Options.TEICoordinates {
		if err := w.WriteField("teiCoordinates", el); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Server+processPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("building process request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/xml")
	c.setHeaders(req)
	return req, nil
}

func (c *Client) setHeaders(req *http.Request) {
	ua := c.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) batchSize() int {
	if c.Options.BatchSize <= 0 {
		return defaultBatchSize
	}
	return c.Options.BatchSize
}

func (c *Client) pollInterval() time.Duration {
	if c.Options.PollInterval <= 0 {
		return defaultPollInterval
	}
	return c.Options.PollInterval
}

func (c *Client) timeout() time.Duration {
	if c.Options.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Options.Timeout
}

// listPDFs returns the base names of the PDFs in dir, sorted, at most limit.
func listPDFs(dir string, limit int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func flag(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
