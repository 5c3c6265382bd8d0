// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/article-bot/internal/access"
	"github.com/pdiddy/article-bot/internal/answer"
	"github.com/pdiddy/article-bot/internal/artifact"
	"github.com/pdiddy/article-bot/internal/bot"
	"github.com/pdiddy/article-bot/internal/catalog"
	"github.com/pdiddy/article-bot/internal/config"
	"github.com/pdiddy/article-bot/internal/grobid"
	"github.com/pdiddy/article-bot/internal/metrics"
	"github.com/pdiddy/article-bot/internal/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot until interrupted",
	Long: `Connects to Telegram with long polling and serves every allowed sender.
The GROBID server and the LLM provider are contacted per turn; an unreachable
GROBID server is reported in the chat, not at startup.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("contact", "", "support contact shown by /suporte")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	contact, _ := cmd.Flags().GetString("contact")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := artifact.NewStore(cfg.Storage.ResourcesDir)
	extractor := grobid.NewExtractor(grobid.NewClient(cfg.GROBID, logger), store, logger)

	answerer, err := answer.New(cfg.AI, logger)
	if err != nil {
		return err
	}

	adapter, err := telegram.New(cfg.Telegram, logger)
	if err != nil {
		return err
	}

	guard, err := access.NewGuard(cfg.Access.AllowedUsers, adapter, logger)
	if err != nil {
		return err
	}

	deps := bot.Deps{
		Transport:     adapter,
		Store:         store,
		Extractor:     extractor,
		Answerer:      answerer,
		Middleware:    []bot.Middleware{guard.Middleware()},
		SummaryTopics: cfg.AI.SummaryTopics,
		Version:       version,
		Contact:       contact,
		Logger:        logger,
	}

	cat, err := openCatalog()
	if err != nil {
		return err
	}
	if cat != nil {
		defer cat.Close()
		deps.Catalog = cat
	}

	orchestrator, err := bot.New(deps)
	if err != nil {
		return err
	}

	logger.Info("article-bot starting",
		zap.String("version", version),
		zap.String("provider", answerer.Provider()),
		zap.String("grobid", cfg.GROBID.Server),
		zap.String("resources", store.Root()),
		zap.Int("allowed_users", len(cfg.Access.AllowedUsers)),
	)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.Addr, logger)
		})
	}
	g.Go(func() error {
		return adapter.Run(gctx, orchestrator.Handle)
	})

	err = g.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("article-bot stopped")
	return nil
}

// openCatalog opens the SQLite catalog, defaulting to catalog.db under the
// resources directory. A "-" path disables it.
func openCatalog() (*catalog.Catalog, error) {
	path := cfg.Storage.CatalogPath
	switch path {
	case "-":
		return nil, nil
	case "":
		path = filepath.Join(cfg.Storage.ResourcesDir, catalog.DefaultFile)
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return nil, err
	}
	if !cat.FullText() {
		logger.Warn("catalog full-text search unavailable; build with -tags sqlite_fts5")
	}
	return cat, nil
}
