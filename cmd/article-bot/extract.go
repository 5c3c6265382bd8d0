// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/article-bot/internal/artifact"
	"github.com/pdiddy/article-bot/internal/grobid"
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf>",
	Short: "Convert one PDF to TEI XML through the GROBID server",
	Long: `Extract copies the PDF into a fresh upload directory under the resources
directory, sends it to GROBID exactly as the bot does for a chat upload, and
prints the TEI and JSON digest paths. Use it to check the GROBID setup
without Telegram.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	src, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	store := artifact.NewStore(cfg.Storage.ResourcesDir)
	job, err := store.BeginUpload("cli", filepath.Base(args[0]))
	if err != nil {
		return err
	}
	if _, err := store.SaveIncoming(src, job.SourcePath); err != nil {
		return err
	}

	extractor := grobid.NewExtractor(grobid.NewClient(cfg.GROBID, logger), store, logger)
	teiPath, err := extractor.Extract(cmd.Context(), job)
	if err != nil {
		return err
	}
	job.Extracted = teiPath
	if err := store.WriteManifest(job); err != nil {
		logger.Warn("writing manifest failed", zap.Error(err))
	}

	fmt.Printf("tei:    %s\n", teiPath)
	digestPath, title, err := store.WriteDigest(teiPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "digest: %v\n", err)
		return nil
	}
	fmt.Printf("digest: %s\n", digestPath)
	if title != "" {
		fmt.Printf("title:  %s\n", title)
	}
	return nil
}
