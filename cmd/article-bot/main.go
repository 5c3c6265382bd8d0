// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the article-bot CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/article-bot/internal/config"
	"github.com/pdiddy/article-bot/internal/logging"
	"github.com/pdiddy/article-bot/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg and logger are populated by the root command before any subcommand runs.
var (
	cfg    types.BotConfig
	logger = zap.NewNop()
)

// rootCmd is the base command for the article-bot CLI.
var rootCmd = &cobra.Command{
	Use:   "article-bot",
	Short: "Telegram bot that summarizes and answers questions about scientific articles",
	Long: `article-bot receives scientific articles as PDF documents in a Telegram chat,
converts them to TEI XML with a GROBID server, and answers /resumo and free-text
questions about the article through an LLM provider (Anthropic or OpenAI).

Run "article-bot serve" to start the bot. The extract and catalog subcommands
operate on the same resources directory without Telegram.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		cfgFile, _ := flags.GetString("config")
		secretsDir, _ := flags.GetString("secrets-dir")
		envFile, _ := flags.GetString("env-file")

		boot, err := logging.New("info", "text")
		if err != nil {
			return err
		}
		loaded, err := config.Load(viper.GetViper(), config.Options{
			ConfigFile: cfgFile,
			SecretsDir: secretsDir,
			EnvFile:    envFile,
		}, boot)
		if err != nil {
			return err
		}

		if level, _ := flags.GetString("log-level"); level != "" {
			loaded.Log.Level = level
		}
		log, err := logging.New(loaded.Log.Level, loaded.Log.Format)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = log
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./article-bot.yaml or ~/.config/article-bot/article-bot.yaml)")
	flags.String("secrets-dir", config.DefaultSecretsDir, "directory of secret files")
	flags.String("env-file", config.DefaultEnvFile, "dotenv file loaded before the environment is read")
	flags.String("log-level", "", "log level override (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
