// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/article-bot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config prints the configuration assembled from defaults, .secrets/,
the config file, .env and the environment. The bot token and API key are
never printed. With --check it also validates the result.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		if check, _ := cmd.Flags().GetBool("check"); check {
			return config.Validate(cfg)
		}
		return nil
	},
}

func init() {
	configCmd.Flags().Bool("check", false, "validate the configuration")
	rootCmd.AddCommand(configCmd)
}
