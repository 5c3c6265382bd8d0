// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/article-bot/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the log of processed articles",
	Long: `Catalog reads the SQLite log the bot writes for every extracted article
and every /resumo it produced. Use it to pick articles for the newsletter.`,
}

// --- list subcommand ---

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recently processed articles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalogForRead()
		if err != nil {
			return err
		}
		defer cat.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := cat.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return formatEntries(os.Stdout, entries, jsonOutput)
	},
}

// --- search subcommand ---

var catalogSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search titles, file names and summaries",
	Long: `Search matches every word of the query against article titles, file
names and stored summaries. Full-text ranking is used when the binary was
built with the sqlite_fts5 tag; otherwise a substring match.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalogForRead()
		if err != nil {
			return err
		}
		defer cat.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := cat.Search(cmd.Context(), strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return formatEntries(os.Stdout, entries, jsonOutput)
	},
}

func openCatalogForRead() (*catalog.Catalog, error) {
	cat, err := openCatalog()
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog is disabled (storage.catalog_path is %q)", cfg.Storage.CatalogPath)
	}
	return cat, nil
}

func formatEntries(w io.Writer, entries []catalog.Entry, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return nil
	}

	fmt.Fprintf(w, "%-16s  %-50s  %-30s  %s\n", "Date", "Title", "File", "Summary")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = "(untitled)"
		}
		summarized := "no"
		if e.SummarizedAt != nil {
			summarized = e.SummarizedAt.Local().Format("2006-01-02")
		}
		fmt.Fprintf(w, "%-16s  %-50s  %-30s  %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			clip(title, 50), clip(e.FileName, 30), summarized)
	}
	fmt.Fprintf(w, "\n%d articles\n", len(entries))
	return nil
}

// clip shortens s to n runes with a trailing ellipsis.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	for _, c := range []*cobra.Command{catalogListCmd, catalogSearchCmd} {
		c.Flags().Int("limit", 20, "maximum number of articles")
		c.Flags().Bool("json", false, "output results as JSON")
		catalogCmd.AddCommand(c)
	}
	rootCmd.AddCommand(catalogCmd)
}
