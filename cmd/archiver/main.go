package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/opengov-watch/bounty-archiver/internal/catalog"
	"github.com/opengov-watch/bounty-archiver/internal/config"
	"github.com/opengov-watch/bounty-archiver/internal/crawler"
	"github.com/opengov-watch/bounty-archiver/internal/fetcher"
	"github.com/opengov-watch/bounty-archiver/internal/maintenance"
	"github.com/opengov-watch/bounty-archiver/internal/review"
	"github.com/opengov-watch/bounty-archiver/internal/rules"
	"github.com/opengov-watch/bounty-archiver/internal/siteindex"
	"github.com/opengov-watch/bounty-archiver/internal/state"
	"github.com/opengov-watch/bounty-archiver/internal/suggest"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "archiver",
		Short: "Bounty Archiver — catalog-driven documentation archiver",
		Long: `Bounty Archiver discovers, reviews, and archives the web presence of
catalog records.

Pipeline:
  archiver suggest    scan the catalog and discovered links for new URLs
  archiver review     accept, modify, or ignore pending suggestions
  archiver crawl      fetch queued URLs and store them under each record
  archiver siteindex  build the JSON browse index of archived content
  archiver stats      show collection sizes and per-record coverage
  archiver reset      clear crawl state for a full re-run`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(suggestCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(siteindexCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config, builds the logger, and opens the state store.
func setup() (*config.Config, *slog.Logger, *state.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	store, err := state.New(cfg.StateDir, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open state dir: %w", err)
	}
	return cfg, logger, store, nil
}

func setupLogger(lc config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// suggestCmd creates the "suggest" subcommand.
func suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest",
		Short: "Scan the catalog and discovered links for new archive candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, store, err := setup()
			if err != nil {
				return err
			}

			cat, err := catalog.Load(cfg.RootDir, logger)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}

			gen := suggest.New(store, rules.NewEngine(cfg.Rules), cfg.Defaults, logger)
			stats, err := gen.Run(cat)
			if err != nil {
				return fmt.Errorf("generate suggestions: %w", err)
			}

			fmt.Printf("Scanned %d records, found %d URLs\n", stats.RecordsScanned, stats.URLsFound)
			fmt.Printf("  already processed: %d\n", stats.AlreadyProcessed)
			fmt.Printf("  ignored:           %d\n", stats.Ignored)
			fmt.Printf("  new suggestions:   %d\n", stats.NewSuggestions)
			if stats.NewSuggestions > 0 {
				fmt.Println("\nRun `archiver review` to process them.")
			}
			return nil
		},
	}
}

// reviewCmd creates the "review" subcommand.
func reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Review pending suggestions interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, store, err := setup()
			if err != nil {
				return err
			}

			prompt := review.NewPrompt(cmd.InOrStdin(), cmd.OutOrStdout())
			gate := review.New(store, cfg.Review, prompt, logger)
			summary, err := gate.Run()
			if err != nil {
				return fmt.Errorf("review: %w", err)
			}

			fmt.Printf("\nAccepted %d, modified %d, ignored %d, references %d, remaining %d\n",
				summary.Accepted, summary.Modified, summary.Ignored, summary.References, summary.Remaining)
			return nil
		},
	}
}

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Fetch queued URLs and archive them under their records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, store, err := setup()
			if err != nil {
				return err
			}

			cat, err := catalog.Load(cfg.RootDir, logger)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				logger.Info("received signal, finishing current page", "signal", sig)
				cancel()
			}()

			cr := crawler.New(store, fetcher.New(cfg.Fetch, logger), rules.NewEngine(cfg.Rules), cat, cfg, logger)
			summary, err := cr.Run(ctx)
			if err != nil && !errors.Is(err, crawler.ErrSeedFetch) && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("crawl: %w", err)
			}

			fmt.Printf("\nProcessed %d jobs: %d completed, %d partial, %d failed, %d skipped\n",
				summary.Jobs, summary.Completed, summary.Partial, summary.Failed, summary.Skipped)
			fmt.Printf("Pages fetched: %d\n", summary.Pages)
			if summary.Failed > 0 {
				fmt.Println("Failed jobs remain queued; rerun `archiver crawl` to retry them.")
			}
			return nil
		},
	}
}

// siteindexCmd creates the "siteindex" subcommand.
func siteindexCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "siteindex",
		Short: "Build the JSON browse index of archived content",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, _, err := setup()
			if err != nil {
				return err
			}

			idx, err := siteindex.Build(cfg.RootDir, logger)
			if err != nil {
				return fmt.Errorf("build index: %w", err)
			}

			if output == "" {
				output = filepath.Join(cfg.RootDir, "scraped-index.json")
			}
			if err := siteindex.Write(idx, output); err != nil {
				return fmt.Errorf("write index: %w", err)
			}

			fmt.Printf("Indexed %d records, %d domains, %d files -> %s\n",
				idx.RecordCount, idx.TotalDomains, idx.TotalFiles, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default <root>/scraped-index.json)")
	return cmd
}

// statsCmd creates the "stats" subcommand.
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show state collection sizes and per-record coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, store, err := setup()
			if err != nil {
				return err
			}

			st, err := store.CollectStats()
			if err != nil {
				return fmt.Errorf("collect stats: %w", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Collection", "Entries"})
			t.AppendRows([]table.Row{
				{"queue", st.Queue},
				{"index", st.Index},
				{"ignore", st.Ignore},
				{"suggestions", st.Suggestions},
				{"links", st.Links},
				{"results", st.Results},
				{"references", st.References},
			})
			t.Render()

			if len(st.ByRecord) == 0 {
				return nil
			}

			cat, err := catalog.Load(cfg.RootDir, logger)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}

			rt := table.NewWriter()
			rt.SetOutputMirror(cmd.OutOrStdout())
			rt.SetStyle(table.StyleLight)
			rt.AppendHeader(table.Row{"Record", "Slug", "Indexed URLs"})
			for _, rec := range cat.Records() {
				n, ok := st.ByRecord[rec.ID]
				if !ok {
					continue
				}
				rt.AppendRow(table.Row{rec.ID, rec.Slug, n})
			}
			rt.Render()
			return nil
		},
	}
}

// resetCmd creates the "reset" subcommand.
func resetCmd() *cobra.Command {
	var (
		artifacts bool
		url       string
		recordID  int
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear crawl state (queue and ignore list are kept)",
		Long: `Reset clears the index, results, discovered links, suggestions, and
references so the next suggest pass starts from a clean slate. The
queue and the reviewed ignore list are preserved.

With --artifacts the archived files under each record are deleted too.
With --url or --record only the matching index entries are removed, so
those URLs become eligible for re-crawling.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, store, err := setup()
			if err != nil {
				return err
			}

			if url != "" || recordID > 0 {
				n, err := store.RemoveFromIndex(url, recordID)
				if err != nil {
					return fmt.Errorf("remove from index: %w", err)
				}
				fmt.Printf("Removed %d index entries\n", n)
				return nil
			}

			if err := store.Reset(); err != nil {
				return fmt.Errorf("reset state: %w", err)
			}
			fmt.Println("Cleared index, results, links, suggestions, and references.")

			if artifacts {
				n, err := maintenance.WipeArtifacts(cfg.RootDir, logger)
				if err != nil {
					return fmt.Errorf("wipe artifacts: %w", err)
				}
				fmt.Printf("Deleted archived content for %d records\n", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&artifacts, "artifacts", false, "also delete archived files")
	cmd.Flags().StringVar(&url, "url", "", "remove a single URL from the index")
	cmd.Flags().IntVar(&recordID, "record", 0, "remove all index entries for a record")
	return cmd
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Bounty Archiver %s\n", config.Version)
		},
	}
}
