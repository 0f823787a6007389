package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"carwatch/internal/archive"
	"carwatch/internal/config"
	"carwatch/internal/ledger"
	"carwatch/internal/matcher"
	"carwatch/internal/notify"
	"carwatch/internal/orchestrator"
	"carwatch/internal/queries"
	"carwatch/internal/schedule"
	"carwatch/internal/scraper"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "carwatch",
	Short:   "Daily car auction alerts",
	Long:    "carwatch scrapes newly listed cars, scores them against your saved searches with a relevance model, and mails you each new match exactly once.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Secrets (SMTP password, model API key) may live in a .env
		// next to the binary rather than in the YAML.
		_ = godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(queriesCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("carwatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/carwatch/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the search URL, SMTP, and the scoring service.")
		return nil
	},
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scrape-score-notify pass now",
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, cleanup, err := buildOrchestrator()
		if err != nil {
			return err
		}
		defer cleanup()

		summary, err := orch.RunOnce(cmd.Context(), runConfig())

		fmt.Println("\nRun summary:")
		fmt.Printf("  Pages scanned:      %d\n", summary.PagesScanned)
		fmt.Printf("  Listings archived:  %d\n", summary.Archived)
		fmt.Printf("  Matches found:      %d\n", summary.MatchesFound)
		fmt.Printf("  Notifications sent: %d\n", summary.Notified)
		fmt.Printf("  Errors:             %d\n", len(summary.Errors))
		if err != nil {
			fmt.Printf("  Aborted: %v\n", err)
		}
		return nil
	},
}

// --- watch command ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the daily scheduler until terminated",
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, cleanup, err := buildOrchestrator()
		if err != nil {
			return err
		}
		defer cleanup()

		job := func(ctx context.Context) (*orchestrator.RunSummary, error) {
			return orch.RunOnce(ctx, runConfig())
		}

		sched, err := schedule.New(cfg.Schedule.At, cfg.Schedule.Timezone, job)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Watching daily at %s (%s). Press Ctrl+C to stop.\n", cfg.Schedule.At, cfg.Schedule.Timezone)
		return sched.Run(ctx)
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger, archive, and query status",
	RunE: func(cmd *cobra.Command, args []string) error {
		led, err := openLedger()
		if err != nil {
			return err
		}
		defer led.Close()

		notified, err := led.Count()
		if err != nil {
			return fmt.Errorf("counting ledger: %w", err)
		}

		arch, err := openArchive()
		if err != nil {
			return err
		}
		shards, err := arch.ShardCount()
		if err != nil {
			return fmt.Errorf("counting shards: %w", err)
		}

		qs, err := queryStore().Load()
		if err != nil {
			return err
		}

		fmt.Printf("Data dir: %s\n\n", cfg.GetDataDir())
		fmt.Printf("Queries:             %d\n", len(qs))
		fmt.Printf("Notified pairs:      %d\n", notified)
		fmt.Printf("Archive shards:      %d\n", shards)
		fmt.Printf("Active shard fill:   %d/%d\n", arch.ActiveLen(), cfg.Storage.ShardCap)
		return nil
	},
}

// --- queries command ---

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Manage saved search queries",
}

var queriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		qs, err := queryStore().Load()
		if err != nil {
			return err
		}

		if len(qs) == 0 {
			fmt.Println("No queries saved. Add one with: carwatch queries add \"red convertible\" --brand BMW")
			return nil
		}

		fmt.Println("Saved queries:")
		fmt.Println()
		for _, q := range qs {
			if q.Brand != "" {
				fmt.Printf("  %s  (brand: %s)\n", q.Text, q.Brand)
			} else {
				fmt.Printf("  %s\n", q.Text)
			}
		}
		return nil
	},
}

var queryBrand string

var queriesAddCmd = &cobra.Command{
	Use:   "add [query]",
	Short: "Add a saved query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		added, err := queryStore().Add(args[0], queryBrand)
		if err != nil {
			return err
		}
		if !added {
			fmt.Println("Query already exists.")
			return nil
		}
		fmt.Printf("Added query: %s\n", args[0])
		return nil
	},
}

var queriesRemoveCmd = &cobra.Command{
	Use:   "remove [query]",
	Short: "Remove a saved query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := queryStore().Remove(args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("query %q not found", args[0])
		}
		fmt.Printf("Removed query: %s\n", args[0])
		return nil
	},
}

func init() {
	queriesAddCmd.Flags().StringVar(&queryBrand, "brand", "", "Optional brand filter (whitespace-separated tokens)")
	queriesCmd.AddCommand(queriesListCmd)
	queriesCmd.AddCommand(queriesAddCmd)
	queriesCmd.AddCommand(queriesRemoveCmd)
}

// --- wiring helpers ---

func runConfig() orchestrator.Config {
	return orchestrator.Config{
		StartCursor: 1,
		BatchSize:   cfg.Scraper.BatchSize,
		MaxPages:    cfg.Scraper.MaxPages,
		Threshold:   cfg.Matcher.Threshold,
	}
}

func queryStore() *queries.Store {
	return queries.NewStore(filepath.Join(cfg.GetDataDir(), "queries.json"))
}

func openLedger() (*ledger.Ledger, error) {
	return ledger.Open(filepath.Join(cfg.GetDataDir(), "ledger.db"))
}

func openArchive() (*archive.Writer, error) {
	return archive.Open(filepath.Join(cfg.GetDataDir(), "archive"), cfg.Storage.ShardCap)
}

func buildOrchestrator() (*orchestrator.Orchestrator, func(), error) {
	led, err := openLedger()
	if err != nil {
		return nil, nil, fmt.Errorf("opening ledger: %w", err)
	}

	arch, err := openArchive()
	if err != nil {
		led.Close()
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}

	notifier := notify.NewSMTPNotifier(
		cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.To,
		cfg.SMTP.User, cfg.SMTP.PasswordEnv,
	)
	if !notifier.IsConfigured() {
		log.Println("SMTP is not fully configured; notification sends will fail until it is")
	}

	orch := orchestrator.New(orchestrator.Deps{
		Scraper:  scraper.NewSiteScraper(cfg.Scraper.BaseURL, 0),
		Store:    queryStore(),
		Matcher:  matcher.New(matcher.NewModelClient(cfg.Matcher.ScoringURL, cfg.Matcher.APIKeyEnv)),
		Ledger:   led,
		Archive:  arch,
		Notifier: notifier,
	})

	return orch, func() { led.Close() }, nil
}
