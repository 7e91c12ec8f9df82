package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	flagCity     string
	flagAll      bool
	flagDryRun   bool
	flagNotify   bool
	flagExitCode bool
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run the sources of one city, or all cities, and store the events",
		Long: `Runs every enabled source of the selected cities, filters and
deduplicates the results and upserts them into storage. Events not stored
before are reported as new and sent to the configured notifiers.`,
		Args: cobra.NoArgs,
		RunE: runScrape,
	}

	cmd.Flags().StringVar(&flagCity, "city", "", "City to scrape")
	cmd.Flags().BoolVar(&flagAll, "all", false, "Scrape every configured city")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Run sources and diff against storage without writing")
	cmd.Flags().BoolVar(&flagNotify, "notify", true, "Send new events to the configured notifiers (printed instead in dry-run mode)")
	cmd.Flags().BoolVar(&flagExitCode, "exit-code", false, "Exit with status 2 when new events were found")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Show per-source statistics and event details")
	cmd.MarkFlagsMutuallyExclusive("city", "all")

	return cmd
}

func runScrape(cmd *cobra.Command, _ []string) error {
	city := strings.TrimSpace(flagCity)
	if city == "" && !flagAll {
		return fmt.Errorf("one of --city or --all is required")
	}

	format, err := parseFormat(flagFormat, FormatText, FormatJSON)
	if err != nil {
		return err
	}

	if city != "" {
		if _, err := current.cfg.City(city); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	p, err := current.pipeline(ctx, cmd, flagDryRun, flagNotify)
	if err != nil {
		return err
	}
	defer closeStore(p.Store)

	logger.Info("Starting scrape", logger.Fields{
		"city":    city,
		"all":     flagAll,
		"sources": p.Registry.Len(),
		"dry_run": flagDryRun,
	})

	var reports []*pipeline.Report
	if flagAll {
		reports, err = p.RunAll(ctx)
	} else {
		var report *pipeline.Report
		report, err = p.RunCity(ctx, city)
		if report != nil {
			reports = append(reports, report)
		}
	}

	result := NewScrapeResult(reports, time.Now().UTC(), flagDryRun)
	if werr := WriteReports(cmd.OutOrStdout(), result, format, flagVerbose); werr != nil {
		return fmt.Errorf("writing output: %w", werr)
	}
	if err != nil {
		return err
	}

	if flagExitCode && result.NewEvents > 0 {
		return ErrNewEvents
	}
	return nil
}
