package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/monitor"
	"github.com/pfrederiksen/city-events/internal/notifier"
	"github.com/pfrederiksen/city-events/internal/pipeline"
	"github.com/pfrederiksen/city-events/internal/source"
	"github.com/pfrederiksen/city-events/internal/storage"
	"github.com/pfrederiksen/city-events/internal/telemetry"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitNewEvents = 2
)

// ErrNewEvents is returned by scrape --exit-code when a run found new events
var ErrNewEvents = errors.New("new events found")

var (
	flagConfig   string
	flagDataDir  string
	flagLogLevel string
	flagVerbose  bool

	// scrape and list default to text, sources and status to a table
	flagFormat      string
	flagTableFormat string
)

// session is the state shared by the subcommands of one invocation
type session struct {
	cfg     *config.Config
	dataDir string
	tel     telemetry.Telemetry
}

var current *session

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "city-events",
		Short: "Scrape local venue calendars into one event feed",
		Long: `A CLI tool that scrapes the event calendars of local venues,
normalizes and deduplicates the results, stores them and reports what is new.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "city-events.yaml", "Path to the config file (YAML or JSON5)")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (overrides data_dir from the config)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn or error")

	cmd.AddCommand(
		newScrapeCmd(),
		newListCmd(),
		newSourcesCmd(),
		newStatusCmd(),
		newExportCmd(),
		newServeCmd(),
		newScheduleCmd(),
	)

	return cmd
}

func setup(cmd *cobra.Command, _ []string) error {
	level, err := logger.ParseLevel(flagLogLevel)
	if err != nil {
		return err
	}
	logger.SetDefault(logger.New(level, cmd.ErrOrStderr()))

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	dataDir, err := config.ExpandHome(cfg.DataDir)
	if err != nil {
		return err
	}

	tel, err := telemetry.Setup(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}

	current = &session{cfg: cfg, dataDir: dataDir, tel: tel}
	logger.Debug("Configuration loaded", logger.Fields{
		"config":   flagConfig,
		"data_dir": dataDir,
		"cities":   len(cfg.Cities),
		"storage":  cfg.Storage.Driver,
	})
	return nil
}

// teardown flushes telemetry. It also runs when a command fails.
func teardown() {
	if current == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := current.tel.Shutdown(ctx); err != nil {
		logger.Warn("Telemetry shutdown failed", logger.Fields{"error": err.Error()})
	}
	current = nil
}

func (s *session) openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.Open(ctx, s.cfg.Storage, s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", s.cfg.Storage.Driver, err)
	}
	return store, nil
}

func (s *session) registry(ctx context.Context) (*source.Registry, error) {
	archive, err := source.OpenArchive(ctx, s.cfg.Archive, s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening page archive: %w", err)
	}
	return source.Build(s.cfg, source.Deps{
		Fetcher:   source.NewHTTPFetcher(s.cfg.HTTP, archive),
		UserAgent: s.cfg.HTTP.UserAgent,
		Now:       time.Now,
	}), nil
}

func (s *session) openMonitor() (*monitor.Monitor, error) {
	return monitor.Open(s.cfg.Monitor, s.dataDir, monitor.FromConfig(s.cfg.Monitor))
}

// pipeline assembles a run. The caller closes the returned store.
func (s *session) pipeline(ctx context.Context, cmd *cobra.Command, dryRun, notify bool) (*pipeline.Pipeline, error) {
	reg, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}

	mon, err := s.openMonitor()
	if err != nil {
		return nil, fmt.Errorf("loading monitor history: %w", err)
	}

	var n notifier.Notifier
	switch {
	case notify && dryRun:
		n = notifier.NewDryRunNotifier(cmd.ErrOrStderr())
	case notify:
		n, err = notifier.FromConfig(s.cfg.Notify)
		if err != nil {
			return nil, fmt.Errorf("configuring notifiers: %w", err)
		}
	}

	store, err := s.openStore(ctx)
	if err != nil {
		return nil, err
	}

	return &pipeline.Pipeline{
		Config:   s.cfg,
		Registry: reg,
		Store:    store,
		Monitor:  mon,
		Notifier: n,
		Venues:   pipeline.NewVenueRegistry(s.cfg),
		DryRun:   dryRun,
		Now:      time.Now,
	}, nil
}

func closeStore(store storage.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		logger.Warn("Closing storage failed", logger.Fields{"error": err.Error()})
	}
}

func parseFormat(s string, allowed ...OutputFormat) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	for _, a := range allowed {
		if format == a {
			return format, nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = "'" + string(a) + "'"
	}
	return "", fmt.Errorf("invalid format: %s (must be %s)", s, strings.Join(names, ", "))
}

// Execute runs the root command and exits with the matching code
func Execute() {
	os.Exit(run(NewRootCmd(), os.Args[1:]))
}

func run(cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	err := cmd.Execute()
	teardown()
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrNewEvents):
		return ExitNewEvents
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return ExitError
	}
}
