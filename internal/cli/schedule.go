package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/pipeline"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var (
	flagCron     string
	flagTimezone string
	flagRunNow   bool
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Scrape every city on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runSchedule,
	}

	cmd.Flags().StringVar(&flagCron, "cron", "", "Cron expression (default from schedule in the config)")
	cmd.Flags().StringVar(&flagTimezone, "timezone", "", "Time zone the expression is evaluated in (default local)")
	cmd.Flags().BoolVar(&flagRunNow, "run-now", false, "Run once immediately before waiting for the schedule")
	cmd.Flags().BoolVar(&flagNotify, "notify", true, "Send new events to the configured notifiers")

	return cmd
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	spec := flagCron
	if spec == "" {
		spec = current.cfg.Schedule
	}

	loc := time.Local
	if flagTimezone != "" {
		var err error
		if loc, err = time.LoadLocation(flagTimezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", flagTimezone, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := current.pipeline(ctx, cmd, false, flagNotify)
	if err != nil {
		return err
	}
	defer closeStore(p.Store)

	c, err := newScheduler(ctx, p, spec, loc)
	if err != nil {
		return err
	}

	if flagRunNow {
		runScheduled(ctx, p)
	}

	c.Start()
	logger.Info("Scheduler started", logger.Fields{
		"cron":     spec,
		"timezone": loc.String(),
		"sources":  p.Registry.Len(),
	})

	<-ctx.Done()
	logger.Info("Scheduler stopping", nil)
	// Wait for a run in progress to finish
	<-c.Stop().Done()
	return nil
}

func newScheduler(ctx context.Context, p *pipeline.Pipeline, spec string, loc *time.Location) (*cron.Cron, error) {
	l := cronLogger{}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := c.AddFunc(spec, func() { runScheduled(ctx, p) }); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return c, nil
}

func runScheduled(ctx context.Context, p *pipeline.Pipeline) {
	start := time.Now()
	reports, err := p.RunAll(ctx)
	fields := logger.Fields{
		"cities":   len(reports),
		"duration": time.Since(start).String(),
	}
	newEvents := 0
	for _, r := range reports {
		newEvents += len(r.NewEvents)
	}
	fields["new_events"] = newEvents
	if err != nil {
		logger.Error("Scheduled run failed", fields, err)
		return
	}
	logger.Info("Scheduled run complete", fields)
}

// cronLogger routes cron's own logging through the package logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, kvFields(keysAndValues), err)
}

func kvFields(kv []interface{}) logger.Fields {
	fields := logger.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
