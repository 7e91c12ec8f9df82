package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pfrederiksen/city-events/internal/calendar"
	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/storage"
	"github.com/spf13/cobra"
)

var flagOut string

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored events of a city as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}

	cmd.Flags().StringVar(&flagCity, "city", "", "City to export (required)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file (stdout when empty)")
	cmd.Flags().StringVar(&flagVenue, "venue", "", "Only events whose venue name contains this text")
	cmd.Flags().StringVar(&flagRange, "range", "", "Only events in this date range")
	cmd.Flags().BoolVar(&flagWeekends, "weekends", false, "Only events on Saturday or Sunday")
	cmd.Flags().BoolVar(&flagPast, "past", false, "Include events that already happened")
	_ = cmd.MarkFlagRequired("city")

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	city, err := current.cfg.City(flagCity)
	if err != nil {
		return err
	}

	now := time.Now()
	criteria, err := listCriteria(now)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := current.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	q := storage.Query{City: city.Name, Venue: flagVenue}
	if criteria.From != nil {
		q.From = criteria.From.ISO()
	}
	if criteria.To != nil {
		q.To = criteria.To.ISO()
	}
	events, _, err := store.Find(ctx, q)
	if err != nil {
		return fmt.Errorf("querying events: %w", err)
	}
	events = criteria.Apply(events)

	x := calendar.Exporter{Location: city.Location(), Name: city.Name + " Events"}
	if flagOut == "" {
		return x.Write(cmd.OutOrStdout(), events, now)
	}

	var buf bytes.Buffer
	if err := x.Write(&buf, events, now); err != nil {
		return err
	}
	if dir := filepath.Dir(flagOut); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(flagOut, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", flagOut, err)
	}

	logger.Info("Calendar exported", logger.Fields{
		"city":   city.Name,
		"events": len(events),
		"file":   flagOut,
	})
	return nil
}
