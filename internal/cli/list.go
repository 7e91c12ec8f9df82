package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/city-events/internal/event"
	"github.com/pfrederiksen/city-events/internal/filter"
	"github.com/pfrederiksen/city-events/internal/storage"
	"github.com/spf13/cobra"
)

var (
	flagVenue    string
	flagSource   string
	flagRange    string
	flagWeekends bool
	flagKeywords []string
	flagCategory []string
	flagSort     string
	flagLimit    int
	flagPast     bool
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored events",
		Long: `Lists stored events, upcoming ones by default.

Date ranges accept "Mar 1-15", "March 1 - April 15" or "March".`,
		Args: cobra.NoArgs,
		RunE: runList,
	}

	cmd.Flags().StringVar(&flagCity, "city", "", "Only events in this city")
	cmd.Flags().StringVar(&flagVenue, "venue", "", "Only events whose venue name contains this text")
	cmd.Flags().StringVar(&flagSource, "source", "", "Only events from this source")
	cmd.Flags().StringVar(&flagRange, "range", "", "Only events in this date range")
	cmd.Flags().BoolVar(&flagWeekends, "weekends", false, "Only events on Saturday or Sunday")
	cmd.Flags().StringSliceVar(&flagKeywords, "keyword", nil, "Only events whose title contains any keyword (repeatable)")
	cmd.Flags().StringSliceVar(&flagCategory, "category", nil, "Only events in these categories (repeatable)")
	cmd.Flags().BoolVar(&flagPast, "past", false, "Include events that already happened")
	cmd.Flags().StringVar(&flagSort, "sort", "date", "Sort order: date, title or venue")
	cmd.Flags().IntVar(&flagLimit, "limit", 0, "Show at most this many events (0 for all)")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text, table or json")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Show event details")

	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	format, err := parseFormat(flagFormat, FormatText, FormatTable, FormatJSON)
	if err != nil {
		return err
	}
	order, err := ParseSortOrder(flagSort)
	if err != nil {
		return err
	}
	if flagLimit < 0 {
		return fmt.Errorf("--limit cannot be negative")
	}

	now := time.Now()
	criteria, err := listCriteria(now)
	if err != nil {
		return err
	}

	q := storage.Query{
		City:   strings.TrimSpace(flagCity),
		Source: strings.TrimSpace(flagSource),
		Venue:  strings.TrimSpace(flagVenue),
	}
	if criteria.From != nil {
		q.From = criteria.From.ISO()
	}
	if criteria.To != nil {
		q.To = criteria.To.ISO()
	}

	ctx := cmd.Context()
	store, err := current.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	events, _, err := store.Find(ctx, q)
	if err != nil {
		return fmt.Errorf("querying events: %w", err)
	}

	events = criteria.Apply(events)
	sortEvents(events, order)
	if flagLimit > 0 && len(events) > flagLimit {
		events = events[:flagLimit]
	}

	return WriteEvents(cmd.OutOrStdout(), &ListResult{
		GeneratedAt: now.UTC(),
		Filters:     criteria.String(),
		Events:      events,
		Count:       len(events),
	}, format, flagVerbose)
}

// listCriteria turns the list flags into criteria. Without --range or --past
// only events from today on are listed.
func listCriteria(now time.Time) (*filter.Criteria, error) {
	c := filter.NewCriteria()
	c.WeekendsOnly = flagWeekends
	c.Keywords = flagKeywords
	c.Categories = flagCategory

	if strings.TrimSpace(flagRange) != "" {
		from, to, err := filter.ParseDateRange(flagRange, now)
		if err != nil {
			return nil, err
		}
		c.From, c.To = from, to
	} else if !flagPast {
		today := event.DateOf(now)
		c.From = &today
	}
	return c, nil
}
