package cli

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pfrederiksen/city-events/internal/source"
	"github.com/spf13/cobra"
)

// SourceRow describes one configured source
type SourceRow struct {
	City   string `json:"city"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	URL    string `json:"url,omitempty"`
	Venue  string `json:"venue,omitempty"`
	Status string `json:"status"`
}

func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources and whether they can run",
		Args:  cobra.NoArgs,
		RunE:  runSources,
	}

	cmd.Flags().StringVar(&flagCity, "city", "", "Only sources of this city")
	cmd.Flags().StringVar(&flagTableFormat, "format", "table", "Output format: table or json")

	return cmd
}

func runSources(cmd *cobra.Command, _ []string) error {
	format, err := parseFormat(flagTableFormat, FormatTable, FormatJSON)
	if err != nil {
		return err
	}
	if flagCity != "" {
		if _, err := current.cfg.City(flagCity); err != nil {
			return err
		}
	}

	reg, err := current.registry(cmd.Context())
	if err != nil {
		return err
	}

	rows := sourceRows(reg, flagCity)
	if format == FormatJSON {
		return writeJSON(cmd.OutOrStdout(), rows)
	}
	writeSourceRows(cmd.OutOrStdout(), rows)
	return nil
}

// sourceRows lists every configured source of city (all cities when empty)
// with its status: ok, disabled, or the reason it was skipped
func sourceRows(reg *source.Registry, city string) []SourceRow {
	skipped := make(map[string]string, len(reg.Skipped))
	for _, s := range reg.Skipped {
		skipped[strings.ToLower(s.City+"/"+s.Source)] = s.Err.Error()
	}

	rows := []SourceRow{}
	for _, c := range current.cfg.Cities {
		if city != "" && !strings.EqualFold(c.Name, city) {
			continue
		}
		for _, sc := range c.Sources {
			row := SourceRow{
				City:   c.Name,
				Name:   sc.Name,
				Kind:   sc.Kind,
				URL:    sc.URL,
				Venue:  sc.Venue.Name,
				Status: "ok",
			}
			if !sc.IsEnabled() {
				row.Status = "disabled"
			} else if reason, ok := skipped[strings.ToLower(c.Name+"/"+sc.Name)]; ok {
				row.Status = "skipped: " + reason
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func writeSourceRows(w io.Writer, rows []SourceRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"City", "Source", "Kind", "Venue", "URL", "Status"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.City, r.Name, r.Kind, r.Venue, r.URL, r.Status})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
