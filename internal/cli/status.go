package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pfrederiksen/city-events/internal/monitor"
	"github.com/spf13/cobra"
)

// SourceStatus summarizes the run history of one source
type SourceStatus struct {
	Source    string        `json:"source"`
	LastRun   time.Time     `json:"last_run"`
	Status    string        `json:"status"`
	Events    int           `json:"events"`
	Failures  int           `json:"consecutive_failures"`
	Successes int           `json:"successes"`
	Runs      int           `json:"runs"`
	Alerted   bool          `json:"alerted"`
	Error     string        `json:"error,omitempty"`
	Runtime   time.Duration `json:"duration"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the recent run history of every source",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	cmd.Flags().StringVar(&flagTableFormat, "format", "table", "Output format: table or json")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format, err := parseFormat(flagTableFormat, FormatTable, FormatJSON)
	if err != nil {
		return err
	}

	mon, err := current.openMonitor()
	if err != nil {
		return fmt.Errorf("loading monitor history: %w", err)
	}

	statuses := sourceStatuses(mon)
	if format == FormatJSON {
		return writeJSON(cmd.OutOrStdout(), statuses)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}
	writeStatusTable(cmd.OutOrStdout(), statuses)
	return nil
}

func sourceStatuses(mon *monitor.Monitor) []SourceStatus {
	out := []SourceStatus{}
	for _, name := range mon.Sources() {
		h, ok := mon.History(name)
		if !ok {
			continue
		}
		last, ok := h.Last()
		if !ok {
			continue
		}
		st := SourceStatus{
			Source:   name,
			LastRun:  last.At,
			Status:   last.Status(),
			Events:   last.Count,
			Failures: h.Failures(),
			Runs:     len(h.Runs),
			Alerted:  h.Alerted,
			Error:    last.Error,
			Runtime:  last.Duration,
		}
		for _, r := range h.Runs {
			if r.OK() {
				st.Successes++
			}
		}
		out = append(out, st)
	}
	return out
}

func writeStatusTable(w io.Writer, statuses []SourceStatus) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Source", "Last Run", "Status", "Events", "Success", "Failing", "Alerted"})
	for _, s := range statuses {
		alerted := ""
		if s.Alerted {
			alerted = "yes"
		}
		t.AppendRow(table.Row{
			s.Source,
			s.LastRun.Local().Format("2006-01-02 15:04"),
			s.Status,
			s.Events,
			fmt.Sprintf("%d/%d", s.Successes, s.Runs),
			s.Failures,
			alerted,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
