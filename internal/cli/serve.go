package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pfrederiksen/city-events/internal/api"
	"github.com/spf13/cobra"
)

var flagListen string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored events over a read-only JSON API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().StringVar(&flagListen, "listen", "", "Listen address (default from api.listen)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := current.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	addr := flagListen
	if addr == "" {
		addr = current.cfg.API.Listen
	}
	return api.New(current.cfg, store).ListenAndServe(ctx, addr)
}
