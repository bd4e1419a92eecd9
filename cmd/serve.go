package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"hoplink/internal/logging"
	"hoplink/internal/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resolver and search over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serveRun,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default from config)")
}

func serveRun(cmd *cobra.Command, args []string) error {
	addr := cfg.Server.Addr
	if flagAddr != "" {
		addr = flagAddr
	}

	r, err := newResolver()
	if err != nil {
		return err
	}
	svc, err := newSearchService()
	if err != nil {
		return err
	}

	log := logging.For("server")
	h := server.NewHandler(r, svc, log)
	if err := server.ListenAndServe(cmd.Context(), addr, h.Router(), log); err != nil {
		return fmt.Errorf("serving on %s: %w", addr, err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("hoplink", Version)
	},
}
