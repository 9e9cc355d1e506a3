package main

import (
	"github.com/spf13/cobra"

	"voting-ledger/api"
	"voting-ledger/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the voting session over HTTP.",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	a := api.New(svc, api.Options{
		AllowedOrigins: cfg.API.AllowedOrigins,
		Metrics:        cfg.API.MetricsEnabled,
	})
	if err := a.ListenAndServe(ctx, cfg.API.Listen); err != nil {
		return err
	}
	svc.EndSession()
	log.Info("server stopped")
	return nil
}
