// Command voting-ledger runs a single authority voting session whose votes
// are sealed into a proof-of-work chain.
//
// Without a subcommand it opens the interactive menu. "serve" exposes the
// same session over HTTP and "verify" audits a chain export.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"voting-ledger/config"
	"voting-ledger/console"
	"voting-ledger/log"
	"voting-ledger/metrics"
	"voting-ledger/service"
	"voting-ledger/storage"
)

var rootCmd = &cobra.Command{
	Use:   "voting-ledger",
	Short: "Proof-of-work vote ledger.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		log.Init(cfg.LogLevel, cfg.LogOutput)
		log.Debugf("loaded config %+v", *cfg)
		return nil
	},
	RunE:         runConsole,
	SilenceUsage: true,
}

var cfg *config.Config

func init() {
	config.BindFlags(rootCmd.PersistentFlags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newService builds the voting service and registers its collectors on
// the default prometheus registry.
func newService(ctx context.Context) (*service.VotingService, error) {
	col := metrics.NewCollector()
	col.Register(prometheus.DefaultRegisterer)

	if cfg.Difficulty > 4 {
		log.Warnf("difficulty %d may take a long time to mine each block", cfg.Difficulty)
	}
	svc, err := service.NewFromConfig(ctx, cfg, col)
	if err != nil {
		return nil, fmt.Errorf("cannot start voting service: %w", err)
	}
	return svc, nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(cmd.OutOrStdout(), "Mining genesis block at difficulty %d...\n", cfg.Difficulty)
	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	archive, err := storage.NewArchive(cfg.DataDir, cfg.ExportKeep)
	if err != nil {
		return err
	}
	err = console.New(svc, console.PromptUI{}, cmd.OutOrStdout(), archive).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
