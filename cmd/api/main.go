// Command api serves a voting session over HTTP without the interactive
// menu. It reads the same flags, environment and config file as
// voting-ledger serve.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	"voting-ledger/api"
	"voting-ledger/config"
	"voting-ledger/log"
	"voting-ledger/metrics"
	"voting-ledger/service"
)

func main() {
	fs := flag.NewFlagSet("api", flag.ExitOnError)
	config.BindFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal(err)
	}
	log.Init(cfg.LogLevel, cfg.LogOutput)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	col := metrics.NewCollector()
	col.Register(prometheus.DefaultRegisterer)
	svc, err := service.NewFromConfig(ctx, cfg, col)
	if err != nil {
		log.Fatalf("cannot start voting service: %v", err)
	}

	a := api.New(svc, api.Options{
		AllowedOrigins: cfg.API.AllowedOrigins,
		Metrics:        cfg.API.MetricsEnabled,
	})
	if err := a.ListenAndServe(ctx, cfg.API.Listen); err != nil {
		log.Fatal(err)
	}
	svc.EndSession()
	log.Info("server stopped")
}
