package service

import (
	"context"
	"fmt"

	"voting-ledger/authority"
	"voting-ledger/config"
	"voting-ledger/log"
	"voting-ledger/metrics"
)

// OptionsFromConfig maps the loaded configuration to service options. An
// empty authority key leaves attestation disabled.
func OptionsFromConfig(cfg *config.Config, col *metrics.Collector) (Options, error) {
	opts := Options{
		Difficulty:      cfg.Difficulty,
		HashAlgorithm:   cfg.Algorithm(),
		MaxAttempts:     cfg.MaxAttempts,
		SessionDuration: cfg.SessionDuration,
		Metrics:         col,
	}
	if cfg.AuthorityKey != "" {
		auth, err := authority.FromHex(cfg.AuthorityKey)
		if err != nil {
			return Options{}, fmt.Errorf("cannot load authority key: %w", err)
		}
		log.Infof("authority address %s", auth.Address().Hex())
		opts.Authority = auth
	}
	return opts, nil
}

// NewFromConfig builds a VotingService from cfg, mining the genesis block.
func NewFromConfig(ctx context.Context, cfg *config.Config, col *metrics.Collector) (*VotingService, error) {
	opts, err := OptionsFromConfig(cfg, col)
	if err != nil {
		return nil, err
	}
	return NewVotingService(ctx, opts)
}
