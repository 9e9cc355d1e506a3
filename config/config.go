// Package config holds the settings shared by every voting-ledger command.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"voting-ledger/log"
	"voting-ledger/models"
)

const (
	// EnvPrefix prefixes every environment override, e.g.
	// VOTELEDGER_DIFFICULTY=4.
	EnvPrefix = "VOTELEDGER"
	// FileName is the optional config file looked up in the data dir.
	FileName = "voting-ledger"
)

// Config stores the global configuration.
type Config struct {
	DataDir string
	// Difficulty is the number of leading zero hex characters every block
	// hash must have.
	Difficulty    int
	HashAlgorithm string
	// MaxAttempts caps each nonce search, 0 means unbounded.
	MaxAttempts     uint64
	LogLevel        string
	LogOutput       string
	SessionDuration time.Duration
	// AuthorityKey is the hex private key used to attest the chain head.
	// Empty disables attestation.
	AuthorityKey string
	ExportKeep   int
	API          APICfg
}

type APICfg struct {
	Listen         string
	AllowedOrigins []string
	// MetricsEnabled serves /metrics.
	MetricsEnabled bool
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DataDir:       filepath.Join(home, ".voting-ledger"),
		Difficulty:    3,
		HashAlgorithm: string(models.SHA256),
		LogLevel:      "error",
		LogOutput:     "stderr",
		ExportKeep:    5,
		API: APICfg{
			Listen:         "0.0.0.0:8080",
			AllowedOrigins: []string{"*"},
			MetricsEnabled: true,
		},
	}
}

// BindFlags registers every setting on fs, defaulting to the values of
// NewConfig.
func BindFlags(fs *flag.FlagSet) {
	def := NewConfig()
	fs.StringP("dataDir", "d", def.DataDir, "directory for exports and the optional voting-ledger.yml")
	fs.Int("difficulty", def.Difficulty, "leading zero hex characters required in every block hash (0-64)")
	fs.String("hashAlgorithm", def.HashAlgorithm, "block hash algorithm: sha256 or keccak256")
	fs.Uint64("maxAttempts", def.MaxAttempts, "maximum nonces tried per block, 0 for no limit")
	fs.StringP("logLevel", "l", def.LogLevel, "log level (debug, info, warn, error)")
	fs.String("logOutput", def.LogOutput, "log output (stdout, stderr or filepath)")
	fs.Duration("sessionDuration", def.SessionDuration, "voting session length, 0 for no deadline")
	fs.String("authorityKey", def.AuthorityKey, "hex private key used to sign the chain head")
	fs.Int("exportKeep", def.ExportKeep, "number of chain exports kept in the data dir, 0 keeps all")
	fs.String("listen", def.API.Listen, "HTTP API listen address")
	fs.StringSlice("allowedOrigins", def.API.AllowedOrigins, "CORS allowed origins")
	fs.Bool("metricsEnabled", def.API.MetricsEnabled, "serve prometheus metrics at /metrics")
}

// Load resolves the configuration from, in order of precedence, explicit
// flags, VOTELEDGER_* environment variables, <dataDir>/voting-ledger.yml
// and the flag defaults. fs must have been prepared with BindFlags.
func Load(fs *flag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigName(FileName)
	v.SetConfigType("yml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("cannot bind flags: %w", err)
	}

	cfg := &Config{DataDir: v.GetString("dataDir")}
	v.AddConfigPath(cfg.DataDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
	} else {
		log.Infof("using config file %s", v.ConfigFileUsed())
	}

	cfg.Difficulty = v.GetInt("difficulty")
	cfg.HashAlgorithm = v.GetString("hashAlgorithm")
	cfg.MaxAttempts = v.GetUint64("maxAttempts")
	cfg.LogLevel = v.GetString("logLevel")
	cfg.LogOutput = v.GetString("logOutput")
	cfg.SessionDuration = v.GetDuration("sessionDuration")
	cfg.AuthorityKey = v.GetString("authorityKey")
	cfg.ExportKeep = v.GetInt("exportKeep")
	cfg.API.Listen = v.GetString("listen")
	cfg.API.AllowedOrigins = v.GetStringSlice("allowedOrigins")
	cfg.API.MetricsEnabled = v.GetBool("metricsEnabled")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the ledger or the API cannot run with.
func (c *Config) Validate() error {
	if c.Difficulty < 0 || c.Difficulty > models.HashHexLength {
		return fmt.Errorf("difficulty must be between 0 and %d, got %d", models.HashHexLength, c.Difficulty)
	}
	if _, err := models.ParseHashAlgorithm(c.HashAlgorithm); err != nil {
		return err
	}
	if !log.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.LogOutput == "" {
		return fmt.Errorf("log output cannot be empty")
	}
	if c.SessionDuration < 0 {
		return fmt.Errorf("session duration cannot be negative")
	}
	if c.ExportKeep < 0 {
		return fmt.Errorf("exportKeep cannot be negative")
	}
	if _, _, err := net.SplitHostPort(c.API.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.API.Listen, err)
	}
	return nil
}

// Algorithm returns the parsed hash algorithm. Call after Validate.
func (c *Config) Algorithm() models.HashAlgorithm {
	alg, _ := models.ParseHashAlgorithm(c.HashAlgorithm)
	return alg
}
