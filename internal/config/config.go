// Package config resolves the engine configuration once at the boundary.
// Precedence: explicit input > environment > config file > default. The
// resolved Config is an immutable value threaded into components at
// construction; there is no global state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all resolved parameters.
type Config struct {
	RPCEndpoint      string        `yaml:"rpc_endpoint"`
	WSEndpoint       string        `yaml:"ws_endpoint"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
	BatchSize        int           `yaml:"batch_size"`
	BatchConcurrency int           `yaml:"batch_concurrency"`
	MinimumBalance   uint64        `yaml:"minimum_balance"`
	Commitment       string        `yaml:"commitment"`
	HistoryDepth     int           `yaml:"history_depth"`
	KeypairPath      string        `yaml:"keypair_path"`
	PostgresDSN      string        `yaml:"postgres_dsn"`
	ClickhouseDSN    string        `yaml:"clickhouse_dsn"`
	MetricsAddr      string        `yaml:"metrics_addr"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		RPCEndpoint:      "https://api.mainnet-beta.solana.com",
		RequestTimeout:   30 * time.Second,
		MaxRetries:       3,
		RetryBaseDelay:   1 * time.Second,
		BatchSize:        10,
		BatchConcurrency: 4,
		Commitment:       "confirmed",
		HistoryDepth:     1000,
		MetricsAddr:      ":9090",
	}
}

// Overrides carries explicit inputs (CLI flags). Nil fields are unset.
type Overrides struct {
	RPCEndpoint      *string
	WSEndpoint       *string
	RequestTimeout   *time.Duration
	MaxRetries       *int
	RetryBaseDelay   *time.Duration
	BatchSize        *int
	BatchConcurrency *int
	MinimumBalance   *uint64
	Commitment       *string
	HistoryDepth     *int
	KeypairPath      *string
	PostgresDSN      *string
	ClickhouseDSN    *string
	MetricsAddr      *string
}

// Environment variable names.
const (
	envRPCEndpoint   = "DISTRIBUTOR_RPC_ENDPOINT"
	envWSEndpoint    = "DISTRIBUTOR_WS_ENDPOINT"
	envTimeout       = "DISTRIBUTOR_REQUEST_TIMEOUT"
	envMaxRetries    = "DISTRIBUTOR_MAX_RETRIES"
	envRetryDelay    = "DISTRIBUTOR_RETRY_BASE_DELAY"
	envBatchSize     = "DISTRIBUTOR_BATCH_SIZE"
	envConcurrency   = "DISTRIBUTOR_BATCH_CONCURRENCY"
	envMinBalance    = "DISTRIBUTOR_MINIMUM_BALANCE"
	envCommitment    = "DISTRIBUTOR_COMMITMENT"
	envHistoryDepth  = "DISTRIBUTOR_HISTORY_DEPTH"
	envKeypairPath   = "DISTRIBUTOR_KEYPAIR_PATH"
	envPostgresDSN   = "DISTRIBUTOR_POSTGRES_DSN"
	envClickhouseDSN = "DISTRIBUTOR_CLICKHOUSE_DSN"
	envMetricsAddr   = "DISTRIBUTOR_METRICS_ADDR"
)

// Resolve evaluates the precedence chain. filePath may be empty; lookup may
// be nil to use the process environment.
func Resolve(overrides Overrides, lookup func(string) (string, bool), filePath string) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Default()

	if filePath != "" {
		if err := applyFile(&cfg, filePath); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	applyOverrides(&cfg, overrides)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(envRPCEndpoint); ok {
		cfg.RPCEndpoint = v
	}
	if v, ok := lookup(envWSEndpoint); ok {
		cfg.WSEndpoint = v
	}
	if v, ok := lookup(envTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if v, ok := lookup(envMaxRetries); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envMaxRetries, err)
		}
		cfg.MaxRetries = n
	}
	if v, ok := lookup(envRetryDelay); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envRetryDelay, err)
		}
		cfg.RetryBaseDelay = d
	}
	if v, ok := lookup(envBatchSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envBatchSize, err)
		}
		cfg.BatchSize = n
	}
	if v, ok := lookup(envConcurrency); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envConcurrency, err)
		}
		cfg.BatchConcurrency = n
	}
	if v, ok := lookup(envMinBalance); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envMinBalance, err)
		}
		cfg.MinimumBalance = n
	}
	if v, ok := lookup(envCommitment); ok {
		cfg.Commitment = v
	}
	if v, ok := lookup(envHistoryDepth); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envHistoryDepth, err)
		}
		cfg.HistoryDepth = n
	}
	if v, ok := lookup(envKeypairPath); ok {
		cfg.KeypairPath = v
	}
	if v, ok := lookup(envPostgresDSN); ok {
		cfg.PostgresDSN = v
	}
	if v, ok := lookup(envClickhouseDSN); ok {
		cfg.ClickhouseDSN = v
	}
	if v, ok := lookup(envMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	return nil
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.RPCEndpoint != nil {
		cfg.RPCEndpoint = *o.RPCEndpoint
	}
	if o.WSEndpoint != nil {
		cfg.WSEndpoint = *o.WSEndpoint
	}
	if o.RequestTimeout != nil {
		cfg.RequestTimeout = *o.RequestTimeout
	}
	if o.MaxRetries != nil {
		cfg.MaxRetries = *o.MaxRetries
	}
	if o.RetryBaseDelay != nil {
		cfg.RetryBaseDelay = *o.RetryBaseDelay
	}
	if o.BatchSize != nil {
		cfg.BatchSize = *o.BatchSize
	}
	if o.BatchConcurrency != nil {
		cfg.BatchConcurrency = *o.BatchConcurrency
	}
	if o.MinimumBalance != nil {
		cfg.MinimumBalance = *o.MinimumBalance
	}
	if o.Commitment != nil {
		cfg.Commitment = *o.Commitment
	}
	if o.HistoryDepth != nil {
		cfg.HistoryDepth = *o.HistoryDepth
	}
	if o.KeypairPath != nil {
		cfg.KeypairPath = *o.KeypairPath
	}
	if o.PostgresDSN != nil {
		cfg.PostgresDSN = *o.PostgresDSN
	}
	if o.ClickhouseDSN != nil {
		cfg.ClickhouseDSN = *o.ClickhouseDSN
	}
	if o.MetricsAddr != nil {
		cfg.MetricsAddr = *o.MetricsAddr
	}
}

func (c Config) validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc endpoint is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("batch concurrency must be at least 1")
	}
	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("unknown commitment level %q", c.Commitment)
	}
	return nil
}
