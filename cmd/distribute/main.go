package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"spl-distributor/internal/config"
	"spl-distributor/internal/distribution"
	"spl-distributor/internal/domain"
	"spl-distributor/internal/observability"
	"spl-distributor/internal/orchestrator"
	"spl-distributor/internal/reporting"
	"spl-distributor/internal/retry"
	"spl-distributor/internal/solana"
	"spl-distributor/internal/storage"
	chstore "spl-distributor/internal/storage/clickhouse"
	"spl-distributor/internal/storage/memory"
	"spl-distributor/internal/storage/migrations"
	pgstore "spl-distributor/internal/storage/postgres"
)

func main() {
	// Parse flags
	mode := flag.String("mode", "", "Operation: collect, simulate, execute, or history")
	mintStr := flag.String("mint", "", "Token mint address")
	amount := flag.Uint64("amount", 0, "Total amount to distribute (smallest unit)")
	allocMode := flag.String("alloc-mode", "proportional", "Allocation mode: equal or proportional")
	minAmount := flag.Uint64("min-amount", 0, "Minimum per-recipient allocation; smaller shares are excluded")
	exclude := flag.String("exclude", "", "Comma-separated recipient addresses to exclude")
	output := flag.String("output", "text", "Output format: text, json, csv, or markdown")
	outputFile := flag.String("output-file", "", "Write output to file instead of stdout")
	configPath := flag.String("config", "", "Path to YAML config file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")

	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", "", "Solana WebSocket endpoint (enables subscription confirmation)")
	keypairPath := flag.String("keypair", "", "Path to authority keypair file")
	batchSize := flag.Int("batch-size", 0, "Transfers per batch")
	concurrency := flag.Int("concurrency", 0, "Concurrent transfers within a batch")
	minBalance := flag.Uint64("min-balance", 0, "Minimum holder balance to qualify for discovery")
	historyDepth := flag.Int("history-depth", 0, "Signature scan depth for history-based discovery")
	maxRetries := flag.Int("max-retries", 0, "Retry attempts per RPC operation")
	commitment := flag.String("commitment", "", "Commitment level: processed, confirmed, or finalized")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[distribute] ", log.LstdFlags)

	cfg, err := resolveConfig(*configPath, flagOverrides(
		*rpcEndpoint, *wsEndpoint, *keypairPath, *commitment, *postgresDSN, *clickhouseDSN, *metricsAddr,
		*batchSize, *concurrency, *historyDepth, *maxRetries, *minBalance,
	))
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	// Start metrics server if enabled
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(60 * time.Second):
			logger.Println("Graceful shutdown timed out after 60s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, cfg, runFlags{
		mode:       *mode,
		mint:       *mintStr,
		amount:     *amount,
		allocMode:  *allocMode,
		minAmount:  *minAmount,
		exclude:    *exclude,
		output:     *output,
		outputFile: *outputFile,
		useMemory:  *useMemory,
	})

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}
}

// runFlags carries the per-invocation operation parameters.
type runFlags struct {
	mode       string
	mint       string
	amount     uint64
	allocMode  string
	minAmount  uint64
	exclude    string
	output     string
	outputFile string
	useMemory  bool
}

func run(ctx context.Context, logger *log.Logger, cfg config.Config, flags runFlags) error {
	if flags.mode == "" {
		return fmt.Errorf("--mode is required (collect, simulate, execute, history)")
	}
	if flags.mint == "" {
		return fmt.Errorf("--mint is required")
	}
	mint, err := solana.ParseAddress(flags.mint)
	if err != nil {
		return fmt.Errorf("parse mint: %w", err)
	}

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint,
		solana.WithTimeout(cfg.RequestTimeout),
		solana.WithCommitment(cfg.Commitment),
	)
	retrier := retry.NewController(
		retry.WithMaxAttempts(cfg.MaxRetries),
		retry.WithBaseDelay(cfg.RetryBaseDelay),
		retry.WithAttemptTimeout(cfg.RequestTimeout),
	)

	// Stores (use interfaces)
	var distStore storage.DistributionStore = memory.NewDistributionStore()
	var snapStore storage.SnapshotStore = memory.NewSnapshotStore()

	if !flags.useMemory && cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}
		distStore = pgstore.NewDistributionStore(pool)
	}

	if !flags.useMemory && cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		defer conn.Close()
		snapStore = chstore.NewSnapshotStore(conn)
	}

	// Signer is needed for execute only
	var signer *solana.Keypair
	if flags.mode == "execute" {
		if cfg.KeypairPath == "" {
			return fmt.Errorf("--keypair is required for execute mode")
		}
		signer, err = solana.LoadKeypair(cfg.KeypairPath)
		if err != nil {
			return fmt.Errorf("load keypair: %w", err)
		}
		logger.Printf("Authority: %s", signer.Address())
	}

	// WebSocket confirmation with polling fallback, when an endpoint is set
	var confirmer distribution.Confirmer
	if flags.mode == "execute" && cfg.WSEndpoint != "" {
		wsClient, err := solana.NewWSConfirmationClient(ctx, cfg.WSEndpoint, nil)
		if err != nil {
			logger.Printf("WARN: websocket connect failed, falling back to polling: %v", err)
		} else {
			defer wsClient.Close()
			confirmer = distribution.NewWSConfirmer(wsClient, distribution.NewPollingConfirmer(rpc, 0, 0))
		}
	}

	orch := orchestrator.New(orchestrator.Options{
		RPC:               rpc,
		Retrier:           retrier,
		Signer:            signer,
		DistributionStore: distStore,
		SnapshotStore:     snapStore,
		MinimumBalance:    cfg.MinimumBalance,
		HistoryDepth:      cfg.HistoryDepth,
		Concurrency:       cfg.BatchConcurrency,
		Confirmer:         confirmer,
		Logger:            logger,
	})

	switch flags.mode {
	case "collect":
		return runCollect(ctx, orch, mint, flags)
	case "simulate":
		return runSimulate(ctx, orch, mint, cfg, flags)
	case "execute":
		return runExecute(ctx, orch, mint, cfg, flags)
	case "history":
		return runHistory(ctx, orch, mint, flags)
	default:
		return fmt.Errorf("unknown mode: %s", flags.mode)
	}
}

func runCollect(ctx context.Context, orch *orchestrator.Orchestrator, mint solana.Address, flags runFlags) error {
	snapshot, err := orch.Collect(ctx, mint)
	if err != nil {
		return err
	}
	return writeJSON(snapshot, flags.outputFile)
}

func runSimulate(ctx context.Context, orch *orchestrator.Orchestrator, mint solana.Address, cfg config.Config, flags runFlags) error {
	req, err := buildRequest(mint, cfg, flags)
	if err != nil {
		return err
	}
	sim, err := orch.Simulate(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(sim, flags.outputFile)
}

func runExecute(ctx context.Context, orch *orchestrator.Orchestrator, mint solana.Address, cfg config.Config, flags runFlags) error {
	req, err := buildRequest(mint, cfg, flags)
	if err != nil {
		return err
	}
	result, runErr := orch.Execute(ctx, req)
	if result != nil {
		if err := writeResult(result, flags.output, flags.outputFile); err != nil {
			return err
		}
	}
	return runErr
}

func runHistory(ctx context.Context, orch *orchestrator.Orchestrator, mint solana.Address, flags runFlags) error {
	results, err := orch.History(ctx, mint)
	if err != nil {
		return err
	}
	return writeJSON(results, flags.outputFile)
}

func buildRequest(mint solana.Address, cfg config.Config, flags runFlags) (domain.DistributionRequest, error) {
	if flags.amount == 0 {
		return domain.DistributionRequest{}, fmt.Errorf("--amount is required and must be positive")
	}

	mode := domain.AllocationMode(flags.allocMode)
	if !mode.Valid() {
		return domain.DistributionRequest{}, fmt.Errorf("unknown allocation mode: %s", flags.allocMode)
	}

	var excludeAddrs []solana.Address
	if flags.exclude != "" {
		for _, part := range strings.Split(flags.exclude, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			addr, err := solana.ParseAddress(part)
			if err != nil {
				return domain.DistributionRequest{}, fmt.Errorf("parse exclude address %q: %w", part, err)
			}
			excludeAddrs = append(excludeAddrs, addr)
		}
	}

	return domain.NewDistributionRequest(
		flags.amount, mint, nil, mode, cfg.BatchSize, flags.minAmount, excludeAddrs,
	), nil
}

// writeResult renders a finalized result in the requested format.
func writeResult(result *domain.DistributionResult, format, path string) error {
	var out string
	switch format {
	case "json":
		rendered, err := reporting.RenderJSON(result)
		if err != nil {
			return err
		}
		out = rendered
	case "csv":
		out = reporting.RenderCSV(reporting.NewRunReport(result))
	case "markdown":
		out = reporting.RenderMarkdown(reporting.NewRunReport(result))
	case "text", "":
		report := reporting.NewRunReport(result)
		out = fmt.Sprintf("run %s: status=%s recipients=%d confirmed=%d failed=%d amount=%d\n",
			report.RunID, report.Status, report.TotalRecipients,
			report.Confirmed, report.Failed, report.AmountConfirmed)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return writeOutput(out, path)
}

func writeJSON(v any, path string) error {
	data, err := renderAny(v)
	if err != nil {
		return err
	}
	return writeOutput(data, path)
}

func renderAny(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal output: %w", err)
	}
	return string(data) + "\n", nil
}

func writeOutput(out, path string) error {
	if path == "" {
		_, err := os.Stdout.WriteString(out)
		return err
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

// resolveConfig evaluates the config precedence chain with CLI flags on top.
func resolveConfig(path string, overrides config.Overrides) (config.Config, error) {
	return config.Resolve(overrides, nil, path)
}

// flagOverrides converts non-zero flag values into config overrides. Flags
// left at their zero value fall through to environment, file and default.
func flagOverrides(rpcEndpoint, wsEndpoint, keypairPath, commitment, postgresDSN, clickhouseDSN, metricsAddr string,
	batchSize, concurrency, historyDepth, maxRetries int, minBalance uint64) config.Overrides {

	var o config.Overrides
	if rpcEndpoint != "" {
		o.RPCEndpoint = &rpcEndpoint
	}
	if wsEndpoint != "" {
		o.WSEndpoint = &wsEndpoint
	}
	if keypairPath != "" {
		o.KeypairPath = &keypairPath
	}
	if commitment != "" {
		o.Commitment = &commitment
	}
	if postgresDSN != "" {
		o.PostgresDSN = &postgresDSN
	}
	if clickhouseDSN != "" {
		o.ClickhouseDSN = &clickhouseDSN
	}
	if metricsAddr != "" {
		o.MetricsAddr = &metricsAddr
	}
	if batchSize > 0 {
		o.BatchSize = &batchSize
	}
	if concurrency > 0 {
		o.BatchConcurrency = &concurrency
	}
	if historyDepth > 0 {
		o.HistoryDepth = &historyDepth
	}
	if maxRetries > 0 {
		o.MaxRetries = &maxRetries
	}
	if minBalance > 0 {
		o.MinimumBalance = &minBalance
	}
	return o
}
