package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/parallaxlabs/erpquery/internal/metrics"
	"github.com/parallaxlabs/erpquery/internal/server"
	"github.com/parallaxlabs/erpquery/pkg/agent"
	"github.com/parallaxlabs/erpquery/pkg/analyzer"
	"github.com/parallaxlabs/erpquery/pkg/executor"
	"github.com/parallaxlabs/erpquery/pkg/llm"
	"github.com/parallaxlabs/erpquery/pkg/logger"
	"github.com/parallaxlabs/erpquery/pkg/prompt"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr        = "0.0.0.0:3020"
	defaultMetricsAddr       = "0.0.0.0:8080"
	defaultReadHeaderTimeout = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultModel             = string(anthropic.ModelClaudeSonnet4_20250514)
	defaultSchemaTTL         = 5 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics (empty to disable)")
	readHeaderTimeoutFlag := flag.Duration("read-header-timeout", defaultReadHeaderTimeout, "HTTP read header timeout")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", defaultShutdownTimeout, "Server shutdown timeout")
	allowedOriginsFlag := flag.String("allowed-origins", "*", "comma-separated CORS origins")

	databaseURLFlag := flag.String("database-url", "", "PostgreSQL connection string (or set DATABASE_URL env var)")
	modelFlag := flag.String("model", defaultModel, "generation model (or set ERPQUERY_MODEL env var)")
	maxIterationsFlag := flag.Int("max-iterations", 0, "iteration budget per question (0 = default)")
	statementTimeoutFlag := flag.Duration("statement-timeout", 0, "per-statement database timeout (0 = default)")
	maxRowsFlag := flag.Int("max-rows", 0, "row ceiling per query (0 = default)")
	schemaTTLFlag := flag.Duration("schema-ttl", defaultSchemaTTL, "schema cache TTL")

	flag.Parse()

	// Override flags with environment variables if set
	if envURL := os.Getenv("DATABASE_URL"); envURL != "" && *databaseURLFlag == "" {
		*databaseURLFlag = envURL
	}
	if envModel := os.Getenv("ERPQUERY_MODEL"); envModel != "" {
		*modelFlag = envModel
	}

	log := logger.New(*verboseFlag)

	if *databaseURLFlag == "" {
		return fmt.Errorf("database URL is required (--database-url or DATABASE_URL)")
	}
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info("server: received signal", "signal", sig.String())
		cancel()
	}()

	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(*databaseURLFlag)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("connected to database")

	ag, schemaFetcher, err := buildAgent(ctx, log, pool, buildOptions{
		model:            *modelFlag,
		maxIterations:    *maxIterationsFlag,
		statementTimeout: *statementTimeoutFlag,
		maxRows:          *maxRowsFlag,
		schemaTTL:        *schemaTTLFlag,
	})
	if err != nil {
		return err
	}
	defer schemaFetcher.Stop()

	srv := server.New(log, ag)
	httpServer := &http.Server{
		Addr:              *listenAddrFlag,
		Handler:           srv.Router(strings.Split(*allowedOriginsFlag, ",")),
		ReadHeaderTimeout: *readHeaderTimeoutFlag,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server listening", "address", *listenAddrFlag)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownTimeoutFlag)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}

type buildOptions struct {
	model            string
	maxIterations    int
	statementTimeout time.Duration
	maxRows          int
	schemaTTL        time.Duration
}

// buildAgent wires the executor, analyzer, prompt, and generator together.
func buildAgent(ctx context.Context, log *slog.Logger, pool *pgxpool.Pool, opts buildOptions) (*agent.Agent, *executor.PostgresSchemaFetcher, error) {
	querier, err := executor.NewPostgresQuerier(&executor.PostgresConfig{
		Logger:           log,
		Pool:             pool,
		StatementTimeout: opts.statementTimeout,
		MaxRows:          opts.maxRows,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create querier: %w", err)
	}

	schemaFetcher := executor.NewPostgresSchemaFetcher(log, pool, opts.schemaTTL)
	schemaText, err := schemaFetcher.FetchSchema(ctx)
	if err != nil {
		schemaFetcher.Stop()
		return nil, nil, fmt.Errorf("failed to fetch schema: %w", err)
	}
	log.Info("schema loaded", "bytes", len(schemaText))

	an, err := analyzer.New(analyzer.Config{})
	if err != nil {
		schemaFetcher.Stop()
		return nil, nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	prompts := &prompt.Config{
		SchemaText:  schemaText,
		SafetyRules: prompt.DefaultSafetyRules,
	}
	gen := llm.NewAnthropicGenerator(log, anthropic.Model(opts.model), 0, prompts)

	ag, err := agent.New(&agent.Config{
		Logger:        log,
		Generator:     gen,
		Querier:       querier,
		Analyzer:      an,
		MaxIterations: opts.maxIterations,
	})
	if err != nil {
		schemaFetcher.Stop()
		return nil, nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return ag, schemaFetcher, nil
}
