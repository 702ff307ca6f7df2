// ask runs a single question against the database from the command line
// and prints the answer plus the supporting result set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	flag "github.com/spf13/pflag"

	"github.com/parallaxlabs/erpquery/pkg/agent"
	"github.com/parallaxlabs/erpquery/pkg/analyzer"
	"github.com/parallaxlabs/erpquery/pkg/executor"
	"github.com/parallaxlabs/erpquery/pkg/llm"
	"github.com/parallaxlabs/erpquery/pkg/logger"
	"github.com/parallaxlabs/erpquery/pkg/prompt"
)

const defaultModel = string(anthropic.ModelClaudeSonnet4_20250514)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	databaseURLFlag := flag.String("database-url", "", "PostgreSQL connection string (or set DATABASE_URL env var)")
	modelFlag := flag.String("model", defaultModel, "generation model (or set ERPQUERY_MODEL env var)")
	maxIterationsFlag := flag.Int("max-iterations", 0, "iteration budget (0 = default)")
	showStepsFlag := flag.Bool("show-steps", false, "print each iteration's SQL and row counts")
	flag.Parse()

	if flag.NArg() == 0 {
		return fmt.Errorf("usage: ask [flags] \"question\"")
	}
	question := strings.Join(flag.Args(), " ")

	if envURL := os.Getenv("DATABASE_URL"); envURL != "" && *databaseURLFlag == "" {
		*databaseURLFlag = envURL
	}
	if envModel := os.Getenv("ERPQUERY_MODEL"); envModel != "" {
		*modelFlag = envModel
	}
	if *databaseURLFlag == "" {
		return fmt.Errorf("database URL is required (--database-url or DATABASE_URL)")
	}
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	log := logger.New(*verboseFlag)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, *databaseURLFlag)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	querier, err := executor.NewPostgresQuerier(&executor.PostgresConfig{
		Logger: log,
		Pool:   pool,
	})
	if err != nil {
		return err
	}

	schemaFetcher := executor.NewPostgresSchemaFetcher(log, pool, 5*time.Minute)
	defer schemaFetcher.Stop()
	schemaText, err := schemaFetcher.FetchSchema(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch schema: %w", err)
	}

	an, err := analyzer.New(analyzer.Config{})
	if err != nil {
		return err
	}

	gen := llm.NewAnthropicGenerator(log, anthropic.Model(*modelFlag), 0, &prompt.Config{
		SchemaText:  schemaText,
		SafetyRules: prompt.DefaultSafetyRules,
	})

	ag, err := agent.New(&agent.Config{
		Logger:        log,
		Generator:     gen,
		Querier:       querier,
		Analyzer:      an,
		MaxIterations: *maxIterationsFlag,
	})
	if err != nil {
		return err
	}

	var sink agent.EventSink
	if *showStepsFlag {
		sink = func(ev agent.Event) {
			switch ev.Type {
			case agent.EventIterationStart:
				fmt.Fprintf(os.Stderr, "--- iteration %d ---\n", ev.Iteration)
			case agent.EventSQLExecuting:
				fmt.Fprintf(os.Stderr, "sql: %s\n", ev.SQL)
			case agent.EventSQLResult:
				if ev.Result != nil && ev.Result.Success {
					fmt.Fprintf(os.Stderr, "rows: %d\n", ev.Result.Count)
				} else if ev.Result != nil {
					fmt.Fprintf(os.Stderr, "error: %s\n", ev.Result.Error)
				}
			case agent.EventError:
				fmt.Fprintf(os.Stderr, "rejected: %s\n", ev.Error)
			}
		}
	}

	out, err := ag.RunStream(ctx, question, sink)
	if err != nil {
		return err
	}

	if out.Status == agent.StatusFailed {
		return fmt.Errorf("%s", out.Error)
	}

	fmt.Println(out.Answer)
	fmt.Println()

	if res := lastResult(out); res != nil && res.Count > 0 {
		renderTable(res)
	}
	fmt.Printf("(%d iteration(s), status %s", out.Iterations, out.Status)
	if out.Degraded {
		fmt.Printf(", degraded")
	}
	fmt.Println(")")
	return nil
}

func lastResult(out *agent.Outcome) *executor.Result {
	for i := len(out.History) - 1; i >= 0; i-- {
		t := out.History[i]
		if t.Execution != nil && t.Execution.Success {
			return t.Execution
		}
	}
	return nil
}

func renderTable(res *executor.Result) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(res.Columns)

	for _, row := range res.Rows {
		cells := make([]string, 0, len(res.Columns))
		for _, col := range res.Columns {
			cells = append(cells, fmt.Sprintf("%v", row[col]))
		}
		table.Append(cells)
	}
	table.Render()
	if res.Truncated {
		fmt.Println("(result truncated at the row ceiling)")
	}
}
