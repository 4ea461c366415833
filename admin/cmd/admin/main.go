package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/opiumfinance/lprewards/admin/internal/admin"
	"github.com/opiumfinance/lprewards/rewards/pkg/clickhouse"
	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
	"github.com/opiumfinance/lprewards/rewards/pkg/driver"
	"github.com/opiumfinance/lprewards/utils/pkg/logger"
)

const (
	defaultPoolAddress    = "0x5cef3aed38eb937f3dc0864307ac6c9a9694abfa"
	defaultWrapperAddress = "0x2a2cd905141f1cdf3620db6a1ed0abc4f7e8635c"
	defaultBudgetPerStep  = "1000000000000000000"
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

	// ClickHouse configuration
	clickhouseAddrFlag := flag.String("clickhouse-addr", "", "ClickHouse address (host:port) (or set CLICKHOUSE_ADDR_TCP env var)")
	clickhouseDatabaseFlag := flag.String("clickhouse-database", "default", "ClickHouse database name (or set CLICKHOUSE_DATABASE env var)")
	clickhouseUsernameFlag := flag.String("clickhouse-username", "default", "ClickHouse username (or set CLICKHOUSE_USERNAME env var)")
	clickhousePasswordFlag := flag.String("clickhouse-password", "", "ClickHouse password (or set CLICKHOUSE_PASSWORD env var)")
	clickhouseSecureFlag := flag.Bool("clickhouse-secure", false, "Enable TLS for ClickHouse Cloud (or set CLICKHOUSE_SECURE=true env var)")

	// Subgraph configuration (for recalculate)
	poolSubgraphURLFlag := flag.String("uniswap-subgraph-url", "", "Pool subgraph endpoint (or set UNISWAP_SUBGRAPH_URL env var)")
	wrapperSubgraphURLFlag := flag.String("wrapper-subgraph-url", "", "Wrapper subgraph endpoint (or set WRAPPER_SUBGRAPH_URL env var)")
	subgraphRPSFlag := flag.Float64("subgraph-rps", 0, "Maximum subgraph requests per second (0 = unlimited)")
	poolAddressFlag := flag.String("pool-address", defaultPoolAddress, "Liquidity pool address")
	wrapperAddressFlag := flag.String("wrapper-address", defaultWrapperAddress, "Wrapper token address")

	// Commands
	clickhouseMigrateFlag := flag.Bool("clickhouse-migrate", false, "Run ClickHouse reward audit migrations using goose")
	clickhouseMigrateStatusFlag := flag.Bool("clickhouse-migrate-status", false, "Show ClickHouse reward audit migration status")
	clickhouseRollbackFlag := flag.Bool("clickhouse-rollback", false, "Roll back the most recent ClickHouse migration")
	resetDBFlag := flag.Bool("reset-db", false, "Drop all reward_* tables and the migration version table")
	recalculateFlag := flag.Bool("recalculate", false, "Run one reward pass over a block range and print it as JSON")
	dryRunFlag := flag.Bool("dry-run", false, "Dry run mode - show what would be done without actually executing")
	yesFlag := flag.Bool("yes", false, "Skip confirmation prompt (use with caution)")

	// Recalculate options
	fromBlockFlag := flag.Uint64("from-block", 0, "First snapshot block (inclusive)")
	toBlockFlag := flag.Uint64("to-block", 0, "End of the range (exclusive)")
	stepBlocksFlag := flag.Uint64("step-blocks", 240, "Blocks between snapshots")
	budgetPerStepFlag := flag.String("budget-per-step", defaultBudgetPerStep, "Reward units distributed per snapshot (base-10 integer)")
	skipFailedFlag := flag.Bool("skip-failed-intervals", false, "Skip intervals whose snapshot cannot be loaded instead of failing")
	recordFlag := flag.Bool("record", false, "Record every interval of the recalculated pass to ClickHouse")

	flag.Parse()

	log := logger.New(*verboseFlag)

	// Override flags with environment variables if set
	if envClickhouseAddr := os.Getenv("CLICKHOUSE_ADDR_TCP"); envClickhouseAddr != "" {
		*clickhouseAddrFlag = envClickhouseAddr
	}
	if envClickhouseDatabase := os.Getenv("CLICKHOUSE_DATABASE"); envClickhouseDatabase != "" {
		*clickhouseDatabaseFlag = envClickhouseDatabase
	}
	if envClickhouseUsername := os.Getenv("CLICKHOUSE_USERNAME"); envClickhouseUsername != "" {
		*clickhouseUsernameFlag = envClickhouseUsername
	}
	if envClickhousePassword := os.Getenv("CLICKHOUSE_PASSWORD"); envClickhousePassword != "" {
		*clickhousePasswordFlag = envClickhousePassword
	}
	if os.Getenv("CLICKHOUSE_SECURE") == "true" {
		*clickhouseSecureFlag = true
	}
	if envPoolSubgraphURL := os.Getenv("UNISWAP_SUBGRAPH_URL"); envPoolSubgraphURL != "" {
		*poolSubgraphURLFlag = envPoolSubgraphURL
	}
	if envWrapperSubgraphURL := os.Getenv("WRAPPER_SUBGRAPH_URL"); envWrapperSubgraphURL != "" {
		*wrapperSubgraphURLFlag = envWrapperSubgraphURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chCfg := clickhouse.ClientConfig{
		Addr:     *clickhouseAddrFlag,
		Database: *clickhouseDatabaseFlag,
		Username: *clickhouseUsernameFlag,
		Password: *clickhousePasswordFlag,
		Secure:   *clickhouseSecureFlag,
	}

	// Execute commands
	if *clickhouseMigrateFlag {
		if chCfg.Addr == "" {
			return fmt.Errorf("--clickhouse-addr is required for --clickhouse-migrate")
		}
		return clickhouse.RunMigrations(ctx, log, chCfg)
	}

	if *clickhouseMigrateStatusFlag {
		if chCfg.Addr == "" {
			return fmt.Errorf("--clickhouse-addr is required for --clickhouse-migrate-status")
		}
		return clickhouse.MigrationStatus(ctx, log, chCfg)
	}

	if *clickhouseRollbackFlag {
		if chCfg.Addr == "" {
			return fmt.Errorf("--clickhouse-addr is required for --clickhouse-rollback")
		}
		return clickhouse.Down(ctx, log, chCfg)
	}

	if *resetDBFlag {
		if chCfg.Addr == "" {
			return fmt.Errorf("--clickhouse-addr is required for --reset-db")
		}
		return admin.ResetDB(ctx, log, chCfg, *dryRunFlag, *yesFlag, os.Stdin, os.Stdout)
	}

	if *recalculateFlag {
		if *poolSubgraphURLFlag == "" || *wrapperSubgraphURLFlag == "" {
			return fmt.Errorf("--uniswap-subgraph-url and --wrapper-subgraph-url are required for --recalculate")
		}
		pool, err := distribution.ParseAddress(*poolAddressFlag)
		if err != nil {
			return fmt.Errorf("invalid --pool-address: %w", err)
		}
		wrapper, err := distribution.ParseAddress(*wrapperAddressFlag)
		if err != nil {
			return fmt.Errorf("invalid --wrapper-address: %w", err)
		}
		budget, ok := new(big.Int).SetString(*budgetPerStepFlag, 10)
		if !ok || budget.Sign() < 0 {
			return fmt.Errorf("invalid --budget-per-step %q", *budgetPerStepFlag)
		}

		cfg := admin.RecalculateConfig{
			PoolSubgraphURL:    *poolSubgraphURLFlag,
			WrapperSubgraphURL: *wrapperSubgraphURLFlag,
			SubgraphRPS:        *subgraphRPSFlag,
			Pool:               pool,
			Wrapper:            wrapper,
			Range:              driver.Range{From: *fromBlockFlag, To: *toBlockFlag, Step: *stepBlocksFlag},
			BudgetPerStep:      budget,
			SkipFailed:         *skipFailedFlag,
		}
		if *recordFlag {
			if chCfg.Addr == "" {
				return fmt.Errorf("--clickhouse-addr is required for --record")
			}
			cfg.ClickHouse = &chCfg
		}
		return admin.Recalculate(ctx, log, cfg, os.Stdout)
	}

	flag.Usage()
	return nil
}
