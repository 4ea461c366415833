package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/opiumfinance/lprewards/rewards/pkg/audit"
	"github.com/opiumfinance/lprewards/rewards/pkg/chain"
	"github.com/opiumfinance/lprewards/rewards/pkg/clickhouse"
	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
	"github.com/opiumfinance/lprewards/rewards/pkg/driver"
	"github.com/opiumfinance/lprewards/rewards/pkg/metrics"
	"github.com/opiumfinance/lprewards/rewards/pkg/publish"
	"github.com/opiumfinance/lprewards/rewards/pkg/server"
	"github.com/opiumfinance/lprewards/rewards/pkg/snapshot"
	"github.com/opiumfinance/lprewards/rewards/pkg/subgraph"
	"github.com/opiumfinance/lprewards/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr      = "0.0.0.0:4000"
	defaultMetricsAddr     = "0.0.0.0:0"
	defaultPoolAddress     = "0x5cef3aed38eb937f3dc0864307ac6c9a9694abfa"
	defaultWrapperAddress  = "0x2a2cd905141f1cdf3620db6a1ed0abc4f7e8635c"
	defaultBudgetPerStep   = "1000000000000000000"
	defaultStepBlocks      = 240
	defaultLookbackBlocks  = 1000
	defaultRefreshInterval = time.Hour
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "Enable verbose (debug) logging")
	enablePprofFlag := flag.Bool("enable-pprof", false, "Enable pprof server")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "Address to serve the rewards API on")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 10*time.Second, "Maximum time to wait for in-flight requests during graceful shutdown")

	// Upstream configuration
	poolSubgraphURLFlag := flag.String("uniswap-subgraph-url", "", "Pool subgraph endpoint (or set UNISWAP_SUBGRAPH_URL env var)")
	wrapperSubgraphURLFlag := flag.String("wrapper-subgraph-url", "", "Wrapper subgraph endpoint (or set WRAPPER_SUBGRAPH_URL env var)")
	subgraphRPSFlag := flag.Float64("subgraph-rps", 0, "Maximum subgraph requests per second (0 = unlimited)")
	rpcURLFlag := flag.String("rpc-url", "", "Ethereum JSON-RPC endpoint used to read the chain head (or set RPC_URL env var)")

	// Reward parameters
	poolAddressFlag := flag.String("pool-address", defaultPoolAddress, "Liquidity pool address")
	wrapperAddressFlag := flag.String("wrapper-address", defaultWrapperAddress, "Wrapper token address")
	budgetPerStepFlag := flag.String("budget-per-step", defaultBudgetPerStep, "Reward units distributed per snapshot (base-10 integer)")
	stepBlocksFlag := flag.Uint64("step-blocks", defaultStepBlocks, "Blocks between snapshots")
	lookbackBlocksFlag := flag.Uint64("lookback-blocks", defaultLookbackBlocks, "Length of the recomputed window behind the chain head")
	refreshIntervalFlag := flag.Duration("refresh-interval", defaultRefreshInterval, "Interval between reward passes")
	skipFailedFlag := flag.Bool("skip-failed-intervals", false, "Skip intervals whose snapshot cannot be loaded instead of failing the pass")

	// API limits
	rateLimitFlag := flag.Float64("rate-limit", 10, "Requests per second allowed per client IP (0 = unlimited)")
	rateBurstFlag := flag.Int("rate-burst", 20, "Burst size of the per-IP rate limit")
	allowedOriginsFlag := flag.StringSlice("allowed-origins", nil, "CORS allowed origins (default any)")

	// ClickHouse configuration (optional audit export)
	clickhouseAddrFlag := flag.String("clickhouse-addr", "", "ClickHouse address (host:port); empty disables the audit export (or set CLICKHOUSE_ADDR_TCP env var)")
	clickhouseDatabaseFlag := flag.String("clickhouse-database", "default", "ClickHouse database name (or set CLICKHOUSE_DATABASE env var)")
	clickhouseUsernameFlag := flag.String("clickhouse-username", "default", "ClickHouse username (or set CLICKHOUSE_USERNAME env var)")
	clickhousePasswordFlag := flag.String("clickhouse-password", "", "ClickHouse password (or set CLICKHOUSE_PASSWORD env var)")
	clickhouseSecureFlag := flag.Bool("clickhouse-secure", false, "Enable TLS for ClickHouse Cloud (or set CLICKHOUSE_SECURE=true env var)")

	// S3 configuration (optional publishing)
	s3BucketFlag := flag.String("s3-bucket", "", "S3 bucket the users document is published to; empty disables publishing (or set S3_BUCKET env var)")
	s3KeyFlag := flag.String("s3-key", "", "S3 object key of the users document")
	s3RegionFlag := flag.String("s3-region", "", "AWS region (defaults to the SDK's resolution chain)")

	flag.Parse()

	log := logger.New(*verboseFlag)

	// Override flags with environment variables if set
	if v := os.Getenv("UNISWAP_SUBGRAPH_URL"); v != "" {
		*poolSubgraphURLFlag = v
	}
	if v := os.Getenv("WRAPPER_SUBGRAPH_URL"); v != "" {
		*wrapperSubgraphURLFlag = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		*rpcURLFlag = v
	}
	if v := os.Getenv("CLICKHOUSE_ADDR_TCP"); v != "" {
		*clickhouseAddrFlag = v
	}
	if v := os.Getenv("CLICKHOUSE_DATABASE"); v != "" {
		*clickhouseDatabaseFlag = v
	}
	if v := os.Getenv("CLICKHOUSE_USERNAME"); v != "" {
		*clickhouseUsernameFlag = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		*clickhousePasswordFlag = v
	}
	if os.Getenv("CLICKHOUSE_SECURE") == "true" {
		*clickhouseSecureFlag = true
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		*s3BucketFlag = v
	}

	if *poolSubgraphURLFlag == "" || *wrapperSubgraphURLFlag == "" {
		return errors.New("--uniswap-subgraph-url and --wrapper-subgraph-url are required")
	}
	if *rpcURLFlag == "" {
		return errors.New("--rpc-url is required")
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

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Release:     version,
			Environment: os.Getenv("SENTRY_ENVIRONMENT"),
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		log.Info("sentry initialized")
	}

	// Start pprof server if enabled
	if *enablePprofFlag {
		go func() {
			log.Info("starting pprof server", "address", "localhost:6060")
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				log.Error("failed to start pprof server", "error", err)
			}
		}()
	}

	// Start metrics server
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	subgraphClient, err := subgraph.NewClient(subgraph.Config{
		Logger:            log,
		PoolURL:           *poolSubgraphURLFlag,
		WrapperURL:        *wrapperSubgraphURLFlag,
		RequestsPerSecond: *subgraphRPSFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create subgraph client: %w", err)
	}

	loader, err := snapshot.NewLoader(snapshot.LoaderConfig{
		Logger:  log,
		Source:  subgraphClient,
		Wrapper: wrapper,
	})
	if err != nil {
		return fmt.Errorf("failed to create snapshot loader: %w", err)
	}

	driverCfg := driver.Config{
		Logger:              log,
		Loader:              loader,
		Pool:                pool,
		Wrapper:             wrapper,
		SkipFailedIntervals: *skipFailedFlag,
	}

	if *clickhouseAddrFlag != "" {
		chDB, err := clickhouse.NewClient(ctx, log, clickhouse.ClientConfig{
			Addr:     *clickhouseAddrFlag,
			Database: *clickhouseDatabaseFlag,
			Username: *clickhouseUsernameFlag,
			Password: *clickhousePasswordFlag,
			Secure:   *clickhouseSecureFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		defer chDB.Close()

		store, err := audit.NewStore(audit.StoreConfig{
			Logger:     log,
			ClickHouse: chDB,
			Pool:       pool,
			Wrapper:    wrapper,
		})
		if err != nil {
			return fmt.Errorf("failed to create audit store: %w", err)
		}
		driverCfg.Recorder = store
	}

	d, err := driver.New(driverCfg)
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}

	head, ethClient, err := chain.DialHeadReader(ctx, log, *rpcURLFlag)
	if err != nil {
		return err
	}
	defer ethClient.Close()

	viewCfg := driver.ViewConfig{
		Logger:          log,
		Runner:          d,
		Head:            head,
		RefreshInterval: *refreshIntervalFlag,
		LookbackBlocks:  *lookbackBlocksFlag,
		StepBlocks:      *stepBlocksFlag,
		BudgetPerStep:   budget,
	}

	if *s3BucketFlag != "" {
		publisher, err := newS3Publisher(ctx, log, *s3RegionFlag, *s3BucketFlag, *s3KeyFlag)
		if err != nil {
			return err
		}
		viewCfg.Publisher = publisher
	}

	view, err := driver.NewView(viewCfg)
	if err != nil {
		return fmt.Errorf("failed to create rewards view: %w", err)
	}
	view.Start(ctx)

	srv, err := server.New(server.Config{
		Logger:          log,
		View:            view,
		ListenAddr:      *listenAddrFlag,
		ShutdownTimeout: *shutdownTimeoutFlag,
		VersionInfo: server.VersionInfo{
			Version: version,
			Commit:  commit,
			Date:    date,
		},
		AllowedOrigins: *allowedOriginsFlag,
		RateLimit:      rate.Limit(*rateLimitFlag),
		RateBurst:      *rateBurstFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Run(ctx)
}

func newS3Publisher(ctx context.Context, log *slog.Logger, region, bucket, key string) (*publish.S3Publisher, error) {
	client, err := publish.NewS3Client(ctx, region)
	if err != nil {
		return nil, err
	}
	publisher, err := publish.NewS3Publisher(publish.S3PublisherConfig{
		Logger: log,
		Client: client,
		Bucket: bucket,
		Key:    key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 publisher: %w", err)
	}
	return publisher, nil
}
