package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/opiumfinance/lprewards/rewards/pkg/audit"
	"github.com/opiumfinance/lprewards/rewards/pkg/clickhouse"
	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
	"github.com/opiumfinance/lprewards/rewards/pkg/driver"
	"github.com/opiumfinance/lprewards/rewards/pkg/snapshot"
	"github.com/opiumfinance/lprewards/rewards/pkg/subgraph"
)

type RecalculateConfig struct {
	PoolSubgraphURL    string
	WrapperSubgraphURL string
	SubgraphRPS        float64

	Pool          distribution.Address
	Wrapper       distribution.Address
	Range         driver.Range
	BudgetPerStep *big.Int
	SkipFailed    bool

	// ClickHouse is optional. When set, every interval of the pass is recorded.
	ClickHouse *clickhouse.ClientConfig
}

// RecalculateOutput is the document written by Recalculate.
type RecalculateOutput struct {
	Summary driver.Summary      `json:"summary"`
	Users   []distribution.User `json:"users"`
}

// Recalculate runs one pass over cfg.Range and writes the summary and reward table
// as JSON to w.
func Recalculate(ctx context.Context, log *slog.Logger, cfg RecalculateConfig, w io.Writer) error {
	if cfg.BudgetPerStep == nil {
		return errors.New("budget per step is required")
	}
	if err := cfg.Range.Validate(); err != nil {
		return err
	}

	client, err := subgraph.NewClient(subgraph.Config{
		Logger:            log,
		PoolURL:           cfg.PoolSubgraphURL,
		WrapperURL:        cfg.WrapperSubgraphURL,
		RequestsPerSecond: cfg.SubgraphRPS,
	})
	if err != nil {
		return fmt.Errorf("failed to create subgraph client: %w", err)
	}

	loader, err := snapshot.NewLoader(snapshot.LoaderConfig{
		Logger:  log,
		Source:  client,
		Wrapper: cfg.Wrapper,
	})
	if err != nil {
		return fmt.Errorf("failed to create snapshot loader: %w", err)
	}

	driverCfg := driver.Config{
		Logger:              log,
		Loader:              loader,
		Pool:                cfg.Pool,
		Wrapper:             cfg.Wrapper,
		SkipFailedIntervals: cfg.SkipFailed,
	}

	if cfg.ClickHouse != nil {
		chDB, err := clickhouse.NewClient(ctx, log, *cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		defer chDB.Close()

		store, err := audit.NewStore(audit.StoreConfig{
			Logger:     log,
			ClickHouse: chDB,
			Pool:       cfg.Pool,
			Wrapper:    cfg.Wrapper,
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

	res, err := d.Run(ctx, cfg.Range, cfg.BudgetPerStep)
	if err != nil {
		return fmt.Errorf("failed to run pass: %w", err)
	}

	return writeResult(w, res)
}

func writeResult(w io.Writer, res *driver.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(RecalculateOutput{
		Summary: res.Summary(),
		Users:   res.Total.Users(),
	}); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
