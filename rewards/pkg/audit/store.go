package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/opiumfinance/lprewards/rewards/pkg/clickhouse"
	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
	"github.com/opiumfinance/lprewards/rewards/pkg/metrics"
)

const (
	intervalsTable   = "reward_intervals"
	allocationsTable = "reward_interval_allocations"
)

var (
	intervalColumns   = []string{"pass_id", "block", "pool", "wrapper", "budget", "credited", "dust", "unclaimed", "recipients", "computed_at"}
	allocationColumns = []string{"pass_id", "block", "address", "amount", "computed_at"}
)

type StoreConfig struct {
	Logger     *slog.Logger
	ClickHouse clickhouse.Client
	Clock      clockwork.Clock
	Pool       distribution.Address
	Wrapper    distribution.Address
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ClickHouse == nil {
		return errors.New("clickhouse connection is required")
	}
	if cfg.Pool == "" {
		return errors.New("pool address is required")
	}
	if cfg.Wrapper == "" {
		return errors.New("wrapper address is required")
	}
	cfg.Pool = distribution.NormalizeAddress(cfg.Pool.String())
	cfg.Wrapper = distribution.NormalizeAddress(cfg.Wrapper.String())
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Store appends every interval allocation of every pass to ClickHouse. It is an
// export only: passes never read it back.
type Store struct {
	log *slog.Logger
	cfg StoreConfig
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// RecordInterval writes one summary row for the interval and one row per credited address.
func (s *Store) RecordInterval(ctx context.Context, passID uuid.UUID, alloc *distribution.Allocation) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordClickHouseQuery(time.Since(start), err)
	}()

	s.log.Debug("audit/store: recording interval", "pass_id", passID, "block", alloc.Block, "recipients", len(alloc.Rewards))

	conn, err := s.cfg.ClickHouse.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get ClickHouse connection: %w", err)
	}
	defer conn.Close()

	computedAt := s.cfg.Clock.Now().UTC()
	addrs := alloc.Rewards.Addresses()

	if err := writeBatch(ctx, conn, allocationsTable, allocationColumns, len(addrs), func(i int) []any {
		return []any{
			passID,
			alloc.Block,
			addrs[i].String(),
			alloc.Rewards[addrs[i]],
			computedAt,
		}
	}); err != nil {
		return fmt.Errorf("failed to write interval allocations to ClickHouse: %w", err)
	}

	if err := writeBatch(ctx, conn, intervalsTable, intervalColumns, 1, func(int) []any {
		return []any{
			passID,
			alloc.Block,
			s.cfg.Pool.String(),
			s.cfg.Wrapper.String(),
			alloc.Budget,
			alloc.Credited(),
			alloc.Dust,
			alloc.Unclaimed,
			uint32(len(addrs)),
			computedAt,
		}
	}); err != nil {
		return fmt.Errorf("failed to write interval summary to ClickHouse: %w", err)
	}

	return nil
}
