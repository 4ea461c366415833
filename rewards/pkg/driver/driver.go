package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/opiumfinance/lprewards/rewards/pkg/accrual"
	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
	"github.com/opiumfinance/lprewards/rewards/pkg/metrics"
	"github.com/opiumfinance/lprewards/rewards/pkg/snapshot"
)

// ErrInvalidRange is returned for a block range the driver cannot step through.
var ErrInvalidRange = errors.New("invalid block range")

// Range is the half-open block range [From, To) walked in Step sized intervals.
type Range struct {
	From uint64 `json:"from_block"`
	To   uint64 `json:"to_block"`
	Step uint64 `json:"step_blocks"`
}

func (r Range) Validate() error {
	if r.Step == 0 {
		return fmt.Errorf("%w: step must be greater than 0", ErrInvalidRange)
	}
	if r.From > r.To {
		return fmt.Errorf("%w: from block %d is after to block %d", ErrInvalidRange, r.From, r.To)
	}
	return nil
}

// Intervals returns the snapshot blocks of the range in order.
func (r Range) Intervals() []uint64 {
	var blocks []uint64
	for block := r.From; block < r.To; block += r.Step {
		blocks = append(blocks, block)
		if block > math.MaxUint64-r.Step {
			break
		}
	}
	return blocks
}

// SnapshotLoader loads the pool and wrapper state at one block.
type SnapshotLoader interface {
	Load(ctx context.Context, pool distribution.Address, block uint64) (*snapshot.Snapshot, error)
}

// IntervalRecorder receives every merged allocation of a pass.
type IntervalRecorder interface {
	RecordInterval(ctx context.Context, passID uuid.UUID, alloc *distribution.Allocation) error
}

type Config struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Loader  SnapshotLoader
	Pool    distribution.Address
	Wrapper distribution.Address
	// Scale is the fixed-point denominator of holder shares. Defaults to 10^12.
	Scale *big.Int
	// SkipFailedIntervals logs and skips an interval whose snapshot cannot be loaded
	// instead of failing the pass.
	SkipFailedIntervals bool
	// Recorder is optional. Recording failures are logged and do not fail the pass.
	Recorder IntervalRecorder
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Loader == nil {
		return errors.New("snapshot loader is required")
	}
	if cfg.Pool == "" {
		return errors.New("pool address is required")
	}
	if cfg.Wrapper == "" {
		return errors.New("wrapper address is required")
	}
	cfg.Pool = distribution.NormalizeAddress(cfg.Pool.String())
	cfg.Wrapper = distribution.NormalizeAddress(cfg.Wrapper.String())
	if cfg.Scale == nil {
		cfg.Scale = distribution.DefaultScale()
	}
	if cfg.Scale.Sign() <= 0 {
		return errors.New("scale must be greater than 0")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Driver walks a block range and accumulates each interval's allocation.
type Driver struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Result is one completed pass. It is not modified after Run returns.
type Result struct {
	PassID        uuid.UUID
	Range         Range
	BudgetPerStep *big.Int
	Total         *accrual.RunningTotal
	// Skipped lists interval blocks that failed and were skipped.
	Skipped    []uint64
	ComputedAt time.Time
}

// Run computes a fresh running total over rng, allocating budget at every interval.
func (d *Driver) Run(ctx context.Context, rng Range, budget *big.Int) (*Result, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	if budget == nil || budget.Sign() < 0 {
		return nil, errors.New("budget per step must not be negative")
	}

	res := &Result{
		PassID:        uuid.New(),
		Range:         rng,
		BudgetPerStep: new(big.Int).Set(budget),
		Total:         accrual.New(),
	}
	log := d.log.With("pass_id", res.PassID)
	log.Info("driver: pass started", "from_block", rng.From, "to_block", rng.To, "step_blocks", rng.Step, "budget_per_step", budget.String())
	start := time.Now()

	for _, block := range rng.Intervals() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		intervalStart := time.Now()
		alloc, err := d.Interval(ctx, block, budget)
		metrics.IntervalDuration.Observe(time.Since(intervalStart).Seconds())
		if err != nil {
			if d.cfg.SkipFailedIntervals && ctx.Err() == nil {
				log.Warn("driver: skipping failed interval", "block", block, "error", err)
				metrics.IntervalsTotal.WithLabelValues("skipped").Inc()
				res.Skipped = append(res.Skipped, block)
				continue
			}
			metrics.IntervalsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to process interval at block %d: %w", block, err)
		}

		if err := res.Total.Merge(alloc); err != nil {
			return nil, fmt.Errorf("failed to merge interval at block %d: %w", block, err)
		}
		metrics.IntervalsTotal.WithLabelValues("merged").Inc()

		log.Debug("driver: interval merged",
			"block", block,
			"recipients", len(alloc.Rewards),
			"credited", alloc.Credited().String(),
			"dust", alloc.Dust.String(),
			"unclaimed", alloc.Unclaimed.String(),
		)

		if d.cfg.Recorder != nil {
			if err := d.cfg.Recorder.RecordInterval(ctx, res.PassID, alloc); err != nil {
				log.Warn("driver: failed to record interval", "block", block, "error", err)
			}
		}
	}

	res.ComputedAt = d.cfg.Clock.Now().UTC()
	log.Info("driver: pass completed",
		"intervals", res.Total.Intervals(),
		"skipped", len(res.Skipped),
		"users", res.Total.Len(),
		"budget", res.Total.Budget().String(),
		"credited", res.Total.Total().String(),
		"dust", res.Total.Dust().String(),
		"unclaimed", res.Total.Unclaimed().String(),
		"duration", time.Since(start).String(),
	)
	return res, nil
}

// Interval loads the snapshot at block and allocates budget over it.
func (d *Driver) Interval(ctx context.Context, block uint64, budget *big.Int) (*distribution.Allocation, error) {
	snap, err := d.cfg.Loader.Load(ctx, d.cfg.Pool, block)
	if err != nil {
		return nil, err
	}

	dist := distribution.ComputeLiquidityDistribution(snap.Positions)
	shares := distribution.ComputeHolderShareTable(snap.Holders, snap.WrapperSupply, d.cfg.Scale)

	alloc, err := distribution.Allocate(block, budget, dist, d.cfg.Wrapper, shares, d.cfg.Scale)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate: %w", err)
	}
	if err := alloc.Check(); err != nil {
		return nil, err
	}

	if alloc.Unclaimed.Sign() > 0 {
		d.log.Info("driver: interval reward unclaimed",
			"block", block,
			"unclaimed", alloc.Unclaimed.String(),
			"owners", len(dist.ByOwner),
			"holders", len(shares),
		)
	}
	return alloc, nil
}
