package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
)

// Snapshot is the complete pool and wrapper state pinned to one block.
type Snapshot struct {
	Block     uint64
	Pool      distribution.Address
	Tick      int64
	Positions []distribution.Position

	Wrapper       distribution.Address
	WrapperSupply *big.Int
	Holders       []distribution.WrapperHolderBalance
}

type LoaderConfig struct {
	Logger   *slog.Logger
	Source   Source
	Wrapper  distribution.Address
	PageSize int
}

func (cfg *LoaderConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Source == nil {
		return errors.New("source is required")
	}
	if cfg.Wrapper == "" {
		return errors.New("wrapper address is required")
	}
	cfg.Wrapper = distribution.NormalizeAddress(cfg.Wrapper.String())
	if cfg.PageSize < 0 {
		return errors.New("page size must not be negative")
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = PageSize
	}
	return nil
}

type Loader struct {
	log *slog.Logger
	cfg LoaderConfig
}

func NewLoader(cfg LoaderConfig) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loader{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Load fetches the pool side and the wrapper side of the snapshot concurrently.
// A failure on either side fails the whole snapshot.
func (l *Loader) Load(ctx context.Context, pool distribution.Address, block uint64) (*Snapshot, error) {
	snap := &Snapshot{
		Block:   block,
		Pool:    pool,
		Wrapper: l.cfg.Wrapper,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tick, positions, err := l.LoadPositions(gctx, pool, block)
		if err != nil {
			return err
		}
		snap.Tick = tick
		snap.Positions = positions
		return nil
	})
	g.Go(func() error {
		supply, err := l.LoadWrapperSupply(gctx, block)
		if err != nil {
			return err
		}
		snap.WrapperSupply = supply
		if supply.Sign() == 0 {
			l.log.Debug("snapshot: wrapper supply is zero, skipping holders", "block", block, "wrapper", l.cfg.Wrapper)
			return nil
		}
		holders, err := l.LoadWrapperHolders(gctx, block)
		if err != nil {
			return err
		}
		snap.Holders = holders
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load snapshot at block %d: %w", block, err)
	}

	return snap, nil
}

// LoadPositions reads the pool tick at block, then pages through every position in range of it.
func (l *Loader) LoadPositions(ctx context.Context, pool distribution.Address, block uint64) (int64, []distribution.Position, error) {
	start := time.Now()

	tick, err := l.cfg.Source.PoolTick(ctx, pool, block)
	if err != nil {
		return 0, nil, upstreamError("fetch pool tick", err)
	}
	l.log.Debug("snapshot: pool tick", "block", block, "pool", pool, "tick", tick, "tick_price", TickPrice(tick).String())

	positions, err := paginate(ctx, l.cfg.PageSize, func(ctx context.Context, afterID string) ([]distribution.Position, error) {
		page, err := l.cfg.Source.PositionsPage(ctx, PositionsPageRequest{
			Pool:    pool,
			Block:   block,
			Tick:    tick,
			AfterID: afterID,
			First:   l.cfg.PageSize,
		})
		if err != nil {
			return nil, upstreamError("fetch positions page", err)
		}
		return page, nil
	}, func(p distribution.Position) string { return p.ID })
	if err != nil {
		return 0, nil, err
	}

	l.log.Debug("snapshot: loaded positions", "block", block, "pool", pool, "count", len(positions), "duration", time.Since(start).String())
	return tick, positions, nil
}

// LoadWrapperSupply returns the wrapper total supply at block. A wrapper the source
// does not know yet has zero supply.
func (l *Loader) LoadWrapperSupply(ctx context.Context, block uint64) (*big.Int, error) {
	supply, err := l.cfg.Source.WrapperTotalSupply(ctx, l.cfg.Wrapper, block)
	if err != nil {
		return nil, upstreamError("fetch wrapper total supply", err)
	}
	if supply == nil {
		return new(big.Int), nil
	}
	if supply.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative wrapper total supply %s", ErrUpstreamUnavailable, supply)
	}
	return supply, nil
}

// LoadWrapperHolders pages through every wrapper holder balance at block.
func (l *Loader) LoadWrapperHolders(ctx context.Context, block uint64) ([]distribution.WrapperHolderBalance, error) {
	start := time.Now()

	holders, err := paginate(ctx, l.cfg.PageSize, func(ctx context.Context, afterID string) ([]distribution.WrapperHolderBalance, error) {
		page, err := l.cfg.Source.WrapperHoldersPage(ctx, HoldersPageRequest{
			Wrapper: l.cfg.Wrapper,
			Block:   block,
			AfterID: afterID,
			First:   l.cfg.PageSize,
		})
		if err != nil {
			return nil, upstreamError("fetch wrapper holders page", err)
		}
		return page, nil
	}, func(h distribution.WrapperHolderBalance) string { return h.Holder })
	if err != nil {
		return nil, err
	}

	l.log.Debug("snapshot: loaded wrapper holders", "block", block, "wrapper", l.cfg.Wrapper, "count", len(holders), "duration", time.Since(start).String())
	return holders, nil
}

// TickPrice renders 1.0001^tick scaled by 10^12 for display. Never use it for amounts.
func TickPrice(tick int64) decimal.Decimal {
	p := math.Pow(1.0001, float64(tick))
	if math.IsInf(p, 0) || math.IsNaN(p) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(p).Shift(12)
}
