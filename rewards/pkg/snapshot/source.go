package snapshot

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
)

// PageSize is the fixed number of records the indexed source returns per page.
const PageSize = 1000

// ErrUpstreamUnavailable wraps every failed or malformed fetch from the indexed source.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// PositionsPageRequest selects one page of in-range positions of a pool at a block.
type PositionsPageRequest struct {
	Pool  distribution.Address
	Block uint64
	Tick  int64
	// AfterID is the exclusive lower bound on position id; empty for the first page.
	AfterID string
	First   int
}

// HoldersPageRequest selects one page of wrapper holder balances at a block.
type HoldersPageRequest struct {
	Wrapper distribution.Address
	Block   uint64
	AfterID string
	First   int
}

// Source is the indexed data source the loader pages through. Pages must be ordered
// by id ascending and hold at most First records.
type Source interface {
	PoolTick(ctx context.Context, pool distribution.Address, block uint64) (int64, error)
	PositionsPage(ctx context.Context, req PositionsPageRequest) ([]distribution.Position, error)
	WrapperTotalSupply(ctx context.Context, wrapper distribution.Address, block uint64) (*big.Int, error)
	WrapperHoldersPage(ctx context.Context, req HoldersPageRequest) ([]distribution.WrapperHolderBalance, error)
}

func upstreamError(op string, err error) error {
	if errors.Is(err, ErrUpstreamUnavailable) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, ErrUpstreamUnavailable, err)
}

// paginate requests pages keyed by the last seen id until a short page is returned.
func paginate[T any](ctx context.Context, pageSize int, fetch func(ctx context.Context, afterID string) ([]T, error), id func(T) string) ([]T, error) {
	var (
		all    []T
		cursor string
	)
	for {
		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		if len(page) > pageSize {
			return nil, fmt.Errorf("%w: page of %d records exceeds page size %d", ErrUpstreamUnavailable, len(page), pageSize)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}

		last := id(page[len(page)-1])
		if last <= cursor {
			return nil, fmt.Errorf("%w: page cursor %q did not advance past %q", ErrUpstreamUnavailable, last, cursor)
		}
		cursor = last
	}
}
