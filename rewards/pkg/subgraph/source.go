package subgraph

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
	"github.com/opiumfinance/lprewards/rewards/pkg/snapshot"
)

const poolTickQuery = `
query getPoolTick($block_number: Int, $pool_address: ID) {
  pools(block: { number: $block_number }, where: { id: $pool_address }) {
    tick
  }
}`

const positionsQuery = `
query getPositions($block_number: Int, $tick_current: BigInt, $pool_address: String, $last_id: ID, $first: Int) {
  positions(
    first: $first
    block: { number: $block_number }
    where: { tickLower_lte: $tick_current, tickUpper_gt: $tick_current, pool: $pool_address, id_gt: $last_id }
    orderBy: id
    orderDirection: asc
  ) {
    id
    owner
    liquidity
  }
}`

const wrapperSupplyQuery = `
query getWrapperSupply($block_number: Int, $pool_address: ID) {
  pools(block: { number: $block_number }, where: { id: $pool_address }) {
    totalSupply
  }
}`

const wrapperHoldersQuery = `
query getWrapperHolders($block_number: Int, $last_id: ID, $first: Int) {
  users(
    first: $first
    block: { number: $block_number }
    where: { id_gt: $last_id }
    orderBy: id
    orderDirection: asc
  ) {
    id
    balance
  }
}`

var _ snapshot.Source = (*Client)(nil)

// PoolTick returns the current tick of pool at block.
func (c *Client) PoolTick(ctx context.Context, pool distribution.Address, block uint64) (int64, error) {
	var data struct {
		Pools []struct {
			Tick *string `json:"tick"`
		} `json:"pools"`
	}
	if err := c.PostQuery(ctx, c.cfg.PoolURL, poolTickQuery, map[string]any{
		"block_number": block,
		"pool_address": pool.String(),
	}, &data); err != nil {
		return 0, fmt.Errorf("failed to query pool tick: %w", err)
	}

	if len(data.Pools) == 0 {
		return 0, fmt.Errorf("%w: pool %s not found at block %d", snapshot.ErrUpstreamUnavailable, pool, block)
	}
	if data.Pools[0].Tick == nil {
		return 0, fmt.Errorf("%w: pool %s has no tick at block %d", snapshot.ErrUpstreamUnavailable, pool, block)
	}
	tick, err := strconv.ParseInt(*data.Pools[0].Tick, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid tick %q: %w", snapshot.ErrUpstreamUnavailable, *data.Pools[0].Tick, err)
	}
	return tick, nil
}

// PositionsPage returns one page of positions whose range contains the tick.
func (c *Client) PositionsPage(ctx context.Context, req snapshot.PositionsPageRequest) ([]distribution.Position, error) {
	var data struct {
		Positions []struct {
			ID        string `json:"id"`
			Owner     string `json:"owner"`
			Liquidity string `json:"liquidity"`
		} `json:"positions"`
	}
	if err := c.PostQuery(ctx, c.cfg.PoolURL, positionsQuery, map[string]any{
		"block_number": req.Block,
		"tick_current": strconv.FormatInt(req.Tick, 10),
		"pool_address": req.Pool.String(),
		"last_id":      req.AfterID,
		"first":        req.First,
	}, &data); err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}

	positions := make([]distribution.Position, 0, len(data.Positions))
	for _, p := range data.Positions {
		owner, err := distribution.ParseAddress(p.Owner)
		if err != nil {
			return nil, fmt.Errorf("%w: position %s: %w", snapshot.ErrUpstreamUnavailable, p.ID, err)
		}
		liquidity, err := parseAmount(p.Liquidity)
		if err != nil {
			return nil, fmt.Errorf("%w: position %s liquidity: %w", snapshot.ErrUpstreamUnavailable, p.ID, err)
		}
		positions = append(positions, distribution.Position{
			ID:        p.ID,
			Owner:     owner.String(),
			Liquidity: liquidity,
		})
	}
	return positions, nil
}

// WrapperTotalSupply returns the wrapper total supply at block, zero when the
// wrapper is not indexed yet.
func (c *Client) WrapperTotalSupply(ctx context.Context, wrapper distribution.Address, block uint64) (*big.Int, error) {
	var data struct {
		Pools []struct {
			TotalSupply string `json:"totalSupply"`
		} `json:"pools"`
	}
	if err := c.PostQuery(ctx, c.cfg.WrapperURL, wrapperSupplyQuery, map[string]any{
		"block_number": block,
		"pool_address": wrapper.String(),
	}, &data); err != nil {
		return nil, fmt.Errorf("failed to query wrapper supply: %w", err)
	}

	if len(data.Pools) == 0 {
		return new(big.Int), nil
	}
	supply, err := parseAmount(data.Pools[0].TotalSupply)
	if err != nil {
		return nil, fmt.Errorf("%w: wrapper total supply: %w", snapshot.ErrUpstreamUnavailable, err)
	}
	return supply, nil
}

// WrapperHoldersPage returns one page of wrapper holder balances.
func (c *Client) WrapperHoldersPage(ctx context.Context, req snapshot.HoldersPageRequest) ([]distribution.WrapperHolderBalance, error) {
	var data struct {
		Users []struct {
			ID      string `json:"id"`
			Balance string `json:"balance"`
		} `json:"users"`
	}
	if err := c.PostQuery(ctx, c.cfg.WrapperURL, wrapperHoldersQuery, map[string]any{
		"block_number": req.Block,
		"last_id":      req.AfterID,
		"first":        req.First,
	}, &data); err != nil {
		return nil, fmt.Errorf("failed to query wrapper holders: %w", err)
	}

	holders := make([]distribution.WrapperHolderBalance, 0, len(data.Users))
	for _, u := range data.Users {
		holder, err := distribution.ParseAddress(u.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: holder: %w", snapshot.ErrUpstreamUnavailable, err)
		}
		balance, err := parseAmount(u.Balance)
		if err != nil {
			return nil, fmt.Errorf("%w: holder %s balance: %w", snapshot.ErrUpstreamUnavailable, holder, err)
		}
		holders = append(holders, distribution.WrapperHolderBalance{
			Holder:  holder.String(),
			Balance: balance,
		})
	}
	return holders, nil
}

// parseAmount decodes an unsigned base-10 integer.
func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}
