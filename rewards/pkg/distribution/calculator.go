package distribution

import (
	"math/big"
)

// ComputeLiquidityDistribution sums position liquidity per case-normalized owner.
// Positions with zero (or missing) liquidity are skipped entirely.
func ComputeLiquidityDistribution(positions []Position) LiquidityDistribution {
	d := LiquidityDistribution{
		ByOwner: make(map[Address]*big.Int),
		Total:   new(big.Int),
	}
	for _, p := range positions {
		if p.Liquidity == nil || p.Liquidity.Sign() <= 0 {
			continue
		}
		owner := NormalizeAddress(p.Owner)
		cur, ok := d.ByOwner[owner]
		if !ok {
			cur = new(big.Int)
			d.ByOwner[owner] = cur
		}
		cur.Add(cur, p.Liquidity)
		d.Total.Add(d.Total, p.Liquidity)
	}
	return d
}

// ComputeHolderShareTable returns floor(balance * scale / totalSupply) per holder.
// Balances reported more than once for the same holder are summed first. A zero or
// missing totalSupply yields an empty table.
func ComputeHolderShareTable(holders []WrapperHolderBalance, totalSupply, scale *big.Int) HolderShareTable {
	table := make(HolderShareTable)
	if totalSupply == nil || totalSupply.Sign() <= 0 {
		return table
	}

	balances := make(map[Address]*big.Int)
	for _, h := range holders {
		if h.Balance == nil || h.Balance.Sign() <= 0 {
			continue
		}
		holder := NormalizeAddress(h.Holder)
		cur, ok := balances[holder]
		if !ok {
			cur = new(big.Int)
			balances[holder] = cur
		}
		cur.Add(cur, h.Balance)
	}

	for holder, balance := range balances {
		share := new(big.Int).Mul(balance, scale)
		table[holder] = share.Quo(share, totalSupply)
	}
	return table
}
