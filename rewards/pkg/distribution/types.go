package distribution

import (
	"fmt"
	"math/big"
)

// ShareScaleDecimals is the number of decimals in a HolderShareTable fraction.
const ShareScaleDecimals = 12

// DefaultScale returns a fresh 10^12.
func DefaultScale() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(ShareScaleDecimals), nil)
}

// Position is one in-range liquidity position of the pool at a snapshot.
type Position struct {
	ID        string
	Owner     string
	Liquidity *big.Int
}

// WrapperHolderBalance is one holder's wrapper token balance at a snapshot.
type WrapperHolderBalance struct {
	Holder  string
	Balance *big.Int
}

// LiquidityDistribution is in-range liquidity summed per owner.
type LiquidityDistribution struct {
	ByOwner map[Address]*big.Int
	Total   *big.Int
}

// Owners returns the owners in address order.
func (d LiquidityDistribution) Owners() []Address {
	return sortedKeys(d.ByOwner)
}

// Check verifies Total equals the sum of ByOwner and that no owner has a non-positive weight.
func (d LiquidityDistribution) Check() error {
	sum := new(big.Int)
	for owner, l := range d.ByOwner {
		if l == nil || l.Sign() <= 0 {
			return fmt.Errorf("owner %s has non-positive liquidity", owner)
		}
		sum.Add(sum, l)
	}
	total := d.Total
	if total == nil {
		total = new(big.Int)
	}
	if sum.Cmp(total) != 0 {
		return fmt.Errorf("total liquidity %s does not match owner sum %s", total, sum)
	}
	return nil
}

// HolderShareTable maps a holder to its fraction of wrapper supply, scaled by a fixed-point scale.
type HolderShareTable map[Address]*big.Int

// Sum returns the sum of all shares.
func (t HolderShareTable) Sum() *big.Int {
	sum := new(big.Int)
	for _, s := range t {
		sum.Add(sum, s)
	}
	return sum
}

// RewardAllocation maps an address to the reward credited to it.
type RewardAllocation map[Address]*big.Int

// Sum returns the total credited.
func (r RewardAllocation) Sum() *big.Int {
	sum := new(big.Int)
	for _, v := range r {
		sum.Add(sum, v)
	}
	return sum
}

// Addresses returns the credited addresses in address order.
func (r RewardAllocation) Addresses() []Address {
	return sortedKeys(r)
}
