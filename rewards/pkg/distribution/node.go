package distribution

import (
	"errors"
	"fmt"
	"math/big"
)

// Node receives an amount and spreads it over the Allocation.
type Node interface {
	Distribute(amount *big.Int, out *Allocation)
}

// Split divides an amount among weighted addresses: each address receives
// floor(amount * weight / denominator). An address with a delegate node does not
// receive its slice directly; the slice is handed to the delegate instead, which is
// how wrapper positions are resolved to their holders. Truncation remainders are
// recorded as dust; an amount reaching a split with no weights is recorded as unclaimed.
type Split struct {
	weights     map[Address]*big.Int
	denominator *big.Int
	delegates   map[Address]Node
}

// NewSplit validates that weights are non-negative and sum to at most denominator.
// Delegate keys are normalized so they match the lowercase weight keys.
func NewSplit(weights map[Address]*big.Int, denominator *big.Int, delegates map[Address]Node) (*Split, error) {
	normalized := make(map[Address]Node, len(delegates))
	for addr, node := range delegates {
		key := NormalizeAddress(addr.String())
		if _, ok := normalized[key]; ok {
			return nil, fmt.Errorf("duplicate delegate %s", key)
		}
		normalized[key] = node
	}

	sum := new(big.Int)
	for addr, w := range weights {
		if w == nil || w.Sign() < 0 {
			return nil, fmt.Errorf("negative weight for %s", addr)
		}
		sum.Add(sum, w)
	}
	if len(weights) > 0 {
		if denominator == nil || denominator.Sign() <= 0 {
			return nil, errors.New("denominator must be positive")
		}
		if sum.Cmp(denominator) > 0 {
			return nil, fmt.Errorf("weights sum %s exceeds denominator %s", sum, denominator)
		}
	}
	return &Split{
		weights:     weights,
		denominator: denominator,
		delegates:   normalized,
	}, nil
}

func (s *Split) Distribute(amount *big.Int, out *Allocation) {
	if len(s.weights) == 0 {
		out.Unclaimed.Add(out.Unclaimed, amount)
		return
	}

	distributed := new(big.Int)
	for _, addr := range sortedKeys(s.weights) {
		share := new(big.Int).Mul(amount, s.weights[addr])
		share.Quo(share, s.denominator)
		distributed.Add(distributed, share)

		if delegate, ok := s.delegates[addr]; ok {
			delegate.Distribute(share, out)
			continue
		}
		out.credit(addr, share)
	}

	out.Dust.Add(out.Dust, new(big.Int).Sub(amount, distributed))
}

// PoolNode splits by owner liquidity. Owners listed in delegates are resolved
// through their node instead of being credited.
func PoolNode(dist LiquidityDistribution, delegates map[Address]Node) (*Split, error) {
	if err := dist.Check(); err != nil {
		return nil, err
	}
	return NewSplit(dist.ByOwner, dist.Total, delegates)
}

// HolderNode splits by fixed-point holder share.
func HolderNode(table HolderShareTable, scale *big.Int) (*Split, error) {
	return NewSplit(table, scale, nil)
}
