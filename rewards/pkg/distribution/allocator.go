package distribution

import (
	"errors"
	"fmt"
	"math/big"
)

// Allocate splits budget across the pool by liquidity. The wrapper's slice is
// further split across its holders by share; the wrapper address itself is never
// credited. The wrapper is matched against pool owners case-insensitively.
func Allocate(block uint64, budget *big.Int, dist LiquidityDistribution, wrapper Address, holderShares HolderShareTable, scale *big.Int) (*Allocation, error) {
	holders, err := HolderNode(holderShares, scale)
	if err != nil {
		return nil, fmt.Errorf("failed to build holder node: %w", err)
	}
	return AllocateTree(block, budget, dist, map[Address]Node{wrapper: holders})
}

// AllocateTree splits budget across the pool, resolving each delegated owner
// through its node. Delegate keys match owners case-insensitively.
func AllocateTree(block uint64, budget *big.Int, dist LiquidityDistribution, delegates map[Address]Node) (*Allocation, error) {
	if budget == nil || budget.Sign() < 0 {
		return nil, errors.New("budget must be non-negative")
	}
	pool, err := PoolNode(dist, delegates)
	if err != nil {
		return nil, fmt.Errorf("failed to build pool node: %w", err)
	}

	alloc := newAllocation(block, budget)
	pool.Distribute(alloc.Budget, alloc)
	return alloc, nil
}
