package distribution

import (
	"fmt"
	"math/big"
)

// Allocation is the outcome of distributing one interval's budget.
// Budget == Rewards.Sum() + Dust + Unclaimed holds exactly.
type Allocation struct {
	// Block is the snapshot block the allocation was computed at.
	Block  uint64
	Budget *big.Int

	Rewards RewardAllocation
	// Dust is budget lost at splits that had weights: integer truncation,
	// fixed-point share rounding, and wrapper supply held outside the holder table.
	Dust *big.Int
	// Unclaimed is budget routed to a node with nobody to pay, such as a wrapper
	// position whose holder table is empty.
	Unclaimed *big.Int
}

func newAllocation(block uint64, budget *big.Int) *Allocation {
	return &Allocation{
		Block:     block,
		Budget:    new(big.Int).Set(budget),
		Rewards:   make(RewardAllocation),
		Dust:      new(big.Int),
		Unclaimed: new(big.Int),
	}
}

// credit adds amount to addr. A zero amount creates no entry, so an address only
// appears in Rewards once it has been paid something.
func (a *Allocation) credit(addr Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	cur, ok := a.Rewards[addr]
	if !ok {
		cur = new(big.Int)
		a.Rewards[addr] = cur
	}
	cur.Add(cur, amount)
}

// Credited returns the sum of all rewards.
func (a *Allocation) Credited() *big.Int {
	return a.Rewards.Sum()
}

// Check verifies the allocation accounts for its whole budget.
func (a *Allocation) Check() error {
	accounted := a.Credited()
	accounted.Add(accounted, a.Dust)
	accounted.Add(accounted, a.Unclaimed)
	if accounted.Cmp(a.Budget) != 0 {
		return fmt.Errorf("allocation at block %d accounts for %s of budget %s", a.Block, accounted, a.Budget)
	}
	return nil
}
