package accrual

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
)

// ErrDuplicateMerge is returned when an interval's allocation is merged twice.
var ErrDuplicateMerge = errors.New("interval already merged")

type User = distribution.User

// RunningTotal accumulates per-address rewards across the intervals of one pass.
// It is not safe for concurrent mutation; once a pass completes it is only read.
type RunningTotal struct {
	totals map[distribution.Address]*big.Int
	merged map[uint64]struct{}

	budget    *big.Int
	dust      *big.Int
	unclaimed *big.Int
}

func New() *RunningTotal {
	return &RunningTotal{
		totals:    make(map[distribution.Address]*big.Int),
		merged:    make(map[uint64]struct{}),
		budget:    new(big.Int),
		dust:      new(big.Int),
		unclaimed: new(big.Int),
	}
}

// Merge adds every reward in the allocation to the running total. Each snapshot
// block may be merged at most once.
func (t *RunningTotal) Merge(a *distribution.Allocation) error {
	if _, ok := t.merged[a.Block]; ok {
		return fmt.Errorf("%w: block %d", ErrDuplicateMerge, a.Block)
	}
	t.merged[a.Block] = struct{}{}

	for addr, amount := range a.Rewards {
		cur, ok := t.totals[addr]
		if !ok {
			cur = new(big.Int)
			t.totals[addr] = cur
		}
		cur.Add(cur, amount)
	}

	t.budget.Add(t.budget, a.Budget)
	t.dust.Add(t.dust, a.Dust)
	t.unclaimed.Add(t.unclaimed, a.Unclaimed)
	return nil
}

// Get returns a copy of the accumulated reward for addr, zero when absent.
func (t *RunningTotal) Get(addr distribution.Address) *big.Int {
	if v, ok := t.totals[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// User finds an entry by id, ignoring case.
func (t *RunningTotal) User(id string) (User, bool) {
	addr := distribution.NormalizeAddress(id)
	v, ok := t.totals[addr]
	if !ok {
		return User{}, false
	}
	return distribution.NewUser(addr, v), true
}

// Len returns the number of addresses with an entry.
func (t *RunningTotal) Len() int { return len(t.totals) }

// Intervals returns how many allocations were merged.
func (t *RunningTotal) Intervals() int { return len(t.merged) }

// Total returns the sum of every accumulated reward.
func (t *RunningTotal) Total() *big.Int {
	sum := new(big.Int)
	for _, v := range t.totals {
		sum.Add(sum, v)
	}
	return sum
}

func (t *RunningTotal) Budget() *big.Int    { return new(big.Int).Set(t.budget) }
func (t *RunningTotal) Dust() *big.Int      { return new(big.Int).Set(t.dust) }
func (t *RunningTotal) Unclaimed() *big.Int { return new(big.Int).Set(t.unclaimed) }

// Users returns every entry in address order.
func (t *RunningTotal) Users() []User {
	return distribution.RewardAllocation(t.totals).Users()
}
