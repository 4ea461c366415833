package driver

import "time"

// Summary describes a completed pass. Amounts are exact base-10 strings.
type Summary struct {
	PassID        string    `json:"pass_id"`
	Range         Range     `json:"range"`
	Intervals     int       `json:"intervals"`
	Skipped       []uint64  `json:"skipped_blocks"`
	Users         int       `json:"users"`
	BudgetPerStep string    `json:"budget_per_step"`
	Budget        string    `json:"budget"`
	Credited      string    `json:"credited"`
	Dust          string    `json:"dust"`
	Unclaimed     string    `json:"unclaimed"`
	ComputedAt    time.Time `json:"computed_at"`
}

func (r *Result) Summary() Summary {
	skipped := r.Skipped
	if skipped == nil {
		skipped = []uint64{}
	}
	return Summary{
		PassID:        r.PassID.String(),
		Range:         r.Range,
		Intervals:     r.Total.Intervals(),
		Skipped:       skipped,
		Users:         r.Total.Len(),
		BudgetPerStep: r.BudgetPerStep.String(),
		Budget:        r.Total.Budget().String(),
		Credited:      r.Total.Total().String(),
		Dust:          r.Total.Dust().String(),
		Unclaimed:     r.Total.Unclaimed().String(),
		ComputedAt:    r.ComputedAt,
	}
}
