package distribution

import "math/big"

// User is the rendered reward entry of one address. Amounts are exact base-10 strings.
type User struct {
	ID       string `json:"id"`
	Deposits string `json:"deposits"`
	Rewards  string `json:"rewards"`
}

// NewUser renders addr with the given reward. Deposits are not tracked and are always "0".
func NewUser(addr Address, rewards *big.Int) User {
	return User{
		ID:       addr.String(),
		Deposits: "0",
		Rewards:  rewards.String(),
	}
}

// Users renders the rewards in address order.
func (r RewardAllocation) Users() []User {
	users := make([]User, 0, len(r))
	for _, addr := range r.Addresses() {
		users = append(users, NewUser(addr, r[addr]))
	}
	return users
}

// Users renders the interval's rewards in address order.
func (a *Allocation) Users() []User {
	return a.Rewards.Users()
}
