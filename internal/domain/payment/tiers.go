package payment

import (
	"errors"
	"slices"
)

var ErrInvalidAmount = errors.New("payment: amount is not an offered tier")

// DefaultTiers are the amounts offered on the landing page, in CFA.
var DefaultTiers = Tiers{2000, 3000, 5000}

// Tiers is the fixed set of amounts a visitor can pick from. Amounts are never typed in.
type Tiers []int64

func (t Tiers) Contains(amount int64) bool {
	return slices.Contains(t, amount)
}

// Validate rejects empty sets and non-positive amounts.
func (t Tiers) Validate() error {
	if len(t) == 0 {
		return errors.New("payment: at least one tier is required")
	}
	for _, a := range t {
		if a <= 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}
