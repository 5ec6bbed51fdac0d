package pricing

import (
	"errors"
	"math"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// MaxUnitAmount is the largest unit amount, in minor units, the payment
// processor accepts for a single line item.
const MaxUnitAmount Money = 99_999_999

var (
	// ErrExceedsLimit is returned when the converted amount is above the ceiling.
	ErrExceedsLimit = errors.New("pricing: amount exceeds processor limit")
	// ErrInvalidPrice is returned for negative or non-finite prices.
	ErrInvalidPrice = errors.New("pricing: invalid price")
)

// ToMinorUnits converts a decimal price in major units to minor units,
// rounding half away from zero. A non-positive max falls back to MaxUnitAmount.
func ToMinorUnits(price float64, max Money) (Money, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, ErrInvalidPrice
	}
	if max <= 0 {
		max = MaxUnitAmount
	}
	scaled := math.Round(price * 100)
	if scaled > float64(max) {
		return 0, ErrExceedsLimit
	}
	return Money(scaled), nil
}
