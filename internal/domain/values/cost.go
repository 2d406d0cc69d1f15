package values

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cost represents money spent against providers. All provider pricing is USD;
// decimal arithmetic keeps budget enforcement exact.
type Cost struct {
	amount decimal.Decimal
}

func NewCost(amount decimal.Decimal) (Cost, error) {
	if amount.IsNegative() {
		return Cost{}, fmt.Errorf("cost cannot be negative: %s", amount)
	}
	return Cost{amount: amount}, nil
}

func NewCostFromFloat(amount float64) (Cost, error) {
	return NewCost(decimal.NewFromFloat(amount))
}

// MustNewCost panics on negative amounts. For constants and tests.
func MustNewCost(amount float64) Cost {
	c, err := NewCostFromFloat(amount)
	if err != nil {
		panic(err)
	}
	return c
}

func ZeroCost() Cost {
	return Cost{amount: decimal.Zero}
}

func (c Cost) Amount() decimal.Decimal {
	return c.amount
}

func (c Cost) Add(other Cost) Cost {
	return Cost{amount: c.amount.Add(other.amount)}
}

func (c Cost) GreaterThan(other Cost) bool {
	return c.amount.GreaterThan(other.amount)
}

func (c Cost) IsZero() bool {
	return c.amount.IsZero()
}

func (c Cost) Float() float64 {
	f, _ := c.amount.Float64()
	return f
}

func (c Cost) String() string {
	return c.amount.StringFixed(2) + " USD"
}
