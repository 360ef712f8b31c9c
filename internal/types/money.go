// README: Common money value object used across modules.
package types

import "strconv"

// DefaultCurrency is applied when a price arrives without one.
const DefaultCurrency = "PKR"

type Money struct {
	Amount   int64
	Currency string
}

func NewMoney(amount int64) Money {
	return Money{Amount: amount, Currency: DefaultCurrency}
}

// String renders the amount the way it is read out in calls ("450").
func (m Money) String() string {
	return strconv.FormatInt(m.Amount, 10)
}
