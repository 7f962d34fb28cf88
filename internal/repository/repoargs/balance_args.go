package repoargs

import "github.com/shopspring/decimal"

type BalanceUpdate struct {
	UserID    int64
	Currency  string
	Available decimal.Decimal
	Held      decimal.Decimal
}
