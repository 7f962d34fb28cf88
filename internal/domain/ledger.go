package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxAmountScale число знаков после запятой, которое хранит БД (NUMERIC(20, 8)).
const MaxAmountScale = 8

// ValidateAmount проверяет, что сумма положительная и помещается в MaxAmountScale знаков после запятой.
// Незначащие нули не учитываются: 1.000000000 допустимо.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than 0", ErrInvalidAmount, amount)
	}
	if !amount.Equal(amount.Truncate(MaxAmountScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, MaxAmountScale)
	}
	return nil
}

type delta struct {
	available int64
	held      int64
}

// transactionDeltas знаки изменения available/held для каждого типа операции.
var transactionDeltas = map[TransactionType]delta{
	TransactionCredit:    {available: 1, held: 0},
	TransactionDebit:     {available: -1, held: 0},
	TransactionHold:      {available: -1, held: 1},
	TransactionRelease:   {available: 1, held: -1},
	TransactionSettleOut: {available: 0, held: -1},
	TransactionSettleIn:  {available: 1, held: 0},
}

// Deltas возвращает изменения available и held для операции на сумму amount.
func (t TransactionType) Deltas(amount decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	d := transactionDeltas[t]
	return amount.Mul(decimal.NewFromInt(d.available)), amount.Mul(decimal.NewFromInt(d.held))
}

// ClosesHold сообщает, закрывает ли операция резерв. Для одной ссылки резерв закрывается ровно один раз.
func (t TransactionType) ClosesHold() bool {
	return t == TransactionRelease || t == TransactionSettleOut
}

// OppositeClosing возвращает вторую операцию закрытия резерва.
func (t TransactionType) OppositeClosing() TransactionType {
	if t == TransactionRelease {
		return TransactionSettleOut
	}
	return TransactionRelease
}

// ReplayTransactions суммирует изменения журнала, отсортированного по (created_at, id), начиная с нулевого баланса.
func ReplayTransactions(userID int64, currency string, transactions []BalanceTransaction) *Balance {
	balance := ZeroBalance(userID, currency)
	for _, t := range transactions {
		dAvailable, dHeld := t.Type.Deltas(t.Amount)
		balance.Available = balance.Available.Add(dAvailable)
		balance.Held = balance.Held.Add(dHeld)
		balance.UpdatedAt = t.CreatedAt
	}
	return balance
}

// HoldState состояние резерва по одной ссылке.
type HoldState string

const (
	HoldAbsent   HoldState = "absent"
	HoldOpen     HoldState = "open"
	HoldReleased HoldState = "released"
	HoldSettled  HoldState = "settled"
)

// HoldStateOf определяет состояние резерва по операциям журнала с одной ссылкой.
func HoldStateOf(transactions []BalanceTransaction) HoldState {
	state := HoldAbsent
	for _, t := range transactions {
		switch t.Type {
		case TransactionHold:
			if state == HoldAbsent {
				state = HoldOpen
			}
		case TransactionRelease:
			state = HoldReleased
		case TransactionSettleOut:
			state = HoldSettled
		}
	}
	return state
}
