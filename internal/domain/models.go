package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance средства юзера в одной валюте. Отсутствующая запись эквивалентна нулевому балансу.
type Balance struct {
	UserID    int64
	Currency  string
	Available decimal.Decimal
	Held      decimal.Decimal
	UpdatedAt time.Time
}

// ZeroBalance возвращает нулевой баланс для пары юзер/валюта.
func ZeroBalance(userID int64, currency string) *Balance {
	return &Balance{
		UserID:    userID,
		Currency:  currency,
		Available: decimal.Zero,
		Held:      decimal.Zero,
	}
}

// BalanceTransaction неизменяемая запись журнала операций над балансом.
// Amount всегда положителен, направление изменения полей баланса определяется Type.
type BalanceTransaction struct {
	ID            int64
	CreatedAt     time.Time
	UserID        int64
	Currency      string
	Amount        decimal.Decimal
	Type          TransactionType
	ReferenceID   string
	ReferenceType ReferenceType
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	HeldBefore    decimal.Decimal
	HeldAfter     decimal.Decimal
	Description   string
}

// ResultingBalance восстанавливает баланс, получившийся сразу после применения транзакции.
func (t BalanceTransaction) ResultingBalance() *Balance {
	return &Balance{
		UserID:    t.UserID,
		Currency:  t.Currency,
		Available: t.BalanceAfter,
		Held:      t.HeldAfter,
		UpdatedAt: t.CreatedAt,
	}
}

type Withdrawal struct {
	ID                string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	UserID            int64
	Currency          string
	Amount            decimal.Decimal
	Destination       string
	Status            WithdrawalStatus
	ExternalPayoutID  string
	FailureReason     FailureReason
	CommitAttempts    uint
	ReconcileRequired bool
	NextAttemptAt     time.Time
}

type PayoutRequest struct {
	IdempotencyKey string
	Currency       string
	Amount         decimal.Decimal
	Destination    string
}

type Payout struct {
	ID             string
	IdempotencyKey string
	Status         PayoutStatus
}

// WithdrawalEvent событие изменения состояния вывода средств.
type WithdrawalEvent struct {
	Type          WithdrawalEventType `json:"type"`
	WithdrawalID  string              `json:"withdrawal_id"`
	UserID        int64               `json:"user_id"`
	Currency      string              `json:"currency"`
	Amount        decimal.Decimal     `json:"amount"`
	Status        WithdrawalStatus    `json:"status"`
	FailureReason FailureReason       `json:"failure_reason,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// BalanceOperation параметры операции над балансом. Операции с одинаковыми ReferenceID, ReferenceType и типом
// (в рамках юзера и валюты) проводятся один раз. Операции без ReferenceID не дедуплицируются.
type BalanceOperation struct {
	UserID        int64
	Currency      string
	Amount        decimal.Decimal
	ReferenceID   string
	ReferenceType ReferenceType
	Description   string
}

// LedgerMutation изменение баланса одной записью журнала.
type LedgerMutation struct {
	UserID        int64
	Currency      string
	Type          TransactionType
	Amount        decimal.Decimal
	ReferenceID   string
	ReferenceType ReferenceType
	Description   string
}

// MutationResult результат применения изменения. Replayed=true означает, что операция по этой ссылке
// уже была проведена раньше и баланс не менялся.
type MutationResult struct {
	Balance     *Balance
	Transaction *BalanceTransaction
	Replayed    bool
}
