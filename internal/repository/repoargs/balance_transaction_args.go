package repoargs

import (
	"time"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/shopspring/decimal"
)

type BalanceTransactionCreate struct {
	UserID        int64
	Currency      string
	Type          domain.TransactionType
	Amount        decimal.Decimal
	ReferenceID   string
	ReferenceType domain.ReferenceType
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	HeldBefore    decimal.Decimal
	HeldAfter     decimal.Decimal
	Description   string
}

// TransactionReference ключ идемпотентности операций: ссылка на бизнес-сущность в рамках юзера и валюты.
type TransactionReference struct {
	UserID        int64
	Currency      string
	ReferenceType domain.ReferenceType
	ReferenceID   string
}

// TransactionFilter фильтр истории операций. Нулевые значения полей фильтр не ограничивают.
type TransactionFilter struct {
	UserID   int64
	Currency string
	Type     domain.TransactionType
	From     time.Time
	To       time.Time
	Limit    uint
	Offset   uint
}
