package repoargs

import (
	"time"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/shopspring/decimal"
)

type WithdrawalCreate struct {
	ID            string
	UserID        int64
	Currency      string
	Amount        decimal.Decimal
	Destination   string
	Status        domain.WithdrawalStatus
	FailureReason domain.FailureReason
}

// WithdrawalStatusUpdate обновление статуса с проверкой текущего значения (compare-and-set).
type WithdrawalStatusUpdate struct {
	ID            string
	From          domain.WithdrawalStatus
	To            domain.WithdrawalStatus
	FailureReason domain.FailureReason
}

type WithdrawalCommitFailure struct {
	ID                string
	RetryAt           time.Time
	ReconcileRequired bool
}
