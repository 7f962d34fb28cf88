package service

import (
	"context"
	"time"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/repository/repoargs"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type BalanceRepository interface {
	Get(ctx context.Context, userID int64, currency string) (*domain.Balance, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Balance, error)
	LockForUpdate(ctx context.Context, userID int64, currency string) (*domain.Balance, error)
	Update(ctx context.Context, update repoargs.BalanceUpdate) (*domain.Balance, error)
}

type BalanceTransactionRepository interface {
	Create(ctx context.Context, transaction repoargs.BalanceTransactionCreate) (*domain.BalanceTransaction, error)
	FindByReference(ctx context.Context, ref repoargs.TransactionReference) ([]domain.BalanceTransaction, error)
	GetByFilter(ctx context.Context, filter repoargs.TransactionFilter) ([]domain.BalanceTransaction, error)
	CountByFilter(ctx context.Context, filter repoargs.TransactionFilter) (uint, error)
	GetForReplay(ctx context.Context, userID int64, currency string) ([]domain.BalanceTransaction, error)
}

type WithdrawalRepository interface {
	Create(ctx context.Context, create repoargs.WithdrawalCreate) (*domain.Withdrawal, error)
	FindByID(ctx context.Context, id string) (*domain.Withdrawal, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Withdrawal, error)
	UpdateStatus(ctx context.Context, update repoargs.WithdrawalStatusUpdate) (*domain.Withdrawal, error)
	SetExternalPayoutID(ctx context.Context, id string, payoutID string) (*domain.Withdrawal, error)
	RegisterCommitFailure(ctx context.Context, failure repoargs.WithdrawalCommitFailure) (*domain.Withdrawal, error)
	ClaimForProcessing(ctx context.Context, limit uint, lease time.Duration) ([]domain.Withdrawal, error)
}

// LedgerStorer хранилище балансов и журнала операций.
type LedgerStorer interface {
	GetBalance(ctx context.Context, userID int64, currency string) (*domain.Balance, error)
	GetBalances(ctx context.Context, userID int64) ([]domain.Balance, error)
	ApplyMutation(ctx context.Context, mutation domain.LedgerMutation) (*domain.MutationResult, error)
	GetTransactions(ctx context.Context, filter repoargs.TransactionFilter) ([]domain.BalanceTransaction, uint, error)
	GetJournal(ctx context.Context, userID int64, currency string) ([]domain.BalanceTransaction, error)
	GetReferenceTransactions(ctx context.Context, ref repoargs.TransactionReference) ([]domain.BalanceTransaction, error)
}

// Ledger операции над балансом, которые нужны выводу средств.
type Ledger interface {
	Hold(ctx context.Context, args domain.BalanceOperation) (*domain.Balance, error)
	Release(ctx context.Context, args domain.BalanceOperation) (*domain.Balance, error)
	SettleOut(ctx context.Context, args domain.BalanceOperation) (*domain.Balance, error)
	HoldState(ctx context.Context, args domain.BalanceOperation) (domain.HoldState, error)
}

type PayoutProvider interface {
	CreatePayout(ctx context.Context, req domain.PayoutRequest) (*domain.Payout, error)
	CommitPayout(ctx context.Context, payoutID string) (*domain.Payout, error)
	GetPayout(ctx context.Context, idempotencyKey string) (*domain.Payout, error)
}

type EventPublisher interface {
	PublishWithdrawalEvent(ctx context.Context, event domain.WithdrawalEvent) error
}
