package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/service"
)

type WithdrawalServicer interface {
	RequestWithdrawal(ctx context.Context, args service.RequestWithdrawalArgs) (*domain.Withdrawal, error)
	Execute(ctx context.Context, args service.RequestWithdrawalArgs) (*domain.Withdrawal, error)
	GetUserWithdrawal(ctx context.Context, userID int64, id string) (*domain.Withdrawal, error)
	GetUserWithdrawals(ctx context.Context, userID int64) ([]domain.Withdrawal, error)
	Cancel(ctx context.Context, userID int64, id string) (*domain.Withdrawal, error)
}

type BalanceServicer interface {
	GetBalances(ctx context.Context, userID int64, currency string) ([]domain.Balance, error)
	GetTransactionHistory(
		ctx context.Context,
		userID int64,
		filter service.HistoryFilter,
	) (*service.TransactionPage, error)
	VerifyBalance(ctx context.Context, userID int64, currency string) (*service.AuditReport, error)
}
