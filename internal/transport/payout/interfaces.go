package payout

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/groph-payout/internal/domain"
)

type Servicer interface {
	WithdrawalsForProcessing(ctx context.Context, limit uint) ([]domain.Withdrawal, error)
	Process(ctx context.Context, id string) (*domain.Withdrawal, error)
}
