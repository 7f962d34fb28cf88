package api

import (
	"fmt"
	"time"

	"github.com/fsdevblog/groph-payout/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	DefaultServiceTimeout = 3 * time.Second
	// ExecuteTimeout запрос с немедленным проведением вывода ждет ответа провайдера.
	ExecuteTimeout = 30 * time.Second
)

const (
	RouteGroup               = "/api"
	WithdrawalsRoute         = "/user/withdrawals"
	WithdrawalRoute          = "/user/withdrawals/:id"
	WithdrawalCancelRoute    = "/user/withdrawals/:id/cancel"
	BalanceRoute             = "/user/balance"
	BalanceTransactionsRoute = "/user/balance/transactions"
	BalanceAuditRoute        = "/user/balance/audit"
)

type RouterArgs struct {
	Logger            *logrus.Logger
	WithdrawalService WithdrawalServicer
	BalanceService    BalanceServicer
	JWTSecretKey      []byte
	// ExecuteInline проводить вывод в рамках запроса. Иначе вывод только создается, а проводит его
	// фоновый обработчик.
	ExecuteInline bool
}

func New(args RouterArgs) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if args.Logger != nil {
		r.Use(middlewares.Logger(args.Logger))
	}
	r.Use(middlewares.Errors())

	withdrawalHandler := NewWithdrawalHandler(args.WithdrawalService, args.ExecuteInline)
	balanceHandler := NewBalanceHandler(args.BalanceService)

	api := r.Group(RouteGroup)
	// все роуты группы требуют авторизованного пользователя.
	api.Use(middlewares.AuthRequired(args.JWTSecretKey))

	api.POST(WithdrawalsRoute, withdrawalHandler.Create)
	api.GET(WithdrawalsRoute, withdrawalHandler.Index)
	api.GET(WithdrawalRoute, withdrawalHandler.Show)
	api.POST(WithdrawalCancelRoute, withdrawalHandler.Cancel)

	api.GET(BalanceRoute, balanceHandler.Index)
	api.GET(BalanceTransactionsRoute, balanceHandler.Transactions)
	api.GET(BalanceAuditRoute, balanceHandler.Audit)
	return r, nil
}
