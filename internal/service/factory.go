package service

import (
	"fmt"

	"github.com/fsdevblog/groph-payout/pkg/uow"
	"github.com/sirupsen/logrus"
)

type AppServices struct {
	BalanceService *BalanceService
	Orchestrator   *PayoutOrchestrator
}

type FactoryArgs struct {
	UOW               uow.UOW
	Provider          PayoutProvider
	Publisher         EventPublisher
	OrchestratorConf  OrchestratorConfig
	LedgerMaxAttempts uint
	Logger            *logrus.Logger
}

func Factory(args FactoryArgs) (*AppServices, error) {
	store, storeErr := NewLedgerStore(args.UOW, args.Logger)
	if storeErr != nil {
		return nil, fmt.Errorf("service factory: %s", storeErr.Error())
	}
	store.SetRetryPolicy(args.LedgerMaxAttempts, defaultLedgerRetryBaseDelay)

	balanceService := NewBalanceService(store, args.Logger)

	orchestrator, orchErr := NewPayoutOrchestrator(
		args.UOW,
		balanceService,
		args.Provider,
		args.Publisher,
		args.OrchestratorConf,
		args.Logger,
	)
	if orchErr != nil {
		return nil, fmt.Errorf("service factory: %s", orchErr.Error())
	}

	return &AppServices{
		BalanceService: balanceService,
		Orchestrator:   orchestrator,
	}, nil
}
