package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsdevblog/groph-payout/internal/config"
	"github.com/fsdevblog/groph-payout/internal/repository/pgrepo"
	"github.com/fsdevblog/groph-payout/internal/service"
	"github.com/fsdevblog/groph-payout/internal/transport/api"
	"github.com/fsdevblog/groph-payout/internal/transport/events"
	"github.com/fsdevblog/groph-payout/internal/transport/payout"
	"github.com/fsdevblog/groph-payout/internal/transport/payout/client"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	// driver for migration applying postgres.
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:revive
	// driver to get migrations from files (*.sql in our case).
	_ "github.com/golang-migrate/migrate/v4/source/file" //nolint:revive
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

type App struct {
	Config *config.Config
	Logger *logrus.Logger
}

func New(conf *config.Config, l *logrus.Logger) *App {
	return &App{
		Config: conf,
		Logger: l,
	}
}

// Run поднимает http сервер и фоновый обработчик выводов и ждет сигнала остановки.
func (a *App) Run() error {
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.WithFields(logrus.Fields{
		"address":        a.Config.RunAddress,
		"provider":       a.Config.PayoutProviderAddress,
		"redis":          a.Config.RedisAddress,
		"workers":        a.Config.ProcessorWorkers,
		"execute_inline": a.Config.ExecuteInline,
	}).Info("Starting app")

	conn, connErr := pgrepo.Connect(notifyCtx, a.Config.MigrationsDir, a.Config.DatabaseDSN, a.Logger)
	if connErr != nil {
		return fmt.Errorf("app run: %w", connErr)
	}
	defer conn.Close()

	unitOfWork, uowErr := pgrepo.NewUnitOfWork(conn)
	if uowErr != nil {
		return fmt.Errorf("app run: %w", uowErr)
	}

	publisher, closePublisher := a.newPublisher()
	defer closePublisher()

	orchestratorConf := service.DefaultOrchestratorConfig()
	orchestratorConf.ProviderTimeout = a.Config.PayoutProviderTimeout
	orchestratorConf.MaxCommitAttempts = a.Config.MaxCommitAttempts

	services, sErr := service.Factory(service.FactoryArgs{
		UOW:              unitOfWork,
		Provider:         client.New(a.Config.PayoutProviderAddress, a.Logger),
		Publisher:        publisher,
		OrchestratorConf: orchestratorConf,
		Logger:           a.Logger,
	})
	if sErr != nil {
		return fmt.Errorf("app run: %w", sErr)
	}

	router, rErr := api.New(api.RouterArgs{
		Logger:            a.Logger,
		WithdrawalService: services.Orchestrator,
		BalanceService:    services.BalanceService,
		JWTSecretKey:      []byte(a.Config.JWTSecret),
		ExecuteInline:     a.Config.ExecuteInline,
	})
	if rErr != nil {
		return fmt.Errorf("app run: %w", rErr)
	}

	server := &http.Server{
		Addr:              a.Config.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	processor := payout.New(services.Orchestrator, a.Logger).
		SetWorkers(a.Config.ProcessorWorkers).
		SetLimitPerIteration(a.Config.ProcessorBatch)

	g, gCtx := errgroup.WithContext(notifyCtx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		processor.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err //nolint:wrapcheck
	}
	return notifyCtx.Err() //nolint:wrapcheck
}

// newPublisher выбирает публикатор событий: redis, если задан адрес, иначе только лог.
func (a *App) newPublisher() (service.EventPublisher, func()) {
	if a.Config.RedisAddress == "" {
		return events.NewNopPublisher(a.Logger), func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddress})
	return events.NewRedisPublisher(rdb, a.Config.RedisChannel, a.Logger), func() {
		if err := rdb.Close(); err != nil {
			a.Logger.WithError(err).Warn("close redis client")
		}
	}
}
