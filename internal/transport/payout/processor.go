// Package payout фоновая обработка выводов средств через провайдера выплат.
package payout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/transport/payout/client"
	"github.com/sirupsen/logrus"
)

const (
	defaultServiceTimeout          = 3 * time.Second
	defaultProcessTimeout          = 30 * time.Second
	defaultIdleDelay               = time.Second
	defaultLimitPerIteration  uint = 100
	defaultWorkers            uint = 10
	maxRateLimitedRetries          = 3
)

// Processor доводит незавершенные выводы до конечного статуса. Несколько экземпляров могут работать
// одновременно: выводы разбираются с арендой, один вывод за итерацию получает только один экземпляр.
type Processor struct {
	svs               Servicer
	l                 *logrus.Entry
	limitPerIteration uint
	workers           uint
	processTimeout    time.Duration
	idleDelay         time.Duration
}

func New(svs Servicer, l *logrus.Logger) *Processor {
	return &Processor{
		svs: svs,
		l: l.WithFields(logrus.Fields{
			"component": "payout",
			"module":    "processor",
		}),
		limitPerIteration: defaultLimitPerIteration,
		workers:           defaultWorkers,
		processTimeout:    defaultProcessTimeout,
		idleDelay:         defaultIdleDelay,
	}
}

// SetLimitPerIteration устанавливает кол-во выводов, забираемых в одной итерации.
func (p *Processor) SetLimitPerIteration(limit uint) *Processor {
	if limit > 0 {
		p.limitPerIteration = limit
	}
	return p
}

// SetWorkers устанавливает кол-во воркеров.
func (p *Processor) SetWorkers(workers uint) *Processor {
	if workers > 0 {
		p.workers = workers
	}
	return p
}

func (p *Processor) SetProcessTimeout(timeout time.Duration) *Processor {
	p.processTimeout = timeout
	return p
}

// SetIdleDelay пауза между итерациями, когда обрабатывать нечего.
func (p *Processor) SetIdleDelay(delay time.Duration) *Processor {
	p.idleDelay = delay
	return p
}

// Run запускает обработку в цикле до отмены контекста.
//
// Алгоритм работы:
//  1. В каждой итерации через сервисный слой забираются выводы для обработки (PENDING, либо PROCESSING
//     с истекшей арендой). Объем лимитируется через SetLimitPerIteration.
//  2. Выводы раздаются N воркерам (SetWorkers), каждый вызывает обработку вывода.
//  3. Если выводов нет или произошла ошибка, цикл делает паузу.
func (p *Processor) Run(ctx context.Context) {
	p.l.WithFields(logrus.Fields{
		"limitPerIteration": p.limitPerIteration,
		"workers":           p.workers,
	}).Info("Starting")

	for {
		select {
		case <-ctx.Done():
			p.l.Info("Got stop signal, exiting...")
			return
		default:
		}

		if _, err := p.process(ctx); err != nil {
			if !errors.Is(err, ErrNoWithdrawals) && !errors.Is(err, context.Canceled) {
				p.l.WithError(err).Error("process error")
			}
			select {
			case <-ctx.Done():
			case <-time.After(p.idleDelay):
			}
		}
	}
}

// workerResult результат обработки одного вывода.
type workerResult struct {
	WorkerID   uint
	Withdrawal *domain.Withdrawal
	Error      error
}

// process выполняет одну итерацию. Возвращает ErrNoWithdrawals, если обрабатывать нечего.
func (p *Processor) process(ctx context.Context) ([]workerResult, error) {
	withdrawals, err := p.produce(ctx)
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}

	results := p.runWorkers(ctx, withdrawals)
	for _, result := range results {
		l := p.l.WithFields(logrus.Fields{
			"worker":        result.WorkerID,
			"withdrawal_id": result.Withdrawal.ID,
		})
		switch {
		case errors.Is(result.Error, domain.ErrOutcomeUnknown):
			l.WithError(result.Error).Warn("payout outcome unknown, will retry")
		case result.Error != nil:
			l.WithError(result.Error).Error("process withdrawal")
		default:
			l.WithFields(logrus.Fields{
				"status":             result.Withdrawal.Status,
				"reconcile_required": result.Withdrawal.ReconcileRequired,
			}).Info("withdrawal processed")
		}
	}
	return results, nil
}

// runWorkers раздает выводы воркерам и ждет окончания их работы (fan-out/fan-in).
func (p *Processor) runWorkers(ctx context.Context, withdrawals []domain.Withdrawal) []workerResult {
	taskCh := make(chan *domain.Withdrawal, len(withdrawals))
	for i := range withdrawals {
		taskCh <- &withdrawals[i]
	}
	close(taskCh)

	workers := min(p.workers, uint(len(withdrawals)))

	wg := new(sync.WaitGroup)
	wg.Add(int(workers)) // nolint:gosec

	resultCh := make(chan workerResult, len(withdrawals))
	for i := range workers {
		go p.worker(ctx, wg, i+1, taskCh, resultCh)
	}
	wg.Wait()
	close(resultCh)

	results := make([]workerResult, 0, len(withdrawals))
	for result := range resultCh {
		results = append(results, result)
	}
	return results
}

func (p *Processor) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	workerID uint,
	taskCh <-chan *domain.Withdrawal,
	resultCh chan<- workerResult,
) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-taskCh:
			if !ok {
				return
			}
			resultCh <- p.processTask(ctx, workerID, task)
		}
	}
}

// processTask обрабатывает вывод. Если провайдер ответил 429, ждет указанное в Retry-After время
// и повторяет обработку. Повтор безопасен: вызовы провайдера идут с ключом идемпотентности.
func (p *Processor) processTask(ctx context.Context, workerID uint, task *domain.Withdrawal) workerResult {
	result := workerResult{WorkerID: workerID, Withdrawal: task}

	for attempt := 0; ; attempt++ {
		processed, err := p.processOnce(ctx, task.ID)
		if err == nil {
			result.Withdrawal = processed
			return result
		}
		if processed != nil {
			result.Withdrawal = processed
		}
		result.Error = err

		var tooManyReq *client.TooManyRequestError
		if !errors.As(err, &tooManyReq) || attempt >= maxRateLimitedRetries {
			return result
		}

		select {
		case <-ctx.Done():
			result.Error = errors.Join(err, ctx.Err())
			return result
		case <-time.After(tooManyReq.RetryAfter):
		}
	}
}

func (p *Processor) processOnce(ctx context.Context, id string) (*domain.Withdrawal, error) {
	if p.processTimeout <= 0 {
		return p.svs.Process(ctx, id) //nolint:wrapcheck
	}
	processCtx, cancel := context.WithTimeout(ctx, p.processTimeout)
	defer cancel()
	return p.svs.Process(processCtx, id) //nolint:wrapcheck
}

// produce забирает выводы для обработки. Возвращает ErrNoWithdrawals, если их нет.
func (p *Processor) produce(ctx context.Context) ([]domain.Withdrawal, error) {
	produceCtx, cancel := context.WithTimeout(ctx, defaultServiceTimeout)
	defer cancel()

	withdrawals, err := p.svs.WithdrawalsForProcessing(produceCtx, p.limitPerIteration)
	if err != nil {
		return nil, fmt.Errorf("produce: %w", err)
	}
	if len(withdrawals) == 0 {
		return nil, ErrNoWithdrawals
	}
	return withdrawals, nil
}
