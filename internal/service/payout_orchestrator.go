package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/repository/repoargs"
	"github.com/fsdevblog/groph-payout/pkg/uow"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type OrchestratorConfig struct {
	// ProviderTimeout таймаут одного вызова провайдера.
	ProviderTimeout time.Duration
	// CreateAttempts число попыток создания выплаты за один вызов Process.
	CreateAttempts uint
	// CommitAttempts число попыток подтверждения выплаты за один вызов Process.
	CommitAttempts uint
	// MaxCommitAttempts после стольких неудачных вызовов Process вывод помечается reconcile_required.
	MaxCommitAttempts uint
	RetryBaseDelay    time.Duration
	// CommitRetryDelay через сколько фоновый обработчик повторит подтверждение.
	CommitRetryDelay time.Duration
	// ProcessingLease на сколько откладывается следующая попытка при выборке в обработку.
	ProcessingLease time.Duration
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		ProviderTimeout:   10 * time.Second, //nolint:mnd
		CreateAttempts:    3,                //nolint:mnd
		CommitAttempts:    3,                //nolint:mnd
		MaxCommitAttempts: 5,                //nolint:mnd
		RetryBaseDelay:    200 * time.Millisecond,
		CommitRetryDelay:  30 * time.Second, //nolint:mnd
		ProcessingLease:   time.Minute,
	}
}

// PayoutOrchestrator проводит вывод средств: резерв на балансе, создание выплаты у провайдера, списание
// резерва и подтверждение выплаты. Каждый шаг идемпотентен, поэтому Process можно повторять сколько угодно раз.
type PayoutOrchestrator struct {
	withdrawalRepo WithdrawalRepository
	ledger         Ledger
	provider       PayoutProvider
	publisher      EventPublisher
	conf           OrchestratorConfig
	logger         *logrus.Entry
	newID          func() string
	now            func() time.Time
}

func NewPayoutOrchestrator(
	u uow.UOW,
	ledger Ledger,
	provider PayoutProvider,
	publisher EventPublisher,
	conf OrchestratorConfig,
	l *logrus.Logger,
) (*PayoutOrchestrator, error) {
	withdrawalRepo, err := uow.GetRepositoryAs[WithdrawalRepository](u, uow.RepositoryName(repoargs.WithdrawalRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &PayoutOrchestrator{
		withdrawalRepo: withdrawalRepo,
		ledger:         ledger,
		provider:       provider,
		publisher:      publisher,
		conf:           conf,
		logger:         l.WithField("component", "payout_orchestrator"),
		newID:          func() string { return ulid.Make().String() },
		now:            time.Now,
	}, nil
}

type RequestWithdrawalArgs struct {
	// ID идентификатор вывода, переданный клиентом. Повторный запрос с тем же ID возвращает существующий вывод.
	// Если пустой, генерируется новый.
	ID          string
	UserID      int64
	Currency    string
	Amount      decimal.Decimal
	Destination string
}

// RequestWithdrawal резервирует средства и сохраняет вывод в статусе PENDING. При нехватке средств вывод
// сохраняется в статусе FAILED с причиной insufficient_funds и возвращается без ошибки. Если резерв с этим ID
// уже был снят (прошлый запрос не смог сохранить вывод), вывод сохраняется в FAILED с причиной hold_released.
func (o *PayoutOrchestrator) RequestWithdrawal(
	ctx context.Context,
	args RequestWithdrawalArgs,
) (*domain.Withdrawal, error) {
	if amountErr := domain.ValidateAmount(args.Amount); amountErr != nil {
		return nil, fmt.Errorf("request withdrawal: %w", amountErr)
	}
	currency, currErr := domain.NormalizeCurrency(args.Currency)
	if currErr != nil {
		return nil, fmt.Errorf("request withdrawal: %w", currErr)
	}
	destination := strings.TrimSpace(args.Destination)
	if destination == "" {
		return nil, fmt.Errorf("request withdrawal: %w", domain.ErrInvalidDestination)
	}

	id := args.ID
	if id == "" {
		id = o.newID()
	} else {
		existing, findErr := o.withdrawalRepo.FindByID(ctx, id)
		switch {
		case findErr == nil:
			if existing.UserID != args.UserID {
				return nil, fmt.Errorf("request withdrawal %s: %w", id, domain.ErrWithdrawalNotOwned)
			}
			return existing, nil
		case !errors.Is(findErr, domain.ErrRecordNotFound):
			return nil, fmt.Errorf("request withdrawal %s: %w", id, findErr)
		}
	}

	create := repoargs.WithdrawalCreate{
		ID:          id,
		UserID:      args.UserID,
		Currency:    currency,
		Amount:      args.Amount,
		Destination: destination,
		Status:      domain.WithdrawalPending,
	}

	_, holdErr := o.ledger.Hold(ctx, o.operationArgs(create.UserID, currency, args.Amount, id, "withdrawal hold"))
	switch {
	case holdErr == nil:
	case errors.Is(holdErr, domain.ErrInsufficientFunds):
		create.Status = domain.WithdrawalFailed
		create.FailureReason = domain.FailureInsufficientFunds
	case errors.Is(holdErr, domain.ErrHoldAlreadyClosed):
		// средства под этот ID не зарезервированы, PENDING без резерва недопустим.
		o.logger.WithError(holdErr).WithField("withdrawal_id", id).Warn("withdrawal hold already closed")
		create.Status = domain.WithdrawalFailed
		create.FailureReason = domain.FailureHoldReleased
	default:
		return nil, fmt.Errorf("request withdrawal %s: reserve funds: %w", id, holdErr)
	}

	return o.createWithdrawal(ctx, create)
}

func (o *PayoutOrchestrator) createWithdrawal(
	ctx context.Context,
	create repoargs.WithdrawalCreate,
) (*domain.Withdrawal, error) {
	withdrawal, err := o.withdrawalRepo.Create(ctx, create)
	if err == nil {
		o.publish(ctx, withdrawal, withdrawal.Status.EventType())
		o.logger.WithFields(logrus.Fields{
			"withdrawal_id": withdrawal.ID,
			"user_id":       withdrawal.UserID,
			"status":        withdrawal.Status,
			"failure":       withdrawal.FailureReason,
		}).Info("withdrawal requested")
		return withdrawal, nil
	}
	if !errors.Is(err, domain.ErrDuplicateKey) {
		return nil, o.releaseAfterCreateError(ctx, create, fmt.Errorf("request withdrawal %s: %w", create.ID, err))
	}

	// конкурентный запрос с тем же ID успел сохранить вывод раньше.
	existing, findErr := o.withdrawalRepo.FindByID(ctx, create.ID)
	if findErr != nil {
		return nil, fmt.Errorf("request withdrawal %s: %w", create.ID, findErr)
	}
	if existing.UserID != create.UserID {
		return nil, o.releaseAfterCreateError(ctx, create,
			fmt.Errorf("request withdrawal %s: %w", create.ID, domain.ErrWithdrawalNotOwned))
	}
	terminated := existing.Status == domain.WithdrawalFailed || existing.Status == domain.WithdrawalCancelled
	if terminated && create.Status == domain.WithdrawalPending {
		// резерв этого запроса не должен пережить завершенный вывод.
		if releaseErr := o.releaseHold(ctx, create); releaseErr != nil {
			return nil, fmt.Errorf("request withdrawal %s: %w", create.ID, releaseErr)
		}
	}
	return existing, nil
}

// releaseAfterCreateError снимает резерв, поставленный запросом, если сам вывод сохранить не удалось.
func (o *PayoutOrchestrator) releaseAfterCreateError(
	ctx context.Context,
	create repoargs.WithdrawalCreate,
	cause error,
) error {
	if create.Status != domain.WithdrawalPending {
		return cause
	}
	if releaseErr := o.releaseHold(ctx, create); releaseErr != nil {
		return errors.Join(cause, releaseErr)
	}
	return cause
}

func (o *PayoutOrchestrator) releaseHold(ctx context.Context, create repoargs.WithdrawalCreate) error {
	_, err := o.ledger.Release(ctx, o.operationArgs(create.UserID, create.Currency, create.Amount, create.ID,
		"withdrawal hold release"))
	if err != nil && !errors.Is(err, domain.ErrHoldAlreadyClosed) {
		return fmt.Errorf("release funds: %w", err)
	}
	return nil
}

// Execute сохраняет вывод и сразу проводит его.
func (o *PayoutOrchestrator) Execute(ctx context.Context, args RequestWithdrawalArgs) (*domain.Withdrawal, error) {
	withdrawal, err := o.RequestWithdrawal(ctx, args)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status.IsTerminal() {
		return withdrawal, nil
	}
	return o.Process(ctx, withdrawal.ID)
}

// Process доводит вывод до терминального статуса или до точки, где нужен повтор позже.
//
// Алгоритм работы:
//  1. PENDING -> PROCESSING.
//  2. Проверяет, что резерв на месте, и создает выплату у провайдера с ID вывода в качестве ключа идемпотентности и сохраняет ее ID.
//  3. Списывает резерв (settle_out).
//  4. Подтверждает выплату и переводит вывод в COMMITTED.
//
// Отказ провайдера или ошибка списания снимают резерв и переводят вывод в FAILED. Если исход создания
// выплаты неизвестен, вывод остается в PROCESSING, возвращается ErrOutcomeUnknown. Неудачное подтверждение
// не откатывает списание: вывод остается в PROCESSING до следующей попытки или ручной сверки.
func (o *PayoutOrchestrator) Process(ctx context.Context, id string) (*domain.Withdrawal, error) {
	withdrawal, err := o.withdrawalRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("process withdrawal %s: %w", id, err)
	}

	if withdrawal.Status == domain.WithdrawalPending {
		withdrawal, err = o.transition(ctx, withdrawal, domain.WithdrawalProcessing, domain.FailureNone)
		if err != nil {
			return nil, fmt.Errorf("process withdrawal %s: %w", id, err)
		}
	}
	if withdrawal.Status != domain.WithdrawalProcessing {
		return withdrawal, nil
	}

	if withdrawal.ExternalPayoutID == "" {
		var next bool
		withdrawal, next, err = o.checkHold(ctx, withdrawal)
		if !next {
			return withdrawal, err
		}
		withdrawal, next, err = o.ensurePayout(ctx, withdrawal)
		if !next {
			return withdrawal, err
		}
	}

	if _, settleErr := o.ledger.SettleOut(ctx, o.withdrawalOperation(withdrawal, "withdrawal settle")); settleErr != nil {
		return o.fail(ctx, withdrawal, domain.FailureLedgerError, settleErr)
	}

	return o.commit(ctx, withdrawal)
}

// checkHold не дает создать выплату, если резерва под вывод нет: его сняла отмена или компенсация после
// неудачного сохранения. next=false означает, что вывод переведен в FAILED или проверку нужно повторить.
func (o *PayoutOrchestrator) checkHold(
	ctx context.Context,
	withdrawal *domain.Withdrawal,
) (*domain.Withdrawal, bool, error) {
	state, err := o.ledger.HoldState(ctx, o.withdrawalOperation(withdrawal, ""))
	if err != nil {
		return withdrawal, false, fmt.Errorf("process withdrawal %s: check hold: %w", withdrawal.ID, err)
	}

	var reason domain.FailureReason
	switch state {
	case domain.HoldOpen, domain.HoldSettled:
		return withdrawal, true, nil
	case domain.HoldReleased:
		reason = domain.FailureHoldReleased
	default:
		reason = domain.FailureLedgerError
	}

	o.logger.WithFields(logrus.Fields{
		"withdrawal_id": withdrawal.ID,
		"hold":          state,
		"reason":        reason,
	}).Warn("withdrawal has no funds on hold, payout is not created")

	failed, trErr := o.transition(ctx, withdrawal, domain.WithdrawalFailed, reason)
	if trErr != nil {
		return withdrawal, false, fmt.Errorf("process withdrawal %s: %w", withdrawal.ID, trErr)
	}
	return failed, false, nil
}

// ensurePayout создает выплату и сохраняет ее ID. next=false означает, что обработка на этом закончена:
// вывод переведен в FAILED или исход создания выплаты неизвестен.
func (o *PayoutOrchestrator) ensurePayout(
	ctx context.Context,
	withdrawal *domain.Withdrawal,
) (*domain.Withdrawal, bool, error) {
	payout, createErr := o.createPayout(ctx, withdrawal)
	switch {
	case createErr == nil:
	case errors.Is(createErr, domain.ErrPayoutNotFound):
		w, err := o.fail(ctx, withdrawal, domain.FailureProviderUnavailable, createErr)
		return w, false, err
	case isDefiniteRejection(createErr):
		w, err := o.fail(ctx, withdrawal, domain.FailureProviderRejected, createErr)
		return w, false, err
	default:
		return withdrawal, false, fmt.Errorf("process withdrawal %s: create payout: %w: %w",
			withdrawal.ID, domain.ErrOutcomeUnknown, createErr)
	}

	if payout.Status == domain.PayoutStatusFailed {
		w, err := o.fail(ctx, withdrawal, domain.FailureProviderRejected,
			fmt.Errorf("payout %s created in status %s", payout.ID, payout.Status))
		return w, false, err
	}

	updated, err := o.withdrawalRepo.SetExternalPayoutID(ctx, withdrawal.ID, payout.ID)
	if err != nil {
		return withdrawal, false, fmt.Errorf("process withdrawal %s: save payout id: %w", withdrawal.ID, err)
	}
	return updated, true, nil
}

// createPayout создает выплату, повторяя вызов при неизвестном исходе. Когда попытки исчерпаны, ищет выплату
// у провайдера по ключу идемпотентности. ErrPayoutNotFound означает, что выплаты точно нет.
func (o *PayoutOrchestrator) createPayout(ctx context.Context, withdrawal *domain.Withdrawal) (*domain.Payout, error) {
	req := domain.PayoutRequest{
		IdempotencyKey: withdrawal.ID,
		Currency:       withdrawal.Currency,
		Amount:         withdrawal.Amount,
		Destination:    withdrawal.Destination,
	}

	var lastErr error
	attempts := max(o.conf.CreateAttempts, 1)
	for attempt := uint(1); attempt <= attempts; attempt++ {
		payout, err := o.callProvider(ctx, func(c context.Context) (*domain.Payout, error) {
			return o.provider.CreatePayout(c, req)
		})
		if err == nil {
			return payout, nil
		}
		if !isRetryableProviderErr(err) {
			return nil, err
		}
		lastErr = err
		o.logger.WithError(err).WithFields(logrus.Fields{
			"withdrawal_id": withdrawal.ID,
			"attempt":       attempt,
		}).Warn("create payout failed, outcome unknown")

		if attempt < attempts {
			if sleepErr := sleepCtx(ctx, backoff(o.conf.RetryBaseDelay, attempt)); sleepErr != nil {
				return nil, errors.Join(lastErr, sleepErr)
			}
		}
	}

	payout, lookupErr := o.callProvider(ctx, func(c context.Context) (*domain.Payout, error) {
		return o.provider.GetPayout(c, withdrawal.ID)
	})
	if lookupErr == nil {
		return payout, nil
	}
	if errors.Is(lookupErr, domain.ErrPayoutNotFound) {
		return nil, lookupErr
	}
	return nil, errors.Join(lastErr, lookupErr)
}

// commit подтверждает выплату. Списание к этому моменту уже проведено и не откатывается.
func (o *PayoutOrchestrator) commit(ctx context.Context, withdrawal *domain.Withdrawal) (*domain.Withdrawal, error) {
	var lastErr error
	attempts := max(o.conf.CommitAttempts, 1)
	for attempt := uint(1); attempt <= attempts; attempt++ {
		payout, err := o.callProvider(ctx, func(c context.Context) (*domain.Payout, error) {
			return o.provider.CommitPayout(c, withdrawal.ExternalPayoutID)
		})
		if err == nil && payout.Status != domain.PayoutStatusFailed {
			committed, trErr := o.transition(ctx, withdrawal, domain.WithdrawalCommitted, domain.FailureNone)
			if trErr != nil {
				return withdrawal, fmt.Errorf("process withdrawal %s: %w", withdrawal.ID, trErr)
			}
			return committed, nil
		}
		if err == nil {
			err = &domain.ProviderError{
				Op:  "commit",
				Err: fmt.Errorf("payout %s reported status %s", payout.ID, payout.Status),
			}
		}
		lastErr = err
		if !isRetryableProviderErr(err) {
			break
		}
		if attempt < attempts {
			if sleepErr := sleepCtx(ctx, backoff(o.conf.RetryBaseDelay, attempt)); sleepErr != nil {
				lastErr = errors.Join(lastErr, sleepErr)
				break
			}
		}
	}
	return o.registerCommitFailure(ctx, withdrawal, lastErr)
}

func (o *PayoutOrchestrator) registerCommitFailure(
	ctx context.Context,
	withdrawal *domain.Withdrawal,
	cause error,
) (*domain.Withdrawal, error) {
	reconcile := withdrawal.CommitAttempts+1 >= o.conf.MaxCommitAttempts || !isRetryableProviderErr(cause)

	updated, err := o.withdrawalRepo.RegisterCommitFailure(ctx, repoargs.WithdrawalCommitFailure{
		ID:                withdrawal.ID,
		RetryAt:           o.now().Add(o.conf.CommitRetryDelay),
		ReconcileRequired: reconcile,
	})
	if err != nil {
		return withdrawal, fmt.Errorf("process withdrawal %s: commit payout: %w",
			withdrawal.ID, errors.Join(cause, err))
	}

	log := o.logger.WithError(cause).WithFields(logrus.Fields{
		"withdrawal_id":   withdrawal.ID,
		"payout_id":       withdrawal.ExternalPayoutID,
		"commit_attempts": updated.CommitAttempts,
	})
	if updated.ReconcileRequired {
		log.Error("commit payout failed, manual reconciliation required")
		o.publish(ctx, updated, domain.EventWithdrawalReconcileRequired)
	} else {
		log.Warn("commit payout failed, will retry")
	}
	return updated, fmt.Errorf("process withdrawal %s: commit payout %s: %w",
		withdrawal.ID, withdrawal.ExternalPayoutID, cause)
}

// fail снимает резерв и переводит вывод в FAILED. Если резерв уже списан (settle_out), откатывать нечего:
// обработка продолжается подтверждением выплаты.
func (o *PayoutOrchestrator) fail(
	ctx context.Context,
	withdrawal *domain.Withdrawal,
	reason domain.FailureReason,
	cause error,
) (*domain.Withdrawal, error) {
	_, releaseErr := o.ledger.Release(ctx, o.withdrawalOperation(withdrawal, "withdrawal hold release"))
	if releaseErr != nil {
		if errors.Is(releaseErr, domain.ErrHoldAlreadyClosed) && withdrawal.ExternalPayoutID != "" {
			o.logger.WithField("withdrawal_id", withdrawal.ID).
				Info("funds already settled, continuing with payout commit")
			return o.commit(ctx, withdrawal)
		}
		return withdrawal, fmt.Errorf("process withdrawal %s: release funds: %w", withdrawal.ID,
			errors.Join(cause, releaseErr))
	}

	o.logger.WithError(cause).WithFields(logrus.Fields{
		"withdrawal_id": withdrawal.ID,
		"reason":        reason,
	}).Warn("withdrawal failed")

	failed, err := o.transition(ctx, withdrawal, domain.WithdrawalFailed, reason)
	if err != nil {
		return withdrawal, fmt.Errorf("process withdrawal %s: %w", withdrawal.ID, err)
	}
	return failed, nil
}

// Cancel отменяет вывод юзера, пока он в статусе PENDING.
func (o *PayoutOrchestrator) Cancel(ctx context.Context, userID int64, id string) (*domain.Withdrawal, error) {
	withdrawal, err := o.GetUserWithdrawal(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("cancel withdrawal: %w", err)
	}
	if trErr := domain.ValidateTransition(withdrawal.Status, domain.WithdrawalCancelled); trErr != nil {
		return nil, fmt.Errorf("cancel withdrawal %s: %w", id, trErr)
	}

	_, releaseErr := o.ledger.Release(ctx, o.withdrawalOperation(withdrawal, "withdrawal cancelled"))
	if releaseErr != nil {
		if errors.Is(releaseErr, domain.ErrHoldAlreadyClosed) {
			// резерв уже списан: вывод фактически в обработке.
			return nil, fmt.Errorf("cancel withdrawal %s: %w", id,
				domain.NewInvalidStatusTransitionError(domain.WithdrawalProcessing, domain.WithdrawalCancelled))
		}
		return nil, fmt.Errorf("cancel withdrawal %s: release funds: %w", id, releaseErr)
	}

	cancelled, err := o.transition(ctx, withdrawal, domain.WithdrawalCancelled, domain.FailureNone)
	if err != nil {
		return nil, fmt.Errorf("cancel withdrawal %s: %w", id, err)
	}
	if cancelled.Status != domain.WithdrawalCancelled {
		// вывод успел перейти в обработку. Резерв уже снят, поэтому Process переведет его в FAILED
		// с причиной hold_released, не создавая выплату.
		return nil, fmt.Errorf("cancel withdrawal %s: %w", id,
			domain.NewInvalidStatusTransitionError(cancelled.Status, domain.WithdrawalCancelled))
	}
	return cancelled, nil
}

func (o *PayoutOrchestrator) GetWithdrawalStatus(ctx context.Context, id string) (*domain.Withdrawal, error) {
	withdrawal, err := o.withdrawalRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return withdrawal, nil
}

// GetUserWithdrawal возвращает вывод, только если он принадлежит юзеру.
func (o *PayoutOrchestrator) GetUserWithdrawal(ctx context.Context, userID int64, id string) (*domain.Withdrawal, error) {
	withdrawal, err := o.GetWithdrawalStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if withdrawal.UserID != userID {
		return nil, domain.ErrWithdrawalNotOwned
	}
	return withdrawal, nil
}

func (o *PayoutOrchestrator) GetUserWithdrawals(ctx context.Context, userID int64) ([]domain.Withdrawal, error) {
	withdrawals, err := o.withdrawalRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return withdrawals, nil
}

// WithdrawalsForProcessing выбирает незавершенные выводы для фонового обработчика.
func (o *PayoutOrchestrator) WithdrawalsForProcessing(ctx context.Context, limit uint) ([]domain.Withdrawal, error) {
	withdrawals, err := o.withdrawalRepo.ClaimForProcessing(ctx, limit, o.conf.ProcessingLease)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return withdrawals, nil
}

// transition меняет статус через compare-and-set. Если статус успели изменить конкурентно, возвращает
// актуальное состояние вывода без ошибки.
func (o *PayoutOrchestrator) transition(
	ctx context.Context,
	withdrawal *domain.Withdrawal,
	to domain.WithdrawalStatus,
	reason domain.FailureReason,
) (*domain.Withdrawal, error) {
	if err := domain.ValidateTransition(withdrawal.Status, to); err != nil {
		return nil, err //nolint:wrapcheck
	}

	updated, err := o.withdrawalRepo.UpdateStatus(ctx, repoargs.WithdrawalStatusUpdate{
		ID:            withdrawal.ID,
		From:          withdrawal.Status,
		To:            to,
		FailureReason: reason,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			return nil, err //nolint:wrapcheck
		}
		current, findErr := o.withdrawalRepo.FindByID(ctx, withdrawal.ID)
		if findErr != nil {
			return nil, findErr //nolint:wrapcheck
		}
		o.logger.WithFields(logrus.Fields{
			"withdrawal_id": withdrawal.ID,
			"expected":      withdrawal.Status,
			"actual":        current.Status,
			"target":        to,
		}).Debug("withdrawal status changed concurrently")
		return current, nil
	}

	o.publish(ctx, updated, to.EventType())
	return updated, nil
}

func (o *PayoutOrchestrator) callProvider(
	ctx context.Context,
	call func(ctx context.Context) (*domain.Payout, error),
) (*domain.Payout, error) {
	if o.conf.ProviderTimeout <= 0 {
		return call(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, o.conf.ProviderTimeout)
	defer cancel()
	return call(callCtx)
}

// publish отправляет событие. Ошибка публикации на обработку вывода не влияет.
func (o *PayoutOrchestrator) publish(
	ctx context.Context,
	withdrawal *domain.Withdrawal,
	eventType domain.WithdrawalEventType,
) {
	if o.publisher == nil {
		return
	}
	event := domain.WithdrawalEvent{
		Type:          eventType,
		WithdrawalID:  withdrawal.ID,
		UserID:        withdrawal.UserID,
		Currency:      withdrawal.Currency,
		Amount:        withdrawal.Amount,
		Status:        withdrawal.Status,
		FailureReason: withdrawal.FailureReason,
		OccurredAt:    o.now(),
	}
	if err := o.publisher.PublishWithdrawalEvent(ctx, event); err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"withdrawal_id": withdrawal.ID,
			"event":         eventType,
		}).Warn("failed to publish withdrawal event")
	}
}

func (o *PayoutOrchestrator) withdrawalOperation(withdrawal *domain.Withdrawal, description string) domain.BalanceOperation {
	return o.operationArgs(withdrawal.UserID, withdrawal.Currency, withdrawal.Amount, withdrawal.ID, description)
}

func (o *PayoutOrchestrator) operationArgs(
	userID int64,
	currency string,
	amount decimal.Decimal,
	id string,
	description string,
) domain.BalanceOperation {
	return domain.BalanceOperation{
		UserID:        userID,
		Currency:      currency,
		Amount:        amount,
		ReferenceID:   id,
		ReferenceType: domain.ReferenceWithdrawal,
		Description:   description,
	}
}

// isRetryableProviderErr сообщает, неизвестен ли исход вызова. Ошибки без типа ProviderError
// (например, отмена контекста) тоже считаются неизвестным исходом.
func isRetryableProviderErr(err error) bool {
	var providerErr *domain.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}
	return !errors.Is(err, domain.ErrPayoutNotFound)
}

func isDefiniteRejection(err error) bool {
	var providerErr *domain.ProviderError
	return errors.As(err, &providerErr) && !providerErr.Retryable
}
