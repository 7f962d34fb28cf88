package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/repository/repoargs"
	"github.com/fsdevblog/groph-payout/pkg/uow"
	"github.com/sirupsen/logrus"
)

const (
	defaultLedgerMaxAttempts    uint = 5
	defaultLedgerRetryBaseDelay      = 20 * time.Millisecond
)

// LedgerStore хранит балансы и журнал операций. Каждое изменение выполняется в одной транзакции БД
// под блокировкой строки баланса (user_id, currency).
type LedgerStore struct {
	uow            uow.UOW
	balanceRepo    BalanceRepository
	transRepo      BalanceTransactionRepository
	maxAttempts    uint
	retryBaseDelay time.Duration
	logger         *logrus.Entry
}

func NewLedgerStore(u uow.UOW, l *logrus.Logger) (*LedgerStore, error) {
	balanceRepo, err := uow.GetRepositoryAs[BalanceRepository](u, uow.RepositoryName(repoargs.BalanceRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	transRepo, err := uow.GetRepositoryAs[BalanceTransactionRepository](
		u,
		uow.RepositoryName(repoargs.BalanceTransactionRepoName),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &LedgerStore{
		uow:            u,
		balanceRepo:    balanceRepo,
		transRepo:      transRepo,
		maxAttempts:    defaultLedgerMaxAttempts,
		retryBaseDelay: defaultLedgerRetryBaseDelay,
		logger:         l.WithField("component", "ledger_store"),
	}, nil
}

// SetRetryPolicy задает число попыток и базовую задержку повтора при конфликтах блокировок.
func (s *LedgerStore) SetRetryPolicy(maxAttempts uint, baseDelay time.Duration) *LedgerStore {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	s.retryBaseDelay = baseDelay
	return s
}

// GetBalance возвращает баланс. Если записи нет, возвращается нулевой баланс.
func (s *LedgerStore) GetBalance(ctx context.Context, userID int64, currency string) (*domain.Balance, error) {
	balance, err := s.balanceRepo.Get(ctx, userID, currency)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.ZeroBalance(userID, currency), nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (s *LedgerStore) GetBalances(ctx context.Context, userID int64) ([]domain.Balance, error) {
	balances, err := s.balanceRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	return balances, nil
}

// GetTransactions возвращает страницу журнала и общее число записей под фильтр.
func (s *LedgerStore) GetTransactions(
	ctx context.Context,
	filter repoargs.TransactionFilter,
) ([]domain.BalanceTransaction, uint, error) {
	total, countErr := s.transRepo.CountByFilter(ctx, filter)
	if countErr != nil {
		return nil, 0, fmt.Errorf("get transactions: %w", countErr)
	}
	if total == 0 {
		return []domain.BalanceTransaction{}, 0, nil
	}
	transactions, err := s.transRepo.GetByFilter(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("get transactions: %w", err)
	}
	return transactions, total, nil
}

// GetReferenceTransactions возвращает все операции по ссылке.
func (s *LedgerStore) GetReferenceTransactions(
	ctx context.Context,
	ref repoargs.TransactionReference,
) ([]domain.BalanceTransaction, error) {
	transactions, err := s.transRepo.FindByReference(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("get reference transactions: %w", err)
	}
	return transactions, nil
}

// GetJournal возвращает весь журнал по паре юзер/валюта в порядке (created_at, id).
func (s *LedgerStore) GetJournal(ctx context.Context, userID int64, currency string) ([]domain.BalanceTransaction, error) {
	transactions, err := s.transRepo.GetForReplay(ctx, userID, currency)
	if err != nil {
		return nil, fmt.Errorf("get journal: %w", err)
	}
	return transactions, nil
}

// ApplyMutation применяет изменение к балансу и дописывает операцию в журнал.
//
// Алгоритм работы (в одной транзакции):
//  1. Создает или блокирует строку баланса.
//  2. Если указана ссылка, ищет уже проведенную операцию того же типа и возвращает ее результат.
//     Для release и settle_out проверяет, что резерв не закрыт противоположной операцией, повтор hold
//     по закрытому резерву возвращает ErrHoldAlreadyClosed.
//  3. Проверяет, что available и held не уходят в минус.
//  4. Обновляет баланс и создает запись журнала.
//
// Конфликты блокировок повторяются до maxAttempts раз, после чего возвращается ErrConflict.
func (s *LedgerStore) ApplyMutation(ctx context.Context, mutation domain.LedgerMutation) (*domain.MutationResult, error) {
	var lastErr error
	for attempt := uint(1); attempt <= s.maxAttempts; attempt++ {
		result, err := s.applyOnce(ctx, mutation)
		if err == nil {
			return result, nil
		}
		if !isStoreConflict(err) {
			return nil, err
		}
		lastErr = err

		if attempt == s.maxAttempts {
			break
		}
		delay := backoff(s.retryBaseDelay, attempt)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":  mutation.UserID,
			"currency": mutation.Currency,
			"type":     mutation.Type,
			"attempt":  attempt,
		}).Debugf("ledger conflict, retrying in %s", delay)

		if sleepErr := sleepCtx(ctx, delay); sleepErr != nil {
			return nil, fmt.Errorf("apply %s mutation: %w", mutation.Type, sleepErr)
		}
	}
	return nil, fmt.Errorf(
		"apply %s mutation after %d attempts: %w: %s",
		mutation.Type, s.maxAttempts, domain.ErrConflict, lastErr.Error(),
	)
}

// isStoreConflict сообщает, можно ли повторить транзакцию. Дубликат ключа идемпотентности означает, что
// конкурентная транзакция провела ту же операцию, повтор вернет ее результат.
func isStoreConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrDuplicateKey)
}

func (s *LedgerStore) applyOnce(ctx context.Context, mutation domain.LedgerMutation) (*domain.MutationResult, error) {
	var result *domain.MutationResult

	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		balanceRepo, repoErr := uow.GetAs[BalanceRepository](tx, uow.RepositoryName(repoargs.BalanceRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		transRepo, repoErr := uow.GetAs[BalanceTransactionRepository](
			tx,
			uow.RepositoryName(repoargs.BalanceTransactionRepoName),
		)
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}

		current, lockErr := balanceRepo.LockForUpdate(c, mutation.UserID, mutation.Currency)
		if lockErr != nil {
			return lockErr //nolint:wrapcheck
		}

		if mutation.ReferenceID != "" {
			prior, priorErr := s.findPrior(c, transRepo, mutation)
			if priorErr != nil {
				return priorErr
			}
			if prior != nil {
				result = &domain.MutationResult{Balance: prior.ResultingBalance(), Transaction: prior, Replayed: true}
				return nil
			}
		}

		dAvailable, dHeld := mutation.Type.Deltas(mutation.Amount)
		available := current.Available.Add(dAvailable)
		held := current.Held.Add(dHeld)

		if available.IsNegative() {
			return fmt.Errorf("%w: available %s, required %s", domain.ErrInsufficientFunds,
				current.Available, mutation.Amount)
		}
		if held.IsNegative() {
			return fmt.Errorf("%w: held %s, required %s", domain.ErrInsufficientHeldFunds,
				current.Held, mutation.Amount)
		}

		updated, updErr := balanceRepo.Update(c, repoargs.BalanceUpdate{
			UserID:    mutation.UserID,
			Currency:  mutation.Currency,
			Available: available,
			Held:      held,
		})
		if updErr != nil {
			return updErr //nolint:wrapcheck
		}

		transaction, createErr := transRepo.Create(c, repoargs.BalanceTransactionCreate{
			UserID:        mutation.UserID,
			Currency:      mutation.Currency,
			Type:          mutation.Type,
			Amount:        mutation.Amount,
			ReferenceID:   mutation.ReferenceID,
			ReferenceType: mutation.ReferenceType,
			BalanceBefore: current.Available,
			BalanceAfter:  available,
			HeldBefore:    current.Held,
			HeldAfter:     held,
			Description:   mutation.Description,
		})
		if createErr != nil {
			return createErr //nolint:wrapcheck
		}

		result = &domain.MutationResult{Balance: updated, Transaction: transaction}
		return nil
	})

	if txErr != nil {
		return nil, txErr //nolint:wrapcheck
	}
	return result, nil
}

// findPrior ищет проведенную ранее операцию того же типа по ссылке. Для операций, закрывающих резерв,
// возвращает ErrHoldAlreadyClosed, если по ссылке уже есть противоположная операция.
func (s *LedgerStore) findPrior(
	ctx context.Context,
	transRepo BalanceTransactionRepository,
	mutation domain.LedgerMutation,
) (*domain.BalanceTransaction, error) {
	existing, err := transRepo.FindByReference(ctx, repoargs.TransactionReference{
		UserID:        mutation.UserID,
		Currency:      mutation.Currency,
		ReferenceType: mutation.ReferenceType,
		ReferenceID:   mutation.ReferenceID,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	for i := range existing {
		if existing[i].Type != mutation.Type {
			continue
		}
		if !existing[i].Amount.Equal(mutation.Amount) {
			s.logger.WithFields(logrus.Fields{
				"reference_id": mutation.ReferenceID,
				"type":         mutation.Type,
				"amount":       mutation.Amount,
				"prior_amount": existing[i].Amount,
			}).Warn("repeated operation with different amount, returning prior result")
		}
		if mutation.Type == domain.TransactionHold {
			// повтор hold по уже закрытому резерву не должен выглядеть успешным: средства не зарезервированы.
			if state := domain.HoldStateOf(existing); state != domain.HoldOpen {
				return nil, fmt.Errorf("%w: reference %s/%s is %s",
					domain.ErrHoldAlreadyClosed, mutation.ReferenceType, mutation.ReferenceID, state)
			}
		}
		return &existing[i], nil
	}

	if mutation.Type.ClosesHold() {
		opposite := mutation.Type.OppositeClosing()
		for _, t := range existing {
			if t.Type == opposite {
				return nil, fmt.Errorf("%w: reference %s/%s closed by %s",
					domain.ErrHoldAlreadyClosed, mutation.ReferenceType, mutation.ReferenceID, opposite)
			}
		}
	}
	return nil, nil
}
