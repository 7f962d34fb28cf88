package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/repository/repoargs"
	"github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit uint = 20
	maxHistoryLimit     uint = 100
)

type BalanceService struct {
	store  LedgerStorer
	logger *logrus.Entry
}

func NewBalanceService(store LedgerStorer, l *logrus.Logger) *BalanceService {
	return &BalanceService{
		store:  store,
		logger: l.WithField("component", "balance_service"),
	}
}

// Credit зачисляет средства на доступный баланс.
func (b *BalanceService) Credit(ctx context.Context, args domain.BalanceOperation) (*domain.Balance, error) {
	return b.apply(ctx, domain.TransactionCredit, args)
}

// Debit списывает средства с доступного баланса. При нехватке возвращает ErrInsufficientFunds.
func (b *BalanceService) Debit(ctx context.Context, args domain.BalanceOperation) (*domain.Balance, error) {
	return b.apply(ctx, domain.TransactionDebit, args)
}

// Hold переводит средства из доступных в зарезервированные.
func (b *BalanceService) Hold(ctx context.Context, args domain.BalanceOperation) (*domain.Balance, error) {
	return b.apply(ctx, domain.TransactionHold, args)
}

// Release возвращает зарезервированные средства в доступные.
func (b *BalanceService) Release(ctx context.Context, args domain.BalanceOperation) (*domain.Balance, error) {
	return b.apply(ctx, domain.TransactionRelease, args)
}

// SettleOut окончательно списывает зарезервированные средства.
func (b *BalanceService) SettleOut(ctx context.Context, args domain.BalanceOperation) (*domain.Balance, error) {
	return b.apply(ctx, domain.TransactionSettleOut, args)
}

func (b *BalanceService) SettleIn(ctx context.Context, args domain.BalanceOperation) (*domain.Balance, error) {
	return b.apply(ctx, domain.TransactionSettleIn, args)
}

// HoldState возвращает состояние резерва по ссылке операции.
func (b *BalanceService) HoldState(ctx context.Context, args domain.BalanceOperation) (domain.HoldState, error) {
	currency, currErr := domain.NormalizeCurrency(args.Currency)
	if currErr != nil {
		return "", fmt.Errorf("hold state: %w", currErr)
	}
	transactions, err := b.store.GetReferenceTransactions(ctx, repoargs.TransactionReference{
		UserID:        args.UserID,
		Currency:      currency,
		ReferenceType: args.ReferenceType,
		ReferenceID:   args.ReferenceID,
	})
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	return domain.HoldStateOf(transactions), nil
}

func (b *BalanceService) apply(
	ctx context.Context,
	txType domain.TransactionType,
	args domain.BalanceOperation,
) (*domain.Balance, error) {
	if amountErr := domain.ValidateAmount(args.Amount); amountErr != nil {
		return nil, fmt.Errorf("%s: %w", txType, amountErr)
	}
	currency, currErr := domain.NormalizeCurrency(args.Currency)
	if currErr != nil {
		return nil, fmt.Errorf("%s: %w", txType, currErr)
	}

	result, err := b.store.ApplyMutation(ctx, domain.LedgerMutation{
		UserID:        args.UserID,
		Currency:      currency,
		Type:          txType,
		Amount:        args.Amount,
		ReferenceID:   args.ReferenceID,
		ReferenceType: args.ReferenceType,
		Description:   args.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", txType, err)
	}

	b.logger.WithFields(logrus.Fields{
		"user_id":      args.UserID,
		"currency":     currency,
		"type":         txType,
		"amount":       args.Amount,
		"reference_id": args.ReferenceID,
		"replayed":     result.Replayed,
		"available":    result.Balance.Available,
		"held":         result.Balance.Held,
	}).Debug("balance operation applied")

	return result.Balance, nil
}

// GetBalances возвращает балансы юзера. Если currency не пустая, возвращается один баланс в этой валюте
// (нулевой, если операций по ней не было).
func (b *BalanceService) GetBalances(ctx context.Context, userID int64, currency string) ([]domain.Balance, error) {
	if currency == "" {
		balances, err := b.store.GetBalances(ctx, userID)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		return balances, nil
	}

	normalized, currErr := domain.NormalizeCurrency(currency)
	if currErr != nil {
		return nil, currErr //nolint:wrapcheck
	}
	balance, err := b.store.GetBalance(ctx, userID, normalized)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return []domain.Balance{*balance}, nil
}

// HistoryFilter фильтр истории операций. Нумерация страниц с 1.
type HistoryFilter struct {
	Currency string
	Type     domain.TransactionType
	From     time.Time
	To       time.Time
	Page     uint
	Limit    uint
}

type TransactionPage struct {
	Transactions []domain.BalanceTransaction
	Total        uint
	Page         uint
	Limit        uint
}

// GetTransactionHistory возвращает историю операций юзера от новых к старым.
func (b *BalanceService) GetTransactionHistory(
	ctx context.Context,
	userID int64,
	filter HistoryFilter,
) (*TransactionPage, error) {
	repoFilter, err := b.normalizeFilter(userID, filter)
	if err != nil {
		return nil, err
	}

	transactions, total, err := b.store.GetTransactions(ctx, repoFilter)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &TransactionPage{
		Transactions: transactions,
		Total:        total,
		Page:         repoFilter.Offset/repoFilter.Limit + 1,
		Limit:        repoFilter.Limit,
	}, nil
}

func (b *BalanceService) normalizeFilter(userID int64, filter HistoryFilter) (repoargs.TransactionFilter, error) {
	res := repoargs.TransactionFilter{
		UserID: userID,
		From:   filter.From,
		To:     filter.To,
	}

	if filter.Currency != "" {
		currency, err := domain.NormalizeCurrency(filter.Currency)
		if err != nil {
			return res, err //nolint:wrapcheck
		}
		res.Currency = currency
	}
	if filter.Type != "" {
		txType, err := domain.ParseTransactionType(string(filter.Type))
		if err != nil {
			return res, err //nolint:wrapcheck
		}
		res.Type = txType
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return res, fmt.Errorf("%w: period end is before period start", domain.ErrInvalidFilter)
	}

	limit := filter.Limit
	switch {
	case limit == 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	page := max(filter.Page, 1)

	res.Limit = limit
	res.Offset = (page - 1) * limit
	return res, nil
}

// AuditReport результат сверки сохраненного баланса с суммой журнала.
type AuditReport struct {
	Stored       *domain.Balance
	Replayed     *domain.Balance
	Transactions int
	Consistent   bool
}

// VerifyBalance пересчитывает баланс по журналу в порядке (created_at, id) и сравнивает с сохраненным.
func (b *BalanceService) VerifyBalance(ctx context.Context, userID int64, currency string) (*AuditReport, error) {
	normalized, currErr := domain.NormalizeCurrency(currency)
	if currErr != nil {
		return nil, currErr //nolint:wrapcheck
	}

	stored, err := b.store.GetBalance(ctx, userID, normalized)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	journal, err := b.store.GetJournal(ctx, userID, normalized)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	replayed := domain.ReplayTransactions(userID, normalized, journal)
	report := &AuditReport{
		Stored:       stored,
		Replayed:     replayed,
		Transactions: len(journal),
		Consistent:   stored.Available.Equal(replayed.Available) && stored.Held.Equal(replayed.Held),
	}
	if !report.Consistent {
		b.logger.WithFields(logrus.Fields{
			"user_id":            userID,
			"currency":           normalized,
			"stored_available":   stored.Available,
			"stored_held":        stored.Held,
			"replayed_available": replayed.Available,
			"replayed_held":      replayed.Held,
		}).Error("balance does not match transaction journal")
	}
	return report, nil
}
