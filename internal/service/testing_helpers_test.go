package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/repository/repoargs"
	"github.com/fsdevblog/groph-payout/pkg/uow"
	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type balanceKey struct {
	userID   int64
	currency string
}

// memStore хранилище в памяти с семантикой транзакций uow: Do выполняется строго по одной (аналог блокировки
// строки баланса), при ошибке состояние откатывается к снимку.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	balances     map[balanceKey]domain.Balance
	transactions []domain.BalanceTransaction
	withdrawals  map[string]domain.Withdrawal
	nextTransID  int64
	clock        time.Time
}

func newMemStore() *memStore {
	return &memStore{
		balances:    make(map[balanceKey]domain.Balance),
		withdrawals: make(map[string]domain.Withdrawal),
		clock:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick возвращает строго возрастающее время. Вызывать под mu.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

type memSnapshot struct {
	balances     map[balanceKey]domain.Balance
	transactions []domain.BalanceTransaction
	withdrawals  map[string]domain.Withdrawal
	nextTransID  int64
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := memSnapshot{
		balances:     make(map[balanceKey]domain.Balance, len(m.balances)),
		transactions: append([]domain.BalanceTransaction(nil), m.transactions...),
		withdrawals:  make(map[string]domain.Withdrawal, len(m.withdrawals)),
		nextTransID:  m.nextTransID,
	}
	for k, v := range m.balances {
		snap.balances[k] = v
	}
	for k, v := range m.withdrawals {
		snap.withdrawals[k] = v
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances = snap.balances
	m.transactions = snap.transactions
	m.withdrawals = snap.withdrawals
	m.nextTransID = snap.nextTransID
}

func (m *memStore) balance(userID int64, currency string) domain.Balance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[balanceKey{userID, currency}]; ok {
		return b
	}
	return *domain.ZeroBalance(userID, currency)
}

func (m *memStore) transactionsByReference(referenceID string) []domain.BalanceTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []domain.BalanceTransaction
	for _, t := range m.transactions {
		if t.ReferenceID == referenceID {
			res = append(res, t)
		}
	}
	return res
}

func (m *memStore) allTransactions() []domain.BalanceTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BalanceTransaction(nil), m.transactions...)
}

func (m *memStore) repository(name uow.RepositoryName) (uow.Repository, error) {
	switch repoargs.RepositoryName(name) {
	case repoargs.BalanceRepoName:
		return &memBalanceRepo{s: m}, nil
	case repoargs.BalanceTransactionRepoName:
		return &memTransactionRepo{s: m}, nil
	case repoargs.WithdrawalRepoName:
		return &memWithdrawalRepo{s: m}, nil
	default:
		return nil, fmt.Errorf("%w: %s", uow.ErrRepositoryNotRegistered, name)
	}
}

type memUOW struct {
	s *memStore
}

func (u *memUOW) Register(uow.RepositoryName, uow.RepositoryFactory) error {
	return nil
}

func (u *memUOW) Do(ctx context.Context, fn func(context.Context, uow.TX) error) error {
	u.s.txMu.Lock()
	defer u.s.txMu.Unlock()

	snap := u.s.snapshot()
	if err := fn(ctx, &memTX{s: u.s}); err != nil {
		u.s.restore(snap)
		return err
	}
	return nil
}

func (u *memUOW) GetRepository(name uow.RepositoryName) (uow.Repository, error) {
	return u.s.repository(name)
}

type memTX struct {
	s *memStore
}

func (t *memTX) Get(name uow.RepositoryName) (uow.Repository, error) {
	return t.s.repository(name)
}

type memBalanceRepo struct {
	s *memStore
}

func (r *memBalanceRepo) Get(_ context.Context, userID int64, currency string) (*domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.balances[balanceKey{userID, currency}]
	if !ok {
		return nil, fmt.Errorf("balance: %w", domain.ErrRecordNotFound)
	}
	return &b, nil
}

func (r *memBalanceRepo) GetByUserID(_ context.Context, userID int64) ([]domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res := make([]domain.Balance, 0)
	for k, b := range r.s.balances {
		if k.userID == userID {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Currency < res[j].Currency })
	return res, nil
}

func (r *memBalanceRepo) LockForUpdate(_ context.Context, userID int64, currency string) (*domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := balanceKey{userID, currency}
	b, ok := r.s.balances[key]
	if !ok {
		b = *domain.ZeroBalance(userID, currency)
		b.UpdatedAt = r.s.tick()
		r.s.balances[key] = b
	}
	return &b, nil
}

func (r *memBalanceRepo) Update(_ context.Context, update repoargs.BalanceUpdate) (*domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := balanceKey{update.UserID, update.Currency}
	if _, ok := r.s.balances[key]; !ok {
		return nil, fmt.Errorf("balance: %w", domain.ErrRecordNotFound)
	}
	b := domain.Balance{
		UserID:    update.UserID,
		Currency:  update.Currency,
		Available: update.Available,
		Held:      update.Held,
		UpdatedAt: r.s.tick(),
	}
	r.s.balances[key] = b
	return &b, nil
}

type memTransactionRepo struct {
	s *memStore
}

func (r *memTransactionRepo) Create(
	_ context.Context,
	t repoargs.BalanceTransactionCreate,
) (*domain.BalanceTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ReferenceID != "" {
		for _, existing := range r.s.transactions {
			if existing.UserID == t.UserID && existing.Currency == t.Currency &&
				existing.ReferenceType == t.ReferenceType && existing.ReferenceID == t.ReferenceID &&
				existing.Type == t.Type {
				return nil, fmt.Errorf("balance transaction: %w", domain.ErrDuplicateKey)
			}
		}
	}
	r.s.nextTransID++
	created := domain.BalanceTransaction{
		ID:            r.s.nextTransID,
		CreatedAt:     r.s.tick(),
		UserID:        t.UserID,
		Currency:      t.Currency,
		Amount:        t.Amount,
		Type:          t.Type,
		ReferenceID:   t.ReferenceID,
		ReferenceType: t.ReferenceType,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		HeldBefore:    t.HeldBefore,
		HeldAfter:     t.HeldAfter,
		Description:   t.Description,
	}
	r.s.transactions = append(r.s.transactions, created)
	return &created, nil
}

func (r *memTransactionRepo) FindByReference(
	_ context.Context,
	ref repoargs.TransactionReference,
) ([]domain.BalanceTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res := make([]domain.BalanceTransaction, 0)
	for _, t := range r.s.transactions {
		if t.UserID == ref.UserID && t.Currency == ref.Currency &&
			t.ReferenceType == ref.ReferenceType && t.ReferenceID == ref.ReferenceID {
			res = append(res, t)
		}
	}
	return res, nil
}

func (r *memTransactionRepo) filter(filter repoargs.TransactionFilter) []domain.BalanceTransaction {
	res := make([]domain.BalanceTransaction, 0)
	for _, t := range r.s.transactions {
		switch {
		case t.UserID != filter.UserID:
		case filter.Currency != "" && t.Currency != filter.Currency:
		case filter.Type != "" && t.Type != filter.Type:
		case !filter.From.IsZero() && t.CreatedAt.Before(filter.From):
		case !filter.To.IsZero() && !t.CreatedAt.Before(filter.To):
		default:
			res = append(res, t)
		}
	}
	return res
}

func (r *memTransactionRepo) GetByFilter(
	_ context.Context,
	filter repoargs.TransactionFilter,
) ([]domain.BalanceTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res := r.filter(filter)
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	if int(filter.Offset) >= len(res) {
		return []domain.BalanceTransaction{}, nil
	}
	res = res[filter.Offset:]
	if filter.Limit > 0 && int(filter.Limit) < len(res) {
		res = res[:filter.Limit]
	}
	return res, nil
}

func (r *memTransactionRepo) CountByFilter(_ context.Context, filter repoargs.TransactionFilter) (uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return uint(len(r.filter(filter))), nil
}

func (r *memTransactionRepo) GetForReplay(
	_ context.Context,
	userID int64,
	currency string,
) ([]domain.BalanceTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(repoargs.TransactionFilter{UserID: userID, Currency: currency}), nil
}

type memWithdrawalRepo struct {
	s *memStore
}

func (r *memWithdrawalRepo) Create(_ context.Context, create repoargs.WithdrawalCreate) (*domain.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.withdrawals[create.ID]; ok {
		return nil, fmt.Errorf("withdrawal: %w", domain.ErrDuplicateKey)
	}
	now := r.s.tick()
	w := domain.Withdrawal{
		ID:            create.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
		UserID:        create.UserID,
		Currency:      create.Currency,
		Amount:        create.Amount,
		Destination:   create.Destination,
		Status:        create.Status,
		FailureReason: create.FailureReason,
		NextAttemptAt: now,
	}
	r.s.withdrawals[w.ID] = w
	return &w, nil
}

func (r *memWithdrawalRepo) FindByID(_ context.Context, id string) (*domain.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.withdrawals[id]
	if !ok {
		return nil, fmt.Errorf("withdrawal %s: %w", id, domain.ErrRecordNotFound)
	}
	return &w, nil
}

func (r *memWithdrawalRepo) GetByUserID(_ context.Context, userID int64) ([]domain.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res := make([]domain.Withdrawal, 0)
	for _, w := range r.s.withdrawals {
		if w.UserID == userID {
			res = append(res, w)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *memWithdrawalRepo) UpdateStatus(
	_ context.Context,
	update repoargs.WithdrawalStatusUpdate,
) (*domain.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.withdrawals[update.ID]
	if !ok || w.Status != update.From {
		return nil, fmt.Errorf("withdrawal %s: %w", update.ID, domain.ErrRecordNotFound)
	}
	w.Status = update.To
	if update.FailureReason != domain.FailureNone {
		w.FailureReason = update.FailureReason
	}
	w.UpdatedAt = r.s.tick()
	r.s.withdrawals[w.ID] = w
	return &w, nil
}

func (r *memWithdrawalRepo) SetExternalPayoutID(
	_ context.Context,
	id string,
	payoutID string,
) (*domain.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.withdrawals[id]
	if !ok {
		return nil, fmt.Errorf("withdrawal %s: %w", id, domain.ErrRecordNotFound)
	}
	if w.ExternalPayoutID == "" {
		w.ExternalPayoutID = payoutID
	}
	w.UpdatedAt = r.s.tick()
	r.s.withdrawals[id] = w
	return &w, nil
}

func (r *memWithdrawalRepo) RegisterCommitFailure(
	_ context.Context,
	failure repoargs.WithdrawalCommitFailure,
) (*domain.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.withdrawals[failure.ID]
	if !ok {
		return nil, fmt.Errorf("withdrawal %s: %w", failure.ID, domain.ErrRecordNotFound)
	}
	w.CommitAttempts++
	w.ReconcileRequired = w.ReconcileRequired || failure.ReconcileRequired
	w.NextAttemptAt = failure.RetryAt
	w.UpdatedAt = r.s.tick()
	r.s.withdrawals[w.ID] = w
	return &w, nil
}

func (r *memWithdrawalRepo) ClaimForProcessing(
	_ context.Context,
	limit uint,
	lease time.Duration,
) ([]domain.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.tick()
	res := make([]domain.Withdrawal, 0)
	for id, w := range r.s.withdrawals {
		if uint(len(res)) >= limit {
			break
		}
		if w.Status.IsTerminal() || w.ReconcileRequired || w.NextAttemptAt.After(now) {
			continue
		}
		w.NextAttemptAt = now.Add(lease)
		r.s.withdrawals[id] = w
		res = append(res, w)
	}
	return res, nil
}
