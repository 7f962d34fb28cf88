package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/repository/repoargs"
	"github.com/fsdevblog/groph-payout/internal/service/mocks"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

const testUserID int64 = 42

type PayoutOrchestratorTestSuite struct {
	suite.Suite
	mockCtrl      *gomock.Controller
	mockProvider  *mocks.MockPayoutProvider
	mockPublisher *mocks.MockEventPublisher
	mem           *memStore
	balances      *BalanceService
	orchestrator  *PayoutOrchestrator
	events        []domain.WithdrawalEvent
}

func TestPayoutOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(PayoutOrchestratorTestSuite))
}

func (s *PayoutOrchestratorTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockProvider = mocks.NewMockPayoutProvider(s.mockCtrl)
	s.mockPublisher = mocks.NewMockEventPublisher(s.mockCtrl)
	s.mem = newMemStore()
	s.events = nil

	s.mockPublisher.EXPECT().PublishWithdrawalEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event domain.WithdrawalEvent) error {
			s.events = append(s.events, event)
			return nil
		}).AnyTimes()

	l := newTestLogger()
	u := &memUOW{s: s.mem}
	store, err := NewLedgerStore(u, l)
	s.Require().NoError(err)
	s.balances = NewBalanceService(store.SetRetryPolicy(3, 0), l)

	conf := DefaultOrchestratorConfig()
	conf.RetryBaseDelay = 0
	conf.ProviderTimeout = time.Second
	conf.MaxCommitAttempts = 2
	s.orchestrator, err = NewPayoutOrchestrator(u, s.balances, s.mockProvider, s.mockPublisher, conf, l)
	s.Require().NoError(err)

	// у юзера 100 USD.
	_, err = s.balances.Credit(s.T().Context(), domain.BalanceOperation{
		UserID:        testUserID,
		Currency:      "USD",
		Amount:        decimal.NewFromInt(100),
		ReferenceID:   "topup-1",
		ReferenceType: domain.ReferenceTopup,
	})
	s.Require().NoError(err)
}

func (s *PayoutOrchestratorTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func (s *PayoutOrchestratorTestSuite) requestArgs(amount int64) RequestWithdrawalArgs {
	return RequestWithdrawalArgs{
		UserID:      testUserID,
		Currency:    "usd",
		Amount:      decimal.NewFromInt(amount),
		Destination: gofakeit.AchAccount(),
	}
}

func (s *PayoutOrchestratorTestSuite) assertBalance(available, held int64) {
	s.T().Helper()
	balance := s.mem.balance(testUserID, "USD")
	s.True(decimal.NewFromInt(available).Equal(balance.Available), "available: want %d, got %s", available,
		balance.Available)
	s.True(decimal.NewFromInt(held).Equal(balance.Held), "held: want %d, got %s", held, balance.Held)
}

func (s *PayoutOrchestratorTestSuite) transactionTypes(withdrawalID string) []domain.TransactionType {
	var types []domain.TransactionType
	for _, t := range s.mem.transactionsByReference(withdrawalID) {
		types = append(types, t.Type)
	}
	return types
}

func retryableErr(op string) error {
	return &domain.ProviderError{Op: op, StatusCode: http.StatusServiceUnavailable, Retryable: true,
		Err: errors.New("service unavailable")}
}

func (s *PayoutOrchestratorTestSuite) expectCreatePayout(payoutID string) {
	s.mockProvider.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req domain.PayoutRequest) (*domain.Payout, error) {
			return &domain.Payout{ID: payoutID, IdempotencyKey: req.IdempotencyKey, Status: domain.PayoutStatusCreated}, nil
		})
}

func (s *PayoutOrchestratorTestSuite) expectCommitPayout(payoutID string) {
	s.mockProvider.EXPECT().CommitPayout(gomock.Any(), payoutID).
		Return(&domain.Payout{ID: payoutID, Status: domain.PayoutStatusCommitted}, nil)
}

func (s *PayoutOrchestratorTestSuite) TestExecute_Committed() {
	var idempotencyKey string
	s.mockProvider.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req domain.PayoutRequest) (*domain.Payout, error) {
			idempotencyKey = req.IdempotencyKey
			s.Equal("USD", req.Currency)
			s.True(decimal.NewFromInt(40).Equal(req.Amount))
			return &domain.Payout{ID: "po-1", IdempotencyKey: req.IdempotencyKey, Status: domain.PayoutStatusCreated}, nil
		})
	s.expectCommitPayout("po-1")

	withdrawal, err := s.orchestrator.Execute(s.T().Context(), s.requestArgs(40))
	s.Require().NoError(err)

	s.Equal(domain.WithdrawalCommitted, withdrawal.Status)
	s.Equal("po-1", withdrawal.ExternalPayoutID)
	s.Equal(withdrawal.ID, idempotencyKey)
	s.assertBalance(60, 0)
	s.Equal([]domain.TransactionType{domain.TransactionHold, domain.TransactionSettleOut},
		s.transactionTypes(withdrawal.ID))

	var eventTypes []domain.WithdrawalEventType
	for _, e := range s.events {
		eventTypes = append(eventTypes, e.Type)
	}
	s.Equal([]domain.WithdrawalEventType{
		domain.EventWithdrawalCreated,
		domain.EventWithdrawalProcessing,
		domain.EventWithdrawalCommitted,
	}, eventTypes)
}

func (s *PayoutOrchestratorTestSuite) TestRequestWithdrawal_InsufficientFunds() {
	// провайдер вызываться не должен: у мока нет ожиданий.
	withdrawal, err := s.orchestrator.Execute(s.T().Context(), s.requestArgs(150))
	s.Require().NoError(err)

	s.Equal(domain.WithdrawalFailed, withdrawal.Status)
	s.Equal(domain.FailureInsufficientFunds, withdrawal.FailureReason)
	s.assertBalance(100, 0)
	s.Empty(s.transactionTypes(withdrawal.ID))
}

func (s *PayoutOrchestratorTestSuite) TestRequestWithdrawal_Validation() {
	cases := []struct {
		name    string
		modify  func(args *RequestWithdrawalArgs)
		wantErr error
	}{
		{name: "zero amount", modify: func(a *RequestWithdrawalArgs) { a.Amount = decimal.Zero }, wantErr: domain.ErrInvalidAmount},
		{
			name:    "amount below storage scale",
			modify:  func(a *RequestWithdrawalArgs) { a.Amount = decimal.RequireFromString("0.000000004") },
			wantErr: domain.ErrInvalidAmount,
		},
		{name: "empty currency", modify: func(a *RequestWithdrawalArgs) { a.Currency = "" }, wantErr: domain.ErrInvalidCurrency},
		{name: "blank destination", modify: func(a *RequestWithdrawalArgs) { a.Destination = "  " }, wantErr: domain.ErrInvalidDestination},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			args := s.requestArgs(10)
			t.modify(&args)
			_, err := s.orchestrator.RequestWithdrawal(s.T().Context(), args)
			s.Require().ErrorIs(err, t.wantErr)
		})
	}
	s.assertBalance(100, 0)
}

func (s *PayoutOrchestratorTestSuite) TestRequestWithdrawal_CallerSuppliedID() {
	args := s.requestArgs(40)
	args.ID = "client-wd-1"

	first, err := s.orchestrator.RequestWithdrawal(s.T().Context(), args)
	s.Require().NoError(err)
	second, err := s.orchestrator.RequestWithdrawal(s.T().Context(), args)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(domain.WithdrawalPending, second.Status)
	s.assertBalance(60, 40)
	s.Len(s.transactionTypes("client-wd-1"), 1)

	args.UserID = testUserID + 1
	_, err = s.orchestrator.RequestWithdrawal(s.T().Context(), args)
	s.Require().ErrorIs(err, domain.ErrWithdrawalNotOwned)
}

// flakyWithdrawalRepo отказывает в сохранении вывода заданное число раз.
type flakyWithdrawalRepo struct {
	WithdrawalRepository
	createFailures int
}

func (r *flakyWithdrawalRepo) Create(ctx context.Context, create repoargs.WithdrawalCreate) (*domain.Withdrawal, error) {
	if r.createFailures > 0 {
		r.createFailures--
		return nil, fmt.Errorf("withdrawal: %w", domain.ErrUnknown)
	}
	return r.WithdrawalRepository.Create(ctx, create)
}

func (s *PayoutOrchestratorTestSuite) TestRequestWithdrawal_RetryAfterSaveFailure() {
	s.orchestrator.withdrawalRepo = &flakyWithdrawalRepo{
		WithdrawalRepository: s.orchestrator.withdrawalRepo,
		createFailures:       1,
	}
	// резерв снят компенсацией, выплата создаваться не должна.
	s.mockProvider.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).Times(0)

	args := s.requestArgs(40)
	args.ID = "wd-retry"

	_, err := s.orchestrator.RequestWithdrawal(s.T().Context(), args)
	s.Require().ErrorIs(err, domain.ErrUnknown)
	s.assertBalance(100, 0)

	withdrawal, err := s.orchestrator.RequestWithdrawal(s.T().Context(), args)
	s.Require().NoError(err)
	s.Equal(domain.WithdrawalFailed, withdrawal.Status)
	s.Equal(domain.FailureHoldReleased, withdrawal.FailureReason)

	processed, err := s.orchestrator.Process(s.T().Context(), withdrawal.ID)
	s.Require().NoError(err)
	s.Equal(domain.WithdrawalFailed, processed.Status)

	again, err := s.orchestrator.RequestWithdrawal(s.T().Context(), args)
	s.Require().NoError(err)
	s.Equal(domain.WithdrawalFailed, again.Status)

	s.assertBalance(100, 0)
	s.Equal([]domain.TransactionType{domain.TransactionHold, domain.TransactionRelease},
		s.transactionTypes("wd-retry"))
}

func (s *PayoutOrchestratorTestSuite) TestProcess_ProviderRejected() {
	s.mockProvider.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).
		Return(nil, &domain.ProviderError{Op: "create", StatusCode: http.StatusBadRequest, Err: errors.New("bad iban")})

	withdrawal, err := s.orchestrator.Execute(s.T().Context(), s.requestArgs(40))
	s.Require().NoError(err)

	s.Equal(domain.WithdrawalFailed, withdrawal.Status)
	s.Equal(domain.FailureProviderRejected, withdrawal.FailureReason)
	s.assertBalance(100, 0)
	s.Equal([]domain.TransactionType{domain.TransactionHold, domain.TransactionRelease},
		s.transactionTypes(withdrawal.ID))
}

func (s *PayoutOrchestratorTestSuite) TestProcess_CreateUnknownThenNotFound() {
	s.mockProvider.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).Return(nil, retryableErr("create")).Times(3)
	s.mockProvider.EXPECT().GetPayout(gomock.Any(), gomock.Any()).
		Return(nil, &domain.ProviderError{Op: "get", StatusCode: http.StatusNotFound, Err: domain.ErrPayoutNotFound})

	withdrawal, err := s.orchestrator.Execute(s.T().Context(), s.requestArgs(40))
	s.Require().NoError(err)

	s.Equal(domain.WithdrawalFailed, withdrawal.Status)
	s.Equal(domain.FailureProviderUnavailable, withdrawal.FailureReason)
	s.assertBalance(100, 0)
}

func (s *PayoutOrchestratorTestSuite) TestProcess_CreateUnknownThenFoundByKey() {
	s.mockProvider.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).Return(nil, retryableErr("create")).Times(3)
	s.mockProvider.EXPECT().GetPayout(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, key string) (*domain.Payout, error) {
			return &domain.Payout{ID: "po-found", IdempotencyKey: key, Status: domain.PayoutStatusCreated}, nil
		})
	s.expectCommitPayout("po-found")

	withdrawal, err := s.orchestrator.Execute(s.T().Context(), s.requestArgs(40))
	s.Require().NoError(err)

	s.Equal(domain.WithdrawalCommitted, withdrawal.Status)
	s.Equal("po-found", withdrawal.ExternalPayoutID)
	s.assertBalance(60, 0)
}

func (s *PayoutOrchestratorTestSuite) TestProcess_OutcomeUnknownStaysProcessing() {
	s.mockProvider.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).Return(nil, retryableErr("create")).Times(3)
	s.mockProvider.EXPECT().GetPayout(gomock.Any(), gomock.Any()).Return(nil, retryableErr("get"))

	withdrawal, err := s.orchestrator.Execute(s.T().Context(), s.requestArgs(40))
	s.Require().ErrorIs(err, domain.ErrOutcomeUnknown)
	s.Require().ErrorIs(err, domain.ErrProvider)
	s.Equal(domain.WithdrawalProcessing, withdrawal.Status)
	s.assertBalance(60, 40)

	// повторная обработка с тем же ключом идемпотентности доводит вывод до конца.
	s.expectCreatePayout("po-2")
	s.expectCommitPayout("po-2")

	withdrawal, err = s.orchestrator.Process(s.T().Context(), withdrawal.ID)
	s.Require().NoError(err)
	s.Equal(domain.WithdrawalCommitted, withdrawal.Status)
	s.assertBalance(60, 0)
}

func (s *PayoutOrchestratorTestSuite) TestProcess_CommitRetriedWithinCall() {
	s.expectCreatePayout("po-3")
	gomock.InOrder(
		s.mockProvider.EXPECT().CommitPayout(gomock.Any(), "po-3").Return(nil, retryableErr("commit")),
		s.mockProvider.EXPECT().CommitPayout(gomock.Any(), "po-3").
			Return(&domain.Payout{ID: "po-3", Status: domain.PayoutStatusCommitted}, nil),
	)

	withdrawal, err := s.orchestrator.Execute(s.T().Context(), s.requestArgs(40))
	s.Require().NoError(err)
	s.Equal(domain.WithdrawalCommitted, withdrawal.Status)
	s.assertBalance(60, 0)
	s.Equal([]domain.TransactionType{domain.TransactionHold, domain.TransactionSettleOut},
		s.transactionTypes(withdrawal.ID))
}

func (s *PayoutOrchestratorTestSuite) TestProcess_CommitExhaustedRequiresReconcile() {
	s.expectCreatePayout("po-4")
	s.mockProvider.EXPECT().CommitPayout(gomock.Any(), "po-4").Return(nil, retryableErr("commit")).Times(6)

	withdrawal, err := s.orchestrator.Execute(s.T().Context(), s.requestArgs(40))
	s.Require().ErrorIs(err, domain.ErrProvider)
	s.Equal(domain.WithdrawalProcessing, withdrawal.Status)
	s.Equal(uint(1), withdrawal.CommitAttempts)
	s.False(withdrawal.ReconcileRequired)
	// списание не откатывается.
	s.assertBalance(60, 0)

	// вторая обработка: выплата уже создана, списание повторно не проводится.
	withdrawal, err = s.orchestrator.Process(s.T().Context(), withdrawal.ID)
	s.Require().Error(err)
	s.Equal(domain.WithdrawalProcessing, withdrawal.Status)
	s.Equal(uint(2), withdrawal.CommitAttempts)
	s.True(withdrawal.ReconcileRequired)
	s.assertBalance(60, 0)
	s.Equal([]domain.TransactionType{domain.TransactionHold, domain.TransactionSettleOut},
		s.transactionTypes(withdrawal.ID))

	last := s.events[len(s.events)-1]
	s.Equal(domain.EventWithdrawalReconcileRequired, last.Type)
	s.Equal(withdrawal.ID, last.WithdrawalID)
}

func (s *PayoutOrchestratorTestSuite) TestProcess_CommittedIsTerminal() {
	s.expectCreatePayout("po-5")
	s.expectCommitPayout("po-5")

	withdrawal, err := s.orchestrator.Execute(s.T().Context(), s.requestArgs(40))
	s.Require().NoError(err)

	for range 3 {
		again, processErr := s.orchestrator.Process(s.T().Context(), withdrawal.ID)
		s.Require().NoError(processErr)
		s.Equal(domain.WithdrawalCommitted, again.Status)
	}
	s.assertBalance(60, 0)
	s.Len(s.transactionTypes(withdrawal.ID), 2)
}

func (s *PayoutOrchestratorTestSuite) TestProcess_HoldReleasedBeforePayout() {
	withdrawal, err := s.orchestrator.RequestWithdrawal(s.T().Context(), s.requestArgs(40))
	s.Require().NoError(err)

	// отмена успела снять резерв, но проиграла переход PENDING -> CANCELLED.
	_, err = s.balances.Release(s.T().Context(), domain.BalanceOperation{
		UserID:        testUserID,
		Currency:      "USD",
		Amount:        decimal.NewFromInt(40),
		ReferenceID:   withdrawal.ID,
		ReferenceType: domain.ReferenceWithdrawal,
	})
	s.Require().NoError(err)

	s.mockProvider.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).Times(0)
	withdrawal, err = s.orchestrator.Process(s.T().Context(), withdrawal.ID)
	s.Require().NoError(err)

	s.Equal(domain.WithdrawalFailed, withdrawal.Status)
	s.Equal(domain.FailureHoldReleased, withdrawal.FailureReason)
	s.assertBalance(100, 0)
	s.Equal([]domain.TransactionType{domain.TransactionHold, domain.TransactionRelease},
		s.transactionTypes(withdrawal.ID))
}

func (s *PayoutOrchestratorTestSuite) TestCancel() {
	withdrawal, err := s.orchestrator.RequestWithdrawal(s.T().Context(), s.requestArgs(40))
	s.Require().NoError(err)
	s.assertBalance(60, 40)

	_, err = s.orchestrator.Cancel(s.T().Context(), testUserID+1, withdrawal.ID)
	s.Require().ErrorIs(err, domain.ErrWithdrawalNotOwned)

	cancelled, err := s.orchestrator.Cancel(s.T().Context(), testUserID, withdrawal.ID)
	s.Require().NoError(err)
	s.Equal(domain.WithdrawalCancelled, cancelled.Status)
	s.assertBalance(100, 0)

	_, err = s.orchestrator.Cancel(s.T().Context(), testUserID, withdrawal.ID)
	s.Require().ErrorIs(err, domain.ErrInvalidStatusTransition)

	// отмененный вывод не обрабатывается.
	processed, err := s.orchestrator.Process(s.T().Context(), withdrawal.ID)
	s.Require().NoError(err)
	s.Equal(domain.WithdrawalCancelled, processed.Status)
	s.assertBalance(100, 0)
}

func (s *PayoutOrchestratorTestSuite) TestCancel_ProcessingNotAllowed() {
	s.mockProvider.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).Return(nil, retryableErr("create")).Times(3)
	s.mockProvider.EXPECT().GetPayout(gomock.Any(), gomock.Any()).Return(nil, retryableErr("get"))

	withdrawal, err := s.orchestrator.Execute(s.T().Context(), s.requestArgs(40))
	s.Require().ErrorIs(err, domain.ErrOutcomeUnknown)

	_, err = s.orchestrator.Cancel(s.T().Context(), testUserID, withdrawal.ID)
	s.Require().ErrorIs(err, domain.ErrInvalidStatusTransition)
	s.assertBalance(60, 40)
}

func (s *PayoutOrchestratorTestSuite) TestWithdrawalsForProcessing() {
	pending, err := s.orchestrator.RequestWithdrawal(s.T().Context(), s.requestArgs(10))
	s.Require().NoError(err)
	_, err = s.orchestrator.RequestWithdrawal(s.T().Context(), s.requestArgs(500))
	s.Require().NoError(err)

	claimed, err := s.orchestrator.WithdrawalsForProcessing(s.T().Context(), 10)
	s.Require().NoError(err)
	s.Require().Len(claimed, 1)
	s.Equal(pending.ID, claimed[0].ID)

	// аренда не дает выбрать вывод повторно.
	claimed, err = s.orchestrator.WithdrawalsForProcessing(s.T().Context(), 10)
	s.Require().NoError(err)
	s.Empty(claimed)

	list, err := s.orchestrator.GetUserWithdrawals(s.T().Context(), testUserID)
	s.Require().NoError(err)
	s.Len(list, 2)
}

// TestLedgerInvariantsAcrossOutcomes проверяет, что по каждому выводу резерв закрыт не более одного раза
// и сумма доступных, зарезервированных и выведенных средств сохраняется.
func (s *PayoutOrchestratorTestSuite) TestLedgerInvariantsAcrossOutcomes() {
	s.mockProvider.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req domain.PayoutRequest) (*domain.Payout, error) {
			if req.Amount.GreaterThan(decimal.NewFromInt(20)) {
				return nil, &domain.ProviderError{Op: "create", StatusCode: http.StatusUnprocessableEntity,
					Err: errors.New("limit exceeded")}
			}
			return &domain.Payout{ID: "po-" + req.IdempotencyKey, IdempotencyKey: req.IdempotencyKey,
				Status: domain.PayoutStatusCreated}, nil
		}).AnyTimes()
	s.mockProvider.EXPECT().CommitPayout(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id string) (*domain.Payout, error) {
			return &domain.Payout{ID: id, Status: domain.PayoutStatusCommitted}, nil
		}).AnyTimes()

	amounts := []int64{10, 25, 15, 200, 30, 5}
	committed := decimal.Zero
	for _, amount := range amounts {
		withdrawal, err := s.orchestrator.Execute(s.T().Context(), s.requestArgs(amount))
		s.Require().NoError(err)
		s.True(withdrawal.Status.IsTerminal())

		types := s.transactionTypes(withdrawal.ID)
		closing := 0
		for _, t := range types {
			if t.ClosesHold() {
				closing++
			}
		}
		s.LessOrEqual(closing, 1)
		if withdrawal.Status == domain.WithdrawalCommitted {
			s.Contains(types, domain.TransactionSettleOut)
			committed = committed.Add(withdrawal.Amount)
		}
	}

	balance := s.mem.balance(testUserID, "USD")
	total := balance.Available.Add(balance.Held).Add(committed)
	s.True(decimal.NewFromInt(100).Equal(total), "total %s", total)
	s.True(balance.Held.IsZero())

	report, err := s.balances.VerifyBalance(s.T().Context(), testUserID, "USD")
	s.Require().NoError(err)
	s.True(report.Consistent)
}
