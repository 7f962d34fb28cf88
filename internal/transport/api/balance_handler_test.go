package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/logger"
	"github.com/fsdevblog/groph-payout/internal/service"
	"github.com/fsdevblog/groph-payout/internal/transport/api/mocks"
	"github.com/fsdevblog/groph-payout/internal/transport/api/testutils"
	"github.com/fsdevblog/groph-payout/internal/transport/api/tokens"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BalanceHandlerTestSuite struct {
	suite.Suite
	router             *gin.Engine
	mockBalanceService *mocks.MockBalanceServicer
	userID             int64
	userToken          string
}

func TestBalanceHandlerSuite(t *testing.T) {
	suite.Run(t, new(BalanceHandlerTestSuite))
}

func (s *BalanceHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	mockCtrl := gomock.NewController(s.T())

	s.mockBalanceService = mocks.NewMockBalanceServicer(mockCtrl)
	secret := []byte("super secret key")
	s.userID = 7

	token, err := tokens.GenerateUserJWT(s.userID, time.Hour, secret)
	s.Require().NoError(err)
	s.userToken = token

	router, err := New(RouterArgs{
		Logger:            logger.New(io.Discard, "debug"),
		WithdrawalService: mocks.NewMockWithdrawalServicer(mockCtrl),
		BalanceService:    s.mockBalanceService,
		JWTSecretKey:      secret,
	})
	s.Require().NoError(err)
	s.router = router
}

func (s *BalanceHandlerTestSuite) get(path string, query url.Values) *http.Response {
	target := RouteGroup + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	resp, err := testutils.MakeRequest(testutils.RequestArgs{
		Router: s.router,
		Method: http.MethodGet,
		URL:    target,
	}, testutils.WithBearer(s.userToken))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *BalanceHandlerTestSuite) TestIndex() {
	updatedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	s.mockBalanceService.EXPECT().
		GetBalances(gomock.Any(), s.userID, "").
		Return([]domain.Balance{
			{UserID: s.userID, Currency: "EUR", Available: decimal.NewFromInt(5), Held: decimal.Zero, UpdatedAt: updatedAt},
			{UserID: s.userID, Currency: "USD", Available: decimal.RequireFromString("60.5"), Held: decimal.NewFromInt(40), UpdatedAt: updatedAt},
		}, nil)
	s.mockBalanceService.EXPECT().
		GetBalances(gomock.Any(), s.userID, "btc").
		Return([]domain.Balance{*domain.ZeroBalance(s.userID, "BTC")}, nil)

	resp := s.get(BalanceRoute, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var all []BalanceResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&all))
	s.Require().Len(all, 2)
	s.Equal("USD", all[1].Currency)
	s.True(decimal.RequireFromString("60.5").Equal(all[1].Available))
	s.True(decimal.NewFromInt(40).Equal(all[1].Held))
	s.Require().NotNil(all[1].UpdatedAt)

	resp = s.get(BalanceRoute, url.Values{"currency": {"btc"}})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var single []BalanceResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&single))
	s.Require().Len(single, 1)
	s.Equal("BTC", single[0].Currency)
	s.True(single[0].Available.IsZero())
	s.Nil(single[0].UpdatedAt)

	resp = s.get(BalanceRoute, url.Values{"currency": {"$$"}})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *BalanceHandlerTestSuite) TestTransactions() {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	s.mockBalanceService.EXPECT().
		GetTransactionHistory(gomock.Any(), s.userID, gomock.Any()).
		DoAndReturn(func(_ any, _ int64, filter service.HistoryFilter) (*service.TransactionPage, error) {
			s.Equal("USD", filter.Currency)
			s.Equal(domain.TransactionHold, filter.Type)
			s.True(from.Equal(filter.From))
			s.True(to.Equal(filter.To))
			s.Equal(uint(2), filter.Page)
			s.Equal(uint(1), filter.Limit)
			return &service.TransactionPage{
				Transactions: []domain.BalanceTransaction{{
					ID:            11,
					CreatedAt:     from.Add(time.Hour),
					UserID:        s.userID,
					Currency:      "USD",
					Amount:        decimal.NewFromInt(40),
					Type:          domain.TransactionHold,
					ReferenceID:   "w1",
					ReferenceType: domain.ReferenceWithdrawal,
					BalanceBefore: decimal.NewFromInt(100),
					BalanceAfter:  decimal.NewFromInt(60),
					HeldBefore:    decimal.Zero,
					HeldAfter:     decimal.NewFromInt(40),
				}},
				Total: 3,
				Page:  2,
				Limit: 1,
			}, nil
		})

	resp := s.get(BalanceTransactionsRoute, url.Values{
		"currency": {"USD"},
		"type":     {"hold"},
		"from":     {from.Format(time.RFC3339)},
		"to":       {to.Format(time.RFC3339)},
		"page":     {"2"},
		"limit":    {"1"},
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body TransactionsResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal(uint(3), body.Total)
	s.Require().Len(body.Transactions, 1)
	s.Equal(domain.TransactionHold, body.Transactions[0].Type)
	s.Equal("w1", body.Transactions[0].ReferenceID)
	s.True(decimal.NewFromInt(60).Equal(body.Transactions[0].BalanceAfter))
}

func (s *BalanceHandlerTestSuite) TestTransactions_InvalidFilter() {
	s.mockBalanceService.EXPECT().
		GetTransactionHistory(gomock.Any(), s.userID, gomock.Any()).
		Return(nil, domain.ErrInvalidTransactionType)
	s.mockBalanceService.EXPECT().
		GetTransactionHistory(gomock.Any(), s.userID, gomock.Any()).
		Return(nil, domain.ErrInvalidFilter)

	resp := s.get(BalanceTransactionsRoute, url.Values{"type": {"transfer"}})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.get(BalanceTransactionsRoute, url.Values{
		"from": {"2025-02-01T00:00:00Z"},
		"to":   {"2025-01-01T00:00:00Z"},
	})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	// дата не в RFC3339 отсекается на этапе биндинга.
	resp = s.get(BalanceTransactionsRoute, url.Values{"from": {"yesterday"}})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *BalanceHandlerTestSuite) TestAudit() {
	stored := &domain.Balance{UserID: s.userID, Currency: "USD", Available: decimal.NewFromInt(60), Held: decimal.NewFromInt(40)}

	s.mockBalanceService.EXPECT().
		VerifyBalance(gomock.Any(), s.userID, "usd").
		Return(&service.AuditReport{
			Stored:       stored,
			Replayed:     stored,
			Transactions: 2,
			Consistent:   true,
		}, nil)

	resp := s.get(BalanceAuditRoute, url.Values{"currency": {"usd"}})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body AuditResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.True(body.Consistent)
	s.Equal(2, body.Transactions)
	s.Equal("USD", body.Currency)

	resp = s.get(BalanceAuditRoute, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}
