package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type LedgerTestSuite struct {
	suite.Suite
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (s *LedgerTestSuite) TestDeltas() {
	amount := decimal.NewFromInt(40)

	cases := []struct {
		txType        TransactionType
		wantAvailable decimal.Decimal
		wantHeld      decimal.Decimal
	}{
		{txType: TransactionCredit, wantAvailable: amount, wantHeld: decimal.Zero},
		{txType: TransactionDebit, wantAvailable: amount.Neg(), wantHeld: decimal.Zero},
		{txType: TransactionHold, wantAvailable: amount.Neg(), wantHeld: amount},
		{txType: TransactionRelease, wantAvailable: amount, wantHeld: amount.Neg()},
		{txType: TransactionSettleOut, wantAvailable: decimal.Zero, wantHeld: amount.Neg()},
		{txType: TransactionSettleIn, wantAvailable: amount, wantHeld: decimal.Zero},
	}

	for _, t := range cases {
		s.Run(string(t.txType), func() {
			available, held := t.txType.Deltas(amount)
			s.True(t.wantAvailable.Equal(available), "available: want %s, got %s", t.wantAvailable, available)
			s.True(t.wantHeld.Equal(held), "held: want %s, got %s", t.wantHeld, held)
		})
	}
}

func (s *LedgerTestSuite) TestReplayTransactions() {
	now := time.Now()
	transactions := []BalanceTransaction{
		{ID: 1, CreatedAt: now, Type: TransactionCredit, Amount: decimal.NewFromInt(100)},
		{ID: 2, CreatedAt: now.Add(time.Second), Type: TransactionHold, Amount: decimal.NewFromInt(40)},
		{ID: 3, CreatedAt: now.Add(2 * time.Second), Type: TransactionSettleOut, Amount: decimal.NewFromInt(40)},
		{ID: 4, CreatedAt: now.Add(3 * time.Second), Type: TransactionHold, Amount: decimal.NewFromInt(10)},
		{ID: 5, CreatedAt: now.Add(4 * time.Second), Type: TransactionRelease, Amount: decimal.NewFromInt(10)},
		{ID: 6, CreatedAt: now.Add(5 * time.Second), Type: TransactionDebit, Amount: decimal.NewFromFloat(0.5)},
	}

	balance := ReplayTransactions(1, "USD", transactions)

	s.True(decimal.NewFromFloat(59.5).Equal(balance.Available), "got %s", balance.Available)
	s.True(balance.Held.IsZero())
	s.Equal(now.Add(5*time.Second), balance.UpdatedAt)
}

func (s *LedgerTestSuite) TestClosesHold() {
	s.True(TransactionRelease.ClosesHold())
	s.True(TransactionSettleOut.ClosesHold())
	s.False(TransactionHold.ClosesHold())
	s.Equal(TransactionSettleOut, TransactionRelease.OppositeClosing())
	s.Equal(TransactionRelease, TransactionSettleOut.OppositeClosing())
}

func (s *LedgerTestSuite) TestNormalizeCurrency() {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "usd", want: "USD"},
		{in: " USDT ", want: "USDT"},
		{in: "US", wantErr: true},
		{in: "", wantErr: true},
		{in: "U$D", wantErr: true},
		{in: "ДОЛЛАР", wantErr: true},
	}
	for _, t := range cases {
		s.Run(t.in, func() {
			got, err := NormalizeCurrency(t.in)
			if t.wantErr {
				s.Require().ErrorIs(err, ErrInvalidCurrency)
				return
			}
			s.Require().NoError(err)
			s.Equal(t.want, got)
		})
	}
}

func (s *LedgerTestSuite) TestParseTransactionType() {
	txType, err := ParseTransactionType("settle_out")
	s.Require().NoError(err)
	s.Equal(TransactionSettleOut, txType)

	_, err = ParseTransactionType("transfer")
	s.Require().ErrorIs(err, ErrInvalidTransactionType)
}

func (s *LedgerTestSuite) TestValidateAmount() {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{in: "40"},
		{in: "0.00000001"},
		{in: "1.000000000"},
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "0.000000004", wantErr: true},
		{in: "10.123456789", wantErr: true},
	}
	for _, t := range cases {
		s.Run(t.in, func() {
			err := ValidateAmount(decimal.RequireFromString(t.in))
			if t.wantErr {
				s.Require().ErrorIs(err, ErrInvalidAmount)
				return
			}
			s.Require().NoError(err)
		})
	}
}

func (s *LedgerTestSuite) TestHoldStateOf() {
	amount := decimal.NewFromInt(40)
	hold := BalanceTransaction{Type: TransactionHold, Amount: amount}
	release := BalanceTransaction{Type: TransactionRelease, Amount: amount}
	settle := BalanceTransaction{Type: TransactionSettleOut, Amount: amount}

	s.Equal(HoldAbsent, HoldStateOf(nil))
	s.Equal(HoldOpen, HoldStateOf([]BalanceTransaction{hold}))
	s.Equal(HoldReleased, HoldStateOf([]BalanceTransaction{hold, release}))
	s.Equal(HoldSettled, HoldStateOf([]BalanceTransaction{hold, settle}))
	// порядок строк из хранилища не важен.
	s.Equal(HoldReleased, HoldStateOf([]BalanceTransaction{release, hold}))
}
