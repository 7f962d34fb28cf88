package domain

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type WithdrawalStatusTestSuite struct {
	suite.Suite
}

func TestWithdrawalStatusSuite(t *testing.T) {
	suite.Run(t, new(WithdrawalStatusTestSuite))
}

func (s *WithdrawalStatusTestSuite) TestValidateTransition() {
	cases := []struct {
		name    string
		from    WithdrawalStatus
		to      WithdrawalStatus
		wantErr bool
	}{
		{name: "pending to processing", from: WithdrawalPending, to: WithdrawalProcessing},
		{name: "pending to cancelled", from: WithdrawalPending, to: WithdrawalCancelled},
		{name: "pending to failed", from: WithdrawalPending, to: WithdrawalFailed},
		{name: "pending to committed", from: WithdrawalPending, to: WithdrawalCommitted, wantErr: true},
		{name: "processing to committed", from: WithdrawalProcessing, to: WithdrawalCommitted},
		{name: "processing to failed", from: WithdrawalProcessing, to: WithdrawalFailed},
		{name: "processing to cancelled", from: WithdrawalProcessing, to: WithdrawalCancelled, wantErr: true},
		{name: "processing to pending", from: WithdrawalProcessing, to: WithdrawalPending, wantErr: true},
		{name: "committed to failed", from: WithdrawalCommitted, to: WithdrawalFailed, wantErr: true},
		{name: "failed to processing", from: WithdrawalFailed, to: WithdrawalProcessing, wantErr: true},
		{name: "cancelled to pending", from: WithdrawalCancelled, to: WithdrawalPending, wantErr: true},
		{name: "same status", from: WithdrawalPending, to: WithdrawalPending, wantErr: true},
	}

	for _, t := range cases {
		s.Run(t.name, func() {
			err := ValidateTransition(t.from, t.to)
			s.Equal(!t.wantErr, CanTransition(t.from, t.to))
			if !t.wantErr {
				s.Require().NoError(err)
				return
			}
			s.Require().ErrorIs(err, ErrInvalidStatusTransition)

			var transitionErr *InvalidStatusTransitionError
			s.Require().ErrorAs(err, &transitionErr)
			s.Equal(t.from, transitionErr.From)
			s.Equal(t.to, transitionErr.To)
		})
	}
}

func (s *WithdrawalStatusTestSuite) TestIsTerminal() {
	s.False(WithdrawalPending.IsTerminal())
	s.False(WithdrawalProcessing.IsTerminal())
	s.True(WithdrawalCommitted.IsTerminal())
	s.True(WithdrawalFailed.IsTerminal())
	s.True(WithdrawalCancelled.IsTerminal())
	// неизвестный статус терминальным не считается.
	s.False(WithdrawalStatus("UNKNOWN").IsTerminal())
}

func (s *WithdrawalStatusTestSuite) TestParseWithdrawalStatus() {
	status, err := ParseWithdrawalStatus("COMMITTED")
	s.Require().NoError(err)
	s.Equal(WithdrawalCommitted, status)

	_, err = ParseWithdrawalStatus("committed")
	s.Require().Error(err)
}
