package payout

import "errors"

var ErrNoWithdrawals = errors.New("no withdrawals for processing")
