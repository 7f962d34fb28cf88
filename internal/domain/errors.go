package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrUnknown        = errors.New("unknown error")

	// ErrConflict конкурентная блокировка в хранилище, которую не удалось разрешить повторами.
	ErrConflict = errors.New("conflict")

	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidCurrency        = errors.New("invalid currency")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidDestination     = errors.New("invalid payout destination")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInsufficientHeldFunds  = errors.New("insufficient held funds")
	ErrInvalidFilter          = errors.New("invalid filter")

	// ErrHoldAlreadyClosed резерв по ссылке уже закрыт противоположной операцией (release или settle_out).
	ErrHoldAlreadyClosed = errors.New("hold already closed")

	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrWithdrawalNotOwned      = errors.New("withdrawal belongs to another user")

	ErrProvider       = errors.New("payout provider error")
	ErrPayoutNotFound = errors.New("payout not found")
	// ErrOutcomeUnknown результат вызова провайдера неизвестен, вывод остается в обработке.
	ErrOutcomeUnknown = errors.New("payout outcome unknown")
)

type InvalidStatusTransitionError struct {
	From WithdrawalStatus
	To   WithdrawalStatus
}

func NewInvalidStatusTransitionError(from, to WithdrawalStatus) error {
	return &InvalidStatusTransitionError{From: from, To: to}
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("invalid withdrawal status transition %s -> %s", e.From, e.To)
}

func (e *InvalidStatusTransitionError) Is(target error) bool {
	return target == ErrInvalidStatusTransition
}

// ProviderError ошибка внешнего провайдера выплат. Retryable=false означает окончательный отказ,
// в остальных случаях исход операции неизвестен и вызов можно повторить с тем же ключом идемпотентности.
type ProviderError struct {
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payout provider %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payout provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}
