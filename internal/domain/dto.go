package domain

import (
	"fmt"
	"strings"
	"unicode"
)

type TransactionType string

const (
	TransactionCredit    TransactionType = "credit"
	TransactionDebit     TransactionType = "debit"
	TransactionHold      TransactionType = "hold"
	TransactionRelease   TransactionType = "release"
	TransactionSettleIn  TransactionType = "settle_in"
	TransactionSettleOut TransactionType = "settle_out"
)

// ParseTransactionType проверяет, что строка является известным типом транзакции.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if _, ok := transactionDeltas[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, s)
	}
	return t, nil
}

type ReferenceType string

const (
	ReferenceWithdrawal ReferenceType = "withdrawal"
	ReferenceTopup      ReferenceType = "topup"
	ReferenceRefund     ReferenceType = "refund"
)

type PayoutStatus string

const (
	PayoutStatusCreated   PayoutStatus = "created"
	PayoutStatusCommitted PayoutStatus = "committed"
	PayoutStatusFailed    PayoutStatus = "failed"
)

// FailureReason стабильный код причины неудачи вывода средств. Текст ошибок провайдера наружу не отдается.
type FailureReason string

const (
	FailureNone                FailureReason = ""
	FailureInsufficientFunds   FailureReason = "insufficient_funds"
	FailureProviderRejected    FailureReason = "provider_rejected"
	FailureProviderUnavailable FailureReason = "provider_unavailable"
	FailureLedgerError         FailureReason = "ledger_error"
	// FailureHoldReleased резерв по выводу снят раньше, чем выплата была создана.
	FailureHoldReleased FailureReason = "hold_released"
)

type WithdrawalEventType string

const (
	EventWithdrawalCreated           WithdrawalEventType = "withdrawal.created"
	EventWithdrawalProcessing        WithdrawalEventType = "withdrawal.processing"
	EventWithdrawalCommitted         WithdrawalEventType = "withdrawal.committed"
	EventWithdrawalFailed            WithdrawalEventType = "withdrawal.failed"
	EventWithdrawalCancelled         WithdrawalEventType = "withdrawal.cancelled"
	EventWithdrawalReconcileRequired WithdrawalEventType = "withdrawal.reconcile_required"
)

const (
	minCurrencyLength = 3
	maxCurrencyLength = 10
)

// NormalizeCurrency приводит код валюты к верхнему регистру. Допускаются только латинские буквы и цифры,
// длина от 3 до 10 символов (USD, USDT, ...).
func NormalizeCurrency(currency string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if len(c) < minCurrencyLength || len(c) > maxCurrencyLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	for _, r := range c {
		if r > unicode.MaxASCII || !(unicode.IsUpper(r) || unicode.IsDigit(r)) {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
		}
	}
	return c, nil
}
