package domain

import "fmt"

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "PENDING"
	WithdrawalProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalCommitted  WithdrawalStatus = "COMMITTED"
	WithdrawalFailed     WithdrawalStatus = "FAILED"
	WithdrawalCancelled  WithdrawalStatus = "CANCELLED"
)

// withdrawalTransitions таблица допустимых переходов. Из терминальных статусов переходов нет.
var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:    {WithdrawalProcessing, WithdrawalCancelled, WithdrawalFailed},
	WithdrawalProcessing: {WithdrawalCommitted, WithdrawalFailed},
	WithdrawalCommitted:  nil,
	WithdrawalFailed:     nil,
	WithdrawalCancelled:  nil,
}

func ParseWithdrawalStatus(s string) (WithdrawalStatus, error) {
	status := WithdrawalStatus(s)
	if _, ok := withdrawalTransitions[status]; !ok {
		return "", fmt.Errorf("unknown withdrawal status %q", s)
	}
	return status, nil
}

// IsTerminal сообщает, является ли статус конечным.
func (s WithdrawalStatus) IsTerminal() bool {
	next, ok := withdrawalTransitions[s]
	return ok && len(next) == 0
}

// CanTransition проверяет переход без возврата ошибки. Используется для предварительных проверок.
func CanTransition(current, next WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition возвращает *InvalidStatusTransitionError, если переход current -> next не разрешен.
func ValidateTransition(current, next WithdrawalStatus) error {
	if !CanTransition(current, next) {
		return NewInvalidStatusTransitionError(current, next)
	}
	return nil
}

// EventType сопоставляет статус с типом публикуемого события.
func (s WithdrawalStatus) EventType() WithdrawalEventType {
	switch s {
	case WithdrawalProcessing:
		return EventWithdrawalProcessing
	case WithdrawalCommitted:
		return EventWithdrawalCommitted
	case WithdrawalFailed:
		return EventWithdrawalFailed
	case WithdrawalCancelled:
		return EventWithdrawalCancelled
	default:
		return EventWithdrawalCreated
	}
}
