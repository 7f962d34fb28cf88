package client

import (
	"fmt"
	"net/http"
	"time"
)

// StatusCodeError неожиданный HTTP статус ответа провайдера.
type StatusCodeError struct {
	Code int
	Body string
}

func NewStatusCodeError(code int, body string) *StatusCodeError {
	return &StatusCodeError{Code: code, Body: body}
}

func (e *StatusCodeError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

// Retryable сообщает, может ли повтор запроса с тем же ключом идемпотентности дать другой результат.
// Ответы 4xx считаются окончательным отказом, кроме 408, 409 и 429.
func (e *StatusCodeError) Retryable() bool {
	switch e.Code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return e.Code < http.StatusBadRequest || e.Code >= http.StatusInternalServerError
}

type TooManyRequestError struct {
	RetryAfter time.Duration
}

func NewTooManyRequestError(retryAfter time.Duration) *TooManyRequestError {
	return &TooManyRequestError{RetryAfter: retryAfter}
}

func (e *TooManyRequestError) Error() string {
	return fmt.Sprintf("too many requests, retry after %.f seconds", e.RetryAfter.Seconds())
}
