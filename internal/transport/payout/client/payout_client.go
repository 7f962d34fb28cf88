// Package client HTTP клиент провайдера выплат.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	RoutePayouts       = "/api/payouts"
	RoutePayoutCommit  = "/api/payouts/%s/commit"
	HeaderIdempotency  = "Idempotency-Key"
	QueryIdempotency   = "idempotency_key"
	maxErrorBodyLength = 512
)

// Константы минимального и максимально значения в заголовке Retry-After.
const (
	minRetryAfter     = 1
	maxRetryAfter     = 120
	defaultRetryAfter = 60
)

const (
	opCreate = "create"
	opCommit = "commit"
	opGet    = "get"
)

type createPayoutRequest struct {
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination"`
}

type payoutResponse struct {
	ID             string `json:"id"`
	IdempotencyKey string `json:"idempotency_key"`
	Status         string `json:"status"`
}

// BreakerSettings параметры circuit breaker'а. Окончательные отказы провайдера (4xx) неудачами не считаются.
type BreakerSettings struct {
	// ConsecutiveFailures кол-во неудач подряд, после которого breaker размыкается.
	ConsecutiveFailures uint32
	// OpenTimeout время в разомкнутом состоянии до пробного запроса.
	OpenTimeout time.Duration
	// Interval период сброса счетчиков в замкнутом состоянии.
	Interval time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		Interval:            time.Minute,
	}
}

type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		h.httpClient = c
	}
}

func WithBreakerSettings(settings BreakerSettings) Option {
	return func(h *HTTPClient) {
		h.breakerSettings = settings
	}
}

// HTTPClient реализация провайдера выплат поверх HTTP JSON API.
type HTTPClient struct {
	baseURL         string
	httpClient      *http.Client
	breaker         *gobreaker.CircuitBreaker
	breakerSettings BreakerSettings
	l               *logrus.Entry
}

func New(baseURL string, l *logrus.Logger, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:         baseURL,
		httpClient:      http.DefaultClient,
		breakerSettings: DefaultBreakerSettings(),
		l: l.WithFields(logrus.Fields{
			"component": "payout",
			"module":    "client",
		}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payout-provider",
		MaxRequests: 1,
		Interval:    c.breakerSettings.Interval,
		Timeout:     c.breakerSettings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.breakerSettings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isRetryable(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.l.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})
	return c
}

// CreatePayout создает выплату. Повторный вызов с тем же ключом идемпотентности возвращает уже созданную выплату.
func (c *HTTPClient) CreatePayout(ctx context.Context, req domain.PayoutRequest) (*domain.Payout, error) {
	body, err := json.Marshal(createPayoutRequest{
		Currency:    req.Currency,
		Amount:      req.Amount,
		Destination: req.Destination,
	})
	if err != nil {
		return nil, fmt.Errorf("create payout: marshal request: %w", err)
	}

	header := http.Header{}
	header.Set(HeaderIdempotency, req.IdempotencyKey)

	return c.execute(ctx, opCreate, http.MethodPost, c.baseURL+RoutePayouts, header, body)
}

// CommitPayout подтверждает ранее созданную выплату.
func (c *HTTPClient) CommitPayout(ctx context.Context, payoutID string) (*domain.Payout, error) {
	u := c.baseURL + fmt.Sprintf(RoutePayoutCommit, url.PathEscape(payoutID))
	return c.execute(ctx, opCommit, http.MethodPost, u, nil, nil)
}

// GetPayout ищет выплату по ключу идемпотентности. Если выплаты нет, возвращает domain.ErrPayoutNotFound.
func (c *HTTPClient) GetPayout(ctx context.Context, idempotencyKey string) (*domain.Payout, error) {
	q := url.Values{}
	q.Set(QueryIdempotency, idempotencyKey)

	payout, err := c.execute(ctx, opGet, http.MethodGet, c.baseURL+RoutePayouts+"?"+q.Encode(), nil, nil)
	var statusErr *StatusCodeError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return nil, fmt.Errorf("get payout by key %s: %w", idempotencyKey, domain.ErrPayoutNotFound)
	}
	return payout, err
}

// execute выполняет запрос через circuit breaker и приводит ошибку к *domain.ProviderError.
func (c *HTTPClient) execute(
	ctx context.Context,
	op string,
	method string,
	endpoint string,
	header http.Header,
	body []byte,
) (*domain.Payout, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, method, endpoint, header, body)
	})
	if err != nil {
		providerErr := &domain.ProviderError{Op: op, Retryable: isRetryable(err), Err: err}
		var statusErr *StatusCodeError
		if errors.As(err, &statusErr) {
			providerErr.StatusCode = statusErr.Code
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.l.WithField("op", op).Warn("request rejected by circuit breaker")
		}
		return nil, providerErr
	}

	payout, ok := result.(*domain.Payout)
	if !ok {
		return nil, &domain.ProviderError{Op: op, Retryable: true, Err: fmt.Errorf("unexpected result %T", result)}
	}
	return payout, nil
}

// do делает один HTTP запрос.
// При ответе со статусом отличным от 2xx возвращает ошибку StatusCodeError, или
// TooManyRequestError в случае http.StatusTooManyRequests.
//
//nolint:nonamedreturns
func (c *HTTPClient) do(
	ctx context.Context,
	method string,
	endpoint string,
	header http.Header,
	body []byte,
) (payout *domain.Payout, err error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, reqErr := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if reqErr != nil {
		return nil, fmt.Errorf("create request: %w", reqErr)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("do request: %w", doErr)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewTooManyRequestError(parseRetryAfter(resp.Header.Get("Retry-After")))
	}

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("read response: %w", readErr)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if len(respBody) > maxErrorBodyLength {
			respBody = respBody[:maxErrorBodyLength]
		}
		return nil, NewStatusCodeError(resp.StatusCode, string(bytes.TrimSpace(respBody)))
	}

	var response payoutResponse
	if jsonErr := json.Unmarshal(respBody, &response); jsonErr != nil {
		return nil, fmt.Errorf("parse response: %w", jsonErr)
	}
	if response.ID == "" {
		return nil, errors.New("parse response: empty payout id")
	}

	return &domain.Payout{
		ID:             response.ID,
		IdempotencyKey: response.IdempotencyKey,
		Status:         domain.PayoutStatus(response.Status),
	}, nil
}

func parseRetryAfter(value string) time.Duration {
	minValue := decimal.NewFromInt(minRetryAfter)
	maxValue := decimal.NewFromInt(maxRetryAfter)

	retryAfter, parseErr := decimal.NewFromString(value)
	if parseErr != nil || retryAfter.LessThan(minValue) || retryAfter.GreaterThan(maxValue) {
		retryAfter = decimal.NewFromInt(defaultRetryAfter)
	}
	return time.Duration(retryAfter.IntPart()) * time.Second
}

// isRetryable сообщает, остается ли исход запроса неизвестным.
func isRetryable(err error) bool {
	var statusErr *StatusCodeError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
