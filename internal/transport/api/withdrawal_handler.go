package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type WithdrawalHandler struct {
	svs           WithdrawalServicer
	executeInline bool
}

func NewWithdrawalHandler(svs WithdrawalServicer, executeInline bool) *WithdrawalHandler {
	return &WithdrawalHandler{
		svs:           svs,
		executeInline: executeInline,
	}
}

type WithdrawalResponse struct {
	ID                string                  `json:"id"`
	Status            domain.WithdrawalStatus `json:"status"`
	Currency          string                  `json:"currency"`
	Amount            decimal.Decimal         `json:"amount"`
	Destination       string                  `json:"destination"`
	FailureReason     domain.FailureReason    `json:"failure_reason,omitempty"`
	ReconcileRequired bool                    `json:"reconcile_required,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

func newWithdrawalResponse(w *domain.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:                w.ID,
		Status:            w.Status,
		Currency:          w.Currency,
		Amount:            w.Amount,
		Destination:       w.Destination,
		FailureReason:     w.FailureReason,
		ReconcileRequired: w.ReconcileRequired,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
	}
}

type CreateWithdrawalParams struct {
	// ID ключ идемпотентности клиента, необязательный.
	ID          string          `json:"id"          binding:"omitempty,max_bytes=64"`
	Currency    string          `json:"currency"    binding:"required,currency"`
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination" binding:"required,max_bytes=255"`
}

// Create POST RouteGroup + WithdrawalsRoute.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params CreateWithdrawalParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}
	// знак суммы проверяет сервис, здесь отсекается только лишняя точность.
	if !params.Amount.Equal(params.Amount.Truncate(domain.MaxAmountScale)) {
		c.AbortWithStatus(http.StatusUnprocessableEntity)
		return
	}

	args := service.RequestWithdrawalArgs{
		ID:          params.ID,
		UserID:      currentUserID,
		Currency:    params.Currency,
		Amount:      params.Amount,
		Destination: params.Destination,
	}

	var (
		withdrawal *domain.Withdrawal
		err        error
	)
	if h.executeInline {
		reqCtx, cancel := context.WithTimeout(c, ExecuteTimeout)
		defer cancel()
		withdrawal, err = h.svs.Execute(reqCtx, args)
	} else {
		reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
		defer cancel()
		withdrawal, err = h.svs.RequestWithdrawal(reqCtx, args)
	}

	if err != nil {
		// вывод сохранен и не завершен (неизвестен исход выплаты, не прошло подтверждение), его доведет
		// фоновый обработчик.
		if withdrawal != nil && !withdrawal.Status.IsTerminal() {
			c.JSON(http.StatusAccepted, newWithdrawalResponse(withdrawal))
			return
		}
		if errors.Is(err, domain.ErrWithdrawalNotOwned) {
			c.AbortWithStatus(http.StatusConflict)
			return
		}
		abortWithServiceError(c, err)
		return
	}

	c.JSON(createdStatus(withdrawal), newWithdrawalResponse(withdrawal))
}

// createdStatus http статус ответа на создание вывода.
func createdStatus(w *domain.Withdrawal) int {
	switch {
	case w.Status == domain.WithdrawalFailed && w.FailureReason == domain.FailureInsufficientFunds:
		return http.StatusPaymentRequired
	case w.Status.IsTerminal():
		return http.StatusOK
	default:
		return http.StatusAccepted
	}
}

// Index GET RouteGroup + WithdrawalsRoute.
func (h *WithdrawalHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawals, err := h.svs.GetUserWithdrawals(reqCtx, currentUserID)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}
	if len(withdrawals) == 0 {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	response := make([]WithdrawalResponse, len(withdrawals))
	for i := range withdrawals {
		response[i] = newWithdrawalResponse(&withdrawals[i])
	}
	c.JSON(http.StatusOK, response)
}

// Show GET RouteGroup + WithdrawalRoute.
func (h *WithdrawalHandler) Show(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := h.svs.GetUserWithdrawal(reqCtx, currentUserID, c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWithdrawalResponse(withdrawal))
}

// Cancel POST RouteGroup + WithdrawalCancelRoute.
func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := h.svs.Cancel(reqCtx, currentUserID, c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWithdrawalResponse(withdrawal))
}

// abortWithServiceError сопоставляет ошибки сервисного слоя с http статусами.
// Чужой вывод для юзера неотличим от несуществующего.
func abortWithServiceError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrInvalidDestination):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrInvalidTransactionType):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRecordNotFound),
		errors.Is(err, domain.ErrWithdrawalNotOwned):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}
	_ = c.AbortWithError(status, err).SetType(gin.ErrorTypePrivate)
}
