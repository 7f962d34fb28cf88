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

type BalanceHandler struct {
	svs BalanceServicer
}

func NewBalanceHandler(svs BalanceServicer) *BalanceHandler {
	return &BalanceHandler{
		svs: svs,
	}
}

type BalanceResponse struct {
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

func newBalanceResponse(b *domain.Balance) BalanceResponse {
	resp := BalanceResponse{
		Currency:  b.Currency,
		Available: b.Available,
		Held:      b.Held,
	}
	// у нулевого баланса без записи времени изменения нет.
	if !b.UpdatedAt.IsZero() {
		updatedAt := b.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp
}

type BalanceQuery struct {
	Currency string `form:"currency" binding:"omitempty,currency"`
}

// Index GET RouteGroup + BalanceRoute.
func (b *BalanceHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var query BalanceQuery
	if bindErr := c.ShouldBindQuery(&query); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	balances, err := b.svs.GetBalances(reqCtx, currentUserID, query.Currency)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	response := make([]BalanceResponse, len(balances))
	for i := range balances {
		response[i] = newBalanceResponse(&balances[i])
	}
	c.JSON(http.StatusOK, response)
}

type TransactionsQuery struct {
	Currency string    `form:"currency" binding:"omitempty,currency"`
	Type     string    `form:"type"`
	From     time.Time `form:"from"     time_format:"2006-01-02T15:04:05Z07:00"`
	To       time.Time `form:"to"       time_format:"2006-01-02T15:04:05Z07:00"`
	Page     uint      `form:"page"`
	Limit    uint      `form:"limit"`
}

type TransactionResponse struct {
	ID            int64                  `json:"id"`
	Type          domain.TransactionType `json:"type"`
	Currency      string                 `json:"currency"`
	Amount        decimal.Decimal        `json:"amount"`
	ReferenceID   string                 `json:"reference_id,omitempty"`
	ReferenceType domain.ReferenceType   `json:"reference_type,omitempty"`
	BalanceBefore decimal.Decimal        `json:"balance_before"`
	BalanceAfter  decimal.Decimal        `json:"balance_after"`
	HeldBefore    decimal.Decimal        `json:"held_before"`
	HeldAfter     decimal.Decimal        `json:"held_after"`
	Description   string                 `json:"description,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

type TransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Total        uint                  `json:"total"`
	Page         uint                  `json:"page"`
	Limit        uint                  `json:"limit"`
}

// Transactions GET RouteGroup + BalanceTransactionsRoute.
func (b *BalanceHandler) Transactions(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var query TransactionsQuery
	if bindErr := c.ShouldBindQuery(&query); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	page, err := b.svs.GetTransactionHistory(reqCtx, currentUserID, service.HistoryFilter{
		Currency: query.Currency,
		Type:     domain.TransactionType(query.Type),
		From:     query.From,
		To:       query.To,
		Page:     query.Page,
		Limit:    query.Limit,
	})
	if err != nil {
		if isValidationErr(err) {
			_ = c.AbortWithError(http.StatusBadRequest, err).SetType(gin.ErrorTypePrivate)
			return
		}
		abortWithServiceError(c, err)
		return
	}

	response := TransactionsResponse{
		Transactions: make([]TransactionResponse, len(page.Transactions)),
		Total:        page.Total,
		Page:         page.Page,
		Limit:        page.Limit,
	}
	for i, t := range page.Transactions {
		response.Transactions[i] = TransactionResponse{
			ID:            t.ID,
			Type:          t.Type,
			Currency:      t.Currency,
			Amount:        t.Amount,
			ReferenceID:   t.ReferenceID,
			ReferenceType: t.ReferenceType,
			BalanceBefore: t.BalanceBefore,
			BalanceAfter:  t.BalanceAfter,
			HeldBefore:    t.HeldBefore,
			HeldAfter:     t.HeldAfter,
			Description:   t.Description,
			CreatedAt:     t.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, response)
}

type AuditQuery struct {
	Currency string `form:"currency" binding:"required,currency"`
}

type AuditResponse struct {
	Currency     string          `json:"currency"`
	Consistent   bool            `json:"consistent"`
	Transactions int             `json:"transactions"`
	Stored       BalanceResponse `json:"stored"`
	Replayed     BalanceResponse `json:"replayed"`
}

// Audit GET RouteGroup + BalanceAuditRoute. Сверяет баланс с журналом операций.
func (b *BalanceHandler) Audit(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var query AuditQuery
	if bindErr := c.ShouldBindQuery(&query); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	report, err := b.svs.VerifyBalance(reqCtx, currentUserID, query.Currency)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuditResponse{
		Currency:     report.Stored.Currency,
		Consistent:   report.Consistent,
		Transactions: report.Transactions,
		Stored:       newBalanceResponse(report.Stored),
		Replayed:     newBalanceResponse(report.Replayed),
	})
}

// isValidationErr ошибки параметров запроса истории.
func isValidationErr(err error) bool {
	return errors.Is(err, domain.ErrInvalidCurrency) ||
		errors.Is(err, domain.ErrInvalidTransactionType) ||
		errors.Is(err, domain.ErrInvalidFilter)
}
