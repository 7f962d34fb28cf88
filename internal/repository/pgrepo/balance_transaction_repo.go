package pgrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/repository/repoargs"
	"github.com/fsdevblog/groph-payout/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const balanceTransactionColumns = `id, created_at, user_id, currency, type, amount, reference_id, reference_type,
	balance_before, balance_after, held_before, held_after, description`

type BalanceTransactionRepository struct {
	conn uow.DBTX
}

func NewBalanceTransactionRepository(conn uow.DBTX) *BalanceTransactionRepository {
	return &BalanceTransactionRepository{conn: conn}
}

func (b *BalanceTransactionRepository) Create(
	ctx context.Context,
	transaction repoargs.BalanceTransactionCreate,
) (*domain.BalanceTransaction, error) {
	row := b.conn.QueryRow(ctx,
		`INSERT INTO balance_transactions (user_id, currency, type, amount, reference_id, reference_type,
			balance_before, balance_after, held_before, held_after, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+balanceTransactionColumns,
		transaction.UserID,
		transaction.Currency,
		string(transaction.Type),
		transaction.Amount,
		nullIfEmpty(transaction.ReferenceID),
		string(transaction.ReferenceType),
		transaction.BalanceBefore,
		transaction.BalanceAfter,
		transaction.HeldBefore,
		transaction.HeldAfter,
		transaction.Description,
	)
	created, err := scanBalanceTransaction(row)
	if err != nil {
		return nil, convertErr(err, "creating %s balance transaction for user %d", transaction.Type, transaction.UserID)
	}
	return created, nil
}

// FindByReference возвращает все операции по ссылке (для одной ссылки их не больше, чем типов операций).
func (b *BalanceTransactionRepository) FindByReference(
	ctx context.Context,
	ref repoargs.TransactionReference,
) ([]domain.BalanceTransaction, error) {
	rows, err := b.conn.Query(ctx,
		`SELECT `+balanceTransactionColumns+` FROM balance_transactions
		WHERE user_id = $1 AND currency = $2 AND reference_type = $3 AND reference_id = $4
		ORDER BY created_at, id`,
		ref.UserID, ref.Currency, string(ref.ReferenceType), ref.ReferenceID,
	)
	if err != nil {
		return nil, convertErr(err, "finding balance transactions by reference %s/%s", ref.ReferenceType, ref.ReferenceID)
	}
	return collectBalanceTransactions(rows, "finding balance transactions by reference")
}

// GetByFilter возвращает страницу истории операций от новых к старым.
func (b *BalanceTransactionRepository) GetByFilter(
	ctx context.Context,
	filter repoargs.TransactionFilter,
) ([]domain.BalanceTransaction, error) {
	where, args := transactionFilterCondition(filter)

	limit, limitErr := safeConvertUintToInt32(filter.Limit)
	if limitErr != nil {
		return nil, convertErr(limitErr, "converting limit to int32")
	}
	offset, offsetErr := safeConvertUintToInt32(filter.Offset)
	if offsetErr != nil {
		return nil, convertErr(offsetErr, "converting offset to int32")
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(
		`SELECT %s FROM balance_transactions WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		balanceTransactionColumns, where, len(args)-1, len(args),
	)
	rows, err := b.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, convertErr(err, "getting balance transactions for user %d", filter.UserID)
	}
	return collectBalanceTransactions(rows, "getting balance transactions")
}

func (b *BalanceTransactionRepository) CountByFilter(ctx context.Context, filter repoargs.TransactionFilter) (uint, error) {
	where, args := transactionFilterCondition(filter)

	var count int64
	if err := b.conn.QueryRow(ctx, `SELECT count(*) FROM balance_transactions WHERE `+where, args...).
		Scan(&count); err != nil {
		return 0, convertErr(err, "counting balance transactions for user %d", filter.UserID)
	}
	return uint(count), nil //nolint:gosec
}

// GetForReplay возвращает полный журнал по паре юзер/валюта в порядке применения.
func (b *BalanceTransactionRepository) GetForReplay(
	ctx context.Context,
	userID int64,
	currency string,
) ([]domain.BalanceTransaction, error) {
	rows, err := b.conn.Query(ctx,
		`SELECT `+balanceTransactionColumns+` FROM balance_transactions
		WHERE user_id = $1 AND currency = $2
		ORDER BY created_at, id`,
		userID, currency,
	)
	if err != nil {
		return nil, convertErr(err, "getting balance transactions for replay, user %d in %s", userID, currency)
	}
	return collectBalanceTransactions(rows, "getting balance transactions for replay")
}

// transactionFilterCondition собирает условие WHERE и позиционные аргументы по непустым полям фильтра.
func transactionFilterCondition(filter repoargs.TransactionFilter) (string, []any) {
	conditions := []string{"user_id = $1"}
	args := []any{filter.UserID}

	add := func(condition string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.Currency != "" {
		add("currency = $%d", filter.Currency)
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To)
	}
	return strings.Join(conditions, " AND "), args
}

func collectBalanceTransactions(rows pgx.Rows, msg string) ([]domain.BalanceTransaction, error) {
	defer rows.Close()

	var transactions = make([]domain.BalanceTransaction, 0)
	for rows.Next() {
		transaction, err := scanBalanceTransaction(rows)
		if err != nil {
			return nil, convertErr(err, "%s", msg)
		}
		transactions = append(transactions, *transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, convertErr(err, "%s", msg)
	}
	return transactions, nil
}

func scanBalanceTransaction(row pgx.Row) (*domain.BalanceTransaction, error) {
	var (
		t             domain.BalanceTransaction
		txType        string
		referenceID   *string
		referenceType string
	)
	if err := row.Scan(
		&t.ID,
		&t.CreatedAt,
		&t.UserID,
		&t.Currency,
		&txType,
		&t.Amount,
		&referenceID,
		&referenceType,
		&t.BalanceBefore,
		&t.BalanceAfter,
		&t.HeldBefore,
		&t.HeldAfter,
		&t.Description,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	t.Type = domain.TransactionType(txType)
	t.ReferenceID = stringOrEmpty(referenceID)
	t.ReferenceType = domain.ReferenceType(referenceType)
	return &t, nil
}
