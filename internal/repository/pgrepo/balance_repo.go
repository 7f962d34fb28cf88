package pgrepo

import (
	"context"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/repository/repoargs"
	"github.com/fsdevblog/groph-payout/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const balanceColumns = `user_id, currency, available, held, updated_at`

type BalanceRepository struct {
	conn uow.DBTX
}

func NewBalanceRepository(conn uow.DBTX) *BalanceRepository {
	return &BalanceRepository{conn: conn}
}

// Get возвращает баланс юзера в валюте currency или ErrRecordNotFound.
func (b *BalanceRepository) Get(ctx context.Context, userID int64, currency string) (*domain.Balance, error) {
	row := b.conn.QueryRow(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE user_id = $1 AND currency = $2`,
		userID, currency,
	)
	balance, err := scanBalance(row)
	if err != nil {
		return nil, convertErr(err, "getting balance for user %d in %s", userID, currency)
	}
	return balance, nil
}

func (b *BalanceRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Balance, error) {
	rows, err := b.conn.Query(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE user_id = $1 ORDER BY currency`,
		userID,
	)
	if err != nil {
		return nil, convertErr(err, "getting balances for user %d", userID)
	}
	defer rows.Close()

	var balances = make([]domain.Balance, 0)
	for rows.Next() {
		balance, scanErr := scanBalance(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning balance for user %d", userID)
		}
		balances = append(balances, *balance)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "getting balances for user %d", userID)
	}
	return balances, nil
}

// LockForUpdate создает нулевой баланс, если его еще нет, и блокирует строку до конца транзакции.
// Вызывать только внутри uow.Do.
func (b *BalanceRepository) LockForUpdate(ctx context.Context, userID int64, currency string) (*domain.Balance, error) {
	// ON CONFLICT DO UPDATE берет ту же блокировку строки, что и SELECT ... FOR UPDATE.
	row := b.conn.QueryRow(ctx,
		`INSERT INTO balances (user_id, currency) VALUES ($1, $2)
		ON CONFLICT (user_id, currency) DO UPDATE SET user_id = excluded.user_id
		RETURNING `+balanceColumns,
		userID, currency,
	)
	balance, err := scanBalance(row)
	if err != nil {
		return nil, convertErr(err, "locking balance for user %d in %s", userID, currency)
	}
	return balance, nil
}

func (b *BalanceRepository) Update(ctx context.Context, update repoargs.BalanceUpdate) (*domain.Balance, error) {
	row := b.conn.QueryRow(ctx,
		`UPDATE balances
		SET available = $3, held = $4, updated_at = GREATEST(updated_at, clock_timestamp())
		WHERE user_id = $1 AND currency = $2
		RETURNING `+balanceColumns,
		update.UserID, update.Currency, update.Available, update.Held,
	)
	balance, err := scanBalance(row)
	if err != nil {
		return nil, convertErr(err, "updating balance for user %d in %s", update.UserID, update.Currency)
	}
	return balance, nil
}

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var balance domain.Balance
	if err := row.Scan(
		&balance.UserID,
		&balance.Currency,
		&balance.Available,
		&balance.Held,
		&balance.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &balance, nil
}
