package pgrepo

import (
	"context"
	"time"

	"github.com/fsdevblog/groph-payout/internal/domain"
	"github.com/fsdevblog/groph-payout/internal/repository/repoargs"
	"github.com/fsdevblog/groph-payout/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, created_at, updated_at, user_id, currency, amount, destination, status,
	external_payout_id, failure_reason, commit_attempts, reconcile_required, next_attempt_at`

type WithdrawalRepository struct {
	conn uow.DBTX
}

func NewWithdrawalRepository(conn uow.DBTX) *WithdrawalRepository {
	return &WithdrawalRepository{conn: conn}
}

func (w *WithdrawalRepository) Create(ctx context.Context, create repoargs.WithdrawalCreate) (*domain.Withdrawal, error) {
	row := w.conn.QueryRow(ctx,
		`INSERT INTO withdrawals (id, user_id, currency, amount, destination, status, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+withdrawalColumns,
		create.ID,
		create.UserID,
		create.Currency,
		create.Amount,
		create.Destination,
		string(create.Status),
		nullIfEmpty(string(create.FailureReason)),
	)
	withdrawal, err := scanWithdrawal(row)
	if err != nil {
		return nil, convertErr(err, "creating withdrawal %s", create.ID)
	}
	return withdrawal, nil
}

func (w *WithdrawalRepository) FindByID(ctx context.Context, id string) (*domain.Withdrawal, error) {
	row := w.conn.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)
	withdrawal, err := scanWithdrawal(row)
	if err != nil {
		return nil, convertErr(err, "finding withdrawal %s", id)
	}
	return withdrawal, nil
}

func (w *WithdrawalRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Withdrawal, error) {
	rows, err := w.conn.Query(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, convertErr(err, "getting withdrawals for user %d", userID)
	}
	return collectWithdrawals(rows, "getting withdrawals for user")
}

// UpdateStatus меняет статус, только если текущий статус равен update.From. Если статус уже изменен
// конкурентным процессом, возвращает ErrRecordNotFound.
func (w *WithdrawalRepository) UpdateStatus(
	ctx context.Context,
	update repoargs.WithdrawalStatusUpdate,
) (*domain.Withdrawal, error) {
	row := w.conn.QueryRow(ctx,
		`UPDATE withdrawals
		SET status = $3, failure_reason = COALESCE($4, failure_reason), updated_at = clock_timestamp()
		WHERE id = $1 AND status = $2
		RETURNING `+withdrawalColumns,
		update.ID,
		string(update.From),
		string(update.To),
		nullIfEmpty(string(update.FailureReason)),
	)
	withdrawal, err := scanWithdrawal(row)
	if err != nil {
		return nil, convertErr(err, "updating withdrawal %s status %s -> %s", update.ID, update.From, update.To)
	}
	return withdrawal, nil
}

// SetExternalPayoutID запоминает идентификатор выплаты. Уже записанный идентификатор не перезаписывается,
// возвращается актуальное состояние.
func (w *WithdrawalRepository) SetExternalPayoutID(
	ctx context.Context,
	id string,
	payoutID string,
) (*domain.Withdrawal, error) {
	row := w.conn.QueryRow(ctx,
		`UPDATE withdrawals
		SET external_payout_id = COALESCE(external_payout_id, $2), updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING `+withdrawalColumns,
		id, payoutID,
	)
	withdrawal, err := scanWithdrawal(row)
	if err != nil {
		return nil, convertErr(err, "setting external payout id for withdrawal %s", id)
	}
	return withdrawal, nil
}

// RegisterCommitFailure увеличивает счетчик неудачных подтверждений и откладывает следующую попытку.
func (w *WithdrawalRepository) RegisterCommitFailure(
	ctx context.Context,
	failure repoargs.WithdrawalCommitFailure,
) (*domain.Withdrawal, error) {
	row := w.conn.QueryRow(ctx,
		`UPDATE withdrawals
		SET commit_attempts = commit_attempts + 1,
			reconcile_required = reconcile_required OR $3,
			next_attempt_at = $2,
			updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING `+withdrawalColumns,
		failure.ID, failure.RetryAt, failure.ReconcileRequired,
	)
	withdrawal, err := scanWithdrawal(row)
	if err != nil {
		return nil, convertErr(err, "registering commit failure for withdrawal %s", failure.ID)
	}
	return withdrawal, nil
}

// ClaimForProcessing выбирает до limit незавершенных выводов, у которых подошло время следующей попытки,
// и сдвигает им next_attempt_at на lease. Строки, заблокированные другими экземплярами, пропускаются.
func (w *WithdrawalRepository) ClaimForProcessing(
	ctx context.Context,
	limit uint,
	lease time.Duration,
) ([]domain.Withdrawal, error) {
	safeLimit, safeLimitErr := safeConvertUintToInt32(limit)
	if safeLimitErr != nil {
		return nil, convertErr(safeLimitErr, "converting limit to int32")
	}

	rows, err := w.conn.Query(ctx,
		`UPDATE withdrawals
		SET next_attempt_at = clock_timestamp() + make_interval(secs => $2)
		WHERE id IN (
			SELECT id FROM withdrawals
			WHERE status IN ('PENDING', 'PROCESSING')
				AND reconcile_required = FALSE
				AND next_attempt_at <= clock_timestamp()
			ORDER BY next_attempt_at, created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+withdrawalColumns,
		safeLimit, lease.Seconds(),
	)
	if err != nil {
		return nil, convertErr(err, "claiming withdrawals for processing")
	}
	return collectWithdrawals(rows, "claiming withdrawals for processing")
}

func collectWithdrawals(rows pgx.Rows, msg string) ([]domain.Withdrawal, error) {
	defer rows.Close()

	var withdrawals = make([]domain.Withdrawal, 0)
	for rows.Next() {
		withdrawal, err := scanWithdrawal(rows)
		if err != nil {
			return nil, convertErr(err, "%s", msg)
		}
		withdrawals = append(withdrawals, *withdrawal)
	}
	if err := rows.Err(); err != nil {
		return nil, convertErr(err, "%s", msg)
	}
	return withdrawals, nil
}

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var (
		wd               domain.Withdrawal
		status           string
		externalPayoutID *string
		failureReason    *string
		commitAttempts   int32
	)
	if err := row.Scan(
		&wd.ID,
		&wd.CreatedAt,
		&wd.UpdatedAt,
		&wd.UserID,
		&wd.Currency,
		&wd.Amount,
		&wd.Destination,
		&status,
		&externalPayoutID,
		&failureReason,
		&commitAttempts,
		&wd.ReconcileRequired,
		&wd.NextAttemptAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	wd.Status = domain.WithdrawalStatus(status)
	wd.ExternalPayoutID = stringOrEmpty(externalPayoutID)
	wd.FailureReason = domain.FailureReason(stringOrEmpty(failureReason))
	if commitAttempts > 0 {
		wd.CommitAttempts = uint(commitAttempts)
	}
	return &wd, nil
}
