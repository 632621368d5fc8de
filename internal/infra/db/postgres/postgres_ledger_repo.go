package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/ports/repository"
)

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

type ledgerRepo struct{ pool *pgxpool.Pool }

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

func (r *ledgerRepo) Balance(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	const q = `SELECT credits FROM user_credits WHERE telegram_user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, err
	}
	var credits int
	if err := row.Scan(&credits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return credits, nil
}

// EnsureAccount inserts with ON CONFLICT DO NOTHING, then reads in a separate
// statement so a row committed by a concurrent caller is visible.
func (r *ledgerRepo) EnsureAccount(ctx context.Context, tx repository.Tx, userID int64, grant int) (int, bool, error) {
	const ins = `
INSERT INTO user_credits (telegram_user_id, credits)
VALUES ($1, $2)
ON CONFLICT (telegram_user_id) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, ins, userID, grant)
	if err != nil {
		return 0, false, mapErr(err)
	}
	created := tag.RowsAffected() == 1

	balance, err := r.Balance(ctx, tx, userID)
	if err != nil {
		return 0, created, err
	}
	return balance, created, nil
}

func (r *ledgerRepo) Add(ctx context.Context, tx repository.Tx, userID int64, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO user_credits (telegram_user_id, credits)
VALUES ($1, $2)
ON CONFLICT (telegram_user_id) DO UPDATE
SET credits = user_credits.credits + EXCLUDED.credits,
    updated_at = NOW()
RETURNING credits;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, amount)
	if err != nil {
		return 0, err
	}
	var credits int
	if err := row.Scan(&credits); err != nil {
		return 0, domain.ErrOperationFailed
	}
	return credits, nil
}

func (r *ledgerRepo) DebitOne(ctx context.Context, tx repository.Tx, userID int64) (int, bool, error) {
	const q = `
UPDATE user_credits
SET credits = credits - 1,
    updated_at = NOW()
WHERE telegram_user_id = $1 AND credits > 0
RETURNING credits;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, false, err
	}
	var credits int
	if err := row.Scan(&credits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, domain.ErrOperationFailed
	}
	return credits, true, nil
}
