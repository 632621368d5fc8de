package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/repository"
)

var _ repository.ReferralRepository = (*referralRepo)(nil)

type referralRepo struct{ pool *pgxpool.Pool }

func NewReferralRepo(pool *pgxpool.Pool) *referralRepo {
	return &referralRepo{pool: pool}
}

func (r *referralRepo) Insert(ctx context.Context, tx repository.Tx, ref *model.Referral) (bool, error) {
	if ref == nil || ref.InviterID <= 0 || ref.InviteeID <= 0 || ref.InviterID == ref.InviteeID {
		return false, domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO referrals (invitee_id, inviter_id)
VALUES ($1, $2)
ON CONFLICT (invitee_id) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q, ref.InviteeID, ref.InviterID)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *referralRepo) FindByInvitee(ctx context.Context, tx repository.Tx, inviteeID int64) (*model.Referral, error) {
	const q = `SELECT inviter_id, invitee_id, created_at FROM referrals WHERE invitee_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, inviteeID)
	if err != nil {
		return nil, err
	}
	var ref model.Referral
	if err := row.Scan(&ref.InviterID, &ref.InviteeID, &ref.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &ref, nil
}
