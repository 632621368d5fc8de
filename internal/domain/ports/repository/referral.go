package repository

import (
	"context"

	"telegram-credit-miniapp/internal/domain/model"
)

type ReferralRepository interface {
	// Insert stores the referral unless the invitee already has one; inserted reports which.
	Insert(ctx context.Context, tx Tx, r *model.Referral) (inserted bool, err error)
	FindByInvitee(ctx context.Context, tx Tx, inviteeID int64) (*model.Referral, error)
}
