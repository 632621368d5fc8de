// File: internal/usecase/referral_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/repository"
	"telegram-credit-miniapp/internal/infra/logging"
	"telegram-credit-miniapp/internal/infra/metrics"
)

// Compile-time check
var _ ReferralUseCase = (*referralUC)(nil)

type ReferralUseCase interface {
	// Apply records inviteeID as invited by the user named in startParam ("ref_<id>")
	// and rewards the inviter. It reports whether a new referral was recorded.
	// Malformed parameters, self-referrals and already invited users are no-ops.
	Apply(ctx context.Context, inviteeID int64, startParam string) (bool, error)
}

type referralUC struct {
	referrals repository.ReferralRepository
	ledger    repository.LedgerRepository
	tm        repository.TransactionManager
	bonus     int

	log *zerolog.Logger
}

func NewReferralUseCase(referrals repository.ReferralRepository, ledger repository.LedgerRepository, tm repository.TransactionManager, bonus int, logger *zerolog.Logger) *referralUC {
	if bonus <= 0 {
		bonus = 1
	}
	return &referralUC{referrals: referrals, ledger: ledger, tm: tm, bonus: bonus, log: logger}
}

func (u *referralUC) Apply(ctx context.Context, inviteeID int64, startParam string) (bool, error) {
	inviterID, ok := model.ParseReferralParam(startParam)
	if !ok || inviteeID <= 0 || inviterID == inviteeID {
		return false, nil
	}

	// Mini App reloads repeat the start param; skip the write for known invitees.
	switch existing, err := u.referrals.FindByInvitee(ctx, repository.NoTX, inviteeID); {
	case err == nil:
		logging.With(ctx, u.log).Debug().
			Int64("invitee_id", inviteeID).
			Int64("inviter_id", existing.InviterID).
			Msg("invitee already referred")
		return false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return false, fmt.Errorf("find referral: %w", err)
	}

	var (
		recorded bool
		balance  int
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		inserted, err := u.referrals.Insert(ctx, tx, &model.Referral{
			InviterID: inviterID,
			InviteeID: inviteeID,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("insert referral: %w", err)
		}
		if !inserted {
			return nil
		}
		balance, err = u.ledger.Add(ctx, tx, inviterID, u.bonus)
		if err != nil {
			return fmt.Errorf("reward inviter: %w", err)
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, err
	}

	l := logging.With(ctx, u.log)
	if !recorded {
		l.Debug().Int64("invitee_id", inviteeID).Int64("inviter_id", inviterID).Msg("referral already recorded")
		return false, nil
	}
	metrics.AddCreditsGranted(string(model.CreditReasonReferral), u.bonus)
	l.Info().
		Str("event", "referral_reward").
		Int64("inviter_id", inviterID).
		Int64("invitee_id", inviteeID).
		Int("delta", u.bonus).
		Int("balance", balance).
		Msg("referral recorded")
	return true, nil
}
