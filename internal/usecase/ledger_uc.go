// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/repository"
	"telegram-credit-miniapp/internal/infra/logging"
	"telegram-credit-miniapp/internal/infra/metrics"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

type LedgerUseCase interface {
	// Balance returns 0 for unknown users without creating an account.
	Balance(ctx context.Context, userID int64) (int, error)
	// EnsureWelcome creates the account with the welcome grant on first sight.
	EnsureWelcome(ctx context.Context, userID int64) (int, error)
	Add(ctx context.Context, userID int64, amount int, reason model.CreditReason) (int, error)
	// ConsumeOne debits one credit; false means the balance was already zero.
	ConsumeOne(ctx context.Context, userID int64) (bool, error)
}

type ledgerUC struct {
	repo    repository.LedgerRepository
	welcome int

	log *zerolog.Logger
}

func NewLedgerUseCase(repo repository.LedgerRepository, welcomeCredits int, logger *zerolog.Logger) *ledgerUC {
	if welcomeCredits < 0 {
		welcomeCredits = model.DefaultWelcomeCredits
	}
	return &ledgerUC{repo: repo, welcome: welcomeCredits, log: logger}
}

func (u *ledgerUC) Balance(ctx context.Context, userID int64) (int, error) {
	bal, err := u.repo.Balance(ctx, repository.NoTX, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return bal, nil
}

func (u *ledgerUC) EnsureWelcome(ctx context.Context, userID int64) (int, error) {
	bal, created, err := u.repo.EnsureAccount(ctx, repository.NoTX, userID, u.welcome)
	if err != nil {
		return 0, fmt.Errorf("ensure account: %w", err)
	}
	if created {
		metrics.AddCreditsGranted(string(model.CreditReasonWelcome), u.welcome)
		logging.With(ctx, u.log).Info().
			Str("event", "credit_change").
			Int64("user_id", userID).
			Str("reason", string(model.CreditReasonWelcome)).
			Int("delta", u.welcome).
			Int("balance", bal).
			Msg("account created")
	}
	return bal, nil
}

func (u *ledgerUC) Add(ctx context.Context, userID int64, amount int, reason model.CreditReason) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive", domain.ErrInvalidArgument)
	}
	bal, err := u.repo.Add(ctx, repository.NoTX, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}
	metrics.AddCreditsGranted(string(reason), amount)
	logging.With(ctx, u.log).Info().
		Str("event", "credit_change").
		Int64("user_id", userID).
		Str("reason", string(reason)).
		Int("delta", amount).
		Int("balance", bal).
		Msg("credits added")
	return bal, nil
}

func (u *ledgerUC) ConsumeOne(ctx context.Context, userID int64) (bool, error) {
	bal, ok, err := u.repo.DebitOne(ctx, repository.NoTX, userID)
	if err != nil {
		return false, fmt.Errorf("debit credit: %w", err)
	}
	if !ok {
		metrics.IncConsumeRejected()
		return false, nil
	}
	metrics.IncCreditConsumed()
	logging.With(ctx, u.log).Info().
		Str("event", "credit_change").
		Int64("user_id", userID).
		Str("reason", "consume").
		Int("delta", -1).
		Int("balance", bal).
		Msg("credit consumed")
	return true, nil
}
