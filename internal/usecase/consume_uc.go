// File: internal/usecase/consume_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/config"
	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/adapter"
	"telegram-credit-miniapp/internal/infra/logging"
	"telegram-credit-miniapp/internal/infra/metrics"
)

const (
	defaultComputeTimeout = 30 * time.Second
	refundTimeout         = 10 * time.Second
)

// ConsumeRequest is one paid compute job.
type ConsumeRequest struct {
	CompositeImageBase64 string
	Prompt               string
	ChatID               string // defaults to the user id
}

// ConsumeResult describes a forwarded job.
type ConsumeResult struct {
	Charged bool // false in passthrough mode
}

type ConsumeUseCase interface {
	Consume(ctx context.Context, userID int64, req ConsumeRequest) (*ConsumeResult, error)
}

// NewConsumeUseCase picks the strategy for mode (config.ComputeModeLedger or
// config.ComputeModePassthrough). ledger may be nil in passthrough mode.
func NewConsumeUseCase(mode string, ledger LedgerUseCase, compute adapter.ComputeWebhook, timeout time.Duration, logger *zerolog.Logger) (ConsumeUseCase, error) {
	if timeout <= 0 {
		timeout = defaultComputeTimeout
	}
	switch mode {
	case "", config.ComputeModeLedger:
		if ledger == nil {
			return nil, fmt.Errorf("%w: ledger mode needs a ledger", domain.ErrConfiguration)
		}
		return &ledgerConsumeUC{ledger: ledger, compute: compute, timeout: timeout, log: logger}, nil
	case config.ComputeModePassthrough:
		return &passthroughConsumeUC{compute: compute, timeout: timeout, log: logger}, nil
	default:
		return nil, fmt.Errorf("%w: unknown compute mode %q", domain.ErrConfiguration, mode)
	}
}

// ledgerConsumeUC charges one credit per job and refunds it when the compute call fails.
type ledgerConsumeUC struct {
	ledger  LedgerUseCase
	compute adapter.ComputeWebhook
	timeout time.Duration

	log *zerolog.Logger
}

func (u *ledgerConsumeUC) Consume(ctx context.Context, userID int64, req ConsumeRequest) (*ConsumeResult, error) {
	if !u.compute.Configured() {
		return nil, fmt.Errorf("%w: compute webhook url not set", domain.ErrConfiguration)
	}
	if _, err := u.ledger.EnsureWelcome(ctx, userID); err != nil {
		return nil, err
	}
	ok, err := u.ledger.ConsumeOne(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInsufficientCredits
	}

	// The credit is spent; from here on the outcome must not depend on the client connection.
	detached := context.WithoutCancel(ctx)
	callErr := submit(detached, u.compute, u.timeout, userID, req)
	if callErr == nil {
		return &ConsumeResult{Charged: true}, nil
	}

	l := logging.With(ctx, u.log)
	refundCtx, cancel := context.WithTimeout(detached, refundTimeout)
	defer cancel()
	if bal, err := u.ledger.Add(refundCtx, userID, 1, model.CreditReasonRefund); err != nil {
		metrics.IncRefundFailure()
		l.Error().Err(err).Int64("user_id", userID).AnErr("cause", callErr).Msg("refund failed, credit lost")
	} else {
		l.Info().
			Str("event", "consume_refunded").
			Int64("user_id", userID).
			Int("balance", bal).
			AnErr("cause", callErr).
			Msg("credit refunded")
	}
	return nil, callErr
}

// passthroughConsumeUC forwards jobs without touching the ledger.
type passthroughConsumeUC struct {
	compute adapter.ComputeWebhook
	timeout time.Duration

	log *zerolog.Logger
}

func (u *passthroughConsumeUC) Consume(ctx context.Context, userID int64, req ConsumeRequest) (*ConsumeResult, error) {
	if !u.compute.Configured() {
		return nil, fmt.Errorf("%w: compute webhook url not set", domain.ErrConfiguration)
	}
	if err := submit(context.WithoutCancel(ctx), u.compute, u.timeout, userID, req); err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Int64("user_id", userID).Msg("passthrough compute failed")
		return nil, err
	}
	return &ConsumeResult{Charged: false}, nil
}

// submit calls the compute webhook under its own deadline and normalizes the error
// to ErrUpstreamTimeout or ErrUpstreamFailure.
func submit(ctx context.Context, compute adapter.ComputeWebhook, timeout time.Duration, userID int64, req ConsumeRequest) error {
	chatID := req.ChatID
	if chatID == "" {
		chatID = strconv.FormatInt(userID, 10)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := compute.Submit(callCtx, adapter.ComputeRequest{
		CompositeImageBase64: req.CompositeImageBase64,
		Prompt:               req.Prompt,
		ChatID:               chatID,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrUpstreamTimeout), errors.Is(err, domain.ErrUpstreamFailure):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrUpstreamTimeout
	default:
		return fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}
}
