package usecase

import (
	"context"

	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

const maxFailedPaymentsPage = 200

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// StatsUseCase is the read side used by the admin API and the failed-payment reporter.
type StatsUseCase interface {
	PaymentCounts(ctx context.Context) (completed int, failed int, err error)
	FailedPayments(ctx context.Context, limit int) ([]*model.PaymentRecord, error)
	Payment(ctx context.Context, ref string) (*model.PaymentRecord, error)
}

type statsUC struct {
	payments repository.PaymentRepository

	log *zerolog.Logger
}

func NewStatsUseCase(payments repository.PaymentRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{payments: payments, log: logger}
}

func (s *statsUC) PaymentCounts(ctx context.Context) (int, int, error) {
	completed, err := s.payments.CountByStatus(ctx, repository.NoTX, model.PaymentStatusCompleted)
	if err != nil {
		return 0, 0, err
	}
	failed, err := s.payments.CountByStatus(ctx, repository.NoTX, model.PaymentStatusFailed)
	if err != nil {
		return 0, 0, err
	}
	return completed, failed, nil
}

func (s *statsUC) FailedPayments(ctx context.Context, limit int) ([]*model.PaymentRecord, error) {
	if limit <= 0 || limit > maxFailedPaymentsPage {
		limit = maxFailedPaymentsPage
	}
	return s.payments.ListByStatus(ctx, repository.NoTX, model.PaymentStatusFailed, limit)
}

func (s *statsUC) Payment(ctx context.Context, ref string) (*model.PaymentRecord, error) {
	return s.payments.FindByRef(ctx, repository.NoTX, ref)
}
