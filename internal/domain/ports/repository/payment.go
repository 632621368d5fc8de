package repository

import (
	"context"

	"telegram-credit-miniapp/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	Exists(ctx context.Context, tx Tx, paymentRef string) (bool, error)
	// InsertCompleted returns domain.ErrDuplicatePayment when paymentRef is already stored.
	InsertCompleted(ctx context.Context, tx Tx, rec *model.PaymentRecord) error
	MarkFailed(ctx context.Context, tx Tx, paymentRef, reason string) error
	FindByRef(ctx context.Context, tx Tx, paymentRef string) (*model.PaymentRecord, error)
	ListByStatus(ctx context.Context, tx Tx, status model.PaymentStatus, limit int) ([]*model.PaymentRecord, error)
	CountByStatus(ctx context.Context, tx Tx, status model.PaymentStatus) (int, error)
}
