//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/repository"
	"telegram-credit-miniapp/internal/usecase"
)

func TestStatsUseCase(t *testing.T) {
	ctx := context.Background()
	repo := NewMockPaymentRepo()
	for _, ref := range []string{"a", "b", "c"} {
		_ = repo.InsertCompleted(ctx, repository.NoTX, &model.PaymentRecord{PaymentRef: ref, UserID: 1})
	}
	_ = repo.MarkFailed(ctx, repository.NoTX, "c", "db down")
	uc := usecase.NewStatsUseCase(repo, newTestLogger())

	t.Run("should count by status", func(t *testing.T) {
		completed, failed, err := uc.PaymentCounts(ctx)
		if err != nil || completed != 2 || failed != 1 {
			t.Fatalf("expected 2/1, got %d/%d (%v)", completed, failed, err)
		}
	})

	t.Run("should list failed payments", func(t *testing.T) {
		recs, err := uc.FailedPayments(ctx, 0)
		if err != nil || len(recs) != 1 || recs[0].PaymentRef != "c" {
			t.Fatalf("expected the failed record, got %v (%v)", recs, err)
		}
	})

	t.Run("should look up by reference", func(t *testing.T) {
		if _, err := uc.Payment(ctx, "zzz"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
