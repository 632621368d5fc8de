//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"

	"github.com/oklog/ulid/v2"
)

func newRecord(ref string) *model.PaymentRecord {
	return &model.PaymentRecord{
		ID:           ulid.Make().String(),
		UserID:       123456789,
		XTRAmount:    50,
		CreditsAdded: 12,
		PaidAt:       time.Now().UTC().Truncate(time.Millisecond),
		PaymentRef:   ref,
		SKU:          "pack12",
		Payload:      json.RawMessage(`{"currency":"XTR","total_amount":50}`),
	}
}

func TestPaymentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewPaymentRepo(testPool)

	t.Run("should insert and find a completed payment", func(t *testing.T) {
		cleanup(t)
		rec := newRecord("ch_1")
		if err := repo.InsertCompleted(ctx, nil, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
		exists, err := repo.Exists(ctx, nil, "ch_1")
		if err != nil || !exists {
			t.Fatalf("expected ch_1 to exist, got %v %v", exists, err)
		}
		got, err := repo.FindByRef(ctx, nil, "ch_1")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Status != model.PaymentStatusCompleted || got.CreditsAdded != 12 || got.UserID != 123456789 {
			t.Errorf("unexpected record %+v", got)
		}
		if len(got.Payload) == 0 {
			t.Error("expected the raw payload to be stored")
		}
	})

	t.Run("should report a duplicate reference", func(t *testing.T) {
		cleanup(t)
		if err := repo.InsertCompleted(ctx, nil, newRecord("ch_dup")); err != nil {
			t.Fatalf("first insert: %v", err)
		}
		if err := repo.InsertCompleted(ctx, nil, newRecord("ch_dup")); !errors.Is(err, domain.ErrDuplicatePayment) {
			t.Fatalf("expected ErrDuplicatePayment, got %v", err)
		}
	})

	t.Run("should let exactly one concurrent insert win", func(t *testing.T) {
		cleanup(t)
		var wg sync.WaitGroup
		results := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- repo.InsertCompleted(ctx, nil, newRecord("ch_race"))
			}()
		}
		wg.Wait()
		close(results)

		wins := 0
		for err := range results {
			switch {
			case err == nil:
				wins++
			case !errors.Is(err, domain.ErrDuplicatePayment):
				t.Errorf("unexpected error %v", err)
			}
		}
		if wins != 1 {
			t.Fatalf("expected one winner, got %d", wins)
		}
	})

	t.Run("should mark failed and list it", func(t *testing.T) {
		cleanup(t)
		repo.InsertCompleted(ctx, nil, newRecord("ch_fail"))
		repo.InsertCompleted(ctx, nil, newRecord("ch_ok"))

		if err := repo.MarkFailed(ctx, nil, "ch_fail", "ledger unavailable"); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		if err := repo.MarkFailed(ctx, nil, "missing", "x"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown ref, got %v", err)
		}

		failed, err := repo.ListByStatus(ctx, nil, model.PaymentStatusFailed, 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(failed) != 1 || failed[0].PaymentRef != "ch_fail" {
			t.Fatalf("unexpected failed list %+v", failed)
		}
		if failed[0].Error == nil || *failed[0].Error != "ledger unavailable" {
			t.Errorf("expected error text to be stored, got %v", failed[0].Error)
		}
		n, err := repo.CountByStatus(ctx, nil, model.PaymentStatusCompleted)
		if err != nil || n != 1 {
			t.Errorf("expected 1 completed, got %d (%v)", n, err)
		}
	})
}
