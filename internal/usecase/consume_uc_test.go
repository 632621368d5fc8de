//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telegram-credit-miniapp/internal/config"
	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/adapter"
	"telegram-credit-miniapp/internal/domain/ports/repository"
	"telegram-credit-miniapp/internal/usecase"
)

func newLedgerConsume(t *testing.T, repo *MockLedgerRepo, compute *MockCompute, timeout time.Duration) usecase.ConsumeUseCase {
	t.Helper()
	ledger := usecase.NewLedgerUseCase(repo, model.DefaultWelcomeCredits, newTestLogger())
	uc, err := usecase.NewConsumeUseCase(config.ComputeModeLedger, ledger, compute, timeout, newTestLogger())
	if err != nil {
		t.Fatalf("building consume use case: %v", err)
	}
	return uc
}

func TestConsumeUseCase_Ledger(t *testing.T) {
	ctx := context.Background()
	req := usecase.ConsumeRequest{CompositeImageBase64: "aGVsbG8=", Prompt: "make it blue"}

	t.Run("should debit one credit and forward the job", func(t *testing.T) {
		// --- Arrange ---
		repo := NewMockLedgerRepo()
		repo.set(42, 2)
		compute := &MockCompute{}
		uc := newLedgerConsume(t, repo, compute, time.Second)

		// --- Act ---
		res, err := uc.Consume(ctx, 42, req)

		// --- Assert ---
		if err != nil || !res.Charged {
			t.Fatalf("expected a charged job, got %+v (%v)", res, err)
		}
		if bal, _ := repo.get(42); bal != 1 {
			t.Errorf("expected balance 1, got %d", bal)
		}
		if compute.calls[0].ChatID != "42" {
			t.Errorf("expected chat id to default to the user id, got %q", compute.calls[0].ChatID)
		}
	})

	t.Run("should give a new user the welcome grant before debiting", func(t *testing.T) {
		repo := NewMockLedgerRepo()
		uc := newLedgerConsume(t, repo, &MockCompute{}, time.Second)

		if _, err := uc.Consume(ctx, 1, req); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if bal, _ := repo.get(1); bal != 2 {
			t.Errorf("expected 3-1=2, got %d", bal)
		}
	})

	t.Run("should not call compute without credits", func(t *testing.T) {
		repo := NewMockLedgerRepo()
		repo.set(42, 0)
		compute := &MockCompute{}
		uc := newLedgerConsume(t, repo, compute, time.Second)

		_, err := uc.Consume(ctx, 42, req)

		if !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Fatalf("expected ErrInsufficientCredits, got %v", err)
		}
		if compute.callCount() != 0 {
			t.Error("compute must not be called with zero balance")
		}
	})

	t.Run("should refund on upstream failure", func(t *testing.T) {
		repo := NewMockLedgerRepo()
		repo.set(42, 1)
		compute := &MockCompute{SubmitFunc: func(ctx context.Context, r adapter.ComputeRequest) error {
			return domain.ErrUpstreamFailure
		}}
		uc := newLedgerConsume(t, repo, compute, time.Second)

		_, err := uc.Consume(ctx, 42, req)

		if !errors.Is(err, domain.ErrUpstreamFailure) {
			t.Fatalf("expected ErrUpstreamFailure, got %v", err)
		}
		if bal, _ := repo.get(42); bal != 1 {
			t.Errorf("expected the credit back, got %d", bal)
		}
	})

	t.Run("should refund on timeout", func(t *testing.T) {
		// --- Arrange ---
		repo := NewMockLedgerRepo()
		repo.set(42, 1)
		compute := &MockCompute{SubmitFunc: blockUntilDone}
		uc := newLedgerConsume(t, repo, compute, 20*time.Millisecond)

		// --- Act ---
		_, err := uc.Consume(ctx, 42, req)

		// --- Assert ---
		if !errors.Is(err, domain.ErrUpstreamTimeout) {
			t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
		}
		if bal, _ := repo.get(42); bal != 1 {
			t.Errorf("expected the credit back, got %d", bal)
		}
	})

	t.Run("should keep going when the client disconnects", func(t *testing.T) {
		repo := NewMockLedgerRepo()
		repo.set(42, 1)
		compute := &MockCompute{SubmitFunc: func(ctx context.Context, r adapter.ComputeRequest) error {
			return ctx.Err()
		}}
		uc := newLedgerConsume(t, repo, compute, time.Second)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := uc.Consume(cctx, 42, req); err != nil {
			t.Fatalf("compute must not see the client cancellation, got %v", err)
		}
	})

	t.Run("should report an unconfigured webhook before debiting", func(t *testing.T) {
		repo := NewMockLedgerRepo()
		repo.set(42, 1)
		uc := newLedgerConsume(t, repo, &MockCompute{NotConfigured: true}, time.Second)

		if _, err := uc.Consume(ctx, 42, req); !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
		if bal, _ := repo.get(42); bal != 1 {
			t.Errorf("balance must be untouched, got %d", bal)
		}
	})

	t.Run("should surface a lost refund without panicking", func(t *testing.T) {
		repo := NewMockLedgerRepo()
		repo.set(42, 1)
		repo.AddFunc = func(ctx context.Context, tx repository.Tx, userID int64, amount int) (int, error) {
			return 0, domain.ErrOperationFailed
		}
		compute := &MockCompute{SubmitFunc: func(ctx context.Context, r adapter.ComputeRequest) error {
			return domain.ErrUpstreamFailure
		}}
		uc := newLedgerConsume(t, repo, compute, time.Second)

		if _, err := uc.Consume(ctx, 42, req); !errors.Is(err, domain.ErrUpstreamFailure) {
			t.Fatalf("expected the upstream error, got %v", err)
		}
	})

	t.Run("should never go negative under concurrency", func(t *testing.T) {
		// --- Arrange ---
		const balance, callers = 3, 15
		repo := NewMockLedgerRepo()
		repo.set(9, balance)
		compute := &MockCompute{}
		uc := newLedgerConsume(t, repo, compute, time.Second)

		// --- Act ---
		var (
			wg                sync.WaitGroup
			mu                sync.Mutex
			accepted, refused int
			unexpected        []error
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := uc.Consume(ctx, 9, req)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					accepted++
				case errors.Is(err, domain.ErrInsufficientCredits):
					refused++
				default:
					unexpected = append(unexpected, err)
				}
			}()
		}
		wg.Wait()

		// --- Assert ---
		if len(unexpected) != 0 {
			t.Fatalf("unexpected errors: %v", unexpected)
		}
		if accepted != balance || refused != callers-balance {
			t.Errorf("expected %d accepted and %d insufficient_credits, got %d and %d", balance, callers-balance, accepted, refused)
		}
		if compute.callCount() != balance {
			t.Errorf("expected %d forwarded jobs, got %d", balance, compute.callCount())
		}
		if bal, _ := repo.get(9); bal != 0 {
			t.Errorf("expected 0, got %d", bal)
		}
	})
}

func TestConsumeUseCase_Passthrough(t *testing.T) {
	ctx := context.Background()

	t.Run("should forward without touching the ledger", func(t *testing.T) {
		compute := &MockCompute{}
		uc, err := usecase.NewConsumeUseCase(config.ComputeModePassthrough, nil, compute, time.Second, newTestLogger())
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}

		res, err := uc.Consume(ctx, 42, usecase.ConsumeRequest{Prompt: "abc", ChatID: "100"})
		if err != nil || res.Charged {
			t.Fatalf("expected an uncharged job, got %+v (%v)", res, err)
		}
		if compute.calls[0].ChatID != "100" {
			t.Errorf("expected explicit chat id, got %q", compute.calls[0].ChatID)
		}
	})

	t.Run("should map upstream errors", func(t *testing.T) {
		compute := &MockCompute{SubmitFunc: blockUntilDone}
		uc, _ := usecase.NewConsumeUseCase(config.ComputeModePassthrough, nil, compute, 10*time.Millisecond, newTestLogger())

		if _, err := uc.Consume(ctx, 42, usecase.ConsumeRequest{Prompt: "abc"}); !errors.Is(err, domain.ErrUpstreamTimeout) {
			t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
		}
	})

	t.Run("should refuse unknown modes", func(t *testing.T) {
		if _, err := usecase.NewConsumeUseCase("free", nil, &MockCompute{}, time.Second, newTestLogger()); !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
	})
}
