// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/adapter"
	"telegram-credit-miniapp/internal/domain/ports/repository"
)

// ---- In-memory LedgerRepository ----

type MockLedgerRepo struct {
	mu       sync.Mutex
	balances map[int64]int

	AddFunc    func(ctx context.Context, tx repository.Tx, userID int64, amount int) (int, error)
	EnsureFunc func(ctx context.Context, tx repository.Tx, userID int64, grant int) (int, bool, error)
}

var _ repository.LedgerRepository = (*MockLedgerRepo)(nil)

func NewMockLedgerRepo() *MockLedgerRepo {
	return &MockLedgerRepo{balances: make(map[int64]int)}
}

func (m *MockLedgerRepo) set(userID int64, credits int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = credits
}

func (m *MockLedgerRepo) get(userID int64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.balances[userID]
	return v, ok
}

func (m *MockLedgerRepo) Balance(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	if v, ok := m.get(userID); ok {
		return v, nil
	}
	return 0, domain.ErrNotFound
}

func (m *MockLedgerRepo) EnsureAccount(ctx context.Context, tx repository.Tx, userID int64, grant int) (int, bool, error) {
	if m.EnsureFunc != nil {
		return m.EnsureFunc(ctx, tx, userID, grant)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.balances[userID]; ok {
		return v, false, nil
	}
	m.balances[userID] = grant
	return grant, true, nil
}

func (m *MockLedgerRepo) Add(ctx context.Context, tx repository.Tx, userID int64, amount int) (int, error) {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, tx, userID, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += amount
	return m.balances[userID], nil
}

func (m *MockLedgerRepo) DebitOne(ctx context.Context, tx repository.Tx, userID int64) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.balances[userID]
	if v <= 0 {
		return v, false, nil
	}
	m.balances[userID] = v - 1
	return v - 1, true, nil
}

// ---- In-memory PaymentRepository ----

type MockPaymentRepo struct {
	mu    sync.Mutex
	byRef map[string]*model.PaymentRecord

	ExistsFunc func(ctx context.Context, tx repository.Tx, ref string) (bool, error)
	InsertFunc func(ctx context.Context, tx repository.Tx, rec *model.PaymentRecord) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{byRef: make(map[string]*model.PaymentRecord)}
}

func (m *MockPaymentRepo) Exists(ctx context.Context, tx repository.Tx, ref string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, tx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byRef[ref]
	return ok, nil
}

func (m *MockPaymentRepo) InsertCompleted(ctx context.Context, tx repository.Tx, rec *model.PaymentRecord) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byRef[rec.PaymentRef]; ok {
		return domain.ErrDuplicatePayment
	}
	cp := *rec
	cp.Status = model.PaymentStatusCompleted
	m.byRef[rec.PaymentRef] = &cp
	return nil
}

func (m *MockPaymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, ref, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byRef[ref]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = model.PaymentStatusFailed
	rec.Error = &reason
	return nil
}

func (m *MockPaymentRepo) FindByRef(ctx context.Context, tx repository.Tx, ref string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byRef[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockPaymentRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.PaymentStatus, limit int) ([]*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentRecord
	for _, rec := range m.byRef {
		if rec.Status == status && len(out) < limit {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPaymentRepo) CountByStatus(ctx context.Context, tx repository.Tx, status model.PaymentStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.byRef {
		if rec.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *MockPaymentRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byRef)
}

// ---- In-memory ReferralRepository ----

type MockReferralRepo struct {
	mu        sync.Mutex
	byInvitee map[int64]*model.Referral

	FindByInviteeFunc func(ctx context.Context, tx repository.Tx, inviteeID int64) (*model.Referral, error)
}

var _ repository.ReferralRepository = (*MockReferralRepo)(nil)

func NewMockReferralRepo() *MockReferralRepo {
	return &MockReferralRepo{byInvitee: make(map[int64]*model.Referral)}
}

func (m *MockReferralRepo) Insert(ctx context.Context, tx repository.Tx, r *model.Referral) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byInvitee[r.InviteeID]; ok {
		return false, nil
	}
	cp := *r
	m.byInvitee[r.InviteeID] = &cp
	return true, nil
}

func (m *MockReferralRepo) FindByInvitee(ctx context.Context, tx repository.Tx, inviteeID int64) (*model.Referral, error) {
	if m.FindByInviteeFunc != nil {
		return m.FindByInviteeFunc(ctx, tx, inviteeID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byInvitee[inviteeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ---- Transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Payment provider ----

type MockPaymentProvider struct {
	mu       sync.Mutex
	invoices []adapter.InvoiceRequest
	messages map[int64][]string
	answers  map[string]bool

	CreateInvoiceLinkFunc func(ctx context.Context, req adapter.InvoiceRequest) (string, error)
	SendMessageFunc       func(ctx context.Context, chatID int64, text string) error
}

var _ adapter.PaymentProvider = (*MockPaymentProvider)(nil)

func NewMockPaymentProvider() *MockPaymentProvider {
	return &MockPaymentProvider{messages: make(map[int64][]string), answers: make(map[string]bool)}
}

func (m *MockPaymentProvider) CreateInvoiceLink(ctx context.Context, req adapter.InvoiceRequest) (string, error) {
	m.mu.Lock()
	m.invoices = append(m.invoices, req)
	m.mu.Unlock()
	if m.CreateInvoiceLinkFunc != nil {
		return m.CreateInvoiceLinkFunc(ctx, req)
	}
	return "https://t.me/$invoice-link", nil
}

func (m *MockPaymentProvider) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[queryID] = ok
	return nil
}

func (m *MockPaymentProvider) SendMessage(ctx context.Context, chatID int64, text string) error {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, chatID, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[chatID] = append(m.messages[chatID], text)
	return nil
}

func (m *MockPaymentProvider) lastInvoice() (adapter.InvoiceRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.invoices) == 0 {
		return adapter.InvoiceRequest{}, false
	}
	return m.invoices[len(m.invoices)-1], true
}

// ---- Compute webhook ----

type MockCompute struct {
	mu    sync.Mutex
	calls []adapter.ComputeRequest

	NotConfigured bool
	SubmitFunc    func(ctx context.Context, req adapter.ComputeRequest) error
}

var _ adapter.ComputeWebhook = (*MockCompute)(nil)

func (m *MockCompute) Configured() bool { return !m.NotConfigured }

func (m *MockCompute) Submit(ctx context.Context, req adapter.ComputeRequest) error {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, req)
	}
	return nil
}

func (m *MockCompute) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// blockUntilDone waits for the caller's deadline, like an upstream that never answers.
func blockUntilDone(ctx context.Context, _ adapter.ComputeRequest) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return errors.New("deadline was not applied")
	}
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
