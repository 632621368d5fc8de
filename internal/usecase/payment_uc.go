// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/adapter"
	"telegram-credit-miniapp/internal/domain/ports/repository"
	"telegram-credit-miniapp/internal/infra/logging"
	"telegram-credit-miniapp/internal/infra/metrics"
)

// Outcome is the terminal state of one processed update.
type Outcome string

const (
	OutcomeIgnored     Outcome = "ignored"
	OutcomePreCheckout Outcome = "pre_checkout"
	OutcomeRejected    Outcome = "rejected"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeCredited    Outcome = "credited"
	OutcomeFailed      Outcome = "failed"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// ProcessUpdate applies one Bot API update. The error explains non-credited
	// outcomes and is meant for logs; delivery is always acknowledged upstream.
	ProcessUpdate(ctx context.Context, upd *model.Update) (Outcome, error)
}

type paymentUC struct {
	payments  repository.PaymentRepository
	ledger    LedgerUseCase
	referrals ReferralUseCase
	provider  adapter.PaymentProvider
	catalog   *model.Catalog

	log *zerolog.Logger
	now func() time.Time
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	ledger LedgerUseCase,
	referrals ReferralUseCase,
	provider adapter.PaymentProvider,
	catalog *model.Catalog,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		payments:  payments,
		ledger:    ledger,
		referrals: referrals,
		provider:  provider,
		catalog:   catalog,
		log:       logger,
		now:       time.Now,
	}
}

func (u *paymentUC) ProcessUpdate(ctx context.Context, upd *model.Update) (Outcome, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ProcessUpdate")()
	outcome, err := u.process(ctx, upd)
	metrics.IncPayment(string(outcome))
	return outcome, err
}

func (u *paymentUC) process(ctx context.Context, upd *model.Update) (Outcome, error) {
	l := logging.With(ctx, u.log)
	if upd != nil && upd.PreCheckoutQuery != nil {
		return u.answerPreCheckout(ctx, upd.PreCheckoutQuery)
	}

	pay, chatID := upd.Payment()
	if pay == nil {
		return OutcomeIgnored, domain.ErrNoPayment
	}

	payload, err := model.ParseInvoicePayload(pay.InvoicePayload)
	if err != nil {
		l.Warn().Str("charge_id", pay.TelegramPaymentChargeID).Msg("payment with undecodable payload")
		return OutcomeRejected, err
	}
	ref := pay.TelegramPaymentChargeID
	if ref == "" {
		return OutcomeRejected, fmt.Errorf("%w: missing telegram_payment_charge_id", domain.ErrBadPayload)
	}
	l = withPayment(l, ref, payload)
	if payer := upd.PayerID(); payer != 0 && payer != payload.UserID {
		l.Warn().Int64("payer_id", payer).Msg("payer differs from invoice user; crediting invoice user")
	}

	sku, err := u.catalog.Lookup(payload.SKU)
	if err != nil {
		l.Warn().Err(err).Msg("payment for unknown sku rejected")
		return OutcomeRejected, err
	}

	// The unique constraint on payment_ref is authoritative; this only skips work early.
	exists, err := u.payments.Exists(ctx, repository.NoTX, ref)
	if err != nil {
		l.Warn().Err(err).Msg("idempotency lookup failed, relying on insert")
	} else if exists {
		l.Info().Msg("duplicate payment ignored")
		return OutcomeDuplicate, nil
	}

	if err := validate(pay, sku); err != nil {
		l.Warn().Err(err).Int("xtr", pay.TotalAmount).Str("currency", pay.Currency).Msg("payment rejected")
		return OutcomeRejected, err
	}

	now := u.now()
	rec := &model.PaymentRecord{
		ID:           ulid.Make().String(),
		UserID:       payload.UserID,
		XTRAmount:    pay.TotalAmount,
		CreditsAdded: sku.Credits,
		PaidAt:       now,
		PaymentRef:   ref,
		SKU:          sku.ID,
		Payload:      pay.Raw,
		Status:       model.PaymentStatusCompleted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.payments.InsertCompleted(ctx, repository.NoTX, rec); err != nil {
		if errors.Is(err, domain.ErrDuplicatePayment) {
			l.Info().Msg("duplicate payment lost the insert race")
			return OutcomeDuplicate, nil
		}
		l.Error().Err(err).Int("xtr", pay.TotalAmount).Msg("payment could not be recorded; reconcile manually")
		return OutcomeFailed, fmt.Errorf("record payment: %w", err)
	}

	balance, err := u.credit(ctx, payload.UserID, sku.Credits)
	if err != nil {
		if merr := u.payments.MarkFailed(ctx, repository.NoTX, ref, err.Error()); merr != nil {
			l.Error().Err(merr).Msg("could not mark payment failed")
		}
		l.Error().Err(err).Msg("crediting failed, payment marked failed")
		return OutcomeFailed, err
	}

	metrics.AddPaymentRevenue(model.StarsCurrency, int64(pay.TotalAmount))
	l.Info().
		Str("event", "payment_processed").
		Int("xtr", pay.TotalAmount).
		Int("credits_added", sku.Credits).
		Int("balance", balance).
		Msg("payment credited")

	if payload.InviterID > 0 && u.referrals != nil {
		if _, err := u.referrals.Apply(ctx, payload.UserID, model.ReferralParam(payload.InviterID)); err != nil {
			l.Warn().Err(err).Int64("inviter_id", payload.InviterID).Msg("referral from payment not applied")
		}
	}
	u.notify(ctx, l, chatID, sku.Credits, balance)
	return OutcomeCredited, nil
}

func validate(pay *model.SuccessfulPayment, sku model.SKU) error {
	if pay.TotalAmount != sku.XTR {
		return fmt.Errorf("%w: paid %d, %s costs %d", domain.ErrAmountMismatch, pay.TotalAmount, sku.ID, sku.XTR)
	}
	if pay.Currency != model.StarsCurrency {
		return fmt.Errorf("%w: %q", domain.ErrCurrencyMismatch, pay.Currency)
	}
	if pay.ProviderToken != "" {
		return domain.ErrUnexpectedProvider
	}
	return nil
}

// credit grants the welcome bonus to first-time buyers before the purchased pack.
func (u *paymentUC) credit(ctx context.Context, userID int64, credits int) (int, error) {
	if _, err := u.ledger.EnsureWelcome(ctx, userID); err != nil {
		return 0, err
	}
	return u.ledger.Add(ctx, userID, credits, model.CreditReasonPurchase)
}

func (u *paymentUC) notify(ctx context.Context, l *zerolog.Logger, chatID int64, credits, balance int) {
	if chatID == 0 {
		return
	}
	text := fmt.Sprintf("✅ Payment successful!\n\nYou bought %d credits.\nCurrent balance: %d credits\n\nThank you for your support! 🎉", credits, balance)
	if err := u.provider.SendMessage(ctx, chatID, text); err != nil {
		metrics.IncPaymentNotify("failed")
		l.Warn().Err(err).Int64("chat_id", chatID).Msg("payment notification not sent")
		return
	}
	metrics.IncPaymentNotify("sent")
}

func (u *paymentUC) answerPreCheckout(ctx context.Context, q *model.PreCheckoutQuery) (Outcome, error) {
	ok, reason := true, ""
	payload, err := model.ParseInvoicePayload(q.InvoicePayload)
	if err == nil {
		var sku model.SKU
		sku, err = u.catalog.Lookup(payload.SKU)
		if err == nil && (q.TotalAmount != sku.XTR || q.Currency != model.StarsCurrency) {
			err = domain.ErrAmountMismatch
		}
	}
	if err != nil {
		ok, reason = false, "This item is no longer available."
	}
	if aerr := u.provider.AnswerPreCheckout(ctx, q.ID, ok, reason); aerr != nil {
		logging.With(ctx, u.log).Warn().Err(aerr).Str("query_id", q.ID).Msg("pre-checkout answer failed")
		return OutcomePreCheckout, aerr
	}
	return OutcomePreCheckout, err
}

func withPayment(l *zerolog.Logger, ref string, p model.InvoicePayload) *zerolog.Logger {
	ll := l.With().Str("charge_id", ref).Int64("user_id", p.UserID).Str("sku", p.SKU).Logger()
	return &ll
}
