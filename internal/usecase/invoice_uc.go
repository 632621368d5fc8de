// File: internal/usecase/invoice_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/adapter"
	"telegram-credit-miniapp/internal/infra/logging"
	"telegram-credit-miniapp/internal/infra/metrics"
)

// Compile-time check
var _ InvoiceUseCase = (*invoiceUC)(nil)

type InvoiceUseCase interface {
	// CreateInvoice returns a Stars invoice link for skuID.
	// inviterID is carried in the payload when non-zero.
	CreateInvoice(ctx context.Context, userID int64, skuID string, inviterID int64) (string, error)
	Catalog() *model.Catalog
}

// InvoiceText is the human readable part of every invoice.
// Description may contain one %d verb for the credit count.
type InvoiceText struct {
	Title       string
	Description string
}

type invoiceUC struct {
	catalog  *model.Catalog
	provider adapter.PaymentProvider
	text     InvoiceText

	log *zerolog.Logger
}

func NewInvoiceUseCase(catalog *model.Catalog, provider adapter.PaymentProvider, text InvoiceText, logger *zerolog.Logger) *invoiceUC {
	if text.Title == "" {
		text.Title = "AI Credits"
	}
	if text.Description == "" {
		text.Description = "Buy %d credits for AI image generation"
	}
	return &invoiceUC{catalog: catalog, provider: provider, text: text, log: logger}
}

func (u *invoiceUC) Catalog() *model.Catalog { return u.catalog }

func (u *invoiceUC) CreateInvoice(ctx context.Context, userID int64, skuID string, inviterID int64) (string, error) {
	l := logging.With(ctx, u.log)
	if userID <= 0 {
		return "", fmt.Errorf("%w: user id", domain.ErrInvalidArgument)
	}
	sku, err := u.catalog.Lookup(skuID)
	if err != nil {
		metrics.IncInvoice(skuID, "unknown_sku")
		return "", err
	}
	if inviterID == userID {
		inviterID = 0
	}

	payload, err := model.InvoicePayload{UserID: userID, SKU: sku.ID, InviterID: inviterID}.Encode()
	if err != nil {
		return "", fmt.Errorf("encode invoice payload: %w", err)
	}

	req := adapter.InvoiceRequest{
		Title:         u.text.Title,
		Description:   u.description(sku),
		Payload:       payload,
		ProviderToken: "",
		Currency:      model.StarsCurrency,
		Prices:        []adapter.LabeledPrice{{Label: fmt.Sprintf("%d Credits", sku.Credits), Amount: sku.XTR}},
	}
	link, err := u.provider.CreateInvoiceLink(ctx, req)
	if err != nil {
		metrics.IncInvoice(sku.ID, "provider_error")
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			l.Error().Str("kind", string(pe.Kind)).Int("code", pe.Code).Str("sku", sku.ID).Msg("invoice creation rejected")
		} else {
			l.Error().Err(err).Str("sku", sku.ID).Msg("invoice creation failed")
		}
		return "", err
	}

	metrics.IncInvoice(sku.ID, "ok")
	l.Info().
		Int64("user_id", userID).
		Str("sku", sku.ID).
		Int("xtr", sku.XTR).
		Int("credits", sku.Credits).
		Bool("test_sku", strings.HasPrefix(sku.ID, "test_")).
		Msg("invoice created")
	return link, nil
}

func (u *invoiceUC) description(sku model.SKU) string {
	if strings.Contains(u.text.Description, "%d") {
		return fmt.Sprintf(u.text.Description, sku.Credits)
	}
	return u.text.Description
}
