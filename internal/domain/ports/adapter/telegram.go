// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

type LabeledPrice struct {
	Label  string `json:"label"`
	Amount int    `json:"amount"`
}

// InvoiceRequest mirrors the createInvoiceLink parameters used for Stars.
type InvoiceRequest struct {
	Title         string
	Description   string
	Payload       string
	ProviderToken string // empty for Stars
	Currency      string
	Prices        []LabeledPrice
}

// PaymentProvider is the Telegram Bot API surface the service needs.
// Failures are returned as *domain.ProviderError.
type PaymentProvider interface {
	CreateInvoiceLink(ctx context.Context, req InvoiceRequest) (string, error)
	AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errMsg string) error
	SendMessage(ctx context.Context, chatID int64, text string) error
}
