package telegram

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*NoopProvider)(nil)

// NoopProvider stands in for the Bot API in dev mode. It logs every call and
// returns a fake invoice link that embeds the payload.
type NoopProvider struct {
	log *zerolog.Logger
}

func NewNoopProvider(logger *zerolog.Logger) *NoopProvider {
	return &NoopProvider{log: logger}
}

func (b *NoopProvider) CreateInvoiceLink(ctx context.Context, req adapter.InvoiceRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	total := 0
	for _, p := range req.Prices {
		total += p.Amount
	}
	b.log.Info().Str("payload", req.Payload).Int("amount", total).Str("currency", req.Currency).Msg("[noop-telegram] createInvoiceLink")
	return fmt.Sprintf("https://t.me/$dev-invoice?payload=%s", url.QueryEscape(req.Payload)), nil
}

func (b *NoopProvider) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errMsg string) error {
	b.log.Info().Str("query_id", queryID).Bool("ok", ok).Str("error", errMsg).Msg("[noop-telegram] answerPreCheckoutQuery")
	return nil
}

func (b *NoopProvider) SendMessage(ctx context.Context, chatID int64, text string) error {
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("[noop-telegram] sendMessage")
	return nil
}
