package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/config"
	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*BotAPIProvider)(nil)

// BotAPIProvider talks to the Telegram Bot API through tgbotapi.
type BotAPIProvider struct {
	bot *tgbotapi.BotAPI
	log *zerolog.Logger
}

// NewBotAPIProvider builds the client and checks the token with getMe.
func NewBotAPIProvider(cfg *config.BotConfig, logger *zerolog.Logger) (*BotAPIProvider, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("bot token is empty")
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := &http.Client{Timeout: cfg.Timeout}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, classify("getMe", err)
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram bot api ready")
	return &BotAPIProvider{bot: bot, log: logger}, nil
}

func (p *BotAPIProvider) CreateInvoiceLink(ctx context.Context, req adapter.InvoiceRequest) (string, error) {
	const op = "createInvoiceLink"
	params := tgbotapi.Params{
		"title":          req.Title,
		"description":    req.Description,
		"payload":        req.Payload,
		"provider_token": req.ProviderToken,
		"currency":       req.Currency,
	}
	if err := params.AddInterface("prices", req.Prices); err != nil {
		return "", &domain.ProviderError{Op: op, Kind: domain.ProviderMalformed, Err: err}
	}

	resp, err := p.call(ctx, op, func() (*tgbotapi.APIResponse, error) {
		return p.bot.MakeRequest(op, params)
	})
	if err != nil {
		return "", err
	}

	var link string
	if err := json.Unmarshal(resp.Result, &link); err != nil || link == "" {
		if err == nil {
			err = errors.New("empty invoice link")
		}
		return "", &domain.ProviderError{Op: op, Kind: domain.ProviderMalformed, Err: err}
	}
	return link, nil
}

func (p *BotAPIProvider) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errMsg string) error {
	cfg := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: queryID, OK: ok, ErrorMessage: errMsg}
	_, err := p.call(ctx, "answerPreCheckoutQuery", func() (*tgbotapi.APIResponse, error) {
		return p.bot.Request(cfg)
	})
	return err
}

func (p *BotAPIProvider) SendMessage(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := p.call(ctx, "sendMessage", func() (*tgbotapi.APIResponse, error) {
		return p.bot.Request(msg)
	})
	return err
}

type callResult struct {
	resp *tgbotapi.APIResponse
	err  error
}

// call runs a blocking tgbotapi request and gives up when ctx ends.
// The HTTP client timeout bounds the abandoned request.
func (p *BotAPIProvider) call(ctx context.Context, op string, fn func() (*tgbotapi.APIResponse, error)) (*tgbotapi.APIResponse, error) {
	ch := make(chan callResult, 1)
	go func() {
		resp, err := fn()
		ch <- callResult{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &domain.ProviderError{Op: op, Kind: domain.ProviderTransport, Err: ctx.Err()}
	case r := <-ch:
		if r.err != nil {
			perr := classify(op, r.err)
			p.log.Warn().Err(perr).Str("op", op).Msg("telegram api call failed")
			return nil, perr
		}
		return r.resp, nil
	}
}

func classify(op string, err error) *domain.ProviderError {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{Op: op, Kind: domain.ProviderRejected, Code: apiErr.Code, Description: apiErr.Message, Err: err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &domain.ProviderError{Op: op, Kind: domain.ProviderMalformed, Err: err}
	}
	return &domain.ProviderError{Op: op, Kind: domain.ProviderTransport, Err: err}
}
