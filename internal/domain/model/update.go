package model

import "encoding/json"

// Update is the subset of a Telegram Bot API update the payment webhook reads.
// A successful payment may arrive top-level or inside message.
type Update struct {
	UpdateID          int64              `json:"update_id"`
	Message           *Message           `json:"message,omitempty"`
	SuccessfulPayment *SuccessfulPayment `json:"successful_payment,omitempty"`
	PreCheckoutQuery  *PreCheckoutQuery  `json:"pre_checkout_query,omitempty"`
}

type Message struct {
	MessageID         int64              `json:"message_id"`
	From              *TelegramUser      `json:"from,omitempty"`
	Chat              *Chat              `json:"chat,omitempty"`
	SuccessfulPayment *SuccessfulPayment `json:"successful_payment,omitempty"`
}

type TelegramUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type SuccessfulPayment struct {
	Currency                string `json:"currency"`
	TotalAmount             int    `json:"total_amount"`
	InvoicePayload          string `json:"invoice_payload"`
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
	ProviderPaymentChargeID string `json:"provider_payment_charge_id"`
	ProviderToken           string `json:"provider_token,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the original bytes for the audit record.
func (p *SuccessfulPayment) UnmarshalJSON(b []byte) error {
	type plain SuccessfulPayment
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = SuccessfulPayment(v)
	p.Raw = append(json.RawMessage(nil), b...)
	return nil
}

type PreCheckoutQuery struct {
	ID             string        `json:"id"`
	From           *TelegramUser `json:"from,omitempty"`
	Currency       string        `json:"currency"`
	TotalAmount    int           `json:"total_amount"`
	InvoicePayload string        `json:"invoice_payload"`
}

// Payment returns the successful payment carried by the update, if any,
// plus the chat to notify (0 when unknown).
func (u *Update) Payment() (*SuccessfulPayment, int64) {
	if u == nil {
		return nil, 0
	}
	var chatID int64
	if u.Message != nil && u.Message.Chat != nil {
		chatID = u.Message.Chat.ID
	}
	if u.SuccessfulPayment != nil {
		return u.SuccessfulPayment, chatID
	}
	if u.Message != nil && u.Message.SuccessfulPayment != nil {
		return u.Message.SuccessfulPayment, chatID
	}
	return nil, 0
}

// PayerID is the telegram id of the user who sent the payment message, 0 when unknown.
func (u *Update) PayerID() int64 {
	if u == nil || u.Message == nil || u.Message.From == nil {
		return 0
	}
	return u.Message.From.ID
}
