package model

import (
	"encoding/json"
	"strings"
	"time"

	"telegram-credit-miniapp/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed" // recorded; credits granted unless later marked failed
	PaymentStatusFailed    PaymentStatus = "failed"    // recorded but crediting failed; needs manual reconciliation
)

// StarsCurrency is the only currency accepted for digital goods.
const StarsCurrency = "XTR"

// PaymentRecord is the durable audit entry for one successful Stars payment.
type PaymentRecord struct {
	ID           string // ULID
	UserID       int64  // telegram user id taken from the invoice payload
	XTRAmount    int    // stars actually paid
	CreditsAdded int
	PaidAt       time.Time
	PaymentRef   string // telegram_payment_charge_id, unique
	SKU          string
	Payload      json.RawMessage // provider payment object as received
	Status       PaymentStatus
	Error        *string // set when Status == failed
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InvoicePayload is the correlation blob attached to an invoice and echoed back on payment.
type InvoicePayload struct {
	UserID    int64  `json:"userId"`
	SKU       string `json:"sku"`
	InviterID int64  `json:"ref,omitempty"`
}

func (p InvoicePayload) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseInvoicePayload decodes and validates a payload produced by Encode.
func ParseInvoicePayload(s string) (InvoicePayload, error) {
	var p InvoicePayload
	if strings.TrimSpace(s) == "" {
		return p, domain.ErrBadPayload
	}
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return p, domain.ErrBadPayload
	}
	if p.UserID <= 0 || p.SKU == "" {
		return p, domain.ErrBadPayload
	}
	return p, nil
}
