package model

import "time"

// DefaultWelcomeCredits is granted once, when an account is first created.
const DefaultWelcomeCredits = 3

// CreditAccount holds the spendable balance of one telegram user.
type CreditAccount struct {
	UserID    int64
	Credits   int // never negative
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreditReason labels a balance increase for audit logs and metrics.
type CreditReason string

const (
	CreditReasonWelcome  CreditReason = "welcome"
	CreditReasonPurchase CreditReason = "purchase"
	CreditReasonReferral CreditReason = "referral"
	CreditReasonRefund   CreditReason = "refund"
	CreditReasonManual   CreditReason = "manual" // operator grant from cmd/migrate
)
