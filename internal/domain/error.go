package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	ErrUnauthorized        = errors.New("invalid telegram init data")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUnknownSKU          = errors.New("unknown sku")
	ErrInvalidPrice        = errors.New("invalid sku price")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrConfiguration       = errors.New("server configuration error")

	ErrUpstreamTimeout = errors.New("compute webhook timed out")
	ErrUpstreamFailure = errors.New("compute webhook failed")

	// Payment webhook outcomes
	ErrDuplicatePayment   = errors.New("payment already processed")
	ErrNoPayment          = errors.New("update carries no successful payment")
	ErrBadPayload         = errors.New("malformed invoice payload")
	ErrAmountMismatch     = errors.New("payment amount does not match sku price")
	ErrCurrencyMismatch   = errors.New("unexpected payment currency")
	ErrUnexpectedProvider = errors.New("unexpected provider token on stars payment")
)

// ProviderErrorKind classifies a failed call to the Telegram Bot API.
type ProviderErrorKind string

const (
	ProviderTransport ProviderErrorKind = "transport" // network or HTTP level failure
	ProviderMalformed ProviderErrorKind = "malformed" // response could not be decoded
	ProviderRejected  ProviderErrorKind = "rejected"  // ok=false from the API
)

// ProviderError is returned by payment provider adapters.
type ProviderError struct {
	Op          string
	Kind        ProviderErrorKind
	Code        int
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	if e.Kind == ProviderRejected {
		return fmt.Sprintf("%s: provider rejected request (%d): %s", e.Op, e.Code, e.Description)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: provider %s error: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: provider %s error", e.Op, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Err }
