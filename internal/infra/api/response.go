package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/infra/logging"
)

// Error codes in the envelope's "error" field.
const (
	codeUnauthorized        = "invalid_init_data"
	codeValidation          = "validation_failed"
	codeInvalidSKU          = "invalid_sku"
	codeInsufficientCredits = "insufficient_credits"
	codeRateLimited         = "rate_limit_exceeded"
	codeWebhookTimeout      = "webhook_timeout"
	codeWebhookFailed       = "webhook_failed"
	codeConfiguration       = "server_configuration_error"
	codeProvider            = "payment_provider_error"
	codeNotFound            = "not_found"
	codeInternal            = "internal_error"
)

type errorBody struct {
	Success   bool    `json:"success"`
	Error     string  `json:"error"`
	Details   *string `json:"details"`
	Timestamp string  `json:"timestamp"`
}

func timestamp() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeSuccess writes {success:true, ...data, timestamp}.
func writeSuccess(w http.ResponseWriter, data map[string]any) {
	body := make(map[string]any, len(data)+2)
	for k, v := range data {
		body[k] = v
	}
	body["success"] = true
	body["timestamp"] = timestamp()
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	body := errorBody{Error: code, Timestamp: timestamp()}
	if details != "" {
		body.Details = &details
	}
	writeJSON(w, status, body)
}

// writeDomainError maps use case errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	l := logging.With(r.Context(), logger)
	var pe *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "")
	case errors.Is(err, domain.ErrUnknownSKU), errors.Is(err, domain.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, codeInvalidSKU, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, domain.ErrInsufficientCredits):
		writeError(w, http.StatusPaymentRequired, codeInsufficientCredits, "Not enough credits, please top up")
	case errors.Is(err, domain.ErrUpstreamTimeout):
		writeError(w, http.StatusGatewayTimeout, codeWebhookTimeout, "Processing timed out, your credit was refunded")
	case errors.Is(err, domain.ErrUpstreamFailure):
		writeError(w, http.StatusInternalServerError, codeWebhookFailed, "Processing failed, your credit was refunded")
	case errors.Is(err, domain.ErrConfiguration):
		l.Error().Err(err).Msg("configuration error")
		writeError(w, http.StatusInternalServerError, codeConfiguration, "")
	case errors.As(err, &pe):
		l.Error().Err(err).Str("kind", string(pe.Kind)).Msg("payment provider error")
		writeError(w, http.StatusInternalServerError, codeProvider, pe.Description)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "")
	default:
		l.Error().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, codeInternal, "")
	}
}
