package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/domain/ports/adapter"
	"telegram-credit-miniapp/internal/infra/logging"
	"telegram-credit-miniapp/internal/infra/metrics"
)

// Rate-limited actions; also the key prefix.
const (
	actionConsume = "consume"
	actionBalance = "balance"
	actionInvoice = "invoice"
)

type rateLimitBody struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

type limitGuard struct {
	limiter adapter.RateLimiter
	window  time.Duration
	log     *zerolog.Logger
}

// allow counts one request for action:userID, sets the X-RateLimit headers and
// writes the 429 response when over the limit. Limiter errors fail open.
func (g *limitGuard) allow(w http.ResponseWriter, r *http.Request, action string, userID int64, limit int) bool {
	if g == nil || g.limiter == nil || limit <= 0 {
		return true
	}
	key := action + ":" + strconv.FormatInt(userID, 10)
	dec, err := g.limiter.Allow(r.Context(), key, limit, g.window)
	if err != nil {
		logging.With(r.Context(), g.log).Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
		return true
	}

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
	h.Set("X-RateLimit-Reset", dec.ResetAt.UTC().Format(time.RFC3339))
	if !dec.Limited {
		return true
	}

	retry := int(math.Ceil(dec.RetryAfter.Seconds()))
	if retry < 1 {
		retry = 1
	}
	h.Set("Retry-After", strconv.Itoa(retry))
	metrics.IncRateLimited(action)
	writeJSON(w, http.StatusTooManyRequests, rateLimitBody{
		Success:    false,
		Error:      codeRateLimited,
		Message:    fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retry),
		RetryAfter: retry,
	})
	return false
}
