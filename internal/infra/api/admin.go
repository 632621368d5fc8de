package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/infra/logging"
	"telegram-credit-miniapp/internal/usecase"
)

// ===== Session/JWT primitives =====

type AuthManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Mint returns a signed admin token and its expiry.
func (a *AuthManager) Mint() (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Subject:   "admin",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseFromRequest reads "Authorization: Bearer <jwt>".
func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errors.New("missing token")
	}
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(strings.TrimSpace(hdr[7:]), claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid || claims.Role != "admin" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (a *AuthManager) Middleware(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := a.ParseFromRequest(r); err != nil {
				logging.With(r.Context(), logger).Warn().Err(err).Str("path", r.URL.Path).Msg("admin auth failed")
				writeError(w, http.StatusUnauthorized, "unauthorized", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ===== Handlers =====

type sessionRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

func adminSessionHandler(auth *AuthManager, apiKey string, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		if !decodeBody(w, r, maxJSONBody, &req) {
			return
		}
		if details := validationDetails(req); details != "" {
			writeError(w, http.StatusBadRequest, codeValidation, details)
			return
		}
		if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(apiKey)) != 1 {
			logging.With(r.Context(), logger).Warn().Msg("admin session refused")
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		token, exp, err := auth.Mint()
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeSuccess(w, map[string]any{"token": token, "expiresAt": exp.UTC().Format(time.RFC3339)})
	}
}

type adminPayment struct {
	ID           string          `json:"id"`
	UserID       int64           `json:"telegramUserId"`
	XTRAmount    int             `json:"xtrAmount"`
	CreditsAdded int             `json:"creditsAdded"`
	PaidAt       time.Time       `json:"paidAt"`
	PaymentRef   string          `json:"paymentRef"`
	SKU          string          `json:"sku"`
	Status       string          `json:"status"`
	Error        *string         `json:"error"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

func toAdminPayment(p *model.PaymentRecord, withPayload bool) adminPayment {
	out := adminPayment{
		ID:           p.ID,
		UserID:       p.UserID,
		XTRAmount:    p.XTRAmount,
		CreditsAdded: p.CreditsAdded,
		PaidAt:       p.PaidAt,
		PaymentRef:   p.PaymentRef,
		SKU:          p.SKU,
		Status:       string(p.Status),
		Error:        p.Error,
	}
	if withPayload && len(p.Payload) > 0 {
		out.Payload = p.Payload
	}
	return out
}

// adminPaymentsHandler serves GET /admin/payments?status=failed&limit=N.
func adminPaymentsHandler(stats usecase.StatsUseCase, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s := r.URL.Query().Get("status"); s != "" && s != string(model.PaymentStatusFailed) {
			writeError(w, http.StatusBadRequest, codeValidation, "status: only failed payments can be listed")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		completed, failed, err := stats.PaymentCounts(r.Context())
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		recs, err := stats.FailedPayments(r.Context(), limit)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		items := make([]adminPayment, 0, len(recs))
		for _, p := range recs {
			items = append(items, toAdminPayment(p, false))
		}
		writeSuccess(w, map[string]any{
			"counts":   map[string]int{"completed": completed, "failed": failed},
			"payments": items,
		})
	}
}

// adminPaymentHandler serves GET /admin/payments/{ref}.
func adminPaymentHandler(stats usecase.StatsUseCase, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := stats.Payment(r.Context(), chi.URLParam(r, "ref"))
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeSuccess(w, map[string]any{"payment": toAdminPayment(p, true)})
	}
}
