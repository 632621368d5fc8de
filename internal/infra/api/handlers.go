package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/infra/logging"
	"telegram-credit-miniapp/internal/infra/security"
	"telegram-credit-miniapp/internal/infra/worker"
	"telegram-credit-miniapp/internal/usecase"
)

const (
	maxConsumeBody = 6 << 20
	maxJSONBody    = 64 << 10
	maxUpdateBody  = 1 << 20

	// updateTimeout bounds processing of one webhook update, pooled or inline.
	updateTimeout = 30 * time.Second
)

type invoiceRequest struct {
	InitData string `json:"initData" validate:"required"`
	SKU      string `json:"sku" validate:"required,max=64"`
}

type consumeRequest struct {
	InitData             string `json:"initData" validate:"required"`
	CompositeImageBase64 string `json:"composite_image_base64" validate:"required,image_b64"`
	Prompt               string `json:"prompt" validate:"required,min=3,max=1000"`
	ChatID               flexID `json:"chat_id" validate:"omitempty,digits"`
}

// identify verifies initData and tags the request context with the caller.
func identify(w http.ResponseWriter, r *http.Request, v *security.Verifier, logger *zerolog.Logger, initData, action string) (*model.UserIdentity, *http.Request, bool) {
	id, err := v.Identify(initData)
	if err != nil {
		l := logging.With(r.Context(), logger)
		if errors.Is(err, domain.ErrUnauthorized) {
			l.Warn().Str("action", action).Msg("initData verification failed")
		}
		writeDomainError(w, r, logger, err)
		return nil, r, false
	}
	ctx := logging.WithAction(logging.WithTgID(r.Context(), id.ID), action)
	return id, r.WithContext(ctx), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, codeValidation, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return false
	}
	return true
}

// balanceHandler serves GET /balance?initData=&startParam=.
// New users get the welcome grant; a ref_<id> start parameter records the referral.
func balanceHandler(v *security.Verifier, ledger usecase.LedgerUseCase, referrals usecase.ReferralUseCase, guard *limitGuard, limit int, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initData := r.URL.Query().Get("initData")
		if initData == "" {
			initData = r.Header.Get("X-Telegram-Init-Data")
		}
		if initData == "" {
			writeError(w, http.StatusBadRequest, codeValidation, "initData: is required")
			return
		}
		id, r, ok := identify(w, r, v, logger, initData, actionBalance)
		if !ok {
			return
		}
		if !guard.allow(w, r, actionBalance, id.ID, limit) {
			return
		}

		credits, err := ledger.EnsureWelcome(r.Context(), id.ID)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}

		startParam := r.URL.Query().Get("startParam")
		if startParam == "" {
			startParam = id.StartParam
		}
		if startParam != "" && referrals != nil {
			if _, err := referrals.Apply(r.Context(), id.ID, startParam); err != nil {
				logging.With(r.Context(), logger).Warn().Err(err).Str("start_param", startParam).Msg("referral not applied")
			}
		}

		writeSuccess(w, map[string]any{"credits": credits, "userId": id.ID})
	}
}

// createInvoiceHandler serves POST /create-invoice.
func createInvoiceHandler(v *security.Verifier, invoices usecase.InvoiceUseCase, guard *limitGuard, limit int, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req invoiceRequest
		if !decodeBody(w, r, maxJSONBody, &req) {
			return
		}
		if details := validationDetails(req); details != "" {
			writeError(w, http.StatusBadRequest, codeValidation, details)
			return
		}
		id, r, ok := identify(w, r, v, logger, req.InitData, actionInvoice)
		if !ok {
			return
		}
		if !guard.allow(w, r, actionInvoice, id.ID, limit) {
			return
		}

		inviterID, _ := model.ParseReferralParam(id.StartParam)
		link, err := invoices.CreateInvoice(r.Context(), id.ID, req.SKU, inviterID)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeSuccess(w, map[string]any{"invoiceLink": link})
	}
}

// consumeHandler serves POST /consume.
func consumeHandler(v *security.Verifier, consume usecase.ConsumeUseCase, guard *limitGuard, limit int, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req consumeRequest
		if !decodeBody(w, r, maxConsumeBody, &req) {
			return
		}
		if details := validationDetails(req); details != "" {
			writeError(w, http.StatusBadRequest, codeValidation, details)
			return
		}
		id, r, ok := identify(w, r, v, logger, req.InitData, actionConsume)
		if !ok {
			return
		}
		if !guard.allow(w, r, actionConsume, id.ID, limit) {
			return
		}

		res, err := consume.Consume(r.Context(), id.ID, usecase.ConsumeRequest{
			CompositeImageBase64: req.CompositeImageBase64,
			Prompt:               req.Prompt,
			ChatID:               string(req.ChatID),
		})
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		writeSuccess(w, map[string]any{"message": "Job submitted, processing", "charged": res.Charged})
	}
}

// webhookHandler serves POST /webhook. Telegram always gets 200 {ok:true} before
// any processing; the update is then handled on the pool, or inline when the pool
// cannot take it.
func webhookHandler(payments usecase.PaymentUseCase, pool *worker.Pool, secret string, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logging.With(r.Context(), logger)
		if secret != "" {
			got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				l.Warn().Msg("webhook secret mismatch")
				writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false})
				return
			}
		}

		body, readErr := io.ReadAll(io.LimitReader(r.Body, maxUpdateBody))

		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		if readErr != nil {
			l.Warn().Err(readErr).Msg("webhook body unreadable")
			return
		}
		var upd model.Update
		if err := json.Unmarshal(body, &upd); err != nil {
			l.Warn().Err(err).Msg("webhook body is not an update")
			return
		}

		traceID := logging.TraceIDFrom(r.Context())
		task := func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, updateTimeout)
			defer cancel()
			ctx = logging.WithAction(logging.WithTraceID(ctx, traceID), "webhook")
			processUpdate(ctx, payments, &upd, logger)
			return nil
		}
		if pool != nil {
			err := pool.Submit(task)
			if err == nil {
				return
			}
			l.Warn().Err(err).Msg("webhook pool unavailable, processing inline")
		}
		_ = task(context.WithoutCancel(r.Context()))
	}
}

func processUpdate(ctx context.Context, payments usecase.PaymentUseCase, upd *model.Update, logger *zerolog.Logger) {
	outcome, err := payments.ProcessUpdate(ctx, upd)
	l := logging.With(ctx, logger)
	switch outcome {
	case usecase.OutcomeCredited, usecase.OutcomeDuplicate:
		l.Debug().Str("outcome", string(outcome)).Int64("update_id", upd.UpdateID).Msg("update processed")
	case usecase.OutcomeIgnored:
		l.Debug().Int64("update_id", upd.UpdateID).Msg("update without payment ignored")
	default:
		l.Warn().Err(err).Str("outcome", string(outcome)).Int64("update_id", upd.UpdateID).Msg("update not credited")
	}
}

// HealthCheck reports one dependency; nil error means healthy.
type HealthCheck func(ctx context.Context) error

type skuView struct {
	ID      string `json:"id"`
	XTR     int    `json:"xtr"`
	Credits int    `json:"credits"`
}

func catalogView(c *model.Catalog) map[string]any {
	if c == nil {
		return nil
	}
	skus := make([]skuView, 0)
	for _, s := range c.All() {
		skus = append(skus, skuView{ID: s.ID, XTR: s.XTR, Credits: s.Credits})
	}
	return map[string]any{"testMode": c.TestMode(), "skus": skus}
}

func healthHandler(checks map[string]HealthCheck, static map[string]bool, catalog *model.Catalog, started time.Time, version string) http.HandlerFunc {
	catalogData := catalogView(catalog)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		services := make(map[string]string, len(checks)+len(static))
		status := "healthy"
		for name, configured := range static {
			if configured {
				services[name] = "configured"
			} else {
				services[name] = "not_configured"
			}
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				services[name] = "error"
				status = "degraded"
				continue
			}
			services[name] = "ok"
		}

		code := http.StatusOK
		if status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"success": status == "healthy",
			"data": map[string]any{
				"status":    status,
				"timestamp": timestamp(),
				"uptime":    time.Since(started).Round(time.Second).String(),
				"version":   version,
				"services":  services,
				"catalog":   catalogData,
			},
		})
	}
}
