package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/config"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/adapter"
	"telegram-credit-miniapp/internal/infra/security"
	"telegram-credit-miniapp/internal/infra/worker"
	"telegram-credit-miniapp/internal/usecase"
)

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
	Verifier  *security.Verifier
	Ledger    usecase.LedgerUseCase
	Invoices  usecase.InvoiceUseCase
	Payments  usecase.PaymentUseCase
	Consume   usecase.ConsumeUseCase
	Referrals usecase.ReferralUseCase
	Stats     usecase.StatsUseCase
	Limiter   adapter.RateLimiter
	Webhooks  *worker.Pool // nil processes updates inline
	Checks    map[string]HealthCheck
	Version   string
}

type Server struct {
	cfg     *config.Config
	deps    Deps
	started time.Time
	log     *zerolog.Logger

	httpSrv *http.Server
}

func NewServer(cfg *config.Config, deps Deps, logger *zerolog.Logger) *Server {
	return &Server{cfg: cfg, deps: deps, started: time.Now(), log: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	cfg := s.cfg
	guard := &limitGuard{limiter: s.deps.Limiter, window: cfg.RateLimit.Window, log: s.log}

	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log), CORS(cfg.Server.AllowedOrigins))

	var catalog *model.Catalog
	if s.deps.Invoices != nil {
		catalog = s.deps.Invoices.Catalog()
	}
	r.Get("/health", healthHandler(s.deps.Checks, map[string]bool{
		"telegram": cfg.Bot.Token != "",
		"webhook":  cfg.Compute.WebhookURL != "",
	}, catalog, s.started, s.deps.Version))
	r.Handle("/metrics", promhttp.Handler())

	// Telegram retries on slow answers, so the webhook is outside the request timeout.
	r.Post("/webhook", webhookHandler(s.deps.Payments, s.deps.Webhooks, cfg.Bot.WebhookSecret, s.log))

	r.Group(func(r chi.Router) {
		r.Use(Timeout(cfg.Server.RequestTimeout))
		r.Get("/balance", balanceHandler(s.deps.Verifier, s.deps.Ledger, s.deps.Referrals, guard, cfg.RateLimit.Balance, s.log))
		r.Post("/create-invoice", createInvoiceHandler(s.deps.Verifier, s.deps.Invoices, guard, cfg.RateLimit.Invoice, s.log))
		r.Post("/consume", consumeHandler(s.deps.Verifier, s.deps.Consume, guard, cfg.RateLimit.Consume, s.log))
	})

	if cfg.Admin.APIKey != "" && cfg.Admin.JWTSecret != "" && s.deps.Stats != nil {
		auth := NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.SessionTTL)
		r.Route("/admin", func(r chi.Router) {
			r.Post("/session", adminSessionHandler(auth, cfg.Admin.APIKey, s.log))
			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware(s.log))
				r.Get("/payments", adminPaymentsHandler(s.deps.Stats, s.log))
				r.Get("/payments/{ref}", adminPaymentHandler(s.deps.Stats, s.log))
			})
		})
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Expected a different method than "+r.Method)
	})
	return r
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}
	s.log.Info().Int("port", s.cfg.Server.Port).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
