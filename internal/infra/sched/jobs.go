// File: internal/infra/sched/jobs.go
package sched

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/infra/metrics"
	"telegram-credit-miniapp/internal/infra/redis"
	"telegram-credit-miniapp/internal/usecase"
)

const (
	failedPaymentsLockKey = "lock:job:failed-payments"
	failedPaymentsSample  = 20
)

// FailedPaymentReporter publishes the number of payments that were recorded
// but not credited and logs a sample of them for manual reconciliation.
// It never retries crediting. With a locker only one replica reports per tick.
type FailedPaymentReporter struct {
	stats   usecase.StatsUseCase
	locker  redis.Locker // optional
	lockTTL time.Duration
	log     *zerolog.Logger
}

func NewFailedPaymentReporter(stats usecase.StatsUseCase, locker redis.Locker, lockTTL time.Duration, logger *zerolog.Logger) *FailedPaymentReporter {
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &FailedPaymentReporter{stats: stats, locker: locker, lockTTL: lockTTL, log: logger}
}

func (r *FailedPaymentReporter) Name() string { return "failed_payments" }

func (r *FailedPaymentReporter) Run(ctx context.Context) error {
	if r.locker != nil {
		token, err := r.locker.TryLock(ctx, failedPaymentsLockKey, r.lockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			if err := r.locker.Unlock(context.WithoutCancel(ctx), failedPaymentsLockKey, token); err != nil {
				r.log.Warn().Err(err).Msg("failed to release reporter lock")
			}
		}()
	}

	_, failed, err := r.stats.PaymentCounts(ctx)
	if err != nil {
		return err
	}
	metrics.SetFailedPayments(failed)
	if failed == 0 {
		return nil
	}

	recs, err := r.stats.FailedPayments(ctx, failedPaymentsSample)
	if err != nil {
		return err
	}
	for _, p := range recs {
		ev := r.log.Warn().
			Str("charge_id", p.PaymentRef).
			Int64("user_id", p.UserID).
			Str("sku", p.SKU).
			Int("credits", p.CreditsAdded)
		if p.Error != nil {
			ev = ev.Str("reason", *p.Error)
		}
		ev.Msg("payment awaiting reconciliation")
	}
	r.log.Warn().Int("failed", failed).Msg("failed payments need manual reconciliation")
	return nil
}

// Sweeper is implemented by the in-process rate limiter.
type Sweeper interface {
	Sweep() int
}

// RateLimitSweep drops expired rate-limit windows.
type RateLimitSweep struct {
	limiter Sweeper
}

func NewRateLimitSweep(limiter Sweeper) *RateLimitSweep {
	return &RateLimitSweep{limiter: limiter}
}

func (s *RateLimitSweep) Name() string { return "ratelimit_sweep" }

func (s *RateLimitSweep) Run(context.Context) error {
	metrics.SetRateLimitWindows(s.limiter.Sweep())
	return nil
}

// DBPoolStats exports pgx pool gauges.
type DBPoolStats struct {
	pool *pgxpool.Pool
}

func NewDBPoolStats(pool *pgxpool.Pool) *DBPoolStats {
	return &DBPoolStats{pool: pool}
}

func (d *DBPoolStats) Name() string { return "db_pool_stats" }

func (d *DBPoolStats) Run(context.Context) error {
	st := d.pool.Stat()
	metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
	return nil
}
