package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, telegram_user_id, xtr_amount, credits_added, paid_at, payment_ref, sku, payload, status, error, created_at, updated_at`

func (r *paymentRepo) Exists(ctx context.Context, tx repository.Tx, paymentRef string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM payments WHERE payment_ref=$1);`
	row, err := pickRow(ctx, r.pool, tx, q, paymentRef)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

// InsertCompleted relies on the payment_ref unique constraint; a conflicting row
// means another delivery of the same payment already won.
func (r *paymentRepo) InsertCompleted(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (payment_ref) DO NOTHING;`

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Status = model.PaymentStatusCompleted

	var payload interface{}
	if len(p.Payload) > 0 {
		payload = string(p.Payload)
	}
	tag, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.XTRAmount, p.CreditsAdded, p.PaidAt, p.PaymentRef, p.SKU,
		payload, p.Status, p.Error, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicatePayment
	}
	return nil
}

func (r *paymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, paymentRef, reason string) error {
	const q = `UPDATE payments SET status='failed', error=$2, updated_at=NOW() WHERE payment_ref=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, paymentRef, reason)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) FindByRef(ctx context.Context, tx repository.Tx, paymentRef string) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_ref=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, paymentRef)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.PaymentStatus, limit int) ([]*model.PaymentRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status=$1 ORDER BY created_at DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, string(status), limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

func (r *paymentRepo) CountByStatus(ctx context.Context, tx repository.Tx, status model.PaymentStatus) (int, error) {
	const q = `SELECT COUNT(*) FROM payments WHERE status=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, string(status))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func scanPayment(row pgx.Row) (*model.PaymentRecord, error) {
	var (
		p       model.PaymentRecord
		payload []byte
		status  string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.XTRAmount, &p.CreditsAdded, &p.PaidAt, &p.PaymentRef, &p.SKU,
		&payload, &status, &p.Error, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Payload = payload
	p.Status = model.PaymentStatus(status)
	return &p, nil
}
