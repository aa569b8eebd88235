package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"subgate/internal/types"
)

// PaymentRepository provides data access for the payments table.
//
// Key invariants:
//   - MarkSucceeded / MarkFailed are single conditional UPDATEs guarded by
//     status = 'pending': concurrent deliveries of the same terminal event
//     serialize at the database, and only the first transition wins. The
//     rows-affected count tells the caller whether it won.
//   - No statement ever transitions a payment out of a terminal state.
type PaymentRepository struct {
	db DBTX
}

// NewPaymentRepository creates a new PaymentRepository backed by the given
// database connection (pool or transaction).
func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `p.id, p.provider_id, p.user_id, p.plan_id, p.amount, p.status,
	p.created_at, p.confirmed_at, p.applied_at`

// scanPayment scans a single payment row into a types.Payment struct.
// The columns must match the order defined in paymentColumns.
func scanPayment(row pgx.Row) (*types.Payment, error) {
	var p types.Payment
	var providerID *string
	err := row.Scan(
		&p.ID,
		&providerID,
		&p.UserID,
		&p.PlanID,
		&p.Amount,
		&p.Status,
		&p.CreatedAt,
		&p.ConfirmedAt,
		&p.AppliedAt,
	)
	if err != nil {
		return nil, err
	}
	if providerID != nil {
		p.ProviderID = *providerID
	}
	return &p, nil
}

// Create persists a freshly created pending payment. It is called only after
// the provider accepted the creation call, so a local record never exists for
// a payment that was not presented to the user.
func (r *PaymentRepository) Create(ctx context.Context, p *types.Payment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO payments (id, provider_id, user_id, plan_id, amount, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID,
		nullable(p.ProviderID),
		p.UserID,
		p.PlanID,
		p.Amount,
		p.Status,
		p.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create payment", err)
	}
	return nil
}

// GetByID retrieves a payment by its local idempotency key.
// Returns not_found_payment if no payment exists.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*types.Payment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments p WHERE p.id = $1`,
		id,
	)

	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPayment, "payment not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve payment", err)
	}
	return p, nil
}

// MarkSucceeded transitions the payment from pending to succeeded and stamps
// confirmed_at. Returns true only when this call performed the transition;
// false means the payment was already terminal (or absent) and the caller
// must not re-run side effects.
func (r *PaymentRepository) MarkSucceeded(ctx context.Context, id string, confirmedAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE payments
		 SET status = $1, confirmed_at = $2
		 WHERE id = $3 AND status = $4`,
		types.PaymentSucceeded,
		confirmedAt,
		id,
		types.PaymentPending,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to mark payment succeeded", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed transitions the payment from pending to failed.
// Same conditional-update contract as MarkSucceeded.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE payments
		 SET status = $1
		 WHERE id = $2 AND status = $3`,
		types.PaymentFailed,
		id,
		types.PaymentPending,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to mark payment failed", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkApplied records that the subscription extension funded by this payment
// has completed. Conditional on applied_at being unset: the rows-affected
// count tells the caller whether it claimed the application, and inside a
// transaction the payment row stays locked until commit, serializing
// concurrent claimers. The reconciliation sweep skips stamped payments.
func (r *PaymentRepository) MarkApplied(ctx context.Context, id string, appliedAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE payments SET applied_at = $1 WHERE id = $2 AND applied_at IS NULL`,
		appliedAt,
		id,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to mark payment applied", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListUnapplied returns succeeded payments whose subscription extension has
// not been recorded, oldest first. Used by the reconciliation sweep.
func (r *PaymentRepository) ListUnapplied(ctx context.Context, limit int) ([]*types.Payment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments p
		 WHERE p.status = $1 AND p.applied_at IS NULL
		 ORDER BY p.confirmed_at
		 LIMIT $2`,
		types.PaymentSucceeded,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list unapplied payments", err)
	}
	defer rows.Close()

	var out []*types.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan payment row", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate payment rows", err)
	}
	return out, nil
}
