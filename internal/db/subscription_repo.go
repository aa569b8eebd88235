package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"subgate/internal/types"
)

// SubscriptionRepository provides data access for the subscriptions table,
// keyed by user_id (at most one subscription per user).
//
// Key invariants:
//   - Replace is a compare-and-swap on (end_date, status): the lifecycle
//     manager reads the record, computes the new entitlement window in Go,
//     and the swap only lands if nobody else modified the record in between.
//     Two concurrent successful payments for the same user therefore never
//     lose an extension; the loser retries against the fresh record.
//   - ExpireDue is a single idempotent UPDATE, safe to re-run on any schedule.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository creates a new SubscriptionRepository backed by the
// given database connection (pool or transaction).
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `s.user_id, s.plan_id, s.plan_name, s.price, s.start_date,
	s.end_date, s.status, s.auto_renewal, s.last_payment_id`

// scanSubscription scans a single subscription row into a types.Subscription.
// The columns must match the order defined in subscriptionColumns.
func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var s types.Subscription
	var lastPaymentID *string
	err := row.Scan(
		&s.UserID,
		&s.PlanID,
		&s.PlanName,
		&s.Price,
		&s.StartDate,
		&s.EndDate,
		&s.Status,
		&s.AutoRenewal,
		&lastPaymentID,
	)
	if err != nil {
		return nil, err
	}
	if lastPaymentID != nil {
		s.LastPaymentID = *lastPaymentID
	}
	return &s, nil
}

// Get retrieves the subscription for the given user.
// Returns not_found_subscription if none exists.
func (r *SubscriptionRepository) Get(ctx context.Context, userID int64) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions s WHERE s.user_id = $1`,
		userID,
	)

	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return s, nil
}

// Insert creates the user's subscription record. Returns false without error
// when a record already exists (a concurrent writer won the race); the caller
// re-reads and retries through Replace.
func (r *SubscriptionRepository) Insert(ctx context.Context, s *types.Subscription) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions
		   (user_id, plan_id, plan_name, price, start_date, end_date, status, auto_renewal, last_payment_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id) DO NOTHING`,
		s.UserID,
		s.PlanID,
		s.PlanName,
		s.Price,
		s.StartDate,
		s.EndDate,
		s.Status,
		s.AutoRenewal,
		nullable(s.LastPaymentID),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to insert subscription", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Replace overwrites the user's subscription record if and only if it still
// matches the previously observed (end_date, status) pair. Returns false
// without error when the guard failed and the caller must re-read.
func (r *SubscriptionRepository) Replace(
	ctx context.Context,
	s *types.Subscription,
	prevEndDate time.Time,
	prevStatus types.SubscriptionStatus,
) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET plan_id = $1,
		     plan_name = $2,
		     price = $3,
		     start_date = $4,
		     end_date = $5,
		     status = $6,
		     auto_renewal = $7,
		     last_payment_id = $8
		 WHERE user_id = $9 AND end_date = $10 AND status = $11`,
		s.PlanID,
		s.PlanName,
		s.Price,
		s.StartDate,
		s.EndDate,
		s.Status,
		s.AutoRenewal,
		nullable(s.LastPaymentID),
		s.UserID,
		prevEndDate,
		prevStatus,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to replace subscription", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CancelActive flips an active subscription to canceled and turns off
// auto-renewal. end_date is deliberately left untouched: whether a
// canceled-but-unexpired subscription still grants access is the caller's
// policy, not the store's. Returns false when there was nothing to cancel.
func (r *SubscriptionRepository) CancelActive(ctx context.Context, userID int64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $1, auto_renewal = FALSE
		 WHERE user_id = $2 AND status = $3`,
		types.SubStatusCanceled,
		userID,
		types.SubStatusActive,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to cancel subscription", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireDue flips every active subscription whose end_date has passed to
// expired and returns the number of rows changed. Running it twice in a row
// changes state only on the first call.
func (r *SubscriptionRepository) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $1
		 WHERE status = $2 AND end_date < $3`,
		types.SubStatusExpired,
		types.SubStatusActive,
		now,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to expire subscriptions", err)
	}
	return int(tag.RowsAffected()), nil
}
