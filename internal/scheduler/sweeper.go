// Package scheduler runs the periodic maintenance sweeps: expiring lapsed
// subscriptions and re-applying succeeded payments whose subscription
// extension never completed. Both sweeps are idempotent, so overlapping runs
// and restarts are harmless.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"subgate/internal/types"
)

// unappliedBatchSize bounds one reconciliation pass. Anything left over is
// picked up on the next tick.
const unappliedBatchSize = 100

// SubscriptionSweeper is the subset of the subscription service the sweeper
// needs.
type SubscriptionSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// PaymentReconciler finishes interrupted reconciliations.
type PaymentReconciler interface {
	ApplySuccess(ctx context.Context, paymentID string, origin types.EventOrigin) (bool, error)
}

// UnappliedLister lists succeeded payments with no recorded extension.
type UnappliedLister interface {
	ListUnapplied(ctx context.Context, limit int) ([]*types.Payment, error)
}

// Sweeper drives both maintenance passes on a fixed interval.
type Sweeper struct {
	subs     SubscriptionSweeper
	payments PaymentReconciler
	lister   UnappliedLister
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(
	subs SubscriptionSweeper,
	payments PaymentReconciler,
	lister UnappliedLister,
	interval time.Duration,
	logger *slog.Logger,
) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		subs:     subs,
		payments: payments,
		lister:   lister,
		interval: interval,
		logger:   logger,
	}
}

// Run executes one sweep immediately, then one per interval until the
// context is canceled. Sweep errors are logged, never fatal: the next tick
// retries.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs both maintenance passes once.
func (s *Sweeper) sweep(ctx context.Context) {
	if n, err := s.subs.SweepExpired(ctx); err != nil {
		s.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "subscriptions expired", "count", n)
	}

	s.reconcileUnapplied(ctx)
}

// reconcileUnapplied re-drives the success path for payments that reached
// succeeded but whose subscription extension was interrupted. ApplySuccess
// checks last_payment_id before extending, so a payment whose extension
// landed but whose applied stamp did not is only restamped, never applied
// twice.
func (s *Sweeper) reconcileUnapplied(ctx context.Context) {
	payments, err := s.lister.ListUnapplied(ctx, unappliedBatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "unapplied payment listing failed", "error", err)
		return
	}

	for _, p := range payments {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.payments.ApplySuccess(ctx, p.ID, types.OriginResync); err != nil {
			s.logger.ErrorContext(ctx, "payment reconciliation failed",
				"payment_id", p.ID, "user_id", p.UserID, "error", err)
			continue
		}
		s.logger.InfoContext(ctx, "payment reconciled by sweep",
			"payment_id", p.ID, "user_id", p.UserID)
	}
}
