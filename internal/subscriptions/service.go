// Package subscriptions implements the subscription lifecycle manager: it
// applies successful payments to a user's entitlement window, handles
// cancellation, and expires lapsed subscriptions.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"subgate/internal/billing"
	"subgate/internal/types"
)

// applyAttempts bounds the compare-and-swap retry loop in ApplyPayment.
// Contention on a single user's subscription is rare (it takes two payments
// for the same user racing), so a small bound is enough; exhaustion surfaces
// as a transient error and the caller's redelivery path takes over.
const applyAttempts = 3

// Store is the subset of the subscription repository the manager needs.
type Store interface {
	// Get returns the user's subscription or a not_found_subscription error.
	Get(ctx context.Context, userID int64) (*types.Subscription, error)

	// Insert creates the record; false means a concurrent writer got there first.
	Insert(ctx context.Context, s *types.Subscription) (bool, error)

	// Replace overwrites the record only if it still matches the previously
	// observed (end_date, status) pair; false means the guard failed.
	Replace(ctx context.Context, s *types.Subscription, prevEndDate time.Time, prevStatus types.SubscriptionStatus) (bool, error)

	// CancelActive flips an active subscription to canceled; false means
	// there was nothing to cancel.
	CancelActive(ctx context.Context, userID int64) (bool, error)

	// ExpireDue expires active subscriptions past their end_date and returns
	// the number changed.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// Service is the subscription lifecycle manager.
type Service struct {
	store  Store
	plans  billing.Catalog
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a subscription Service. The now function defaults to
// time.Now and is injectable for deterministic tests.
func NewService(store Store, plans billing.Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		plans:  plans,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock. Intended for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// ApplyPayment applies a successful payment to the user's subscription.
//
// If no subscription exists, or the existing one is not active (expired or
// canceled), a fresh window is opened: start = now, end = now + duration.
// A lapsed subscription is never backdated -- the new window starts from now.
//
// If the existing subscription is active, the window is extended:
// end = max(existing end, now) + duration. start is preserved. The plan
// snapshot (id, name, price) is overwritten with the new plan's values; a
// renewal can change tier, and the last payment wins.
//
// The read-modify-write is serialized per user through the store's
// compare-and-swap: a lost race re-reads and retries, so two concurrent
// payments for the same user never lose an extension.
func (s *Service) ApplyPayment(ctx context.Context, userID int64, planID types.PlanID, paymentID string) (*types.Subscription, error) {
	plan, ok := s.plans.Get(planID)
	if !ok {
		return nil, types.NewAppError(
			types.ErrCodeValidationUnknownPlan,
			fmt.Sprintf("unknown plan %q", planID),
			nil,
		)
	}

	for attempt := 0; attempt < applyAttempts; attempt++ {
		now := s.now()

		existing, err := s.store.Get(ctx, userID)
		if err != nil {
			var appErr *types.AppError
			if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundSubscription {
				fresh := s.buildFresh(userID, plan, paymentID, now)
				inserted, insErr := s.store.Insert(ctx, fresh)
				if insErr != nil {
					return nil, insErr
				}
				if inserted {
					return fresh, nil
				}
				// A concurrent writer created the record; re-read and extend.
				continue
			}
			return nil, err
		}

		next := s.buildNext(existing, plan, paymentID, now)
		replaced, err := s.store.Replace(ctx, next, existing.EndDate, existing.Status)
		if err != nil {
			return nil, err
		}
		if replaced {
			return next, nil
		}
		// Guard failed: the record changed underneath us. Retry.
	}

	return nil, types.NewAppError(
		types.ErrCodeInternalDB,
		fmt.Sprintf("subscription update contention for user %d exhausted retries", userID),
		nil,
	)
}

// buildFresh opens a new entitlement window starting now.
func (s *Service) buildFresh(userID int64, plan types.Plan, paymentID string, now time.Time) *types.Subscription {
	return &types.Subscription{
		UserID:        userID,
		PlanID:        plan.ID,
		PlanName:      plan.Name,
		Price:         plan.Price,
		StartDate:     now,
		EndDate:       now.Add(plan.Duration),
		Status:        types.SubStatusActive,
		AutoRenewal:   true,
		LastPaymentID: paymentID,
	}
}

// buildNext computes the record that replaces existing after this payment.
func (s *Service) buildNext(existing *types.Subscription, plan types.Plan, paymentID string, now time.Time) *types.Subscription {
	next := s.buildFresh(existing.UserID, plan, paymentID, now)
	if existing.Status == types.SubStatusActive {
		next.StartDate = existing.StartDate
		base := existing.EndDate
		if now.After(base) {
			base = now
		}
		next.EndDate = base.Add(plan.Duration)
	}
	return next
}

// Get returns the user's subscription or a not_found_subscription error.
func (s *Service) Get(ctx context.Context, userID int64) (*types.Subscription, error) {
	return s.store.Get(ctx, userID)
}

// Cancel marks the user's subscription canceled and turns off auto-renewal.
// Returns false when there is no active subscription to cancel -- that is an
// expected outcome, not an error. end_date is left untouched; whether access
// survives until period end is the caller's policy.
func (s *Service) Cancel(ctx context.Context, userID int64) (bool, error) {
	canceled, err := s.store.CancelActive(ctx, userID)
	if err != nil {
		return false, err
	}
	if canceled {
		s.logger.InfoContext(ctx, "subscription canceled", "user_id", userID)
	}
	return canceled, nil
}

// SweepExpired expires every active subscription whose end_date has passed
// and returns the number changed. Safe to re-run on any schedule.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	return s.store.ExpireDue(ctx, s.now())
}

// StatusText renders a human-readable subscription summary.
// Days remaining is shown only for active subscriptions and is the whole-day
// truncation of (end_date - now), clamped at zero so the final day renders
// as 0, never negative.
func (s *Service) StatusText(sub *types.Subscription) string {
	if sub == nil {
		return "❌ У вас нет активной подписки"
	}

	emoji := map[types.SubscriptionStatus]string{
		types.SubStatusActive:   "✅",
		types.SubStatusExpired:  "⏰",
		types.SubStatusCanceled: "🚫",
	}[sub.Status]
	if emoji == "" {
		emoji = "❓"
	}

	renewal := "Отключено"
	if sub.AutoRenewal {
		renewal = "Включено"
	}

	text := fmt.Sprintf(
		"%s *Статус подписки*\n\n*Тариф:* %s\n*Стоимость:* %d₽/месяц\n*Статус:* %s\n*Дата активации:* %s\n*Дата окончания:* %s\n\n*Автопродление:* %s",
		emoji,
		sub.PlanName,
		sub.Price,
		sub.Status,
		sub.StartDate.Format("2006-01-02"),
		sub.EndDate.Format("2006-01-02"),
		renewal,
	)

	if sub.Status == types.SubStatusActive {
		daysLeft := int(sub.EndDate.Sub(s.now()).Hours() / 24)
		if daysLeft < 0 {
			daysLeft = 0
		}
		text += fmt.Sprintf("\n*Осталось дней:* %d", daysLeft)
	}

	return text
}
