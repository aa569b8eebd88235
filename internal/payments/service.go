// Package payments implements payment creation and webhook reconciliation.
// Every entry point here is safe under at-least-once delivery: terminal
// transitions are won at the record store, and the subscription extension for
// a payment is applied exactly once no matter how many times the same event
// arrives.
package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"subgate/internal/billing"
	"subgate/internal/external"
	"subgate/internal/notifications"
	"subgate/internal/types"
)

// PaymentStore is the subset of the payment repository the service needs.
type PaymentStore interface {
	Create(ctx context.Context, p *types.Payment) error
	GetByID(ctx context.Context, id string) (*types.Payment, error)
	MarkSucceeded(ctx context.Context, id string, confirmedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
}

// ExtensionStore begins atomic extension units: the applied_at stamp on the
// payment and the subscription window write commit together or not at all.
type ExtensionStore interface {
	Begin(ctx context.Context) (ExtensionTx, error)
}

// ExtensionTx is a single extension unit. MarkApplied doubles as the
// exactly-once claim: it is conditional on applied_at being unset, and the
// row lock it takes serializes concurrent units for the same payment, so of
// any number of simultaneous deliveries exactly one runs the extension.
type ExtensionTx interface {
	MarkApplied(ctx context.Context, id string, appliedAt time.Time) (bool, error)
	ApplyPayment(ctx context.Context, userID int64, planID types.PlanID, paymentID string) (*types.Subscription, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Sink delivers user-facing notifications. Delivery is best effort and never
// affects reconciliation outcomes.
type Sink interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// CreateResult is what the chat layer needs to present a checkout to the user.
type CreateResult struct {
	PaymentID       string
	ConfirmationURL string
	Plan            types.Plan
}

// Service coordinates payment creation with the provider and reconciles
// terminal payment events into subscription state.
type Service struct {
	store     PaymentStore
	ext       ExtensionStore
	provider  external.PaymentProvider
	plans     billing.Catalog
	sink      Sink
	returnURL string
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a payment Service.
func NewService(
	store PaymentStore,
	ext ExtensionStore,
	provider external.PaymentProvider,
	plans billing.Catalog,
	sink Sink,
	returnURL string,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = notifications.NopSink{}
	}
	return &Service{
		store:     store,
		ext:       ext,
		provider:  provider,
		plans:     plans,
		sink:      sink,
		returnURL: returnURL,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock. Intended for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create opens a payment for the given user and plan.
//
// The local payment id (UUID) is generated first and travels to the provider
// both as the idempotence key and inside metadata, where it comes back on
// every webhook. The provider call happens before any local write: if the
// provider rejects the creation, nothing is persisted and the user sees a
// clean failure with no dangling record.
func (s *Service) Create(ctx context.Context, userID int64, planID types.PlanID) (*CreateResult, error) {
	plan, ok := s.plans.Get(planID)
	if !ok {
		return nil, types.NewAppError(
			types.ErrCodeValidationUnknownPlan,
			fmt.Sprintf("unknown plan %q", planID),
			nil,
		)
	}

	paymentID := uuid.NewString()

	pp, err := s.provider.CreatePayment(ctx, paymentID, external.CreatePaymentRequest{
		Amount:      plan.Price,
		Currency:    "RUB",
		Description: fmt.Sprintf("Подписка: %s", plan.Name),
		ReturnURL:   s.returnURL,
		Metadata: map[string]string{
			"payment_id": paymentID,
			"user_id":    strconv.FormatInt(userID, 10),
			"plan":       string(plan.ID),
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "provider payment creation failed",
			"user_id", userID, "plan", planID, "error", err)
		return nil, err
	}

	p := &types.Payment{
		ID:         paymentID,
		ProviderID: pp.ID,
		UserID:     userID,
		PlanID:     plan.ID,
		Amount:     plan.Price,
		Status:     types.PaymentPending,
		CreatedAt:  s.now(),
	}
	if err := s.store.Create(ctx, p); err != nil {
		// The provider-side payment exists but we have no record of it.
		// Webhooks for it will be dropped as unknown; the money path still
		// requires the user to complete checkout, which they cannot confirm
		// through us, so this stays an operator-visible error.
		s.logger.ErrorContext(ctx, "payment record write failed after provider accepted",
			"payment_id", paymentID, "provider_id", pp.ID, "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment created",
		"payment_id", paymentID, "provider_id", pp.ID, "user_id", userID, "plan", plan.ID)

	return &CreateResult{
		PaymentID:       paymentID,
		ConfirmationURL: pp.ConfirmationURL,
		Plan:            plan,
	}, nil
}

// ApplySuccess reconciles a success event for the given payment id.
//
// The returned bool reports whether this call performed the pending to
// succeeded transition. Duplicates return (false, nil) and are harmless; a
// duplicate that finds the subscription extension incomplete (crash between
// the status flip and the extension) finishes it before returning.
//
// A success event for a locally failed payment is a provider discrepancy:
// the terminal state never flips, the event is rejected with a conflict
// error, and the caller is expected to acknowledge and drop it.
func (s *Service) ApplySuccess(ctx context.Context, paymentID string, origin types.EventOrigin) (bool, error) {
	p, err := s.store.GetByID(ctx, paymentID)
	if err != nil {
		return false, err
	}

	switch p.Status {
	case types.PaymentSucceeded:
		// Duplicate delivery. Finish the extension if a crash left it behind.
		if p.AppliedAt == nil {
			if err := s.applyExtension(ctx, p); err != nil {
				return false, err
			}
		}
		return false, nil

	case types.PaymentFailed:
		s.logger.ErrorContext(ctx, "provider reports success for locally failed payment",
			"payment_id", p.ID, "provider_id", p.ProviderID, "user_id", p.UserID)
		return false, types.NewAppError(
			types.ErrCodeConflictPaymentTerminal,
			"success event for a failed payment",
			nil,
		)
	}

	won, err := s.store.MarkSucceeded(ctx, paymentID, s.now())
	if err != nil {
		return false, err
	}
	if !won {
		// A concurrent delivery won the transition; it owns the side effects.
		return false, nil
	}

	if err := s.applyExtension(ctx, p); err != nil {
		// The payment is succeeded but unapplied. The reconciliation sweep
		// picks it up, and a redelivery of this event completes it too.
		return true, err
	}

	if origin == types.OriginLive {
		plan, ok := s.plans.Get(p.PlanID)
		if ok {
			if err := s.sink.Notify(ctx, p.UserID, notifications.SuccessText(plan)); err != nil {
				s.logger.WarnContext(ctx, "success notification failed",
					"payment_id", p.ID, "user_id", p.UserID, "error", err)
			}
		}
	}

	s.logger.InfoContext(ctx, "payment succeeded",
		"payment_id", p.ID, "user_id", p.UserID, "plan", p.PlanID, "origin", origin)
	return true, nil
}

// applyExtension extends the user's subscription for payment p and stamps
// applied_at in one transaction. The stamp is claimed first: if another
// delivery already applied this payment, the claim misses and nothing else
// runs. A failure anywhere rolls back claim and extension together, so a
// payment is never left with the extension recorded but the stamp missing
// (or the other way around), no matter where the process dies.
func (s *Service) applyExtension(ctx context.Context, p *types.Payment) error {
	tx, err := s.ext.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	claimed, err := tx.MarkApplied(ctx, p.ID, s.now())
	if err != nil {
		return err
	}
	if !claimed {
		// Another delivery owns (or already finished) the application.
		return nil
	}

	if _, err := tx.ApplyPayment(ctx, p.UserID, p.PlanID, p.ID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ApplyFailure reconciles a failure event for the given payment id. Same
// transition contract as ApplySuccess; failed payments touch no subscription
// state, so the only side effect is the user notification.
func (s *Service) ApplyFailure(ctx context.Context, paymentID, reason string, origin types.EventOrigin) (bool, error) {
	p, err := s.store.GetByID(ctx, paymentID)
	if err != nil {
		return false, err
	}

	switch p.Status {
	case types.PaymentFailed:
		return false, nil

	case types.PaymentSucceeded:
		s.logger.ErrorContext(ctx, "provider reports failure for locally succeeded payment",
			"payment_id", p.ID, "provider_id", p.ProviderID, "user_id", p.UserID)
		return false, types.NewAppError(
			types.ErrCodeConflictPaymentTerminal,
			"failure event for a succeeded payment",
			nil,
		)
	}

	won, err := s.store.MarkFailed(ctx, paymentID)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}

	if origin == types.OriginLive {
		if err := s.sink.Notify(ctx, p.UserID, notifications.FailureText(reason)); err != nil {
			s.logger.WarnContext(ctx, "failure notification failed",
				"payment_id", p.ID, "user_id", p.UserID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "payment failed",
		"payment_id", p.ID, "user_id", p.UserID, "reason", reason, "origin", origin)
	return won, nil
}

// CheckPayment polls the provider for the payment's current state and
// reconciles any terminal outcome through the same paths webhooks use, with
// origin resync so no duplicate notification is sent. Returns the refreshed
// local record.
func (s *Service) CheckPayment(ctx context.Context, paymentID string) (*types.Payment, error) {
	p, err := s.store.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return p, nil
	}

	pp, err := s.provider.GetPayment(ctx, p.ProviderID)
	if err != nil {
		return nil, err
	}

	switch pp.Status {
	case external.ProviderStatusSucceeded:
		if _, err := s.ApplySuccess(ctx, paymentID, types.OriginResync); err != nil {
			return nil, err
		}
	case external.ProviderStatusCanceled:
		if _, err := s.ApplyFailure(ctx, paymentID, pp.CancellationReason, types.OriginResync); err != nil {
			return nil, err
		}
	default:
		// Still pending or awaiting capture on the provider side.
		return p, nil
	}

	return s.store.GetByID(ctx, paymentID)
}
