// Package handlers contains the HTTP handler implementations for the
// reconciliation surface: the provider webhook endpoint and the operator
// resync endpoint.
//
// The webhook endpoint is called directly by the payment provider with
// at-least-once delivery. Correctness therefore lives in the reconciliation
// service, not here; the handler's job is classification and the
// acknowledgment decision. An event that can never apply (unknown payment,
// contradicting terminal state, missing metadata) is acknowledged so the
// provider stops redelivering it; an event that failed for a transient
// reason (record store down, contention) is answered with a 5xx so the
// provider's retry schedule redelivers it.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"subgate/internal/core"
	"subgate/internal/types"
)

// Provider webhook event types.
const (
	eventPaymentSucceeded         = "payment.succeeded"
	eventPaymentFailed            = "payment.failed"
	eventPaymentCanceled          = "payment.canceled"
	eventPaymentWaitingForCapture = "payment.waiting_for_capture"
)

// Reconciler applies provider payment outcomes to local state.
// This is the subset of the payments service the handlers need.
type Reconciler interface {
	ApplySuccess(ctx context.Context, paymentID string, origin types.EventOrigin) (bool, error)
	ApplyFailure(ctx context.Context, paymentID, reason string, origin types.EventOrigin) (bool, error)
	CheckPayment(ctx context.Context, paymentID string) (*types.Payment, error)
}

// WebhookHandler handles asynchronous payment events from the provider.
type WebhookHandler struct {
	reconciler Reconciler
	logger     *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler with the provided dependencies.
func NewWebhookHandler(reconciler Reconciler, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// RegisterRoutes mounts the webhook and resync endpoints. Both are outside
// any auth middleware: the webhook is called by the provider, and resync is
// an operator tool expected to sit behind network-level access control.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/yookassa/webhook", h.HandleEvent)
	r.Post("/resync/{paymentID}", h.HandleResync)
}

// HandleEvent processes an incoming provider webhook event.
//
//  1. Parses the event envelope (size capped).
//  2. Extracts the local payment id from object metadata. Its absence is a
//     contract violation and a 400 for terminal events.
//  3. Dispatches terminal events (succeeded, failed) to the reconciler.
//  4. Acknowledges with 200, or suppresses acknowledgment with the error
//     status when the failure is transient.
//
// Non-terminal events (canceled, waiting_for_capture) and unknown event
// types are logged and acknowledged without any state change.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var event providerEvent
	if err := core.DecodeJSON(w, r, &event); err != nil {
		h.logger.WarnContext(r.Context(), "malformed webhook payload", "error", err)
		core.Error(w, r, err)
		return
	}

	if event.Event == "" || event.Object == nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMalformedEvent,
			"event envelope is missing event type or object",
			nil,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing provider event",
		"event", event.Event,
		"provider_payment_id", event.Object.ID,
	)

	switch event.Event {
	case eventPaymentSucceeded:
		paymentID, ok := h.requirePaymentID(w, r, &event)
		if !ok {
			return
		}
		_, err := h.reconciler.ApplySuccess(r.Context(), paymentID, types.OriginLive)
		h.acknowledge(w, r, &event, paymentID, err)

	case eventPaymentFailed:
		paymentID, ok := h.requirePaymentID(w, r, &event)
		if !ok {
			return
		}
		_, err := h.reconciler.ApplyFailure(r.Context(), paymentID, event.Object.cancellationReason(), types.OriginLive)
		h.acknowledge(w, r, &event, paymentID, err)

	case eventPaymentCanceled, eventPaymentWaitingForCapture:
		// Not terminal for the payment state machine; a terminal event
		// follows, or the payment simply stays pending.
		h.acknowledge(w, r, &event, event.Object.Metadata["payment_id"], nil)

	default:
		h.logger.InfoContext(r.Context(), "ignoring unhandled provider event type",
			"event", event.Event,
		)
		h.acknowledge(w, r, &event, "", nil)
	}
}

// requirePaymentID extracts metadata.payment_id, writing a 400 when absent.
// An event without our correlation key cannot ever be applied, so rejecting
// it conclusively beats guessing at which local payment it meant.
func (h *WebhookHandler) requirePaymentID(w http.ResponseWriter, r *http.Request, event *providerEvent) (string, bool) {
	paymentID := event.Object.Metadata["payment_id"]
	if paymentID == "" {
		h.logger.WarnContext(r.Context(), "provider event missing payment_id metadata",
			"event", event.Event,
			"provider_payment_id", event.Object.ID,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingPaymentID,
			"event metadata does not contain payment_id",
			nil,
		))
		return "", false
	}
	return paymentID, true
}

// acknowledge converts the reconciliation outcome into the webhook response.
// Transient failures propagate their status so the provider redelivers;
// permanently inapplicable events are logged and acknowledged with 200.
func (h *WebhookHandler) acknowledge(w http.ResponseWriter, r *http.Request, event *providerEvent, paymentID string, err error) {
	if err != nil {
		code := types.CodeOf(err)
		if code.Transient() {
			h.logger.ErrorContext(r.Context(), "event processing failed, withholding acknowledgment",
				"event", event.Event,
				"payment_id", paymentID,
				"error", err,
			)
			core.Error(w, r, err)
			return
		}
		h.logger.WarnContext(r.Context(), "permanently inapplicable event dropped",
			"event", event.Event,
			"payment_id", paymentID,
			"code", code,
			"error", err,
		)
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: map[string]bool{"received": true},
	})
}

// HandleResync re-reconciles a single payment by polling the provider for
// its current state. Used when webhook deliveries were lost; the outcome
// flows through the same transitions as a live event, minus the user
// notification.
func (h *WebhookHandler) HandleResync(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	if paymentID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingPaymentID,
			"payment id is required",
			nil,
		))
		return
	}

	p, err := h.reconciler.CheckPayment(r.Context(), paymentID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: p})
}

// providerEvent is a minimal representation of the provider's webhook
// envelope, tailored to the fields routing and processing need. The full
// payment object schema is deliberately not modeled here.
type providerEvent struct {
	Type   string               `json:"type"`
	Event  string               `json:"event"`
	Object *providerEventObject `json:"object"`
}

type providerEventObject struct {
	ID                  string               `json:"id"`
	Status              string               `json:"status"`
	Paid                bool                 `json:"paid"`
	Metadata            map[string]string    `json:"metadata"`
	CancellationDetails *cancellationDetails `json:"cancellation_details"`
}

type cancellationDetails struct {
	Party  string `json:"party"`
	Reason string `json:"reason"`
}

func (o *providerEventObject) cancellationReason() string {
	if o.CancellationDetails == nil {
		return ""
	}
	return o.CancellationDetails.Reason
}
