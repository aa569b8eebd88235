package external

import "context"

// CreatePaymentRequest carries everything the provider needs to open a
// checkout. Metadata must include the local payment_id: the provider echoes
// metadata back on every webhook, and that echo is the only way the
// reconciler can correlate events with local records. Any replacement
// provider integration must preserve this contract.
type CreatePaymentRequest struct {
	Amount      int64  // whole rubles
	Currency    string // "RUB"
	Description string
	ReturnURL   string
	Metadata    map[string]string
}

// ProviderPayment is the provider-side view of a payment.
type ProviderPayment struct {
	ID                 string
	Status             string // provider status string: pending, waiting_for_capture, succeeded, canceled
	Paid               bool
	ConfirmationURL    string
	Metadata           map[string]string
	CancellationReason string
}

// PaymentProvider is the outbound interface to the payment provider.
// Both calls are bounded by the HTTP client timeout; failures surface as
// upstream_* AppErrors, never as hangs.
type PaymentProvider interface {
	// CreatePayment opens a provider-side payment intent and returns its id
	// and the checkout confirmation URL. idempotenceKey deduplicates retried
	// creation calls on the provider side.
	CreatePayment(ctx context.Context, idempotenceKey string, req CreatePaymentRequest) (*ProviderPayment, error)

	// GetPayment returns the provider's current view of a payment.
	GetPayment(ctx context.Context, providerID string) (*ProviderPayment, error)
}
