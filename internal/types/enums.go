package types

// PaymentStatus represents the lifecycle state of a payment.
// Transitions are monotonic: pending -> succeeded or pending -> failed.
// There is no transition out of a terminal state.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSucceeded || s == PaymentFailed
}

// SubscriptionStatus represents the lifecycle state of a subscription.
// A canceled or expired subscription can be reactivated by a new payment.
type SubscriptionStatus string

const (
	SubStatusActive   SubscriptionStatus = "active"
	SubStatusExpired  SubscriptionStatus = "expired"
	SubStatusCanceled SubscriptionStatus = "canceled"
)

// PlanID identifies a subscription plan in the catalog.
type PlanID string

const (
	PlanBasic   PlanID = "basic"
	PlanPremium PlanID = "premium"
	PlanVIP     PlanID = "vip"
)

// EventOrigin distinguishes live provider events from offline re-processing.
// User notifications are emitted only for live events, so re-driving a
// historical event never produces a duplicate message.
type EventOrigin string

const (
	OriginLive   EventOrigin = "live"
	OriginResync EventOrigin = "resync"
)
