package types

import "time"

// User is a Telegram account that has contacted the bot. Display attributes
// are advisory and last-write-wins on each contact; users are never deleted.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	LanguageCode string    `json:"language_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Payment is one attempted purchase of a plan.
//
// ID is generated locally (UUID v4) and acts as the idempotency key for the
// whole reconciliation flow; the provider echoes it back in webhook metadata.
// ProviderID is assigned by the provider and may be empty until creation
// completes.
type Payment struct {
	ID         string        `json:"payment_id"`
	ProviderID string        `json:"provider_id,omitempty"`
	UserID     int64         `json:"user_id"`
	PlanID     PlanID        `json:"plan_id"`
	Amount     int64         `json:"amount"` // whole rubles
	Status     PaymentStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`

	// ConfirmedAt is set exactly once, on the transition into succeeded.
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`

	// AppliedAt is set once the subscription extension for this payment has
	// completed. A succeeded payment with a nil AppliedAt is picked up by the
	// reconciliation sweep and re-applied.
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// Subscription is the entitlement window for a user. At most one exists per
// user; it is extended, downgraded, or canceled, never split.
//
// PlanID, PlanName and Price are snapshots taken at the time of the last
// (re)activation; a renewal with a different plan silently changes tier.
type Subscription struct {
	UserID        int64              `json:"user_id"`
	PlanID        PlanID             `json:"plan_id"`
	PlanName      string             `json:"plan_name"`
	Price         int64              `json:"price"`
	StartDate     time.Time          `json:"start_date"`
	EndDate       time.Time          `json:"end_date"`
	Status        SubscriptionStatus `json:"status"`
	AutoRenewal   bool               `json:"auto_renewal"`
	LastPaymentID string             `json:"last_payment_id,omitempty"`
}

// Plan describes one entry of the static plan catalog.
type Plan struct {
	ID          PlanID
	Name        string
	Description string
	Price       int64 // whole rubles
	Duration    time.Duration
}
