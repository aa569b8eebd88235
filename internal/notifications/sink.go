// Package notifications delivers payment and subscription outcome messages to
// users. The reconciliation core emits through the Sink interface and never
// fabricates transport-specific shapes; the Telegram implementation is the
// only place that knows how a message is actually rendered and sent.
package notifications

import "context"

// Sink delivers a one-time outcome notification to a user.
//
// Delivery is best-effort: a failed send must not fail the reconciliation
// that triggered it (the payment outcome is already durable), so
// implementations log and swallow transport errors where appropriate and the
// returned error is advisory.
type Sink interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// NopSink discards all notifications. Used in tests and offline tooling.
type NopSink struct{}

// Notify implements Sink.
func (NopSink) Notify(context.Context, int64, string) error { return nil }
