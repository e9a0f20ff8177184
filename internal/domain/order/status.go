package order

import "github.com/geraidev/checkout/internal/domain/payment"

// Transition reports whether a payment-status notification should be
// applied. The machine is:
//
//	nil → pending → {settlement | capture | expire | deny | cancel}
//
// Every terminal state is final, and a repeated notification for the state
// already recorded is a no-op. Returning false means "acknowledge but do
// nothing": replayed webhooks must never reapply side effects.
func Transition(current *payment.Status, next payment.Status) bool {
	switch {
	case current == nil:
		return next == payment.StatusPending
	case *current == payment.StatusPending:
		return next != payment.StatusPending && next.Known()
	default:
		// Already terminal.
		return false
	}
}
