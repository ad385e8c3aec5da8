// Package reconcile derives the next order state from a gateway observation.
package reconcile

import (
	"github.com/paydesk/reconciler/internal/models"
)

// Outcome is the gateway observation collapsed into the three buckets the order cares about.
type Outcome string

const (
	OutcomePending    Outcome = "pending"
	OutcomeSuccessful Outcome = "successful"
	OutcomeFailed     Outcome = "failed"
)

var (
	StatePending   = models.OrderState{Status: models.OrderStatusPending, PaymentStatus: models.PaymentStatusPending}
	StateConfirmed = models.OrderState{Status: models.OrderStatusConfirmed, PaymentStatus: models.PaymentStatusPaid}
	StateCancelled = models.OrderState{Status: models.OrderStatusCancelled, PaymentStatus: models.PaymentStatusFailed}
)

// Decision is the result of reconciling one observation against the current state.
// Current is echoed back so the caller can use it as the compare side of the update.
type Decision struct {
	Current models.OrderState
	Next    models.OrderState
	Changed bool
}

// Reconcile applies the payment transition table. It performs no I/O.
//
// A paid order is never regressed and a late success after a failure is honored.
// Rows whose status and payment status diverge converge on the fixed point their
// payment status implies; a pending observation leaves an unsettled row untouched.
func Reconcile(current models.OrderState, outcome Outcome) Decision {
	next := current
	switch current.PaymentStatus {
	case models.PaymentStatusPaid:
		next = StateConfirmed
	case models.PaymentStatusFailed:
		next = StateCancelled
		if outcome == OutcomeSuccessful {
			next = StateConfirmed
		}
	default:
		switch outcome {
		case OutcomeSuccessful:
			next = StateConfirmed
		case OutcomeFailed:
			next = StateCancelled
		}
	}

	return Decision{
		Current: current,
		Next:    next,
		Changed: next != current,
	}
}

// ConfirmsPayment reports whether applying the decision moves the order into paid.
func (d Decision) ConfirmsPayment() bool {
	return d.Changed && d.Next.PaymentStatus == models.PaymentStatusPaid && d.Current.PaymentStatus != models.PaymentStatusPaid
}
