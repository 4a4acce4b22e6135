package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/austa/payments/internal/models"
	"github.com/austa/payments/pkg/errs"
	"github.com/austa/payments/pkg/types"
)

// EventType enumerates the transitions the lifecycle understands. Every
// mutation of a payment after creation goes through Apply with one of these.
type EventType string

const (
	EventProcessingStarted EventType = "PROCESSING_STARTED"
	EventCompleted         EventType = "COMPLETED"
	EventFailed            EventType = "FAILED"
	EventCancelled         EventType = "CANCELLED"
	EventExpired           EventType = "EXPIRED"
	EventRefundApplied     EventType = "REFUND_APPLIED"
)

// Event is one lifecycle transition request. Source names who asked for it
// (webhook gateway, api, sweeper, reconciliation) for audit logging.
type Event struct {
	Type       EventType
	Source     string
	OccurredAt time.Time

	// FAILED details. Once recorded on the payment they are never cleared.
	FailureReason string
	FailureCode   string

	// REFUND_APPLIED amount.
	RefundAmount decimal.Decimal
}

// Apply is the transition function. It mutates p in place and reports
// whether anything changed; a false return with a nil error is an idempotent
// duplicate. Rejections leave p untouched and carry the error taxonomy the
// transport layers map from.
//
// Apply never changes method or amount and never lowers refunded_amount.
func Apply(p *models.Payment, ev Event) (bool, error) {
	switch ev.Type {
	case EventProcessingStarted:
		return applyProcessing(p, ev)
	case EventCompleted:
		return applyCompleted(p, ev)
	case EventFailed:
		return applyFailed(p, ev)
	case EventCancelled:
		return applyCancelled(p, ev)
	case EventExpired:
		return applyExpired(p, ev)
	case EventRefundApplied:
		return applyRefund(p, ev)
	default:
		return false, errs.InvalidState("unknown event type: %s", ev.Type)
	}
}

func applyProcessing(p *models.Payment, ev Event) (bool, error) {
	switch p.Status {
	case types.PaymentStatusPending:
		p.Status = types.PaymentStatusProcessing
		return true, nil
	case types.PaymentStatusProcessing:
		return false, nil
	}
	return false, rejected(p, ev)
}

func applyCompleted(p *models.Payment, ev Event) (bool, error) {
	switch p.Status {
	case types.PaymentStatusPending, types.PaymentStatusProcessing:
		p.Status = types.PaymentStatusCompleted
		if p.PaidAt == nil {
			at := ev.OccurredAt
			if at.IsZero() {
				at = time.Now()
			}
			p.PaidAt = &at
		}
		return true, nil
	case types.PaymentStatusCompleted:
		// Provider webhook retries land here; paid_at stays as first set.
		return false, nil
	}
	return false, rejected(p, ev)
}

func applyFailed(p *models.Payment, ev Event) (bool, error) {
	switch p.Status {
	case types.PaymentStatusPending, types.PaymentStatusProcessing:
		p.Status = types.PaymentStatusFailed
		if p.FailureReason == "" {
			p.FailureReason = ev.FailureReason
		}
		if p.FailureCode == "" {
			p.FailureCode = ev.FailureCode
		}
		return true, nil
	case types.PaymentStatusFailed:
		return false, nil
	}
	return false, rejected(p, ev)
}

func applyCancelled(p *models.Payment, ev Event) (bool, error) {
	switch p.Status {
	case types.PaymentStatusPending:
		p.Status = types.PaymentStatusCancelled
		return true, nil
	case types.PaymentStatusCancelled:
		return false, nil
	case types.PaymentStatusProcessing:
		// Provider-side momentum; the attempt must resolve to
		// COMPLETED or FAILED instead.
		return false, errs.InvalidState("payment %s is processing and can no longer be cancelled", p.ID)
	}
	return false, rejected(p, ev)
}

func applyExpired(p *models.Payment, ev Event) (bool, error) {
	if p.Status != types.PaymentStatusPending {
		// The sweep lost the race against a real outcome; not an error.
		return false, nil
	}
	p.Status = types.PaymentStatusFailed
	if p.FailureReason == "" {
		p.FailureReason = "payment artifact expired before settlement"
	}
	if p.FailureCode == "" {
		p.FailureCode = "EXPIRED"
	}
	return true, nil
}

func applyRefund(p *models.Payment, ev Event) (bool, error) {
	if p.Status != types.PaymentStatusCompleted {
		return false, errs.InvalidState("payment %s is %s, only completed payments can be refunded", p.ID, p.Status)
	}
	amount := ev.RefundAmount
	if amount.LessThanOrEqual(decimal.Zero) {
		return false, errs.InvalidAmount("refund amount must be positive")
	}
	if amount.GreaterThan(p.RemainingRefundable()) {
		return false, errs.InvalidAmount("refund of %s exceeds remaining refundable %s",
			amount.StringFixed(2), p.RemainingRefundable().StringFixed(2))
	}

	p.RefundedAmount = p.RefundedAmount.Add(amount)
	if p.RefundedAmount.Equal(p.Amount) {
		p.Status = types.PaymentStatusRefunded
		at := ev.OccurredAt
		if at.IsZero() {
			at = time.Now()
		}
		p.RefundedAt = &at
	}
	return true, nil
}

func rejected(p *models.Payment, ev Event) error {
	return errs.InvalidState("event %s not allowed while payment %s is %s", ev.Type, p.ID, p.Status)
}
