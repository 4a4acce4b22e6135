package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/austa/payments/internal/models"
	"github.com/austa/payments/pkg/errs"
	"github.com/austa/payments/pkg/types"
)

func paymentIn(status types.PaymentStatus) *models.Payment {
	return &models.Payment{
		ID:             "pay-1",
		Status:         status,
		Method:         types.PaymentMethodPix,
		Amount:         decimal.NewFromFloat(100.00),
		RefundedAmount: decimal.Zero,
	}
}

func TestApplyHappyPath(t *testing.T) {
	p := paymentIn(types.PaymentStatusPending)

	changed, err := Apply(p, Event{Type: EventProcessingStarted})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, types.PaymentStatusProcessing, p.Status)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	changed, err = Apply(p, Event{Type: EventCompleted, OccurredAt: at})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, types.PaymentStatusCompleted, p.Status)
	require.NotNil(t, p.PaidAt)
	require.Equal(t, at, *p.PaidAt)
}

func TestApplyCompletedIsIdempotent(t *testing.T) {
	p := paymentIn(types.PaymentStatusProcessing)

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	changed, err := Apply(p, Event{Type: EventCompleted, OccurredAt: first})
	require.NoError(t, err)
	require.True(t, changed)

	// Webhook retry a minute later must not move paid_at.
	changed, err = Apply(p, Event{Type: EventCompleted, OccurredAt: first.Add(time.Minute)})
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, first, *p.PaidAt)
	require.Equal(t, types.PaymentStatusCompleted, p.Status)
}

func TestApplyRejectsIllegalTransitions(t *testing.T) {
	cases := []struct {
		from types.PaymentStatus
		ev   EventType
	}{
		{types.PaymentStatusCompleted, EventProcessingStarted},
		{types.PaymentStatusFailed, EventProcessingStarted},
		{types.PaymentStatusCancelled, EventProcessingStarted},
		{types.PaymentStatusRefunded, EventProcessingStarted},
		{types.PaymentStatusFailed, EventCompleted},
		{types.PaymentStatusCancelled, EventCompleted},
		{types.PaymentStatusRefunded, EventCompleted},
		{types.PaymentStatusCompleted, EventFailed},
		{types.PaymentStatusCancelled, EventFailed},
		{types.PaymentStatusRefunded, EventFailed},
		{types.PaymentStatusProcessing, EventCancelled},
		{types.PaymentStatusCompleted, EventCancelled},
		{types.PaymentStatusFailed, EventCancelled},
		{types.PaymentStatusRefunded, EventCancelled},
		{types.PaymentStatusPending, EventRefundApplied},
		{types.PaymentStatusProcessing, EventRefundApplied},
		{types.PaymentStatusFailed, EventRefundApplied},
		{types.PaymentStatusCancelled, EventRefundApplied},
		{types.PaymentStatusRefunded, EventRefundApplied},
	}
	for _, tc := range cases {
		p := paymentIn(tc.from)
		before := *p
		ev := Event{Type: tc.ev}
		if tc.ev == EventRefundApplied {
			ev.RefundAmount = decimal.NewFromFloat(10)
		}
		changed, err := Apply(p, ev)
		require.Error(t, err, "%s from %s", tc.ev, tc.from)
		require.Equal(t, errs.KindInvalidState, errs.KindOf(err))
		require.False(t, changed)
		require.Equal(t, before, *p, "rejected transition must leave payment unchanged")
	}
}

func TestApplyDuplicateTerminalEventsNoOp(t *testing.T) {
	for _, tc := range []struct {
		status types.PaymentStatus
		ev     EventType
	}{
		{types.PaymentStatusFailed, EventFailed},
		{types.PaymentStatusCancelled, EventCancelled},
		{types.PaymentStatusProcessing, EventProcessingStarted},
	} {
		p := paymentIn(tc.status)
		changed, err := Apply(p, Event{Type: tc.ev})
		require.NoError(t, err)
		require.False(t, changed)
		require.Equal(t, tc.status, p.Status)
	}
}

func TestApplyFailureFieldsAreSticky(t *testing.T) {
	p := paymentIn(types.PaymentStatusProcessing)

	changed, err := Apply(p, Event{Type: EventFailed, FailureReason: "insufficient funds", FailureCode: "51"})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "insufficient funds", p.FailureReason)
	require.Equal(t, "51", p.FailureCode)

	changed, err = Apply(p, Event{Type: EventFailed, FailureReason: "other reason", FailureCode: "99"})
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, "insufficient funds", p.FailureReason)
	require.Equal(t, "51", p.FailureCode)
}

func TestApplyExpired(t *testing.T) {
	t.Run("pending expires to failed", func(t *testing.T) {
		p := paymentIn(types.PaymentStatusPending)
		changed, err := Apply(p, Event{Type: EventExpired})
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, types.PaymentStatusFailed, p.Status)
		require.Equal(t, "EXPIRED", p.FailureCode)
	})

	t.Run("sweep losing the race is a no-op", func(t *testing.T) {
		for _, status := range []types.PaymentStatus{
			types.PaymentStatusProcessing,
			types.PaymentStatusCompleted,
			types.PaymentStatusFailed,
			types.PaymentStatusCancelled,
		} {
			p := paymentIn(status)
			changed, err := Apply(p, Event{Type: EventExpired})
			require.NoError(t, err)
			require.False(t, changed)
			require.Equal(t, status, p.Status)
		}
	})
}

func TestApplyRefund(t *testing.T) {
	t.Run("partial keeps completed", func(t *testing.T) {
		p := paymentIn(types.PaymentStatusCompleted)
		changed, err := Apply(p, Event{Type: EventRefundApplied, RefundAmount: decimal.NewFromFloat(40)})
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, types.PaymentStatusCompleted, p.Status)
		require.True(t, p.RefundedAmount.Equal(decimal.NewFromFloat(40)))
		require.Nil(t, p.RefundedAt)
	})

	t.Run("final partial reaches refunded", func(t *testing.T) {
		p := paymentIn(types.PaymentStatusCompleted)
		p.RefundedAmount = decimal.NewFromFloat(40)
		changed, err := Apply(p, Event{Type: EventRefundApplied, RefundAmount: decimal.NewFromFloat(60)})
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, types.PaymentStatusRefunded, p.Status)
		require.True(t, p.RefundedAmount.Equal(p.Amount))
		require.NotNil(t, p.RefundedAt)
	})

	t.Run("over-refund rejected and state unchanged", func(t *testing.T) {
		p := paymentIn(types.PaymentStatusCompleted)
		p.RefundedAmount = decimal.NewFromFloat(95)
		before := *p
		changed, err := Apply(p, Event{Type: EventRefundApplied, RefundAmount: decimal.NewFromFloat(10)})
		require.Error(t, err)
		require.Equal(t, errs.KindInvalidAmount, errs.KindOf(err))
		require.False(t, changed)
		require.Equal(t, before, *p)
	})

	t.Run("non-positive amounts rejected", func(t *testing.T) {
		p := paymentIn(types.PaymentStatusCompleted)
		_, err := Apply(p, Event{Type: EventRefundApplied, RefundAmount: decimal.Zero})
		require.Equal(t, errs.KindInvalidAmount, errs.KindOf(err))
		_, err = Apply(p, Event{Type: EventRefundApplied, RefundAmount: decimal.NewFromFloat(-5)})
		require.Equal(t, errs.KindInvalidAmount, errs.KindOf(err))
	})
}
