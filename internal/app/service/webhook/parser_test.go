package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/austa/payments/internal/app/service/payment"
	"github.com/austa/payments/pkg/types"
)

func TestParsePix(t *testing.T) {
	raw := []byte(`{
		"event_id": "evt-pix-001",
		"type": "payment.updated",
		"data": {
			"id": "pix-123",
			"status": "approved",
			"date_approved": "2026-03-01T12:00:00Z"
		}
	}`)

	n, err := parsePix(raw)
	require.NoError(t, err)
	require.Equal(t, "evt-pix-001", n.EventID)
	require.Equal(t, "pix-123", n.GatewayPaymentID)
	require.Equal(t, types.PaymentStatusCompleted, n.Status)
	require.Equal(t, 2026, n.OccurredAt.Year())
}

func TestParsePixRejection(t *testing.T) {
	raw := []byte(`{
		"event_id": "evt-pix-002",
		"data": {"id": "pix-124", "status": "rejected", "status_detail": "cc_rejected_insufficient_amount"}
	}`)

	n, err := parsePix(raw)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusFailed, n.Status)
	require.Equal(t, "cc_rejected_insufficient_amount", n.FailureReason)
	require.Equal(t, "rejected", n.FailureCode)
}

func TestParsePixMalformed(t *testing.T) {
	_, err := parsePix([]byte(`not json`))
	require.Error(t, err)

	_, err = parsePix([]byte(`{"type":"payment.updated","data":{"status":"approved"}}`))
	require.Error(t, err)
}

func TestParseBoleto(t *testing.T) {
	raw := []byte(`{
		"notificationCode": "NOTIF-777",
		"code": "boleto-55",
		"status": "paid",
		"paidAt": "2026-03-02T09:30:00-03:00"
	}`)

	n, err := parseBoleto(raw)
	require.NoError(t, err)
	require.Equal(t, "NOTIF-777", n.EventID)
	require.Equal(t, "boleto-55", n.GatewayPaymentID)
	require.Equal(t, types.PaymentStatusCompleted, n.Status)
	require.False(t, n.OccurredAt.IsZero())
}

func TestParseCard(t *testing.T) {
	raw := []byte(`{
		"id": "evt_1AbCdE",
		"type": "charge.updated",
		"data": {"object": {"id": "ch_99", "status": "declined", "failure_code": "card_declined", "failure_message": "Your card was declined."}}
	}`)

	n, err := parseCard(raw)
	require.NoError(t, err)
	require.Equal(t, "evt_1AbCdE", n.EventID)
	require.Equal(t, "ch_99", n.GatewayPaymentID)
	require.Equal(t, types.PaymentStatusFailed, n.Status)
	require.Equal(t, "card_declined", n.FailureCode)
	require.Equal(t, "Your card was declined.", n.FailureReason)
}

func TestParserFor(t *testing.T) {
	for _, name := range []string{"pix", "boleto", "card"} {
		_, ok := parserFor(name)
		require.True(t, ok, name)
	}
	_, ok := parserFor("paypal")
	require.False(t, ok)
}

func TestEventTypeFor(t *testing.T) {
	cases := map[types.PaymentStatus]payment.EventType{
		types.PaymentStatusCompleted:  payment.EventCompleted,
		types.PaymentStatusFailed:     payment.EventFailed,
		types.PaymentStatusCancelled:  payment.EventCancelled,
		types.PaymentStatusRefunded:   payment.EventRefundApplied,
		types.PaymentStatusProcessing: payment.EventProcessingStarted,
		types.PaymentStatusPending:    payment.EventProcessingStarted,
	}
	for status, want := range cases {
		require.Equal(t, want, eventTypeFor(status), string(status))
	}
}
