package reconciliation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/austa/payments/internal/gateway"
	"github.com/austa/payments/internal/models"
	"github.com/austa/payments/pkg/types"
)

const stuckAfter = 24 * time.Hour

func inFlightPayment(age time.Duration) *models.Payment {
	now := time.Now()
	return &models.Payment{
		ID:               "pay-1",
		Status:           types.PaymentStatusProcessing,
		Amount:           decimal.NewFromFloat(250.00),
		GatewayPaymentID: "gw-1",
		CreatedAt:        now.Add(-age),
	}
}

func TestCompare(t *testing.T) {
	now := time.Now()

	t.Run("agreement is clean", func(t *testing.T) {
		p := inFlightPayment(2 * time.Hour)
		remote := &gateway.StatusResult{
			Found:  true,
			Status: types.PaymentStatusProcessing,
			Amount: decimal.NewFromFloat(250.00),
		}
		require.Nil(t, compare(p, remote, now, stuckAfter))
	})

	t.Run("unknown on provider side", func(t *testing.T) {
		p := inFlightPayment(2 * time.Hour)
		f := compare(p, &gateway.StatusResult{Found: false}, now, stuckAfter)
		require.NotNil(t, f)
		require.Equal(t, types.DiscrepancyKindUnmatched, f.kind)
		require.Nil(t, f.proposedStatus)
	})

	t.Run("amount drift", func(t *testing.T) {
		p := inFlightPayment(2 * time.Hour)
		remote := &gateway.StatusResult{
			Found:  true,
			Status: types.PaymentStatusProcessing,
			Amount: decimal.NewFromFloat(249.00),
		}
		f := compare(p, remote, now, stuckAfter)
		require.NotNil(t, f)
		require.Equal(t, types.DiscrepancyKindAmountMismatch, f.kind)
		require.True(t, f.actualAmount.Equal(decimal.NewFromFloat(249.00)))
	})

	t.Run("status drift proposes, never corrects", func(t *testing.T) {
		p := inFlightPayment(2 * time.Hour)
		before := *p
		remote := &gateway.StatusResult{
			Found:  true,
			Status: types.PaymentStatusCompleted,
			Amount: decimal.NewFromFloat(250.00),
		}
		f := compare(p, remote, now, stuckAfter)
		require.NotNil(t, f)
		require.Equal(t, types.DiscrepancyKindStatusMismatch, f.kind)
		require.NotNil(t, f.proposedStatus)
		require.Equal(t, types.PaymentStatusCompleted, *f.proposedStatus)
		require.Equal(t, before, *p, "compare must not mutate the payment")
	})

	t.Run("stuck in flight past threshold", func(t *testing.T) {
		p := inFlightPayment(25 * time.Hour)
		remote := &gateway.StatusResult{
			Found:  true,
			Status: types.PaymentStatusProcessing,
			Amount: decimal.NewFromFloat(250.00),
		}
		f := compare(p, remote, now, stuckAfter)
		require.NotNil(t, f)
		require.Equal(t, types.DiscrepancyKindStuckPayment, f.kind)
		require.NotNil(t, f.proposedStatus)
		require.Equal(t, types.PaymentStatusFailed, *f.proposedStatus)
	})

	t.Run("stuck detection disabled", func(t *testing.T) {
		p := inFlightPayment(25 * time.Hour)
		remote := &gateway.StatusResult{
			Found:  true,
			Status: types.PaymentStatusProcessing,
			Amount: decimal.NewFromFloat(250.00),
		}
		require.Nil(t, compare(p, remote, now, 0))
	})
}

func TestEventForProposedStatus(t *testing.T) {
	require.Equal(t, "COMPLETED", string(eventForProposedStatus(types.PaymentStatusCompleted)))
	require.Equal(t, "FAILED", string(eventForProposedStatus(types.PaymentStatusFailed)))
	require.Equal(t, "CANCELLED", string(eventForProposedStatus(types.PaymentStatusCancelled)))
	require.Equal(t, "PROCESSING_STARTED", string(eventForProposedStatus(types.PaymentStatusProcessing)))
}
