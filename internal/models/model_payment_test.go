package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/austa/payments/pkg/types"
)

func TestRemainingRefundable(t *testing.T) {
	p := &Payment{
		Amount:         decimal.RequireFromString("100.00"),
		RefundedAmount: decimal.RequireFromString("40.00"),
	}
	require.True(t, p.RemainingRefundable().Equal(decimal.RequireFromString("60.00")))
}

func TestExpiresAtFollowsMethod(t *testing.T) {
	pixExp := time.Now().Add(time.Hour)
	boletoDue := time.Now().Add(72 * time.Hour)

	pix := &Payment{Method: types.PaymentMethodPix, PixExpiration: &pixExp, BoletoDueDate: &boletoDue}
	require.Equal(t, &pixExp, pix.ExpiresAt())

	boleto := &Payment{Method: types.PaymentMethodBoleto, BoletoDueDate: &boletoDue}
	require.Equal(t, &boletoDue, boleto.ExpiresAt())

	card := &Payment{Method: types.PaymentMethodCreditCard}
	require.Nil(t, card.ExpiresAt())
	require.False(t, card.Expired(time.Now().Add(1000*time.Hour)))
}

func TestExpired(t *testing.T) {
	exp := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	p := &Payment{Method: types.PaymentMethodPix, PixExpiration: &exp}
	require.False(t, p.Expired(exp.Add(-time.Minute)))
	require.True(t, p.Expired(exp.Add(time.Minute)))
}

func TestMaskedFields(t *testing.T) {
	p := &Payment{
		PolicyNumber:  "POL-2024-001234",
		BeneficiaryID: "BEN-998877",
		TransactionID: "TXN-A1B2C3D4E5F60708",
	}
	require.Equal(t, "****1234", p.MaskedPolicyNumber())
	require.Equal(t, "****8877", p.MaskedBeneficiaryID())
	require.Equal(t, "TXN-A1B2...0708", p.MaskedTransactionID())
}
