package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/austa/payments/pkg/config"
	"github.com/austa/payments/pkg/errs"
	"github.com/austa/payments/pkg/types"
)

// InitiateRequest carries everything a provider needs to open a payment.
type InitiateRequest struct {
	PaymentID     string
	TransactionID string
	PolicyNumber  string
	Amount        decimal.Decimal
	Currency      string
	Method        types.PaymentMethod

	PayerName     string
	PayerEmail    string
	PayerDocument string

	// Rail-specific inputs.
	PixKey        string
	BoletoDueDate *time.Time
	CardToken     string
	Installments  int

	// IdempotencyKey is forwarded to the provider so retried initiations
	// never open a second charge.
	IdempotencyKey string
}

// Handle is the provider's acknowledgement of a payment attempt, including
// the rail-specific artifacts the caller exposes to the payer.
type Handle struct {
	Gateway          string
	GatewayPaymentID string

	PixQrCode       string
	PixQrCodeBase64 string
	PixExpiration   *time.Time

	BoletoBarcode string
	BoletoURL     string
	BoletoDueDate *time.Time

	CardLastFour string
	CardBrand    string
}

// RefundHandle references a provider-side refund.
type RefundHandle struct {
	GatewayRefundID string
	Amount          decimal.Decimal
}

// StatusResult is the provider's authoritative view of a payment, consumed
// by reconciliation.
type StatusResult struct {
	Found  bool
	Status types.PaymentStatus
	Amount decimal.Decimal
}

// Client is the uniform capability surface over one payment provider.
// Implementations own their timeout and retry policy; blocked outbound calls
// respect ctx and never exceed the configured bound.
type Client interface {
	Name() string
	Initiate(ctx context.Context, req *InitiateRequest) (*Handle, error)
	Cancel(ctx context.Context, gatewayPaymentID string) error
	Refund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, idempotencyKey string) (*RefundHandle, error)
	Status(ctx context.Context, gatewayPaymentID string) (*StatusResult, error)

	// VerifySignature authenticates a webhook payload against the raw bytes
	// received. It is a pure function of (payload, signature, secret) and
	// fails closed when the secret is unconfigured.
	VerifySignature(payload []byte, signatureHeader string, at time.Time) bool
}

// Factory selects the provider client for a payment method.
type Factory struct {
	byMethod map[types.PaymentMethod]Client
	byName   map[string]Client
}

func NewFactory(cfg *config.Config, log *zap.SugaredLogger) *Factory {
	pix := NewPixClient(cfg.Pix, log)
	boleto := NewBoletoClient(cfg.Boleto, log)
	card := NewCardClient(cfg.Card, log)

	f := &Factory{
		byMethod: map[types.PaymentMethod]Client{
			types.PaymentMethodPix:        pix,
			types.PaymentMethodBoleto:     boleto,
			types.PaymentMethodCreditCard: card,
		},
		byName: map[string]Client{},
	}
	for _, c := range []Client{pix, boleto, card} {
		f.byName[c.Name()] = c
	}
	return f
}

func (f *Factory) ForMethod(m types.PaymentMethod) (Client, error) {
	c, ok := f.byMethod[m]
	if !ok {
		return nil, errs.InvalidState("unsupported payment method: %s", m)
	}
	return c, nil
}

func (f *Factory) ByName(name string) (Client, error) {
	c, ok := f.byName[name]
	if !ok {
		return nil, errs.NotFound("unknown gateway: %s", name)
	}
	return c, nil
}

var Module = fx.Options(
	fx.Provide(NewFactory),
)
