package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/austa/payments/pkg/config"
	"github.com/austa/payments/pkg/tool"
	"github.com/austa/payments/pkg/types"
)

// CardClient drives the card acquirer. Its webhook scheme is the plain
// hex-encoded HMAC-SHA256 over the body.
type CardClient struct {
	http *providerHTTP
	cfg  config.GatewayConfig
	log  *zap.SugaredLogger
}

func NewCardClient(cfg config.GatewayConfig, log *zap.SugaredLogger) *CardClient {
	return &CardClient{
		http: newProviderHTTP(string(types.PaymentGatewayCard), cfg, log),
		cfg:  cfg,
		log:  log,
	}
}

func (c *CardClient) Name() string { return string(types.PaymentGatewayCard) }

type cardChargeRequest struct {
	Reference    string `json:"reference"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	CardToken    string `json:"card_token"`
	Installments int    `json:"installments"`
}

type cardChargeResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	CardLastFour string `json:"card_last_four"`
	CardBrand    string `json:"card_brand"`
}

func (c *CardClient) Initiate(ctx context.Context, req *InitiateRequest) (*Handle, error) {
	if !c.http.configured() {
		return c.simulatedHandle(req), nil
	}

	installments := req.Installments
	if installments <= 0 {
		installments = 1
	}
	body := cardChargeRequest{
		Reference:    req.TransactionID,
		Amount:       req.Amount.StringFixed(2),
		Currency:     req.Currency,
		CardToken:    req.CardToken,
		Installments: installments,
	}
	var resp cardChargeResponse
	if err := c.http.doJSON(ctx, http.MethodPost, "/v1/charges", req.IdempotencyKey, body, &resp); err != nil {
		return nil, err
	}
	return &Handle{
		Gateway:          c.Name(),
		GatewayPaymentID: resp.ID,
		CardLastFour:     resp.CardLastFour,
		CardBrand:        resp.CardBrand,
	}, nil
}

func (c *CardClient) Cancel(ctx context.Context, gatewayPaymentID string) error {
	if !c.http.configured() {
		return nil
	}
	return c.http.doJSON(ctx, http.MethodPost, "/v1/charges/"+gatewayPaymentID+"/void", gatewayPaymentID, nil, nil)
}

func (c *CardClient) Refund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, idempotencyKey string) (*RefundHandle, error) {
	if !c.http.configured() {
		return &RefundHandle{GatewayRefundID: "card-refund-" + tool.GenerateUUIDV7(), Amount: amount}, nil
	}
	body := map[string]string{"amount": amount.StringFixed(2)}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.http.doJSON(ctx, http.MethodPost, "/v1/charges/"+gatewayPaymentID+"/refunds", idempotencyKey, body, &resp); err != nil {
		return nil, err
	}
	return &RefundHandle{GatewayRefundID: resp.ID, Amount: amount}, nil
}

func (c *CardClient) Status(ctx context.Context, gatewayPaymentID string) (*StatusResult, error) {
	if !c.http.configured() {
		return &StatusResult{Found: false}, nil
	}
	var resp struct {
		Status string `json:"status"`
		Amount string `json:"amount"`
	}
	err := c.http.doJSON(ctx, http.MethodGet, "/v1/charges/"+gatewayPaymentID, "", nil, &resp)
	if err != nil {
		var statusErr *httpStatusError
		if ok := asStatusError(err, &statusErr); ok && statusErr.status == http.StatusNotFound {
			return &StatusResult{Found: false}, nil
		}
		return nil, err
	}
	out := &StatusResult{Found: true, Status: MapCardStatus(resp.Status)}
	if amt, err := decimal.NewFromString(resp.Amount); err == nil {
		out.Amount = amt
	}
	return out, nil
}

func (c *CardClient) VerifySignature(payload []byte, signatureHeader string, at time.Time) bool {
	return VerifyPlainHMAC(payload, signatureHeader, c.cfg.WebhookSecret)
}

// MapCardStatus translates the acquirer vocabulary into the canonical states.
func MapCardStatus(s string) types.PaymentStatus {
	switch s {
	case "succeeded", "captured":
		return types.PaymentStatusCompleted
	case "processing", "authorized":
		return types.PaymentStatusProcessing
	case "failed", "declined":
		return types.PaymentStatusFailed
	case "voided":
		return types.PaymentStatusCancelled
	case "refunded":
		return types.PaymentStatusRefunded
	default:
		return types.PaymentStatusProcessing
	}
}

func (c *CardClient) simulatedHandle(req *InitiateRequest) *Handle {
	c.log.Warnw("card gateway not configured, using simulated response", "transaction_id", req.TransactionID)
	return &Handle{
		Gateway:          c.Name(),
		GatewayPaymentID: "card-sim-" + tool.GenerateUUIDV7(),
		CardLastFour:     "4242",
		CardBrand:        "visa",
	}
}
