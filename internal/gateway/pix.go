package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/austa/payments/pkg/config"
	"github.com/austa/payments/pkg/tool"
	"github.com/austa/payments/pkg/types"
)

// PixClient drives the instant-transfer provider. Its webhook scheme is the
// timestamped HMAC ("t=...,v1=...") variant.
type PixClient struct {
	http *providerHTTP
	cfg  config.GatewayConfig
	log  *zap.SugaredLogger
}

func NewPixClient(cfg config.GatewayConfig, log *zap.SugaredLogger) *PixClient {
	return &PixClient{
		http: newProviderHTTP(string(types.PaymentGatewayPix), cfg, log),
		cfg:  cfg,
		log:  log,
	}
}

func (c *PixClient) Name() string { return string(types.PaymentGatewayPix) }

type pixCreateRequest struct {
	ExternalReference string `json:"external_reference"`
	Amount            string `json:"transaction_amount"`
	Currency          string `json:"currency"`
	PixKey            string `json:"pix_key,omitempty"`
	PayerEmail        string `json:"payer_email,omitempty"`
	PayerDocument     string `json:"payer_document,omitempty"`
	Description       string `json:"description,omitempty"`
}

type pixCreateResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	QrCode       string `json:"qr_code"`
	QrCodeBase64 string `json:"qr_code_base64"`
	ExpiresAt    string `json:"expires_at"`
}

func (c *PixClient) Initiate(ctx context.Context, req *InitiateRequest) (*Handle, error) {
	if !c.http.configured() {
		return c.simulatedHandle(req), nil
	}

	body := pixCreateRequest{
		ExternalReference: req.TransactionID,
		Amount:            req.Amount.StringFixed(2),
		Currency:          req.Currency,
		PixKey:            req.PixKey,
		PayerEmail:        req.PayerEmail,
		PayerDocument:     req.PayerDocument,
		Description:       fmt.Sprintf("policy %s", req.PolicyNumber),
	}
	var resp pixCreateResponse
	if err := c.http.doJSON(ctx, http.MethodPost, "/v1/payments", req.IdempotencyKey, body, &resp); err != nil {
		return nil, err
	}

	h := &Handle{
		Gateway:          c.Name(),
		GatewayPaymentID: resp.ID,
		PixQrCode:        resp.QrCode,
		PixQrCodeBase64:  resp.QrCodeBase64,
	}
	if resp.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, resp.ExpiresAt); err == nil {
			h.PixExpiration = &t
		}
	}
	return h, nil
}

func (c *PixClient) Cancel(ctx context.Context, gatewayPaymentID string) error {
	if !c.http.configured() {
		return nil
	}
	return c.http.doJSON(ctx, http.MethodPut, "/v1/payments/"+gatewayPaymentID+"/cancel", gatewayPaymentID, nil, nil)
}

func (c *PixClient) Refund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, idempotencyKey string) (*RefundHandle, error) {
	if !c.http.configured() {
		return &RefundHandle{GatewayRefundID: "pix-refund-" + tool.GenerateUUIDV7(), Amount: amount}, nil
	}
	body := map[string]string{"amount": amount.StringFixed(2)}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.http.doJSON(ctx, http.MethodPost, "/v1/payments/"+gatewayPaymentID+"/refunds", idempotencyKey, body, &resp); err != nil {
		return nil, err
	}
	return &RefundHandle{GatewayRefundID: resp.ID, Amount: amount}, nil
}

func (c *PixClient) Status(ctx context.Context, gatewayPaymentID string) (*StatusResult, error) {
	if !c.http.configured() {
		return &StatusResult{Found: false}, nil
	}
	var resp struct {
		Status string `json:"status"`
		Amount string `json:"transaction_amount"`
	}
	err := c.http.doJSON(ctx, http.MethodGet, "/v1/payments/"+gatewayPaymentID, "", nil, &resp)
	if err != nil {
		var statusErr *httpStatusError
		if ok := asStatusError(err, &statusErr); ok && statusErr.status == http.StatusNotFound {
			return &StatusResult{Found: false}, nil
		}
		return nil, err
	}
	out := &StatusResult{Found: true, Status: MapPixStatus(resp.Status)}
	if amt, err := decimal.NewFromString(resp.Amount); err == nil {
		out.Amount = amt
	}
	return out, nil
}

func (c *PixClient) VerifySignature(payload []byte, signatureHeader string, at time.Time) bool {
	return VerifyTimestampedHMAC(payload, signatureHeader, c.cfg.WebhookSecret, at)
}

// MapPixStatus translates the provider vocabulary into the canonical states.
func MapPixStatus(s string) types.PaymentStatus {
	switch s {
	case "approved", "accredited":
		return types.PaymentStatusCompleted
	case "pending", "in_process":
		return types.PaymentStatusProcessing
	case "rejected", "expired":
		return types.PaymentStatusFailed
	case "cancelled":
		return types.PaymentStatusCancelled
	case "refunded":
		return types.PaymentStatusRefunded
	default:
		return types.PaymentStatusProcessing
	}
}

// simulatedHandle produces dev-mode artifacts when no provider endpoint is
// configured. Initiation only; signature verification never simulates.
func (c *PixClient) simulatedHandle(req *InitiateRequest) *Handle {
	c.log.Warnw("pix gateway not configured, using simulated response", "transaction_id", req.TransactionID)
	exp := time.Now().Add(24 * time.Hour)
	emv := fmt.Sprintf("00020126360014BR.GOV.BCB.PIX0114%s5204000053039865406%s5802BR6304",
		req.TransactionID, req.Amount.StringFixed(2))
	return &Handle{
		Gateway:          c.Name(),
		GatewayPaymentID: "pix-sim-" + tool.GenerateUUIDV7(),
		PixQrCode:        emv,
		PixQrCodeBase64:  base64.StdEncoding.EncodeToString([]byte(emv)),
		PixExpiration:    &exp,
	}
}
