package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/austa/payments/pkg/config"
	"github.com/austa/payments/pkg/tool"
	"github.com/austa/payments/pkg/types"
)

// BoletoClient drives the bank-slip provider. Its webhook scheme is the
// shared-secret MD5 token over the notification code.
type BoletoClient struct {
	http *providerHTTP
	cfg  config.GatewayConfig
	log  *zap.SugaredLogger
}

func NewBoletoClient(cfg config.GatewayConfig, log *zap.SugaredLogger) *BoletoClient {
	return &BoletoClient{
		http: newProviderHTTP(string(types.PaymentGatewayBoleto), cfg, log),
		cfg:  cfg,
		log:  log,
	}
}

func (c *BoletoClient) Name() string { return string(types.PaymentGatewayBoleto) }

type boletoCreateRequest struct {
	Reference     string `json:"reference"`
	Amount        string `json:"amount"`
	DueDate       string `json:"due_date"`
	PayerName     string `json:"payer_name"`
	PayerDocument string `json:"payer_document"`
	MerchantID    string `json:"merchant_id"`
}

type boletoCreateResponse struct {
	Code        string `json:"code"`
	Barcode     string `json:"barcode"`
	DocumentURL string `json:"document_url"`
	Status      string `json:"status"`
}

func (c *BoletoClient) Initiate(ctx context.Context, req *InitiateRequest) (*Handle, error) {
	due := req.BoletoDueDate
	if due == nil {
		d := time.Now().Add(72 * time.Hour)
		due = &d
	}
	if !c.http.configured() {
		return c.simulatedHandle(req, *due), nil
	}

	body := boletoCreateRequest{
		Reference:     req.TransactionID,
		Amount:        req.Amount.StringFixed(2),
		DueDate:       due.Format("2006-01-02"),
		PayerName:     req.PayerName,
		PayerDocument: req.PayerDocument,
		MerchantID:    c.cfg.MerchantID,
	}
	var resp boletoCreateResponse
	if err := c.http.doJSON(ctx, http.MethodPost, "/v2/boletos", req.IdempotencyKey, body, &resp); err != nil {
		return nil, err
	}
	return &Handle{
		Gateway:          c.Name(),
		GatewayPaymentID: resp.Code,
		BoletoBarcode:    resp.Barcode,
		BoletoURL:        resp.DocumentURL,
		BoletoDueDate:    due,
	}, nil
}

func (c *BoletoClient) Cancel(ctx context.Context, gatewayPaymentID string) error {
	if !c.http.configured() {
		return nil
	}
	return c.http.doJSON(ctx, http.MethodPost, "/v2/boletos/"+gatewayPaymentID+"/cancel", gatewayPaymentID, nil, nil)
}

// Refund issues a reversal for a settled slip. The provider pays it back
// through a bank transfer on their side.
func (c *BoletoClient) Refund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, idempotencyKey string) (*RefundHandle, error) {
	if !c.http.configured() {
		return &RefundHandle{GatewayRefundID: "boleto-refund-" + tool.GenerateUUIDV7(), Amount: amount}, nil
	}
	body := map[string]string{"amount": amount.StringFixed(2)}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.http.doJSON(ctx, http.MethodPost, "/v2/boletos/"+gatewayPaymentID+"/reversals", idempotencyKey, body, &resp); err != nil {
		return nil, err
	}
	return &RefundHandle{GatewayRefundID: resp.ID, Amount: amount}, nil
}

func (c *BoletoClient) Status(ctx context.Context, gatewayPaymentID string) (*StatusResult, error) {
	if !c.http.configured() {
		return &StatusResult{Found: false}, nil
	}
	var resp struct {
		Status string `json:"status"`
		Amount string `json:"amount"`
	}
	err := c.http.doJSON(ctx, http.MethodGet, "/v2/boletos/"+gatewayPaymentID, "", nil, &resp)
	if err != nil {
		var statusErr *httpStatusError
		if ok := asStatusError(err, &statusErr); ok && statusErr.status == http.StatusNotFound {
			return &StatusResult{Found: false}, nil
		}
		return nil, err
	}
	out := &StatusResult{Found: true, Status: MapBoletoStatus(resp.Status)}
	if amt, err := decimal.NewFromString(resp.Amount); err == nil {
		out.Amount = amt
	}
	return out, nil
}

// VerifySignature authenticates the "code:token" header against the
// notification code carried in the payload itself. The token only proves
// possession for that one code, so the code the body names must be the code
// the token was minted for; otherwise a captured header could be replayed
// over a forged body.
func (c *BoletoClient) VerifySignature(payload []byte, signatureHeader string, at time.Time) bool {
	headerCode, token, ok := strings.Cut(signatureHeader, ":")
	if !ok {
		return false
	}
	var body struct {
		NotificationCode string `json:"notificationCode"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.NotificationCode == "" {
		return false
	}
	if headerCode != body.NotificationCode {
		return false
	}
	return VerifySharedSecretMD5(body.NotificationCode, token, c.cfg.WebhookSecret)
}

// MapBoletoStatus translates the provider vocabulary into the canonical
// states. Slip settlement lags up to two business days, so "registered" and
// "waiting" both stay in flight.
func MapBoletoStatus(s string) types.PaymentStatus {
	switch s {
	case "paid", "settled":
		return types.PaymentStatusCompleted
	case "registered", "waiting":
		return types.PaymentStatusProcessing
	case "expired", "unpaid":
		return types.PaymentStatusFailed
	case "cancelled":
		return types.PaymentStatusCancelled
	case "reversed":
		return types.PaymentStatusRefunded
	default:
		return types.PaymentStatusProcessing
	}
}

func (c *BoletoClient) simulatedHandle(req *InitiateRequest, due time.Time) *Handle {
	c.log.Warnw("boleto gateway not configured, using simulated response", "transaction_id", req.TransactionID)
	code := "boleto-sim-" + tool.GenerateUUIDV7()
	return &Handle{
		Gateway:          c.Name(),
		GatewayPaymentID: code,
		BoletoBarcode:    simulatedBarcode(),
		BoletoURL:        fmt.Sprintf("https://boleto.example.com/documents/%s.pdf", code),
		BoletoDueDate:    &due,
	}
}

// simulatedBarcode emits a 47-digit "linha digitavel" shaped string.
func simulatedBarcode() string {
	var b strings.Builder
	for i := 0; i < 47; i++ {
		fmt.Fprintf(&b, "%d", rand.Intn(10))
	}
	return b.String()
}
