package webhook

import (
	"encoding/json"
	"time"

	"github.com/austa/payments/internal/gateway"
	"github.com/austa/payments/pkg/errs"
	"github.com/austa/payments/pkg/types"
)

// Notification is the provider-neutral shape the ingestion pipeline works
// with after parsing a raw payload.
type Notification struct {
	EventID          string
	GatewayPaymentID string
	Status           types.PaymentStatus
	RawStatus        string
	FailureReason    string
	FailureCode      string
	OccurredAt       time.Time
}

// parsePix decodes the instant-transfer provider payload:
//
//	{"event_id":"...","type":"payment.updated","data":{"id":"...","status":"approved", ...}}
func parsePix(raw []byte) (*Notification, error) {
	var body struct {
		EventID string `json:"event_id"`
		Type    string `json:"type"`
		Data    struct {
			ID           string `json:"id"`
			Status       string `json:"status"`
			StatusDetail string `json:"status_detail"`
			DateApproved string `json:"date_approved"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errs.InvalidState("malformed pix notification: %v", err)
	}
	if body.EventID == "" || body.Data.ID == "" {
		return nil, errs.InvalidState("pix notification missing event_id or payment id")
	}

	n := &Notification{
		EventID:          body.EventID,
		GatewayPaymentID: body.Data.ID,
		Status:           gateway.MapPixStatus(body.Data.Status),
		RawStatus:        body.Data.Status,
	}
	if n.Status == types.PaymentStatusFailed {
		n.FailureReason = body.Data.StatusDetail
		n.FailureCode = body.Data.Status
	}
	if body.Data.DateApproved != "" {
		if t, err := time.Parse(time.RFC3339, body.Data.DateApproved); err == nil {
			n.OccurredAt = t
		}
	}
	return n, nil
}

// parseBoleto decodes the bank-slip provider payload:
//
//	{"notificationCode":"...","code":"...","status":"paid","paidAt":"..."}
func parseBoleto(raw []byte) (*Notification, error) {
	var body struct {
		NotificationCode string `json:"notificationCode"`
		Code             string `json:"code"`
		Status           string `json:"status"`
		StatusReason     string `json:"statusReason"`
		PaidAt           string `json:"paidAt"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errs.InvalidState("malformed boleto notification: %v", err)
	}
	if body.NotificationCode == "" || body.Code == "" {
		return nil, errs.InvalidState("boleto notification missing notificationCode or code")
	}

	n := &Notification{
		EventID:          body.NotificationCode,
		GatewayPaymentID: body.Code,
		Status:           gateway.MapBoletoStatus(body.Status),
		RawStatus:        body.Status,
	}
	if n.Status == types.PaymentStatusFailed {
		n.FailureReason = body.StatusReason
		n.FailureCode = body.Status
	}
	if body.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, body.PaidAt); err == nil {
			n.OccurredAt = t
		}
	}
	return n, nil
}

// parseCard decodes the card acquirer payload:
//
//	{"id":"evt_...","type":"charge.updated","data":{"object":{"id":"ch_...","status":"succeeded", ...}}}
func parseCard(raw []byte) (*Notification, error) {
	var body struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID             string `json:"id"`
				Status         string `json:"status"`
				FailureCode    string `json:"failure_code"`
				FailureMessage string `json:"failure_message"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errs.InvalidState("malformed card notification: %v", err)
	}
	if body.ID == "" || body.Data.Object.ID == "" {
		return nil, errs.InvalidState("card notification missing event id or charge id")
	}

	n := &Notification{
		EventID:          body.ID,
		GatewayPaymentID: body.Data.Object.ID,
		Status:           gateway.MapCardStatus(body.Data.Object.Status),
		RawStatus:        body.Data.Object.Status,
	}
	if n.Status == types.PaymentStatusFailed {
		n.FailureReason = body.Data.Object.FailureMessage
		n.FailureCode = body.Data.Object.FailureCode
	}
	return n, nil
}

// parserFor wires each provider name to its payload shape.
func parserFor(gatewayName string) (func([]byte) (*Notification, error), bool) {
	switch gatewayName {
	case string(types.PaymentGatewayPix):
		return parsePix, true
	case string(types.PaymentGatewayBoleto):
		return parseBoleto, true
	case string(types.PaymentGatewayCard):
		return parseCard, true
	}
	return nil, false
}
