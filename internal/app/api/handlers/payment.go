package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	paymentsvc "github.com/austa/payments/internal/app/service/payment"
	refundsvc "github.com/austa/payments/internal/app/service/refund"
	"github.com/austa/payments/internal/models"
	"github.com/austa/payments/pkg/errs"
	"github.com/austa/payments/pkg/logctx"
	"github.com/austa/payments/pkg/types"
)

// PaymentResponse is the externally observable payment representation.
// Identifiers are masked; raw artifacts live behind their own endpoints.
type PaymentResponse struct {
	ID             string  `json:"id"`
	PolicyNumber   string  `json:"policy_number"`
	BeneficiaryID  string  `json:"beneficiary_id"`
	Method         string  `json:"method"`
	Status         string  `json:"status"`
	Amount         string  `json:"amount"`
	RefundedAmount string  `json:"refunded_amount"`
	Currency       string  `json:"currency"`
	TransactionID  string  `json:"transaction_id"`
	Installments   int     `json:"installments,omitempty"`
	CardLastFour   string  `json:"card_last_four,omitempty"`
	CardBrand      string  `json:"card_brand,omitempty"`
	FailureReason  string  `json:"failure_reason,omitempty"`
	FailureCode    string  `json:"failure_code,omitempty"`
	PixExpiration  *string `json:"pix_expiration,omitempty"`
	BoletoDueDate  *string `json:"boleto_due_date,omitempty"`
	PaidAt         *string `json:"paid_at,omitempty"`
	RefundedAt     *string `json:"refunded_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func toPaymentResponse(p *models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		PolicyNumber:   p.MaskedPolicyNumber(),
		BeneficiaryID:  p.MaskedBeneficiaryID(),
		Method:         string(p.Method),
		Status:         string(p.Status),
		Amount:         p.Amount.StringFixed(2),
		RefundedAmount: p.RefundedAmount.StringFixed(2),
		Currency:       p.Currency,
		TransactionID:  p.MaskedTransactionID(),
		Installments:   p.Installments,
		CardLastFour:   p.CardLastFour,
		CardBrand:      p.CardBrand,
		FailureReason:  p.FailureReason,
		FailureCode:    p.FailureCode,
		PixExpiration:  rfc3339(p.PixExpiration),
		BoletoDueDate:  rfc3339(p.BoletoDueDate),
		PaidAt:         rfc3339(p.PaidAt),
		RefundedAt:     rfc3339(p.RefundedAt),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

func rfc3339(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// writeError maps the error taxonomy onto HTTP and hides internal detail.
func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logctx.FromGin(c, log).Errorw("request_failed",
			"path", c.FullPath(), "status", status, "err", err)
	}
	c.JSON(status, gin.H{"error": errs.Message(err)})
}

type createPaymentRequest struct {
	PolicyNumber  string          `json:"policy_number" binding:"required"`
	BeneficiaryID string          `json:"beneficiary_id" binding:"required"`
	Method        string          `json:"method" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Currency      string          `json:"currency"`

	PayerName     string `json:"payer_name"`
	PayerEmail    string `json:"payer_email"`
	PayerDocument string `json:"payer_document"`

	Pix *struct {
		Key string `json:"key"`
	} `json:"pix,omitempty"`
	Boleto *struct {
		DueDate *time.Time `json:"due_date"`
	} `json:"boleto,omitempty"`
	Card *struct {
		Token        string `json:"token"`
		Installments int    `json:"installments"`
	} `json:"card,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// @Summary      Create payment
// @Description  Records a new pending payment for a policy. Rail-specific details go in the method sub-object.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body handlers.createPaymentRequest true "Payment creation request"
// @Success      201  {object}  handlers.PaymentResponse
// @Router       /api/v1/payments [post]
func ApiCreatePayment(svc *paymentsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		create := &paymentsvc.CreateRequest{
			PolicyNumber:  req.PolicyNumber,
			BeneficiaryID: req.BeneficiaryID,
			Method:        types.PaymentMethod(req.Method),
			Amount:        req.Amount,
			Currency:      req.Currency,
			PayerName:     req.PayerName,
			PayerEmail:    req.PayerEmail,
			PayerDocument: req.PayerDocument,
			Metadata:      req.Metadata,
		}
		if req.Pix != nil {
			create.PixKey = req.Pix.Key
		}
		if req.Boleto != nil {
			create.BoletoDueDate = req.Boleto.DueDate
		}
		if req.Card != nil {
			create.CardToken = req.Card.Token
			create.Installments = req.Card.Installments
		}

		p, err := svc.Create(c.Request.Context(), create)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, toPaymentResponse(p))
	}
}

// @Summary      Get payment
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      200  {object}  handlers.PaymentResponse
// @Router       /api/v1/payments/{id} [get]
func ApiGetPayment(svc *paymentsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, toPaymentResponse(p))
	}
}

// @Summary      List payments for a policy
// @Tags         Payment
// @Produce      json
// @Param        policyNumber path string true "Policy number"
// @Success      200  {array}  handlers.PaymentResponse
// @Router       /api/v1/payments/policy/{policyNumber} [get]
func ApiListPaymentsByPolicy(svc *paymentsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.ListByPolicy(c.Request.Context(), c.Param("policyNumber"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, lo.Map(rows, func(p *models.Payment, _ int) PaymentResponse {
			return toPaymentResponse(p)
		}))
	}
}

// @Summary      Process payment
// @Description  Submits a pending payment to its provider and moves it to PROCESSING.
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      200  {object}  handlers.PaymentResponse
// @Router       /api/v1/payments/{id}/process [post]
func ApiProcessPayment(svc *paymentsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Process(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, toPaymentResponse(p))
	}
}

// @Summary      Cancel payment
// @Description  Cancels a payment that is still PENDING.
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      200  {object}  handlers.PaymentResponse
// @Router       /api/v1/payments/{id}/cancel [post]
func ApiCancelPayment(svc *paymentsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Cancel(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, toPaymentResponse(p))
	}
}

type refundPaymentRequest struct {
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Reason         string           `json:"reason" binding:"required"`
	Notes          string           `json:"notes"`
	IdempotencyKey string           `json:"idempotency_key" binding:"required"`
}

type refundPaymentResponse struct {
	Payment         PaymentResponse `json:"payment"`
	RefundedAmount  string          `json:"refunded_amount"`
	GatewayRefundID string          `json:"gateway_refund_id"`
	Replayed        bool            `json:"replayed"`
}

// @Summary      Refund payment
// @Description  Refunds part or all of a completed payment. Omitting amount refunds the remaining balance.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID"
// @Param        request body handlers.refundPaymentRequest true "Refund request"
// @Success      200  {object}  handlers.refundPaymentResponse
// @Router       /api/v1/payments/{id}/refund [post]
func ApiRefundPayment(svc *refundsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refundPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := svc.Refund(c.Request.Context(), &refundsvc.Request{
			PaymentID:      c.Param("id"),
			Amount:         req.Amount,
			Reason:         types.RefundReason(req.Reason),
			Notes:          req.Notes,
			RequestedBy:    c.GetString("caller"),
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, refundPaymentResponse{
			Payment:         toPaymentResponse(res.Payment),
			RefundedAmount:  res.RefundedAmount.StringFixed(2),
			GatewayRefundID: res.GatewayRefundID,
			Replayed:        res.Replayed,
		})
	}
}

type pixArtifactsResponse struct {
	QrCode       string  `json:"qr_code"`
	QrCodeBase64 string  `json:"qr_code_base64"`
	ExpiresAt    *string `json:"expires_at,omitempty"`
}

// @Summary      PIX QR code
// @Description  Returns the copy-paste payload and QR image for a PIX payment; 404 for other methods.
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      200  {object}  handlers.pixArtifactsResponse
// @Router       /api/v1/payments/pix/{id}/qrcode [get]
func ApiPixQrCode(svc *paymentsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.PixArtifacts(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, pixArtifactsResponse{
			QrCode:       p.PixQrCode,
			QrCodeBase64: p.PixQrCodeBase64,
			ExpiresAt:    rfc3339(p.PixExpiration),
		})
	}
}

type boletoArtifactsResponse struct {
	Barcode     string  `json:"barcode"`
	DocumentURL string  `json:"document_url"`
	DueDate     *string `json:"due_date,omitempty"`
}

// @Summary      Boleto document
// @Description  Returns the slip barcode and document URL for a boleto payment; 404 for other methods.
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      200  {object}  handlers.boletoArtifactsResponse
// @Router       /api/v1/payments/boleto/{id}/pdf [get]
func ApiBoletoPdf(svc *paymentsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.BoletoArtifacts(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, boletoArtifactsResponse{
			Barcode:     p.BoletoBarcode,
			DocumentURL: p.BoletoURL,
			DueDate:     rfc3339(p.BoletoDueDate),
		})
	}
}

func RegisterPaymentRoutes(r gin.IRouter, paySvc *paymentsvc.Service, refSvc *refundsvc.Service, log *zap.SugaredLogger) {
	r.POST("/payments", ApiCreatePayment(paySvc, log))
	r.GET("/payments/:id", ApiGetPayment(paySvc, log))
	r.GET("/payments/policy/:policyNumber", ApiListPaymentsByPolicy(paySvc, log))
	r.POST("/payments/:id/process", ApiProcessPayment(paySvc, log))
	r.POST("/payments/:id/cancel", ApiCancelPayment(paySvc, log))
	r.POST("/payments/:id/refund", ApiRefundPayment(refSvc, log))
	r.GET("/payments/pix/:id/qrcode", ApiPixQrCode(paySvc, log))
	r.GET("/payments/boleto/:id/pdf", ApiBoletoPdf(paySvc, log))
}
