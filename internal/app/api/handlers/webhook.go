package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	webhooksvc "github.com/austa/payments/internal/app/service/webhook"
	"github.com/austa/payments/pkg/types"
)

// maxWebhookBody bounds how much of a notification we read; providers send
// small JSON documents.
const maxWebhookBody = 1 << 20

// Per-provider signature header contracts.
const (
	pixSignatureHeader  = "X-Signature"
	boletoTokenHeader   = "X-Authenticity-Token"
	cardSignatureHeader = "X-Webhook-Signature"
)

// webhookEndpoint builds one provider endpoint. The body is read raw and
// verified before parsing; the response code is what drives provider
// retries: 401 for a bad signature, 2xx only after durable apply, any other
// failure non-2xx so the provider tries again.
func webhookEndpoint(svc *webhooksvc.Service, log *zap.SugaredLogger, gatewayName, signatureHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		res, err := svc.Ingest(c.Request.Context(), gatewayName, raw, c.GetHeader(signatureHeader))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"received":  true,
			"duplicate": res.Duplicate,
			"orphaned":  res.Orphaned,
		})
	}
}

// @Summary      PIX webhook
// @Description  Receives instant-transfer notifications. Authenticated by the timestamped HMAC in X-Signature.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Router       /webhooks/pix [post]
func ApiPixWebhook(svc *webhooksvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return webhookEndpoint(svc, log, string(types.PaymentGatewayPix), pixSignatureHeader)
}

// @Summary      Boleto webhook
// @Description  Receives bank-slip notifications. Authenticated by the shared-secret token in X-Authenticity-Token.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Router       /webhooks/boleto [post]
func ApiBoletoWebhook(svc *webhooksvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return webhookEndpoint(svc, log, string(types.PaymentGatewayBoleto), boletoTokenHeader)
}

// @Summary      Card webhook
// @Description  Receives card acquirer notifications. Authenticated by the HMAC in X-Webhook-Signature.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Router       /webhooks/card [post]
func ApiCardWebhook(svc *webhooksvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return webhookEndpoint(svc, log, string(types.PaymentGatewayCard), cardSignatureHeader)
}

func RegisterWebhookRoutes(r gin.IRouter, svc *webhooksvc.Service, log *zap.SugaredLogger) {
	r.POST("/pix", ApiPixWebhook(svc, log))
	r.POST("/boleto", ApiBoletoWebhook(svc, log))
	r.POST("/card", ApiCardWebhook(svc, log))
}
