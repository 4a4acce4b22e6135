package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	webhooksvc "github.com/austa/payments/internal/app/service/webhook"
	"github.com/austa/payments/internal/gateway"
	"github.com/austa/payments/pkg/config"
	"github.com/austa/payments/pkg/metrics"
)

func webhookRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop().Sugar()
	// Unconfigured providers: every signature must be rejected before any
	// storage is touched, so the nil dependencies are never reached.
	factory := gateway.NewFactory(&config.Config{}, log)
	svc := webhooksvc.NewService(log, nil, factory, nil, metrics.NewDomain())

	r := gin.New()
	RegisterWebhookRoutes(r.Group("/webhooks"), svc, log)
	return r
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	r := webhookRouter(t)

	for _, tc := range []struct {
		path   string
		header string
	}{
		{"/webhooks/pix", "X-Signature"},
		{"/webhooks/boleto", "X-Authenticity-Token"},
		{"/webhooks/card", "X-Webhook-Signature"},
	} {
		body := []byte(`{"event_id":"evt-1","data":{"id":"p-1","status":"approved"}}`)
		req := httptest.NewRequest(http.MethodPost, tc.path, bytes.NewReader(body))
		req.Header.Set(tc.header, "t=1,v1=deadbeef")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	r := webhookRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/pix", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
