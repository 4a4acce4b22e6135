package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/austa/payments/pkg/config"
	"github.com/austa/payments/pkg/errs"
	"github.com/austa/payments/pkg/types"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestFactorySelection(t *testing.T) {
	f := NewFactory(&config.Config{}, testLogger())

	pix, err := f.ForMethod(types.PaymentMethodPix)
	require.NoError(t, err)
	require.Equal(t, "pix", pix.Name())

	boleto, err := f.ForMethod(types.PaymentMethodBoleto)
	require.NoError(t, err)
	require.Equal(t, "boleto", boleto.Name())

	card, err := f.ForMethod(types.PaymentMethodCreditCard)
	require.NoError(t, err)
	require.Equal(t, "card", card.Name())

	_, err = f.ForMethod(types.PaymentMethod("WIRE"))
	require.Error(t, err)
	require.Equal(t, errs.KindInvalidState, errs.KindOf(err))

	byName, err := f.ByName("card")
	require.NoError(t, err)
	require.Equal(t, card, byName)

	_, err = f.ByName("stripe")
	require.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		mapper func(string) types.PaymentStatus
		in     string
		want   types.PaymentStatus
	}{
		{MapPixStatus, "approved", types.PaymentStatusCompleted},
		{MapPixStatus, "accredited", types.PaymentStatusCompleted},
		{MapPixStatus, "in_process", types.PaymentStatusProcessing},
		{MapPixStatus, "rejected", types.PaymentStatusFailed},
		{MapPixStatus, "cancelled", types.PaymentStatusCancelled},
		{MapPixStatus, "refunded", types.PaymentStatusRefunded},
		{MapPixStatus, "something_new", types.PaymentStatusProcessing},
		{MapBoletoStatus, "paid", types.PaymentStatusCompleted},
		{MapBoletoStatus, "registered", types.PaymentStatusProcessing},
		{MapBoletoStatus, "unpaid", types.PaymentStatusFailed},
		{MapBoletoStatus, "reversed", types.PaymentStatusRefunded},
		{MapCardStatus, "succeeded", types.PaymentStatusCompleted},
		{MapCardStatus, "authorized", types.PaymentStatusProcessing},
		{MapCardStatus, "declined", types.PaymentStatusFailed},
		{MapCardStatus, "voided", types.PaymentStatusCancelled},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.mapper(tc.in), "input %q", tc.in)
	}
}

func TestSimulatedInitiate(t *testing.T) {
	req := &InitiateRequest{
		TransactionID: "TXN-ABCDEF0123456789",
		Amount:        decimal.NewFromFloat(150.50),
		Currency:      "BRL",
	}

	t.Run("pix artifacts", func(t *testing.T) {
		c := NewPixClient(config.GatewayConfig{}, testLogger())
		h, err := c.Initiate(context.Background(), req)
		require.NoError(t, err)
		require.NotEmpty(t, h.GatewayPaymentID)
		require.Contains(t, h.PixQrCode, "BR.GOV.BCB.PIX")
		require.NotEmpty(t, h.PixQrCodeBase64)
		require.NotNil(t, h.PixExpiration)
		require.True(t, h.PixExpiration.After(time.Now()))
	})

	t.Run("boleto artifacts", func(t *testing.T) {
		c := NewBoletoClient(config.GatewayConfig{}, testLogger())
		h, err := c.Initiate(context.Background(), req)
		require.NoError(t, err)
		require.Regexp(t, regexp.MustCompile(`^\d{47}$`), h.BoletoBarcode)
		require.NotEmpty(t, h.BoletoURL)
		require.NotNil(t, h.BoletoDueDate)
	})

	t.Run("card brand", func(t *testing.T) {
		c := NewCardClient(config.GatewayConfig{}, testLogger())
		h, err := c.Initiate(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, "4242", h.CardLastFour)
		require.Equal(t, "visa", h.CardBrand)
	})
}

// VerifySignature must fail closed even when initiation runs simulated.
func TestSimulatedModeStillFailsClosedOnSignatures(t *testing.T) {
	f := NewFactory(&config.Config{}, testLogger())
	for _, name := range []string{"pix", "boleto", "card"} {
		c, err := f.ByName(name)
		require.NoError(t, err)
		require.False(t, c.VerifySignature([]byte(`{}`), "t=1,v1=deadbeef", time.Now()), name)
	}
}

func TestDoJSONRetryPolicy(t *testing.T) {
	t.Run("retries 5xx then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
			require.Equal(t, "idem-1", r.Header.Get("X-Idempotency-Key"))
			w.Write([]byte(`{"id":"ok"}`))
		}))
		defer srv.Close()

		p := newProviderHTTP("pix", config.GatewayConfig{BaseURL: srv.URL, APIKey: "key", MaxRetries: 2}, testLogger())
		var out struct {
			ID string `json:"id"`
		}
		err := p.doJSON(context.Background(), http.MethodPost, "/v1/payments", "idem-1", map[string]string{"a": "b"}, &out)
		require.NoError(t, err)
		require.Equal(t, "ok", out.ID)
		require.EqualValues(t, 2, calls.Load())
	})

	t.Run("4xx is final", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		p := newProviderHTTP("pix", config.GatewayConfig{BaseURL: srv.URL, APIKey: "key", MaxRetries: 3}, testLogger())
		err := p.doJSON(context.Background(), http.MethodPost, "/v1/payments", "idem-2", nil, nil)
		require.Error(t, err)
		require.EqualValues(t, 1, calls.Load())

		var statusErr *httpStatusError
		require.True(t, asStatusError(err, &statusErr))
		require.Equal(t, http.StatusUnprocessableEntity, statusErr.status)
	})

	t.Run("non-GET without idempotency key gets one attempt", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		p := newProviderHTTP("card", config.GatewayConfig{BaseURL: srv.URL, APIKey: "key", MaxRetries: 3}, testLogger())
		err := p.doJSON(context.Background(), http.MethodPost, "/v1/charges", "", nil, nil)
		require.Error(t, err)
		require.Equal(t, errs.KindGatewayUnavailable, errs.KindOf(err))
		require.EqualValues(t, 1, calls.Load())
	})

	t.Run("exhaustion maps to gateway unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		p := newProviderHTTP("boleto", config.GatewayConfig{BaseURL: srv.URL, APIKey: "key", MaxRetries: 1}, testLogger())
		err := p.doJSON(context.Background(), http.MethodGet, "/v2/boletos/b1", "", nil, nil)
		require.Error(t, err)
		require.Equal(t, errs.KindGatewayUnavailable, errs.KindOf(err))
	})
}
