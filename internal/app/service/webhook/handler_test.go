package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/austa/payments/internal/app/service/payment"
	"github.com/austa/payments/internal/gateway"
	"github.com/austa/payments/internal/models"
	"github.com/austa/payments/pkg/config"
	"github.com/austa/payments/pkg/metrics"
	"github.com/austa/payments/pkg/tool"
	"github.com/austa/payments/pkg/types"
)

const ingestTestSecret = "whsec_card_test"

// newIngestHarness wires the ingestion pipeline onto an in-memory database.
// The card rail is used because its plain-HMAC scheme needs no timestamp
// bookkeeping in fixtures.
func newIngestHarness(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Payment{}, &models.WebhookEvent{}))

	cfg := &config.Config{Card: config.GatewayConfig{WebhookSecret: ingestTestSecret}}
	log := zap.NewNop().Sugar()
	m := metrics.NewDomain()
	gateways := gateway.NewFactory(cfg, log)
	paymentSvc := payment.NewService(cfg, log, db, gateways, m)
	return NewService(log, db, gateways, paymentSvc, m), db
}

func signCardBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(ingestTestSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func seedProcessingPayment(t *testing.T, db *gorm.DB, gatewayPaymentID string) *models.Payment {
	t.Helper()
	p := &models.Payment{
		ID:               tool.GenerateUUIDV7(),
		PolicyNumber:     "POL-2024-001",
		BeneficiaryID:    "BEN-42",
		Method:           types.PaymentMethodCreditCard,
		Status:           types.PaymentStatusProcessing,
		Amount:           decimal.NewFromFloat(150.00),
		Currency:         "BRL",
		GatewayName:      string(types.PaymentGatewayCard),
		GatewayPaymentID: gatewayPaymentID,
		TransactionID:    "TXN-" + tool.GenerateUUIDV7(),
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func TestIngestDuplicateDeliveryAcksWithoutReapply(t *testing.T) {
	svc, db := newIngestHarness(t)
	seeded := seedProcessingPayment(t, db, "ch_dup_1")

	body := []byte(`{"id":"evt_dup_1","type":"charge.updated","data":{"object":{"id":"ch_dup_1","status":"succeeded"}}}`)
	header := signCardBody(body)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, string(types.PaymentGatewayCard), body, header)
	require.NoError(t, err)
	require.True(t, first.Applied)
	require.False(t, first.Duplicate)
	require.Equal(t, seeded.ID, first.PaymentID)

	var after models.Payment
	require.NoError(t, db.First(&after, "id = ?", seeded.ID).Error)
	require.Equal(t, types.PaymentStatusCompleted, after.Status)
	require.NotNil(t, after.PaidAt)

	second, err := svc.Ingest(ctx, string(types.PaymentGatewayCard), body, header)
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.False(t, second.Applied)

	var replayed models.Payment
	require.NoError(t, db.First(&replayed, "id = ?", seeded.ID).Error)
	require.Equal(t, after.Status, replayed.Status)
	require.Equal(t, after.Version, replayed.Version)
	require.Equal(t, after.PaidAt.UTC(), replayed.PaidAt.UTC())

	var events int64
	require.NoError(t, db.Model(&models.WebhookEvent{}).
		Where("gateway = ? AND event_id = ?", string(types.PaymentGatewayCard), "evt_dup_1").
		Count(&events).Error)
	require.EqualValues(t, 1, events)
}

func TestIngestOrphanedNotificationIsAcked(t *testing.T) {
	svc, db := newIngestHarness(t)

	body := []byte(`{"id":"evt_orphan_1","type":"charge.updated","data":{"object":{"id":"ch_unknown","status":"succeeded"}}}`)
	res, err := svc.Ingest(context.Background(), string(types.PaymentGatewayCard), body, signCardBody(body))
	require.NoError(t, err)
	require.True(t, res.Orphaned)

	var stored models.WebhookEvent
	require.NoError(t, db.First(&stored, "event_id = ?", "evt_orphan_1").Error)
	require.Nil(t, stored.PaymentID)
	require.True(t, stored.Verified)
	require.False(t, stored.AppliedTransition)
}

func TestIngestStaleTransitionAckedWithAuditRow(t *testing.T) {
	svc, db := newIngestHarness(t)
	seeded := seedProcessingPayment(t, db, "ch_stale_1")
	require.NoError(t, db.Model(&models.Payment{}).
		Where("id = ?", seeded.ID).
		Update("status", types.PaymentStatusFailed).Error)

	body := []byte(`{"id":"evt_stale_1","type":"charge.updated","data":{"object":{"id":"ch_stale_1","status":"succeeded"}}}`)
	res, err := svc.Ingest(context.Background(), string(types.PaymentGatewayCard), body, signCardBody(body))
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.False(t, res.Duplicate)

	var after models.Payment
	require.NoError(t, db.First(&after, "id = ?", seeded.ID).Error)
	require.Equal(t, types.PaymentStatusFailed, after.Status)

	var stored models.WebhookEvent
	require.NoError(t, db.First(&stored, "event_id = ?", "evt_stale_1").Error)
	require.False(t, stored.AppliedTransition)
}
