package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/austa/payments/internal/app/service/payment"
	"github.com/austa/payments/internal/gateway"
	"github.com/austa/payments/internal/models"
	"github.com/austa/payments/pkg/errs"
	"github.com/austa/payments/pkg/logctx"
	"github.com/austa/payments/pkg/metrics"
	"github.com/austa/payments/pkg/tool"
	"github.com/austa/payments/pkg/types"
)

type Service struct {
	log        *zap.SugaredLogger
	db         *gorm.DB
	gateways   *gateway.Factory
	paymentSvc *payment.Service
	metrics    *metrics.Domain
}

func NewService(log *zap.SugaredLogger, db *gorm.DB, gateways *gateway.Factory, paymentSvc *payment.Service, m *metrics.Domain) *Service {
	return &Service{log: log, db: db, gateways: gateways, paymentSvc: paymentSvc, metrics: m}
}

// IngestResult tells the transport layer how to respond. Acknowledge means
// 2xx; anything else must be a non-2xx so the provider retries.
type IngestResult struct {
	Duplicate bool
	Orphaned  bool
	Applied   bool
	PaymentID string
}

// Ingest runs the full pipeline for one notification. rawBody is the exact
// byte sequence received on the wire; signatures are verified against it
// before anything is parsed or any state is read.
func (s *Service) Ingest(ctx context.Context, gatewayName string, rawBody []byte, signatureHeader string) (*IngestResult, error) {
	client, err := s.gateways.ByName(gatewayName)
	if err != nil {
		return nil, err
	}

	if !client.VerifySignature(rawBody, signatureHeader, time.Now()) {
		s.metrics.WebhookEvents.WithLabelValues(gatewayName, "bad_signature").Inc()
		logctx.Security(logctx.FromCtx(ctx, s.log)).Warnw("webhook_signature_rejected",
			"gateway", gatewayName, "payload_bytes", len(rawBody))
		return nil, errs.Authentication("webhook signature verification failed")
	}

	parse, ok := parserFor(gatewayName)
	if !ok {
		return nil, errs.NotFound("unknown gateway: %s", gatewayName)
	}
	n, err := parse(rawBody)
	if err != nil {
		s.metrics.WebhookEvents.WithLabelValues(gatewayName, "malformed").Inc()
		return nil, err
	}

	payloadHash := sha256.Sum256(rawBody)
	record := &models.WebhookEvent{
		ID:             tool.GenerateUUIDV7(),
		Gateway:        gatewayName,
		EventID:        n.EventID,
		ReceivedAt:     time.Now(),
		RawPayloadHash: hex.EncodeToString(payloadHash[:]),
		Payload:        datatypes.JSON(rawBody),
		Verified:       true,
	}

	// Orphaned notifications are acknowledged so the provider stops
	// retrying, but they get their own alert metric.
	target, err := s.paymentSvc.GetByGatewayRef(ctx, gatewayName, n.GatewayPaymentID)
	if err != nil {
		if errs.KindOf(err) == errs.KindNotFound {
			s.metrics.OrphanedEvents.WithLabelValues(gatewayName).Inc()
			s.log.Warnw("webhook_orphaned",
				"gateway", gatewayName, "event_id", n.EventID, "gateway_payment_id", n.GatewayPaymentID)
			if insErr := s.insertEvent(ctx, s.db, record); insErr != nil {
				return nil, insErr
			}
			return &IngestResult{Orphaned: true}, nil
		}
		return nil, err
	}
	record.PaymentID = &target.ID

	result := &IngestResult{PaymentID: target.ID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, insErr := s.insertEventInTx(tx, record)
		if insErr != nil {
			return insErr
		}
		if !inserted {
			// Same (gateway, event_id) already applied; ack without
			// touching the payment.
			result.Duplicate = true
			return nil
		}

		ev := payment.Event{
			Type:          eventTypeFor(n.Status),
			Source:        "webhook:" + gatewayName,
			OccurredAt:    n.OccurredAt,
			FailureReason: n.FailureReason,
			FailureCode:   n.FailureCode,
		}
		if ev.Type == payment.EventRefundApplied {
			// A provider "refunded" status means the full balance came
			// back on the provider side.
			ev.RefundAmount = target.RemainingRefundable()
		}
		_, changed, applyErr := s.paymentSvc.ApplyEventInTx(tx, target.ID, ev)
		if applyErr != nil {
			if kind := errs.KindOf(applyErr); kind == errs.KindInvalidState || kind == errs.KindInvalidAmount {
				// Stale notification for a payment that already resolved
				// differently. Keep the audit row, ack, let
				// reconciliation surface any real drift.
				s.log.Warnw("webhook_transition_rejected",
					"gateway", gatewayName, "event_id", n.EventID,
					"payment_id", target.ID, "raw_status", n.RawStatus, "err", applyErr)
				return nil
			}
			return applyErr
		}
		if changed {
			result.Applied = true
			return tx.Model(&models.WebhookEvent{}).
				Where("id = ?", record.ID).
				Update("applied_transition", true).Error
		}
		return nil
	})
	if err != nil {
		s.metrics.WebhookEvents.WithLabelValues(gatewayName, "error").Inc()
		return nil, err
	}

	outcome := "no_op"
	switch {
	case result.Duplicate:
		outcome = "duplicate"
	case result.Applied:
		outcome = "applied"
	}
	s.metrics.WebhookEvents.WithLabelValues(gatewayName, outcome).Inc()
	s.log.Infow("webhook_ingested",
		"gateway", gatewayName, "event_id", n.EventID,
		"payment_id", target.ID, "outcome", outcome)
	return result, nil
}

// eventTypeFor maps the provider's authoritative status to the lifecycle
// event the transition function understands.
func eventTypeFor(status types.PaymentStatus) payment.EventType {
	switch status {
	case types.PaymentStatusCompleted:
		return payment.EventCompleted
	case types.PaymentStatusFailed:
		return payment.EventFailed
	case types.PaymentStatusCancelled:
		return payment.EventCancelled
	case types.PaymentStatusRefunded:
		return payment.EventRefundApplied
	default:
		return payment.EventProcessingStarted
	}
}

func (s *Service) insertEvent(ctx context.Context, db *gorm.DB, record *models.WebhookEvent) error {
	_, err := s.insertEventInTx(db.WithContext(ctx), record)
	return err
}

// insertEventInTx claims (gateway, event_id). A false return means another
// delivery already holds it.
func (s *Service) insertEventInTx(tx *gorm.DB, record *models.WebhookEvent) (bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gateway"}, {Name: "event_id"}},
		DoNothing: true,
	}).Create(record)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, errs.Processing(res.Error, "failed to record webhook event")
	}
	return res.RowsAffected > 0, nil
}
