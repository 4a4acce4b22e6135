package refund

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/austa/payments/internal/app/service/payment"
	"github.com/austa/payments/internal/gateway"
	"github.com/austa/payments/internal/models"
	"github.com/austa/payments/pkg/errs"
	"github.com/austa/payments/pkg/metrics"
	"github.com/austa/payments/pkg/tool"
	"github.com/austa/payments/pkg/types"
)

// minNotesForOther is the business rule floor on free-text justification
// when no enumerated category fits.
const minNotesForOther = 10

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

// Request is one refund attempt. A nil Amount means the full remaining
// balance. IdempotencyKey makes retries safe: a repeated key with identical
// parameters returns the prior result instead of refunding twice.
type Request struct {
	PaymentID      string
	Amount         *decimal.Decimal
	Reason         types.RefundReason
	Notes          string
	RequestedBy    string
	IdempotencyKey string
}

// Result reports the refund outcome alongside the updated payment.
type Result struct {
	Payment         *models.Payment
	RefundedAmount  decimal.Decimal
	GatewayRefundID string
	Replayed        bool
}

func (r *Request) validate() error {
	if r.PaymentID == "" {
		return errs.InvalidState("payment id is required")
	}
	if !r.Reason.Valid() {
		return errs.InvalidState("unknown refund reason: %s", r.Reason)
	}
	if r.Reason == types.RefundReasonOther && len(strings.TrimSpace(r.Notes)) < minNotesForOther {
		return errs.InvalidState("refund reason OTHER requires notes of at least %d characters", minNotesForOther)
	}
	if r.IdempotencyKey == "" {
		return errs.InvalidState("idempotency key is required")
	}
	if r.Amount != nil && r.Amount.LessThanOrEqual(decimal.Zero) {
		return errs.InvalidAmount("refund amount must be positive")
	}
	return nil
}

// paramsHash fingerprints the request so a reused idempotency key with
// different parameters is detectable.
func (r *Request) paramsHash(amount decimal.Decimal) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s",
		r.PaymentID, amount.StringFixed(2), r.Reason, r.RequestedBy)))
	return hex.EncodeToString(h[:])
}

// Refund executes one refund end to end:
//  1. validate and resolve the effective amount against the payment;
//  2. claim the idempotency key by inserting a pending receipt (a replayed
//     key returns the prior result, a reused key with different parameters
//     is rejected);
//  3. call the provider without holding the payment row;
//  4. apply RefundApplied and finalize the receipt in one transaction.
//
// A provider failure deletes the pending receipt so the same key can retry.
func (s *Service) Refund(ctx context.Context, req *Request) (*Result, error) {
	if err := req.validate(); err != nil {
		s.metrics.PaymentOps.WithLabelValues("refund", "rejected").Inc()
		return nil, err
	}

	p, err := s.paymentSvc.Get(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanRefund() {
		s.metrics.PaymentOps.WithLabelValues("refund", "rejected").Inc()
		return nil, errs.InvalidState("payment %s is %s, only completed payments can be refunded", p.ID, p.Status)
	}
	remaining := p.RemainingRefundable()
	if remaining.LessThanOrEqual(decimal.Zero) {
		s.metrics.PaymentOps.WithLabelValues("refund", "rejected").Inc()
		return nil, errs.InvalidAmount("payment %s has no refundable balance", p.ID)
	}

	amount := remaining
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount.GreaterThan(remaining) {
		s.metrics.PaymentOps.WithLabelValues("refund", "rejected").Inc()
		return nil, errs.InvalidAmount("refund of %s exceeds remaining refundable %s",
			amount.StringFixed(2), remaining.StringFixed(2))
	}

	receipt, prior, err := s.claimKey(ctx, req, amount)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		// Same key, same parameters: hand back the earlier outcome.
		s.metrics.PaymentOps.WithLabelValues("refund", "replayed").Inc()
		current, getErr := s.paymentSvc.Get(ctx, req.PaymentID)
		if getErr != nil {
			return nil, getErr
		}
		return &Result{
			Payment:         current,
			RefundedAmount:  prior.Amount,
			GatewayRefundID: prior.GatewayRefundID,
			Replayed:        true,
		}, nil
	}

	client, err := s.gateways.ByName(p.GatewayName)
	if err != nil {
		s.releaseKey(ctx, receipt)
		return nil, errs.InvalidState("payment %s has no gateway attached, process it first", p.ID)
	}

	handle, err := client.Refund(ctx, p.GatewayPaymentID, amount, req.IdempotencyKey)
	if err != nil {
		// State untouched; the same key may retry.
		s.releaseKey(ctx, receipt)
		s.metrics.PaymentOps.WithLabelValues("refund", "gateway_error").Inc()
		s.log.Warnw("refund_gateway_failed", "payment_id", p.ID, "err", err)
		return nil, err
	}

	var updated *models.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, _, applyErr := s.paymentSvc.ApplyEventInTx(tx, p.ID, payment.Event{
			Type:         payment.EventRefundApplied,
			Source:       "refund:" + req.RequestedBy,
			RefundAmount: amount,
		})
		if applyErr != nil {
			return applyErr
		}
		updated = applied

		receipt.GatewayRefundID = handle.GatewayRefundID
		receipt.Status = models.RefundReceiptStatusCompleted
		return tx.Model(&models.RefundReceipt{}).
			Where("id = ?", receipt.ID).
			Updates(map[string]any{
				"gateway_refund_id": receipt.GatewayRefundID,
				"status":            receipt.Status,
			}).Error
	})
	if err != nil {
		// The provider refund went through but the local apply did not.
		// Keep the receipt pending so reconciliation surfaces the drift.
		s.metrics.PaymentOps.WithLabelValues("refund", "error").Inc()
		s.log.Errorw("refund_apply_failed_after_gateway",
			"payment_id", p.ID, "gateway_refund_id", handle.GatewayRefundID, "err", err)
		return nil, errs.Processing(err, "refund accepted by provider but not recorded, will reconcile")
	}

	s.metrics.PaymentOps.WithLabelValues("refund", "ok").Inc()
	s.log.Infow("refund_applied",
		"payment_id", p.ID,
		"amount", amount.StringFixed(2),
		"reason", req.Reason,
		"status", updated.Status,
		"gateway_refund_id", handle.GatewayRefundID,
	)
	return &Result{
		Payment:         updated,
		RefundedAmount:  amount,
		GatewayRefundID: handle.GatewayRefundID,
	}, nil
}

// claimKey inserts the pending receipt that owns the idempotency key.
// Returns (receipt, nil, nil) when this request owns the key, or
// (nil, prior, nil) when a completed receipt already holds it with the same
// parameters.
func (s *Service) claimKey(ctx context.Context, req *Request, amount decimal.Decimal) (*models.RefundReceipt, *models.RefundReceipt, error) {
	receipt := &models.RefundReceipt{
		ID:             tool.GenerateUUIDV7(),
		IdempotencyKey: req.IdempotencyKey,
		PaymentID:      req.PaymentID,
		Amount:         amount,
		Reason:         req.Reason,
		ParamsHash:     req.paramsHash(amount),
		RequestedBy:    req.RequestedBy,
		Status:         models.RefundReceiptStatusPending,
	}

	err := s.db.WithContext(ctx).Create(receipt).Error
	if err == nil {
		return receipt, nil, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, nil, errs.Processing(err, "failed to record refund receipt")
	}

	var existing models.RefundReceipt
	if err := s.db.WithContext(ctx).
		First(&existing, "idempotency_key = ?", req.IdempotencyKey).Error; err != nil {
		return nil, nil, errs.Processing(err, "failed to load prior refund receipt")
	}
	if existing.ParamsHash != receipt.ParamsHash {
		return nil, nil, errs.InvalidState("idempotency key %s was already used with different parameters", req.IdempotencyKey)
	}
	if existing.Status != models.RefundReceiptStatusCompleted {
		// A concurrent request holds the key and has not finished.
		return nil, nil, errs.InvalidState("refund with idempotency key %s is still in flight", req.IdempotencyKey)
	}
	return nil, &existing, nil
}

func (s *Service) releaseKey(ctx context.Context, receipt *models.RefundReceipt) {
	if err := s.db.WithContext(ctx).Delete(&models.RefundReceipt{}, "id = ?", receipt.ID).Error; err != nil {
		s.log.Errorw("refund_receipt_release_failed", "receipt_id", receipt.ID, "err", err)
	}
}
