package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/austa/payments/internal/app/service/payment"
	"github.com/austa/payments/internal/gateway"
	"github.com/austa/payments/internal/models"
	"github.com/austa/payments/pkg/config"
	"github.com/austa/payments/pkg/errs"
	"github.com/austa/payments/pkg/metrics"
	"github.com/austa/payments/pkg/tool"
	"github.com/austa/payments/pkg/types"
)

// Service compares in-flight payments against the provider's authoritative
// record. It only ever proposes corrections; applying one is a reviewed
// action that goes through the same transition function as everything else.
type Service struct {
	cfg        *config.Config
	log        *zap.SugaredLogger
	db         *gorm.DB
	gateways   *gateway.Factory
	paymentSvc *payment.Service
	metrics    *metrics.Domain
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, db *gorm.DB, gateways *gateway.Factory, paymentSvc *payment.Service, m *metrics.Domain) *Service {
	return &Service{cfg: cfg, log: log, db: db, gateways: gateways, paymentSvc: paymentSvc, metrics: m}
}

// finding is one comparison outcome before persistence.
type finding struct {
	kind           types.DiscrepancyKind
	description    string
	proposedStatus *types.PaymentStatus
	actualAmount   decimal.Decimal
}

// Run executes one reconciliation pass over every PENDING or PROCESSING
// payment older than the configured age and writes an immutable report plus
// one discrepancy row per drift found.
func (s *Service) Run(ctx context.Context, now time.Time) (*models.ReconciliationReport, error) {
	minAge := s.cfg.Payments.ReconciliationMinAge()
	cutoff := now.Add(-minAge)

	var candidates []*models.Payment
	err := s.db.WithContext(ctx).
		Where("status IN ?", []types.PaymentStatus{types.PaymentStatusPending, types.PaymentStatusProcessing}).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, errs.Processing(err, "failed to load reconciliation candidates")
	}

	report := &models.ReconciliationReport{
		ID:            tool.GenerateUUIDV7(),
		RunDate:       now,
		TotalPayments: len(candidates),
		TotalAmount:   decimal.Zero,
		MatchedAmount: decimal.Zero,
	}

	var discrepancies []*models.Discrepancy
	for _, p := range candidates {
		report.TotalAmount = report.TotalAmount.Add(p.Amount)

		f := s.inspect(ctx, p, now)
		if f == nil {
			report.Matched++
			report.MatchedAmount = report.MatchedAmount.Add(p.Amount)
			continue
		}

		report.Unmatched++
		s.metrics.Discrepancies.WithLabelValues(string(f.kind)).Inc()
		discrepancies = append(discrepancies, &models.Discrepancy{
			ID:             tool.GenerateUUIDV7(),
			ReportID:       report.ID,
			PaymentID:      p.ID,
			TransactionID:  p.TransactionID,
			Kind:           f.kind,
			Description:    f.description,
			ExpectedAmount: p.Amount,
			ActualAmount:   f.actualAmount,
			ProposedStatus: f.proposedStatus,
		})
	}
	report.Notes = fmt.Sprintf("scanned payments older than %s", minAge)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return err
		}
		if len(discrepancies) > 0 {
			return tx.Create(discrepancies).Error
		}
		return nil
	})
	if err != nil {
		return nil, errs.Processing(err, "failed to persist reconciliation report")
	}

	s.log.Infow("reconciliation_run_done",
		"report_id", report.ID,
		"total", report.TotalPayments,
		"matched", report.Matched,
		"unmatched", report.Unmatched,
	)
	return report, nil
}

// inspect compares one payment against the provider. A nil return means no
// drift.
func (s *Service) inspect(ctx context.Context, p *models.Payment, now time.Time) *finding {
	// Pre-submission payments have no provider record to compare; they
	// only drift by getting stuck.
	if p.GatewayPaymentID == "" {
		if stuck := stuckFinding(p, now, s.cfg.Payments.StuckProcessingThreshold()); stuck != nil {
			return stuck
		}
		return nil
	}

	client, err := s.gateways.ByName(p.GatewayName)
	if err != nil {
		return &finding{
			kind:        types.DiscrepancyKindError,
			description: fmt.Sprintf("payment references unknown gateway %q", p.GatewayName),
		}
	}

	remote, err := client.Status(ctx, p.GatewayPaymentID)
	if err != nil {
		return &finding{
			kind:        types.DiscrepancyKindError,
			description: fmt.Sprintf("gateway status query failed: %v", err),
		}
	}

	f := compare(p, remote, now, s.cfg.Payments.StuckProcessingThreshold())
	if f != nil {
		s.log.Warnw("reconciliation_discrepancy",
			"payment_id", p.ID, "kind", f.kind, "description", f.description)
	}
	return f
}

// compare is the pure drift check between the stored payment and the
// provider's view.
func compare(p *models.Payment, remote *gateway.StatusResult, now time.Time, stuckAfter time.Duration) *finding {
	if !remote.Found {
		return &finding{
			kind:        types.DiscrepancyKindUnmatched,
			description: fmt.Sprintf("gateway has no record of payment reference %s", p.GatewayPaymentID),
		}
	}

	if !remote.Amount.IsZero() && !remote.Amount.Equal(p.Amount) {
		return &finding{
			kind: types.DiscrepancyKindAmountMismatch,
			description: fmt.Sprintf("gateway reports amount %s, recorded amount is %s",
				remote.Amount.StringFixed(2), p.Amount.StringFixed(2)),
			actualAmount: remote.Amount,
		}
	}

	if remote.Status != p.Status {
		proposed := remote.Status
		return &finding{
			kind: types.DiscrepancyKindStatusMismatch,
			description: fmt.Sprintf("gateway reports status %s, recorded status is %s",
				remote.Status, p.Status),
			proposedStatus: &proposed,
			actualAmount:   remote.Amount,
		}
	}

	return stuckFinding(p, now, stuckAfter)
}

// stuckFinding flags payments that sat in flight past the threshold even
// though nothing else disagrees. Proposes FAILED for a reviewer to confirm.
func stuckFinding(p *models.Payment, now time.Time, stuckAfter time.Duration) *finding {
	if stuckAfter <= 0 || now.Sub(p.CreatedAt) < stuckAfter {
		return nil
	}
	proposed := types.PaymentStatusFailed
	return &finding{
		kind: types.DiscrepancyKindStuckPayment,
		description: fmt.Sprintf("payment has been %s for more than %s",
			p.Status, stuckAfter),
		proposedStatus: &proposed,
	}
}

// ResolveDiscrepancy applies a reviewed correction. The transition runs
// through the same Apply path as webhooks, so invariants hold and the
// change is audit-logged like any other.
func (s *Service) ResolveDiscrepancy(ctx context.Context, discrepancyID, resolvedBy string) (*models.Discrepancy, error) {
	if resolvedBy == "" {
		return nil, errs.InvalidState("resolved_by is required")
	}

	var d models.Discrepancy
	err := s.db.WithContext(ctx).First(&d, "id = ?", discrepancyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("discrepancy %s not found", discrepancyID)
	}
	if err != nil {
		return nil, errs.Processing(err, "failed to load discrepancy")
	}
	if d.ResolvedAt != nil {
		return nil, errs.InvalidState("discrepancy %s was already resolved by %s", d.ID, d.ResolvedBy)
	}
	if d.ProposedStatus == nil {
		return nil, errs.InvalidState("discrepancy %s has no proposed status to apply", d.ID)
	}

	ev := payment.Event{
		Type:   eventForProposedStatus(*d.ProposedStatus),
		Source: "reconciliation:" + resolvedBy,
	}
	if ev.Type == payment.EventFailed {
		ev.FailureReason = d.Description
		ev.FailureCode = "RECONCILIATION_TIMEOUT"
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, _, applyErr := s.paymentSvc.ApplyEventInTx(tx, d.PaymentID, ev); applyErr != nil {
			return applyErr
		}
		d.ResolvedAt = &now
		d.ResolvedBy = resolvedBy
		return tx.Model(&models.Discrepancy{}).
			Where("id = ?", d.ID).
			Updates(map[string]any{"resolved_at": now, "resolved_by": resolvedBy}).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("discrepancy_resolved",
		"discrepancy_id", d.ID, "payment_id", d.PaymentID,
		"proposed_status", *d.ProposedStatus, "resolved_by", resolvedBy)
	return &d, nil
}

// ListOpenDiscrepancies is the review queue feed.
func (s *Service) ListOpenDiscrepancies(ctx context.Context) ([]*models.Discrepancy, error) {
	var rows []*models.Discrepancy
	err := s.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errs.Processing(err, "failed to list open discrepancies")
	}
	return rows, nil
}

func (s *Service) GetReport(ctx context.Context, id string) (*models.ReconciliationReport, error) {
	var r models.ReconciliationReport
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("reconciliation report %s not found", id)
	}
	if err != nil {
		return nil, errs.Processing(err, "failed to load reconciliation report")
	}
	return &r, nil
}

func eventForProposedStatus(status types.PaymentStatus) payment.EventType {
	switch status {
	case types.PaymentStatusCompleted:
		return payment.EventCompleted
	case types.PaymentStatusCancelled:
		return payment.EventCancelled
	case types.PaymentStatusFailed:
		return payment.EventFailed
	default:
		return payment.EventProcessingStarted
	}
}
