package payment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/austa/payments/internal/gateway"
	"github.com/austa/payments/internal/models"
	"github.com/austa/payments/pkg/config"
	"github.com/austa/payments/pkg/errs"
	"github.com/austa/payments/pkg/metrics"
	"github.com/austa/payments/pkg/tool"
	"github.com/austa/payments/pkg/types"
)

type Service struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	db       *gorm.DB
	gateways *gateway.Factory
	metrics  *metrics.Domain
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, db *gorm.DB, gateways *gateway.Factory, m *metrics.Domain) *Service {
	return &Service{cfg: cfg, log: log, db: db, gateways: gateways, metrics: m}
}

// CreateRequest carries everything needed to open a payment attempt.
type CreateRequest struct {
	PolicyNumber  string
	BeneficiaryID string
	Method        types.PaymentMethod
	Amount        decimal.Decimal
	Currency      string

	PayerName     string
	PayerEmail    string
	PayerDocument string

	// Rail-specific inputs.
	PixKey        string
	BoletoDueDate *time.Time
	CardToken     string
	Installments  int

	Metadata map[string]any
}

func (r *CreateRequest) validate() error {
	if !r.Method.Valid() {
		return errs.InvalidState("unsupported payment method: %s", r.Method)
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return errs.InvalidAmount("payment amount must be positive")
	}
	if r.PolicyNumber == "" {
		return errs.InvalidState("policy number is required")
	}
	if r.BeneficiaryID == "" {
		return errs.InvalidState("beneficiary id is required")
	}
	if r.Method == types.PaymentMethodCreditCard && r.CardToken == "" {
		return errs.InvalidState("card token is required for credit card payments")
	}
	return nil
}

// Create records a new PENDING payment. No provider call happens here; the
// attempt goes out on Process.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.Payment, error) {
	if err := req.validate(); err != nil {
		s.metrics.PaymentOps.WithLabelValues("create", "rejected").Inc()
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "BRL"
	}
	installments := req.Installments
	if installments <= 0 {
		installments = 1
	}

	now := time.Now()
	p := &models.Payment{
		ID:             tool.GenerateUUIDV7(),
		PolicyNumber:   req.PolicyNumber,
		BeneficiaryID:  req.BeneficiaryID,
		Method:         req.Method,
		Status:         types.PaymentStatusPending,
		Amount:         req.Amount,
		RefundedAmount: decimal.Zero,
		Currency:       currency,
		TransactionID:  tool.GenerateTransactionID(),
		PayerName:      req.PayerName,
		PayerEmail:     req.PayerEmail,
		PayerDocument:  req.PayerDocument,
		PixKey:         req.PixKey,
		CardToken:      req.CardToken,
		Installments:   installments,
	}

	switch req.Method {
	case types.PaymentMethodPix:
		exp := now.Add(s.cfg.Payments.PixExpiration())
		p.PixExpiration = &exp
	case types.PaymentMethodBoleto:
		due := req.BoletoDueDate
		if due == nil {
			d := now.Add(s.cfg.Payments.BoletoDue())
			due = &d
		}
		p.BoletoDueDate = due
	}

	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, errs.Processing(err, "failed to encode payment metadata")
		}
		p.Metadata = datatypes.JSON(raw)
	}

	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		s.metrics.PaymentOps.WithLabelValues("create", "error").Inc()
		return nil, errs.Processing(err, "failed to persist payment")
	}

	s.metrics.PaymentOps.WithLabelValues("create", "ok").Inc()
	s.log.Infow("payment_created",
		"payment_id", p.ID,
		"policy_number", p.MaskedPolicyNumber(),
		"method", p.Method,
		"amount", p.Amount.StringFixed(2),
	)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("payment %s not found", id)
	}
	if err != nil {
		return nil, errs.Processing(err, "failed to load payment")
	}
	return &p, nil
}

// GetByGatewayRef resolves the payment a provider notification refers to.
func (s *Service) GetByGatewayRef(ctx context.Context, gatewayName, gatewayPaymentID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).
		First(&p, "gateway_name = ? AND gateway_payment_id = ?", gatewayName, gatewayPaymentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("no payment for gateway %s reference %s", gatewayName, gatewayPaymentID)
	}
	if err != nil {
		return nil, errs.Processing(err, "failed to load payment by gateway reference")
	}
	return &p, nil
}

func (s *Service) ListByPolicy(ctx context.Context, policyNumber string) ([]*models.Payment, error) {
	var rows []*models.Payment
	err := s.db.WithContext(ctx).
		Where("policy_number = ?", policyNumber).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errs.Processing(err, "failed to list payments for policy")
	}
	if len(rows) == 0 {
		return nil, errs.NotFound("no payments for policy %s", policyNumber)
	}
	return rows, nil
}

// Process submits a PENDING payment to its provider and moves it to
// PROCESSING. The provider call runs outside any row lock; the transition is
// committed only after the provider acknowledged, re-checking the status
// under the lock. A GatewayUnavailable leaves the payment PENDING.
func (s *Service) Process(ctx context.Context, id string) (*models.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != types.PaymentStatusPending {
		s.metrics.PaymentOps.WithLabelValues("process", "rejected").Inc()
		return nil, errs.InvalidState("payment %s is %s, only pending payments can be processed", p.ID, p.Status)
	}

	client, err := s.gateways.ForMethod(p.Method)
	if err != nil {
		return nil, err
	}

	handle, err := client.Initiate(ctx, &gateway.InitiateRequest{
		PaymentID:      p.ID,
		TransactionID:  p.TransactionID,
		PolicyNumber:   p.PolicyNumber,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Method:         p.Method,
		PayerName:      p.PayerName,
		PayerEmail:     p.PayerEmail,
		PayerDocument:  p.PayerDocument,
		PixKey:         p.PixKey,
		BoletoDueDate:  p.BoletoDueDate,
		CardToken:      p.CardToken,
		Installments:   p.Installments,
		IdempotencyKey: p.TransactionID,
	})
	if err != nil {
		s.metrics.PaymentOps.WithLabelValues("process", "gateway_error").Inc()
		s.log.Warnw("payment_initiate_failed", "payment_id", p.ID, "gateway", client.Name(), "err", err)
		return nil, err
	}

	var out *models.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, lockErr := lockPayment(tx, p.ID)
		if lockErr != nil {
			return lockErr
		}
		if locked.Status != types.PaymentStatusPending {
			// A webhook resolved the attempt while we were on the wire.
			out = locked
			return nil
		}

		locked.GatewayName = handle.Gateway
		locked.GatewayPaymentID = handle.GatewayPaymentID
		locked.PixQrCode = handle.PixQrCode
		locked.PixQrCodeBase64 = handle.PixQrCodeBase64
		if handle.PixExpiration != nil {
			locked.PixExpiration = handle.PixExpiration
		}
		locked.BoletoBarcode = handle.BoletoBarcode
		locked.BoletoURL = handle.BoletoURL
		if handle.BoletoDueDate != nil {
			locked.BoletoDueDate = handle.BoletoDueDate
		}
		if handle.CardLastFour != "" {
			locked.CardLastFour = handle.CardLastFour
			locked.CardBrand = handle.CardBrand
		}

		if _, applyErr := Apply(locked, Event{Type: EventProcessingStarted, Source: "api"}); applyErr != nil {
			return applyErr
		}
		if saveErr := savePayment(tx, locked); saveErr != nil {
			return saveErr
		}
		out = locked
		return nil
	})
	if err != nil {
		s.metrics.PaymentOps.WithLabelValues("process", "error").Inc()
		return nil, err
	}

	s.metrics.PaymentOps.WithLabelValues("process", "ok").Inc()
	s.log.Infow("payment_processing",
		"payment_id", out.ID, "gateway", out.GatewayName, "gateway_payment_id", out.GatewayPaymentID)
	return out, nil
}

// Cancel aborts a payment that has not been submitted to a provider yet.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanCancel() {
		s.metrics.PaymentOps.WithLabelValues("cancel", "rejected").Inc()
		return nil, errs.InvalidState("payment %s is %s and can no longer be cancelled", p.ID, p.Status)
	}

	// Rare case: the attempt reached the provider but the processing commit
	// lost a race. Best effort; the row transition is authoritative.
	if p.GatewayPaymentID != "" {
		if client, cErr := s.gateways.ByName(p.GatewayName); cErr == nil {
			if cancelErr := client.Cancel(ctx, p.GatewayPaymentID); cancelErr != nil {
				s.log.Warnw("gateway_cancel_failed", "payment_id", p.ID, "err", cancelErr)
			}
		}
	}

	out, _, err := s.ApplyEvent(ctx, id, Event{Type: EventCancelled, Source: "api"})
	if err != nil {
		s.metrics.PaymentOps.WithLabelValues("cancel", "error").Inc()
		return nil, err
	}
	s.metrics.PaymentOps.WithLabelValues("cancel", "ok").Inc()
	s.log.Infow("payment_cancelled", "payment_id", id)
	return out, nil
}

// PixArtifacts returns the QR payload for a PIX payment that has one.
func (s *Service) PixArtifacts(ctx context.Context, id string) (*models.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Method != types.PaymentMethodPix || p.PixQrCode == "" {
		return nil, errs.NotFound("payment %s has no pix artifacts", id)
	}
	return p, nil
}

// BoletoArtifacts returns the slip barcode and document URL.
func (s *Service) BoletoArtifacts(ctx context.Context, id string) (*models.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Method != types.PaymentMethodBoleto || p.BoletoBarcode == "" {
		return nil, errs.NotFound("payment %s has no boleto artifacts", id)
	}
	return p, nil
}

// ApplyEvent runs one transition in its own transaction.
func (s *Service) ApplyEvent(ctx context.Context, id string, ev Event) (*models.Payment, bool, error) {
	var (
		out     *models.Payment
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, changed2, applyErr := s.ApplyEventInTx(tx, id, ev)
		if applyErr != nil {
			return applyErr
		}
		out, changed = p, changed2
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

// ApplyEventInTx locks the payment row, runs the transition function, and
// persists the result with a version check-and-set. Callers that need the
// event record committed atomically with the transition (webhook ingestion)
// pass their own tx.
func (s *Service) ApplyEventInTx(tx *gorm.DB, id string, ev Event) (*models.Payment, bool, error) {
	p, err := lockPayment(tx, id)
	if err != nil {
		return nil, false, err
	}

	changed, err := Apply(p, ev)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return p, false, nil
	}

	if err := savePayment(tx, p); err != nil {
		return nil, false, err
	}
	s.log.Infow("payment_transition",
		"payment_id", p.ID, "event", ev.Type, "source", ev.Source, "status", p.Status)
	return p, true, nil
}

func lockPayment(tx *gorm.DB, id string) (*models.Payment, error) {
	var p models.Payment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("payment %s not found", id)
	}
	if err != nil {
		return nil, errs.Processing(err, "failed to lock payment row")
	}
	return &p, nil
}

// savePayment persists a mutated payment guarded by the version column. The
// row lock already serializes writers; the version check is the backstop if
// a caller ever persists outside the lock.
func savePayment(tx *gorm.DB, p *models.Payment) error {
	prev := p.Version
	p.Version++
	res := tx.Model(&models.Payment{}).
		Where("id = ? AND version = ?", p.ID, prev).
		Select("*").Omit("id", "created_at").
		Updates(p)
	if res.Error != nil {
		p.Version = prev
		return errs.Processing(res.Error, "failed to persist payment")
	}
	if res.RowsAffected == 0 {
		p.Version = prev
		return errs.Processing(nil, "payment %s was modified concurrently", p.ID)
	}
	return nil
}
