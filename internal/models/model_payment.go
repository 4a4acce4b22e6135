package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/austa/payments/pkg/mask"
	"github.com/austa/payments/pkg/types"
)

// Payment is one payment attempt against a policy. Rows are never deleted;
// the state machine is the only writer after creation.
type Payment struct {
	ID            string              `gorm:"column:id;primary_key;type:uuid" json:"id"`
	PolicyNumber  string              `gorm:"column:policy_number;type:varchar(50);not null;index:idx_payment_policy" json:"policy_number"`
	BeneficiaryID string              `gorm:"column:beneficiary_id;type:varchar(50);not null;index" json:"beneficiary_id"`
	Method        types.PaymentMethod `gorm:"column:method;type:varchar(20);not null" json:"method"`
	Status        types.PaymentStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`

	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null" json:"amount"`
	RefundedAmount decimal.Decimal `gorm:"column:refunded_amount;type:decimal(12,2);not null;default:0" json:"refunded_amount"`
	Currency       string          `gorm:"column:currency;type:varchar(3);not null;default:'BRL'" json:"currency"`

	// Gateway correlation, set once the provider acknowledges the attempt.
	GatewayName      string `gorm:"column:gateway_name;type:varchar(32)" json:"gateway_name"`
	GatewayPaymentID string `gorm:"column:gateway_payment_id;type:varchar(255);index" json:"gateway_payment_id"`
	TransactionID    string `gorm:"column:transaction_id;type:varchar(64);not null;uniqueIndex" json:"transaction_id"`

	// PIX artifacts.
	PixKey          string     `gorm:"column:pix_key;type:varchar(140)" json:"-"`
	PixQrCode       string     `gorm:"column:pix_qr_code;type:varchar(1000)" json:"-"`
	PixQrCodeBase64 string     `gorm:"column:pix_qr_code_base64;type:text" json:"-"`
	PixExpiration   *time.Time `gorm:"column:pix_expiration" json:"pix_expiration,omitempty"`

	// Boleto artifacts.
	BoletoBarcode string     `gorm:"column:boleto_barcode;type:varchar(100)" json:"-"`
	BoletoURL     string     `gorm:"column:boleto_url;type:varchar(500)" json:"-"`
	BoletoDueDate *time.Time `gorm:"column:boleto_due_date" json:"boleto_due_date,omitempty"`

	// Card details. CardToken is the acquirer's one-time token, never a PAN.
	CardToken    string `gorm:"column:card_token;type:varchar(255)" json:"-"`
	CardLastFour string `gorm:"column:card_last_four;type:varchar(4)" json:"card_last_four,omitempty"`
	CardBrand    string `gorm:"column:card_brand;type:varchar(32)" json:"card_brand,omitempty"`
	Installments int    `gorm:"column:installments;default:1" json:"installments,omitempty"`

	FailureReason string `gorm:"column:failure_reason;type:varchar(255)" json:"failure_reason,omitempty"`
	FailureCode   string `gorm:"column:failure_code;type:varchar(64)" json:"failure_code,omitempty"`

	PayerName     string `gorm:"column:payer_name;type:varchar(100)" json:"payer_name,omitempty"`
	PayerEmail    string `gorm:"column:payer_email;type:varchar(255)" json:"-"`
	PayerDocument string `gorm:"column:payer_document;type:varchar(20)" json:"-"`

	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata,omitempty"`

	PaidAt     *time.Time `gorm:"column:paid_at" json:"paid_at,omitempty"`
	RefundedAt *time.Time `gorm:"column:refunded_at" json:"refunded_at,omitempty"`

	// Version implements the optimistic check-and-set; every applied
	// transition increments it.
	Version   int64     `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payment"
}

// RemainingRefundable is the amount still available for refund.
func (p *Payment) RemainingRefundable() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}

// ExpiresAt returns the rail-specific expiry timestamp, nil when the method
// has none.
func (p *Payment) ExpiresAt() *time.Time {
	switch p.Method {
	case types.PaymentMethodPix:
		return p.PixExpiration
	case types.PaymentMethodBoleto:
		return p.BoletoDueDate
	}
	return nil
}

// Expired reports whether the payment artifact is past its expiry at t.
func (p *Payment) Expired(t time.Time) bool {
	exp := p.ExpiresAt()
	return exp != nil && t.After(*exp)
}

func (p *Payment) MaskedPolicyNumber() string {
	return mask.Identifier(p.PolicyNumber)
}

func (p *Payment) MaskedBeneficiaryID() string {
	return mask.Identifier(p.BeneficiaryID)
}

func (p *Payment) MaskedTransactionID() string {
	return mask.TransactionID(p.TransactionID)
}
