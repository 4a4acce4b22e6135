package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/austa/payments/pkg/types"
)

type RefundReceiptStatus string

const (
	RefundReceiptStatusPending   RefundReceiptStatus = "pending"
	RefundReceiptStatusCompleted RefundReceiptStatus = "completed"
)

// RefundReceipt pins one idempotency key to one provider-side refund. The
// row is inserted before the gateway call and finalized after it, so a
// retried request with the same key never issues a second refund.
type RefundReceipt struct {
	ID              string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	IdempotencyKey  string              `gorm:"column:idempotency_key;type:varchar(128);not null;uniqueIndex" json:"idempotency_key"`
	PaymentID       string              `gorm:"column:payment_id;type:uuid;not null;index" json:"payment_id"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:decimal(12,2);not null" json:"amount"`
	Reason          types.RefundReason  `gorm:"column:reason;type:varchar(32);not null" json:"reason"`
	ParamsHash      string              `gorm:"column:params_hash;type:varchar(64);not null" json:"params_hash"`
	GatewayRefundID string              `gorm:"column:gateway_refund_id;type:varchar(255)" json:"gateway_refund_id"`
	RequestedBy     string              `gorm:"column:requested_by;type:varchar(100)" json:"requested_by"`
	Status          RefundReceiptStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func (RefundReceipt) TableName() string { return "refund_receipt" }
