package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/austa/payments/pkg/types"
)

// ReconciliationReport is the immutable output of one scheduled sweep.
type ReconciliationReport struct {
	ID            string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	RunDate       time.Time       `gorm:"column:run_date;not null;index" json:"run_date"`
	TotalPayments int             `gorm:"column:total_payments;not null" json:"total_payments"`
	Matched       int             `gorm:"column:matched;not null" json:"matched"`
	Unmatched     int             `gorm:"column:unmatched;not null" json:"unmatched"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:decimal(14,2);not null" json:"total_amount"`
	MatchedAmount decimal.Decimal `gorm:"column:matched_amount;type:decimal(14,2);not null" json:"matched_amount"`
	Notes         string          `gorm:"column:notes;type:varchar(500)" json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (ReconciliationReport) TableName() string { return "reconciliation_report" }

// Discrepancy is one drift finding attached to a report. It only proposes a
// correction; applying it is an explicit reviewed action that goes through
// the regular state machine.
type Discrepancy struct {
	ID             string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ReportID       string                `gorm:"column:report_id;type:uuid;not null;index" json:"report_id"`
	PaymentID      string                `gorm:"column:payment_id;type:uuid;not null;index" json:"payment_id"`
	TransactionID  string                `gorm:"column:transaction_id;type:varchar(64)" json:"transaction_id"`
	Kind           types.DiscrepancyKind `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	Description    string                `gorm:"column:description;type:varchar(500)" json:"description"`
	ExpectedAmount decimal.Decimal       `gorm:"column:expected_amount;type:decimal(12,2)" json:"expected_amount"`
	ActualAmount   decimal.Decimal       `gorm:"column:actual_amount;type:decimal(12,2)" json:"actual_amount"`

	// ProposedStatus is the gateway-reported status a reviewer may apply.
	ProposedStatus *types.PaymentStatus `gorm:"column:proposed_status;type:varchar(20)" json:"proposed_status,omitempty"`

	ResolvedAt *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy string     `gorm:"column:resolved_by;type:varchar(100)" json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (Discrepancy) TableName() string { return "reconciliation_discrepancy" }
