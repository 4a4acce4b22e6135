package types

// RefundReason is the enumerated business category for a refund request.
type RefundReason string

const (
	RefundReasonCustomerRequest    RefundReason = "CUSTOMER_REQUEST"
	RefundReasonDuplicatePayment   RefundReason = "DUPLICATE_PAYMENT"
	RefundReasonFraud              RefundReason = "FRAUD"
	RefundReasonServiceNotProvided RefundReason = "SERVICE_NOT_PROVIDED"
	RefundReasonPolicyCancelled    RefundReason = "POLICY_CANCELLED"
	RefundReasonOvercharge         RefundReason = "OVERCHARGE"
	RefundReasonProcessingError    RefundReason = "PROCESSING_ERROR"
	RefundReasonOther              RefundReason = "OTHER"
)

func (r RefundReason) Valid() bool {
	switch r {
	case RefundReasonCustomerRequest, RefundReasonDuplicatePayment, RefundReasonFraud,
		RefundReasonServiceNotProvided, RefundReasonPolicyCancelled, RefundReasonOvercharge,
		RefundReasonProcessingError, RefundReasonOther:
		return true
	}
	return false
}

// DiscrepancyKind classifies a reconciliation finding.
type DiscrepancyKind string

const (
	DiscrepancyKindUnmatched      DiscrepancyKind = "UNMATCHED"
	DiscrepancyKindAmountMismatch DiscrepancyKind = "AMOUNT_MISMATCH"
	DiscrepancyKindStatusMismatch DiscrepancyKind = "STATUS_MISMATCH"
	DiscrepancyKindStuckPayment   DiscrepancyKind = "STUCK_PAYMENT"
	DiscrepancyKindError          DiscrepancyKind = "ERROR"
)
