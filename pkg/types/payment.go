package types

// PaymentMethod identifies the payment rail used for a payment attempt.
type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "PIX"
	PaymentMethodBoleto     PaymentMethod = "BOLETO"
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPix, PaymentMethodBoleto, PaymentMethodCreditCard:
		return true
	}
	return false
}

// PaymentStatus is the canonical payment lifecycle state.
//
// PENDING → PROCESSING → COMPLETED → REFUNDED
// PENDING|PROCESSING → FAILED
// PENDING → CANCELLED
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

// Terminal reports whether no forward transition exists from s, refunds of a
// completed payment excepted.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled:
		return true
	}
	return false
}

func (s PaymentStatus) CanRefund() bool {
	return s == PaymentStatusCompleted
}

// CanCancel is true only while the payment has no provider-side momentum.
func (s PaymentStatus) CanCancel() bool {
	return s == PaymentStatusPending
}

// PaymentGateway names a concrete payment provider.
type PaymentGateway string

const (
	PaymentGatewayPix    PaymentGateway = "pix"
	PaymentGatewayBoleto PaymentGateway = "boleto"
	PaymentGatewayCard   PaymentGateway = "card"
)
