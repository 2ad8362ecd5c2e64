package domain

import "time"

// RefundType distinguishes a full reversal from a partial one.
type RefundType string

const (
	RefundTypePartial RefundType = "partial"
	RefundTypeFull    RefundType = "full"
)

// Refund is a reversal against a previously completed Payment. It is created
// in processing at initiation time regardless of how the upstream call turns
// out; both outcomes are recorded, and completion flips the parent payment
// to partial_refund.
type Refund struct {
	ID          string
	PaymentID   string
	BookingID   string
	Amount      int64
	Currency    string
	Provider    Provider
	PhoneNumber string

	// ProviderToken is the provider-assigned refund token.
	ProviderToken string
	Status        Status
	Type          RefundType
	Reason        string

	ProviderResponse []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SeatRefundAmount is the refundable ceiling when seats are removed from a
// paid booking: seats removed times the per-seat price.
func SeatRefundAmount(seatsRemoved int, pricePerSeat int64) int64 {
	if seatsRemoved <= 0 || pricePerSeat <= 0 {
		return 0
	}
	return int64(seatsRemoved) * pricePerSeat
}

// NewRefund validates the refund against its parent payment. The amount may
// never exceed the original payment, and only completed (or already
// partially refunded) payments are refundable.
func NewRefund(id string, payment *Payment, amount int64, reason string) (*Refund, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if payment.Status != StatusCompleted && payment.Status != StatusPartialRefund {
		return nil, ErrPaymentNotRefundable
	}
	if amount > payment.Amount {
		return nil, ErrRefundExceedsPayment
	}

	typ := RefundTypePartial
	if amount == payment.Amount {
		typ = RefundTypeFull
	}

	now := time.Now()
	return &Refund{
		ID:          id,
		PaymentID:   payment.ID,
		BookingID:   payment.BookingID,
		Amount:      amount,
		Currency:    payment.Currency,
		Provider:    payment.Provider,
		PhoneNumber: payment.PhoneNumber,
		Status:      StatusProcessing,
		Type:        typ,
		Reason:      reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (r *Refund) Decide(target Status) TransitionDecision {
	return DecideTransition(r.Status, target)
}

func (r *Refund) ApplyStatus(target Status) error {
	switch r.Decide(target) {
	case TransitionApply:
		r.Status = target
		r.UpdatedAt = time.Now()
		return nil
	case TransitionConflict:
		return ErrConflictingTerminalState
	default:
		return nil
	}
}
