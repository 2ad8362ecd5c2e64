package domain

import "time"

// Payment is a collection attempt against a passenger for a booking.
// Exactly one row may exist per (booking, idempotency key) pair; the
// repository enforces this with a unique constraint and initiation returns
// the existing row on a duplicate key.
type Payment struct {
	ID             string
	BookingID      string
	Amount         int64
	Currency       string
	Provider       Provider
	PhoneNumber    string
	IdempotencyKey string

	// ProviderToken is the provider-assigned identifier correlating this
	// submission with later callbacks and status checks.
	ProviderToken string
	Status        Status

	// FinancialTxID is the settled financial transaction id some providers
	// report once the money has actually moved.
	FinancialTxID *string

	// ProviderResponse is the raw audit blob of the last provider payload
	// applied to this record.
	ProviderResponse []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPayment(id, bookingID string, amount int64, currency string, prov Provider, phone, idempotencyKey string) (*Payment, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if idempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}
	now := time.Now()
	return &Payment{
		ID:             id,
		BookingID:      bookingID,
		Amount:         amount,
		Currency:       currency,
		Provider:       prov,
		PhoneNumber:    phone,
		IdempotencyKey: idempotencyKey,
		Status:         StatusProcessing,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Decide checks a proposed transition without applying it.
func (p *Payment) Decide(target Status) TransitionDecision {
	return DecideTransition(p.Status, target)
}

// ApplyStatus mutates the in-memory entity after a transition has been
// decided. Persistence goes through the repository's conditional update so
// concurrent reconciliation paths cannot both apply.
func (p *Payment) ApplyStatus(target Status) error {
	switch p.Decide(target) {
	case TransitionApply:
		p.Status = target
		p.UpdatedAt = time.Now()
		return nil
	case TransitionConflict:
		return ErrConflictingTerminalState
	default:
		return nil
	}
}
