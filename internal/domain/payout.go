package domain

import "time"

const (
	// MaxPayoutRetries is the hard ceiling on payout resubmissions.
	MaxPayoutRetries = 3
	// PayoutRetryCooldown must elapse since the later of creation or the
	// last retry before a failed payout may be resubmitted.
	PayoutRetryCooldown = 5 * time.Minute
)

// RetryAttempt is one structured entry in a payout's retry history.
type RetryAttempt struct {
	Attempt       int       `json:"attempt"`
	At            time.Time `json:"at"`
	PreviousToken string    `json:"previous_token"`
	NewToken      string    `json:"new_token"`
	Reason        string    `json:"reason"`
}

// Payout is a disbursement attempt to a driver. Retries produce a new
// provider token but keep the same payout id; prior tokens live on in
// RetryHistory for audit.
type Payout struct {
	ID          string
	PaymentID   string
	BookingID   string
	DriverID    string
	Amount      int64
	Currency    string
	Provider    Provider
	PhoneNumber string
	Reason      string

	ProviderToken string
	Status        Status

	RetryCount        int
	LastRetryAt       *time.Time
	RetryHistory      []RetryAttempt
	MaxRetriesReached bool

	// FailureReason and ProviderStatus hold the provider's last reported
	// failure vocabulary, feeding the retryable-vs-permanent decision.
	FailureReason  *string
	ProviderStatus *string

	ProviderResponse []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPayout(id, paymentID, bookingID, driverID string, amount int64, currency string, prov Provider, phone, reason string) (*Payout, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	now := time.Now()
	return &Payout{
		ID:          id,
		PaymentID:   paymentID,
		BookingID:   bookingID,
		DriverID:    driverID,
		Amount:      amount,
		Currency:    currency,
		Provider:    prov,
		PhoneNumber: phone,
		Reason:      reason,
		Status:      StatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (p *Payout) Decide(target Status) TransitionDecision {
	return DecideTransition(p.Status, target)
}

func (p *Payout) ApplyStatus(target Status) error {
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

// retryReferenceTime is the later of creation and the last retry attempt.
func (p *Payout) retryReferenceTime() time.Time {
	if p.LastRetryAt != nil && p.LastRetryAt.After(p.CreatedAt) {
		return *p.LastRetryAt
	}
	return p.CreatedAt
}

// CanRetry checks every retry precondition at once: failed status, ceiling
// not reached, cooldown elapsed. Callers must still claim the retry through
// the repository's conditional update before resubmitting.
func (p *Payout) CanRetry(now time.Time) error {
	if p.Status != StatusFailed || p.MaxRetriesReached {
		return ErrPayoutNotRetryable
	}
	if p.RetryCount >= MaxPayoutRetries {
		return ErrMaxRetriesReached
	}
	if now.Sub(p.retryReferenceTime()) < PayoutRetryCooldown {
		return ErrRetryCooldownActive
	}
	return nil
}

// RecordRetry moves the payout back to processing under a new provider
// token and appends the audit entry. The repository mirrors this with a
// compare-and-swap on retry_count.
func (p *Payout) RecordRetry(newToken, reason string, now time.Time) {
	p.RetryHistory = append(p.RetryHistory, RetryAttempt{
		Attempt:       p.RetryCount + 1,
		At:            now,
		PreviousToken: p.ProviderToken,
		NewToken:      newToken,
		Reason:        reason,
	})
	p.RetryCount++
	p.LastRetryAt = &now
	p.ProviderToken = newToken
	p.Status = StatusProcessing
	p.UpdatedAt = now
}

// MarkExhausted permanently fails a payout that hit the retry ceiling.
// Downstream collaborators use MaxRetriesReached to decide whether to page
// a human operator.
func (p *Payout) MarkExhausted() {
	p.Status = StatusFailed
	p.MaxRetriesReached = true
	p.UpdatedAt = time.Now()
}
