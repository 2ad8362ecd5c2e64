// Package application holds the orchestration layer: the ports its services
// depend on, the provider routing decision, and the service error taxonomy.
package application

import (
	"context"
	"errors"
	"time"

	"github.com/ssekandi/safiri-payments/internal/domain"
)

// ErrNotFound is returned by repositories when no record matches.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateIdempotencyKey is returned by the payment repository when an
// insert collides with the (booking, idempotency key) unique constraint.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// PaymentRepository persists passenger collection attempts. UpdateStatus is
// a conditional write keyed on the expected current status, so two racing
// reconciliation paths cannot both apply the same transition.
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	FindByID(ctx context.Context, id string) (*domain.Payment, error)
	FindByIdempotencyKey(ctx context.Context, bookingID, key string) (*domain.Payment, error)
	FindByToken(ctx context.Context, token string) (*domain.Payment, error)
	// UpdateStatus moves the payment from expected to target and stores the
	// raw provider payload and settled transaction id when present. Returns
	// false without error when the row was no longer in the expected status.
	UpdateStatus(ctx context.Context, id string, expected, target domain.Status, raw []byte, financialTxID string) (bool, error)
}

// PayoutRepository persists driver disbursements and owns the retry
// bookkeeping. ClaimRetry is the compare-and-swap that makes concurrent
// retry triggers safe.
type PayoutRepository interface {
	Create(ctx context.Context, p *domain.Payout) error
	FindByID(ctx context.Context, id string) (*domain.Payout, error)
	FindByToken(ctx context.Context, token string) (*domain.Payout, error)
	UpdateStatus(ctx context.Context, id string, expected, target domain.Status, raw []byte, providerStatus, failureReason string) (bool, error)
	// ClaimRetry atomically moves a failed payout back to processing and
	// increments retry_count, but only if the stored retry count still
	// equals expectedRetryCount, the ceiling is not hit, and the cooldown
	// has elapsed. Returns false when another trigger claimed it first or
	// the preconditions no longer hold.
	ClaimRetry(ctx context.Context, id string, expectedRetryCount int, cooldown time.Duration) (bool, error)
	// RecordRetryResult stores the new provider token and appends the
	// structured history entry after a claimed retry was resubmitted.
	RecordRetryResult(ctx context.Context, id string, attempt domain.RetryAttempt) error
	// MarkExhausted permanently fails a payout at the retry ceiling and
	// raises the max_retries_reached flag.
	MarkExhausted(ctx context.Context, id string) error
	FindRetryCandidates(ctx context.Context, cooldown time.Duration, limit int) ([]*domain.Payout, error)
}

// RefundRepository persists reversals.
type RefundRepository interface {
	Create(ctx context.Context, r *domain.Refund) error
	FindByID(ctx context.Context, id string) (*domain.Refund, error)
	FindByToken(ctx context.Context, token string) (*domain.Refund, error)
	SetProviderToken(ctx context.Context, id, token string, raw []byte) error
	UpdateStatus(ctx context.Context, id string, expected, target domain.Status, raw []byte) (bool, error)
}

// Notification is the payload handed to the booking application's
// notification dispatcher. UserID carries the driver id for payouts and the
// booking reference for passenger-facing events; the booking app resolves
// the passenger from the booking.
type Notification struct {
	UserID  string
	Title   string
	Message string
	Data    map[string]string
}

// Notifier delivers user notifications. It is best effort: callers invoke
// it fire-and-forget and its failure never affects a transition's
// durability.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
