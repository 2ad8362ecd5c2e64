package domain

import "errors"

var (
	// ErrConflictingTerminalState is returned when a transition would
	// overwrite one terminal status with a different one, e.g. a late
	// duplicate callback trying to force a completed payment to failed.
	ErrConflictingTerminalState = errors.New("conflicting terminal state transition")

	ErrInvalidPhoneNumber = errors.New("phone number is not a recognized mobile money number")
	ErrInvalidAmount      = errors.New("amount must be positive")

	ErrRefundExceedsPayment  = errors.New("refund amount exceeds original payment amount")
	ErrRefundExceedsCeiling  = errors.New("refund amount exceeds refundable seat ceiling")
	ErrPaymentNotRefundable  = errors.New("payment is not in a refundable state")
	ErrPayoutNotRetryable    = errors.New("payout is not in a retryable state")
	ErrRetryCooldownActive   = errors.New("retry cooldown has not elapsed")
	ErrMaxRetriesReached     = errors.New("payout retry ceiling reached")
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
)
