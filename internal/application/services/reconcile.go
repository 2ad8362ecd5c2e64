// Package services implements the orchestration commands and the shared
// reconciliation path that webhooks, the poller and manual status checks
// all converge through.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

// Signal is one reconciliation input: a provider's claim about a
// transaction's outcome, already mapped to the canonical status.
type Signal struct {
	Target         domain.Status
	ProviderStatus string
	Reason         string
	FinancialTxID  string
	Raw            []byte
}

// Reconciler applies guarded status transitions. All writes go through the
// repositories' conditional updates, so when a callback and a poll race,
// exactly one applies and exactly one set of side effects fires.
type Reconciler struct {
	payments application.PaymentRepository
	payouts  application.PayoutRepository
	refunds  application.RefundRepository
	notifier application.Notifier
	logger   *slog.Logger
}

func NewReconciler(
	payments application.PaymentRepository,
	payouts application.PayoutRepository,
	refunds application.RefundRepository,
	notifier application.Notifier,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		payments: payments,
		payouts:  payouts,
		refunds:  refunds,
		notifier: notifier,
		logger:   logger,
	}
}

// ApplyPayment applies a signal to a payment. Returns whether the write was
// applied. A conflicting-terminal signal is logged as a consistency anomaly
// and returns domain.ErrConflictingTerminalState; callers decide whether
// that is fatal (webhooks still acknowledge).
func (r *Reconciler) ApplyPayment(ctx context.Context, p *domain.Payment, sig Signal) (bool, error) {
	switch domain.DecideTransition(p.Status, sig.Target) {
	case domain.TransitionSkip:
		return false, nil
	case domain.TransitionConflict:
		r.logger.Error("consistency anomaly: conflicting terminal transition",
			"payment_id", p.ID,
			"current", p.Status,
			"target", sig.Target,
			"provider_status", sig.ProviderStatus,
		)
		return false, domain.ErrConflictingTerminalState
	}

	applied, err := r.payments.UpdateStatus(ctx, p.ID, p.Status, sig.Target, sig.Raw, sig.FinancialTxID)
	if err != nil {
		return false, err
	}
	if !applied {
		// A concurrent reconciliation path got there first.
		r.logger.Debug("payment transition lost race", "payment_id", p.ID, "target", sig.Target)
		return false, nil
	}

	p.Status = sig.Target
	if sig.Target.IsTerminal() {
		r.notify(application.Notification{
			UserID:  p.BookingID,
			Title:   "Payment update",
			Message: paymentMessage(sig.Target),
			Data: map[string]string{
				"kind":       "payment",
				"id":         p.ID,
				"booking_id": p.BookingID,
				"status":     string(sig.Target),
			},
		})
	}
	return true, nil
}

// ApplyPayout applies a signal to a payout. Failure signals also record the
// provider's status and reason so the retry engine can classify them later.
func (r *Reconciler) ApplyPayout(ctx context.Context, p *domain.Payout, sig Signal) (bool, error) {
	switch domain.DecideTransition(p.Status, sig.Target) {
	case domain.TransitionSkip:
		return false, nil
	case domain.TransitionConflict:
		r.logger.Error("consistency anomaly: conflicting terminal transition",
			"payout_id", p.ID,
			"current", p.Status,
			"target", sig.Target,
			"provider_status", sig.ProviderStatus,
		)
		return false, domain.ErrConflictingTerminalState
	}

	applied, err := r.payouts.UpdateStatus(ctx, p.ID, p.Status, sig.Target, sig.Raw, sig.ProviderStatus, sig.Reason)
	if err != nil {
		return false, err
	}
	if !applied {
		r.logger.Debug("payout transition lost race", "payout_id", p.ID, "target", sig.Target)
		return false, nil
	}

	p.Status = sig.Target
	if sig.Target.IsTerminal() {
		r.notify(application.Notification{
			UserID:  p.DriverID,
			Title:   "Payout update",
			Message: payoutMessage(sig.Target, sig.Reason),
			Data: map[string]string{
				"kind":       "payout",
				"id":         p.ID,
				"booking_id": p.BookingID,
				"status":     string(sig.Target),
			},
		})
	}
	return true, nil
}

// ApplyRefund applies a signal to a refund. Refund completion flips the
// parent payment to partial_refund through the same guarded path.
func (r *Reconciler) ApplyRefund(ctx context.Context, rf *domain.Refund, sig Signal) (bool, error) {
	switch domain.DecideTransition(rf.Status, sig.Target) {
	case domain.TransitionSkip:
		return false, nil
	case domain.TransitionConflict:
		r.logger.Error("consistency anomaly: conflicting terminal transition",
			"refund_id", rf.ID,
			"current", rf.Status,
			"target", sig.Target,
			"provider_status", sig.ProviderStatus,
		)
		return false, domain.ErrConflictingTerminalState
	}

	applied, err := r.refunds.UpdateStatus(ctx, rf.ID, rf.Status, sig.Target, sig.Raw)
	if err != nil {
		return false, err
	}
	if !applied {
		r.logger.Debug("refund transition lost race", "refund_id", rf.ID, "target", sig.Target)
		return false, nil
	}

	rf.Status = sig.Target

	if sig.Target == domain.StatusCompleted {
		if err := r.flipParentPayment(ctx, rf); err != nil {
			r.logger.Error("failed to flip parent payment after refund",
				"refund_id", rf.ID,
				"payment_id", rf.PaymentID,
				"error", err,
			)
		}
	}

	if sig.Target.IsTerminal() {
		r.notify(application.Notification{
			UserID:  rf.BookingID,
			Title:   "Refund update",
			Message: refundMessage(sig.Target),
			Data: map[string]string{
				"kind":       "refund",
				"id":         rf.ID,
				"booking_id": rf.BookingID,
				"status":     string(sig.Target),
			},
		})
	}
	return true, nil
}

func (r *Reconciler) flipParentPayment(ctx context.Context, rf *domain.Refund) error {
	parent, err := r.payments.FindByID(ctx, rf.PaymentID)
	if err != nil {
		return err
	}
	if parent.Status == domain.StatusPartialRefund {
		// A previous refund already flipped it.
		return nil
	}
	_, err = r.payments.UpdateStatus(ctx, parent.ID, parent.Status, domain.StatusPartialRefund, nil, "")
	return err
}

// notify dispatches fire-and-forget. Delivery failure is logged and
// swallowed; it must never affect the transition that triggered it.
func (r *Reconciler) notify(n application.Notification) {
	if r.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.notifier.Send(ctx, n); err != nil {
			r.logger.Warn("notification dispatch failed", "user", n.UserID, "error", err)
		}
	}()
}

func paymentMessage(s domain.Status) string {
	switch s {
	case domain.StatusCompleted:
		return "Your payment was received."
	case domain.StatusFailed:
		return "Your payment could not be completed."
	default:
		return "Your payment status changed."
	}
}

func payoutMessage(s domain.Status, reason string) string {
	switch s {
	case domain.StatusCompleted:
		return "Your payout has been sent."
	case domain.StatusFailed:
		if provider.IsRetryableFailure(reason) {
			return "Your payout hit a temporary issue; it will be retried shortly."
		}
		return "Your payout could not be completed."
	default:
		return "Your payout status changed."
	}
}

func refundMessage(s domain.Status) string {
	switch s {
	case domain.StatusCompleted:
		return "Your refund has been processed."
	case domain.StatusFailed:
		return "Your refund could not be processed."
	default:
		return "Your refund status changed."
	}
}
