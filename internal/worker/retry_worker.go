// Package worker runs the background loops: the payout retry engine and the
// status poller that follows submitted transactions until they settle.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/application/services"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

// RetryWorker periodically scans for failed payouts that are worth another
// attempt. Every resubmission is claimed through the repository's
// compare-and-swap first, so two instances scanning the same table cannot
// double-disburse.
type RetryWorker struct {
	payouts       application.PayoutRepository
	payoutService *services.PayoutService
	watcher       services.Watcher
	interval      time.Duration
	batchSize     int
	logger        *slog.Logger
}

func NewRetryWorker(
	payouts application.PayoutRepository,
	payoutService *services.PayoutService,
	watcher services.Watcher,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *RetryWorker {
	return &RetryWorker{
		payouts:       payouts,
		payoutService: payoutService,
		watcher:       watcher,
		interval:      interval,
		batchSize:     batchSize,
		logger:        logger,
	}
}

func (w *RetryWorker) Start(ctx context.Context) {
	w.logger.Info("payout retry worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("payout retry worker stopping")
			return
		case <-ticker.C:
			if err := w.processRetries(ctx); err != nil {
				w.logger.Error("retry processing failed", "error", err)
			}
		}
	}
}

func (w *RetryWorker) processRetries(ctx context.Context) error {
	candidates, err := w.payouts.FindRetryCandidates(ctx, domain.PayoutRetryCooldown, w.batchSize)
	if err != nil {
		return err
	}

	var processed int
	for _, payout := range candidates {
		if err := w.retryPayout(ctx, payout); err != nil {
			w.logger.Error("payout retry failed",
				"payout_id", payout.ID,
				"retry_count", payout.RetryCount,
				"error", err,
			)
		} else {
			processed++
		}
	}

	if processed > 0 {
		w.logger.Info("processed payout retries", "count", processed)
	}
	return nil
}

func (w *RetryWorker) retryPayout(ctx context.Context, payout *domain.Payout) error {
	reason := ""
	if payout.FailureReason != nil {
		reason = *payout.FailureReason
	}

	// A decline that can never succeed is closed out immediately instead of
	// burning attempts against it on every scan.
	if !provider.IsRetryableFailure(reason) {
		w.logger.Info("payout failure is not retryable, closing",
			"payout_id", payout.ID,
			"reason", reason,
		)
		return w.payouts.MarkExhausted(ctx, payout.ID)
	}

	if err := payout.CanRetry(time.Now()); err != nil {
		// A payout whose final attempt failed asynchronously (webhook or
		// poll) arrives here at the ceiling without the exhausted flag set;
		// it gets flagged now so operators see it and the scan stops
		// returning it.
		if errors.Is(err, domain.ErrMaxRetriesReached) {
			w.logger.Warn("payout exhausted its retry budget",
				"payout_id", payout.ID,
				"attempts", payout.RetryCount,
			)
			return w.payouts.MarkExhausted(ctx, payout.ID)
		}
		return nil
	}

	claimed, err := w.payouts.ClaimRetry(ctx, payout.ID, payout.RetryCount, domain.PayoutRetryCooldown)
	if err != nil {
		return err
	}
	if !claimed {
		// Another trigger claimed it, or the preconditions changed underneath.
		return nil
	}

	// Every claimed attempt gets a history entry, whatever its outcome, so
	// retry_count and the audit trail never diverge.
	attempt := payout.RetryCount + 1
	record := func(newToken string) {
		if err := w.payouts.RecordRetryResult(ctx, payout.ID, domain.RetryAttempt{
			Attempt:       attempt,
			At:            time.Now(),
			PreviousToken: payout.ProviderToken,
			NewToken:      newToken,
			Reason:        reason,
		}); err != nil {
			w.logger.Error("failed to record retry attempt", "payout_id", payout.ID, "error", err)
		}
	}

	res, err := w.payoutService.Resubmit(ctx, payout, attempt)
	if err != nil {
		// Transport failure: release back to failed so a later scan retries.
		record("")
		if _, updErr := w.payouts.UpdateStatus(ctx, payout.ID, domain.StatusProcessing, domain.StatusFailed, nil, "", reason); updErr != nil {
			w.logger.Error("failed to release claimed payout after transport error", "payout_id", payout.ID, "error", updErr)
		}
		return err
	}

	if !res.Success {
		record(res.Token)
		if _, updErr := w.payouts.UpdateStatus(ctx, payout.ID, domain.StatusProcessing, domain.StatusFailed, res.Raw, "", res.Message); updErr != nil {
			w.logger.Error("failed to record payout retry decline", "payout_id", payout.ID, "error", updErr)
		}
		if attempt >= domain.MaxPayoutRetries {
			w.logger.Warn("payout exhausted its retry budget",
				"payout_id", payout.ID,
				"attempts", attempt,
			)
			return w.payouts.MarkExhausted(ctx, payout.ID)
		}
		return nil
	}

	record(res.Token)

	w.logger.Info("payout resubmitted",
		"payout_id", payout.ID,
		"attempt", attempt,
		"provider", payout.Provider,
	)

	if w.watcher != nil {
		w.watcher.Watch(payout.Provider, provider.KindPayout, res.Token)
	}
	return nil
}
