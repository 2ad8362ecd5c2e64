package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/domain"
)

const payoutColumns = `
	id, payment_id, booking_id, driver_id, amount, currency, provider, phone_number, reason,
	provider_token, status, retry_count, last_retry_at, retry_history, max_retries_reached,
	failure_reason, provider_status, provider_response, created_at, updated_at`

type PayoutRepository struct {
	db Executor
}

func NewPayoutRepository(db Executor) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) Create(ctx context.Context, p *domain.Payout) error {
	query := `
		INSERT INTO payouts (
			id, payment_id, booking_id, driver_id, amount, currency, provider, phone_number, reason,
			provider_token, status, retry_count, last_retry_at, retry_history, max_retries_reached,
			failure_reason, provider_status, provider_response, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, '[]'::jsonb, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.db.Exec(ctx, query,
		p.ID,
		nullable(p.PaymentID),
		p.BookingID,
		p.DriverID,
		p.Amount,
		p.Currency,
		string(p.Provider),
		p.PhoneNumber,
		p.Reason,
		nullable(p.ProviderToken),
		string(p.Status),
		p.RetryCount,
		p.LastRetryAt,
		p.MaxRetriesReached,
		p.FailureReason,
		p.ProviderStatus,
		auditBlob(p.ProviderResponse),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payout: %w", err)
	}

	return nil
}

func (r *PayoutRepository) FindByID(ctx context.Context, id string) (*domain.Payout, error) {
	query := `SELECT` + payoutColumns + ` FROM payouts WHERE id = $1`
	return scanPayout(r.db.QueryRow(ctx, query, id))
}

func (r *PayoutRepository) FindByToken(ctx context.Context, token string) (*domain.Payout, error) {
	query := `SELECT` + payoutColumns + ` FROM payouts WHERE provider_token = $1`
	return scanPayout(r.db.QueryRow(ctx, query, token))
}

func (r *PayoutRepository) UpdateStatus(ctx context.Context, id string, expected, target domain.Status, raw []byte, providerStatus, failureReason string) (bool, error) {
	query := `
		UPDATE payouts
		SET status = $1,
			provider_response = COALESCE($2, provider_response),
			provider_status = COALESCE($3, provider_status),
			failure_reason = COALESCE($4, failure_reason),
			updated_at = now()
		WHERE id = $5 AND status = $6
	`

	tag, err := r.db.Exec(ctx, query,
		string(target),
		auditBlob(raw),
		nullable(providerStatus),
		nullable(failureReason),
		id,
		string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update payout status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ClaimRetry is the compare-and-swap that serializes concurrent retry
// triggers: the count check, the ceiling check and the cooldown check all
// happen inside one conditional update, evaluated at the moment of retry.
func (r *PayoutRepository) ClaimRetry(ctx context.Context, id string, expectedRetryCount int, cooldown time.Duration) (bool, error) {
	query := `
		UPDATE payouts
		SET status = 'processing',
			retry_count = retry_count + 1,
			last_retry_at = now(),
			updated_at = now()
		WHERE id = $1
		  AND status = 'failed'
		  AND max_retries_reached = FALSE
		  AND retry_count = $2
		  AND retry_count < $3
		  AND GREATEST(created_at, COALESCE(last_retry_at, created_at)) <= now() - make_interval(secs => $4)
	`

	tag, err := r.db.Exec(ctx, query, id, expectedRetryCount, domain.MaxPayoutRetries, cooldown.Seconds())
	if err != nil {
		return false, fmt.Errorf("failed to claim payout retry: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *PayoutRepository) RecordRetryResult(ctx context.Context, id string, attempt domain.RetryAttempt) error {
	entry, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal retry attempt: %w", err)
	}

	// Declined and transport-failed attempts carry no new token; the stored
	// token survives them.
	query := `
		UPDATE payouts
		SET provider_token = COALESCE(NULLIF($2, ''), provider_token),
			retry_history = retry_history || $3::jsonb,
			updated_at = now()
		WHERE id = $1
	`

	_, err = r.db.Exec(ctx, query, id, attempt.NewToken, entry)
	if err != nil {
		return fmt.Errorf("failed to record retry result: %w", err)
	}

	return nil
}

func (r *PayoutRepository) MarkExhausted(ctx context.Context, id string) error {
	query := `
		UPDATE payouts
		SET status = 'failed',
			max_retries_reached = TRUE,
			updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark payout exhausted: %w", err)
	}

	return nil
}

// FindRetryCandidates returns failed payouts the worker should act on:
// below-ceiling rows whose cooldown has elapsed, plus rows already at the
// ceiling, which the worker flags as exhausted. A payout whose last attempt
// fails asynchronously lands at the ceiling without the flag set; excluding
// it here would leave it invisible forever.
func (r *PayoutRepository) FindRetryCandidates(ctx context.Context, cooldown time.Duration, limit int) ([]*domain.Payout, error) {
	query := `SELECT` + payoutColumns + `
		FROM payouts
		WHERE status = 'failed'
		  AND max_retries_reached = FALSE
		  AND (retry_count >= $1
		       OR GREATEST(created_at, COALESCE(last_retry_at, created_at)) <= now() - make_interval(secs => $2))
		ORDER BY created_at ASC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, domain.MaxPayoutRetries, cooldown.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("query retry candidates: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payout, error) {
		return scanPayoutRow(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan retry candidates: %w", err)
	}
	return results, nil
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	p, err := scanPayoutRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, application.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan payout: %w", err)
	}
	return p, nil
}

func scanPayoutRow(row pgx.Row) (*domain.Payout, error) {
	var m payoutModel
	err := row.Scan(
		&m.ID, &m.PaymentID, &m.BookingID, &m.DriverID, &m.Amount, &m.Currency, &m.Provider, &m.PhoneNumber, &m.Reason,
		&m.ProviderToken, &m.Status, &m.RetryCount, &m.LastRetryAt, &m.RetryHistory, &m.MaxRetriesReached,
		&m.FailureReason, &m.ProviderStatus, &m.ProviderResponse, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m.toDomain(), nil
}
