package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/domain"
)

const refundColumns = `
	id, payment_id, booking_id, amount, currency, provider, phone_number,
	provider_token, status, type, reason, provider_response, created_at, updated_at`

type RefundRepository struct {
	db Executor
}

func NewRefundRepository(db Executor) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(ctx context.Context, rf *domain.Refund) error {
	query := `
		INSERT INTO refunds (
			id, payment_id, booking_id, amount, currency, provider, phone_number,
			provider_token, status, type, reason, provider_response, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.Exec(ctx, query,
		rf.ID,
		rf.PaymentID,
		rf.BookingID,
		rf.Amount,
		rf.Currency,
		string(rf.Provider),
		rf.PhoneNumber,
		nullable(rf.ProviderToken),
		string(rf.Status),
		string(rf.Type),
		rf.Reason,
		auditBlob(rf.ProviderResponse),
		rf.CreatedAt,
		rf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}

	return nil
}

func (r *RefundRepository) FindByID(ctx context.Context, id string) (*domain.Refund, error) {
	query := `SELECT` + refundColumns + ` FROM refunds WHERE id = $1`
	return scanRefund(r.db.QueryRow(ctx, query, id))
}

func (r *RefundRepository) FindByToken(ctx context.Context, token string) (*domain.Refund, error) {
	query := `SELECT` + refundColumns + ` FROM refunds WHERE provider_token = $1`
	return scanRefund(r.db.QueryRow(ctx, query, token))
}

func (r *RefundRepository) SetProviderToken(ctx context.Context, id, token string, raw []byte) error {
	query := `
		UPDATE refunds
		SET provider_token = $2,
			provider_response = COALESCE($3, provider_response),
			updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, id, token, auditBlob(raw))
	if err != nil {
		return fmt.Errorf("failed to set refund provider token: %w", err)
	}

	return nil
}

func (r *RefundRepository) UpdateStatus(ctx context.Context, id string, expected, target domain.Status, raw []byte) (bool, error) {
	query := `
		UPDATE refunds
		SET status = $1,
			provider_response = COALESCE($2, provider_response),
			updated_at = now()
		WHERE id = $3 AND status = $4
	`

	tag, err := r.db.Exec(ctx, query,
		string(target),
		auditBlob(raw),
		id,
		string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update refund status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func scanRefund(row pgx.Row) (*domain.Refund, error) {
	var m refundModel
	err := row.Scan(
		&m.ID, &m.PaymentID, &m.BookingID, &m.Amount, &m.Currency, &m.Provider, &m.PhoneNumber,
		&m.ProviderToken, &m.Status, &m.Type, &m.Reason, &m.ProviderResponse, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, application.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan refund: %w", err)
	}
	return m.toDomain(), nil
}
