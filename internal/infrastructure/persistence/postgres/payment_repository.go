package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/domain"
)

const paymentColumns = `
	id, booking_id, amount, currency, provider, phone_number, idempotency_key,
	provider_token, status, financial_tx_id, provider_response, created_at, updated_at`

type PaymentRepository struct {
	db Executor
}

func NewPaymentRepository(db Executor) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (
			id, booking_id, amount, currency, provider, phone_number, idempotency_key,
			provider_token, status, financial_tx_id, provider_response, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.BookingID,
		p.Amount,
		p.Currency,
		string(p.Provider),
		p.PhoneNumber,
		p.IdempotencyKey,
		nullable(p.ProviderToken),
		string(p.Status),
		p.FinancialTxID,
		auditBlob(p.ProviderResponse),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return application.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.db.QueryRow(ctx, query, id))
}

func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, bookingID, key string) (*domain.Payment, error) {
	query := `SELECT` + paymentColumns + ` FROM payments WHERE booking_id = $1 AND idempotency_key = $2`
	return scanPayment(r.db.QueryRow(ctx, query, bookingID, key))
}

func (r *PaymentRepository) FindByToken(ctx context.Context, token string) (*domain.Payment, error) {
	query := `SELECT` + paymentColumns + ` FROM payments WHERE provider_token = $1`
	return scanPayment(r.db.QueryRow(ctx, query, token))
}

// UpdateStatus is the conditional transition write: it only applies while
// the row is still in the expected status, so whichever reconciliation path
// gets there first wins and the loser is a clean no-op.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, expected, target domain.Status, raw []byte, financialTxID string) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1,
			provider_response = COALESCE($2, provider_response),
			financial_tx_id = COALESCE($3, financial_tx_id),
			updated_at = now()
		WHERE id = $4 AND status = $5
	`

	tag, err := r.db.Exec(ctx, query,
		string(target),
		auditBlob(raw),
		nullable(financialTxID),
		id,
		string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var m paymentModel
	err := row.Scan(
		&m.ID, &m.BookingID, &m.Amount, &m.Currency, &m.Provider, &m.PhoneNumber, &m.IdempotencyKey,
		&m.ProviderToken, &m.Status, &m.FinancialTxID, &m.ProviderResponse, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, application.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return m.toDomain(), nil
}
