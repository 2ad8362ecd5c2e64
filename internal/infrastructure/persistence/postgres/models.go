package postgres

import (
	"encoding/json"
	"time"

	"github.com/ssekandi/safiri-payments/internal/domain"
)

type paymentModel struct {
	ID               string
	BookingID        string
	Amount           int64
	Currency         string
	Provider         string
	PhoneNumber      string
	IdempotencyKey   string
	ProviderToken    *string
	Status           string
	FinancialTxID    *string
	ProviderResponse []byte
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (m paymentModel) toDomain() *domain.Payment {
	p := &domain.Payment{
		ID:               m.ID,
		BookingID:        m.BookingID,
		Amount:           m.Amount,
		Currency:         m.Currency,
		Provider:         domain.Provider(m.Provider),
		PhoneNumber:      m.PhoneNumber,
		IdempotencyKey:   m.IdempotencyKey,
		Status:           domain.Status(m.Status),
		FinancialTxID:    m.FinancialTxID,
		ProviderResponse: m.ProviderResponse,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.ProviderToken != nil {
		p.ProviderToken = *m.ProviderToken
	}
	return p
}

type payoutModel struct {
	ID                string
	PaymentID         *string
	BookingID         string
	DriverID          string
	Amount            int64
	Currency          string
	Provider          string
	PhoneNumber       string
	Reason            string
	ProviderToken     *string
	Status            string
	RetryCount        int
	LastRetryAt       *time.Time
	RetryHistory      []byte
	MaxRetriesReached bool
	FailureReason     *string
	ProviderStatus    *string
	ProviderResponse  []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (m payoutModel) toDomain() *domain.Payout {
	p := &domain.Payout{
		ID:                m.ID,
		BookingID:         m.BookingID,
		DriverID:          m.DriverID,
		Amount:            m.Amount,
		Currency:          m.Currency,
		Provider:          domain.Provider(m.Provider),
		PhoneNumber:       m.PhoneNumber,
		Reason:            m.Reason,
		Status:            domain.Status(m.Status),
		RetryCount:        m.RetryCount,
		LastRetryAt:       m.LastRetryAt,
		MaxRetriesReached: m.MaxRetriesReached,
		FailureReason:     m.FailureReason,
		ProviderStatus:    m.ProviderStatus,
		ProviderResponse:  m.ProviderResponse,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.PaymentID != nil {
		p.PaymentID = *m.PaymentID
	}
	if m.ProviderToken != nil {
		p.ProviderToken = *m.ProviderToken
	}
	if len(m.RetryHistory) > 0 {
		_ = json.Unmarshal(m.RetryHistory, &p.RetryHistory)
	}
	return p
}

type refundModel struct {
	ID               string
	PaymentID        string
	BookingID        string
	Amount           int64
	Currency         string
	Provider         string
	PhoneNumber      string
	ProviderToken    *string
	Status           string
	Type             string
	Reason           string
	ProviderResponse []byte
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (m refundModel) toDomain() *domain.Refund {
	r := &domain.Refund{
		ID:               m.ID,
		PaymentID:        m.PaymentID,
		BookingID:        m.BookingID,
		Amount:           m.Amount,
		Currency:         m.Currency,
		Provider:         domain.Provider(m.Provider),
		PhoneNumber:      m.PhoneNumber,
		Status:           domain.Status(m.Status),
		Type:             domain.RefundType(m.Type),
		Reason:           m.Reason,
		ProviderResponse: m.ProviderResponse,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.ProviderToken != nil {
		r.ProviderToken = *m.ProviderToken
	}
	return r
}

// nullable converts empty strings to NULL-able params.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// auditBlob sanitizes a raw provider payload for a jsonb column. Providers
// occasionally return empty bodies or non-JSON error pages; those are
// wrapped rather than dropped.
func auditBlob(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return raw
	}
	wrapped, err := json.Marshal(map[string]string{"raw": string(raw)})
	if err != nil {
		return nil
	}
	return wrapped
}
