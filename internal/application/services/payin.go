package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

// Watcher starts background status polling for a submitted transaction.
// Implemented by the worker poller; nil disables polling (tests).
type Watcher interface {
	Watch(prov domain.Provider, kind provider.Kind, token string)
}

type PayinCommand struct {
	BookingID      string
	Amount         int64
	Provider       string
	PhoneNumber    string
	IdempotencyKey string
	Reason         string
}

type PayinResult struct {
	PaymentID        string
	TransactionToken string
	Status           domain.Status
	Message          string
	AlreadyExisted   bool
}

// PayinService initiates passenger collections.
type PayinService struct {
	payments application.PaymentRepository
	router   *application.ProviderRouter
	watcher  Watcher
	currency string
	logger   *slog.Logger
}

func NewPayinService(
	payments application.PaymentRepository,
	router *application.ProviderRouter,
	watcher Watcher,
	currency string,
	logger *slog.Logger,
) *PayinService {
	return &PayinService{
		payments: payments,
		router:   router,
		watcher:  watcher,
		currency: currency,
		logger:   logger,
	}
}

// Initiate submits a collection request. Submitting twice with the same
// idempotency key returns the existing payment; it never creates a second
// charge attempt.
func (s *PayinService) Initiate(ctx context.Context, cmd PayinCommand) (*PayinResult, error) {
	if cmd.Amount <= 0 {
		return nil, application.NewInvalidInputError(domain.ErrInvalidAmount)
	}
	if cmd.IdempotencyKey == "" {
		return nil, application.NewInvalidInputError(domain.ErrMissingIdempotencyKey)
	}

	phone, err := domain.NormalizePhone(cmd.PhoneNumber)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	prov, err := s.router.Select(phone, domain.Provider(cmd.Provider))
	if err != nil {
		return nil, err
	}

	existing, err := s.payments.FindByIdempotencyKey(ctx, cmd.BookingID, cmd.IdempotencyKey)
	if err != nil && !errors.Is(err, application.ErrNotFound) {
		return nil, application.NewInternalError(err)
	}
	if existing != nil {
		return &PayinResult{
			PaymentID:        existing.ID,
			TransactionToken: existing.ProviderToken,
			Status:           existing.Status,
			AlreadyExisted:   true,
		}, nil
	}

	client, err := s.router.For(prov)
	if err != nil {
		return nil, err
	}

	payment, err := domain.NewPayment(uuid.New().String(), cmd.BookingID, cmd.Amount, s.currency, prov, phone, cmd.IdempotencyKey)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	res, err := client.Payin(ctx, provider.PayinRequest{
		Phone:     phone,
		Amount:    cmd.Amount,
		Currency:  s.currency,
		Reason:    cmd.Reason,
		Reference: payment.ID,
	})
	if err != nil {
		// Transport failure: nothing was durably submitted, no record.
		return nil, application.NewSubmissionFailedError(err)
	}

	payment.ProviderToken = res.Token
	payment.ProviderResponse = res.Raw
	if !res.Success {
		// Provider-reported business decline: record the terminal outcome.
		payment.Status = domain.StatusFailed
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, application.ErrDuplicateIdempotencyKey) {
			// Lost a race with an identical concurrent submission.
			dup, findErr := s.payments.FindByIdempotencyKey(ctx, cmd.BookingID, cmd.IdempotencyKey)
			if findErr == nil {
				return &PayinResult{
					PaymentID:        dup.ID,
					TransactionToken: dup.ProviderToken,
					Status:           dup.Status,
					AlreadyExisted:   true,
				}, nil
			}
		}
		if res.Success {
			// Money may be in flight with no local record. Alertable.
			s.logger.Error("payin accepted by provider but not recorded",
				"reconciliation_risk", true,
				"booking_id", cmd.BookingID,
				"provider", prov,
				"token", res.Token,
				"error", err,
			)
			return nil, application.NewReconciliationRiskError(err)
		}
		return nil, application.NewInternalError(err)
	}

	if res.Success && s.watcher != nil {
		s.watcher.Watch(prov, provider.KindPayin, payment.ProviderToken)
	}

	return &PayinResult{
		PaymentID:        payment.ID,
		TransactionToken: payment.ProviderToken,
		Status:           payment.Status,
		Message:          res.Message,
	}, nil
}
