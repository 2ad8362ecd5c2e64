package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

type PayoutCommand struct {
	DriverID    string
	BookingID   string
	PaymentID   string
	Amount      int64
	PhoneNumber string
	Reason      string
}

type PayoutResult struct {
	PayoutID         string
	TransactionToken string
	Status           domain.Status
	Message          string
}

// PayoutService initiates driver disbursements and resubmits them for the
// retry engine.
type PayoutService struct {
	payouts  application.PayoutRepository
	router   *application.ProviderRouter
	watcher  Watcher
	currency string
	logger   *slog.Logger
}

func NewPayoutService(
	payouts application.PayoutRepository,
	router *application.ProviderRouter,
	watcher Watcher,
	currency string,
	logger *slog.Logger,
) *PayoutService {
	return &PayoutService{
		payouts:  payouts,
		router:   router,
		watcher:  watcher,
		currency: currency,
		logger:   logger,
	}
}

func (s *PayoutService) Initiate(ctx context.Context, cmd PayoutCommand) (*PayoutResult, error) {
	if cmd.Amount <= 0 {
		return nil, application.NewInvalidInputError(domain.ErrInvalidAmount)
	}

	phone, err := domain.NormalizePhone(cmd.PhoneNumber)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	prov, err := s.router.Select(phone, "")
	if err != nil {
		return nil, err
	}
	client, err := s.router.For(prov)
	if err != nil {
		return nil, err
	}

	payout, err := domain.NewPayout(uuid.New().String(), cmd.PaymentID, cmd.BookingID, cmd.DriverID, cmd.Amount, s.currency, prov, phone, cmd.Reason)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	res, err := client.Payout(ctx, provider.PayoutRequest{
		Phone:     phone,
		Amount:    cmd.Amount,
		Currency:  s.currency,
		Reason:    cmd.Reason,
		Reference: payout.ID,
	})
	if err != nil {
		return nil, application.NewSubmissionFailedError(err)
	}

	payout.ProviderToken = res.Token
	payout.ProviderResponse = res.Raw
	if !res.Success {
		payout.Status = domain.StatusFailed
		msg := res.Message
		payout.FailureReason = &msg
	}

	if err := s.payouts.Create(ctx, payout); err != nil {
		if res.Success {
			s.logger.Error("payout accepted by provider but not recorded",
				"reconciliation_risk", true,
				"booking_id", cmd.BookingID,
				"driver_id", cmd.DriverID,
				"provider", prov,
				"token", res.Token,
				"error", err,
			)
			return nil, application.NewReconciliationRiskError(err)
		}
		return nil, application.NewInternalError(err)
	}

	if res.Success && s.watcher != nil {
		s.watcher.Watch(prov, provider.KindPayout, payout.ProviderToken)
	}

	return &PayoutResult{
		PayoutID:         payout.ID,
		TransactionToken: payout.ProviderToken,
		Status:           payout.Status,
		Message:          res.Message,
	}, nil
}

// Resubmit performs one retry attempt for a payout that has already been
// claimed through the repository's compare-and-swap. It submits under a
// fresh per-attempt reference and returns the new provider token.
func (s *PayoutService) Resubmit(ctx context.Context, payout *domain.Payout, attempt int) (*provider.Result, error) {
	client, err := s.router.For(payout.Provider)
	if err != nil {
		return nil, err
	}

	return client.Payout(ctx, provider.PayoutRequest{
		Phone:     payout.PhoneNumber,
		Amount:    payout.Amount,
		Currency:  payout.Currency,
		Reason:    payout.Reason,
		Reference: fmt.Sprintf("%s-r%d", payout.ID, attempt),
	})
}
