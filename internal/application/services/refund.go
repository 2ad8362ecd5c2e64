package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

type RefundCommand struct {
	PaymentID string
	BookingID string
	Amount    int64
	Reason    string

	// SeatsRemoved and PricePerSeat, when provided by the booking
	// application, cap the refund at the value of the seats actually
	// removed.
	SeatsRemoved int
	PricePerSeat int64
}

type RefundResult struct {
	RefundID    string
	RefundToken string
	Status      domain.Status
	Type        domain.RefundType
	Message     string
}

// RefundService initiates reversals against completed payments.
type RefundService struct {
	refunds  application.RefundRepository
	payments application.PaymentRepository
	router   *application.ProviderRouter
	watcher  Watcher
	logger   *slog.Logger
}

func NewRefundService(
	refunds application.RefundRepository,
	payments application.PaymentRepository,
	router *application.ProviderRouter,
	watcher Watcher,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		refunds:  refunds,
		payments: payments,
		router:   router,
		watcher:  watcher,
		logger:   logger,
	}
}

// Initiate creates the refund record first, in processing, then submits it
// upstream. Both submission outcomes are recorded against that record;
// completion later flips the parent payment to partial_refund through
// reconciliation.
func (s *RefundService) Initiate(ctx context.Context, cmd RefundCommand) (*RefundResult, error) {
	payment, err := s.payments.FindByID(ctx, cmd.PaymentID)
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}
	if cmd.BookingID != "" && cmd.BookingID != payment.BookingID {
		return nil, application.NewInvalidInputError(fmt.Errorf("booking %s does not own payment %s", cmd.BookingID, cmd.PaymentID))
	}

	if cmd.SeatsRemoved > 0 && cmd.PricePerSeat > 0 {
		ceiling := domain.SeatRefundAmount(cmd.SeatsRemoved, cmd.PricePerSeat)
		if cmd.Amount > ceiling {
			return nil, application.NewInvalidInputError(domain.ErrRefundExceedsCeiling)
		}
	}

	refund, err := domain.NewRefund(uuid.New().String(), payment, cmd.Amount, cmd.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPaymentNotRefundable):
			return nil, application.NewConflictError(err)
		default:
			return nil, application.NewInvalidInputError(err)
		}
	}

	if err := s.refunds.Create(ctx, refund); err != nil {
		return nil, application.NewInternalError(err)
	}

	client, err := s.router.For(payment.Provider)
	if err != nil {
		return nil, err
	}

	res, err := client.Refund(ctx, provider.RefundRequest{
		OriginalToken: payment.ProviderToken,
		Phone:         payment.PhoneNumber,
		Amount:        cmd.Amount,
		Currency:      payment.Currency,
		Reason:        cmd.Reason,
		Reference:     refund.ID,
	})
	if err != nil {
		// Transport failure. The record stays behind as failed for audit.
		if _, updErr := s.refunds.UpdateStatus(ctx, refund.ID, domain.StatusProcessing, domain.StatusFailed, nil); updErr != nil {
			s.logger.Error("failed to record refund submission failure", "refund_id", refund.ID, "error", updErr)
		}
		return nil, application.NewSubmissionFailedError(err)
	}

	if !res.Success {
		if _, updErr := s.refunds.UpdateStatus(ctx, refund.ID, domain.StatusProcessing, domain.StatusFailed, res.Raw); updErr != nil {
			s.logger.Error("failed to record refund decline", "refund_id", refund.ID, "error", updErr)
		}
		return &RefundResult{
			RefundID: refund.ID,
			Status:   domain.StatusFailed,
			Type:     refund.Type,
			Message:  res.Message,
		}, nil
	}

	refund.ProviderToken = res.Token
	if err := s.refunds.SetProviderToken(ctx, refund.ID, res.Token, res.Raw); err != nil {
		s.logger.Error("refund accepted by provider but token not recorded",
			"reconciliation_risk", true,
			"refund_id", refund.ID,
			"provider", payment.Provider,
			"token", res.Token,
			"error", err,
		)
		return nil, application.NewReconciliationRiskError(err)
	}

	if s.watcher != nil {
		s.watcher.Watch(payment.Provider, provider.KindRefund, res.Token)
	}

	return &RefundResult{
		RefundID:    refund.ID,
		RefundToken: res.Token,
		Status:      refund.Status,
		Type:        refund.Type,
		Message:     res.Message,
	}, nil
}
