package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

// Resolved is a transaction located by provider token or id, whichever the
// caller had. Exactly one of Payment, Payout, Refund is set.
type Resolved struct {
	Kind    provider.Kind
	Payment *domain.Payment
	Payout  *domain.Payout
	Refund  *domain.Refund
}

func (r *Resolved) ID() string {
	switch r.Kind {
	case provider.KindPayout:
		return r.Payout.ID
	case provider.KindRefund:
		return r.Refund.ID
	default:
		return r.Payment.ID
	}
}

func (r *Resolved) Provider() domain.Provider {
	switch r.Kind {
	case provider.KindPayout:
		return r.Payout.Provider
	case provider.KindRefund:
		return r.Refund.Provider
	default:
		return r.Payment.Provider
	}
}

func (r *Resolved) Token() string {
	switch r.Kind {
	case provider.KindPayout:
		return r.Payout.ProviderToken
	case provider.KindRefund:
		return r.Refund.ProviderToken
	default:
		return r.Payment.ProviderToken
	}
}

func (r *Resolved) Status() domain.Status {
	switch r.Kind {
	case provider.KindPayout:
		return r.Payout.Status
	case provider.KindRefund:
		return r.Refund.Status
	default:
		return r.Payment.Status
	}
}

type StatusResult struct {
	Kind    provider.Kind
	ID      string
	Status  domain.Status
	Message string
	Updated bool
}

// StatusService answers checkStatus commands by querying the provider and
// converging the stored record through the same guarded transition path the
// webhooks use.
type StatusService struct {
	payments   application.PaymentRepository
	payouts    application.PayoutRepository
	refunds    application.RefundRepository
	router     *application.ProviderRouter
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewStatusService(
	payments application.PaymentRepository,
	payouts application.PayoutRepository,
	refunds application.RefundRepository,
	router *application.ProviderRouter,
	reconciler *Reconciler,
	logger *slog.Logger,
) *StatusService {
	return &StatusService{
		payments:   payments,
		payouts:    payouts,
		refunds:    refunds,
		router:     router,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Resolve locates a transaction by provider token first, then by record id.
// Only a genuine miss falls through to the next lookup; an infrastructure
// error surfaces to the caller, so a webhook delivery during a database
// outage fails loudly and gets redelivered instead of being acknowledged as
// unknown.
func (s *StatusService) Resolve(ctx context.Context, ref string) (*Resolved, error) {
	if ref == "" {
		return nil, application.ErrNotFound
	}

	if p, err := s.payments.FindByToken(ctx, ref); err == nil {
		return &Resolved{Kind: provider.KindPayin, Payment: p}, nil
	} else if !errors.Is(err, application.ErrNotFound) {
		return nil, fmt.Errorf("resolve payment by token: %w", err)
	}
	if p, err := s.payouts.FindByToken(ctx, ref); err == nil {
		return &Resolved{Kind: provider.KindPayout, Payout: p}, nil
	} else if !errors.Is(err, application.ErrNotFound) {
		return nil, fmt.Errorf("resolve payout by token: %w", err)
	}
	if r, err := s.refunds.FindByToken(ctx, ref); err == nil {
		return &Resolved{Kind: provider.KindRefund, Refund: r}, nil
	} else if !errors.Is(err, application.ErrNotFound) {
		return nil, fmt.Errorf("resolve refund by token: %w", err)
	}
	if p, err := s.payments.FindByID(ctx, ref); err == nil {
		return &Resolved{Kind: provider.KindPayin, Payment: p}, nil
	} else if !errors.Is(err, application.ErrNotFound) {
		return nil, fmt.Errorf("resolve payment by id: %w", err)
	}
	if p, err := s.payouts.FindByID(ctx, ref); err == nil {
		return &Resolved{Kind: provider.KindPayout, Payout: p}, nil
	} else if !errors.Is(err, application.ErrNotFound) {
		return nil, fmt.Errorf("resolve payout by id: %w", err)
	}
	if r, err := s.refunds.FindByID(ctx, ref); err == nil {
		return &Resolved{Kind: provider.KindRefund, Refund: r}, nil
	} else if !errors.Is(err, application.ErrNotFound) {
		return nil, fmt.Errorf("resolve refund by id: %w", err)
	}

	return nil, application.ErrNotFound
}

// ApplySignal routes a reconciliation signal to the right aggregate.
func (s *StatusService) ApplySignal(ctx context.Context, r *Resolved, sig Signal) (bool, error) {
	switch r.Kind {
	case provider.KindPayout:
		return s.reconciler.ApplyPayout(ctx, r.Payout, sig)
	case provider.KindRefund:
		return s.reconciler.ApplyRefund(ctx, r.Refund, sig)
	default:
		return s.reconciler.ApplyPayment(ctx, r.Payment, sig)
	}
}

// Check resolves a reference, asks the owning provider for the current
// status and applies any change. A failed provider lookup degrades to the
// last known stored status rather than erroring: a single status-check
// failure must not break the caller's feedback loop.
func (s *StatusService) Check(ctx context.Context, ref string) (*StatusResult, error) {
	resolved, err := s.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			return nil, application.NewNotFoundError(fmt.Errorf("no transaction for reference %q", ref))
		}
		return nil, application.NewInternalError(err)
	}

	if resolved.Status().IsTerminal() {
		return &StatusResult{
			Kind:   resolved.Kind,
			ID:     resolved.ID(),
			Status: resolved.Status(),
		}, nil
	}

	client, err := s.router.For(resolved.Provider())
	if err != nil {
		return nil, err
	}

	info, err := client.CheckStatus(ctx, resolved.Kind, resolved.Token())
	if err != nil {
		s.logger.Warn("provider status check failed",
			"kind", resolved.Kind,
			"id", resolved.ID(),
			"provider", resolved.Provider(),
			"error", err,
		)
		return &StatusResult{
			Kind:    resolved.Kind,
			ID:      resolved.ID(),
			Status:  resolved.Status(),
			Message: "provider unreachable, showing last known status",
		}, nil
	}

	sig := Signal{
		Target:         provider.MapStatus(resolved.Provider(), info.ProviderStatus),
		ProviderStatus: info.ProviderStatus,
		Reason:         info.Reason,
		FinancialTxID:  info.FinancialTxID,
		Raw:            info.Raw,
	}

	updated, err := s.ApplySignal(ctx, resolved, sig)
	if err != nil && !errors.Is(err, domain.ErrConflictingTerminalState) {
		return nil, application.NewInternalError(err)
	}

	return &StatusResult{
		Kind:    resolved.Kind,
		ID:      resolved.ID(),
		Status:  resolved.Status(),
		Message: info.Reason,
		Updated: updated,
	}, nil
}
